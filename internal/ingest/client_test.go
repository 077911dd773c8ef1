package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    "test-key",
		datasetID: "dataset-1",
		retries:   3,
		backoff:   time.Millisecond,
		http:      &http.Client{Timeout: 5 * time.Second},
	}
}

func tempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
	return path
}

func TestUploadSucceedsAfterTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id": "doc-123"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	id, err := c.Upload(context.Background(), tempFile(t))

	require.NoError(t, err)
	assert.Equal(t, "doc-123", id)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestUploadGivesUpAfterRetryBudget(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	id, err := c.Upload(context.Background(), tempFile(t))

	require.Error(t, err)
	assert.Empty(t, id)
	assert.Equal(t, int32(3), attempts.Load(), "exactly the attempt budget, no more")
}

func TestUploadSendsMultipartWithAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/dataset-1/document/create-by-file", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "report.pdf", header.Filename)

		w.Write([]byte(`{"id": "doc-1"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Upload(context.Background(), tempFile(t))
	require.NoError(t, err)
}

func TestUploadReadsNestedDocumentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"document": {"id": "doc-nested"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	id, err := c.Upload(context.Background(), tempFile(t))

	require.NoError(t, err)
	assert.Equal(t, "doc-nested", id)
}

func TestUploadMissingFileIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "doc-1"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
}
