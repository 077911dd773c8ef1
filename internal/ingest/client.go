package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	cfg "github.com/drivesink/drivesink/internal/config"
)

// Uploader is the capability the pipeline needs from the ingestion API:
// push one local file, get back an opaque document id or a definitive failure.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Client uploads files into a Dify knowledge dataset. Transient failures are
// retried with constant backoff up to a fixed attempt budget; the caller only
// sees the final outcome.
type Client struct {
	baseURL   string
	apiKey    string
	datasetID string
	retries   int
	backoff   time.Duration
	http      *http.Client
}

func New(c *cfg.Config) *Client {
	retries := c.UploadRetries
	if retries < 1 {
		retries = 1
	}
	return &Client{
		baseURL:   c.DifyBaseURL,
		apiKey:    c.DifyAPIKey,
		datasetID: c.DifyDatasetID,
		retries:   retries,
		backoff:   c.UploadBackoff,
		http: &http.Client{
			// Large files need headroom
			Timeout: c.UploadTimeout,
		},
	}
}

type createDocumentResponse struct {
	ID       string `json:"id"`
	Document struct {
		ID string `json:"id"`
	} `json:"document"`
}

func (c *Client) Upload(ctx context.Context, localPath string) (string, error) {
	url := fmt.Sprintf("%s/datasets/%s/document/create-by-file", c.baseURL, c.datasetID)

	var documentID string
	attempt := 0

	backoff := retry.WithMaxRetries(uint64(c.retries-1), retry.NewConstant(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			slog.Info("retrying upload", "path", localPath, "attempt", attempt, "max", c.retries)
		}

		id, attemptErr := c.uploadOnce(ctx, url, localPath)
		if attemptErr != nil {
			return retry.RetryableError(attemptErr)
		}

		documentID = id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upload failed after %d attempts: %w", attempt, err)
	}

	return documentID, nil
}

func (c *Client) uploadOnce(ctx context.Context, url, localPath string) (string, error) {
	body, contentType, err := fileForm(localPath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ingestion API returned %d: %s", resp.StatusCode, detail)
	}

	var out createDocumentResponse
	err = json.NewDecoder(resp.Body).Decode(&out)
	if err != nil {
		return "", fmt.Errorf("failed to decode ingestion response: %w", err)
	}

	// Dify API versions differ on where the document id lives
	id := out.ID
	if id == "" {
		id = out.Document.ID
	}
	if id == "" {
		return "", fmt.Errorf("ingestion response carried no document id")
	}

	return id, nil
}

// fileForm builds a multipart body with the file under the "file" field.
// The whole form is buffered so each retry attempt re-reads the file fresh.
func fileForm(localPath string) (io.Reader, string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() {
		closeErr := f.Close()
		if closeErr != nil {
			slog.Error("failed to close file", "error", closeErr, "path", localPath)
		}
	}()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return nil, "", err
	}
	_, err = io.Copy(part, f)
	if err != nil {
		return nil, "", err
	}

	err = w.Close()
	if err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

// Compile-time check that Client implements Uploader.
var _ Uploader = (*Client)(nil)
