package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/drivesink/drivesink/internal/drive"
	"github.com/drivesink/drivesink/internal/ingest"
	"github.com/drivesink/drivesink/internal/repository"
)

// ErrMissingFields marks a notification without the required metadata. It is
// the only intake failure surfaced to the caller; everything else is
// acknowledged so Drive does not retry-storm us.
var ErrMissingFields = errors.New("missing channel id or resource state")

// Notification outcomes, in the words the webhook response uses.
const (
	StatusSyncAcknowledged = "sync acknowledged"
	StatusTrashIgnored     = "trash ignored"
	StatusIgnored          = "ignored"
	StatusDebounced        = "debounced"
	StatusProcessing       = "processing"
	StatusError            = "error"
)

// Outcome is the intake's answer to one webhook delivery.
type Outcome struct {
	Status string
	Files  int // only meaningful for StatusProcessing
}

// Bound for listing and download calls. Uploads carry their own client timeout.
const networkTimeout = 60 * time.Second

// Monitor owns the notification intake and the per-file processing pipeline.
// All of its mutable state (in-flight set, debounce baselines) is process-local
// and assumes a single running instance; scaling out needs a shared lease per
// file/folder instead.
type Monitor struct {
	files    repository.ProcessedFileRepository
	channels repository.ChannelRepository
	provider drive.Provider
	uploader ingest.Uploader
	debounce *Debounce

	mu       sync.Mutex
	inflight map[string]struct{}

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	tempDir     string
	settleDelay time.Duration
	listWindow  time.Duration
}

func NewMonitor(
	files repository.ProcessedFileRepository,
	channels repository.ChannelRepository,
	provider drive.Provider,
	uploader ingest.Uploader,
	debounce *Debounce,
	tempDir string,
	settleDelay time.Duration,
	listWindow time.Duration,
	maxConcurrent int64,
) *Monitor {
	return &Monitor{
		files:       files,
		channels:    channels,
		provider:    provider,
		uploader:    uploader,
		debounce:    debounce,
		inflight:    make(map[string]struct{}),
		sem:         semaphore.NewWeighted(maxConcurrent),
		tempDir:     tempDir,
		settleDelay: settleDelay,
		listWindow:  listWindow,
	}
}

// HandleNotification classifies one webhook delivery and, when it survives the
// debounce gate, lists the folder and dispatches pipeline runs for files not
// yet processed. Every outcome except ErrMissingFields maps to a 200 at the
// HTTP boundary: Drive retries unacknowledged deliveries indefinitely, so
// acking beats surfacing internal trouble.
func (m *Monitor) HandleNotification(ctx context.Context, channelID, resourceState string) (Outcome, error) {
	if channelID == "" || resourceState == "" {
		return Outcome{}, ErrMissingFields
	}

	// First message on every new channel; carries no change information.
	if resourceState == "sync" {
		return Outcome{Status: StatusSyncAcknowledged}, nil
	}

	// Deletions are out of scope.
	if resourceState == "trash" {
		return Outcome{Status: StatusTrashIgnored}, nil
	}

	folderID, err := m.channels.FolderByChannelID(channelID)
	if errors.Is(err, repository.ErrChannelNotFound) {
		// Stale or foreign channel. Ack it, or Drive keeps redelivering.
		return Outcome{Status: StatusIgnored}, nil
	}
	if err != nil {
		slog.Warn("channel lookup failed, acknowledging anyway", "error", err, "channel_id", channelID)
		return Outcome{Status: StatusError}, nil
	}

	now := time.Now()
	if !m.debounce.Allow(folderID, now) {
		return Outcome{Status: StatusDebounced}, nil
	}

	listCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()

	listed, err := m.provider.ListCreatedSince(listCtx, folderID, now.Add(-m.listWindow))
	if err != nil {
		slog.Error("failed to list folder", "error", err, "folder_id", folderID)
		return Outcome{Status: StatusError}, nil
	}

	ids := make([]string, 0, len(listed))
	for _, f := range listed {
		ids = append(ids, f.ID)
	}

	fresh, err := m.files.FilterNew(ids)
	if err != nil {
		slog.Error("failed to filter processed files", "error", err, "folder_id", folderID)
		return Outcome{Status: StatusError}, nil
	}

	freshSet := make(map[string]bool, len(fresh))
	for _, id := range fresh {
		freshSet[id] = true
	}

	count := 0
	for _, f := range listed {
		if !freshSet[f.ID] {
			continue
		}
		m.dispatch(f)
		count++
	}

	slog.Info("notification triggered processing",
		"folder_id", folderID,
		"listed", len(listed),
		"new", count,
	)

	return Outcome{Status: StatusProcessing, Files: count}, nil
}

// dispatch runs the pipeline for one file in the background. The semaphore
// caps how many downloads/uploads run at once; a burst beyond the cap waits in
// cheap parked goroutines instead of stampeding the provider. The webhook
// response never blocks on any of this.
func (m *Monitor) dispatch(file drive.File) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx := context.Background()
		err := m.sem.Acquire(ctx, 1)
		if err != nil {
			return
		}
		defer m.sem.Release(1)

		m.Process(ctx, file.ID, file.Name)
	}()
}

// Drain blocks until all dispatched pipeline runs have finished.
func (m *Monitor) Drain() {
	m.wg.Wait()
}

// Process runs the idempotent pipeline for one file: in-flight check, durable
// re-check, settle, download, upload, record. Every exit path removes the file
// from the in-flight set and deletes the temp file. A failed attempt records
// nothing, which keeps the file eligible for the next notification cycle.
func (m *Monitor) Process(ctx context.Context, fileID, fileName string) {
	if !m.markInFlight(fileID) {
		slog.Info("file already in flight, skipping", "file_id", fileID, "file_name", fileName)
		return
	}
	defer m.clearInFlight(fileID)

	tempPath := filepath.Join(m.tempDir, fileName)
	defer m.removeTemp(tempPath)

	// Re-check the durable record after joining the in-flight set. The order
	// matters: reversing it narrows but does not close the window where two
	// queued runs both pass the durable check.
	processed, err := m.files.Exists(fileID)
	if err != nil {
		slog.Error("failed to check processed record", "error", err, "file_id", fileID)
		return
	}
	if processed {
		return
	}

	// Drive listings can surface a file before its content is fully
	// committed; give it a moment to settle before reading it back.
	select {
	case <-time.After(m.settleDelay):
	case <-ctx.Done():
		return
	}

	slog.Info("processing file", "file_id", fileID, "file_name", fileName)

	dlCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()

	err = m.provider.Download(dlCtx, fileID, tempPath)
	if err != nil {
		slog.Error("download failed", "error", err, "file_id", fileID, "file_name", fileName)
		return
	}

	documentID, err := m.uploader.Upload(ctx, tempPath)
	if err != nil {
		slog.Error("upload failed", "error", err, "file_id", fileID, "file_name", fileName)
		return
	}

	inserted, err := m.files.MarkProcessed(fileID, fileName)
	if err != nil {
		slog.Error("failed to record processed file", "error", err, "file_id", fileID)
		return
	}
	if !inserted {
		// Another instance won the record race; the duplicate upload is the
		// accepted cost of never losing a file.
		slog.Info("file was recorded by a concurrent run", "file_id", fileID)
		return
	}

	slog.Info("file processed", "file_id", fileID, "file_name", fileName, "document_id", documentID)
}

func (m *Monitor) markInFlight(fileID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, busy := m.inflight[fileID]
	if busy {
		return false
	}
	m.inflight[fileID] = struct{}{}
	return true
}

func (m *Monitor) clearInFlight(fileID string) {
	m.mu.Lock()
	// delete tolerates the id already being gone
	delete(m.inflight, fileID)
	m.mu.Unlock()
}

func (m *Monitor) removeTemp(path string) {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to clean up temp file", "error", err, "path", path)
	}
}

// InFlight reports whether fileID is currently inside the pipeline.
func (m *Monitor) InFlight(fileID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, busy := m.inflight[fileID]
	return busy
}
