package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	cfg "github.com/drivesink/drivesink/internal/config"
)

// Provider defines the capability surface the monitoring core needs from the
// storage provider: register a watch, list recent files, download, stop a watch.
type Provider interface {
	// RegisterWatch subscribes the webhook address to a folder's change feed
	RegisterWatch(ctx context.Context, folderID string) (*Watch, error)

	// ListCreatedSince returns files created in folderID after since
	ListCreatedSince(ctx context.Context, folderID string, since time.Time) ([]File, error)

	// Download streams a file's content to destPath
	Download(ctx context.Context, fileID, destPath string) error

	// StopWatch tears down a notification channel (best-effort at call sites)
	StopWatch(ctx context.Context, channelID, resourceID string) error
}

// Watch is the provider's answer to a watch registration.
type Watch struct {
	ChannelID  string
	FolderID   string
	ResourceID string
	Expiration time.Time
}

// File is one listing entry.
type File struct {
	ID        string
	Name      string
	MimeType  string
	CreatedAt time.Time
}

// Client implements Provider against the Google Drive v3 API using a
// service account with read-only scope.
type Client struct {
	svc        *drive.Service
	webhookURL string
	watchTTL   time.Duration
}

// New creates a Drive client from app config. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON (inline) or GOOGLE_SERVICE_ACCOUNT_FILE.
func New(ctx context.Context, c *cfg.Config) (*Client, error) {
	data := []byte(c.GoogleServiceAccountJSON)
	if len(data) == 0 {
		if c.GoogleServiceAccountFile == "" {
			return nil, fmt.Errorf("no Google service account configured")
		}
		var err error
		data, err = os.ReadFile(c.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read service account file: %w", err)
		}
	}

	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	slog.Info("drive client initialized", "webhook_url", c.WebhookURL)

	return &Client{
		svc:        svc,
		webhookURL: c.WebhookURL,
		watchTTL:   c.WatchTTL,
	}, nil
}

// RegisterWatch verifies the folder is reachable, then registers a web_hook
// channel delivering change notifications to the configured webhook URL.
func (c *Client) RegisterWatch(ctx context.Context, folderID string) (*Watch, error) {
	// Fails fast with a useful error when the folder is not shared with the
	// service account.
	_, err := c.svc.Files.Get(folderID).SupportsAllDrives(true).Fields("id").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("cannot access folder %s (is it shared with the service account?): %w", folderID, err)
	}

	channel := &drive.Channel{
		Id:         uuid.New().String(),
		Type:       "web_hook",
		Address:    c.webhookURL,
		Expiration: time.Now().Add(c.watchTTL).UnixMilli(),
	}

	resp, err := c.svc.Files.Watch(folderID, channel).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to register watch for folder %s: %w", folderID, err)
	}

	return &Watch{
		ChannelID:  resp.Id,
		FolderID:   folderID,
		ResourceID: resp.ResourceId,
		// Drive may grant less than the requested TTL
		Expiration: time.UnixMilli(resp.Expiration),
	}, nil
}

func (c *Client) ListCreatedSince(ctx context.Context, folderID string, since time.Time) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and createdTime > '%s'",
		folderID, since.UTC().Format(time.RFC3339))

	res, err := c.svc.Files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id, name, createdTime, mimeType)").
		IncludeItemsFromAllDrives(true).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}

	files := make([]File, 0, len(res.Files))
	for _, f := range res.Files {
		created, parseErr := time.Parse(time.RFC3339, f.CreatedTime)
		if parseErr != nil {
			slog.Warn("unparseable createdTime from drive", "file_id", f.Id, "created_time", f.CreatedTime)
		}
		files = append(files, File{
			ID:        f.Id,
			Name:      f.Name,
			MimeType:  f.MimeType,
			CreatedAt: created,
		})
	}

	return files, nil
}

func (c *Client) Download(ctx context.Context, fileID, destPath string) error {
	resp, err := c.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close download body", "error", closeErr, "file_id", fileID)
		}
	}()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	_, err = io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}

	return out.Close()
}

func (c *Client) StopWatch(ctx context.Context, channelID, resourceID string) error {
	err := c.svc.Channels.Stop(&drive.Channel{
		Id:         channelID,
		ResourceId: resourceID,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to stop channel %s: %w", channelID, err)
	}

	return nil
}

// Compile-time check that Client implements Provider.
var _ Provider = (*Client)(nil)
