package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/drivesink/drivesink/internal/drive"
	"github.com/drivesink/drivesink/internal/model"
	"github.com/drivesink/drivesink/internal/repository"
)

// Channels manages the lifecycle of notification channels: initial setup and
// the periodic renewal that keeps them from expiring.
type Channels struct {
	repo      repository.ChannelRepository
	provider  drive.Provider
	lookahead time.Duration
}

func NewChannels(repo repository.ChannelRepository, provider drive.Provider, lookahead time.Duration) *Channels {
	return &Channels{
		repo:      repo,
		provider:  provider,
		lookahead: lookahead,
	}
}

// Setup registers a watch on folderID and persists the resulting channel.
// Unlike the webhook path this is a synchronous operator call, so failures are
// returned rather than swallowed.
func (s *Channels) Setup(ctx context.Context, folderID string) (*model.NotificationChannel, error) {
	watch, err := s.provider.RegisterWatch(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to register watch: %w", err)
	}

	channel := &model.NotificationChannel{
		ChannelID:  watch.ChannelID,
		FolderID:   watch.FolderID,
		Expiration: watch.Expiration,
	}

	err = s.repo.Create(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to persist channel: %w", err)
	}

	slog.Info("monitoring set up",
		"folder_id", folderID,
		"channel_id", watch.ChannelID,
		"expiration", watch.Expiration,
	)

	return channel, nil
}

// RenewExpiring re-registers every channel expiring within the lookahead and
// swaps the stored identity atomically. Channels are renewed independently:
// one failure is logged and left for the next sweep, never aborting the rest.
func (s *Channels) RenewExpiring(ctx context.Context) {
	threshold := time.Now().Add(s.lookahead)

	channels, err := s.repo.ExpiringBefore(threshold)
	if err != nil {
		slog.Error("failed to query expiring channels", "error", err)
		return
	}

	if len(channels) == 0 {
		return
	}
	slog.Info("renewing channels", "count", len(channels), "threshold", threshold)

	for _, channel := range channels {
		s.renew(ctx, channel)
	}
}

func (s *Channels) renew(ctx context.Context, channel *model.NotificationChannel) {
	// Best-effort teardown; an orphaned provider-side watch expires on its own.
	err := s.provider.StopWatch(ctx, channel.ChannelID, channel.FolderID)
	if err != nil {
		slog.Warn("failed to stop old watch", "error", err, "channel_id", channel.ChannelID)
	}

	watch, err := s.provider.RegisterWatch(ctx, channel.FolderID)
	if err != nil {
		slog.Error("failed to renew channel, will retry next sweep",
			"error", err,
			"channel_id", channel.ChannelID,
			"folder_id", channel.FolderID,
		)
		return
	}

	err = s.repo.Replace(channel.ChannelID, watch.ChannelID, watch.Expiration)
	if err != nil {
		slog.Error("failed to store renewed channel",
			"error", err,
			"channel_id", channel.ChannelID,
			"new_channel_id", watch.ChannelID,
		)
		return
	}

	slog.Info("channel renewed",
		"folder_id", channel.FolderID,
		"old_channel_id", channel.ChannelID,
		"new_channel_id", watch.ChannelID,
		"expiration", watch.Expiration,
	)
}
