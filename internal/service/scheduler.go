package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the channel renewal sweep on a fixed period, independent of
// request traffic.
type Scheduler struct {
	cron     *cron.Cron
	channels *Channels
	period   time.Duration
}

func NewScheduler(channels *Channels, period time.Duration) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		channels: channels,
		period:   period,
	}
}

func (s *Scheduler) Start() {
	s.cron.Schedule(cron.Every(s.period), cron.FuncJob(func() {
		s.channels.RenewExpiring(context.Background())
	}))
	s.cron.Start()
	slog.Info("renewal scheduler started", "period", s.period)
}

// Stop stops scheduling new sweeps; a sweep already running completes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("renewal scheduler stopped")
}
