package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/drivesink/drivesink/internal/config"
	"github.com/drivesink/drivesink/internal/db"
	"github.com/drivesink/drivesink/internal/drive"
	"github.com/drivesink/drivesink/internal/ingest"
	"github.com/drivesink/drivesink/internal/repository"
	"github.com/drivesink/drivesink/internal/service"
)

// App owns every long-lived piece of the service: the database, the temp
// download directory, the monitoring services and the renewal scheduler.
// Nothing here is package-level state; lifecycle is New/Close.
type App struct {
	Cfg       *config.Config
	DB        *sqlx.DB
	Monitor   *service.Monitor
	Channels  *service.Channels
	Scheduler *service.Scheduler
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Temp directory for in-flight downloads
	err = os.MkdirAll(cfg.TempDownloadPath, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %v", err)
	}

	// Repositories
	fileRepository := repository.NewProcessedFileRepository(database)
	channelRepository := repository.NewChannelRepository(database)

	// Gateways
	driveClient, err := drive.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize drive client: %v", err)
	}
	ingestClient := ingest.New(cfg)

	// Services
	debounce := service.NewDebounce(cfg.DebounceInterval)
	monitor := service.NewMonitor(
		fileRepository,
		channelRepository,
		driveClient,
		ingestClient,
		debounce,
		cfg.TempDownloadPath,
		cfg.SettleDelay,
		cfg.ListWindow,
		cfg.MaxConcurrent,
	)
	channels := service.NewChannels(channelRepository, driveClient, cfg.RenewalLookahead)
	scheduler := service.NewScheduler(channels, cfg.RenewalPeriod)

	return &App{
		Cfg:       cfg,
		DB:        database,
		Monitor:   monitor,
		Channels:  channels,
		Scheduler: scheduler,
	}, nil
}

func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	// Downloads live only as long as the process
	err := os.RemoveAll(a.Cfg.TempDownloadPath)
	if err != nil {
		slog.Error("failed to remove temp directory", "error", err, "path", a.Cfg.TempDownloadPath)
	}

	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
