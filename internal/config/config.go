package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Google Drive (one of FILE or JSON is required)
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Dify ingestion API
	DifyBaseURL   string
	DifyAPIKey    string
	DifyDatasetID string

	// Webhook
	WebhookURL string // public address Drive delivers notifications to
	WatchTTL   time.Duration

	// Monitoring pipeline
	TempDownloadPath string
	DebounceInterval time.Duration
	SettleDelay      time.Duration
	ListWindow       time.Duration
	UploadRetries    int
	UploadBackoff    time.Duration
	UploadTimeout    time.Duration
	MaxConcurrent    int64

	// Channel renewal
	RenewalPeriod    time.Duration
	RenewalLookahead time.Duration

	// Observability (optional)
	SentryDSN string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "drivesink"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:    envString("PORT", "8000"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/drivesink.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Google Drive
		GoogleServiceAccountFile: envString("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: envString("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		// Dify
		DifyBaseURL:   envString("DIFY_BASE_URL", "https://api.dify.ai/v1"),
		DifyAPIKey:    envRequired("DIFY_API_KEY"),
		DifyDatasetID: envRequired("DIFY_DATASET_ID"),

		// Webhook
		WebhookURL: envRequired("WEBHOOK_URL"), // Required: public HTTPS URL Drive can reach
		WatchTTL:   envDuration("WATCH_TTL", 7*24*time.Hour),

		// Monitoring
		TempDownloadPath: envString("TEMP_DOWNLOAD_PATH", "./temp"),
		DebounceInterval: envDuration("DEBOUNCE_INTERVAL", 5*time.Second),
		SettleDelay:      envDuration("SETTLE_DELAY", 2*time.Second),
		ListWindow:       envDuration("LIST_WINDOW", 300*time.Second),
		UploadRetries:    envInt("UPLOAD_RETRIES", 3),
		UploadBackoff:    envDuration("UPLOAD_BACKOFF", 2*time.Second),
		UploadTimeout:    envDuration("UPLOAD_TIMEOUT", 60*time.Second),
		MaxConcurrent:    int64(envInt("MAX_CONCURRENT_FILES", 8)),

		// Renewal
		RenewalPeriod:    envDuration("RENEWAL_PERIOD", 12*time.Hour),
		RenewalLookahead: envDuration("RENEWAL_LOOKAHEAD", 6*time.Hour),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production
// deployments. Development allows the Drive credentials to come from a local key
// file for easier testing.
func validateProduction(cfg *Config) {
	if cfg.GoogleServiceAccountFile == "" && cfg.GoogleServiceAccountJSON == "" {
		slog.Error("production deployment requires GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
