package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"recon_sync/ingestion/internal/models"
	"recon_sync/ingestion/internal/query"
)

const dateLayout = "2006-01-02"

// Config holds all application configuration
type Config struct {
	// Optional YAML file overlaid between defaults and environment
	ConfigFile string `envconfig:"CONFIG_FILE" default:""`

	// Sync cycle
	SyncIntervalHours  float64       `envconfig:"SYNC_INTERVAL_HOURS" default:"24"`
	SyncPageSize       int           `envconfig:"SYNC_PAGE_SIZE" default:"10000"`
	SyncTeams          bool          `envconfig:"SYNC_TEAMS" default:"true"`
	SyncEvents         bool          `envconfig:"SYNC_EVENTS" default:"true"`
	SyncCron           string        `envconfig:"SYNC_CRON" default:""`
	SyncBackoffInitial time.Duration `envconfig:"SYNC_BACKOFF_INITIAL" default:"0s"`
	DateRangeStart     string        `envconfig:"DATE_RANGE_START" default:"2017-09-01"`
	DateRangeEnd       string        `envconfig:"DATE_RANGE_END" default:"2018-09-01"`
	PersistMode        string        `envconfig:"PERSIST_MODE" default:"upsert"`
	ExportDir          string        `envconfig:"EXPORT_DIR" default:""`

	// Remote search index
	SearchBaseURL            string        `envconfig:"SEARCH_BASE_URL" default:"https://es01.usfirst.org"`
	SearchTeamsURL           string        `envconfig:"SEARCH_TEAMS_URL" default:""`
	SearchEventsURL          string        `envconfig:"SEARCH_EVENTS_URL" default:""`
	SearchInsecureSkipVerify bool          `envconfig:"SEARCH_INSECURE_SKIP_VERIFY" default:"false"`
	SearchTimeout            time.Duration `envconfig:"SEARCH_TIMEOUT" default:"60s"`
	SearchMaxRetries         int           `envconfig:"SEARCH_MAX_RETRIES" default:"2"`
	SearchRetryDelay         time.Duration `envconfig:"SEARCH_RETRY_DELAY" default:"2s"`
	CompetitionType          string        `envconfig:"COMPETITION_TYPE" default:"FTC"`
	Seasons                  []string      `envconfig:"SEASONS" default:"247,249,251,253"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"recon_sync"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"recon_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" default:""`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisHost        string        `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort        int           `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword    string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB          int           `envconfig:"REDIS_DB" default:"0"`
	RedisSnapshotTTL time.Duration `envconfig:"REDIS_SNAPSHOT_TTL" default:"168h"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Status server
	StatusPort int `envconfig:"STATUS_PORT" default:"3000"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if cfg.ConfigFile != "" {
		if err := cfg.applyFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SyncIntervalHours <= 0 {
		return fmt.Errorf("SYNC_INTERVAL_HOURS must be positive, got %v", c.SyncIntervalHours)
	}

	if c.SyncPageSize <= 0 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be positive, got %d", c.SyncPageSize)
	}

	if !c.SyncTeams && !c.SyncEvents {
		return fmt.Errorf("at least one of SYNC_TEAMS or SYNC_EVENTS must be enabled")
	}

	if c.StatusPort <= 0 || c.StatusPort > 65535 {
		return fmt.Errorf("STATUS_PORT out of range: %d", c.StatusPort)
	}

	if _, _, err := c.DateRange(); err != nil {
		return err
	}

	if _, err := query.ParseMode(c.PersistMode); err != nil {
		return fmt.Errorf("PERSIST_MODE: %w", err)
	}

	if c.SyncCron != "" {
		if _, err := cron.ParseStandard(c.SyncCron); err != nil {
			return fmt.Errorf("SYNC_CRON %q: %w", c.SyncCron, err)
		}
	}

	if c.SyncBackoffInitial < 0 {
		return fmt.Errorf("SYNC_BACKOFF_INITIAL must not be negative")
	}

	if c.SearchTimeout <= 0 {
		return fmt.Errorf("SEARCH_TIMEOUT must be positive")
	}

	if len(c.Seasons) == 0 {
		return fmt.Errorf("SEASONS must list at least one season")
	}

	return nil
}

// Interval returns the time between cycles
func (c *Config) Interval() time.Duration {
	return time.Duration(c.SyncIntervalHours * float64(time.Hour))
}

// DateRange returns the parsed event date window
func (c *Config) DateRange() (time.Time, time.Time, error) {
	start, err := parseDate(c.DateRangeStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("DATE_RANGE_START: %w", err)
	}
	end, err := parseDate(c.DateRangeEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("DATE_RANGE_END: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("date range ends %s before it starts %s", c.DateRangeEnd, c.DateRangeStart)
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}

// Kinds returns the enabled record kinds in processing order
func (c *Config) Kinds() []models.Kind {
	var kinds []models.Kind
	if c.SyncTeams {
		kinds = append(kinds, models.KindTeam)
	}
	if c.SyncEvents {
		kinds = append(kinds, models.KindEvent)
	}
	return kinds
}

// SearchOptions returns the remote query filter built from the configuration
func (c *Config) SearchOptions() (query.SearchOptions, error) {
	start, end, err := c.DateRange()
	if err != nil {
		return query.SearchOptions{}, err
	}

	overrides := map[models.Kind]string{}
	if c.SearchTeamsURL != "" {
		overrides[models.KindTeam] = c.SearchTeamsURL
	}
	if c.SearchEventsURL != "" {
		overrides[models.KindEvent] = c.SearchEventsURL
	}

	return query.SearchOptions{
		BaseURL:         c.SearchBaseURL,
		CompetitionType: c.CompetitionType,
		Seasons:         c.Seasons,
		DateStart:       start,
		DateEnd:         end,
		Overrides:       overrides,
	}, nil
}

// Mode returns the configured persistence mode
func (c *Config) Mode() query.Mode {
	mode, err := query.ParseMode(c.PersistMode)
	if err != nil {
		return query.ModeUpsert
	}
	return mode
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
