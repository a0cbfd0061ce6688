package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the option names of a YAML config file. Pointers
// distinguish an absent key from a zero value.
type fileConfig struct {
	Interval  *float64 `yaml:"interval"`
	Size      *int     `yaml:"size"`
	Port      *int     `yaml:"port"`
	DateRange struct {
		Start *string `yaml:"start"`
		End   *string `yaml:"end"`
	} `yaml:"date_range"`
	SyncTables struct {
		Teams  *bool `yaml:"teams"`
		Events *bool `yaml:"events"`
	} `yaml:"sync_tables"`
	Postgres struct {
		Host     *string `yaml:"host"`
		Port     *int    `yaml:"port"`
		User     *string `yaml:"user"`
		Password *string `yaml:"password"`
		Database *string `yaml:"database"`
		SSLMode  *string `yaml:"sslmode"`
	} `yaml:"postgres"`
	URL struct {
		Teams  *string `yaml:"teams"`
		Events *string `yaml:"events"`
	} `yaml:"url"`
}

// applyFile overlays the YAML file at path onto c. A key set in the file
// replaces the default but never a value given through the environment.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	overlay(&c.SyncIntervalHours, fc.Interval, "SYNC_INTERVAL_HOURS")
	overlay(&c.SyncPageSize, fc.Size, "SYNC_PAGE_SIZE")
	overlay(&c.StatusPort, fc.Port, "STATUS_PORT")
	overlay(&c.DateRangeStart, fc.DateRange.Start, "DATE_RANGE_START")
	overlay(&c.DateRangeEnd, fc.DateRange.End, "DATE_RANGE_END")
	overlay(&c.SyncTeams, fc.SyncTables.Teams, "SYNC_TEAMS")
	overlay(&c.SyncEvents, fc.SyncTables.Events, "SYNC_EVENTS")
	overlay(&c.DatabaseHost, fc.Postgres.Host, "DATABASE_HOST")
	overlay(&c.DatabasePort, fc.Postgres.Port, "DATABASE_PORT")
	overlay(&c.DatabaseUser, fc.Postgres.User, "DATABASE_USER")
	overlay(&c.DatabasePassword, fc.Postgres.Password, "DATABASE_PASSWORD")
	overlay(&c.DatabaseName, fc.Postgres.Database, "DATABASE_NAME")
	overlay(&c.DatabaseSSLMode, fc.Postgres.SSLMode, "DATABASE_SSL_MODE")
	overlay(&c.SearchTeamsURL, fc.URL.Teams, "SEARCH_TEAMS_URL")
	overlay(&c.SearchEventsURL, fc.URL.Events, "SEARCH_EVENTS_URL")

	return nil
}

func overlay[T any](dst *T, val *T, envKey string) {
	if val == nil {
		return
	}
	if _, set := os.LookupEnv(envKey); set {
		return
	}
	*dst = *val
}
