// Package config loads service settings from environment variables, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/aqdesk/aqdesk/internal/airquality/gios"
	"github.com/aqdesk/aqdesk/internal/database"
)

// Cache backends.
const (
	CacheBackendFile     = "file"
	CacheBackendPostgres = "postgres"
)

// Config holds all service settings.
type Config struct {
	Port     string
	Env      string
	LogLevel zerolog.Level

	GIOS GIOSConfig

	CacheBackend string
	CacheDir     string
	Database     database.Config

	OTelEnabled  bool
	OTelEndpoint string

	// AdminSigningKey is the HS256 key for admin bearer tokens. Admin
	// endpoints are disabled when empty.
	AdminSigningKey string

	Refresh RefreshConfig
	PubSub  PubSubConfig
}

// GIOSConfig configures the upstream GIOŚ client.
type GIOSConfig struct {
	BaseURL string
	Timeout time.Duration

	// Location is applied to zone-less API timestamps.
	Location *time.Location
}

// RefreshConfig configures the cache refresh worker.
type RefreshConfig struct {
	StationIDs     []int
	Interval       time.Duration
	Concurrency    int
	StationTimeout time.Duration
}

// PubSubConfig configures the optional Pub/Sub refresh trigger. The trigger
// is disabled when ProjectID is empty.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	level, err := zerolog.ParseLevel(envOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	giosTimeout, err := parseDuration("GIOS_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(envOrDefault("GIOS_TIMEZONE", "Europe/Warsaw"))
	if err != nil {
		return nil, fmt.Errorf("invalid GIOS_TIMEZONE: %w", err)
	}

	dbPort, err := parseInt("DB_PORT", "5432")
	if err != nil {
		return nil, err
	}
	maxOpen, err := parseInt("DB_MAX_OPEN_CONNS", "10")
	if err != nil {
		return nil, err
	}
	maxIdle, err := parseInt("DB_MAX_IDLE_CONNS", "5")
	if err != nil {
		return nil, err
	}
	lifetime, err := parseDuration("DB_CONN_MAX_LIFETIME", "5m")
	if err != nil {
		return nil, err
	}

	stationIDs, err := parseIDs(os.Getenv("REFRESH_STATION_IDS"))
	if err != nil {
		return nil, err
	}
	interval, err := parseDuration("REFRESH_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	concurrency, err := parseInt("REFRESH_CONCURRENCY", "3")
	if err != nil {
		return nil, err
	}
	stationTimeout, err := parseDuration("REFRESH_STATION_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:     envOrDefault("APP_PORT", "8080"),
		Env:      envOrDefault("APP_ENV", "development"),
		LogLevel: level,
		GIOS: GIOSConfig{
			BaseURL:  envOrDefault("GIOS_BASE_URL", gios.DefaultBaseURL),
			Timeout:  giosTimeout,
			Location: location,
		},
		CacheBackend: envOrDefault("CACHE_BACKEND", CacheBackendFile),
		CacheDir:     envOrDefault("CACHE_DIR", "./data"),
		Database: database.Config{
			Host:            envOrDefault("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            envOrDefault("DB_USER", "aqdesk"),
			Password:        envOrDefault("DB_PASSWORD", "localdev"),
			Database:        envOrDefault("DB_NAME", "aqdesk"),
			SSLMode:         envOrDefault("DB_SSL_MODE", "disable"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: lifetime,
		},
		OTelEnabled:     os.Getenv("OTEL_ENABLED") == "true",
		OTelEndpoint:    envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		AdminSigningKey: os.Getenv("ADMIN_SIGNING_KEY"),
		Refresh: RefreshConfig{
			StationIDs:     stationIDs,
			Interval:       interval,
			Concurrency:    concurrency,
			StationTimeout: stationTimeout,
		},
		PubSub: PubSubConfig{
			ProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			Subscription: envOrDefault("PUBSUB_SUBSCRIPTION", "aqdesk-refresh"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case CacheBackendFile:
		if c.CacheDir == "" {
			return errors.New("CACHE_DIR is required for the file cache backend")
		}
	case CacheBackendPostgres:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q: must be %s or %s", c.CacheBackend, CacheBackendFile, CacheBackendPostgres)
	}
	if c.GIOS.Timeout <= 0 {
		return errors.New("GIOS_TIMEOUT must be positive")
	}
	if c.Refresh.Interval <= 0 {
		return errors.New("REFRESH_INTERVAL must be positive")
	}
	if c.Refresh.Concurrency < 1 {
		return errors.New("REFRESH_CONCURRENCY must be at least 1")
	}
	if c.Refresh.StationTimeout <= 0 {
		return errors.New("REFRESH_STATION_TIMEOUT must be positive")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.Subscription == "" {
		return errors.New("PUBSUB_SUBSCRIPTION is required when PUBSUB_PROJECT_ID is set")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(key, def string) (int, error) {
	n, err := strconv.Atoi(envOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid REFRESH_STATION_IDS entry %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
