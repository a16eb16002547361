// Package app wires the air quality service shared by the API and worker binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/aqdesk/aqdesk/internal/airquality"
	"github.com/aqdesk/aqdesk/internal/airquality/gios"
	"github.com/aqdesk/aqdesk/internal/cache"
	"github.com/aqdesk/aqdesk/internal/config"
	"github.com/aqdesk/aqdesk/internal/database"
	"github.com/aqdesk/aqdesk/internal/provider/resilience"
	"github.com/aqdesk/aqdesk/internal/telemetry"
	"github.com/aqdesk/aqdesk/internal/worker"
)

// NewLogger creates the service logger writing JSON to w (default: stdout).
func NewLogger(w io.Writer, cfg *config.Config, serviceName, version string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return zerolog.New(w).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", version).
		Logger()
}

// Components are the wired service dependencies.
type Components struct {
	Registry *resilience.Registry
	Service  *airquality.Service
	Refresh  *worker.RefreshJob
	Clock    clockwork.Clock

	closers []func()
}

// Close releases the cache backend.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// Build wires the GIOŚ client, the cache and the air quality service
// from cfg. meter receives the ingestion instruments.
func Build(ctx context.Context, cfg *config.Config, meter metric.Meter, logger zerolog.Logger) (*Components, error) {
	clock := clockwork.NewRealClock()
	c := &Components{
		Registry: resilience.NewRegistry(clock),
		Clock:    clock,
	}

	ingest, err := telemetry.NewIngestMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("create ingest metrics: %w", err)
	}

	parser := gios.NewParser(gios.ParserConfig{
		Location: cfg.GIOS.Location,
		Logger:   logger.With().Str("component", "parser").Logger(),
		Observer: ingest,
	})

	httpClient := resilience.NewClient(resilience.ClientConfig{
		Name:     gios.ProviderName,
		Timeout:  cfg.GIOS.Timeout,
		Registry: c.Registry,
		Logger:   logger,
	})
	provider := gios.NewClient(gios.ClientConfig{
		BaseURL:    cfg.GIOS.BaseURL,
		HTTPClient: httpClient,
		Parser:     parser,
		Logger:     logger.With().Str("component", "gios").Logger(),
	})

	backend, err := c.buildBackend(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	store := cache.NewStore(cache.StoreConfig{
		Backend: backend,
		Parser:  parser,
		Logger:  logger.With().Str("component", "cache").Logger(),
	})

	c.Service = airquality.NewService(airquality.ServiceConfig{
		Provider:  provider,
		Cache:     store,
		Fallbacks: ingest,
		Clock:     clock,
		Logger:    logger.With().Str("component", "airquality").Logger(),
	})

	c.Refresh = worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			StationIDs:     cfg.Refresh.StationIDs,
			Concurrency:    cfg.Refresh.Concurrency,
			StationTimeout: cfg.Refresh.StationTimeout,
		},
		Service: c.Service,
		Clock:   clock,
		Logger:  logger.With().Str("component", "refresh").Logger(),
	})

	return c, nil
}

func (c *Components) buildBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Backend, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendPostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		c.closers = append(c.closers, pool.Close)

		backend := cache.NewPostgresBackend(pool)
		if err := backend.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("postgres cache connected")
		return backend, nil
	default:
		logger.Info().Str("dir", cfg.CacheDir).Msg("using file cache")
		return cache.NewFileBackend(cfg.CacheDir), nil
	}
}
