package airquality

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Provider fetches air quality data from the upstream API.
type Provider interface {
	FetchStations(ctx context.Context) ([]Station, error)
	FetchSensors(ctx context.Context, stationID int) ([]Sensor, error)
	FetchSensorData(ctx context.Context, sensorID int) (SensorData, error)
	FetchAirQualityIndex(ctx context.Context, stationID int) (AirQualityIndex, error)
}

// Cache persists the last successful fetch of every entity. Load methods
// also return when the entry was written.
type Cache interface {
	SaveStations(ctx context.Context, stations []Station) error
	LoadStations(ctx context.Context) ([]Station, time.Time, error)
	SaveSensors(ctx context.Context, stationID int, sensors []Sensor) error
	LoadSensors(ctx context.Context, stationID int) ([]Sensor, time.Time, error)
	SaveSensorData(ctx context.Context, sensorID int, data SensorData) error
	LoadSensorData(ctx context.Context, sensorID int) (SensorData, time.Time, error)
	SaveAirQualityIndex(ctx context.Context, stationID int, index AirQualityIndex) error
	LoadAirQualityIndex(ctx context.Context, stationID int) (AirQualityIndex, time.Time, error)
}

// FallbackRecorder is notified whenever a request is answered from the cache
// because the provider failed.
type FallbackRecorder interface {
	CacheFallback(ctx context.Context, entity string)
}

// Source tells where a result came from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
)

// Result wraps a value with its provenance.
type Result[T any] struct {
	Value T

	Source Source

	// FetchedAt is when the value was fetched from the network, or when the
	// cache entry was written for cached values.
	FetchedAt time.Time

	// ProviderErr is the provider failure that caused a cache fallback.
	ProviderErr error
}

// Stale reports whether the value was served from the cache after a provider failure.
func (r Result[T]) Stale() bool {
	return r.Source == SourceCache
}

// TimeRange is an inclusive time window.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Validate checks that the range is well formed.
func (r TimeRange) Validate() error {
	if !r.From.Before(r.To) {
		return fmt.Errorf("%w: %s is not before %s", ErrInvalidRange, r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
	}
	return nil
}

// SeriesAnalysis is the analysis of one sensor's series.
type SeriesAnalysis struct {
	SensorID int
	Key      string
	Range    *TimeRange
	AnalysisResult
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Provider is the upstream data source.
	Provider Provider

	// Cache holds the last successful fetches.
	Cache Cache

	// Fallbacks is notified of cache fallbacks (optional).
	Fallbacks FallbackRecorder

	// Clock stamps network results (default: real clock).
	Clock clockwork.Clock

	// FetchTimeout bounds one shared upstream call (default: DefaultFetchTimeout).
	FetchTimeout time.Duration

	// Logger for service operations.
	Logger zerolog.Logger
}

// DefaultFetchTimeout bounds a shared upstream call when ServiceConfig.FetchTimeout is unset.
const DefaultFetchTimeout = 30 * time.Second

// Service fetches data network-first, writes every successful fetch through
// to the cache and falls back to the cache when the provider fails.
// Concurrent requests for the same entity share one upstream call.
type Service struct {
	provider  Provider
	cache     Cache
	fallbacks FallbackRecorder
	clock     clockwork.Clock
	timeout   time.Duration
	logger    zerolog.Logger

	group singleflight.Group
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Service{
		provider:  cfg.Provider,
		cache:     cfg.Cache,
		fallbacks: cfg.Fallbacks,
		clock:     clock,
		timeout:   timeout,
		logger:    cfg.Logger,
	}
}

// Stations returns all measuring stations.
func (s *Service) Stations(ctx context.Context) (Result[[]Station], error) {
	return fetch(ctx, s, "stations", "stations",
		s.provider.FetchStations,
		s.cache.SaveStations,
		s.cache.LoadStations,
	)
}

// Sensors returns the sensors of a station.
func (s *Service) Sensors(ctx context.Context, stationID int) (Result[[]Sensor], error) {
	if stationID <= 0 {
		return Result[[]Sensor]{}, fmt.Errorf("station %d: %w", stationID, ErrInvalidID)
	}
	return fetch(ctx, s, "sensors", "sensors:"+strconv.Itoa(stationID),
		func(ctx context.Context) ([]Sensor, error) { return s.provider.FetchSensors(ctx, stationID) },
		func(ctx context.Context, v []Sensor) error { return s.cache.SaveSensors(ctx, stationID, v) },
		func(ctx context.Context) ([]Sensor, time.Time, error) { return s.cache.LoadSensors(ctx, stationID) },
	)
}

// SensorData returns the measurement series of a sensor.
func (s *Service) SensorData(ctx context.Context, sensorID int) (Result[SensorData], error) {
	if sensorID <= 0 {
		return Result[SensorData]{}, fmt.Errorf("sensor %d: %w", sensorID, ErrInvalidID)
	}
	return fetch(ctx, s, "sensor_data", "data:"+strconv.Itoa(sensorID),
		func(ctx context.Context) (SensorData, error) { return s.provider.FetchSensorData(ctx, sensorID) },
		func(ctx context.Context, v SensorData) error { return s.cache.SaveSensorData(ctx, sensorID, v) },
		func(ctx context.Context) (SensorData, time.Time, error) { return s.cache.LoadSensorData(ctx, sensorID) },
	)
}

// AirQualityIndex returns the current index of a station.
func (s *Service) AirQualityIndex(ctx context.Context, stationID int) (Result[AirQualityIndex], error) {
	if stationID <= 0 {
		return Result[AirQualityIndex]{Value: EmptyIndex()}, fmt.Errorf("station %d: %w", stationID, ErrInvalidID)
	}
	result, err := fetch(ctx, s, "air_quality_index", "index:"+strconv.Itoa(stationID),
		func(ctx context.Context) (AirQualityIndex, error) { return s.provider.FetchAirQualityIndex(ctx, stationID) },
		func(ctx context.Context, v AirQualityIndex) error { return s.cache.SaveAirQualityIndex(ctx, stationID, v) },
		func(ctx context.Context) (AirQualityIndex, time.Time, error) {
			return s.cache.LoadAirQualityIndex(ctx, stationID)
		},
	)
	if err != nil {
		result.Value = EmptyIndex()
	}
	return result, err
}

// Analyze loads a sensor's series and summarizes it, optionally restricted
// to window.
func (s *Service) Analyze(ctx context.Context, sensorID int, window *TimeRange) (Result[SeriesAnalysis], error) {
	if window != nil {
		if err := window.Validate(); err != nil {
			return Result[SeriesAnalysis]{}, err
		}
	}

	data, err := s.SensorData(ctx, sensorID)
	if err != nil {
		return Result[SeriesAnalysis]{}, err
	}

	values := data.Value.Values
	if window != nil {
		values = FilterByDateRange(values, window.From, window.To)
	}

	return Result[SeriesAnalysis]{
		Value: SeriesAnalysis{
			SensorID:       sensorID,
			Key:            data.Value.Key,
			Range:          window,
			AnalysisResult: Analyze(values),
		},
		Source:      data.Source,
		FetchedAt:   data.FetchedAt,
		ProviderErr: data.ProviderErr,
	}, nil
}

// fetch runs the network-first policy for one entity. Calls sharing key are
// collapsed into one. The shared call runs detached from every caller's
// cancellation; each caller stops waiting when its own ctx is done.
func fetch[T any](
	ctx context.Context,
	s *Service,
	entity, key string,
	network func(context.Context) (T, error),
	save func(context.Context, T) error,
	load func(context.Context) (T, time.Time, error),
) (Result[T], error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return fetchOnce(shared, s, entity, network, save, load)
	})

	select {
	case <-ctx.Done():
		var zero Result[T]
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug().Str("entity", entity).Str("key", key).Msg("shared in-flight fetch")
		}
		result, _ := res.Val.(Result[T])
		return result, res.Err
	}
}

func fetchOnce[T any](
	ctx context.Context,
	s *Service,
	entity string,
	network func(context.Context) (T, error),
	save func(context.Context, T) error,
	load func(context.Context) (T, time.Time, error),
) (Result[T], error) {
	netCtx, cancel := context.WithTimeout(ctx, s.timeout)
	value, err := network(netCtx)
	cancel()
	if err == nil {
		if saveErr := save(ctx, value); saveErr != nil {
			s.logger.Warn().Err(saveErr).Str("entity", entity).Msg("failed to write fetched data to cache")
		}
		return Result[T]{Value: value, Source: SourceNetwork, FetchedAt: s.clock.Now()}, nil
	}

	cached, updatedAt, cacheErr := load(ctx)
	if cacheErr != nil {
		s.logger.Error().
			Err(err).
			AnErr("cache_error", cacheErr).
			Str("entity", entity).
			Msg("provider failed and no cached data is available")
		return Result[T]{}, errors.Join(err, ErrNoCachedData)
	}

	s.logger.Warn().
		Err(err).
		Str("entity", entity).
		Time("cached_at", updatedAt).
		Msg("provider failed, serving cached data")
	if s.fallbacks != nil {
		s.fallbacks.CacheFallback(ctx, entity)
	}
	return Result[T]{Value: cached, Source: SourceCache, FetchedAt: updatedAt, ProviderErr: err}, nil
}
