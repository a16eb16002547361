package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/aqdesk/aqdesk/internal/airquality"
	"github.com/aqdesk/aqdesk/internal/airquality/gios"
)

// Service is the part of airquality.Service the refresh job drives. Every
// successful call writes through to the cache.
type Service interface {
	Stations(ctx context.Context) (airquality.Result[[]airquality.Station], error)
	Sensors(ctx context.Context, stationID int) (airquality.Result[[]airquality.Sensor], error)
	SensorData(ctx context.Context, sensorID int) (airquality.Result[airquality.SensorData], error)
	AirQualityIndex(ctx context.Context, stationID int) (airquality.Result[airquality.AirQualityIndex], error)
}

// RefreshJob refreshes stations, their sensors, sensor data and index.
type RefreshJob struct {
	config  RefreshConfig
	service Service
	clock   clockwork.Clock
	logger  zerolog.Logger

	mu    sync.RWMutex
	stats RefreshStats
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Service Service
	Clock   clockwork.Clock
	Logger  zerolog.Logger
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		service: cfg.Service,
		clock:   clock,
		logger:  cfg.Logger,
	}
}

// RefreshResult contains the result of a refresh pass.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Stations         int
	Successful       int
	Failed           int
	SensorsRefreshed int

	// Errors are ordered by station id.
	Errors []RefreshError
}

// RefreshError is one failed step of a station refresh. SensorID is zero
// for station-level steps.
type RefreshError struct {
	StationID int
	SensorID  int
	Op        string
	Err       error
}

func (e RefreshError) Error() string {
	if e.SensorID != 0 {
		return fmt.Sprintf("station %d sensor %d %s: %v", e.StationID, e.SensorID, e.Op, e.Err)
	}
	return fmt.Sprintf("station %d %s: %v", e.StationID, e.Op, e.Err)
}

func (e RefreshError) Unwrap() error {
	return e.Err
}

// RefreshStats summarizes the passes run so far.
type RefreshStats struct {
	Runs          int64
	LastRunAt     time.Time
	LastDuration  time.Duration
	LastStations  int
	LastFailed    int
	TotalFailures int64
}

// Run refreshes the configured stations.
func (j *RefreshJob) Run(ctx context.Context) RefreshResult {
	return j.RunStations(ctx, j.config.StationIDs)
}

// RunAll fetches the station list and refreshes every station in it.
func (j *RefreshJob) RunAll(ctx context.Context) (RefreshResult, error) {
	stations, err := j.service.Stations(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("list stations: %w", err)
	}
	if stations.Stale() {
		return RefreshResult{}, fmt.Errorf("list stations: %w", stations.ProviderErr)
	}

	ids := make([]int, 0, len(stations.Value))
	for _, s := range stations.Value {
		ids = append(ids, s.ID)
	}
	return j.RunStations(ctx, ids), nil
}

// RunStations refreshes the given stations with bounded concurrency.
// Duplicate and non-positive ids are skipped.
func (j *RefreshJob) RunStations(ctx context.Context, stationIDs []int) RefreshResult {
	ids := uniqueIDs(stationIDs)
	start := j.clock.Now()
	result := RefreshResult{StartTime: start, Stations: len(ids)}

	j.logger.Info().
		Int("stations", len(ids)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting station refresh")

	idsChan := make(chan int, len(ids))
	results := make(chan stationResult, len(ids))

	var wg sync.WaitGroup
	for range min(j.config.Concurrency, len(ids)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range idsChan {
				if ctx.Err() != nil {
					results <- stationResult{stationID: id, errors: []RefreshError{{StationID: id, Op: "refresh", Err: ctx.Err()}}}
					continue
				}
				results <- j.refreshStation(ctx, id)
			}
		}()
	}

	for _, id := range ids {
		idsChan <- id
	}
	close(idsChan)

	go func() {
		wg.Wait()
		close(results)
	}()

	for sr := range results {
		if len(sr.errors) == 0 {
			result.Successful++
		} else {
			result.Failed++
		}
		result.SensorsRefreshed += sr.sensorsRefreshed
		result.Errors = append(result.Errors, sr.errors...)
	}
	slices.SortStableFunc(result.Errors, func(a, b RefreshError) int {
		return a.StationID - b.StationID
	})

	result.EndTime = j.clock.Now()
	result.Duration = result.EndTime.Sub(start)
	j.record(result)

	event := j.logger.Info()
	if result.Failed > 0 {
		event = j.logger.Warn()
	}
	event.
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("sensors_refreshed", result.SensorsRefreshed).
		Msg("station refresh completed")

	return result
}

type stationResult struct {
	stationID        int
	sensorsRefreshed int
	errors           []RefreshError
}

// refreshStation fetches a station's sensors, index and every sensor's data.
// Results served from the cache count as failures since nothing was refreshed.
func (j *RefreshJob) refreshStation(ctx context.Context, stationID int) stationResult {
	ctx, cancel := context.WithTimeout(ctx, j.config.StationTimeout)
	defer cancel()

	result := stationResult{stationID: stationID}
	fail := func(sensorID int, op string, err error) {
		result.errors = append(result.errors, RefreshError{StationID: stationID, SensorID: sensorID, Op: op, Err: err})
	}

	sensors, err := j.service.Sensors(ctx, stationID)
	if err != nil {
		fail(0, "sensors", err)
		return result
	}
	if sensors.Stale() {
		fail(0, "sensors", sensors.ProviderErr)
	}

	index, err := j.service.AirQualityIndex(ctx, stationID)
	switch {
	case errors.Is(err, gios.ErrIndexUnavailable):
		j.logger.Debug().Int("station_id", stationID).Msg("station publishes no air quality index")
	case err != nil:
		fail(0, "index", err)
	case index.Stale() && !errors.Is(index.ProviderErr, gios.ErrIndexUnavailable):
		fail(0, "index", index.ProviderErr)
	}

	for _, sensor := range sensors.Value {
		data, err := j.service.SensorData(ctx, sensor.ID)
		switch {
		case err != nil:
			fail(sensor.ID, "data", err)
		case data.Stale():
			fail(sensor.ID, "data", data.ProviderErr)
		default:
			result.sensorsRefreshed++
		}
	}

	if len(result.errors) > 0 {
		j.logger.Warn().
			Int("station_id", stationID).
			Int("errors", len(result.errors)).
			Err(result.errors[0]).
			Msg("station refresh incomplete")
	}
	return result
}

func (j *RefreshJob) record(result RefreshResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stats.Runs++
	j.stats.LastRunAt = result.EndTime
	j.stats.LastDuration = result.Duration
	j.stats.LastStations = result.Stations
	j.stats.LastFailed = result.Failed
	j.stats.TotalFailures += int64(result.Failed)
}

// Stats returns a snapshot of the refresh statistics.
func (j *RefreshJob) Stats() RefreshStats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
