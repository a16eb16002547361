package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqdesk/aqdesk/internal/airquality"
	"github.com/aqdesk/aqdesk/internal/airquality/gios"
	"github.com/aqdesk/aqdesk/internal/worker"
)

var errUpstream = errors.New("upstream unavailable")

// fakeService serves two sensors per station. Behaviour is tuned per id.
type fakeService struct {
	mu           sync.Mutex
	stations     []int
	sensorErr    map[int]error
	staleSensors map[int]bool
	dataErr      map[int]error
	noIndex      map[int]bool
	delay        time.Duration

	sensorCalls []int
	dataCalls   []int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeService() *fakeService {
	return &fakeService{
		sensorErr:    make(map[int]error),
		staleSensors: make(map[int]bool),
		dataErr:      make(map[int]error),
		noIndex:      make(map[int]bool),
	}
}

func (f *fakeService) Stations(context.Context) (airquality.Result[[]airquality.Station], error) {
	stations := make([]airquality.Station, 0, len(f.stations))
	for _, id := range f.stations {
		stations = append(stations, airquality.Station{ID: id})
	}
	return airquality.Result[[]airquality.Station]{Value: stations, Source: airquality.SourceNetwork}, nil
}

func (f *fakeService) Sensors(ctx context.Context, stationID int) (airquality.Result[[]airquality.Sensor], error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxInFlight.Load()
		if n <= prev || f.maxInFlight.CompareAndSwap(prev, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return airquality.Result[[]airquality.Sensor]{}, ctx.Err()
		}
	}

	f.mu.Lock()
	f.sensorCalls = append(f.sensorCalls, stationID)
	err := f.sensorErr[stationID]
	stale := f.staleSensors[stationID]
	f.mu.Unlock()

	if err != nil {
		return airquality.Result[[]airquality.Sensor]{}, err
	}
	result := airquality.Result[[]airquality.Sensor]{
		Value: []airquality.Sensor{
			{ID: stationID*100 + 1, StationID: stationID},
			{ID: stationID*100 + 2, StationID: stationID},
		},
		Source: airquality.SourceNetwork,
	}
	if stale {
		result.Source = airquality.SourceCache
		result.ProviderErr = errUpstream
	}
	return result, nil
}

func (f *fakeService) SensorData(_ context.Context, sensorID int) (airquality.Result[airquality.SensorData], error) {
	f.mu.Lock()
	f.dataCalls = append(f.dataCalls, sensorID)
	err := f.dataErr[sensorID]
	f.mu.Unlock()

	if err != nil {
		return airquality.Result[airquality.SensorData]{}, err
	}
	return airquality.Result[airquality.SensorData]{
		Value:  airquality.SensorData{Key: "PM10"},
		Source: airquality.SourceNetwork,
	}, nil
}

func (f *fakeService) AirQualityIndex(_ context.Context, stationID int) (airquality.Result[airquality.AirQualityIndex], error) {
	if f.noIndex[stationID] {
		notFound := &gios.TransportError{Op: "fetch index", StatusCode: 404, Err: gios.ErrIndexUnavailable}
		return airquality.Result[airquality.AirQualityIndex]{Value: airquality.EmptyIndex()},
			errors.Join(notFound, airquality.ErrNoCachedData)
	}
	index := airquality.EmptyIndex()
	index.StationID = stationID
	return airquality.Result[airquality.AirQualityIndex]{Value: index, Source: airquality.SourceNetwork}, nil
}

func newJob(svc worker.Service, cfg worker.RefreshConfig) *worker.RefreshJob {
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  cfg,
		Service: svc,
		Clock:   clockwork.NewFakeClockAt(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)),
		Logger:  zerolog.Nop(),
	})
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.StationTimeout)
	assert.Empty(t, cfg.StationIDs)
}

func TestRefreshJob_Run(t *testing.T) {
	svc := newFakeService()
	job := newJob(svc, worker.RefreshConfig{StationIDs: []int{14, 16}})

	result := job.Run(context.Background())

	assert.Equal(t, 2, result.Stations)
	assert.Equal(t, 2, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 4, result.SensorsRefreshed)
	assert.Empty(t, result.Errors)
	assert.ElementsMatch(t, []int{14, 16}, svc.sensorCalls)
	assert.ElementsMatch(t, []int{1401, 1402, 1601, 1602}, svc.dataCalls)
}

func TestRefreshJob_SkipsDuplicateAndInvalidIDs(t *testing.T) {
	svc := newFakeService()
	job := newJob(svc, worker.RefreshConfig{})

	result := job.RunStations(context.Background(), []int{14, 14, 0, -3, 16})

	assert.Equal(t, 2, result.Stations)
	assert.ElementsMatch(t, []int{14, 16}, svc.sensorCalls)
}

func TestRefreshJob_CollectsErrors(t *testing.T) {
	svc := newFakeService()
	svc.sensorErr[16] = errUpstream
	svc.dataErr[1402] = errUpstream
	job := newJob(svc, worker.RefreshConfig{})

	result := job.RunStations(context.Background(), []int{16, 14, 20})

	assert.Equal(t, 3, result.Stations)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 3, result.SensorsRefreshed)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, 14, result.Errors[0].StationID, "errors are ordered by station")
	assert.Equal(t, 1402, result.Errors[0].SensorID)
	assert.Equal(t, "data", result.Errors[0].Op)
	assert.Equal(t, 16, result.Errors[1].StationID)
	assert.Equal(t, "sensors", result.Errors[1].Op)
	assert.ErrorIs(t, result.Errors[1], errUpstream)
	assert.Equal(t, "station 14 sensor 1402 data: upstream unavailable", result.Errors[0].Error())
}

func TestRefreshJob_CachedResultsCountAsFailures(t *testing.T) {
	svc := newFakeService()
	svc.staleSensors[14] = true
	job := newJob(svc, worker.RefreshConfig{})

	result := job.RunStations(context.Background(), []int{14})

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], errUpstream)
	assert.Equal(t, 2, result.SensorsRefreshed, "sensor data is still refreshed from the cached sensor list")
}

func TestRefreshJob_MissingIndexIsNotAFailure(t *testing.T) {
	svc := newFakeService()
	svc.noIndex[14] = true
	job := newJob(svc, worker.RefreshConfig{})

	result := job.RunStations(context.Background(), []int{14})

	assert.Equal(t, 1, result.Successful)
	assert.Empty(t, result.Errors)
}

func TestRefreshJob_BoundedConcurrency(t *testing.T) {
	svc := newFakeService()
	svc.delay = 20 * time.Millisecond
	job := newJob(svc, worker.RefreshConfig{Concurrency: 2})

	result := job.RunStations(context.Background(), []int{1, 2, 3, 4, 5, 6})

	assert.Equal(t, 6, result.Successful)
	assert.LessOrEqual(t, svc.maxInFlight.Load(), int32(2))
}

func TestRefreshJob_StationTimeout(t *testing.T) {
	svc := newFakeService()
	svc.delay = time.Second
	job := newJob(svc, worker.RefreshConfig{StationTimeout: 10 * time.Millisecond})

	result := job.RunStations(context.Background(), []int{14})

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], context.DeadlineExceeded)
}

func TestRefreshJob_CancelledContext(t *testing.T) {
	svc := newFakeService()
	job := newJob(svc, worker.RefreshConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.RunStations(ctx, []int{14, 16})

	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, svc.sensorCalls)
	for _, e := range result.Errors {
		assert.ErrorIs(t, e, context.Canceled)
	}
}

func TestRefreshJob_RunAll(t *testing.T) {
	svc := newFakeService()
	svc.stations = []int{14, 16, 114}
	job := newJob(svc, worker.RefreshConfig{StationIDs: []int{1}})

	result, err := job.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Stations)
	assert.ElementsMatch(t, []int{14, 16, 114}, svc.sensorCalls)
}

func TestRefreshJob_Stats(t *testing.T) {
	svc := newFakeService()
	svc.sensorErr[16] = errUpstream
	job := newJob(svc, worker.RefreshConfig{StationIDs: []int{14, 16}})

	job.Run(context.Background())
	job.Run(context.Background())

	stats := job.Stats()
	assert.Equal(t, int64(2), stats.Runs)
	assert.Equal(t, 2, stats.LastStations)
	assert.Equal(t, 1, stats.LastFailed)
	assert.Equal(t, int64(2), stats.TotalFailures)
	assert.False(t, stats.LastRunAt.IsZero())
}

func TestRefreshJob_NoStations(t *testing.T) {
	job := newJob(newFakeService(), worker.RefreshConfig{})

	result := job.Run(context.Background())

	assert.Zero(t, result.Stations)
	assert.Zero(t, result.Successful)
	assert.Zero(t, result.Failed)
}
