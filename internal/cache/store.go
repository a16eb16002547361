package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqdesk/aqdesk/internal/airquality"
	"github.com/aqdesk/aqdesk/internal/airquality/gios"
)

// Entry names.
const (
	stationsName = "stations.json"
)

func sensorsName(stationID int) string   { return fmt.Sprintf("station_%d_sensors.json", stationID) }
func sensorDataName(sensorID int) string { return fmt.Sprintf("sensor_%d_data.json", sensorID) }
func indexName(stationID int) string     { return fmt.Sprintf("station_%d_aqi.json", stationID) }

// StoreConfig holds configuration for the Store.
type StoreConfig struct {
	// Backend holds the documents.
	Backend Backend

	// Parser reads stored documents (default: UTC parser using Logger).
	Parser *gios.Parser

	// Logger for cache operations.
	Logger zerolog.Logger
}

// Store saves and loads domain values in the GIOŚ cache format. Writes to
// the same entry are serialized.
type Store struct {
	backend Backend
	parser  *gios.Parser
	logger  zerolog.Logger

	locks sync.Map // entry name -> *sync.Mutex
}

// NewStore creates a new Store.
func NewStore(cfg StoreConfig) *Store {
	parser := cfg.Parser
	if parser == nil {
		parser = gios.NewParser(gios.ParserConfig{Logger: cfg.Logger})
	}
	return &Store{
		backend: cfg.Backend,
		parser:  parser,
		logger:  cfg.Logger,
	}
}

// SaveStations stores the station list.
func (s *Store) SaveStations(ctx context.Context, stations []airquality.Station) error {
	data, err := gios.MarshalStations(stations)
	if err != nil {
		return fmt.Errorf("marshal stations: %w", err)
	}
	return s.write(ctx, stationsName, data)
}

// LoadStations returns the stored station list and when it was written.
func (s *Store) LoadStations(ctx context.Context) ([]airquality.Station, time.Time, error) {
	data, updatedAt, err := s.backend.Read(ctx, stationsName)
	if err != nil {
		return nil, time.Time{}, err
	}
	return s.parser.ParseStations(data), updatedAt, nil
}

// SaveSensors stores the sensors of a station.
func (s *Store) SaveSensors(ctx context.Context, stationID int, sensors []airquality.Sensor) error {
	if stationID <= 0 {
		return fmt.Errorf("save sensors for station %d: %w", stationID, ErrInvalidID)
	}
	data, err := gios.MarshalSensors(sensors)
	if err != nil {
		return fmt.Errorf("marshal sensors: %w", err)
	}
	return s.write(ctx, sensorsName(stationID), data)
}

// LoadSensors returns the stored sensors of a station. Sensors recorded
// under a different station are left out.
func (s *Store) LoadSensors(ctx context.Context, stationID int) ([]airquality.Sensor, time.Time, error) {
	if stationID <= 0 {
		return nil, time.Time{}, fmt.Errorf("load sensors for station %d: %w", stationID, ErrInvalidID)
	}
	data, updatedAt, err := s.backend.Read(ctx, sensorsName(stationID))
	if err != nil {
		return nil, time.Time{}, err
	}

	parsed := s.parser.ParseSensors(data)
	sensors := make([]airquality.Sensor, 0, len(parsed))
	for _, sensor := range parsed {
		if sensor.StationID != stationID && sensor.StationID != airquality.UnknownID {
			s.logger.Warn().
				Int("station_id", stationID).
				Int("sensor_id", sensor.ID).
				Int("sensor_station_id", sensor.StationID).
				Msg("ignoring cached sensor of another station")
			continue
		}
		sensors = append(sensors, sensor)
	}
	return sensors, updatedAt, nil
}

// SaveSensorData stores the measurement series of a sensor.
func (s *Store) SaveSensorData(ctx context.Context, sensorID int, data airquality.SensorData) error {
	if data.Key == "" {
		return fmt.Errorf("save data for sensor %d: %w", sensorID, ErrEmptyKey)
	}
	if sensorID <= 0 {
		return fmt.Errorf("save data for sensor %d: %w", sensorID, ErrInvalidID)
	}
	raw, err := gios.MarshalSensorData(data)
	if err != nil {
		return fmt.Errorf("marshal sensor data: %w", err)
	}
	return s.write(ctx, sensorDataName(sensorID), raw)
}

// LoadSensorData returns the stored measurement series of a sensor.
func (s *Store) LoadSensorData(ctx context.Context, sensorID int) (airquality.SensorData, time.Time, error) {
	if sensorID <= 0 {
		return airquality.SensorData{}, time.Time{}, fmt.Errorf("load data for sensor %d: %w", sensorID, ErrInvalidID)
	}
	raw, updatedAt, err := s.backend.Read(ctx, sensorDataName(sensorID))
	if err != nil {
		return airquality.SensorData{}, time.Time{}, err
	}
	return s.parser.ParseSensorData(raw), updatedAt, nil
}

// SaveAirQualityIndex stores the index of a station.
func (s *Store) SaveAirQualityIndex(ctx context.Context, stationID int, index airquality.AirQualityIndex) error {
	if stationID <= 0 {
		return fmt.Errorf("save index for station %d: %w", stationID, ErrInvalidID)
	}
	if index.StationID != stationID {
		return fmt.Errorf("save index of station %d as %d: %w", index.StationID, stationID, ErrStationMismatch)
	}
	raw, err := gios.MarshalAirQualityIndex(index)
	if err != nil {
		return fmt.Errorf("marshal air quality index: %w", err)
	}
	return s.write(ctx, indexName(stationID), raw)
}

// LoadAirQualityIndex returns the stored index of a station.
func (s *Store) LoadAirQualityIndex(ctx context.Context, stationID int) (airquality.AirQualityIndex, time.Time, error) {
	if stationID <= 0 {
		return airquality.EmptyIndex(), time.Time{}, fmt.Errorf("load index for station %d: %w", stationID, ErrInvalidID)
	}
	raw, updatedAt, err := s.backend.Read(ctx, indexName(stationID))
	if err != nil {
		return airquality.EmptyIndex(), time.Time{}, err
	}

	index := s.parser.ParseAirQualityIndex(raw)
	if index.StationID != stationID {
		return airquality.EmptyIndex(), time.Time{}, fmt.Errorf("load index for station %d: found %d: %w", stationID, index.StationID, ErrStationMismatch)
	}
	return index, updatedAt, nil
}

func (s *Store) write(ctx context.Context, name string, data []byte) error {
	mu, _ := s.locks.LoadOrStore(name, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	if err := s.backend.Write(ctx, name, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.logger.Debug().Str("entry", name).Int("bytes", len(data)).Msg("cache entry written")
	return nil
}
