// Package airquality provides the air quality domain model, the measurement
// series analyzer and the service that combines the GIOŚ provider with the
// on-disk cache.
package airquality

import (
	"errors"
	"math"
	"time"
)

// Service errors.
var (
	ErrNoCachedData = errors.New("no cached data available")
	ErrInvalidRange = errors.New("start of range must be before its end")
	ErrInvalidID    = errors.New("identifier must be positive")
)

// UnknownID marks an identifier that could not be resolved from the source data.
const UnknownID = -1

// UnavailableLevelName is the name carried by an IndexLevel with no data.
const UnavailableLevelName = "N/A"

// Commune is the administrative area a city belongs to.
type Commune struct {
	CommuneName  string
	DistrictName string
	ProvinceName string
}

// City is the address information of a measuring station.
type City struct {
	// ID is UnknownID when the city was not resolved.
	ID            int
	Name          string
	Commune       Commune
	AddressStreet string
}

// Station is a measuring station.
type Station struct {
	ID          int
	StationName string
	GegrLat     float64
	GegrLon     float64
	City        City
}

// Parameter describes the quantity a sensor measures.
type Parameter struct {
	ParamName    string
	ParamFormula string
	ParamCode    string
	IDParam      int
}

// Sensor is a measuring stand installed at a station.
type Sensor struct {
	ID        int
	StationID int
	Param     Parameter
}

// MeasurementValue is a single timestamped reading. A NaN Value means "no data"
// and a zero Date means the timestamp is unset.
type MeasurementValue struct {
	Date  time.Time
	Value float64
}

// Valid reports whether the reading has both a timestamp and a value.
func (m MeasurementValue) Valid() bool {
	return !m.Date.IsZero() && !math.IsNaN(m.Value)
}

// SensorData is the measurement series of one sensor. An empty Key means no data.
type SensorData struct {
	Key    string
	Values []MeasurementValue
}

// IndexLevel is one level of the air quality index scale.
type IndexLevel struct {
	ID             int
	IndexLevelName string
}

// UnavailableLevel returns the level used when the index has no value.
func UnavailableLevel() IndexLevel {
	return IndexLevel{ID: UnknownID, IndexLevelName: UnavailableLevelName}
}

// Available reports whether the level carries a value.
func (l IndexLevel) Available() bool {
	return l.ID != UnknownID
}

// AirQualityIndex is the computed index of a station, overall and per pollutant.
type AirQualityIndex struct {
	// StationID is UnknownID when no valid index was received.
	StationID        int
	StCalcDate       time.Time
	StSourceDataDate time.Time
	StIndexLevel     IndexLevel

	SO2IndexLevel  IndexLevel
	NO2IndexLevel  IndexLevel
	COIndexLevel   IndexLevel
	PM10IndexLevel IndexLevel
	PM25IndexLevel IndexLevel
	O3IndexLevel   IndexLevel
	C6H6IndexLevel IndexLevel
}

// EmptyIndex returns an index with every field at its sentinel value.
func EmptyIndex() AirQualityIndex {
	level := UnavailableLevel()
	return AirQualityIndex{
		StationID:      UnknownID,
		StIndexLevel:   level,
		SO2IndexLevel:  level,
		NO2IndexLevel:  level,
		COIndexLevel:   level,
		PM10IndexLevel: level,
		PM25IndexLevel: level,
		O3IndexLevel:   level,
		C6H6IndexLevel: level,
	}
}

// Valid reports whether the index belongs to a resolved station.
func (i AirQualityIndex) Valid() bool {
	return i.StationID != UnknownID
}

// Pollutant identifies one of the per-pollutant index levels.
type Pollutant string

const (
	PollutantSO2  Pollutant = "SO2"
	PollutantNO2  Pollutant = "NO2"
	PollutantCO   Pollutant = "CO"
	PollutantPM10 Pollutant = "PM10"
	PollutantPM25 Pollutant = "PM2.5"
	PollutantO3   Pollutant = "O3"
	PollutantC6H6 Pollutant = "C6H6"
)

// Pollutants lists the pollutants of the index in display order.
var Pollutants = []Pollutant{
	PollutantPM10, PollutantPM25, PollutantO3, PollutantNO2, PollutantSO2, PollutantCO, PollutantC6H6,
}

// Level returns the index level for a pollutant.
func (i AirQualityIndex) Level(p Pollutant) IndexLevel {
	switch p {
	case PollutantSO2:
		return i.SO2IndexLevel
	case PollutantNO2:
		return i.NO2IndexLevel
	case PollutantCO:
		return i.COIndexLevel
	case PollutantPM10:
		return i.PM10IndexLevel
	case PollutantPM25:
		return i.PM25IndexLevel
	case PollutantO3:
		return i.O3IndexLevel
	case PollutantC6H6:
		return i.C6H6IndexLevel
	default:
		return UnavailableLevel()
	}
}
