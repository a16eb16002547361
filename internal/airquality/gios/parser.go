package gios

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqdesk/aqdesk/internal/airquality"
)

// Observer receives counts of input the parser discarded.
type Observer interface {
	RecordsDropped(entity string, n int)
	DatesSkipped(n int)
}

// ParserConfig holds configuration for the Parser.
type ParserConfig struct {
	// Location is used for timestamps without a zone (default: UTC).
	Location *time.Location

	// Logger receives parse diagnostics. Zero value discards them.
	Logger zerolog.Logger

	// Observer is notified of dropped records and skipped dates (optional).
	Observer Observer
}

// Parser turns GIOŚ JSON, from the network or from the cache, into domain
// values. It never fails: malformed input degrades to empty or sentinel
// results, and a Parser is safe for concurrent use.
type Parser struct {
	loc      *time.Location
	logger   zerolog.Logger
	observer Observer
}

// NewParser creates a new Parser.
func NewParser(cfg ParserConfig) *Parser {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{
		loc:      loc,
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}
}

var defaultParser = NewParser(ParserConfig{Logger: zerolog.Nop()})

// ParseStations parses a station list with a UTC, silent parser.
func ParseStations(data []byte) []airquality.Station {
	return defaultParser.ParseStations(data)
}

// ParseSensors parses a sensor list with a UTC, silent parser.
func ParseSensors(data []byte) []airquality.Sensor {
	return defaultParser.ParseSensors(data)
}

// ParseSensorData parses a measurement series with a UTC, silent parser.
func ParseSensorData(data []byte) airquality.SensorData {
	return defaultParser.ParseSensorData(data)
}

// ParseAirQualityIndex parses an air quality index with a UTC, silent parser.
func ParseAirQualityIndex(data []byte) airquality.AirQualityIndex {
	return defaultParser.ParseAirQualityIndex(data)
}

// ParseStations expects a JSON array of station objects. Stations without
// a valid id are dropped.
func (p *Parser) ParseStations(data []byte) []airquality.Station {
	elems, ok := p.topLevelArray(data, "stations")
	if !ok {
		return []airquality.Station{}
	}

	stations := make([]airquality.Station, 0, len(elems))
	dropped := 0
	for _, elem := range elems {
		obj, ok := asObject(elem)
		if !ok {
			continue
		}
		station := stationFromObject(obj)
		if station.ID == airquality.UnknownID {
			dropped++
			continue
		}
		stations = append(stations, station)
	}

	p.recordDropped("station", dropped)
	return stations
}

func stationFromObject(obj object) airquality.Station {
	cityObj := obj.nested("city")
	communeObj := cityObj.nested("commune")

	return airquality.Station{
		ID:          obj.integer("id", airquality.UnknownID),
		StationName: obj.str("stationName"),
		GegrLat:     obj.float("gegrLat", 0),
		GegrLon:     obj.float("gegrLon", 0),
		City: airquality.City{
			ID:            cityObj.integer("id", airquality.UnknownID),
			Name:          cityObj.str("name"),
			AddressStreet: cityObj.str("addressStreet"),
			Commune: airquality.Commune{
				CommuneName:  communeObj.str("communeName"),
				DistrictName: communeObj.str("districtName"),
				ProvinceName: communeObj.str("provinceName"),
			},
		},
	}
}

// ParseSensors expects a JSON array of sensor objects. Sensors without a
// valid id are dropped.
func (p *Parser) ParseSensors(data []byte) []airquality.Sensor {
	elems, ok := p.topLevelArray(data, "sensors")
	if !ok {
		return []airquality.Sensor{}
	}

	sensors := make([]airquality.Sensor, 0, len(elems))
	dropped := 0
	for _, elem := range elems {
		obj, ok := asObject(elem)
		if !ok {
			continue
		}
		sensor := sensorFromObject(obj)
		if sensor.ID == airquality.UnknownID {
			dropped++
			continue
		}
		sensors = append(sensors, sensor)
	}

	p.recordDropped("sensor", dropped)
	return sensors
}

func sensorFromObject(obj object) airquality.Sensor {
	paramObj := obj.nested("param")

	return airquality.Sensor{
		ID:        obj.integer("id", airquality.UnknownID),
		StationID: obj.integer("stationId", airquality.UnknownID),
		Param: airquality.Parameter{
			ParamName:    paramObj.str("paramName"),
			ParamFormula: paramObj.str("paramFormula"),
			ParamCode:    paramObj.str("paramCode"),
			IDParam:      paramObj.integer("idParam", airquality.UnknownID),
		},
	}
}

// ParseSensorData expects a JSON object with a key and a values array.
// Entries whose date cannot be parsed are skipped; null or non-numeric
// values become NaN.
func (p *Parser) ParseSensorData(data []byte) airquality.SensorData {
	result := airquality.SensorData{Values: []airquality.MeasurementValue{}}

	obj, ok := p.topLevelObject(data, "sensor data")
	if !ok {
		return result
	}
	result.Key = obj.str("key")

	skipped := 0
	for _, elem := range obj.array("values") {
		valObj, ok := asObject(elem)
		if !ok {
			continue
		}

		dateStr := valObj.str("date")
		date, ok := parseDate(dateStr, p.loc)
		if !ok {
			p.logger.Warn().Str("key", result.Key).Str("date", dateStr).Msg("skipping measurement with unparseable date")
			skipped++
			continue
		}

		result.Values = append(result.Values, airquality.MeasurementValue{
			Date:  date,
			Value: p.measurementValue(valObj, dateStr),
		})
	}

	if skipped > 0 && p.observer != nil {
		p.observer.DatesSkipped(skipped)
	}
	return result
}

func (p *Parser) measurementValue(obj object, dateStr string) float64 {
	if obj.isNull("value") {
		return math.NaN()
	}
	v, ok := obj.floatOK("value")
	if !ok {
		p.logger.Debug().Str("date", dateStr).Interface("value", obj["value"]).Msg("non-numeric measurement value read as no data")
		return math.NaN()
	}
	return v
}

// ParseAirQualityIndex expects a JSON object. The station id is read from
// "id" as returned by the API, or from "stationId" as written to the cache.
func (p *Parser) ParseAirQualityIndex(data []byte) airquality.AirQualityIndex {
	index := airquality.EmptyIndex()

	obj, ok := p.topLevelObject(data, "air quality index")
	if !ok {
		return index
	}

	if obj.isNull("id") {
		index.StationID = obj.integer("stationId", airquality.UnknownID)
	} else {
		index.StationID = obj.integer("id", airquality.UnknownID)
	}
	index.StCalcDate, _ = parseDate(obj.str("stCalcDate"), p.loc)
	index.StSourceDataDate, _ = parseDate(obj.str("stSourceDataDate"), p.loc)

	index.StIndexLevel = parseIndexLevel(obj, "stIndexLevel")
	index.SO2IndexLevel = parseIndexLevel(obj, "so2IndexLevel")
	index.NO2IndexLevel = parseIndexLevel(obj, "no2IndexLevel")
	index.COIndexLevel = parseIndexLevel(obj, "coIndexLevel")
	index.PM10IndexLevel = parseIndexLevel(obj, "pm10IndexLevel")
	index.PM25IndexLevel = parseIndexLevel(obj, "pm25IndexLevel")
	index.O3IndexLevel = parseIndexLevel(obj, "o3IndexLevel")
	index.C6H6IndexLevel = parseIndexLevel(obj, "c6h6IndexLevel")

	if !index.Valid() {
		p.logger.Warn().Msg("air quality index has no valid station id")
	}
	return index
}

// parseIndexLevel reads the level object at key. Anything other than an
// object yields the unavailable level.
func parseIndexLevel(obj object, key string) airquality.IndexLevel {
	levelObj, ok := obj.nestedOK(key)
	if !ok {
		return airquality.UnavailableLevel()
	}
	return airquality.IndexLevel{
		ID:             levelObj.integer("id", airquality.UnknownID),
		IndexLevelName: levelObj.strOr("indexLevelName", airquality.UnavailableLevelName),
	}
}

func (p *Parser) topLevelArray(data []byte, what string) ([]any, bool) {
	v, ok := decode(data)
	if !ok {
		p.logger.Warn().Str("entity", what).Msg("input is not valid JSON")
		return nil, false
	}
	elems, ok := v.([]any)
	if !ok {
		p.logger.Warn().Str("entity", what).Msg("input JSON is not an array")
		return nil, false
	}
	return elems, true
}

func (p *Parser) topLevelObject(data []byte, what string) (object, bool) {
	v, ok := decode(data)
	if !ok {
		p.logger.Warn().Str("entity", what).Msg("input is not valid JSON")
		return nil, false
	}
	obj, ok := asObject(v)
	if !ok {
		p.logger.Warn().Str("entity", what).Msg("input JSON is not an object")
		return nil, false
	}
	return obj, true
}

func (p *Parser) recordDropped(entity string, n int) {
	if n == 0 {
		return
	}
	p.logger.Warn().Str("entity", entity).Int("dropped", n).Msg("dropped records without a valid id")
	if p.observer != nil {
		p.observer.RecordsDropped(entity, n)
	}
}
