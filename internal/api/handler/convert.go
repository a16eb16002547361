package handler

import (
	"math"

	"github.com/aqdesk/aqdesk/internal/airquality"
	"github.com/aqdesk/aqdesk/internal/api/models"
)

func metaFrom[T any](result airquality.Result[T]) models.Meta {
	meta := models.Meta{
		Source:    string(result.Source),
		FetchedAt: models.NewTimestamp(result.FetchedAt),
		Stale:     result.Stale(),
	}
	if result.Stale() && result.ProviderErr != nil {
		meta.UpstreamError = result.ProviderErr.Error()
	}
	return meta
}

func toStation(s airquality.Station) models.Station {
	return models.Station{
		ID:          s.ID,
		StationName: s.StationName,
		Lat:         s.GegrLat,
		Lon:         s.GegrLon,
		City: models.City{
			ID:            s.City.ID,
			Name:          s.City.Name,
			CommuneName:   s.City.Commune.CommuneName,
			DistrictName:  s.City.Commune.DistrictName,
			ProvinceName:  s.City.Commune.ProvinceName,
			AddressStreet: s.City.AddressStreet,
		},
	}
}

func toStations(stations []airquality.Station) []models.Station {
	out := make([]models.Station, 0, len(stations))
	for _, s := range stations {
		out = append(out, toStation(s))
	}
	return out
}

func toNearby(found []airquality.StationDistance) []models.NearbyStation {
	out := make([]models.NearbyStation, 0, len(found))
	for _, f := range found {
		out = append(out, models.NearbyStation{
			Station:    toStation(f.Station),
			DistanceKm: math.Round(f.Distance/10) / 100,
		})
	}
	return out
}

func toSensors(sensors []airquality.Sensor) []models.Sensor {
	out := make([]models.Sensor, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, models.Sensor{
			ID:           s.ID,
			StationID:    s.StationID,
			ParamName:    s.Param.ParamName,
			ParamFormula: s.Param.ParamFormula,
			ParamCode:    s.Param.ParamCode,
			IDParam:      s.Param.IDParam,
		})
	}
	return out
}

func toMeasurement(v airquality.MeasurementValue) models.Measurement {
	m := models.Measurement{Date: models.NewTimestamp(v.Date)}
	if !math.IsNaN(v.Value) {
		value := v.Value
		m.Value = &value
	}
	return m
}

func toMeasurements(values []airquality.MeasurementValue) []models.Measurement {
	out := make([]models.Measurement, 0, len(values))
	for _, v := range values {
		out = append(out, toMeasurement(v))
	}
	return out
}

func toIndexLevel(l airquality.IndexLevel) models.IndexLevel {
	level := models.IndexLevel{Name: l.IndexLevelName}
	if l.Available() {
		id := l.ID
		level.ID = &id
	}
	return level
}

func toIndex(result airquality.Result[airquality.AirQualityIndex]) models.AirQualityIndex {
	index := result.Value
	pollutants := make(map[string]models.IndexLevel, len(airquality.Pollutants))
	for _, p := range airquality.Pollutants {
		pollutants[string(p)] = toIndexLevel(index.Level(p))
	}
	return models.AirQualityIndex{
		Meta:           metaFrom(result),
		StationID:      index.StationID,
		CalcDate:       models.NewTimestamp(index.StCalcDate),
		SourceDataDate: models.NewTimestamp(index.StSourceDataDate),
		Overall:        toIndexLevel(index.StIndexLevel),
		Pollutants:     pollutants,
	}
}

func toAnalysis(result airquality.Result[airquality.SeriesAnalysis]) models.Analysis {
	a := result.Value
	out := models.Analysis{
		Meta:       metaFrom(result),
		SensorID:   a.SensorID,
		Key:        a.Key,
		Average:    a.Average,
		Trend:      string(a.Trend),
		TrendSlope: a.TrendSlope,
		ValidCount: a.ValidCount,
	}
	if a.Range != nil {
		out.Range = &models.TimeRange{From: models.Timestamp(a.Range.From), To: models.Timestamp(a.Range.To)}
	}
	if a.MinVal != nil {
		m := toMeasurement(*a.MinVal)
		out.Min = &m
	}
	if a.MaxVal != nil {
		m := toMeasurement(*a.MaxVal)
		out.Max = &m
	}
	return out
}
