package gios

import (
	"encoding/json"
	"math"

	"github.com/aqdesk/aqdesk/internal/airquality"
)

// Cache wire types. Field order here is the canonical field order on disk.

type communeJSON struct {
	CommuneName  string `json:"communeName"`
	DistrictName string `json:"districtName"`
	ProvinceName string `json:"provinceName"`
}

type cityJSON struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	AddressStreet string      `json:"addressStreet"`
	Commune       communeJSON `json:"commune"`
}

type stationJSON struct {
	ID          int      `json:"id"`
	StationName string   `json:"stationName"`
	GegrLat     float64  `json:"gegrLat"`
	GegrLon     float64  `json:"gegrLon"`
	City        cityJSON `json:"city"`
}

type parameterJSON struct {
	ParamName    string `json:"paramName"`
	ParamFormula string `json:"paramFormula"`
	ParamCode    string `json:"paramCode"`
	IDParam      int    `json:"idParam"`
}

type sensorJSON struct {
	ID        int           `json:"id"`
	StationID int           `json:"stationId"`
	Param     parameterJSON `json:"param"`
}

type measurementJSON struct {
	Date  *string  `json:"date"`
	Value *float64 `json:"value"`
}

type sensorDataJSON struct {
	Key    string            `json:"key"`
	Values []measurementJSON `json:"values"`
}

type indexLevelJSON struct {
	ID             int    `json:"id"`
	IndexLevelName string `json:"indexLevelName"`
}

type airQualityIndexJSON struct {
	StationID        int            `json:"stationId"`
	StCalcDate       *string        `json:"stCalcDate"`
	StSourceDataDate *string        `json:"stSourceDataDate"`
	StIndexLevel     indexLevelJSON `json:"stIndexLevel"`
	SO2IndexLevel    indexLevelJSON `json:"so2IndexLevel"`
	NO2IndexLevel    indexLevelJSON `json:"no2IndexLevel"`
	COIndexLevel     indexLevelJSON `json:"coIndexLevel"`
	PM10IndexLevel   indexLevelJSON `json:"pm10IndexLevel"`
	PM25IndexLevel   indexLevelJSON `json:"pm25IndexLevel"`
	O3IndexLevel     indexLevelJSON `json:"o3IndexLevel"`
	C6H6IndexLevel   indexLevelJSON `json:"c6h6IndexLevel"`
}

// MarshalStations serializes stations to the cache format.
func MarshalStations(stations []airquality.Station) ([]byte, error) {
	out := make([]stationJSON, 0, len(stations))
	for i := range stations {
		out = append(out, toStationJSON(&stations[i]))
	}
	return marshal(out)
}

// MarshalSensors serializes sensors to the cache format.
func MarshalSensors(sensors []airquality.Sensor) ([]byte, error) {
	out := make([]sensorJSON, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, sensorJSON{
			ID:        s.ID,
			StationID: s.StationID,
			Param: parameterJSON{
				ParamName:    s.Param.ParamName,
				ParamFormula: s.Param.ParamFormula,
				ParamCode:    s.Param.ParamCode,
				IDParam:      s.Param.IDParam,
			},
		})
	}
	return marshal(out)
}

// MarshalSensorData serializes a measurement series. NaN values and unset
// dates are written as null.
func MarshalSensorData(data airquality.SensorData) ([]byte, error) {
	out := sensorDataJSON{
		Key:    data.Key,
		Values: make([]measurementJSON, 0, len(data.Values)),
	}
	for _, v := range data.Values {
		m := measurementJSON{Date: formatDate(v.Date)}
		if !math.IsNaN(v.Value) && !math.IsInf(v.Value, 0) {
			value := v.Value
			m.Value = &value
		}
		out.Values = append(out.Values, m)
	}
	return marshal(out)
}

// MarshalAirQualityIndex serializes an air quality index.
func MarshalAirQualityIndex(index airquality.AirQualityIndex) ([]byte, error) {
	return marshal(airQualityIndexJSON{
		StationID:        index.StationID,
		StCalcDate:       formatDate(index.StCalcDate),
		StSourceDataDate: formatDate(index.StSourceDataDate),
		StIndexLevel:     toIndexLevelJSON(index.StIndexLevel),
		SO2IndexLevel:    toIndexLevelJSON(index.SO2IndexLevel),
		NO2IndexLevel:    toIndexLevelJSON(index.NO2IndexLevel),
		COIndexLevel:     toIndexLevelJSON(index.COIndexLevel),
		PM10IndexLevel:   toIndexLevelJSON(index.PM10IndexLevel),
		PM25IndexLevel:   toIndexLevelJSON(index.PM25IndexLevel),
		O3IndexLevel:     toIndexLevelJSON(index.O3IndexLevel),
		C6H6IndexLevel:   toIndexLevelJSON(index.C6H6IndexLevel),
	})
}

func toStationJSON(s *airquality.Station) stationJSON {
	return stationJSON{
		ID:          s.ID,
		StationName: s.StationName,
		GegrLat:     s.GegrLat,
		GegrLon:     s.GegrLon,
		City: cityJSON{
			ID:            s.City.ID,
			Name:          s.City.Name,
			AddressStreet: s.City.AddressStreet,
			Commune: communeJSON{
				CommuneName:  s.City.Commune.CommuneName,
				DistrictName: s.City.Commune.DistrictName,
				ProvinceName: s.City.Commune.ProvinceName,
			},
		},
	}
}

func toIndexLevelJSON(l airquality.IndexLevel) indexLevelJSON {
	return indexLevelJSON{ID: l.ID, IndexLevelName: l.IndexLevelName}
}

func marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "    ")
}
