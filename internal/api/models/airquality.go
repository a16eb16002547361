package models

// Station is a measuring station.
type Station struct {
	ID          int     `json:"id"`
	StationName string  `json:"stationName"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	City        City    `json:"city"`
}

// City is a station's address.
type City struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	CommuneName   string `json:"communeName,omitempty"`
	DistrictName  string `json:"districtName,omitempty"`
	ProvinceName  string `json:"provinceName,omitempty"`
	AddressStreet string `json:"addressStreet,omitempty"`
}

// StationList is the response of the station list endpoint.
type StationList struct {
	Meta  Meta      `json:"meta"`
	Items []Station `json:"items"`
}

// NearbyStation is a station with its distance from the query point.
type NearbyStation struct {
	Station
	DistanceKm float64 `json:"distanceKm"`
}

// NearbyStationList is the response of the nearby stations endpoint.
type NearbyStationList struct {
	Meta  Meta            `json:"meta"`
	Items []NearbyStation `json:"items"`
}

// Sensor is a measuring stand installed at a station.
type Sensor struct {
	ID           int    `json:"id"`
	StationID    int    `json:"stationId"`
	ParamName    string `json:"paramName"`
	ParamFormula string `json:"paramFormula"`
	ParamCode    string `json:"paramCode"`
	IDParam      int    `json:"idParam"`
}

// SensorList is the response of the station sensors endpoint.
type SensorList struct {
	Meta  Meta     `json:"meta"`
	Items []Sensor `json:"items"`
}

// Measurement is one reading. Date and Value are null when missing.
type Measurement struct {
	Date  *Timestamp `json:"date"`
	Value *float64   `json:"value"`
}

// SensorData is the response of the sensor data endpoint.
type SensorData struct {
	Meta     Meta          `json:"meta"`
	SensorID int           `json:"sensorId"`
	Key      string        `json:"key"`
	Values   []Measurement `json:"values"`
}

// IndexLevel is one level of the air quality index. ID is null when the
// level is unavailable.
type IndexLevel struct {
	ID   *int   `json:"id"`
	Name string `json:"name"`
}

// AirQualityIndex is the response of the station index endpoint.
type AirQualityIndex struct {
	Meta           Meta                  `json:"meta"`
	StationID      int                   `json:"stationId"`
	CalcDate       *Timestamp            `json:"calcDate,omitempty"`
	SourceDataDate *Timestamp            `json:"sourceDataDate,omitempty"`
	Overall        IndexLevel            `json:"overall"`
	Pollutants     map[string]IndexLevel `json:"pollutants"`
}

// TimeRange is the optional analysis window.
type TimeRange struct {
	From Timestamp `json:"from"`
	To   Timestamp `json:"to"`
}

// Analysis is the response of the sensor analysis endpoint. Min, Max and
// Average are null when the series had no valid readings.
type Analysis struct {
	Meta       Meta         `json:"meta"`
	SensorID   int          `json:"sensorId"`
	Key        string       `json:"key"`
	Range      *TimeRange   `json:"range,omitempty"`
	Min        *Measurement `json:"min"`
	Max        *Measurement `json:"max"`
	Average    *float64     `json:"average"`
	Trend      string       `json:"trend"`
	TrendSlope float64      `json:"trendSlope"`
	ValidCount int          `json:"validCount"`
}
