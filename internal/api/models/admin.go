package models

// RefreshRequest is the body of the admin refresh endpoint. An empty
// StationIDs refreshes the configured stations.
type RefreshRequest struct {
	StationIDs []int `json:"stationIds,omitempty"`
}

// RefreshResponse summarizes a refresh pass.
type RefreshResponse struct {
	StartedAt    Timestamp      `json:"startedAt"`
	DurationMs   int64          `json:"durationMs"`
	Stations     int            `json:"stations"`
	Successful   int            `json:"successful"`
	Failed       int            `json:"failed"`
	SensorsSaved int            `json:"sensorsSaved"`
	Errors       []StationError `json:"errors,omitempty"`
}

// StationError is the failure of one station in a refresh pass.
type StationError struct {
	StationID int    `json:"stationId"`
	Error     string `json:"error"`
}
