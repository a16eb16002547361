package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqdesk/aqdesk/internal/airquality"
	"github.com/aqdesk/aqdesk/internal/api/models"
	"github.com/aqdesk/aqdesk/internal/api/response"
)

// SensorHandler handles sensor endpoints.
type SensorHandler struct {
	service AirQualityService
	logger  zerolog.Logger
}

// NewSensorHandler creates a new SensorHandler.
func NewSensorHandler(service AirQualityService, logger zerolog.Logger) *SensorHandler {
	return &SensorHandler{service: service, logger: logger}
}

// GetSensorData handles GET /v1/sensors/{sensorId}/data.
func (h *SensorHandler) GetSensorData(w http.ResponseWriter, r *http.Request) {
	sensorID, ok := pathID(w, r, "sensorId")
	if !ok {
		return
	}

	result, err := h.service.SensorData(r.Context(), sensorID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.SensorData{
		Meta:     metaFrom(result),
		SensorID: sensorID,
		Key:      result.Value.Key,
		Values:   toMeasurements(result.Value.Values),
	})
}

// GetAnalysis handles GET /v1/sensors/{sensorId}/analysis - min, max,
// average and trend of a sensor's series, optionally within [from, to].
func (h *SensorHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	sensorID, ok := pathID(w, r, "sensorId")
	if !ok {
		return
	}

	window, ok := parseWindow(w, r)
	if !ok {
		return
	}

	result, err := h.service.Analyze(r.Context(), sensorID, window)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toAnalysis(result))
}

// parseWindow reads the optional RFC 3339 from and to query parameters.
// Both or neither must be set.
func parseWindow(w http.ResponseWriter, r *http.Request) (*airquality.TimeRange, bool) {
	query := r.URL.Query()
	rawFrom, rawTo := query.Get("from"), query.Get("to")
	if rawFrom == "" && rawTo == "" {
		return nil, true
	}

	var fieldErrors []models.FieldError
	from, err := time.Parse(time.RFC3339, rawFrom)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "from", Message: "must be an RFC 3339 timestamp", Code: models.CodeInvalid})
	}
	to, err := time.Parse(time.RFC3339, rawTo)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "to", Message: "must be an RFC 3339 timestamp", Code: models.CodeInvalid})
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "from and to must both be RFC 3339 timestamps", fieldErrors)
		return nil, false
	}
	return &airquality.TimeRange{From: from, To: to}, true
}
