package handler

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aqdesk/aqdesk/internal/airquality"
	"github.com/aqdesk/aqdesk/internal/api/models"
	"github.com/aqdesk/aqdesk/internal/api/response"
)

// Nearby search bounds accepted from clients.
const (
	maxNearbyRadiusKm = 500
	maxNearbyLimit    = 50
)

// StationHandler handles station endpoints.
type StationHandler struct {
	service AirQualityService
	logger  zerolog.Logger
}

// NewStationHandler creates a new StationHandler.
func NewStationHandler(service AirQualityService, logger zerolog.Logger) *StationHandler {
	return &StationHandler{service: service, logger: logger}
}

// ListStations handles GET /v1/stations - list stations, optionally
// filtered by a case-insensitive city name fragment.
func (h *StationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Stations(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	stations := airquality.FilterStationsByCity(result.Value, r.URL.Query().Get("city"))
	response.JSON(w, r, http.StatusOK, models.StationList{
		Meta:  metaFrom(result),
		Items: toStations(stations),
	})
}

// NearbyStations handles GET /v1/stations/nearby - stations closest to a point.
func (h *StationHandler) NearbyStations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var fieldErrors []models.FieldError
	lat, ok := parseFloat(query.Get("lat"), -90, 90)
	if !ok {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "lat", Message: "must be a number between -90 and 90", Code: models.CodeOutOfRange})
	}
	lon, ok := parseFloat(query.Get("lon"), -180, 180)
	if !ok {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "lon", Message: "must be a number between -180 and 180", Code: models.CodeOutOfRange})
	}

	cfg := airquality.DefaultNearbyConfig()
	if raw := query.Get("radius_km"); raw != "" {
		radius, ok := parseFloat(raw, 0, maxNearbyRadiusKm)
		if !ok || radius == 0 {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "radius_km", Message: "must be greater than 0 and at most 500", Code: models.CodeOutOfRange})
		}
		cfg.MaxDistance = radius * 1000
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxNearbyLimit {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "limit", Message: "must be an integer between 1 and 50", Code: models.CodeOutOfRange})
		}
		cfg.Limit = limit
	}

	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid nearby query", fieldErrors)
		return
	}

	result, err := h.service.Stations(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NearbyStationList{
		Meta:  metaFrom(result),
		Items: toNearby(airquality.NearestStations(result.Value, lat, lon, cfg)),
	})
}

// ListSensors handles GET /v1/stations/{stationId}/sensors.
func (h *StationHandler) ListSensors(w http.ResponseWriter, r *http.Request) {
	stationID, ok := pathID(w, r, "stationId")
	if !ok {
		return
	}

	result, err := h.service.Sensors(r.Context(), stationID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.SensorList{
		Meta:  metaFrom(result),
		Items: toSensors(result.Value),
	})
}

// GetIndex handles GET /v1/stations/{stationId}/index.
func (h *StationHandler) GetIndex(w http.ResponseWriter, r *http.Request) {
	stationID, ok := pathID(w, r, "stationId")
	if !ok {
		return
	}

	result, err := h.service.AirQualityIndex(r.Context(), stationID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toIndex(result))
}

func parseFloat(raw string, lo, hi float64) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}
