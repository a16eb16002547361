// Package handler provides HTTP handlers for the aqdesk API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aqdesk/aqdesk/internal/airquality"
	"github.com/aqdesk/aqdesk/internal/airquality/gios"
	"github.com/aqdesk/aqdesk/internal/api/models"
	"github.com/aqdesk/aqdesk/internal/api/response"
)

// AirQualityService is the read side of airquality.Service used by the handlers.
type AirQualityService interface {
	Stations(ctx context.Context) (airquality.Result[[]airquality.Station], error)
	Sensors(ctx context.Context, stationID int) (airquality.Result[[]airquality.Sensor], error)
	SensorData(ctx context.Context, sensorID int) (airquality.Result[airquality.SensorData], error)
	AirQualityIndex(ctx context.Context, stationID int) (airquality.Result[airquality.AirQualityIndex], error)
	Analyze(ctx context.Context, sensorID int, window *airquality.TimeRange) (airquality.Result[airquality.SeriesAnalysis], error)
}

// pathID parses a positive integer URL parameter. It writes a 400 response
// and returns false when the parameter is invalid.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		response.InvalidParam(w, r, name, models.CodeInvalid, "must be a positive integer")
		return 0, false
	}
	return id, true
}

// writeServiceError maps a service error to a problem response.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, airquality.ErrInvalidID):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, airquality.ErrInvalidRange):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "from", Message: "must be before to", Code: models.CodeOutOfRange},
		})
	case errors.Is(err, gios.ErrIndexUnavailable):
		response.NotFound(w, r, "station publishes no air quality index")
	case errors.Is(err, airquality.ErrNoCachedData):
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream failed with no cached data")
		response.ServiceUnavailable(w, r, "upstream unavailable and no cached data")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		response.ServiceUnavailable(w, r, "request timed out")
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, r, "")
	}
}
