package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aqdesk/aqdesk/internal/api/middleware"
	"github.com/aqdesk/aqdesk/internal/api/models"
	"github.com/aqdesk/aqdesk/internal/api/response"
	"github.com/aqdesk/aqdesk/internal/worker"
)

// Refresher runs cache refresh passes.
type Refresher interface {
	Run(ctx context.Context) worker.RefreshResult
	RunStations(ctx context.Context, stationIDs []int) worker.RefreshResult
}

// AdminHandler handles admin endpoints.
type AdminHandler struct {
	refresher Refresher
	logger    zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(refresher Refresher, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{refresher: refresher, logger: logger}
}

// Refresh handles POST /v1/admin/refresh - run one refresh pass over the
// requested stations, or the configured ones when none are given.
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	var fieldErrors []models.FieldError
	for _, id := range req.StationIDs {
		if id <= 0 {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "stationIds", Message: "station ids must be positive", Code: models.CodeInvalid})
			break
		}
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid refresh request", fieldErrors)
		return
	}

	h.logger.Info().
		Str("subject", middleware.GetSubject(r.Context())).
		Ints("station_ids", req.StationIDs).
		Msg("admin refresh requested")

	var result worker.RefreshResult
	if len(req.StationIDs) == 0 {
		result = h.refresher.Run(r.Context())
	} else {
		result = h.refresher.RunStations(r.Context(), req.StationIDs)
	}

	response.JSON(w, r, http.StatusOK, toRefreshResponse(result))
}

func toRefreshResponse(result worker.RefreshResult) models.RefreshResponse {
	resp := models.RefreshResponse{
		StartedAt:    models.Timestamp(result.StartTime),
		DurationMs:   result.Duration.Milliseconds(),
		Stations:     result.Stations,
		Successful:   result.Successful,
		Failed:       result.Failed,
		SensorsSaved: result.SensorsRefreshed,
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, models.StationError{StationID: e.StationID, Error: e.Error()})
	}
	return resp
}
