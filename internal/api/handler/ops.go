package handler

import (
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/aqdesk/aqdesk/internal/api/models"
	"github.com/aqdesk/aqdesk/internal/api/response"
	"github.com/aqdesk/aqdesk/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	clock     clockwork.Clock
}

// NewOpsHandler creates a new OpsHandler. registry may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, clock clockwork.Clock) *OpsHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		clock:     clock,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness plus upstream breaker
// status. Upstream failures degrade the status but never the status code.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(h.clock.Now()),
		Version:   h.version,
		BuildTime: h.buildTime,
		Providers: []models.ProviderStatus{},
	}

	if h.registry != nil {
		for _, p := range h.registry.All() {
			status := providerStatus(p)
			if status.Status != models.HealthStatusOK {
				health.Status = models.HealthStatusDegraded
			}
			health.Providers = append(health.Providers, status)
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

func providerStatus(p resilience.ProviderHealth) models.ProviderStatus {
	status := models.ProviderStatus{
		Provider:            p.Name,
		CircuitState:        p.CircuitState.String(),
		ConsecutiveFailures: p.Counts.ConsecutiveFailures,
	}
	switch p.Status() {
	case resilience.StatusUnhealthy:
		status.Status = models.HealthStatusFail
	case resilience.StatusDegraded:
		status.Status = models.HealthStatusDegraded
	default:
		status.Status = models.HealthStatusOK
	}
	if p.LastSuccessAt != nil {
		status.LastSuccessAt = models.NewTimestamp(*p.LastSuccessAt)
	}
	if p.LastFailureAt != nil {
		status.LastFailureAt = models.NewTimestamp(*p.LastFailureAt)
	}
	if p.LastError != "" {
		msg := p.LastError
		status.Message = &msg
	}
	return status
}
