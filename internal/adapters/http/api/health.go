package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lrgtech/peopleanalytics/pkg/metrics"
)

// HealthDependencies checks the analytics service.
type HealthDependencies interface {
	Health(ctx context.Context) (string, error)
}

// HealthHandler serves metrics and the remote service status.
type HealthHandler struct {
	deps HealthDependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleMetrics handles GET /healthz with the Prometheus exposition.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HandleStatus handles GET /status. An unreachable service is reported in
// the body, not as a failed request.
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.deps.Health(r.Context())
	resp := statusResponse{Status: status}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
