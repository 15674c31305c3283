package api

import (
	"context"
	"net/http"

	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LevelCounter reports the size of the list for health output.
type LevelCounter interface {
	FilteredList(ctx context.Context, query string) []model.Level
}

type healthResponse struct {
	Status string `json:"status"`
	Levels int    `json:"levels"`
}

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	levels LevelCounter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(levels LevelCounter) *HealthHandler {
	return &HealthHandler{levels: levels}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.levels != nil {
		resp.Levels = len(h.levels.FilteredList(r.Context(), ""))
	}
	writeJSON(w, http.StatusOK, resp)
}

// MetricsHandler serves the custom Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
