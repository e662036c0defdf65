package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/crux/pkg/metrics"
)

// StatsProvider exposes service counters for GET /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// OpsHandler serves the operational endpoints.
type OpsHandler struct {
	scrape http.Handler
	stats  StatsProvider
}

// NewOpsHandler creates the handler for /healthz and /stats.
func NewOpsHandler(stats StatsProvider) *OpsHandler {
	return &OpsHandler{
		scrape: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		stats:  stats,
	}
}

// HandleHealth serves the Prometheus registry; a successful scrape doubles
// as the liveness probe.
func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.scrape.ServeHTTP(w, r)
}

// HandleStats serves the service counters as JSON.
func (h *OpsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}
