package api

import (
	"context"
	"net/http"
)

// StatsProvider reports runtime statistics: lifecycle, per-sector
// occupancy and journal backlog.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler. A nil provider serves an empty
// object.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{}
	if h.provider != nil {
		stats = h.provider.GetStats(r.Context())
	}
	writeJSON(w, http.StatusOK, stats)
}
