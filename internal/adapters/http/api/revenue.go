package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/parkwise/internal/domain/engine"
)

// RevenueQuerier sums a day's EXIT charges.
type RevenueQuerier interface {
	Revenue(ctx context.Context, date, sectorID string) (engine.Revenue, error)
}

// RevenueHandler handles revenue queries.
type RevenueHandler struct {
	querier RevenueQuerier
	now     func() time.Time
}

// NewRevenueHandler creates a new revenue handler.
func NewRevenueHandler(querier RevenueQuerier, now func() time.Time) *RevenueHandler {
	if now == nil {
		now = time.Now
	}
	return &RevenueHandler{querier: querier, now: now}
}

type revenueRequest struct {
	Date   string `json:"date"`
	Sector string `json:"sector"`
}

type revenueResponse struct {
	Amount    json.Number `json:"amount"`
	Currency  string      `json:"currency"`
	Timestamp string      `json:"timestamp"`
	Sector    string      `json:"sector,omitempty"`
	Exits     int         `json:"exits"`
}

// HandleRevenue handles POST /revenue requests.
func (h *RevenueHandler) HandleRevenue(w http.ResponseWriter, r *http.Request) {
	const op = "api.revenue"
	var req revenueRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rev, err := h.querier.Revenue(r.Context(), req.Date, req.Sector)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revenueResponse{
		Amount:    rev.Amount.Decimal(),
		Currency:  rev.Amount.Currency,
		Timestamp: h.now().In(rev.Date.Location()).Format(time.RFC3339),
		Sector:    rev.SectorID,
		Exits:     rev.Exits,
	})
}
