package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/parkwise/internal/domain/engine"
	"github.com/okian/parkwise/internal/domain/types"
)

// StatusQuerier projects price-so-far for plates and spots.
type StatusQuerier interface {
	PlateStatus(ctx context.Context, plate string) (engine.Status, error)
	SpotStatus(ctx context.Context, c types.Coordinates) (engine.Status, error)
}

// StatusHandler handles plate and spot status queries.
type StatusHandler struct {
	querier StatusQuerier
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(querier StatusQuerier) *StatusHandler {
	return &StatusHandler{querier: querier}
}

type plateStatusRequest struct {
	LicensePlate string `json:"license_plate"`
}

// time_parked is the instant the price was computed for; parked_at is when
// the vehicle took its spot.
type plateStatusResponse struct {
	Occupied      bool        `json:"occupied"`
	LicensePlate  string      `json:"license_plate"`
	PriceUntilNow json.Number `json:"price_until_now"`
	EntryTime     *string     `json:"entry_time"`
	TimeParked    string      `json:"time_parked"`
	ParkedAt      *string     `json:"parked_at"`
	Lat           *float64    `json:"lat"`
	Lng           *float64    `json:"lng"`
}

type spotStatusRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type spotStatusResponse struct {
	Occupied      bool        `json:"occupied"`
	LicensePlate  string      `json:"license_plate"`
	PriceUntilNow json.Number `json:"price_until_now"`
	EntryTime     *string     `json:"entry_time"`
	TimeParked    string      `json:"time_parked"`
	ParkedAt      *string     `json:"parked_at"`
}

// HandlePlateStatus handles POST /plate-status requests.
func (h *StatusHandler) HandlePlateStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.plate_status"
	var req plateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.LicensePlate) == "" {
		writeError(w, WrapKind(op, ErrBadRequest, errors.New("license_plate is required")))
		return
	}
	st, err := h.querier.PlateStatus(r.Context(), req.LicensePlate)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := plateStatusResponse{
		Occupied:      st.Occupied,
		LicensePlate:  st.Plate,
		PriceUntilNow: st.Price.Decimal(),
		EntryTime:     formatTime(st.EntryTime),
		TimeParked:    st.Now.Format(time.RFC3339),
		ParkedAt:      formatTime(st.ParkedAt),
	}
	if st.Coordinates != nil {
		lat, lng := st.Coordinates.Lat, st.Coordinates.Lng
		resp.Lat, resp.Lng = &lat, &lng
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSpotStatus handles POST /spot-status requests.
func (h *StatusHandler) HandleSpotStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.spot_status"
	var req spotStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, WrapKind(op, ErrBadRequest, errors.New("lat and lng are required")))
		return
	}
	st, err := h.querier.SpotStatus(r.Context(), types.Coordinates{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spotStatusResponse{
		Occupied:      st.Occupied,
		LicensePlate:  st.Plate,
		PriceUntilNow: st.Price.Decimal(),
		EntryTime:     formatTime(st.EntryTime),
		TimeParked:    st.Now.Format(time.RFC3339),
		ParkedAt:      formatTime(st.ParkedAt),
	})
}
