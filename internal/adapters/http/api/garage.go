package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
)

// GarageManager exports and replaces the sector and spot registry.
type GarageManager interface {
	Garage(ctx context.Context) (model.Garage, error)
	ImportGarage(ctx context.Context, g model.Garage) error
}

// GarageHandler handles garage export and import.
type GarageHandler struct {
	manager  GarageManager
	currency string
}

// NewGarageHandler creates a new garage handler. Imported base prices are
// read in currency.
func NewGarageHandler(manager GarageManager, currency string) *GarageHandler {
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return &GarageHandler{manager: manager, currency: currency}
}

type garageDocument struct {
	Garage []sectorDocument `json:"garage"`
	Spots  []spotDocument   `json:"spots"`
}

type sectorDocument struct {
	Sector               string      `json:"sector"`
	BasePrice            json.Number `json:"base_price"`
	MaxCapacity          int         `json:"max_capacity"`
	OpenHour             string      `json:"open_hour,omitempty"`
	CloseHour            string      `json:"close_hour,omitempty"`
	DurationLimitMinutes int         `json:"duration_limit_minutes"`
	Occupancy            *int        `json:"occupancy,omitempty"`
}

type spotDocument struct {
	ID       int64   `json:"id"`
	Sector   string  `json:"sector"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Occupied *bool   `json:"occupied,omitempty"`
}

type importResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (d garageDocument) toModel(currency string) (model.Garage, error) {
	g := model.Garage{
		Sectors: make([]model.Sector, 0, len(d.Garage)),
		Spots:   make([]model.Spot, 0, len(d.Spots)),
	}
	for _, s := range d.Garage {
		price := 0.0
		if s.BasePrice != "" {
			var err error
			if price, err = s.BasePrice.Float64(); err != nil {
				return model.Garage{}, err
			}
		}
		g.Sectors = append(g.Sectors, model.Sector{
			ID:                   s.Sector,
			BasePrice:            types.MoneyFromMajor(price, currency),
			MaxCapacity:          s.MaxCapacity,
			OpenHour:             s.OpenHour,
			CloseHour:            s.CloseHour,
			DurationLimitMinutes: s.DurationLimitMinutes,
		})
	}
	for _, sp := range d.Spots {
		g.Spots = append(g.Spots, model.Spot{
			ID:          sp.ID,
			SectorID:    sp.Sector,
			Coordinates: types.Coordinates{Lat: sp.Lat, Lng: sp.Lng},
		})
	}
	return g, nil
}

func garageFromModel(g model.Garage) garageDocument {
	d := garageDocument{
		Garage: make([]sectorDocument, 0, len(g.Sectors)),
		Spots:  make([]spotDocument, 0, len(g.Spots)),
	}
	for i := range g.Sectors {
		s := &g.Sectors[i]
		occupancy := s.Occupancy()
		d.Garage = append(d.Garage, sectorDocument{
			Sector:               s.ID,
			BasePrice:            s.BasePrice.Decimal(),
			MaxCapacity:          s.MaxCapacity,
			OpenHour:             s.OpenHour,
			CloseHour:            s.CloseHour,
			DurationLimitMinutes: s.DurationLimitMinutes,
			Occupancy:            &occupancy,
		})
	}
	for i := range g.Spots {
		sp := &g.Spots[i]
		occupied := sp.Occupied()
		d.Spots = append(d.Spots, spotDocument{
			ID:       sp.ID,
			Sector:   sp.SectorID,
			Lat:      sp.Coordinates.Lat,
			Lng:      sp.Coordinates.Lng,
			Occupied: &occupied,
		})
	}
	return d
}

// HandleExport handles GET /garage requests.
func (h *GarageHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	g, err := h.manager.Garage(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, garageFromModel(g))
}

// HandleImport handles POST /garage/import requests.
func (h *GarageHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.garage_import"
	ctx := r.Context()

	var doc garageDocument
	if err := decodeBody(r, &doc); err != nil {
		h.fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	g, err := doc.toModel(h.currency)
	if err != nil {
		h.fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.manager.ImportGarage(ctx, g); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Success: true, Message: "Garage imported successfully"})
}

func (h *GarageHandler) fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeJSON(w, status, importResponse{Success: false, Message: clientMessage(err), Code: code})
}
