package model

import (
	"fmt"
	"time"

	"github.com/okian/parkwise/internal/domain/types"
)

// Default operating hours for sectors configured without them.
const (
	DefaultOpenHour  = "00:00"
	DefaultCloseHour = "23:59"
	hourLayout       = "15:04"
)

// Garage is a full registry snapshot: the unit of import and export.
type Garage struct {
	Sectors []Sector
	Spots   []Spot
}

// Normalize validates g and returns a copy ready to install: occupancy and
// occupants are cleared, hours defaulted and missing spot ids assigned
// after the highest configured one.
func (g Garage) Normalize() (Garage, error) {
	out := Garage{
		Sectors: make([]Sector, 0, len(g.Sectors)),
		Spots:   make([]Spot, 0, len(g.Spots)),
	}

	sectors := make(map[string]struct{}, len(g.Sectors))
	for _, s := range g.Sectors {
		if s.ID == "" {
			return Garage{}, fmt.Errorf("%w: sector without id", ErrInvalidGarage)
		}
		if _, dup := sectors[s.ID]; dup {
			return Garage{}, fmt.Errorf("%w: duplicate sector %q", ErrInvalidGarage, s.ID)
		}
		if s.MaxCapacity <= 0 {
			return Garage{}, fmt.Errorf("%w: sector %q capacity must be positive", ErrInvalidGarage, s.ID)
		}
		if s.BasePrice.Amount < 0 {
			return Garage{}, fmt.Errorf("%w: sector %q base price is negative", ErrInvalidGarage, s.ID)
		}
		if s.DurationLimitMinutes < 0 {
			return Garage{}, fmt.Errorf("%w: sector %q duration limit is negative", ErrInvalidGarage, s.ID)
		}
		open, err := normalizeHour(s.OpenHour, DefaultOpenHour)
		if err != nil {
			return Garage{}, fmt.Errorf("%w: sector %q open_hour: %v", ErrInvalidGarage, s.ID, err)
		}
		closing, err := normalizeHour(s.CloseHour, DefaultCloseHour)
		if err != nil {
			return Garage{}, fmt.Errorf("%w: sector %q close_hour: %v", ErrInvalidGarage, s.ID, err)
		}
		sectors[s.ID] = struct{}{}
		out.Sectors = append(out.Sectors, Sector{
			ID:                   s.ID,
			BasePrice:            s.BasePrice,
			MaxCapacity:          s.MaxCapacity,
			OpenHour:             open,
			CloseHour:            closing,
			DurationLimitMinutes: s.DurationLimitMinutes,
		})
	}

	var maxID int64
	for _, sp := range g.Spots {
		if sp.ID > maxID {
			maxID = sp.ID
		}
	}
	ids := make(map[int64]struct{}, len(g.Spots))
	coords := make(map[types.Coordinates]struct{}, len(g.Spots))
	for _, sp := range g.Spots {
		if _, ok := sectors[sp.SectorID]; !ok {
			return Garage{}, fmt.Errorf("%w: spot at %s references unknown sector %q", ErrInvalidGarage, sp.Coordinates, sp.SectorID)
		}
		if !sp.Coordinates.Valid() {
			return Garage{}, fmt.Errorf("%w: spot coordinates %s out of range", ErrInvalidGarage, sp.Coordinates)
		}
		if _, dup := coords[sp.Coordinates]; dup {
			return Garage{}, fmt.Errorf("%w: duplicate spot at %s", ErrInvalidGarage, sp.Coordinates)
		}
		id := sp.ID
		if id <= 0 {
			maxID++
			id = maxID
		}
		if _, dup := ids[id]; dup {
			return Garage{}, fmt.Errorf("%w: duplicate spot id %d", ErrInvalidGarage, id)
		}
		ids[id] = struct{}{}
		coords[sp.Coordinates] = struct{}{}
		out.Spots = append(out.Spots, Spot{ID: id, SectorID: sp.SectorID, Coordinates: sp.Coordinates})
	}
	return out, nil
}

func normalizeHour(v, def string) (string, error) {
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(hourLayout, v)
	if err != nil {
		return "", fmt.Errorf("want HH:mm, got %q", v)
	}
	return t.Format(hourLayout), nil
}
