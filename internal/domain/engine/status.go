package engine

import (
	"context"
	"time"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
)

// Status is the price-so-far projection of a plate or spot. A plate that is
// not parked, unknown coordinates and free spots all yield the zero shape:
// Occupied false, empty plate, zero price and nil times.
type Status struct {
	Occupied    bool
	Plate       string
	Price       types.Money
	EntryTime   *time.Time
	ParkedAt    *time.Time
	Coordinates *types.Coordinates
	SectorID    string
	// Now is the provisional exit time the price was computed for.
	Now time.Time
}

// PlateStatus projects the current charge of plate.
func (e *Engine) PlateStatus(ctx context.Context, plate string) (Status, error) {
	plate = types.NormalizePlate(plate)
	now := e.now()
	st := e.vacant(now)
	st.Plate = plate
	err := e.store.View(ctx, func(tx Tx) error {
		v, ok := tx.Vehicle(plate)
		if !ok || v.State != types.PlateParked {
			return nil
		}
		st = e.occupied(tx, v, now)
		return nil
	})
	return st, err
}

// SpotStatus projects the current charge of whoever occupies the spot at c.
func (e *Engine) SpotStatus(ctx context.Context, c types.Coordinates) (Status, error) {
	now := e.now()
	st := e.vacant(now)
	err := e.store.View(ctx, func(tx Tx) error {
		spot, ok := tx.SpotAt(c)
		if !ok || !spot.Occupied() {
			return nil
		}
		v, ok := tx.Vehicle(spot.Plate())
		if !ok || v.State != types.PlateParked {
			// Occupant without a lifecycle record: report the spot as
			// held but unpriced.
			parkedAt := spot.ParkedAt()
			st.Occupied = true
			st.Plate = spot.Plate()
			st.ParkedAt = &parkedAt
			st.Coordinates = &c
			st.SectorID = spot.SectorID
			return nil
		}
		st = e.occupied(tx, v, now)
		return nil
	})
	return st, err
}

func (e *Engine) vacant(now time.Time) Status {
	return Status{Price: types.NewMoney(0, e.policy.Currency()), Now: now}
}

// occupied prices v from its entry to now at the sector's current
// multiplier. A vehicle parked without an entry is reported at zero.
func (e *Engine) occupied(tx Tx, v model.Vehicle, now time.Time) Status {
	spot := v.Spot
	parkedAt := v.ParkedAt
	st := Status{
		Occupied:    true,
		Plate:       v.Plate,
		Price:       types.NewMoney(0, e.policy.Currency()),
		ParkedAt:    &parkedAt,
		Coordinates: &spot,
		SectorID:    v.SectorID,
		Now:         now,
	}
	if !v.HasEntry {
		return st
	}
	entered := v.EnteredAt
	st.EntryTime = &entered

	sector, ok := tx.Sector(v.SectorID)
	if !ok {
		return st
	}
	rate := e.policy.HourlyRate(sector.BasePrice, sector.Occupancy(), sector.MaxCapacity)
	st.Price = e.policy.Quote(rate, v.EnteredAt, now)
	return st
}
