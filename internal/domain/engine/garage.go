package engine

import (
	"context"
	"fmt"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
	"github.com/okian/parkwise/pkg/metrics"
)

// SectorOccupancy is a point-in-time view of one sector's load and price.
type SectorOccupancy struct {
	SectorID     string
	Occupancy    int
	Capacity     int
	MultiplierBP int64
	HourlyRate   types.Money
}

// Garage returns the current registry: sectors with their occupancy and
// spots with their occupants.
func (e *Engine) Garage(ctx context.Context) (model.Garage, error) {
	var g model.Garage
	err := e.store.View(ctx, func(tx Tx) error {
		g.Sectors = tx.Sectors()
		g.Spots = tx.Spots()
		return nil
	})
	return g, err
}

// Occupancy returns every sector's load and current hourly price, ordered
// by sector id.
func (e *Engine) Occupancy(ctx context.Context) ([]SectorOccupancy, error) {
	var out []SectorOccupancy
	err := e.store.View(ctx, func(tx Tx) error {
		sectors := tx.Sectors()
		out = make([]SectorOccupancy, 0, len(sectors))
		for i := range sectors {
			s := &sectors[i]
			rate := e.policy.HourlyRate(s.BasePrice, s.Occupancy(), s.MaxCapacity)
			out = append(out, SectorOccupancy{
				SectorID:     s.ID,
				Occupancy:    s.Occupancy(),
				Capacity:     s.MaxCapacity,
				MultiplierBP: e.policy.Multiplier(s.Occupancy(), s.MaxCapacity),
				HourlyRate:   rate.Money(e.policy.Currency()),
			})
		}
		return nil
	})
	return out, err
}

// ImportGarage validates g and installs it in place of the current
// registry. It is refused while any vehicle is parked. The returned garage
// is the normalized one; baseSeq is the ledger sequence the new registry
// takes effect after.
func (e *Engine) ImportGarage(ctx context.Context, g model.Garage) (installed model.Garage, baseSeq int64, err error) {
	normalized, err := g.Normalize()
	if err != nil {
		return model.Garage{}, 0, err
	}
	err = e.store.Update(ctx, func(tx Tx) error {
		if n := tx.ParkedCount(); n > 0 {
			return fmt.Errorf("%d vehicles parked: %w", n, model.ErrGarageBusy)
		}
		baseSeq = tx.LastSeq()
		return tx.ReplaceGarage(normalized)
	})
	if err != nil {
		return model.Garage{}, 0, err
	}

	metrics.ResetSectors()
	for i := range normalized.Sectors {
		s := &normalized.Sectors[i]
		metrics.UpdateSectorOccupancy(s.ID, 0, s.MaxCapacity)
		metrics.UpdateSectorMultiplier(s.ID, e.multiplier(0, s.MaxCapacity))
	}
	metrics.RecordGarageImport()
	e.logger.Info(ctx, "garage imported",
		logger.Int("sectors", len(normalized.Sectors)),
		logger.Int("spots", len(normalized.Spots)),
		logger.Int64("base_seq", baseSeq))
	return normalized, baseSeq, nil
}
