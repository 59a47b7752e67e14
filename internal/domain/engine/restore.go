package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
	"github.com/okian/parkwise/pkg/metrics"
)

// Restore rebuilds state from a persisted garage and ledger. Entries are
// applied in sequence order. Entries at or below baseSeq predate the garage
// and only move plate state; later ones also move spots and sectors.
// Restored entries are not published to commit hooks.
//
// The journal is written behind the commit, so entries can be missing. An
// entry that does not fit the rebuilt state is logged and counted, then
// applied to plate state only; it never stops the restore.
func (e *Engine) Restore(ctx context.Context, g model.Garage, baseSeq int64, entries []model.LedgerEntry) error {
	normalized, err := g.Normalize()
	if err != nil {
		return err
	}
	sorted := make([]model.LedgerEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	var gaps int
	err = e.store.Replay(ctx, func(tx Tx) error {
		if err := tx.ReplaceGarage(normalized); err != nil {
			return err
		}
		r := &replayer{ctx: ctx, tx: tx, logger: e.logger, floating: make(map[string]struct{})}
		settled := false
		for _, le := range sorted {
			physical := le.Seq > baseSeq
			if physical && !settled {
				if err := r.settle(); err != nil {
					return err
				}
				settled = true
			}
			if err := r.apply(le, physical); err != nil {
				return fmt.Errorf("replay seq %d (%s %s): %w", le.Seq, le.Type, le.Plate, err)
			}
		}
		if !settled {
			if err := r.settle(); err != nil {
				return err
			}
		}
		gaps = r.gaps
		return nil
	})
	if err != nil {
		return err
	}

	occ, err := e.Occupancy(ctx)
	if err != nil {
		return err
	}
	metrics.ResetSectors()
	for _, o := range occ {
		metrics.UpdateSectorOccupancy(o.SectorID, o.Occupancy, o.Capacity)
		metrics.UpdateSectorMultiplier(o.SectorID, e.multiplier(o.Occupancy, o.Capacity))
	}
	e.logger.Info(ctx, "state restored",
		logger.Int("entries", len(sorted)),
		logger.Int64("base_seq", baseSeq),
		logger.Int("sectors", len(occ)),
		logger.Int("gaps", gaps))
	return nil
}

// Gap reasons.
const (
	gapExitMissing    = "exit_missing"
	gapParkedMissing  = "parked_missing"
	gapSpotUnknown    = "spot_unknown"
	gapSectorFull     = "sector_full"
	gapParkedAtImport = "parked_at_import"
)

// replayer applies ledger entries inside one Replay transaction.
type replayer struct {
	ctx    context.Context
	tx     Tx
	logger logger.Logger

	// floating holds plates marked PARKED by entries older than the
	// garage. They hold no spot.
	floating map[string]struct{}
	gaps     int
}

func (r *replayer) gap(le model.LedgerEntry, reason string) {
	r.gaps++
	metrics.RecordJournalGap(reason)
	r.logger.Warn(r.ctx, "journal gap",
		logger.Int64("seq", le.Seq),
		logger.String("type", string(le.Type)),
		logger.String("plate", le.Plate),
		logger.String("reason", reason))
}

func (r *replayer) apply(le model.LedgerEntry, physical bool) error {
	prev, known := r.tx.Vehicle(le.Plate)

	switch le.Type {
	case types.EventEntry:
		if known && prev.State == types.PlateParked {
			r.gap(le, gapExitMissing)
			if err := r.vacate(prev); err != nil {
				return err
			}
		}
		if err := r.tx.PutVehicle(model.Vehicle{
			Plate:     le.Plate,
			State:     types.PlateEntered,
			HasEntry:  true,
			EnteredAt: le.Timestamp,
		}); err != nil {
			return err
		}

	case types.EventParked:
		if le.Coordinates == nil {
			return fmt.Errorf("%w: PARKED entry without coordinates", model.ErrInvalidEvent)
		}
		if known && prev.State == types.PlateParked {
			r.gap(le, gapExitMissing)
			if err := r.vacate(prev); err != nil {
				return err
			}
			prev, known = model.Vehicle{}, false
		}
		v := model.Vehicle{
			Plate:     le.Plate,
			State:     types.PlateParked,
			HasEntry:  known && prev.HasEntry,
			EnteredAt: prev.EnteredAt,
			Spot:      *le.Coordinates,
			SectorID:  le.SectorID,
			ParkedAt:  le.Timestamp,
			Rate:      le.Rate,
		}
		if physical {
			sectorID, ok, err := r.occupy(le)
			if err != nil {
				return err
			}
			if ok {
				v.SectorID = sectorID
			} else {
				v = unparked(le.Plate, prev, known)
			}
		} else {
			r.floating[le.Plate] = struct{}{}
		}
		if err := r.tx.PutVehicle(v); err != nil {
			return err
		}

	case types.EventExit:
		if known && prev.State == types.PlateParked {
			if err := r.vacate(prev); err != nil {
				return err
			}
		} else if physical {
			r.gap(le, gapParkedMissing)
		}
		if err := r.tx.PutVehicle(model.Vehicle{Plate: le.Plate, State: types.PlateAbsent}); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: unsupported event type %q", model.ErrInvalidEvent, le.Type)
	}
	_, err := r.tx.Append(le)
	return err
}

// occupy parks le's plate on its spot, evicting a stale occupant whose EXIT
// is missing. It reports false when the spot cannot be taken.
func (r *replayer) occupy(le model.LedgerEntry) (string, bool, error) {
	c := *le.Coordinates
	spot, ok := r.tx.SpotAt(c)
	if !ok {
		r.gap(le, gapSpotUnknown)
		return "", false, nil
	}
	if spot.Occupied() {
		r.gap(le, gapExitMissing)
		if err := r.evict(spot); err != nil {
			return "", false, err
		}
	}
	sector, ok := r.tx.Sector(spot.SectorID)
	if !ok {
		return "", false, fmt.Errorf("sector %q of spot %d: %w", spot.SectorID, spot.ID, model.ErrSectorNotFound)
	}
	if sector.Full() {
		r.gap(le, gapSectorFull)
		return "", false, nil
	}
	if err := r.tx.IncrementOccupancy(sector.ID); err != nil {
		return "", false, err
	}
	if err := r.tx.Park(c, le.Plate, le.Timestamp); err != nil {
		return "", false, err
	}
	return sector.ID, true, nil
}

func (r *replayer) evict(spot model.Spot) error {
	holder, ok := r.tx.Vehicle(spot.Plate())
	if err := r.tx.Release(spot.Coordinates); err != nil {
		return err
	}
	if err := r.tx.DecrementOccupancy(spot.SectorID); err != nil {
		return err
	}
	if ok && holder.State == types.PlateParked && holder.Spot == spot.Coordinates {
		return r.tx.PutVehicle(model.Vehicle{Plate: holder.Plate, State: types.PlateAbsent})
	}
	return nil
}

// vacate frees whatever v holds.
func (r *replayer) vacate(v model.Vehicle) error {
	if _, ok := r.floating[v.Plate]; ok {
		delete(r.floating, v.Plate)
		return nil
	}
	if err := r.tx.Release(v.Spot); err != nil {
		return err
	}
	return r.tx.DecrementOccupancy(v.SectorID)
}

// settle runs at the garage boundary. An import needs an empty garage, so
// a plate still PARKED there lost its EXIT.
func (r *replayer) settle() error {
	plates := make([]string, 0, len(r.floating))
	for p := range r.floating {
		plates = append(plates, p)
	}
	sort.Strings(plates)
	for _, p := range plates {
		v, _ := r.tx.Vehicle(p)
		r.gap(model.LedgerEntry{Plate: p, Type: types.EventParked, Seq: r.tx.LastSeq()}, gapParkedAtImport)
		if err := r.tx.PutVehicle(unparked(p, v, v.HasEntry)); err != nil {
			return err
		}
	}
	clear(r.floating)
	return nil
}

// unparked is the state a plate falls back to when its PARKED cannot hold.
func unparked(plate string, prev model.Vehicle, hasEntry bool) model.Vehicle {
	if hasEntry && prev.HasEntry {
		return model.Vehicle{Plate: plate, State: types.PlateEntered, HasEntry: true, EnteredAt: prev.EnteredAt}
	}
	return model.Vehicle{Plate: plate, State: types.PlateAbsent}
}
