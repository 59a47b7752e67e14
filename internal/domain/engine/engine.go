// Package engine is the garage state machine. It validates vehicle events
// against current spot, sector and plate state and applies each accepted
// event as a single store transaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/pricing"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
	"github.com/okian/parkwise/pkg/metrics"
)

// Engine processes vehicle events and answers status queries.
type Engine struct {
	store  Store
	policy *pricing.Policy
	now    func() time.Time
	loc    *time.Location
	newID  func() string
	logger logger.Logger
}

// New creates an engine over store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		policy: pricing.New(),
		now:    time.Now,
		loc:    time.UTC,
		newID:  defaultIDGenerator,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("engine")
	}
	return e
}

// Policy returns the pricing policy in use.
func (e *Engine) Policy() *pricing.Policy { return e.policy }

// sectorChange records a sector whose occupancy moved inside a committed
// transaction so gauges can be updated afterwards.
type sectorChange struct {
	id        string
	occupancy int
	capacity  int
}

// Process applies ev and returns the ledger entry it produced. On error
// nothing was changed.
func (e *Engine) Process(ctx context.Context, ev model.Event) (model.LedgerEntry, error) {
	ev.Plate = types.NormalizePlate(ev.Plate)
	if err := ev.Validate(); err != nil {
		return model.LedgerEntry{}, err
	}

	var (
		out     model.LedgerEntry
		changed *sectorChange
	)
	err := e.store.Update(ctx, func(tx Tx) error {
		var err error
		switch ev.Type {
		case types.EventEntry:
			out, err = e.entry(tx, ev)
		case types.EventParked:
			out, changed, err = e.parked(ctx, tx, ev)
		case types.EventExit:
			out, changed, err = e.exit(tx, ev)
		default:
			err = fmt.Errorf("%w: unsupported event type %q", model.ErrInvalidEvent, ev.Type)
		}
		return err
	})
	if err != nil {
		if model.KindOf(err) == model.KindInvariant {
			e.logger.Error(ctx, "invariant violated",
				logger.String("plate", ev.Plate),
				logger.String("event_type", string(ev.Type)),
				logger.Error(err))
		}
		return model.LedgerEntry{}, err
	}

	if changed != nil {
		metrics.UpdateSectorOccupancy(changed.id, changed.occupancy, changed.capacity)
		metrics.UpdateSectorMultiplier(changed.id, e.multiplier(changed.occupancy, changed.capacity))
	}
	if out.Type == types.EventExit && out.Price != nil {
		metrics.RecordRevenue(out.SectorID, out.Price.Amount)
	}
	return out, nil
}

func (e *Engine) entry(tx Tx, ev model.Event) (model.LedgerEntry, error) {
	if v, ok := tx.Vehicle(ev.Plate); ok && v.State != types.PlateAbsent {
		return model.LedgerEntry{}, fmt.Errorf("plate %s is %s: %w", ev.Plate, v.State, model.ErrDuplicateEntry)
	}
	if err := tx.PutVehicle(model.Vehicle{
		Plate:     ev.Plate,
		State:     types.PlateEntered,
		HasEntry:  true,
		EnteredAt: ev.EntryTime,
	}); err != nil {
		return model.LedgerEntry{}, err
	}
	return tx.Append(model.LedgerEntry{
		ID:        e.newID(),
		Plate:     ev.Plate,
		Type:      types.EventEntry,
		Timestamp: ev.EntryTime,
	})
}

func (e *Engine) parked(ctx context.Context, tx Tx, ev model.Event) (model.LedgerEntry, *sectorChange, error) {
	c := *ev.Coordinates
	spot, ok := tx.SpotAt(c)
	if !ok {
		return model.LedgerEntry{}, nil, fmt.Errorf("no spot at %s: %w", c, model.ErrSpotNotFound)
	}
	if spot.Occupied() {
		return model.LedgerEntry{}, nil, fmt.Errorf("spot %d held by %s: %w", spot.ID, spot.Plate(), model.ErrSpotOccupied)
	}
	sector, ok := tx.Sector(spot.SectorID)
	if !ok {
		return model.LedgerEntry{}, nil, fmt.Errorf("sector %q of spot %d: %w", spot.SectorID, spot.ID, model.ErrSectorNotFound)
	}
	if sector.Full() {
		return model.LedgerEntry{}, nil, fmt.Errorf("sector %s at %d/%d: %w", sector.ID, sector.Occupancy(), sector.MaxCapacity, model.ErrSectorFull)
	}
	prev, known := tx.Vehicle(ev.Plate)
	if known && prev.State == types.PlateParked {
		return model.LedgerEntry{}, nil, fmt.Errorf("plate %s already at %s: %w", ev.Plate, prev.Spot, model.ErrVehicleAlreadyParked)
	}
	if ev.SectorHint != "" && ev.SectorHint != sector.ID {
		e.logger.Warn(ctx, "sector hint does not match spot",
			logger.String("plate", ev.Plate),
			logger.String("hint", ev.SectorHint),
			logger.String("sector", sector.ID))
	}

	now := e.now()
	if err := tx.IncrementOccupancy(sector.ID); err != nil {
		return model.LedgerEntry{}, nil, err
	}
	if err := tx.Park(c, ev.Plate, now); err != nil {
		return model.LedgerEntry{}, nil, err
	}

	occupancy := sector.Occupancy() + 1
	rate := e.policy.HourlyRate(sector.BasePrice, occupancy, sector.MaxCapacity)
	if err := tx.PutVehicle(model.Vehicle{
		Plate:     ev.Plate,
		State:     types.PlateParked,
		HasEntry:  known && prev.HasEntry,
		EnteredAt: prev.EnteredAt,
		Spot:      c,
		SectorID:  sector.ID,
		ParkedAt:  now,
		Rate:      rate,
	}); err != nil {
		return model.LedgerEntry{}, nil, err
	}

	marker := rate.Money(e.policy.Currency())
	entry, err := tx.Append(model.LedgerEntry{
		ID:          e.newID(),
		Plate:       ev.Plate,
		Type:        types.EventParked,
		Timestamp:   now,
		Coordinates: &c,
		SectorID:    sector.ID,
		Price:       &marker,
		Rate:        rate,
	})
	if err != nil {
		return model.LedgerEntry{}, nil, err
	}
	return entry, &sectorChange{id: sector.ID, occupancy: occupancy, capacity: sector.MaxCapacity}, nil
}

func (e *Engine) exit(tx Tx, ev model.Event) (model.LedgerEntry, *sectorChange, error) {
	v, ok := tx.Vehicle(ev.Plate)
	if !ok || v.State != types.PlateParked {
		return model.LedgerEntry{}, nil, fmt.Errorf("plate %s holds no spot: %w", ev.Plate, model.ErrVehicleNotFound)
	}
	sector, ok := tx.Sector(v.SectorID)
	if !ok {
		return model.LedgerEntry{}, nil, fmt.Errorf("sector %q of plate %s: %w", v.SectorID, ev.Plate, model.ErrSectorNotFound)
	}
	if !v.HasEntry {
		return model.LedgerEntry{}, nil, fmt.Errorf("plate %s parked without an entry: %w", ev.Plate, model.ErrEntryNotFound)
	}
	if ev.ExitTime.Before(v.EnteredAt) {
		return model.LedgerEntry{}, nil, fmt.Errorf("%w: exit_time %s precedes entry_time %s",
			model.ErrInvalidEvent, ev.ExitTime.Format(time.RFC3339), v.EnteredAt.Format(time.RFC3339))
	}
	if err := tx.Release(v.Spot); err != nil {
		return model.LedgerEntry{}, nil, err
	}
	if err := tx.DecrementOccupancy(sector.ID); err != nil {
		return model.LedgerEntry{}, nil, err
	}

	price := e.policy.Quote(v.Rate, v.EnteredAt, ev.ExitTime)
	if err := tx.PutVehicle(model.Vehicle{Plate: ev.Plate, State: types.PlateAbsent}); err != nil {
		return model.LedgerEntry{}, nil, err
	}
	spot := v.Spot
	entry, err := tx.Append(model.LedgerEntry{
		ID:          e.newID(),
		Plate:       ev.Plate,
		Type:        types.EventExit,
		Timestamp:   ev.ExitTime,
		Coordinates: &spot,
		SectorID:    sector.ID,
		Price:       &price,
	})
	if err != nil {
		return model.LedgerEntry{}, nil, err
	}
	return entry, &sectorChange{id: sector.ID, occupancy: sector.Occupancy() - 1, capacity: sector.MaxCapacity}, nil
}

func (e *Engine) multiplier(occupancy, capacity int) float64 {
	return float64(e.policy.Multiplier(occupancy, capacity)) / 10_000
}

// IsRejection reports whether err is a domain rejection rather than an
// infrastructure failure such as a cancelled context.
func IsRejection(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return model.KindOf(err) != model.KindUnknown
}
