package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/parkwise/internal/domain/engine"
	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
)

var _ engine.Tx = (*memTx)(nil)

// memTx is a transaction over a locked MemoryStore. Every mutator pushes its
// inverse onto undo so a failed transaction leaves the store untouched.
type memTx struct {
	ctx      context.Context
	store    *MemoryStore
	readOnly bool

	undo     []func()
	appended []model.LedgerEntry
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.appended = nil
}

func (tx *memTx) writable() error {
	if tx.readOnly {
		return model.ErrReadOnly
	}
	return nil
}

func (tx *memTx) Sector(id string) (model.Sector, bool) {
	s, ok := tx.store.sectors[id]
	if !ok {
		return model.Sector{}, false
	}
	return *s, true
}

func (tx *memTx) Sectors() []model.Sector {
	out := make([]model.Sector, 0, len(tx.store.sectors))
	for _, s := range tx.store.sectors {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *memTx) SpotAt(c types.Coordinates) (model.Spot, bool) {
	sp, ok := tx.store.spots[c]
	if !ok {
		return model.Spot{}, false
	}
	return *sp, true
}

func (tx *memTx) Spots() []model.Spot {
	out := make([]model.Spot, 0, len(tx.store.spots))
	for _, sp := range tx.store.spots {
		out = append(out, *sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *memTx) Vehicle(plate string) (model.Vehicle, bool) {
	v, ok := tx.store.vehicles[plate]
	return v, ok
}

func (tx *memTx) ParkedCount() int {
	n := 0
	for _, v := range tx.store.vehicles {
		if v.State == types.PlateParked {
			n++
		}
	}
	return n
}

func (tx *memTx) LedgerSize() int { return len(tx.store.ledger) }

func (tx *memTx) LastSeq() int64 { return tx.store.nextSeq - 1 }

func (tx *memTx) Entries(fn func(model.LedgerEntry) bool) {
	for _, e := range tx.store.ledger {
		if !fn(e) {
			return
		}
	}
}

func (tx *memTx) PutVehicle(v model.Vehicle) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if v.Plate == "" {
		return fmt.Errorf("%w: vehicle without plate", model.ErrInvalidEvent)
	}
	prev, existed := tx.store.vehicles[v.Plate]
	if v.State == types.PlateAbsent {
		delete(tx.store.vehicles, v.Plate)
	} else {
		tx.store.vehicles[v.Plate] = v
	}
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.store.vehicles[v.Plate] = prev
		} else {
			delete(tx.store.vehicles, v.Plate)
		}
	})
	return nil
}

func (tx *memTx) IncrementOccupancy(sectorID string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	s, ok := tx.store.sectors[sectorID]
	if !ok {
		return fmt.Errorf("sector %q: %w", sectorID, model.ErrSectorNotFound)
	}
	if err := s.Increment(); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() { _ = s.Decrement() })
	return nil
}

func (tx *memTx) DecrementOccupancy(sectorID string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	s, ok := tx.store.sectors[sectorID]
	if !ok {
		return fmt.Errorf("sector %q: %w", sectorID, model.ErrSectorNotFound)
	}
	if err := s.Decrement(); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() { _ = s.Increment() })
	return nil
}

func (tx *memTx) Park(c types.Coordinates, plate string, at time.Time) error {
	if err := tx.writable(); err != nil {
		return err
	}
	sp, ok := tx.store.spots[c]
	if !ok {
		return fmt.Errorf("spot %s: %w", c, model.ErrSpotNotFound)
	}
	if err := sp.Park(plate, at); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() { _ = sp.Release() })
	return nil
}

func (tx *memTx) Release(c types.Coordinates) error {
	if err := tx.writable(); err != nil {
		return err
	}
	sp, ok := tx.store.spots[c]
	if !ok {
		return fmt.Errorf("spot %s: %w", c, model.ErrSpotNotFound)
	}
	plate, at := sp.Plate(), sp.ParkedAt()
	if err := sp.Release(); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() { _ = sp.Park(plate, at) })
	return nil
}

func (tx *memTx) Append(e model.LedgerEntry) (model.LedgerEntry, error) {
	if err := tx.writable(); err != nil {
		return model.LedgerEntry{}, err
	}
	if e.Plate == "" {
		return model.LedgerEntry{}, fmt.Errorf("%w: ledger entry without plate", model.ErrInvalidEvent)
	}
	prevSeq := tx.store.nextSeq
	if e.Seq == 0 {
		e.Seq = tx.store.nextSeq
	}
	if e.Seq >= tx.store.nextSeq {
		tx.store.nextSeq = e.Seq + 1
	}
	tx.store.ledger = append(tx.store.ledger, e)
	tx.appended = append(tx.appended, e)
	tx.undo = append(tx.undo, func() {
		tx.store.ledger = tx.store.ledger[:len(tx.store.ledger)-1]
		tx.store.nextSeq = prevSeq
	})
	return e, nil
}

func (tx *memTx) ReplaceGarage(g model.Garage) error {
	if err := tx.writable(); err != nil {
		return err
	}
	sectors := make(map[string]*model.Sector, len(g.Sectors))
	for i := range g.Sectors {
		s := g.Sectors[i]
		sectors[s.ID] = &s
	}
	spots := make(map[types.Coordinates]*model.Spot, len(g.Spots))
	for i := range g.Spots {
		sp := g.Spots[i]
		if _, ok := sectors[sp.SectorID]; !ok {
			return fmt.Errorf("%w: spot at %s references unknown sector %q", model.ErrInvalidGarage, sp.Coordinates, sp.SectorID)
		}
		spots[sp.Coordinates] = &sp
	}

	prevSectors, prevSpots := tx.store.sectors, tx.store.spots
	tx.store.sectors, tx.store.spots = sectors, spots
	tx.undo = append(tx.undo, func() {
		tx.store.sectors, tx.store.spots = prevSectors, prevSpots
	})
	tx.store.logger.Info(tx.ctx, "garage replaced",
		logger.Int("sectors", len(sectors)),
		logger.Int("spots", len(spots)))
	return nil
}
