package engine

import (
	"context"
	"time"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
)

// Store runs functions against garage state. Update transactions are
// serialized and all-or-nothing: when fn returns an error every mutation it
// made is undone.
type Store interface {
	// Update runs fn in a read-write transaction and publishes the ledger
	// entries it appended once committed.
	Update(ctx context.Context, fn func(Tx) error) error

	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error

	// Replay is Update without publishing, used to rebuild state from a
	// journal.
	Replay(ctx context.Context, fn func(Tx) error) error
}

// Tx exposes garage state inside a transaction. Getters return copies;
// state only changes through the mutators.
type Tx interface {
	Sector(id string) (model.Sector, bool)
	Sectors() []model.Sector
	SpotAt(c types.Coordinates) (model.Spot, bool)
	Spots() []model.Spot
	Vehicle(plate string) (model.Vehicle, bool)
	ParkedCount() int
	LedgerSize() int
	// LastSeq is the sequence number of the newest ledger entry, zero when
	// the ledger is empty.
	LastSeq() int64
	// Entries calls fn for every ledger entry in append order until fn
	// returns false.
	Entries(fn func(model.LedgerEntry) bool)

	// PutVehicle stores v; a vehicle in the ABSENT state is removed.
	PutVehicle(v model.Vehicle) error
	IncrementOccupancy(sectorID string) error
	DecrementOccupancy(sectorID string) error
	Park(c types.Coordinates, plate string, at time.Time) error
	Release(c types.Coordinates) error
	// Append adds e to the ledger, assigning the next sequence number when
	// e.Seq is zero, and returns the stored entry.
	Append(e model.LedgerEntry) (model.LedgerEntry, error)
	// ReplaceGarage installs a normalized garage, dropping all sectors and
	// spots.
	ReplaceGarage(g model.Garage) error
}
