package model

import (
	"time"

	"github.com/okian/parkwise/internal/domain/types"
)

// LedgerEntry is one accepted vehicle event. Entries are append-only and
// never mutated after the transaction that created them commits.
type LedgerEntry struct {
	ID        string
	Seq       int64
	Plate     string
	Type      types.EventType
	Timestamp time.Time

	Coordinates *types.Coordinates
	SectorID    string

	// Price is the hourly price marker for PARKED and the charge for EXIT.
	Price *types.Money
	// Rate is the exact hourly rate snapshotted on PARKED.
	Rate types.Rate
}

// Vehicle is the lifecycle record of a plate currently inside the garage.
// Plates in the ABSENT state have no record.
type Vehicle struct {
	Plate     string
	State     types.PlateState
	HasEntry  bool
	EnteredAt time.Time

	Spot     types.Coordinates
	SectorID string
	ParkedAt time.Time
	Rate     types.Rate
}
