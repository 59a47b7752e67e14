package model

import (
	"fmt"
	"time"

	"github.com/okian/parkwise/internal/domain/types"
)

// Event is an inbound vehicle event after decoding. Which fields are
// required depends on Type.
type Event struct {
	Plate       string
	Type        types.EventType
	EntryTime   time.Time
	ExitTime    time.Time
	Coordinates *types.Coordinates
	SectorHint  string
}

// Validate checks the fields Type requires. It does not look at garage state.
func (e Event) Validate() error {
	if e.Plate == "" {
		return fmt.Errorf("%w: license_plate is required", ErrInvalidEvent)
	}
	switch e.Type {
	case types.EventEntry:
		if e.EntryTime.IsZero() {
			return fmt.Errorf("%w: entry_time is required for ENTRY", ErrInvalidEvent)
		}
	case types.EventParked:
		if e.Coordinates == nil {
			return fmt.Errorf("%w: lat and lng are required for PARKED", ErrInvalidEvent)
		}
		if !e.Coordinates.Valid() {
			return fmt.Errorf("%w: coordinates %s out of range", ErrInvalidEvent, e.Coordinates)
		}
	case types.EventExit:
		if e.ExitTime.IsZero() {
			return fmt.Errorf("%w: exit_time is required for EXIT", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unsupported event type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}
