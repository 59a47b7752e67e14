package model

import (
	"fmt"
	"time"

	"github.com/okian/parkwise/internal/domain/types"
)

// Spot is a physical parking place. Whether it is occupied is derived from
// the occupant plate and never stored on its own.
type Spot struct {
	ID          int64
	SectorID    string
	Coordinates types.Coordinates

	plate    string
	parkedAt time.Time
}

// Occupied reports whether a vehicle is assigned to the spot.
func (s *Spot) Occupied() bool { return s.plate != "" }

// Plate returns the occupant plate, empty when free.
func (s *Spot) Plate() string { return s.plate }

// ParkedAt returns when the occupant parked, zero when free.
func (s *Spot) ParkedAt() time.Time { return s.parkedAt }

// Park assigns plate to the spot.
func (s *Spot) Park(plate string, at time.Time) error {
	if plate == "" {
		return fmt.Errorf("park at %s without a plate: %w", s.Coordinates, ErrInvalidEvent)
	}
	if s.Occupied() {
		return fmt.Errorf("spot %s held by %s: %w", s.Coordinates, s.plate, ErrSpotOccupied)
	}
	s.plate = plate
	s.parkedAt = at
	return nil
}

// Release clears the occupant.
func (s *Spot) Release() error {
	if !s.Occupied() {
		return fmt.Errorf("spot %s: %w", s.Coordinates, ErrSpotVacant)
	}
	s.plate = ""
	s.parkedAt = time.Time{}
	return nil
}
