// Package model contains the garage domain entities and their invariants.
package model

import (
	"fmt"

	"github.com/okian/parkwise/internal/domain/types"
)

// Sector is a billing and capacity zone. Its occupancy counter is only
// moved by Increment and Decrement, which refuse to leave [0, MaxCapacity].
type Sector struct {
	ID                   string
	BasePrice            types.Money
	MaxCapacity          int
	OpenHour             string
	CloseHour            string
	DurationLimitMinutes int

	occupancy int
}

// Occupancy returns the number of vehicles currently parked in the sector.
func (s *Sector) Occupancy() int { return s.occupancy }

// Full reports whether no further vehicle fits.
func (s *Sector) Full() bool { return s.occupancy >= s.MaxCapacity }

// Available returns the free capacity.
func (s *Sector) Available() int {
	if s.Full() {
		return 0
	}
	return s.MaxCapacity - s.occupancy
}

// OccupancyRate returns occupancy / capacity for display. Pricing uses
// integer arithmetic instead.
func (s *Sector) OccupancyRate() float64 {
	if s.MaxCapacity <= 0 {
		return 1
	}
	return float64(s.occupancy) / float64(s.MaxCapacity)
}

// Increment admits one vehicle.
func (s *Sector) Increment() error {
	if s.occupancy >= s.MaxCapacity {
		return fmt.Errorf("sector %s at %d/%d: %w", s.ID, s.occupancy, s.MaxCapacity, ErrOccupancyOverflow)
	}
	s.occupancy++
	return nil
}

// Decrement releases one vehicle.
func (s *Sector) Decrement() error {
	if s.occupancy <= 0 {
		return fmt.Errorf("sector %s: %w", s.ID, ErrOccupancyUnderflow)
	}
	s.occupancy--
	return nil
}
