// Package types contains value types shared across the garage domain.
package types

import "strings"

// EventType is the kind of a vehicle event delivered by the garage sensors.
type EventType string

// Known event types.
const (
	EventEntry  EventType = "ENTRY"
	EventParked EventType = "PARKED"
	EventExit   EventType = "EXIT"
)

// ParseEventType resolves s case-insensitively. The second result is false
// for anything other than ENTRY, PARKED or EXIT.
func ParseEventType(s string) (EventType, bool) {
	switch EventType(strings.ToUpper(strings.TrimSpace(s))) {
	case EventEntry:
		return EventEntry, true
	case EventParked:
		return EventParked, true
	case EventExit:
		return EventExit, true
	default:
		return EventType(s), false
	}
}

// PlateState is the lifecycle position of a single license plate.
type PlateState uint8

// Plate lifecycle: ABSENT -> ENTERED -> PARKED -> ABSENT.
const (
	PlateAbsent PlateState = iota
	PlateEntered
	PlateParked
)

func (s PlateState) String() string {
	switch s {
	case PlateAbsent:
		return "ABSENT"
	case PlateEntered:
		return "ENTERED"
	case PlateParked:
		return "PARKED"
	default:
		return "UNKNOWN"
	}
}
