package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for timestamp parsing.
var (
	ErrEmptyTimestamp   = errors.New("timestamp is empty")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidDate      = errors.New("invalid date")
)

// DateLayout is the calendar date format used by revenue queries.
const DateLayout = "2006-01-02"

// Layouts for ISO-8601 date-times that carry no offset. Fractional seconds
// are accepted after the seconds field.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO-8601 date-time. Values with an offset or a Z
// suffix keep it; values without one are read in loc (UTC when nil).
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// ParseDate parses a YYYY-MM-DD calendar day in loc (UTC when nil) and
// returns its half-open bounds [start, end).
func ParseDate(s string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return day, day.AddDate(0, 0, 1), nil
}
