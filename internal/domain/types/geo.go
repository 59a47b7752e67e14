package types

import (
	"math"
	"strconv"
)

// Coordinates locate a physical spot. Together they are the spot's natural
// key, compared with exact equality.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Valid reports whether both values are finite and inside the WGS84 ranges.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}
