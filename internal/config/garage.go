package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
)

// GarageFile is the on-disk garage seed. JSON documents of the same shape
// parse too, since JSON is a YAML subset.
type GarageFile struct {
	Garage sectorFiles `yaml:"garage"`
	Spots  []SpotFile   `yaml:"spots"`
}

// SectorFile is one sector row of a garage seed.
type SectorFile struct {
	Sector               string  `yaml:"sector"`
	BasePrice            float64 `yaml:"base_price"`
	MaxCapacity          int     `yaml:"max_capacity"`
	OpenHour             string  `yaml:"open_hour"`
	CloseHour            string  `yaml:"close_hour"`
	DurationLimitMinutes int     `yaml:"duration_limit_minutes"`
}

// SpotFile is one spot row of a garage seed.
type SpotFile struct {
	ID     int64   `yaml:"id"`
	Sector string  `yaml:"sector"`
	Lat    float64 `yaml:"lat"`
	Lng    float64 `yaml:"lng"`
}

// LoadGarageFile reads and validates a garage seed. Base prices are in major
// units of currency.
func LoadGarageFile(path, currency string) (model.Garage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Garage{}, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
	}
	return ParseGarage(raw, currency)
}

// ParseGarage decodes a garage seed document.
func ParseGarage(raw []byte, currency string) (model.Garage, error) {
	var doc GarageFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return model.Garage{}, fmt.Errorf("%w: %v", ErrInvalidGarage, err)
	}
	g, err := doc.Garage.toModel(doc.Spots, currency).Normalize()
	if err != nil {
		return model.Garage{}, fmt.Errorf("%w: %v", ErrInvalidGarage, err)
	}
	return g, nil
}

type sectorFiles []SectorFile

func (sectors sectorFiles) toModel(spots []SpotFile, currency string) model.Garage {
	g := model.Garage{
		Sectors: make([]model.Sector, 0, len(sectors)),
		Spots:   make([]model.Spot, 0, len(spots)),
	}
	for _, s := range sectors {
		g.Sectors = append(g.Sectors, model.Sector{
			ID:                   s.Sector,
			BasePrice:            types.MoneyFromMajor(s.BasePrice, currency),
			MaxCapacity:          s.MaxCapacity,
			OpenHour:             s.OpenHour,
			CloseHour:            s.CloseHour,
			DurationLimitMinutes: s.DurationLimitMinutes,
		})
	}
	for _, sp := range spots {
		g.Spots = append(g.Spots, model.Spot{
			ID:          sp.ID,
			SectorID:    sp.Sector,
			Coordinates: types.Coordinates{Lat: sp.Lat, Lng: sp.Lng},
		})
	}
	return g
}
