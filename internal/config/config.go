// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers a file and
//   the environment on top.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/parkwise/internal/domain/pricing"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3003".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Currency is the ISO 4217 code prices are quoted in.
	Currency string `koanf:"currency"`

	// Timezone is the IANA zone revenue days and offset-less timestamps
	// are evaluated in.
	Timezone string `koanf:"timezone"`

	// GarageFile seeds sectors and spots when the journal holds none.
	GarageFile string `koanf:"garage_file"`

	// JournalPath is the SQLite journal file. Empty disables persistence.
	JournalPath string `koanf:"journal_path"`

	// JournalQueueSize bounds the write-behind queue.
	JournalQueueSize int `koanf:"journal_queue_size"`

	// JournalWorkers sets the number of journal writers.
	JournalWorkers int `koanf:"journal_workers"`

	// OTelEndpoint is the OTLP/HTTP collector address. Empty keeps spans
	// in-process.
	OTelEndpoint string `koanf:"otel_endpoint"`

	// ServiceName and Environment label traces and metrics.
	ServiceName string `koanf:"service_name"`
	Environment string `koanf:"environment"`

	// PricingTiers overrides the occupancy tariff. Leave empty for the
	// default table.
	PricingTiers []PricingTier `koanf:"pricing_tiers"`
}

// PricingTier is one tariff band as configured: occupancy as a fraction in
// [0, 1] and the multiplier applied from it upwards.
type PricingTier struct {
	MinOccupancy float64 `koanf:"min_occupancy"`
	Multiplier   float64 `koanf:"multiplier"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":3003",
		ShutdownTimeout:  10 * time.Second,
		Currency:         "BRL",
		Timezone:         "UTC",
		JournalQueueSize: 10_000,
		JournalWorkers:   2,
		ServiceName:      "parkwise",
		Environment:      "development",
	}
}

// Validate checks values the service cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if len(c.Currency) != 3 || strings.ToUpper(c.Currency) != c.Currency {
		return fmt.Errorf("%w: currency must be a three letter upper-case code, got %q", ErrInvalidConfig, c.Currency)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.JournalQueueSize <= 0 {
		return fmt.Errorf("%w: journal_queue_size must be positive", ErrInvalidConfig)
	}
	if _, err := c.Tiers(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Tiers converts PricingTiers to basis points. It returns nil when no
// override is configured.
func (c *Config) Tiers() ([]pricing.Tier, error) {
	if len(c.PricingTiers) == 0 {
		return nil, nil
	}
	out := make([]pricing.Tier, 0, len(c.PricingTiers))
	hasZero := false
	for _, t := range c.PricingTiers {
		if t.MinOccupancy < 0 || t.MinOccupancy > 1 || t.Multiplier <= 0 {
			return nil, fmt.Errorf("%w: pricing tier {min_occupancy: %v, multiplier: %v} out of range",
				ErrInvalidConfig, t.MinOccupancy, t.Multiplier)
		}
		bp := pricing.Tier{
			MinOccupancyBP: int64(math.Round(t.MinOccupancy * 10_000)),
			MultiplierBP:   int64(math.Round(t.Multiplier * 10_000)),
		}
		hasZero = hasZero || bp.MinOccupancyBP == 0
		out = append(out, bp)
	}
	if !hasZero {
		return nil, fmt.Errorf("%w: pricing tiers must start at min_occupancy 0", ErrInvalidConfig)
	}
	return out, nil
}
