package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/parkwise/internal/domain/pricing"
	"github.com/okian/parkwise/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock sets the source of "now" used for PARKED timestamps and status
// prices.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPolicy sets the pricing policy.
func WithPolicy(p *pricing.Policy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithLocation sets the time zone revenue days are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithIDGenerator sets how ledger entry ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func defaultIDGenerator() string { return uuid.NewString() }
