package service

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/pricing"
	"github.com/okian/parkwise/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithJournal enables persistence through j. The service closes it on Stop.
func WithJournal(j Journal) Option {
	return func(s *Service) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithQueueSize sets the capacity of the journal write-behind queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of journal writers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithSeedGarage installs g at start when the journal holds no garage.
func WithSeedGarage(g model.Garage) Option {
	return func(s *Service) {
		s.seed = &g
	}
}

// WithCurrency sets the currency prices are quoted in.
func WithCurrency(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.currency = code
		}
	}
}

// WithTiers overrides the occupancy tariff.
func WithTiers(tiers []pricing.Tier) Option {
	return func(s *Service) {
		if len(tiers) > 0 {
			s.tiers = tiers
		}
	}
}

// WithLocation sets the zone revenue days are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTracerProvider sets where service spans go. Defaults to the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracerProvider = tp
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
