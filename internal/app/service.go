// Package service wires the garage engine to its store, journal and
// tracing, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	eventqueue "github.com/okian/parkwise/internal/adapters/mq/queue"
	workerpool "github.com/okian/parkwise/internal/adapters/mq/worker"
	"github.com/okian/parkwise/internal/adapters/repository"
	"github.com/okian/parkwise/internal/domain/engine"
	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/pricing"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
	"github.com/okian/parkwise/pkg/metrics"
)

const tracerName = "github.com/okian/parkwise/internal/app"

// Journal is the durable side of the ledger.
type Journal interface {
	workerpool.Sink
	Entries(ctx context.Context) ([]model.LedgerEntry, error)
	SaveGarage(ctx context.Context, g model.Garage, baseSeq int64) error
	LoadGarage(ctx context.Context) (model.Garage, int64, bool, error)
	Close() error
}

// Service implements the API dependencies for the garage.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *repository.MemoryStore
	engine     *engine.Engine
	journal    Journal
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	queueSize      int
	workerCount    int
	seed           *model.Garage
	currency       string
	tiers          []pricing.Tier
	loc            *time.Location
	now            func() time.Time
	tracerProvider trace.TracerProvider

	// State
	started bool
	tracer  trace.Tracer

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:   10_000,
		workerCount: 2,
		currency:    types.DefaultCurrency,
		loc:         time.UTC,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	s.tracer = s.tracerProvider.Tracer(tracerName)
	return s
}

// Start builds the store and engine, restores state and starts the journal
// writers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting garage service...")

	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)
	s.store = repository.NewMemoryStore(
		repository.WithCommitHook(s.publish),
		repository.WithLogger(s.logger.Named("repository")),
	)
	policy := pricing.New(pricing.WithCurrency(s.currency), pricing.WithTiers(s.tiers))
	s.engine = engine.New(s.store,
		engine.WithPolicy(policy),
		engine.WithLocation(s.loc),
		engine.WithClock(s.now),
		engine.WithLogger(s.logger.Named("engine")),
	)

	if err := s.restore(ctx); err != nil {
		_ = s.eventQueue.Close()
		return err
	}

	if s.journal != nil {
		s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.journal,
			workerpool.WithLogger(s.logger.Named("journal-writer")))
		s.workerPool.Start(context.WithoutCancel(ctx))
	}

	s.started = true
	s.logger.Info(ctx, "garage service started",
		logger.Bool("journal", s.journal != nil),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// restore installs the journaled garage and replays the journaled ledger.
// Without a journal it installs the seed garage, if any.
func (s *Service) restore(ctx context.Context) error {
	if s.journal == nil {
		if s.seed == nil {
			return nil
		}
		if _, _, err := s.engine.ImportGarage(ctx, *s.seed); err != nil {
			return fmt.Errorf("%w: seed garage: %w", ErrRestore, err)
		}
		return nil
	}

	g, baseSeq, ok, err := s.journal.LoadGarage(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	if !ok && s.seed != nil {
		normalized, err := s.seed.Normalize()
		if err != nil {
			return fmt.Errorf("%w: seed garage: %w", ErrRestore, err)
		}
		// Persist the seed so later restarts replay against the same layout
		// even if the seed file changes.
		if err := s.journal.SaveGarage(ctx, normalized, 0); err != nil {
			return fmt.Errorf("%w: %w", ErrRestore, err)
		}
		g = normalized
	}
	entries, err := s.journal.Entries(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	if err := s.engine.Restore(ctx, g, baseSeq, entries); err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}
	s.updateParked(ctx)
	return nil
}

// publish is the store commit hook: it hands committed entries to the
// journal writers. A full queue loses the journal write, never the event.
func (s *Service) publish(ctx context.Context, entries []model.LedgerEntry) {
	if s.journal == nil {
		return
	}
	for _, e := range entries {
		if !s.eventQueue.Enqueue(ctx, e) {
			s.logger.Warn(ctx, "journal write dropped",
				logger.Int64("seq", e.Seq),
				logger.String("plate", e.Plate),
				logger.Int("queue_len", s.eventQueue.Len(ctx)))
		}
	}
}

// Stop drains the journal queue and closes the journal.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping garage service...")

	var err error
	if s.workerPool != nil {
		err = s.workerPool.Shutdown(ctx)
		s.workerPool = nil
	} else {
		_ = s.eventQueue.Close()
	}
	if s.journal != nil {
		if cerr := s.journal.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	s.started = false
	s.logger.Info(ctx, "garage service stopped")
	return err
}

func (s *Service) running() (*engine.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.engine, nil
}

// ProcessEvent runs one vehicle event through the engine.
func (s *Service) ProcessEvent(ctx context.Context, ev model.Event) (model.LedgerEntry, error) {
	ctx, span := s.tracer.Start(ctx, "garage.process_event", trace.WithAttributes(
		attribute.String("parking.event_type", string(ev.Type)),
		attribute.String("parking.plate", ev.Plate),
	))
	defer span.End()

	eng, err := s.running()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.LedgerEntry{}, err
	}

	start := time.Now()
	entry, err := eng.Process(ctx, ev)
	metrics.RecordProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		kind := model.KindOf(err)
		metrics.RecordEventRejected(string(ev.Type), kind.String())
		span.SetAttributes(attribute.String("parking.error_kind", kind.String()))
		span.RecordError(err)
		if !engine.IsRejection(err) || kind == model.KindInvariant {
			span.SetStatus(codes.Error, err.Error())
		}
		return model.LedgerEntry{}, err
	}

	metrics.RecordEventProcessed(string(ev.Type))
	span.SetAttributes(
		attribute.Int64("parking.seq", entry.Seq),
		attribute.String("parking.sector", entry.SectorID),
	)
	if entry.Price != nil {
		span.SetAttributes(attribute.String("parking.price", entry.Price.FormatMajor()))
	}
	return entry, nil
}

// PlateStatus returns the price so far for plate.
func (s *Service) PlateStatus(ctx context.Context, plate string) (engine.Status, error) {
	ctx, span := s.tracer.Start(ctx, "garage.plate_status")
	defer span.End()

	eng, err := s.running()
	if err != nil {
		return engine.Status{}, err
	}
	st, err := eng.PlateStatus(ctx, plate)
	span.SetAttributes(attribute.Bool("parking.occupied", st.Occupied))
	return st, err
}

// SpotStatus returns the occupant and price so far for the spot at c.
func (s *Service) SpotStatus(ctx context.Context, c types.Coordinates) (engine.Status, error) {
	ctx, span := s.tracer.Start(ctx, "garage.spot_status")
	defer span.End()

	eng, err := s.running()
	if err != nil {
		return engine.Status{}, err
	}
	st, err := eng.SpotStatus(ctx, c)
	span.SetAttributes(attribute.Bool("parking.occupied", st.Occupied))
	return st, err
}

// Revenue sums the EXIT charges of date for sectorID.
func (s *Service) Revenue(ctx context.Context, date, sectorID string) (engine.Revenue, error) {
	ctx, span := s.tracer.Start(ctx, "garage.revenue", trace.WithAttributes(
		attribute.String("parking.date", date),
		attribute.String("parking.sector", sectorID),
	))
	defer span.End()

	eng, err := s.running()
	if err != nil {
		return engine.Revenue{}, err
	}
	rev, err := eng.Revenue(ctx, date, sectorID)
	if err != nil {
		span.RecordError(err)
	}
	return rev, err
}

// Garage exports the current registry.
func (s *Service) Garage(ctx context.Context) (model.Garage, error) {
	eng, err := s.running()
	if err != nil {
		return model.Garage{}, err
	}
	return eng.Garage(ctx)
}

// ImportGarage replaces the registry and persists it when a journal is
// configured.
func (s *Service) ImportGarage(ctx context.Context, g model.Garage) error {
	ctx, span := s.tracer.Start(ctx, "garage.import")
	defer span.End()

	eng, err := s.running()
	if err != nil {
		return err
	}
	installed, baseSeq, err := eng.ImportGarage(ctx, g)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(
		attribute.Int("parking.sectors", len(installed.Sectors)),
		attribute.Int("parking.spots", len(installed.Spots)),
	)
	if s.journal != nil {
		if err := s.journal.SaveGarage(ctx, installed, baseSeq); err != nil {
			// The new garage is live; only its durability failed.
			s.logger.Error(ctx, "persist imported garage", logger.Error(err))
			metrics.RecordJournalError()
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("garage imported but not persisted: %w", err)
		}
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":   s.started,
		"journal":   s.journal != nil,
		"queueSize": s.queueSize,
	}
	if !s.started {
		return stats
	}

	stats["queueLength"] = s.eventQueue.Len(ctx)
	if s.workerPool != nil {
		stats["workerCount"] = s.workerPool.Size()
	}

	occ, err := s.engine.Occupancy(ctx)
	if err != nil {
		stats["error"] = err.Error()
		return stats
	}
	parked := 0
	sectors := make([]map[string]interface{}, 0, len(occ))
	for _, o := range occ {
		parked += o.Occupancy
		sectors = append(sectors, map[string]interface{}{
			"sector":      o.SectorID,
			"occupancy":   o.Occupancy,
			"capacity":    o.Capacity,
			"multiplier":  float64(o.MultiplierBP) / 10_000,
			"hourly_rate": o.HourlyRate.Decimal(),
		})
	}
	stats["parked"] = parked
	stats["sectors"] = sectors
	metrics.UpdateParkedVehicles(parked)
	return stats
}

func (s *Service) updateParked(ctx context.Context) {
	occ, err := s.engine.Occupancy(ctx)
	if err != nil {
		return
	}
	parked := 0
	for _, o := range occ {
		parked += o.Occupancy
	}
	metrics.UpdateParkedVehicles(parked)
}
