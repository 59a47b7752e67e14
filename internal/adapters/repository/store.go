// Package repository holds the in-memory garage state: the sector and spot
// registries, per-plate lifecycle records and the append-only ledger.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/parkwise/internal/domain/engine"
	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
	"github.com/okian/parkwise/pkg/metrics"
)

var _ engine.Store = (*MemoryStore)(nil)

// MemoryStore implements engine.Store. Writers are serialized by a single
// lock so a check and the mutation it guards can never interleave with
// another event; readers share the lock.
type MemoryStore struct {
	mu sync.RWMutex

	sectors  map[string]*model.Sector
	spots    map[types.Coordinates]*model.Spot
	vehicles map[string]model.Vehicle
	ledger   []model.LedgerEntry
	nextSeq  int64

	hooks  []CommitHook
	logger logger.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sectors:  make(map[string]*model.Sector),
		spots:    make(map[types.Coordinates]*model.Spot),
		vehicles: make(map[string]model.Vehicle),
		nextSeq:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}
	return s
}

// Update runs fn in a read-write transaction.
func (s *MemoryStore) Update(ctx context.Context, fn func(engine.Tx) error) error {
	appended, err := s.write(ctx, fn)
	if err != nil {
		return err
	}
	if len(appended) > 0 {
		for _, h := range s.hooks {
			h(ctx, appended)
		}
	}
	return nil
}

// Replay runs fn in a read-write transaction without invoking commit hooks.
func (s *MemoryStore) Replay(ctx context.Context, fn func(engine.Tx) error) error {
	_, err := s.write(ctx, fn)
	return err
}

// View runs fn in a read-only transaction.
func (s *MemoryStore) View(ctx context.Context, fn func(engine.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	return fn(&memTx{ctx: ctx, store: s, readOnly: true})
}

func (s *MemoryStore) write(ctx context.Context, fn func(engine.Tx) error) ([]model.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{ctx: ctx, store: s}
	committed := false
	defer func() {
		// Runs on error returns and on panics inside fn.
		if !committed {
			undone := len(tx.undo)
			tx.rollback()
			metrics.RecordRepositoryRollback()
			s.logger.Debug(ctx, "transaction rolled back", logger.Int("undone", undone))
		}
	}()

	if err := fn(tx); err != nil {
		return nil, err
	}
	committed = true

	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateLedgerEntries(len(s.ledger))
	return tx.appended, nil
}
