package repository

import (
	"context"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/pkg/logger"
)

// CommitHook receives the ledger entries appended by a committed Update,
// after the store lock is released.
type CommitHook func(ctx context.Context, entries []model.LedgerEntry)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithCommitHook registers h to run after every committed Update that
// appended at least one ledger entry.
func WithCommitHook(h CommitHook) Option {
	return func(s *MemoryStore) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}
