// Package worker drains the ledger queue into a durable sink.
package worker

import (
	"time"

	"github.com/okian/parkwise/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMaxTries bounds how often a sink write is attempted per entry.
func WithMaxTries(n uint) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.maxTries = n
		}
	}
}

// WithBackOff sets the initial and maximum delay between sink retries.
func WithBackOff(initial, maxInterval time.Duration) Option {
	return func(w *InMemoryWorker) {
		if initial > 0 {
			w.initialInterval = initial
		}
		if maxInterval > 0 {
			w.maxInterval = maxInterval
		}
	}
}
