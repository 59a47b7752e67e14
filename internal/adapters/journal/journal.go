// Package journal persists accepted ledger entries and the installed garage
// to SQLite so a restarted service can rebuild its state.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/parkwise/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
// 1 - ledger, garage_snapshot, sectors, spots
const currentSchemaVersion = 1

// Journal is a SQLite-backed append log. Safe for concurrent use.
type Journal struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
	logger logger.Logger
}

// Open creates or opens the journal at path and applies the schema.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	j := &Journal{db: db, path: path, logger: logger.Named("journal")}
	j.logger.Info(ctx, "journal opened", logger.String("path", path))
	return j, nil
}

// Close closes the database. Further calls fail with ErrClosed.
func (j *Journal) Close() error {
	if !j.closed.CompareAndSwap(false, true) {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) usable() error {
	if j.closed.Load() {
		return ErrClosed
	}
	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("%w: user_version: %v", ErrOpen, err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("%w: found %d, support %d", ErrSchemaTooNew, version, currentSchemaVersion)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: schema: %v", ErrOpen, err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("%w: set user_version: %v", ErrOpen, err)
	}
	return nil
}
