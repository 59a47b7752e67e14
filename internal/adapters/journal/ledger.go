package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/metrics"
)

// Append stores one ledger entry. Appending an id twice is a no-op, so
// retried writes are safe.
func (j *Journal) Append(ctx context.Context, e model.LedgerEntry) error {
	if err := j.usable(); err != nil {
		return err
	}
	start := time.Now()

	var lat, lng sql.NullFloat64
	if e.Coordinates != nil {
		lat = sql.NullFloat64{Float64: e.Coordinates.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: e.Coordinates.Lng, Valid: true}
	}
	var price sql.NullInt64
	currency := ""
	if e.Price != nil {
		price = sql.NullInt64{Int64: e.Price.Amount, Valid: true}
		currency = e.Price.Currency
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO ledger
		(id, seq, plate, event_type, ts, lat, lng, sector, price_cents, currency, rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Seq,
		e.Plate,
		string(e.Type),
		e.Timestamp.Format(time.RFC3339Nano),
		lat,
		lng,
		e.SectorID,
		price,
		currency,
		int64(e.Rate),
	)
	if err != nil {
		metrics.RecordJournalError()
		return fmt.Errorf("append seq %d: %w", e.Seq, err)
	}
	metrics.RecordJournalWrite(float64(time.Since(start).Nanoseconds()) / 1e6)
	return nil
}

// Entries returns every stored entry ordered by sequence.
func (j *Journal) Entries(ctx context.Context) ([]model.LedgerEntry, error) {
	if err := j.usable(); err != nil {
		return nil, err
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seq, plate, event_type, ts, lat, lng, sector, price_cents, currency, rate
		FROM ledger
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return out, nil
}

// Count returns the number of stored entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	if err := j.usable(); err != nil {
		return 0, err
	}
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger").Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (model.LedgerEntry, error) {
	var (
		e         model.LedgerEntry
		eventType string
		ts        string
		lat, lng  sql.NullFloat64
		price     sql.NullInt64
		currency  string
		rate      int64
	)
	if err := rows.Scan(&e.ID, &e.Seq, &e.Plate, &eventType, &ts, &lat, &lng, &e.SectorID, &price, &currency, &rate); err != nil {
		return model.LedgerEntry{}, fmt.Errorf("scan ledger: %w", err)
	}
	t, ok := types.ParseEventType(eventType)
	if !ok {
		return model.LedgerEntry{}, fmt.Errorf("%w: seq %d event type %q", ErrCorruptRecord, e.Seq, eventType)
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("%w: seq %d timestamp %q", ErrCorruptRecord, e.Seq, ts)
	}
	e.Type = t
	e.Timestamp = at
	e.Rate = types.Rate(rate)
	if lat.Valid && lng.Valid {
		e.Coordinates = &types.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	if price.Valid {
		m := types.NewMoney(price.Int64, currency)
		e.Price = &m
	}
	return e, nil
}
