package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
)

// SaveGarage replaces the stored garage. baseSeq is the last ledger sequence
// committed before g was installed; replay uses it to tell which entries
// still refer to the previous layout.
func (j *Journal) SaveGarage(ctx context.Context, g model.Garage, baseSeq int64) (err error) {
	if err := j.usable(); err != nil {
		return err
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save garage: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM spots"); err != nil {
		return fmt.Errorf("save garage: clear spots: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM sectors"); err != nil {
		return fmt.Errorf("save garage: clear sectors: %w", err)
	}
	for _, s := range g.Sectors {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sectors
			(id, base_price_cents, currency, max_capacity, open_hour, close_hour, duration_limit_minutes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, s.ID, s.BasePrice.Amount, s.BasePrice.Currency, s.MaxCapacity, s.OpenHour, s.CloseHour, s.DurationLimitMinutes)
		if err != nil {
			return fmt.Errorf("save garage: sector %q: %w", s.ID, err)
		}
	}
	for _, sp := range g.Spots {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO spots (id, sector, lat, lng) VALUES (?, ?, ?, ?)",
			sp.ID, sp.SectorID, sp.Coordinates.Lat, sp.Coordinates.Lng)
		if err != nil {
			return fmt.Errorf("save garage: spot %d: %w", sp.ID, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO garage_snapshot (id, base_seq, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET base_seq = excluded.base_seq, saved_at = excluded.saved_at
	`, baseSeq, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save garage: snapshot: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("save garage: commit: %w", err)
	}

	j.logger.Info(ctx, "garage saved",
		logger.Int("sectors", len(g.Sectors)),
		logger.Int("spots", len(g.Spots)),
		logger.Int64("base_seq", baseSeq))
	return nil
}

// LoadGarage returns the stored garage. ok is false when none was saved.
func (j *Journal) LoadGarage(ctx context.Context) (g model.Garage, baseSeq int64, ok bool, err error) {
	if err := j.usable(); err != nil {
		return model.Garage{}, 0, false, err
	}
	err = j.db.QueryRowContext(ctx, "SELECT base_seq FROM garage_snapshot WHERE id = 1").Scan(&baseSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Garage{}, 0, false, nil
	}
	if err != nil {
		return model.Garage{}, 0, false, fmt.Errorf("load garage: %w", err)
	}

	if g.Sectors, err = j.loadSectors(ctx); err != nil {
		return model.Garage{}, 0, false, err
	}
	if g.Spots, err = j.loadSpots(ctx); err != nil {
		return model.Garage{}, 0, false, err
	}
	return g, baseSeq, true, nil
}

func (j *Journal) loadSectors(ctx context.Context) ([]model.Sector, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, base_price_cents, currency, max_capacity, open_hour, close_hour, duration_limit_minutes
		FROM sectors
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load sectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Sector
	for rows.Next() {
		var (
			s        model.Sector
			cents    int64
			currency string
		)
		if err := rows.Scan(&s.ID, &cents, &currency, &s.MaxCapacity, &s.OpenHour, &s.CloseHour, &s.DurationLimitMinutes); err != nil {
			return nil, fmt.Errorf("scan sector: %w", err)
		}
		s.BasePrice = types.NewMoney(cents, currency)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sectors: %w", err)
	}
	return out, nil
}

func (j *Journal) loadSpots(ctx context.Context) ([]model.Spot, error) {
	rows, err := j.db.QueryContext(ctx, "SELECT id, sector, lat, lng FROM spots ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load spots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Spot
	for rows.Next() {
		var sp model.Spot
		if err := rows.Scan(&sp.ID, &sp.SectorID, &sp.Coordinates.Lat, &sp.Coordinates.Lng); err != nil {
			return nil, fmt.Errorf("scan spot: %w", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spots: %w", err)
	}
	return out, nil
}
