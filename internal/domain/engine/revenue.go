package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
)

// Revenue is the total charged on EXIT over one calendar day.
type Revenue struct {
	Amount   types.Money
	Date     time.Time
	SectorID string
	Exits    int
}

// Revenue sums the EXIT charges whose timestamp falls on date (YYYY-MM-DD in
// the engine location) for sectorID, or for every sector when it is empty.
// PARKED price markers are not revenue.
func (e *Engine) Revenue(ctx context.Context, date, sectorID string) (Revenue, error) {
	start, end, err := types.ParseDate(date, e.loc)
	if err != nil {
		return Revenue{}, fmt.Errorf("%w: %v", model.ErrInvalidQuery, err)
	}

	out := Revenue{
		Amount:   types.NewMoney(0, e.policy.Currency()),
		Date:     start,
		SectorID: sectorID,
	}
	err = e.store.View(ctx, func(tx Tx) error {
		if sectorID != "" {
			if _, ok := tx.Sector(sectorID); !ok {
				return fmt.Errorf("sector %q: %w", sectorID, model.ErrSectorNotFound)
			}
		}
		tx.Entries(func(le model.LedgerEntry) bool {
			if le.Type != types.EventExit || le.Price == nil {
				return true
			}
			if sectorID != "" && le.SectorID != sectorID {
				return true
			}
			if le.Timestamp.Before(start) || !le.Timestamp.Before(end) {
				return true
			}
			out.Amount = out.Amount.Add(*le.Price)
			out.Exits++
			return true
		})
		return nil
	})
	if err != nil {
		return Revenue{}, err
	}
	return out, nil
}
