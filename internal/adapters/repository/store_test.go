package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/parkwise/internal/adapters/repository"
	"github.com/okian/parkwise/internal/domain/engine"
	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	spotA = types.Coordinates{Lat: -23.561684, Lng: -46.655981}
	spotB = types.Coordinates{Lat: -23.561685, Lng: -46.655982}
	t0    = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
)

func garage() model.Garage {
	g, err := model.Garage{
		Sectors: []model.Sector{{ID: "A", BasePrice: types.NewMoney(1000, "BRL"), MaxCapacity: 2}},
		Spots: []model.Spot{
			{SectorID: "A", Coordinates: spotA},
			{SectorID: "A", Coordinates: spotB},
		},
	}.Normalize()
	if err != nil {
		panic(err)
	}
	return g
}

func seeded(opts ...repository.Option) *repository.MemoryStore {
	s := repository.NewMemoryStore(opts...)
	if err := s.Update(context.Background(), func(tx engine.Tx) error {
		return tx.ReplaceGarage(garage())
	}); err != nil {
		panic(err)
	}
	return s
}

func snapshot(s *repository.MemoryStore) (occ int, occupied bool, vehicles int, ledger int) {
	_ = s.View(context.Background(), func(tx engine.Tx) error {
		sec, _ := tx.Sector("A")
		occ = sec.Occupancy()
		sp, _ := tx.SpotAt(spotA)
		occupied = sp.Occupied()
		if _, ok := tx.Vehicle("ABC1234"); ok {
			vehicles = 1
		}
		ledger = tx.LedgerSize()
		return nil
	})
	return
}

func TestMemoryStore_Update(t *testing.T) {
	Convey("Given a store holding one sector with two spots", t, func() {
		ctx := context.Background()
		s := seeded()

		Convey("When a transaction commits", func() {
			err := s.Update(ctx, func(tx engine.Tx) error {
				if err := tx.IncrementOccupancy("A"); err != nil {
					return err
				}
				if err := tx.Park(spotA, "ABC1234", t0); err != nil {
					return err
				}
				if err := tx.PutVehicle(model.Vehicle{Plate: "ABC1234", State: types.PlateParked, Spot: spotA, SectorID: "A"}); err != nil {
					return err
				}
				_, err := tx.Append(model.LedgerEntry{ID: "1", Plate: "ABC1234", Type: types.EventParked, Timestamp: t0})
				return err
			})

			Convey("Then every mutation is visible", func() {
				So(err, ShouldBeNil)
				occ, occupied, vehicles, ledger := snapshot(s)
				So(occ, ShouldEqual, 1)
				So(occupied, ShouldBeTrue)
				So(vehicles, ShouldEqual, 1)
				So(ledger, ShouldEqual, 1)
			})
		})

		Convey("When a transaction fails halfway", func() {
			boom := errors.New("boom")
			err := s.Update(ctx, func(tx engine.Tx) error {
				_ = tx.IncrementOccupancy("A")
				_ = tx.Park(spotA, "ABC1234", t0)
				_ = tx.PutVehicle(model.Vehicle{Plate: "ABC1234", State: types.PlateParked})
				_, _ = tx.Append(model.LedgerEntry{ID: "1", Plate: "ABC1234", Type: types.EventParked})
				return boom
			})

			Convey("Then nothing is left behind", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				occ, occupied, vehicles, ledger := snapshot(s)
				So(occ, ShouldEqual, 0)
				So(occupied, ShouldBeFalse)
				So(vehicles, ShouldEqual, 0)
				So(ledger, ShouldEqual, 0)
			})

			Convey("Then the next entry reuses the sequence number", func() {
				var seq int64
				So(s.Update(ctx, func(tx engine.Tx) error {
					e, err := tx.Append(model.LedgerEntry{ID: "2", Plate: "ABC1234", Type: types.EventEntry})
					seq = e.Seq
					return err
				}), ShouldBeNil)
				So(seq, ShouldEqual, int64(1))
			})
		})

		Convey("When a transaction panics", func() {
			func() {
				defer func() { _ = recover() }()
				_ = s.Update(ctx, func(tx engine.Tx) error {
					_ = tx.IncrementOccupancy("A")
					panic("mid-transaction")
				})
			}()

			Convey("Then its mutations are undone and the lock is released", func() {
				occ, _, _, _ := snapshot(s)
				So(occ, ShouldEqual, 0)
			})
		})

		Convey("When a mutation breaks a model invariant", func() {
			err := s.Update(ctx, func(tx engine.Tx) error {
				return tx.DecrementOccupancy("A")
			})
			So(errors.Is(err, model.ErrOccupancyUnderflow), ShouldBeTrue)
			So(model.KindOf(err), ShouldEqual, model.KindInvariant)
		})

		Convey("When a mutator references unknown state", func() {
			So(errors.Is(s.Update(ctx, func(tx engine.Tx) error { return tx.IncrementOccupancy("Z") }), model.ErrSectorNotFound), ShouldBeTrue)
			So(errors.Is(s.Update(ctx, func(tx engine.Tx) error {
				return tx.Release(types.Coordinates{Lat: 1, Lng: 1})
			}), model.ErrSpotNotFound), ShouldBeTrue)
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			called := false
			err := s.Update(cctx, func(engine.Tx) error { called = true; return nil })
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(called, ShouldBeFalse)
		})
	})
}

func TestMemoryStore_View(t *testing.T) {
	Convey("Given a read-only transaction", t, func() {
		s := seeded()
		var errs []error
		_ = s.View(context.Background(), func(tx engine.Tx) error {
			errs = append(errs,
				tx.IncrementOccupancy("A"),
				tx.Park(spotA, "X", t0),
				tx.PutVehicle(model.Vehicle{Plate: "X"}),
				tx.ReplaceGarage(model.Garage{}),
			)
			_, err := tx.Append(model.LedgerEntry{Plate: "X"})
			errs = append(errs, err)
			So(len(tx.Sectors()), ShouldEqual, 1)
			So(len(tx.Spots()), ShouldEqual, 2)
			So(tx.Spots()[0].ID, ShouldEqual, int64(1))
			return nil
		})

		Convey("Then every mutator is refused", func() {
			for _, err := range errs {
				So(errors.Is(err, model.ErrReadOnly), ShouldBeTrue)
			}
		})
	})
}

func TestMemoryStore_CommitHooks(t *testing.T) {
	Convey("Given a store with a commit hook", t, func() {
		var (
			mu        sync.Mutex
			published []model.LedgerEntry
		)
		s := seeded(repository.WithCommitHook(func(_ context.Context, entries []model.LedgerEntry) {
			mu.Lock()
			defer mu.Unlock()
			published = append(published, entries...)
		}))
		ctx := context.Background()
		appendEntry := func(tx engine.Tx) error {
			_, err := tx.Append(model.LedgerEntry{ID: "e", Plate: "ABC1234", Type: types.EventEntry, Timestamp: t0})
			return err
		}

		Convey("When an update commits an entry", func() {
			So(s.Update(ctx, appendEntry), ShouldBeNil)

			Convey("Then the hook receives it with its sequence number", func() {
				So(len(published), ShouldEqual, 1)
				So(published[0].Seq, ShouldEqual, int64(1))
			})
		})

		Convey("When an update fails", func() {
			_ = s.Update(ctx, func(tx engine.Tx) error {
				_ = appendEntry(tx)
				return errors.New("rejected")
			})
			So(len(published), ShouldEqual, 0)
		})

		Convey("When entries are replayed", func() {
			So(s.Replay(ctx, func(tx engine.Tx) error {
				_, err := tx.Append(model.LedgerEntry{ID: "r", Seq: 41, Plate: "ABC1234", Type: types.EventEntry})
				return err
			}), ShouldBeNil)

			Convey("Then the hook is not called and sequencing continues after them", func() {
				So(len(published), ShouldEqual, 0)
				So(s.Update(ctx, appendEntry), ShouldBeNil)
				So(published[0].Seq, ShouldEqual, int64(42))
			})
		})
	})
}

func TestMemoryStore_ReplaceGarage(t *testing.T) {
	Convey("Given a garage replacement that references an unknown sector", t, func() {
		s := seeded()
		err := s.Update(context.Background(), func(tx engine.Tx) error {
			return tx.ReplaceGarage(model.Garage{
				Sectors: []model.Sector{{ID: "B", MaxCapacity: 1}},
				Spots:   []model.Spot{{ID: 1, SectorID: "Z"}},
			})
		})

		Convey("Then it is refused and the old garage stays", func() {
			So(errors.Is(err, model.ErrInvalidGarage), ShouldBeTrue)
			_ = s.View(context.Background(), func(tx engine.Tx) error {
				_, ok := tx.Sector("A")
				So(ok, ShouldBeTrue)
				return nil
			})
		})
	})
}
