package engine_test

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

func TestEngine_Status(t *testing.T) {
	Convey("Given a vehicle parked in sector A for 90 minutes", t, func() {
		f := newFixture()
		So(f.entry("STA0001", t0), ShouldBeNil)
		_, err := f.park("STA0001", a2)
		So(err, ShouldBeNil)
		f.advance(90 * time.Minute)

		Convey("When its plate status is queried", func() {
			st, err := f.eng.PlateStatus(f.ctx, " sta0001 ")
			So(err, ShouldBeNil)

			Convey("Then the price so far uses the current multiplier", func() {
				So(st.Occupied, ShouldBeTrue)
				So(st.Plate, ShouldEqual, "STA0001")
				So(st.Price.FormatMajor(), ShouldEqual, "13.50")
				So(st.EntryTime.Equal(t0), ShouldBeTrue)
				So(*st.Coordinates, ShouldResemble, a2)
				So(st.SectorID, ShouldEqual, "A")
			})

			Convey("Then an immediate second query returns the same price", func() {
				again, err := f.eng.PlateStatus(f.ctx, "STA0001")
				So(err, ShouldBeNil)
				So(again.Price, ShouldResemble, st.Price)
			})
		})

		Convey("When its spot status is queried", func() {
			st, err := f.eng.SpotStatus(f.ctx, a2)
			So(err, ShouldBeNil)
			So(st.Occupied, ShouldBeTrue)
			So(st.Plate, ShouldEqual, "STA0001")
			So(st.Price.FormatMajor(), ShouldEqual, "13.50")
		})

		Convey("When the sector fills up before the query", func() {
			for _, p := range []struct {
				plate string
				c     types.Coordinates
			}{{"STA0002", a1}, {"STA0003", a3}} {
				_, err := f.park(p.plate, p.c)
				So(err, ShouldBeNil)
			}
			st, err := f.eng.PlateStatus(f.ctx, "STA0001")
			So(err, ShouldBeNil)

			Convey("Then the estimate follows the new occupancy", func() {
				// 3/10 occupied: 10.00/h, 0.17/min
				So(st.Price.FormatMajor(), ShouldEqual, "15.10")
			})

			Convey("Then the final bill keeps the rate from parking time", func() {
				out, err := f.exit("STA0001", t0.Add(90*time.Minute))
				So(err, ShouldBeNil)
				So(out.Price.FormatMajor(), ShouldEqual, "13.50")
			})
		})

		Convey("When nothing matches", func() {
			for _, st := range []engine.Status{
				mustStatus(f.eng.PlateStatus(f.ctx, "NOPE000")),
				mustStatus(f.eng.SpotStatus(f.ctx, a1)),
				mustStatus(f.eng.SpotStatus(f.ctx, nowhere)),
			} {
				So(st.Occupied, ShouldBeFalse)
				So(st.Price.IsZero(), ShouldBeTrue)
				So(st.EntryTime, ShouldBeNil)
				So(st.ParkedAt, ShouldBeNil)
				So(st.Now.Equal(f.clock()), ShouldBeTrue)
			}

			Convey("Then a plate query echoes the plate it asked for", func() {
				So(mustStatus(f.eng.PlateStatus(f.ctx, "nope000")).Plate, ShouldEqual, "NOPE000")
				So(mustStatus(f.eng.SpotStatus(f.ctx, nowhere)).Plate, ShouldEqual, "")
			})
		})

		Convey("When a plate has entered but not parked", func() {
			So(f.entry("STA0009", t0), ShouldBeNil)
			st, err := f.eng.PlateStatus(f.ctx, "STA0009")
			So(err, ShouldBeNil)
			So(st.Occupied, ShouldBeFalse)
			So(st.Plate, ShouldEqual, "STA0009")
		})
	})
}

func mustStatus(st engine.Status, err error) engine.Status {
	if err != nil {
		panic(err)
	}
	return st
}

func TestEngine_Revenue(t *testing.T) {
	Convey("Given completed visits on two days", t, func() {
		loc := time.FixedZone("BRT", -3*60*60)
		store := repository.NewMemoryStore()
		eng := engine.New(store, engine.WithLocation(loc), engine.WithClock(func() time.Time { return t0 }))
		ctx := context.Background()
		_, _, err := eng.ImportGarage(ctx, testGarage())
		So(err, ShouldBeNil)

		visit := func(plate string, c types.Coordinates, in, out time.Time) {
			_, err := eng.Process(ctx, model.Event{Plate: plate, Type: types.EventEntry, EntryTime: in})
			So(err, ShouldBeNil)
			_, err = eng.Process(ctx, model.Event{Plate: plate, Type: types.EventParked, Coordinates: &c})
			So(err, ShouldBeNil)
			_, err = eng.Process(ctx, model.Event{Plate: plate, Type: types.EventExit, ExitTime: out})
			So(err, ShouldBeNil)
		}
		// A is priced at 9.00/h; B holds one car, so its only visit is at 12.50/h.
		visit("REV0001", a1, t0, t0.Add(2*time.Hour))
		visit("REV0002", b1, t0, t0.Add(time.Hour))
		// 2025-01-02 01:00 UTC is still 2025-01-01 in BRT.
		visit("REV0003", a2, t0, time.Date(2025, 1, 2, 1, 0, 0, 0, time.UTC))
		// 2025-01-02 04:00 UTC is 2025-01-02 in BRT.
		visit("REV0004", a3, t0, time.Date(2025, 1, 2, 4, 0, 0, 0, time.UTC))

		Convey("When revenue is asked for one sector", func() {
			rev, err := eng.Revenue(ctx, "2025-01-01", "A")
			So(err, ShouldBeNil)

			Convey("Then only that day's exits in that sector count", func() {
				// 18.00 + 13h at 9.00
				So(rev.Amount.FormatMajor(), ShouldEqual, "135.00")
				So(rev.Exits, ShouldEqual, 2)
			})
		})

		Convey("When revenue is asked for all sectors", func() {
			rev, err := eng.Revenue(ctx, "2025-01-01", "")
			So(err, ShouldBeNil)
			So(rev.Amount.FormatMajor(), ShouldEqual, "147.50")
			So(rev.Exits, ShouldEqual, 3)
		})

		Convey("When a day has no exits", func() {
			rev, err := eng.Revenue(ctx, "2024-12-31", "A")
			So(err, ShouldBeNil)
			So(rev.Amount.IsZero(), ShouldBeTrue)
		})

		Convey("When the query is invalid", func() {
			_, err := eng.Revenue(ctx, "01/01/2025", "A")
			So(errors.Is(err, model.ErrInvalidQuery), ShouldBeTrue)

			_, err = eng.Revenue(ctx, "2025-01-01", "Q")
			So(errors.Is(err, model.ErrSectorNotFound), ShouldBeTrue)
		})
	})
}

func TestEngine_ImportGarage(t *testing.T) {
	Convey("Given a running garage", t, func() {
		f := newFixture()

		Convey("When a vehicle is parked", func() {
			_, err := f.park("BUSY001", a1)
			So(err, ShouldBeNil)

			Convey("Then an import is refused", func() {
				_, _, err := f.eng.ImportGarage(f.ctx, testGarage())
				So(errors.Is(err, model.ErrGarageBusy), ShouldBeTrue)
				So(model.KindOf(err), ShouldEqual, model.KindBusiness)
			})
		})

		Convey("When the new garage is invalid", func() {
			_, _, err := f.eng.ImportGarage(f.ctx, model.Garage{Sectors: []model.Sector{{ID: "X"}}})
			So(errors.Is(err, model.ErrInvalidGarage), ShouldBeTrue)
		})

		Convey("When the garage is idle", func() {
			So(f.entry("IDLE001", t0), ShouldBeNil)
			g, baseSeq, err := f.eng.ImportGarage(f.ctx, model.Garage{
				Sectors: []model.Sector{{ID: "N", BasePrice: types.NewMoney(500, "BRL"), MaxCapacity: 2}},
				Spots:   []model.Spot{{SectorID: "N", Coordinates: a1}},
			})

			Convey("Then the new registry replaces the old one", func() {
				So(err, ShouldBeNil)
				So(baseSeq, ShouldEqual, int64(1))
				So(g.Sectors[0].OpenHour, ShouldEqual, model.DefaultOpenHour)

				exported, err := f.eng.Garage(f.ctx)
				So(err, ShouldBeNil)
				So(len(exported.Sectors), ShouldEqual, 1)
				So(exported.Spots[0].SectorID, ShouldEqual, "N")
			})
		})
	})
}

func TestEngine_Restore(t *testing.T) {
	Convey("Given the ledger published by a live engine", t, func() {
		var (
			mu      sync.Mutex
			journal []model.LedgerEntry
		)
		live := newFixture(repository.WithCommitHook(func(_ context.Context, entries []model.LedgerEntry) {
			mu.Lock()
			defer mu.Unlock()
			journal = append(journal, entries...)
		}))
		So(live.entry("RST0001", t0), ShouldBeNil)
		_, err := live.park("RST0001", a1)
		So(err, ShouldBeNil)
		So(live.entry("RST0002", t0), ShouldBeNil)
		_, err = live.park("RST0002", b1)
		So(err, ShouldBeNil)
		_, err = live.exit("RST0002", t0.Add(time.Hour))
		So(err, ShouldBeNil)
		So(live.entry("RST0003", t0), ShouldBeNil)

		Convey("When a fresh engine restores it out of order", func() {
			reversed := make([]model.LedgerEntry, len(journal))
			for i, e := range journal {
				reversed[len(journal)-1-i] = e
			}
			fresh := engine.New(repository.NewMemoryStore(), engine.WithClock(live.clock))
			So(fresh.Restore(context.Background(), testGarage(), 0, reversed), ShouldBeNil)

			Convey("Then occupancy, plate states and revenue match", func() {
				occ, err := fresh.Occupancy(context.Background())
				So(err, ShouldBeNil)
				So(occ[0].Occupancy, ShouldEqual, 1)
				So(occ[1].Occupancy, ShouldEqual, 0)

				st, err := fresh.PlateStatus(context.Background(), "RST0001")
				So(err, ShouldBeNil)
				So(st.Occupied, ShouldBeTrue)

				rev, err := fresh.Revenue(context.Background(), "2025-01-01", "B")
				So(err, ShouldBeNil)
				So(rev.Amount.FormatMajor(), ShouldEqual, "12.50")
			})

			Convey("Then the restored entered plate cannot enter twice", func() {
				_, err := fresh.Process(context.Background(), model.Event{Plate: "RST0003", Type: types.EventEntry, EntryTime: t0})
				So(errors.Is(err, model.ErrDuplicateEntry), ShouldBeTrue)
			})

			Convey("Then new entries continue the sequence", func() {
				out, err := fresh.Process(context.Background(), model.Event{Plate: "RST0004", Type: types.EventEntry, EntryTime: t0})
				So(err, ShouldBeNil)
				So(out.Seq, ShouldEqual, int64(len(journal)+1))
			})
		})

		Convey("When the garage was replaced after every vehicle left", func() {
			_, err := live.exit("RST0001", t0.Add(2*time.Hour))
			So(err, ShouldBeNil)
			fresh := engine.New(repository.NewMemoryStore(), engine.WithClock(live.clock))
			// Every entry predates the garage: only plate state is rebuilt.
			So(fresh.Restore(context.Background(), testGarage(), int64(len(journal)), journal), ShouldBeNil)

			occ, err := fresh.Occupancy(context.Background())
			So(err, ShouldBeNil)
			So(occ[0].Occupancy, ShouldEqual, 0)

			_, err = fresh.Process(context.Background(), model.Event{Plate: "RST0003", Type: types.EventEntry, EntryTime: t0})
			So(errors.Is(err, model.ErrDuplicateEntry), ShouldBeTrue)

			c := a1
			_, err = fresh.Process(context.Background(), model.Event{Plate: "RST0003", Type: types.EventParked, Coordinates: &c})
			So(err, ShouldBeNil)
			So(restoredSpotHolder(fresh, a1), ShouldEqual, "RST0003")
		})

		Convey("When the import point still shows a vehicle parked", func() {
			fresh := engine.New(repository.NewMemoryStore(), engine.WithClock(live.clock))
			So(fresh.Restore(context.Background(), testGarage(), int64(len(journal)), journal), ShouldBeNil)

			Convey("Then the vehicle keeps its entry but holds no spot", func() {
				st, err := fresh.PlateStatus(context.Background(), "RST0001")
				So(err, ShouldBeNil)
				So(st.Occupied, ShouldBeFalse)

				_, err = fresh.Process(context.Background(), model.Event{Plate: "RST0001", Type: types.EventExit, ExitTime: t0.Add(time.Hour)})
				So(errors.Is(err, model.ErrVehicleNotFound), ShouldBeTrue)

				c := a1
				_, err = fresh.Process(context.Background(), model.Event{Plate: "RST0001", Type: types.EventParked, Coordinates: &c})
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestEngine_RestoreGaps(t *testing.T) {
	Convey("Given a journal that lost some writes", t, func() {
		var (
			mu      sync.Mutex
			journal []model.LedgerEntry
		)
		live := newFixture(repository.WithCommitHook(func(_ context.Context, entries []model.LedgerEntry) {
			mu.Lock()
			defer mu.Unlock()
			journal = append(journal, entries...)
		}))
		restore := func(entries []model.LedgerEntry) *engine.Engine {
			fresh := engine.New(repository.NewMemoryStore(), engine.WithClock(live.clock))
			So(fresh.Restore(context.Background(), testGarage(), 0, entries), ShouldBeNil)
			return fresh
		}
		occupancyOf := func(eng *engine.Engine, sector string) int {
			occ, err := eng.Occupancy(context.Background())
			So(err, ShouldBeNil)
			for _, o := range occ {
				if o.SectorID == sector {
					return o.Occupancy
				}
			}
			return -1
		}

		So(live.entry("GAP0001", t0), ShouldBeNil)
		_, err := live.park("GAP0001", a1)
		So(err, ShouldBeNil)
		_, err = live.exit("GAP0001", t0.Add(time.Hour))
		So(err, ShouldBeNil)

		Convey("When the PARKED of a finished visit is missing", func() {
			So(live.entry("GAP0001", t0.Add(2*time.Hour)), ShouldBeNil)
			fresh := restore(dropSeq(journal, 2))

			Convey("Then the restore goes on and the exit still earns revenue", func() {
				So(occupancyOf(fresh, "A"), ShouldEqual, 0)
				So(restoredSpotHolder(fresh, a1), ShouldEqual, "")

				rev, err := fresh.Revenue(context.Background(), "2025-01-01", "A")
				So(err, ShouldBeNil)
				So(rev.Exits, ShouldEqual, 1)

				_, err = fresh.Process(context.Background(), model.Event{Plate: "GAP0001", Type: types.EventEntry, EntryTime: t0.Add(3 * time.Hour)})
				So(errors.Is(err, model.ErrDuplicateEntry), ShouldBeTrue)
			})
		})

		Convey("When an EXIT is missing and another vehicle took the spot", func() {
			So(live.entry("GAP0002", t0.Add(2*time.Hour)), ShouldBeNil)
			_, err := live.park("GAP0002", a1)
			So(err, ShouldBeNil)
			fresh := restore(dropSeq(journal, 3))

			Convey("Then the newer occupant holds the spot once", func() {
				So(restoredSpotHolder(fresh, a1), ShouldEqual, "GAP0002")
				So(occupancyOf(fresh, "A"), ShouldEqual, 1)

				st, err := fresh.PlateStatus(context.Background(), "GAP0001")
				So(err, ShouldBeNil)
				So(st.Occupied, ShouldBeFalse)

				_, err = fresh.Process(context.Background(), model.Event{Plate: "GAP0002", Type: types.EventExit, ExitTime: t0.Add(3 * time.Hour)})
				So(err, ShouldBeNil)
				So(occupancyOf(fresh, "A"), ShouldEqual, 0)
			})
		})

		Convey("When an EXIT is missing and the same vehicle came back", func() {
			So(live.entry("GAP0001", t0.Add(2*time.Hour)), ShouldBeNil)
			fresh := restore(dropSeq(journal, 3))

			Convey("Then its old spot is free again", func() {
				So(restoredSpotHolder(fresh, a1), ShouldEqual, "")
				So(occupancyOf(fresh, "A"), ShouldEqual, 0)

				c := a1
				_, err := fresh.Process(context.Background(), model.Event{Plate: "GAP0001", Type: types.EventParked, Coordinates: &c})
				So(err, ShouldBeNil)
			})
		})
	})
}

func dropSeq(entries []model.LedgerEntry, seq int64) []model.LedgerEntry {
	out := make([]model.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if e.Seq != seq {
			out = append(out, e)
		}
	}
	return out
}

func restoredSpotHolder(eng *engine.Engine, c types.Coordinates) string {
	st, err := eng.SpotStatus(context.Background(), c)
	if err != nil || !st.Occupied {
		return ""
	}
	return st.Plate
}
