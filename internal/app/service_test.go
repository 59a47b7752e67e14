package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	service "github.com/okian/parkwise/internal/app"
	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/pricing"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	t0   = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	spot = types.Coordinates{Lat: -23.561684, Lng: -46.655981}
)

func testGarage() model.Garage {
	return model.Garage{
		Sectors: []model.Sector{{ID: "A", BasePrice: types.NewMoney(1000, "BRL"), MaxCapacity: 10}},
		Spots:   []model.Spot{{SectorID: "A", Coordinates: spot}},
	}
}

func entryEvent(plate string, at time.Time) model.Event {
	return model.Event{Plate: plate, Type: types.EventEntry, EntryTime: at}
}

func parkedEvent(plate string) model.Event {
	c := spot
	return model.Event{Plate: plate, Type: types.EventParked, Coordinates: &c}
}

func exitEvent(plate string, at time.Time) model.Event {
	return model.Event{Plate: plate, Type: types.EventExit, ExitTime: at}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is created but not started", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
			So(stats["journal"], ShouldEqual, false)
			So(stats["queueSize"], ShouldEqual, 10_000)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(500),
			service.WithCurrency("USD"),
			service.WithLocation(time.UTC),
		)

		Convey("Then the options are applied", func() {
			So(svc.GetStats(context.Background())["queueSize"], ShouldEqual, 500)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		ctx := context.Background()
		svc := service.New()

		Convey("Operations fail with ErrNotStarted", func() {
			_, err := svc.ProcessEvent(ctx, entryEvent("ABC1234", t0))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.PlateStatus(ctx, "ABC1234")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Garage(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.ImportGarage(ctx, testGarage()), service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Stop is a no-op", func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})

	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(service.WithSeedGarage(testGarage()))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("Starting again is a no-op", func() {
			So(svc.Start(ctx), ShouldBeNil)
		})

		Convey("The seed garage is installed", func() {
			g, err := svc.Garage(ctx)
			So(err, ShouldBeNil)
			So(g.Sectors, ShouldHaveLength, 1)
			So(g.Spots, ShouldHaveLength, 1)
		})

		Convey("Stopping marks it as stopped", func() {
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.GetStats(ctx)["started"], ShouldEqual, false)
		})
	})

	Convey("Given an invalid seed garage", t, func() {
		g := testGarage()
		g.Spots[0].SectorID = "Z"
		svc := service.New(service.WithSeedGarage(g))

		Convey("Start fails with ErrRestore", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrRestore), ShouldBeTrue)
			So(errors.Is(err, model.ErrInvalidGarage), ShouldBeTrue)
		})
	})
}

func TestService_Events(t *testing.T) {
	Convey("Given a started service with a fixed clock", t, func() {
		ctx := context.Background()
		now := t0
		svc := service.New(
			service.WithSeedGarage(testGarage()),
			service.WithClock(func() time.Time { return now }),
		)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("A full visit is charged at the snapshotted rate", func() {
			_, err := svc.ProcessEvent(ctx, entryEvent("ZUL0001", t0))
			So(err, ShouldBeNil)
			parked, err := svc.ProcessEvent(ctx, parkedEvent("ZUL0001"))
			So(err, ShouldBeNil)
			So(parked.SectorID, ShouldEqual, "A")
			So(parked.Price.Amount, ShouldEqual, 900)

			stats := svc.GetStats(ctx)
			So(stats["parked"], ShouldEqual, 1)

			now = t0.Add(2 * time.Hour)
			st, err := svc.PlateStatus(ctx, "ZUL0001")
			So(err, ShouldBeNil)
			So(st.Occupied, ShouldBeTrue)
			So(st.Price.Amount, ShouldEqual, 1800)

			exit, err := svc.ProcessEvent(ctx, exitEvent("ZUL0001", t0.Add(2*time.Hour)))
			So(err, ShouldBeNil)
			So(exit.Price.Amount, ShouldEqual, 1800)

			rev, err := svc.Revenue(ctx, "2025-01-01", "A")
			So(err, ShouldBeNil)
			So(rev.Amount.Amount, ShouldEqual, 1800)
			So(rev.Exits, ShouldEqual, 1)

			st, err = svc.SpotStatus(ctx, spot)
			So(err, ShouldBeNil)
			So(st.Occupied, ShouldBeFalse)
		})

		Convey("Domain rejections carry their kind", func() {
			_, err := svc.ProcessEvent(ctx, exitEvent("NOPE000", t0))
			So(errors.Is(err, model.ErrVehicleNotFound), ShouldBeTrue)
			So(model.KindOf(err), ShouldEqual, model.KindNotFound)
		})

		Convey("Importing a garage while a vehicle is parked is refused", func() {
			_, err := svc.ProcessEvent(ctx, entryEvent("ZUL0001", t0))
			So(err, ShouldBeNil)
			_, err = svc.ProcessEvent(ctx, parkedEvent("ZUL0001"))
			So(err, ShouldBeNil)
			So(errors.Is(svc.ImportGarage(ctx, testGarage()), model.ErrGarageBusy), ShouldBeTrue)
		})
	})
}

func TestService_Tiers(t *testing.T) {
	Convey("Given a service with a flat tariff", t, func() {
		ctx := context.Background()
		svc := service.New(
			service.WithSeedGarage(testGarage()),
			service.WithTiers([]pricing.Tier{{MinOccupancyBP: 0, MultiplierBP: 20_000}}),
			service.WithClock(func() time.Time { return t0 }),
		)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("PARKED quotes the overridden multiplier", func() {
			_, err := svc.ProcessEvent(ctx, entryEvent("ZUL0001", t0))
			So(err, ShouldBeNil)
			parked, err := svc.ProcessEvent(ctx, parkedEvent("ZUL0001"))
			So(err, ShouldBeNil)
			So(parked.Price.Amount, ShouldEqual, 2000)
		})
	})
}

func TestService_Tracing(t *testing.T) {
	Convey("Given a service recording spans", t, func() {
		ctx := context.Background()
		sr := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
		Reset(func() { _ = tp.Shutdown(context.Background()) })

		svc := service.New(
			service.WithSeedGarage(testGarage()),
			service.WithTracerProvider(tp),
			service.WithClock(func() time.Time { return t0 }),
		)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("Accepted events end an unset-status span", func() {
			_, err := svc.ProcessEvent(ctx, entryEvent("ZUL0001", t0))
			So(err, ShouldBeNil)

			spans := sr.Ended()
			So(spans, ShouldHaveLength, 1)
			So(spans[0].Name(), ShouldEqual, "garage.process_event")
			So(spans[0].Status().Code, ShouldEqual, codes.Unset)
		})

		Convey("Rejections record the error kind without failing the span", func() {
			_, err := svc.ProcessEvent(ctx, exitEvent("NOPE000", t0))
			So(err, ShouldNotBeNil)

			spans := sr.Ended()
			So(spans, ShouldHaveLength, 1)
			So(spans[0].Status().Code, ShouldEqual, codes.Unset)
			found := false
			for _, kv := range spans[0].Attributes() {
				if kv.Key == "parking.error_kind" {
					found = true
					So(kv.Value.AsString(), ShouldEqual, "not_found")
				}
			}
			So(found, ShouldBeTrue)
		})
	})
}
