package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/trace/noop"

	app "github.com/okian/parkwise/internal/app"
	"github.com/okian/parkwise/internal/config"
)

const seedGarage = `
garage:
  - sector: A
    base_price: 10.0
    max_capacity: 10
spots:
  - id: 1
    sector: A
    lat: -23.561684
    lng: -46.655981
`

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "garage.yaml")
	if err := os.WriteFile(path, []byte(seedGarage), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When configuration comes from the environment", func() {
			t.Setenv("PARKWISE_ADDR", ":8080")
			t.Setenv("PARKWISE_JOURNAL_QUEUE_SIZE", "1000")
			t.Setenv("PARKWISE_JOURNAL_WORKERS", "4")

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.JournalQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.JournalWorkers, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the address is blanked", func() {
			t.Setenv("PARKWISE_ADDR", "")

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestNewService(t *testing.T) {
	convey.Convey("Given a configuration with a seed garage and a journal", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.GarageFile = writeSeed(t)
		cfg.JournalPath = filepath.Join(t.TempDir(), "parkwise.db")

		svc, err := newService(ctx, cfg, noop.NewTracerProvider())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		convey.Reset(func() { _ = svc.Stop(context.Background()) })

		convey.Convey("Then the service runs on the seeded garage", func() {
			g, err := svc.Garage(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(g.Sectors, convey.ShouldHaveLength, 1)
			convey.So(svc.GetStats(ctx)["journal"], convey.ShouldEqual, true)
		})
	})

	convey.Convey("Given a missing garage file", t, func() {
		cfg := config.New()
		cfg.GarageFile = filepath.Join(t.TempDir(), "absent.yaml")

		convey.Convey("Then building the service fails", func() {
			_, err := newService(context.Background(), cfg, noop.NewTracerProvider())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestNewRouter(t *testing.T) {
	convey.Convey("Given the assembled router", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.GarageFile = writeSeed(t)

		svc, err := newService(ctx, cfg, noop.NewTracerProvider())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		convey.Reset(func() { _ = svc.Stop(context.Background()) })

		handler, err := newRouter(ctx, cfg, svc)
		convey.So(err, convey.ShouldBeNil)

		serve := func(method, path, body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, path, strings.NewReader(body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			return w
		}

		convey.Convey("Then the business routes are mounted", func() {
			convey.So(serve(http.MethodGet, "/healthz", "").Code, convey.ShouldEqual, http.StatusOK)
			w := serve(http.MethodPost, "/webhook",
				`{"license_plate":"ZUL0001","entry_time":"2025-01-01T12:00:00.000Z","event_type":"ENTRY"}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the API reference is mounted", func() {
			convey.So(serve(http.MethodGet, "/openapi.yaml", "").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/api-docs", "").Code, convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When the system metrics updater runs until cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})

		convey.Convey("When the service metrics updater runs until cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startServiceMetricsUpdater(ctx, app.New()) }, convey.ShouldNotPanic)
		})

		convey.Convey("When metrics are updated directly", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(context.Background(), app.New()) }, convey.ShouldNotPanic)
		})
	})
}
