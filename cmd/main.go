package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/parkwise/internal/adapters/http/api"
	"github.com/okian/parkwise/internal/adapters/http/swagger"
	"github.com/okian/parkwise/internal/adapters/journal"
	app "github.com/okian/parkwise/internal/app"
	"github.com/okian/parkwise/internal/config"
	"github.com/okian/parkwise/pkg/logger"
	"github.com/okian/parkwise/pkg/metrics"
	"github.com/okian/parkwise/pkg/telemetry"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()

	tp, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName: cfg.ServiceName,
		Version:     version,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn(ctx, "telemetry shutdown failed", logger.Error(err))
		}
	}()

	svc, err := newService(ctx, cfg, tp.TracerProvider)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	handler, err := newRouter(ctx, cfg, svc)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	// Drain pending journal writes after the last request is answered.
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the garage service from cfg: the pricing tariff, the
// optional journal and the optional seed garage.
func newService(ctx context.Context, cfg *config.Config, tp trace.TracerProvider) (*app.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	tiers, err := cfg.Tiers()
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(logger.Named("service")),
		app.WithCurrency(cfg.Currency),
		app.WithLocation(loc),
		app.WithTiers(tiers),
		app.WithQueueSize(cfg.JournalQueueSize),
		app.WithWorkerCount(cfg.JournalWorkers),
		app.WithTracerProvider(tp),
	}
	if cfg.GarageFile != "" {
		g, err := config.LoadGarageFile(cfg.GarageFile, cfg.Currency)
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithSeedGarage(g))
	}
	if cfg.JournalPath != "" {
		j, err := journal.Open(ctx, cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithJournal(j))
	}
	return app.New(opts...), nil
}

// newRouter mounts the business API and the API reference on one router.
func newRouter(ctx context.Context, cfg *config.Config, svc *app.Service) (http.Handler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	r := chi.NewRouter()
	apiServer := api.NewServer(svc, svc,
		api.WithLocation(loc),
		api.WithCurrency(cfg.Currency),
		api.WithServiceName(cfg.ServiceName),
		api.WithLogger(logger.Named("api")),
	)
	apiServer.Register(ctx, r)
	if err := swagger.Register(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the gauges derived from service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics publishes queue and worker gauges. GetStats itself
// refreshes the parked-vehicles gauge.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	stats := svc.GetStats(ctx)

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
