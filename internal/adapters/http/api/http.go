// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/parkwise/internal/domain/engine"
	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
)

// Service is what the handlers need from the application layer.
type Service interface {
	ProcessEvent(ctx context.Context, ev model.Event) (model.LedgerEntry, error)
	PlateStatus(ctx context.Context, plate string) (engine.Status, error)
	SpotStatus(ctx context.Context, c types.Coordinates) (engine.Status, error)
	Revenue(ctx context.Context, date, sectorID string) (engine.Revenue, error)
	Garage(ctx context.Context) (model.Garage, error)
	ImportGarage(ctx context.Context, g model.Garage) error
}

// Server wires HTTP routes for the garage API.
type Server struct {
	loc         *time.Location
	currency    string
	now         func() time.Time
	logger      logger.Logger
	serviceName string

	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	webhookHandler *WebhookHandler
	statusHandler  *StatusHandler
	revenueHandler *RevenueHandler
	garageHandler  *GarageHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(svc Service, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		loc:         time.UTC,
		currency:    types.DefaultCurrency,
		now:         time.Now,
		logger:      logger.Named("api"),
		serviceName: "parkwise",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.webhookHandler = NewWebhookHandler(svc, s.loc, s.logger)
	s.statusHandler = NewStatusHandler(svc)
	s.revenueHandler = NewRevenueHandler(svc, s.now)
	s.garageHandler = NewGarageHandler(svc, s.currency)
	return s
}

// Register attaches all HTTP routes and the shared middleware to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(OTelHTTP(s.serviceName))

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Method(http.MethodGet, "/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Post("/webhook", MetricsMiddleware(s.webhookHandler.HandleWebhook, "webhook"))
	r.Post("/plate-status", MetricsMiddleware(s.statusHandler.HandlePlateStatus, "plate_status"))
	r.Post("/spot-status", MetricsMiddleware(s.statusHandler.HandleSpotStatus, "spot_status"))
	r.Post("/revenue", MetricsMiddleware(s.revenueHandler.HandleRevenue, "revenue"))
	r.Get("/garage", MetricsMiddleware(s.garageHandler.HandleExport, "garage"))
	r.Post("/garage/import", MetricsMiddleware(s.garageHandler.HandleImport, "garage_import"))
}

// Handler returns a chi router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeJSON(w, status, errorResponse{Code: code, Message: clientMessage(err)})
}

// decodeBody decodes a JSON request body into dst. An empty body or a JSON
// null is reported as ErrNullPayload.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrNullPayload
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrNullPayload
		}
		return err
	}
	if string(raw) == "null" {
		return ErrNullPayload
	}
	return json.Unmarshal(raw, dst)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
