package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/okian/parkwise/pkg/logger"
)

// EventProcessor processes one inbound vehicle event.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, ev model.Event) (model.LedgerEntry, error)
}

// WebhookHandler handles sensor and gate events.
type WebhookHandler struct {
	processor EventProcessor
	loc       *time.Location
	logger    logger.Logger
}

// NewWebhookHandler creates a new webhook handler. Timestamps without an
// offset are read in loc.
func NewWebhookHandler(processor EventProcessor, loc *time.Location, l logger.Logger) *WebhookHandler {
	if loc == nil {
		loc = time.UTC
	}
	if l == nil {
		l = logger.Named("api")
	}
	return &WebhookHandler{processor: processor, loc: loc, logger: l}
}

// webhookRequest mirrors the OpenAPI schema for POST /webhook.
type webhookRequest struct {
	LicensePlate string   `json:"license_plate"`
	EventType    string   `json:"event_type"`
	EntryTime    string   `json:"entry_time"`
	ExitTime     string   `json:"exit_time"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	SectorID     string   `json:"sector_id"`
}

func (req webhookRequest) toEvent(loc *time.Location) (model.Event, error) {
	t, ok := types.ParseEventType(req.EventType)
	if !ok {
		return model.Event{}, fmt.Errorf("%w: unsupported event_type %q", model.ErrInvalidEvent, req.EventType)
	}
	ev := model.Event{
		Plate:      types.NormalizePlate(req.LicensePlate),
		Type:       t,
		SectorHint: req.SectorID,
	}
	var err error
	if req.EntryTime != "" {
		if ev.EntryTime, err = types.ParseTimestamp(req.EntryTime, loc); err != nil {
			return model.Event{}, fmt.Errorf("%w: entry_time: %v", model.ErrInvalidEvent, err)
		}
	}
	if req.ExitTime != "" {
		if ev.ExitTime, err = types.ParseTimestamp(req.ExitTime, loc); err != nil {
			return model.Event{}, fmt.Errorf("%w: exit_time: %v", model.ErrInvalidEvent, err)
		}
	}
	switch {
	case req.Lat != nil && req.Lng != nil:
		ev.Coordinates = &types.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	case req.Lat != nil || req.Lng != nil:
		return model.Event{}, fmt.Errorf("%w: lat and lng must be sent together", model.ErrInvalidEvent)
	}
	return ev, ev.Validate()
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// HandleWebhook handles POST /webhook requests.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.webhook"
	ctx := r.Context()

	var req webhookRequest
	if err := decodeBody(r, &req); err != nil {
		h.reject(ctx, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := req.toEvent(h.loc)
	if err != nil {
		h.reject(ctx, w, err)
		return
	}
	if _, err := h.processor.ProcessEvent(ctx, ev); err != nil {
		h.reject(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Success: true, Message: "Event processed successfully"})
}

func (h *WebhookHandler) reject(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := clientMessage(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(ctx, "webhook failed", logger.Error(err))
		msg = "Error processing event: " + msg
	}
	writeJSON(w, status, webhookResponse{Success: false, Message: msg, Code: code})
}
