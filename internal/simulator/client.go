package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/okian/parkwise/pkg/logger"
)

// ErrUnavailable is returned when the service keeps failing after retries.
var ErrUnavailable = errors.New("service unavailable")

// Client talks to a running garage service.
type Client struct {
	baseURL  string
	http     *http.Client
	maxTries uint
	logger   logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMaxTries bounds attempts per request on transport errors and gateway
// failures.
func WithMaxTries(n uint) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxTries: 3,
		logger:   logger.Named("simulator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WebhookEvent is the body of POST /webhook.
type WebhookEvent struct {
	LicensePlate string   `json:"license_plate"`
	EventType    string   `json:"event_type"`
	EntryTime    string   `json:"entry_time,omitempty"`
	ExitTime     string   `json:"exit_time,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	SectorID     string   `json:"sector_id,omitempty"`
}

// Ack is the service reply to webhook and import calls.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// PlateStatus is the reply of POST /plate-status.
type PlateStatus struct {
	Occupied      bool        `json:"occupied"`
	LicensePlate  string      `json:"license_plate"`
	PriceUntilNow json.Number `json:"price_until_now"`
	EntryTime     *string     `json:"entry_time"`
	TimeParked    string      `json:"time_parked"`
	ParkedAt      *string     `json:"parked_at"`
	Lat           *float64    `json:"lat"`
	Lng           *float64    `json:"lng"`
}

// Revenue is the reply of POST /revenue.
type Revenue struct {
	Amount    json.Number `json:"amount"`
	Currency  string      `json:"currency"`
	Timestamp string      `json:"timestamp"`
	Sector    string      `json:"sector,omitempty"`
	Exits     int         `json:"exits"`
}

// Spot is one spot of GET /garage.
type Spot struct {
	ID       int64   `json:"id"`
	Sector   string  `json:"sector"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Occupied *bool   `json:"occupied,omitempty"`
}

// Garage is the reply of GET /garage.
type Garage struct {
	Garage []json.RawMessage `json:"garage"`
	Spots  []Spot            `json:"spots"`
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	status, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: health check returned %d", ErrUnavailable, status)
	}
	return nil
}

// SendEvent posts one webhook event. Rejections are reported through the
// status code and Ack, not as an error.
func (c *Client) SendEvent(ctx context.Context, ev WebhookEvent) (int, Ack, error) {
	var ack Ack
	status, err := c.do(ctx, http.MethodPost, "/webhook", ev, &ack)
	return status, ack, err
}

// PlateStatus queries the price so far of plate.
func (c *Client) PlateStatus(ctx context.Context, plate string) (PlateStatus, error) {
	var out PlateStatus
	status, err := c.do(ctx, http.MethodPost, "/plate-status", map[string]string{"license_plate": plate}, &out)
	if err != nil {
		return PlateStatus{}, err
	}
	if status != http.StatusOK {
		return PlateStatus{}, fmt.Errorf("plate status returned %d", status)
	}
	return out, nil
}

// Revenue queries the revenue of date, for sector or every sector.
func (c *Client) Revenue(ctx context.Context, date, sector string) (Revenue, error) {
	var out Revenue
	body := map[string]string{"date": date}
	if sector != "" {
		body["sector"] = sector
	}
	status, err := c.do(ctx, http.MethodPost, "/revenue", body, &out)
	if err != nil {
		return Revenue{}, err
	}
	if status != http.StatusOK {
		return Revenue{}, fmt.Errorf("revenue returned %d", status)
	}
	return out, nil
}

// Garage fetches the registry.
func (c *Client) Garage(ctx context.Context) (Garage, error) {
	var out Garage
	status, err := c.do(ctx, http.MethodGet, "/garage", nil, &out)
	if err != nil {
		return Garage{}, err
	}
	if status != http.StatusOK {
		return Garage{}, fmt.Errorf("garage export returned %d", status)
	}
	return out, nil
}

// ImportGarage posts a garage document.
func (c *Client) ImportGarage(ctx context.Context, doc any) (Ack, error) {
	var ack Ack
	status, err := c.do(ctx, http.MethodPost, "/garage/import", doc, &ack)
	if err != nil {
		return Ack{}, err
	}
	if status != http.StatusOK {
		return ack, fmt.Errorf("garage import returned %d: %s", status, ack.Message)
	}
	return ack, nil
}

func retryable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// do sends one request, retrying transport errors and gateway failures with
// exponential backoff, and decodes the reply into out when it is JSON.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	attempt := 0
	raw, err := backoff.Retry(ctx, func() (response, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return response{}, backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug(ctx, "request failed", logger.String("path", path), logger.Int("attempt", attempt), logger.Error(err))
			return response{}, err
		}
		defer func() { _ = resp.Body.Close() }()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return response{}, err
		}
		if retryable(resp.StatusCode) {
			return response{}, fmt.Errorf("%w: %s returned %d", ErrUnavailable, path, resp.StatusCode)
		}
		return response{status: resp.StatusCode, body: data}, nil
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		return 0, err
	}
	if out != nil && len(raw.body) > 0 {
		if err := json.Unmarshal(raw.body, out); err != nil {
			return raw.status, fmt.Errorf("decode %s reply: %w", path, err)
		}
	}
	return raw.status, nil
}

type response struct {
	status int
	body   []byte
}
