package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/parkwise/pkg/logger"
)

// ErrNoFreeSpots is returned when the garage has nowhere to park.
var ErrNoFreeSpots = errors.New("garage has no free spots")

// Scenario describes a simulated rush: Vehicles cars each doing
// ENTRY, PARKED and EXIT, driven by Workers concurrent drivers.
type Scenario struct {
	Vehicles int
	Workers  int

	// Stays are drawn uniformly from [MinStay, MaxStay].
	MinStay time.Duration
	MaxStay time.Duration

	// Start is the entry time of every vehicle. Zero means now.
	Start time.Time
}

// Report summarizes a scenario run.
type Report struct {
	Vehicles int            `json:"vehicles"`
	Entered  int64          `json:"entered"`
	Parked   int64          `json:"parked"`
	Exited   int64          `json:"exited"`
	Rejected int64          `json:"rejected"`
	Failed   int64          `json:"failed"`
	Codes    map[string]int `json:"codes,omitempty"`
	Duration time.Duration  `json:"duration"`
}

type tally struct {
	entered, parked, exited, rejected, failed atomic.Int64

	mu    sync.Mutex
	codes map[string]int
}

func (t *tally) reject(code string) {
	t.rejected.Add(1)
	t.mu.Lock()
	t.codes[code]++
	t.mu.Unlock()
}

// newPlate returns a plate unlikely to collide with real traffic.
func newPlate() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "SIM" + strings.ToUpper(id[:5])
}

func (sc Scenario) stay() time.Duration {
	if sc.MaxStay <= sc.MinStay {
		return sc.MinStay
	}
	return sc.MinStay + rand.N(sc.MaxStay-sc.MinStay+1) //nolint:gosec // load shape, not security
}

// Run plays sc against the service behind c. Spots are taken from the
// garage's free spots and handed back on exit, so concurrent drivers
// never race for the same spot.
func Run(ctx context.Context, c *Client, sc Scenario) (Report, error) {
	if sc.Vehicles <= 0 {
		return Report{}, errors.New("vehicles must be positive")
	}
	if sc.Workers <= 0 {
		sc.Workers = 1
	}
	if sc.Start.IsZero() {
		sc.Start = time.Now().UTC()
	}

	g, err := c.Garage(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("fetch garage: %w", err)
	}
	spots := make(chan Spot, len(g.Spots))
	for _, sp := range g.Spots {
		if sp.Occupied == nil || !*sp.Occupied {
			spots <- sp
		}
	}
	if len(spots) == 0 {
		return Report{}, ErrNoFreeSpots
	}

	log := c.logger
	log.Info(ctx, "starting scenario",
		logger.Int("vehicles", sc.Vehicles),
		logger.Int("workers", sc.Workers),
		logger.Int("freeSpots", len(spots)))

	started := time.Now()
	t := &tally{codes: make(map[string]int)}
	jobs := make(chan int, sc.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < sc.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				drive(ctx, c, sc, spots, t)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < sc.Vehicles; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	report := Report{
		Vehicles: sc.Vehicles,
		Entered:  t.entered.Load(),
		Parked:   t.parked.Load(),
		Exited:   t.exited.Load(),
		Rejected: t.rejected.Load(),
		Failed:   t.failed.Load(),
		Codes:    t.codes,
		Duration: time.Since(started),
	}
	log.Info(ctx, "scenario finished",
		logger.Int64("entered", report.Entered),
		logger.Int64("parked", report.Parked),
		logger.Int64("exited", report.Exited),
		logger.Int64("rejected", report.Rejected),
		logger.Int64("failed", report.Failed),
		logger.Duration("duration", report.Duration))
	return report, ctx.Err()
}

// send posts ev and records a failure or rejection. It reports whether the
// service accepted the event.
func send(ctx context.Context, c *Client, ev WebhookEvent, t *tally) bool {
	status, ack, err := c.SendEvent(ctx, ev)
	switch {
	case err != nil:
		t.failed.Add(1)
		c.logger.Warn(ctx, "event failed", logger.String("plate", ev.LicensePlate),
			logger.String("type", ev.EventType), logger.Error(err))
		return false
	case status != http.StatusOK:
		t.reject(ack.Code)
		c.logger.Debug(ctx, "event rejected", logger.String("plate", ev.LicensePlate),
			logger.String("type", ev.EventType), logger.Int("status", status), logger.String("message", ack.Message))
		return false
	}
	return true
}

func drive(ctx context.Context, c *Client, sc Scenario, spots chan Spot, t *tally) {
	plate := newPlate()
	entry := sc.Start
	exit := entry.Add(sc.stay())

	if !send(ctx, c, WebhookEvent{
		LicensePlate: plate,
		EventType:    "ENTRY",
		EntryTime:    entry.Format(time.RFC3339),
	}, t) {
		return
	}
	t.entered.Add(1)

	var sp Spot
	select {
	case <-ctx.Done():
		return
	case sp = <-spots:
	}
	defer func() { spots <- sp }()

	lat, lng := sp.Lat, sp.Lng
	if !send(ctx, c, WebhookEvent{
		LicensePlate: plate,
		EventType:    "PARKED",
		Lat:          &lat,
		Lng:          &lng,
		SectorID:     sp.Sector,
	}, t) {
		return
	}
	t.parked.Add(1)

	if !send(ctx, c, WebhookEvent{
		LicensePlate: plate,
		EventType:    "EXIT",
		ExitTime:     exit.Format(time.RFC3339),
	}, t) {
		return
	}
	t.exited.Add(1)
}
