// Package pricing computes occupancy-based hourly rates and stay charges.
//
// All arithmetic is integer: base prices are cents, multipliers are basis
// points and rates are millionths of a currency unit, so a base price times
// a multiplier is exact and rounding happens only where the tariff says so.
package pricing

import (
	"sort"
	"time"

	"github.com/okian/parkwise/internal/domain/types"
)

const (
	basisPoints      = 10_000
	minutesPerHour   = 60
	rateUnitsPerCent = types.RateUnitsPerUnit / 100
)

// Tier maps an occupancy band to a price multiplier. A tier applies from
// its inclusive lower bound up to the next tier's bound.
type Tier struct {
	MinOccupancyBP int64
	MultiplierBP   int64
}

// DefaultTiers is the garage tariff: below 25% occupancy a 10% discount,
// 25-50% base price, 50-75% a 10% surcharge and from 75% a 25% surcharge.
var DefaultTiers = []Tier{
	{MinOccupancyBP: 0, MultiplierBP: 9_000},
	{MinOccupancyBP: 2_500, MultiplierBP: 10_000},
	{MinOccupancyBP: 5_000, MultiplierBP: 11_000},
	{MinOccupancyBP: 7_500, MultiplierBP: 12_500},
}

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithTiers replaces the tariff. The first tier must start at zero
// occupancy; otherwise the option is ignored.
func WithTiers(tiers []Tier) Option {
	return func(p *Policy) {
		if len(tiers) == 0 {
			return
		}
		sorted := make([]Tier, len(tiers))
		copy(sorted, tiers)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinOccupancyBP < sorted[j].MinOccupancyBP })
		if sorted[0].MinOccupancyBP != 0 {
			return
		}
		p.tiers = sorted
	}
}

// WithCurrency sets the currency of quoted amounts.
func WithCurrency(code string) Option {
	return func(p *Policy) {
		if code != "" {
			p.currency = code
		}
	}
}

// Policy is an immutable tariff. It is safe for concurrent use.
type Policy struct {
	tiers    []Tier
	currency string
}

// New builds a Policy with DefaultTiers unless overridden.
func New(opts ...Option) *Policy {
	p := &Policy{
		tiers:    DefaultTiers,
		currency: types.DefaultCurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Currency returns the currency of quoted amounts.
func (p *Policy) Currency() string { return p.currency }

// Tiers returns a copy of the tariff.
func (p *Policy) Tiers() []Tier {
	out := make([]Tier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

// Multiplier returns the multiplier in basis points for a sector holding
// occupancy vehicles out of capacity. A sector without capacity is priced
// at the top tier.
func (p *Policy) Multiplier(occupancy, capacity int) int64 {
	if capacity <= 0 {
		return p.tiers[len(p.tiers)-1].MultiplierBP
	}
	// floor(rate) >= bound is equivalent to rate >= bound for integer bounds.
	rateBP := int64(occupancy) * basisPoints / int64(capacity)
	m := p.tiers[0].MultiplierBP
	for _, t := range p.tiers {
		if rateBP < t.MinOccupancyBP {
			break
		}
		m = t.MultiplierBP
	}
	return m
}

// HourlyRate is the sector's dynamic price: base price times the current
// occupancy multiplier.
func (p *Policy) HourlyRate(base types.Money, occupancy, capacity int) types.Rate {
	return types.Rate(base.Amount * p.Multiplier(occupancy, capacity))
}

// Quote prices a stay from from to to at rate, in the policy currency.
func (p *Policy) Quote(rate types.Rate, from, to time.Time) types.Money {
	return Quote(rate, from, to, p.currency)
}

// Split breaks an elapsed duration into whole hours and remaining whole
// minutes. Negative durations count as zero.
func Split(elapsed time.Duration) (hours, minutes int64) {
	if elapsed <= 0 {
		return 0, 0
	}
	return int64(elapsed / time.Hour), int64((elapsed % time.Hour) / time.Minute)
}

// Quote prices a stay: whole hours at the full rate plus remaining minutes
// at the per-minute rate rounded half-up to cents, the total rounded
// half-up to cents. The duration is the plain timestamp difference.
func Quote(rate types.Rate, from, to time.Time, currency string) types.Money {
	hours, minutes := Split(to.Sub(from))
	perMinuteCents := types.DivRoundHalfUp(int64(rate), minutesPerHour*rateUnitsPerCent)
	total := int64(rate)*hours + perMinuteCents*rateUnitsPerCent*minutes
	return types.NewMoney(types.DivRoundHalfUp(total, rateUnitsPerCent), currency)
}
