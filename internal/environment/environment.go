// Package environment computes the snapshot of time slot, moon, season,
// special day and weather that gates every narrative event.
package environment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/weather"
)

// Snapshot is a consistent view of the environment at one instant.
// SpecialDay and Weather are nil when not applicable.
type Snapshot struct {
	At         time.Time        `json:"at"`
	TimeSlot   TimeSlot         `json:"time_slot"`
	Moon       MoonPhase        `json:"moon"`
	Season     Season           `json:"season"`
	SpecialDay *SpecialDay      `json:"special_day,omitempty"`
	Weather    *weather.Reading `json:"weather,omitempty"`
}

// Compute builds the calendar part of a snapshot. It never fails.
func Compute(now time.Time) *Snapshot {
	return &Snapshot{
		At:         now.In(JST),
		TimeSlot:   SlotAt(now),
		Moon:       MoonPhaseAt(now),
		Season:     SeasonAt(now),
		SpecialDay: SpecialDayAt(now),
	}
}

// Provider adds a bounded weather lookup to Compute.
type Provider struct {
	oracle  weather.Oracle
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewProvider creates a provider. oracle may be nil, in which case weather
// is always absent.
func NewProvider(oracle weather.Oracle, timeout time.Duration, now func() time.Time, logger *zap.Logger) *Provider {
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	return &Provider{oracle: oracle, timeout: timeout, now: now, logger: logger}
}

// Now returns the provider's clock reading.
func (p *Provider) Now() time.Time { return p.now() }

// Snapshot returns the environment at the current instant.
func (p *Provider) Snapshot(ctx context.Context) *Snapshot {
	return p.SnapshotAt(ctx, p.now())
}

// SnapshotAt returns the environment at now. A weather failure or timeout
// leaves Weather nil.
func (p *Provider) SnapshotAt(ctx context.Context, now time.Time) *Snapshot {
	snap := Compute(now)
	if p.oracle == nil {
		return snap
	}

	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		r   *weather.Reading
		err error
	}
	ch := make(chan result, 1)
	go func() {
		r, err := p.oracle.CurrentWeather(wctx)
		ch <- result{r, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			p.logger.Warn("weather unavailable", zap.Error(res.err))
			return snap
		}
		snap.Weather = res.r
	case <-wctx.Done():
		p.logger.Warn("weather lookup timed out", zap.Duration("timeout", p.timeout))
	}
	return snap
}
