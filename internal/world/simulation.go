package world

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ClockListener receives world tick events.
type ClockListener interface {
	OnTick(ctx context.Context, worldTime time.Time)
}

// WorldClock drives the simulation with configurable tick rate and time speed.
// World time is origin + elapsed wall time * speed, so speed 1.0 tracks the
// wall clock even when ticks run late.
type WorldClock struct {
	speed     float64 // time multiplier, 1.0 = realtime
	interval  time.Duration
	listeners []ClockListener
	origin    time.Time
	base      time.Time // wall time at origin
	worldTime time.Time
	now       func() time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *zap.Logger
}

// NewWorldClock creates a clock with the given tick interval and speed multiplier.
func NewWorldClock(interval time.Duration, speed float64, now func() time.Time, logger *zap.Logger) *WorldClock {
	if speed <= 0 {
		speed = 1
	}
	if now == nil {
		now = time.Now
	}
	t := now()
	return &WorldClock{
		speed:     speed,
		interval:  interval,
		origin:    t,
		base:      t,
		worldTime: t,
		now:       now,
		logger:    logger,
	}
}

// AddListener registers a tick listener.
func (c *WorldClock) AddListener(l ClockListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// WorldTime returns the current simulated world time.
func (c *WorldClock) WorldTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.worldTime
}

// Now returns the current world time without waiting for a tick. Services
// that stamp birds use it so their timestamps share the scheduler's clock.
func (c *WorldClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.worldTimeLocked()
}

// SetSpeed changes the time multiplier from now on.
func (c *WorldClock) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.origin = c.worldTimeLocked()
	c.base = c.now()
	c.speed = speed
}

func (c *WorldClock) worldTimeLocked() time.Time {
	elapsed := c.now().Sub(c.base)
	return c.origin.Add(time.Duration(float64(elapsed) * c.speed))
}

// Start begins the tick loop in a background goroutine.
func (c *WorldClock) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.loop(ctx, done)
	c.logger.Info("world clock started",
		zap.Duration("interval", c.interval),
		zap.Float64("speed", c.speed))
}

// Stop halts the tick loop and waits for an in-flight tick to finish.
func (c *WorldClock) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("world clock stopped")
}

func (c *WorldClock) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick that has started runs to completion even if Stop is called.
			c.Tick(context.WithoutCancel(ctx))
		}
	}
}

// Tick recomputes world time and notifies every listener.
func (c *WorldClock) Tick(ctx context.Context) {
	c.mu.Lock()
	c.worldTime = c.worldTimeLocked()
	wt := c.worldTime
	listeners := make([]ClockListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l.OnTick(ctx, wt)
	}
}
