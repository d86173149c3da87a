package world

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nidhogg/bird-zoo/internal/admission"
	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/events"
	"github.com/nidhogg/bird-zoo/internal/feeding"
	"github.com/nidhogg/bird-zoo/internal/metrics"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Publisher delivers narration. Delivery is fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, guildID string, ev zoo.Event)
}

// Flusher persists dirty guild states.
type Flusher interface {
	Flush(ctx context.Context) error
	FlushAll(ctx context.Context) error
}

// SchedulerOptions tunes a PopulationScheduler.
type SchedulerOptions struct {
	// EventChance is the probability that a guild narrates an event on a tick.
	EventChance  float64
	Parallelism  int
	EventLogSize int
	// Rand must be safe for concurrent use when Parallelism > 1.
	Rand zoo.Rand
}

// TickReport summarizes one tick.
type TickReport struct {
	At         time.Time `json:"at"`
	Guilds     int       `json:"guilds"`
	Events     int       `json:"events"`
	Departures int       `json:"departures"`
	Failures   int       `json:"failures"`
}

// PopulationScheduler is the periodic driver of every guild's lifecycle:
// visitor expiry, hunger, departures, queue drain and narration.
type PopulationScheduler struct {
	store     *zoo.Store
	admission *admission.Controller
	feeding   *feeding.Service
	env       *environment.Provider
	registry  *events.Registry
	builder   *events.PopulationBuilder
	publisher Publisher
	flusher   Flusher
	opts      SchedulerOptions
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu   sync.Mutex
	last TickReport
}

// NewPopulationScheduler wires a scheduler. publisher and flusher may be nil.
func NewPopulationScheduler(
	store *zoo.Store,
	adm *admission.Controller,
	feed *feeding.Service,
	env *environment.Provider,
	registry *events.Registry,
	builder *events.PopulationBuilder,
	publisher Publisher,
	flusher Flusher,
	opts SchedulerOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PopulationScheduler {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 8
	}
	if opts.EventLogSize <= 0 {
		opts.EventLogSize = 50
	}
	if opts.Rand == nil {
		opts.Rand = zoo.DefaultRand
	}
	return &PopulationScheduler{
		store:     store,
		admission: adm,
		feeding:   feed,
		env:       env,
		registry:  registry,
		builder:   builder,
		publisher: publisher,
		flusher:   flusher,
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

// OnTick implements ClockListener.
func (s *PopulationScheduler) OnTick(ctx context.Context, worldTime time.Time) {
	s.Tick(ctx, worldTime)
}

// LastTick returns the report of the most recent tick.
func (s *PopulationScheduler) LastTick() TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Tick runs one pass over every guild. One environment snapshot is shared
// by all guilds; a failing guild is logged and skipped.
func (s *PopulationScheduler) Tick(ctx context.Context, now time.Time) TickReport {
	start := time.Now()
	env := s.env.SnapshotAt(ctx, now)
	guilds := s.store.GuildIDs()

	var (
		mu     sync.Mutex
		report = TickReport{At: now, Guilds: len(guilds)}
	)

	var g errgroup.Group
	g.SetLimit(s.opts.Parallelism)
	for _, id := range guilds {
		g.Go(func() error {
			res, err := s.processGuild(ctx, id, env, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures++
				s.logger.Warn("guild tick failed", zap.String("guild", id), zap.Error(err))
				return nil
			}
			report.Events += res.events
			report.Departures += res.departures
			return nil
		})
	}
	_ = g.Wait()

	if s.flusher != nil {
		if err := s.flusher.Flush(ctx); err != nil {
			s.logger.Warn("flush after tick failed", zap.Error(err))
		}
	}

	s.metrics.ObserveTick(time.Since(start))
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	s.logger.Debug("tick complete",
		zap.Int("guilds", report.Guilds),
		zap.Int("events", report.Events),
		zap.Int("departures", report.Departures),
		zap.Int("failures", report.Failures))
	return report
}

type guildResult struct {
	events     int
	departures int
}

func (s *PopulationScheduler) processGuild(ctx context.Context, guildID string, env *environment.Snapshot, now time.Time) (res guildResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	var (
		out  []zoo.Event
		snap *zoo.ZooState
	)
	err = s.store.Mutate(guildID, func(st *zoo.ZooState) error {
		_, expired := s.admission.ExpireVisitorsIn(st, now)
		out = append(out, expired...)

		s.feeding.UpdateHunger(st, now)
		out = append(out, s.feeding.NotifyHunger(st, now)...)

		freed := make(map[zoo.Habitat]bool)
		for _, b := range st.RemoveDeparted(now) {
			freed[b.Area] = true
			ev := departureEvent(b, now)
			st.AppendEvent(ev, s.opts.EventLogSize)
			out = append(out, ev)
			res.departures++
			s.metrics.Departure("resident")
		}

		for _, h := range zoo.Habitats {
			if freed[h] {
				_, arrived := s.admission.DrainQueue(st, h, now)
				out = append(out, arrived...)
			}
		}

		snap = st.Clone()
		return nil
	})
	if err != nil {
		return res, err
	}

	if zoo.Chance(s.opts.Rand, s.opts.EventChance) {
		pop := s.builder.Build(ctx, snap, now)
		if ev, ok := s.registry.Select(events.NewContext(env, pop, s.opts.Rand, now)); ok {
			err = s.store.Mutate(guildID, func(st *zoo.ZooState) error {
				st.AppendEvent(ev, s.opts.EventLogSize)
				return nil
			})
			if err != nil {
				return res, err
			}
			s.metrics.Event(ev.Type)
			out = append(out, ev)
		}
	}

	res.events = len(out)
	if s.publisher != nil {
		for _, ev := range out {
			s.publisher.Publish(ctx, guildID, ev)
		}
	}
	return res, nil
}

// Shutdown flushes every guild's state.
func (s *PopulationScheduler) Shutdown(ctx context.Context) error {
	if s.flusher == nil {
		return nil
	}
	return s.flusher.FlushAll(ctx)
}

func departureEvent(b *zoo.ResidentBird, now time.Time) zoo.Event {
	days := b.DaysInResidence(now)
	return zoo.Event{
		ID:          uuid.NewString(),
		Type:        "departure",
		Content:     fmt.Sprintf("🕊️ %sが%sから旅立っていきました。%d日間ありがとう！", b.Name, b.Area.Label(), days),
		RelatedBird: b.Name,
		Timestamp:   now,
		Meta:        zoo.EventMeta{DaysInResidence: days, Area: b.Area},
	}
}
