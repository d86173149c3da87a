// Package feeding implements feeding: sleep hours, per-user cooldown,
// food preference, stay extension and hunger.
package feeding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/catalog"
	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/ledger"
	"github.com/nidhogg/bird-zoo/internal/metrics"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Options tunes a Service. Zero values take the defaults.
type Options struct {
	Cooldown        time.Duration
	HungerThreshold time.Duration
	UpstreamTimeout time.Duration
	EventLogSize    int
	Now             func() time.Time
	Rand            zoo.Rand
}

func (o *Options) applyDefaults() {
	if o.Cooldown <= 0 {
		o.Cooldown = 30 * time.Minute
	}
	if o.HungerThreshold <= 0 {
		o.HungerThreshold = 12 * time.Hour
	}
	if o.UpstreamTimeout <= 0 {
		o.UpstreamTimeout = 300 * time.Millisecond
	}
	if o.EventLogSize <= 0 {
		o.EventLogSize = 50
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Rand == nil {
		o.Rand = zoo.DefaultRand
	}
}

// FeedOutcome is the result of a successful feeding.
type FeedOutcome struct {
	BirdID             string         `json:"bird_id"`
	BirdName           string         `json:"bird_name"`
	Visitor            bool           `json:"visitor"`
	Food               string         `json:"food"`
	Tier               zoo.Preference `json:"tier"`
	Message            string         `json:"message"`
	Activity           string         `json:"activity"`
	FeedCount          int            `json:"feed_count"`
	ExtensionDays      int            `json:"extension_days"`
	EffectiveDeparture time.Time      `json:"effective_departure"`
	SpecialEvent       *zoo.Event     `json:"special_event,omitempty"`
}

// Service performs feedings against a Store.
type Service struct {
	store   *zoo.Store
	catalog catalog.Catalog
	ledger  ledger.Ledger
	opts    Options
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService creates a feeding service. cat and led may be nil.
func NewService(store *zoo.Store, cat catalog.Catalog, led ledger.Ledger, opts Options, m *metrics.Metrics, logger *zap.Logger) *Service {
	opts.applyDefaults()
	return &Service{
		store:   store,
		catalog: cat,
		ledger:  led,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Cooldown returns the per-user feeding cooldown.
func (s *Service) Cooldown() time.Duration { return s.opts.Cooldown }

// Feed feeds one bird. birdRef is a bird id or a species name; a name
// shared by several individuals resolves through pick. Checks run in
// order: sleep hours, presence, then the per (bird, user) cooldown.
func (s *Service) Feed(ctx context.Context, guildID, birdRef, userID, food string) (*FeedOutcome, error) {
	now := s.opts.Now()
	if environment.IsSleeping(now) {
		s.metrics.Feeding("asleep")
		return nil, zoo.ErrBirdsAsleep
	}
	found := findBirds(s.store.Get(guildID), birdRef)
	if len(found) == 0 {
		s.metrics.Feeding("not_found")
		return nil, fmt.Errorf("bird %q: %w", birdRef, zoo.ErrNotFound)
	}
	species := found[0].bird.Name

	tier := s.classify(ctx, species, food)

	var out *FeedOutcome
	err := s.store.Mutate(guildID, func(st *zoo.ZooState) error {
		found := findBirds(st, birdRef)
		if len(found) == 0 {
			return fmt.Errorf("bird %q: %w", birdRef, zoo.ErrNotFound)
		}
		target := s.pick(found, userID, now)
		b := target.bird
		if last, fed := b.LastFedBy(userID); fed && now.Sub(last) < s.opts.Cooldown {
			return &zoo.CooldownError{NextEligibleAt: last.Add(s.opts.Cooldown)}
		}
		out = s.apply(st, b, target.visitor, userID, food, tier, now)
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, zoo.ErrCooldownActive):
			s.metrics.Feeding("cooldown")
		case errors.Is(err, zoo.ErrNotFound):
			s.metrics.Feeding("not_found")
		}
		return nil, err
	}

	s.metrics.Feeding(string(tier))
	s.creditAffinity(ctx, guildID, out.BirdName, userID, tier)
	s.logger.Debug("bird fed",
		zap.String("guild", guildID),
		zap.String("bird", out.BirdName),
		zap.String("bird_id", out.BirdID),
		zap.String("user", userID),
		zap.String("tier", string(tier)))
	return out, nil
}

// pick chooses which of several same-named birds userID feeds: a hungry
// bird off cooldown for this user, then any bird off cooldown, then the one
// whose cooldown ends first.
func (s *Service) pick(found []located, userID string, now time.Time) located {
	var (
		eligible  *located
		soonest   located
		soonestAt time.Time
	)
	for i := range found {
		c := found[i]
		last, fed := c.bird.LastFedBy(userID)
		if !fed || now.Sub(last) >= s.opts.Cooldown {
			if c.bird.IsHungry {
				return c
			}
			if eligible == nil {
				eligible = &found[i]
			}
			continue
		}
		if next := last.Add(s.opts.Cooldown); soonestAt.IsZero() || next.Before(soonestAt) {
			soonest, soonestAt = c, next
		}
	}
	if eligible != nil {
		return *eligible
	}
	return soonest
}

func (s *Service) apply(st *zoo.ZooState, b *zoo.Bird, visitor bool, userID, food string, tier zoo.Preference, now time.Time) *FeedOutcome {
	r := s.opts.Rand

	b.FeedCount++
	fedAt := now
	b.LastFed = &fedAt
	b.LastFedByUserID = userID
	b.IsHungry = false
	b.HungerNotified = false
	b.FeedHistory = append(b.FeedHistory, zoo.FeedRecord{
		Food:       food,
		Preference: tier,
		Timestamp:  now,
		FeederID:   userID,
	})
	b.Activity = zoo.FedActivity(tier, r)
	b.Mood = zoo.RandomMood(r)

	ext := 0
	if !visitor {
		ext = extensionDays(tier, r)
		b.StayExtensionDays += ext
	}

	out := &FeedOutcome{
		BirdID:             b.ID,
		BirdName:           b.Name,
		Visitor:            visitor,
		Food:               food,
		Tier:               tier,
		Message:            render(zoo.Pick(r, feedMessages[tier]), b.Name, food),
		Activity:           b.Activity,
		FeedCount:          b.FeedCount,
		ExtensionDays:      ext,
		EffectiveDeparture: b.EffectiveDeparture(),
	}

	if zoo.Chance(r, specialChance[tier]) {
		ev := zoo.Event{
			ID:          uuid.NewString(),
			Type:        "feed_special",
			Content:     render(zoo.Pick(r, specialMessages), b.Name, food),
			RelatedBird: b.Name,
			Timestamp:   now,
			Meta:        zoo.EventMeta{IsRareEvent: true},
		}
		st.AppendEvent(ev, s.opts.EventLogSize)
		out.SpecialEvent = &ev
		s.metrics.Event(ev.Type)
	}
	return out
}

// extensionDays draws the stay extension for a feeding of tier.
func extensionDays(tier zoo.Preference, r zoo.Rand) int {
	switch tier {
	case zoo.PreferenceFavorite:
		if zoo.Chance(r, 0.9) {
			return 3
		}
		return 6
	case zoo.PreferenceAcceptable:
		if zoo.Chance(r, 0.7) {
			return 1
		}
		return 0
	default:
		return 0
	}
}

var specialChance = map[zoo.Preference]float64{
	zoo.PreferenceFavorite:   0.15,
	zoo.PreferenceAcceptable: 0.05,
	zoo.PreferenceDislike:    0.02,
}

// classify rates food for the species. An unreachable catalog or an
// uncatalogued species rates it acceptable.
func (s *Service) classify(ctx context.Context, species, food string) zoo.Preference {
	sp, err := catalog.LookupBounded(ctx, s.catalog, species, s.opts.UpstreamTimeout)
	if err != nil {
		if !errors.Is(err, zoo.ErrNotFound) {
			s.logger.Warn("catalog unavailable, treating food as acceptable",
				zap.String("species", species), zap.Error(err))
		}
		return zoo.PreferenceAcceptable
	}
	return catalog.Classify(sp, food)
}

func (s *Service) creditAffinity(ctx context.Context, guildID, birdName, userID string, tier zoo.Preference) {
	if s.ledger == nil {
		return
	}
	points := map[zoo.Preference]int{
		zoo.PreferenceFavorite:   3,
		zoo.PreferenceAcceptable: 2,
		zoo.PreferenceDislike:    1,
	}[tier]
	lctx, cancel := context.WithTimeout(ctx, s.opts.UpstreamTimeout)
	defer cancel()
	if err := s.ledger.AddAffinity(lctx, guildID, birdName, userID, points); err != nil {
		s.logger.Warn("affinity update failed", zap.String("guild", guildID), zap.Error(err))
	}
}

// ExtendStay adds days and hours to a resident's stay. birdRef is a bird
// id or a species name; a shared name extends the resident departing
// first. Extensions only ever grow the effective departure.
func (s *Service) ExtendStay(guildID, birdRef string, days, hours int) (time.Time, error) {
	if days < 0 || hours < 0 {
		return time.Time{}, fmt.Errorf("extension must not be negative: %dd %dh", days, hours)
	}
	var dep time.Time
	err := s.store.Mutate(guildID, func(st *zoo.ZooState) error {
		var b *zoo.ResidentBird
		for _, r := range st.Residents() {
			if r.ID == birdRef {
				b = r
				break
			}
			if r.Name == birdRef && (b == nil || r.EffectiveDeparture().Before(b.EffectiveDeparture())) {
				b = r
			}
		}
		if b == nil {
			return fmt.Errorf("resident %q: %w", birdRef, zoo.ErrNotFound)
		}
		b.StayExtensionDays += days
		b.StayExtensionHours += hours
		dep = b.EffectiveDeparture()
		return nil
	})
	return dep, err
}

// UpdateHunger recomputes every resident's hunger flag against now and
// returns the residents that just became hungry. The caller must hold the
// guild's lock.
func (s *Service) UpdateHunger(st *zoo.ZooState, now time.Time) []*zoo.ResidentBird {
	var onset []*zoo.ResidentBird
	for _, b := range st.Residents() {
		hungry := now.Sub(b.HungerReference()) >= s.opts.HungerThreshold
		switch {
		case hungry && !b.IsHungry:
			b.IsHungry = true
			b.Activity = zoo.HungryActivity(s.opts.Rand)
			onset = append(onset, b)
		case !hungry && b.IsHungry:
			b.IsHungry = false
			b.HungerNotified = false
		}
	}
	return onset
}

// NotifyHunger logs one hunger event per hungry resident not yet
// announced. The caller must hold the guild's lock.
func (s *Service) NotifyHunger(st *zoo.ZooState, now time.Time) []zoo.Event {
	var events []zoo.Event
	for _, b := range st.Residents() {
		if !b.IsHungry || b.HungerNotified {
			continue
		}
		b.HungerNotified = true
		ev := zoo.Event{
			ID:          uuid.NewString(),
			Type:        "hunger",
			Content:     render(zoo.Pick(s.opts.Rand, hungerMessages), b.Name, ""),
			RelatedBird: b.Name,
			Timestamp:   now,
			Meta:        zoo.EventMeta{Area: b.Area},
		}
		st.AppendEvent(ev, s.opts.EventLogSize)
		events = append(events, ev)
	}
	return events
}

type located struct {
	bird    *zoo.Bird
	visitor bool
}

// findBirds resolves ref to the bird with that id, or else to every
// resident and visitor of that name, residents first.
func findBirds(st *zoo.ZooState, ref string) []located {
	var named []located
	for _, b := range st.Residents() {
		if b.ID == ref {
			return []located{{bird: &b.Bird}}
		}
		if b.Name == ref {
			named = append(named, located{bird: &b.Bird})
		}
	}
	for _, v := range st.Visitors {
		if v.ID == ref {
			return []located{{bird: &v.Bird, visitor: true}}
		}
		if v.Name == ref {
			named = append(named, located{bird: &v.Bird, visitor: true})
		}
	}
	return named
}

func render(tmpl, bird, food string) string {
	return strings.NewReplacer("{bird}", bird, "{food}", food).Replace(tmpl)
}
