// Package admission places new residents and visitors, enforces area
// capacity with a per-area waiting queue, and expires visitors.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/catalog"
	"github.com/nidhogg/bird-zoo/internal/ledger"
	"github.com/nidhogg/bird-zoo/internal/metrics"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// Options tunes a Controller. Zero values take the defaults.
type Options struct {
	UpstreamTimeout time.Duration
	EventLogSize    int
	MinStayDays     int
	MaxStayDays     int
	MinVisit        time.Duration
	MaxVisit        time.Duration
	Now             func() time.Time
	Rand            zoo.Rand
}

func (o *Options) applyDefaults() {
	if o.UpstreamTimeout <= 0 {
		o.UpstreamTimeout = 300 * time.Millisecond
	}
	if o.EventLogSize <= 0 {
		o.EventLogSize = 50
	}
	if o.MinStayDays <= 0 {
		o.MinStayDays = 2
	}
	if o.MaxStayDays <= 0 {
		o.MaxStayDays = 5
	}
	if o.MaxStayDays < o.MinStayDays {
		o.MaxStayDays = o.MinStayDays
	}
	if o.MinVisit <= 0 {
		o.MinVisit = 2 * time.Hour
	}
	if o.MaxVisit <= 0 {
		o.MaxVisit = 4 * time.Hour
	}
	if o.MaxVisit < o.MinVisit {
		o.MaxVisit = o.MinVisit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Rand == nil {
		o.Rand = zoo.DefaultRand
	}
}

// ResidentOptions customizes one resident admission.
type ResidentOptions struct {
	// StayDays overrides the random base stay when positive.
	StayDays int
	// RequestID makes a queued admission idempotent.
	RequestID   string
	RequestedBy string
}

// VisitorOptions customizes one visitor admission.
type VisitorOptions struct {
	// Window overrides the random visit length when positive.
	Window time.Duration
}

// AreaAssignment describes a placed resident.
type AreaAssignment struct {
	Bird  zoo.ResidentBird `json:"bird"`
	Area  zoo.Habitat      `json:"area"`
	Event zoo.Event        `json:"event"`
}

// DuplicateReport is the result of the duplicate diagnostic.
type DuplicateReport struct {
	BirdName   string         `json:"bird_name"`
	Locations  []zoo.Location `json:"locations"`
	NestOwner  string         `json:"nest_owner,omitempty"`
	Nested     bool           `json:"nested"`
	Duplicated bool           `json:"duplicated"`
}

// Controller owns admission and removal of birds.
type Controller struct {
	store   *zoo.Store
	catalog catalog.Catalog
	ledger  ledger.Ledger
	opts    Options
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewController creates a controller. cat and led may be nil.
func NewController(store *zoo.Store, cat catalog.Catalog, led ledger.Ledger, opts Options, m *metrics.Metrics, logger *zap.Logger) *Controller {
	opts.applyDefaults()
	return &Controller{
		store:   store,
		catalog: cat,
		ledger:  led,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// resolveArea maps species to an area. An unknown species is an error; an
// unreachable catalog falls back to grassland.
func (c *Controller) resolveArea(ctx context.Context, species string) (zoo.Habitat, error) {
	sp, err := catalog.LookupBounded(ctx, c.catalog, species, c.opts.UpstreamTimeout)
	switch {
	case err == nil:
		return catalog.HabitatFor(sp), nil
	case errors.Is(err, zoo.ErrNotFound):
		return "", fmt.Errorf("species %q: %w", species, zoo.ErrNotFound)
	default:
		c.logger.Warn("catalog unavailable, placing in grassland",
			zap.String("species", species), zap.Error(err))
		return zoo.HabitatGrassland, nil
	}
}

// AdmitResident places species in the area its habitat maps to. When the
// area is full the request is queued and a *zoo.CapacityError with Queued
// set is returned; the queued bird is admitted on the next free slot.
func (c *Controller) AdmitResident(ctx context.Context, guildID, species string, opts ResidentOptions) (AreaAssignment, error) {
	area, err := c.resolveArea(ctx, species)
	if err != nil {
		c.metrics.Admission("resident", "not_found")
		return AreaAssignment{}, err
	}

	now := c.opts.Now()
	var (
		out    AreaAssignment
		capErr *zoo.CapacityError
	)
	err = c.store.Mutate(guildID, func(st *zoo.ZooState) error {
		if !st.HasRoom(area, c.store.Capacity()) {
			reqID := opts.RequestID
			if reqID == "" {
				reqID = uuid.NewString()
			}
			pos := st.Enqueue(zoo.AdmissionRequest{
				ID:          reqID,
				Species:     species,
				Area:        area,
				RequestedBy: opts.RequestedBy,
				RequestedAt: now,
				StayDays:    opts.StayDays,
			})
			capErr = &zoo.CapacityError{Area: area, Queued: true, QueuePosition: pos}
			return nil
		}
		b := c.newResident(species, area, opts.StayDays, now)
		if err := st.PlaceResident(b, c.store.Capacity()); err != nil {
			return err
		}
		ev := arrivalEvent(b, now)
		st.AppendEvent(ev, c.opts.EventLogSize)
		out = AreaAssignment{Bird: *b, Area: area, Event: ev}
		return nil
	})
	if err != nil {
		return AreaAssignment{}, err
	}
	if capErr != nil {
		c.metrics.Admission("resident", "queued")
		c.logger.Info("area full, admission queued",
			zap.String("guild", guildID),
			zap.String("species", species),
			zap.String("area", string(area)),
			zap.Int("position", capErr.QueuePosition))
		return AreaAssignment{}, capErr
	}

	c.metrics.Admission("resident", "placed")
	c.logger.Info("resident admitted",
		zap.String("guild", guildID),
		zap.String("species", species),
		zap.String("area", string(area)))
	return out, nil
}

func (c *Controller) newResident(species string, area zoo.Habitat, stayDays int, now time.Time) *zoo.ResidentBird {
	if stayDays <= 0 {
		stayDays = c.opts.MinStayDays + c.opts.Rand.IntN(c.opts.MaxStayDays-c.opts.MinStayDays+1)
	}
	return &zoo.ResidentBird{
		Bird: zoo.Bird{
			ID:                 uuid.NewString(),
			Name:               species,
			EntryTime:          now,
			ScheduledDeparture: now.Add(time.Duration(stayDays) * 24 * time.Hour),
			Mood:               zoo.RandomMood(c.opts.Rand),
			Activity:           zoo.ArrivalActivity(area, c.opts.Rand),
			FeedHistory:        []zoo.FeedRecord{},
		},
		Area: area,
	}
}

// AdmitVisitor adds a short visit. Visitors are not bound by area capacity.
func (c *Controller) AdmitVisitor(ctx context.Context, guildID, species, inviterID, inviterName string, opts VisitorOptions) (*zoo.VisitorBird, error) {
	if _, err := catalog.LookupBounded(ctx, c.catalog, species, c.opts.UpstreamTimeout); errors.Is(err, zoo.ErrNotFound) {
		c.metrics.Admission("visitor", "not_found")
		return nil, fmt.Errorf("species %q: %w", species, zoo.ErrNotFound)
	}

	window := opts.Window
	if window <= 0 {
		span := int((c.opts.MaxVisit - c.opts.MinVisit) / time.Minute)
		window = c.opts.MinVisit + time.Duration(c.opts.Rand.IntN(span+1))*time.Minute
	}

	now := c.opts.Now()
	v := &zoo.VisitorBird{
		Bird: zoo.Bird{
			ID:                 uuid.NewString(),
			Name:               species,
			EntryTime:          now,
			ScheduledDeparture: now.Add(window),
			Mood:               zoo.RandomMood(c.opts.Rand),
			Activity:           zoo.VisitorActivity(c.opts.Rand),
			FeedHistory:        []zoo.FeedRecord{},
		},
		InviterUserID: inviterID,
		InviterName:   inviterName,
	}
	err := c.store.Mutate(guildID, func(st *zoo.ZooState) error {
		st.Visitors = append(st.Visitors, v)
		st.AppendEvent(zoo.Event{
			ID:          uuid.NewString(),
			Type:        "visitor_arrival",
			Content:     fmt.Sprintf("🎫 %sさんに招待されて、%sが遊びに来ました！", displayName(inviterName, inviterID), species),
			RelatedBird: species,
			Timestamp:   now,
		}, c.opts.EventLogSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.metrics.Admission("visitor", "placed")
	out := *v
	return &out, nil
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

// ExpireVisitors removes visitors whose window has passed.
func (c *Controller) ExpireVisitors(guildID string, now time.Time) ([]*zoo.VisitorBird, error) {
	var expired []*zoo.VisitorBird
	err := c.store.Mutate(guildID, func(st *zoo.ZooState) error {
		expired, _ = c.ExpireVisitorsIn(st, now)
		return nil
	})
	return expired, err
}

// ExpireVisitorsIn expires visitors of st and logs a departure event for
// each. The caller must hold the guild's lock.
func (c *Controller) ExpireVisitorsIn(st *zoo.ZooState, now time.Time) ([]*zoo.VisitorBird, []zoo.Event) {
	expired := st.ExpireVisitors(now)
	var events []zoo.Event
	for _, v := range expired {
		ev := zoo.Event{
			ID:          uuid.NewString(),
			Type:        "visitor_departure",
			Content:     fmt.Sprintf("👋 %sが楽しい時間を過ごして帰っていきました。", v.Name),
			RelatedBird: v.Name,
			Timestamp:   now,
		}
		st.AppendEvent(ev, c.opts.EventLogSize)
		events = append(events, ev)
		c.metrics.Departure("visitor")
	}
	return expired, events
}

// DrainQueue admits queued requests for area while it has room. The caller
// must hold the guild's lock.
func (c *Controller) DrainQueue(st *zoo.ZooState, area zoo.Habitat, now time.Time) ([]*zoo.ResidentBird, []zoo.Event) {
	var (
		admitted []*zoo.ResidentBird
		events   []zoo.Event
	)
	for st.HasRoom(area, c.store.Capacity()) {
		req, ok := st.DequeueFor(area)
		if !ok {
			break
		}
		b := c.newResident(req.Species, area, req.StayDays, now)
		if err := st.PlaceResident(b, c.store.Capacity()); err != nil {
			break
		}
		ev := arrivalEvent(b, now)
		ev.Content = "⏳ 順番待ちをしていた" + ev.Content
		st.AppendEvent(ev, c.opts.EventLogSize)
		admitted = append(admitted, b)
		events = append(events, ev)
		c.metrics.Admission("resident", "dequeued")
	}
	return admitted, events
}

// DrainAll drains every area of st.
func (c *Controller) DrainAll(st *zoo.ZooState, now time.Time) ([]*zoo.ResidentBird, []zoo.Event) {
	var (
		admitted []*zoo.ResidentBird
		events   []zoo.Event
	)
	for _, h := range zoo.Habitats {
		a, e := c.DrainQueue(st, h, now)
		admitted = append(admitted, a...)
		events = append(events, e...)
	}
	return admitted, events
}

// IsDuplicated reports whether birdName is both in the zoo and held in a
// nest. It only diagnoses; nothing is corrected.
func (c *Controller) IsDuplicated(ctx context.Context, birdName, guildID string) (DuplicateReport, error) {
	st := c.store.Get(guildID)
	rep := DuplicateReport{BirdName: birdName, Locations: st.Locate(birdName)}
	if c.ledger == nil {
		return rep, nil
	}

	lctx, cancel := context.WithTimeout(ctx, c.opts.UpstreamTimeout)
	defer cancel()
	owner, ok, err := c.ledger.NestOwner(lctx, guildID, birdName)
	if err != nil {
		return rep, fmt.Errorf("%w: nest lookup: %v", zoo.ErrUpstreamUnavailable, err)
	}
	rep.Nested = ok
	rep.NestOwner = owner
	rep.Duplicated = ok && len(rep.Locations) > 0
	return rep, nil
}

// ForceRemove drops every zoo slot held by birdName and refills the freed
// areas from the queue. Nest records are left untouched.
func (c *Controller) ForceRemove(ctx context.Context, birdName, guildID string) (int, error) {
	now := c.opts.Now()
	var removed int
	err := c.store.Mutate(guildID, func(st *zoo.ZooState) error {
		residents, visitors := st.RemoveNamed(birdName)
		removed = len(residents) + len(visitors)
		if removed == 0 {
			return fmt.Errorf("bird %q: %w", birdName, zoo.ErrNotFound)
		}
		st.AppendEvent(zoo.Event{
			ID:          uuid.NewString(),
			Type:        "admin_removal",
			Content:     fmt.Sprintf("🧹 %sを園内から整理しました。", birdName),
			RelatedBird: birdName,
			Timestamp:   now,
		}, c.opts.EventLogSize)
		freed := make(map[zoo.Habitat]bool)
		for _, r := range residents {
			freed[r.Area] = true
		}
		for _, h := range zoo.Habitats {
			if freed[h] {
				c.DrainQueue(st, h, now)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.metrics.Departure("forced")
	c.logger.Info("bird force removed",
		zap.String("guild", guildID),
		zap.String("bird", birdName),
		zap.Int("slots", removed))
	return removed, nil
}

// RemoveResident removes one resident by id and refills its area.
func (c *Controller) RemoveResident(ctx context.Context, guildID, birdID string) (*zoo.ResidentBird, error) {
	now := c.opts.Now()
	var out *zoo.ResidentBird
	err := c.store.Mutate(guildID, func(st *zoo.ZooState) error {
		b, ok := st.RemoveResident(birdID)
		if !ok {
			return fmt.Errorf("resident %s: %w", birdID, zoo.ErrNotFound)
		}
		c.DrainQueue(st, b.Area, now)
		cp := *b
		out = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.metrics.Departure("removed")
	return out, nil
}

func arrivalEvent(b *zoo.ResidentBird, now time.Time) zoo.Event {
	return zoo.Event{
		ID:          uuid.NewString(),
		Type:        "arrival",
		Content:     fmt.Sprintf("%sが%sにやってきました！", b.Name, b.Area.Label()),
		RelatedBird: b.Name,
		Timestamp:   now,
		Meta:        zoo.EventMeta{Area: b.Area},
	}
}
