package feeding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/catalog"
	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/ledger"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

// floatRand returns f from every Float64 draw.
type floatRand struct{ f float64 }

func (r floatRand) Float64() float64 { return r.f }
func (floatRand) IntN(int) int       { return 0 }

func jst(d, h, m int) time.Time {
	return time.Date(2026, 10, d, h, m, 0, 0, environment.JST)
}

type fixture struct {
	svc   *Service
	store *zoo.Store
	now   time.Time
	led   *ledger.MemoryLedger
}

func newFixture(t *testing.T, r zoo.Rand) *fixture {
	t.Helper()
	f := &fixture{now: jst(18, 14, 0), led: ledger.NewMemoryLedger()}
	clock := func() time.Time { return f.now }
	f.store = zoo.NewStore(5, clock, zap.NewNop())
	f.svc = NewService(f.store, catalog.Default(), f.led, Options{Now: clock, Rand: r}, nil, zap.NewNop())

	entry := jst(18, 8, 0)
	err := f.store.Mutate("g1", func(st *zoo.ZooState) error {
		return st.PlaceResident(&zoo.ResidentBird{
			Bird: zoo.Bird{
				ID:                 "b1",
				Name:               "メジロ",
				EntryTime:          entry,
				ScheduledDeparture: entry.Add(72 * time.Hour),
				IsHungry:           true,
				FeedHistory:        []zoo.FeedRecord{},
			},
			Area: zoo.HabitatForest,
		}, 5)
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestFeedFavoriteAtTwoPM(t *testing.T) {
	f := newFixture(t, floatRand{0})
	before := f.store.Get("g1").Areas[zoo.HabitatForest][0]

	out, err := f.svc.Feed(context.Background(), "g1", "メジロ", "alice", "果物")
	if err != nil {
		t.Fatal(err)
	}
	if out.Tier != zoo.PreferenceFavorite {
		t.Errorf("tier = %s", out.Tier)
	}
	if out.ExtensionDays != 3 {
		t.Errorf("extension = %d, want 3 on the 90%% branch", out.ExtensionDays)
	}
	if out.Message != render(feedMessages[zoo.PreferenceFavorite][0], "メジロ", "果物") {
		t.Errorf("message %q not from the favorite pool", out.Message)
	}
	if out.SpecialEvent == nil || !out.SpecialEvent.Meta.IsRareEvent {
		t.Error("special event should fire when the draw is under 15%")
	}

	after := f.store.Get("g1").Areas[zoo.HabitatForest][0]
	if after.FeedCount != before.FeedCount+1 {
		t.Errorf("feed count = %d", after.FeedCount)
	}
	if after.IsHungry || after.HungerNotified {
		t.Error("hunger not cleared")
	}
	if after.LastFed == nil || !after.LastFed.Equal(f.now) || after.LastFedByUserID != "alice" {
		t.Errorf("last fed = %v by %q", after.LastFed, after.LastFedByUserID)
	}
	if len(after.FeedHistory) != 1 || after.FeedHistory[0].Preference != zoo.PreferenceFavorite {
		t.Errorf("history = %+v", after.FeedHistory)
	}
	if !after.EffectiveDeparture().Equal(before.EffectiveDeparture().Add(72 * time.Hour)) {
		t.Errorf("departure = %s", after.EffectiveDeparture())
	}
	if top, ok, _ := f.led.TopSupporter(context.Background(), "g1", "メジロ"); !ok || top != "alice" {
		t.Errorf("affinity not credited: %q", top)
	}
}

func TestExtensionBranches(t *testing.T) {
	tests := []struct {
		tier zoo.Preference
		draw float64
		want int
	}{
		{zoo.PreferenceFavorite, 0.5, 3},
		{zoo.PreferenceFavorite, 0.95, 6},
		{zoo.PreferenceAcceptable, 0.5, 1},
		{zoo.PreferenceAcceptable, 0.8, 0},
		{zoo.PreferenceDislike, 0.0, 0},
	}
	for _, tt := range tests {
		if got := extensionDays(tt.tier, floatRand{tt.draw}); got != tt.want {
			t.Errorf("%s @%.2f = %d, want %d", tt.tier, tt.draw, got, tt.want)
		}
	}
}

func TestFeedAsleep(t *testing.T) {
	f := newFixture(t, floatRand{0.99})
	for _, at := range []time.Time{jst(18, 23, 0), jst(19, 6, 59), jst(18, 22, 0)} {
		f.now = at
		if _, err := f.svc.Feed(context.Background(), "g1", "メジロ", "alice", "果物"); !errors.Is(err, zoo.ErrBirdsAsleep) {
			t.Errorf("%s: err = %v", at.Format("15:04"), err)
		}
	}
	// Sleep wins over a missing bird.
	if _, err := f.svc.Feed(context.Background(), "g1", "ドードー", "alice", "果物"); !errors.Is(err, zoo.ErrBirdsAsleep) {
		t.Errorf("err = %v", err)
	}
}

func TestFeedCooldown(t *testing.T) {
	f := newFixture(t, floatRand{0.99})
	ctx := context.Background()

	if _, err := f.svc.Feed(ctx, "g1", "メジロ", "alice", "虫"); err != nil {
		t.Fatal(err)
	}
	fedAt := f.now

	f.now = fedAt.Add(29 * time.Minute)
	_, err := f.svc.Feed(ctx, "g1", "メジロ", "alice", "虫")
	var cd *zoo.CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("err = %v", err)
	}
	if !cd.NextEligibleAt.Equal(fedAt.Add(30 * time.Minute)) {
		t.Errorf("next eligible = %s", cd.NextEligibleAt)
	}

	if _, err := f.svc.Feed(ctx, "g1", "メジロ", "bob", "虫"); err != nil {
		t.Errorf("different user should succeed: %v", err)
	}

	f.now = fedAt.Add(30 * time.Minute)
	if _, err := f.svc.Feed(ctx, "g1", "メジロ", "alice", "虫"); err != nil {
		t.Errorf("after cooldown: %v", err)
	}
}

func TestFeedNotFound(t *testing.T) {
	f := newFixture(t, floatRand{0.99})
	if _, err := f.svc.Feed(context.Background(), "g1", "ドードー", "alice", "虫"); !errors.Is(err, zoo.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestFeedVisitorNeverExtends(t *testing.T) {
	f := newFixture(t, floatRand{0})
	f.store.Mutate("g1", func(st *zoo.ZooState) error {
		st.Visitors = append(st.Visitors, &zoo.VisitorBird{Bird: zoo.Bird{
			ID:                 "v1",
			Name:               "ツバメ",
			EntryTime:          f.now,
			ScheduledDeparture: f.now.Add(3 * time.Hour),
		}})
		return nil
	})
	out, err := f.svc.Feed(context.Background(), "g1", "ツバメ", "alice", "虫")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Visitor || out.ExtensionDays != 0 || !out.EffectiveDeparture.Equal(f.now.Add(3*time.Hour)) {
		t.Errorf("outcome = %+v", out)
	}
}

func TestDepartureMonotonicAcrossFeedings(t *testing.T) {
	f := newFixture(t, zoo.DefaultRand)
	ctx := context.Background()
	prev := f.store.Get("g1").Areas[zoo.HabitatForest][0].EffectiveDeparture()
	for i := 0; i < 20; i++ {
		f.now = f.now.Add(31 * time.Minute)
		if environment.IsSleeping(f.now) {
			f.now = f.now.Add(9 * time.Hour)
		}
		out, err := f.svc.Feed(ctx, "g1", "メジロ", "alice", []string{"果物", "虫", "魚"}[i%3])
		if err != nil {
			t.Fatal(err)
		}
		if out.EffectiveDeparture.Before(prev) {
			t.Fatalf("departure shrank: %s < %s", out.EffectiveDeparture, prev)
		}
		prev = out.EffectiveDeparture
	}
}

func TestExtendStay(t *testing.T) {
	f := newFixture(t, floatRand{0.99})
	before := f.store.Get("g1").Areas[zoo.HabitatForest][0].EffectiveDeparture()
	dep, err := f.svc.ExtendStay("g1", "メジロ", 1, 6)
	if err != nil {
		t.Fatal(err)
	}
	if !dep.Equal(before.Add(30 * time.Hour)) {
		t.Errorf("departure = %s", dep)
	}
	if _, err := f.svc.ExtendStay("g1", "メジロ", -1, 0); err == nil {
		t.Error("negative extension accepted")
	}
}

func TestUpdateHungerIff(t *testing.T) {
	f := newFixture(t, floatRand{0.99})
	fedAt := jst(18, 10, 0)
	f.store.Mutate("g1", func(st *zoo.ZooState) error {
		b := st.Areas[zoo.HabitatForest][0]
		b.LastFed = &fedAt
		b.IsHungry = false
		return nil
	})

	steps := []struct {
		at   time.Time
		want bool
	}{
		{fedAt.Add(11*time.Hour + 59*time.Minute), false},
		{fedAt.Add(12 * time.Hour), true},
		{fedAt.Add(20 * time.Hour), true},
		{fedAt.Add(6 * time.Hour), false}, // clock moved backward
		{fedAt.Add(12*time.Hour + time.Second), true},
	}
	for _, s := range steps {
		f.store.Mutate("g1", func(st *zoo.ZooState) error {
			f.svc.UpdateHunger(st, s.at)
			return nil
		})
		b := f.store.Get("g1").Areas[zoo.HabitatForest][0]
		if b.IsHungry != s.want {
			t.Errorf("at +%s hungry = %v, want %v", s.at.Sub(fedAt), b.IsHungry, s.want)
		}
	}
}

func TestNotifyHungerOncePerOnset(t *testing.T) {
	f := newFixture(t, floatRand{0.99})
	var first, second []zoo.Event
	f.store.Mutate("g1", func(st *zoo.ZooState) error {
		first = f.svc.NotifyHunger(st, f.now)
		second = f.svc.NotifyHunger(st, f.now)
		return nil
	})
	if len(first) != 1 || first[0].Type != "hunger" {
		t.Errorf("first = %+v", first)
	}
	if len(second) != 0 {
		t.Errorf("hunger announced twice")
	}
}

func (f *fixture) addResident(t *testing.T, id, name string, hungry bool) {
	t.Helper()
	entry := jst(18, 8, 0)
	err := f.store.Mutate("g1", func(st *zoo.ZooState) error {
		return st.PlaceResident(&zoo.ResidentBird{
			Bird: zoo.Bird{
				ID:                 id,
				Name:               name,
				EntryTime:          entry,
				ScheduledDeparture: entry.Add(72 * time.Hour),
				IsHungry:           hungry,
			},
			Area: zoo.HabitatForest,
		}, 5)
	})
	if err != nil {
		t.Fatal(err)
	}
}

func bird(t *testing.T, f *fixture, id string) *zoo.ResidentBird {
	t.Helper()
	for _, b := range f.store.Get("g1").Residents() {
		if b.ID == id {
			return b
		}
	}
	t.Fatalf("no bird %s", id)
	return nil
}

func TestFeedReachesEveryFlockMember(t *testing.T) {
	f := newFixture(t, floatRand{0.99})
	f.addResident(t, "b2", "メジロ", true)
	ctx := context.Background()

	var fed []string
	for _, user := range []string{"u1", "u2", "u3"} {
		out, err := f.svc.Feed(ctx, "g1", "メジロ", user, "虫")
		if err != nil {
			t.Fatalf("%s: %v", user, err)
		}
		fed = append(fed, out.BirdID)
	}
	// Hungry birds first, then the first bird off cooldown.
	if fed[0] != "b1" || fed[1] != "b2" || fed[2] != "b1" {
		t.Errorf("fed order = %v", fed)
	}
	for _, id := range []string{"b1", "b2"} {
		if b := bird(t, f, id); b.IsHungry || b.FeedCount == 0 {
			t.Errorf("%s: hungry=%v feedCount=%d", id, b.IsHungry, b.FeedCount)
		}
	}
}

func TestFeedSameUserMovesToNextFlockMember(t *testing.T) {
	f := newFixture(t, floatRand{0.99})
	f.addResident(t, "b2", "メジロ", false)
	ctx := context.Background()

	first, err := f.svc.Feed(ctx, "g1", "メジロ", "alice", "虫")
	if err != nil {
		t.Fatal(err)
	}
	f.now = f.now.Add(5 * time.Minute)
	second, err := f.svc.Feed(ctx, "g1", "メジロ", "alice", "虫")
	if err != nil {
		t.Fatal(err)
	}
	if first.BirdID != "b1" || second.BirdID != "b2" {
		t.Errorf("fed %s then %s", first.BirdID, second.BirdID)
	}

	// Every member on cooldown: report the one that frees up first.
	f.now = f.now.Add(5 * time.Minute)
	_, err = f.svc.Feed(ctx, "g1", "メジロ", "alice", "虫")
	var cd *zoo.CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("err = %v", err)
	}
	if want := jst(18, 14, 30); !cd.NextEligibleAt.Equal(want) {
		t.Errorf("next eligible = %s, want %s", cd.NextEligibleAt, want)
	}
}

func TestFeedByID(t *testing.T) {
	f := newFixture(t, floatRand{0.99})
	f.addResident(t, "b2", "メジロ", true)

	out, err := f.svc.Feed(context.Background(), "g1", "b2", "alice", "虫")
	if err != nil {
		t.Fatal(err)
	}
	if out.BirdID != "b2" || out.BirdName != "メジロ" {
		t.Errorf("outcome = %+v", out)
	}
	if _, err := f.svc.Feed(context.Background(), "g1", "b2", "alice", "虫"); !errors.Is(err, zoo.ErrCooldownActive) {
		t.Errorf("id feeding should not fall through to b1: %v", err)
	}
	if top, ok, _ := f.led.TopSupporter(context.Background(), "g1", "メジロ"); !ok || top != "alice" {
		t.Errorf("affinity keyed by id instead of species: %q", top)
	}
}

func TestExtendStayByIDAndSharedName(t *testing.T) {
	f := newFixture(t, floatRand{0.99})
	f.addResident(t, "b2", "メジロ", false)
	f.store.Mutate("g1", func(st *zoo.ZooState) error {
		for _, b := range st.Residents() {
			if b.ID == "b1" {
				b.StayExtensionDays = 2
			}
		}
		return nil
	})

	// The shared name extends the bird leaving first.
	if _, err := f.svc.ExtendStay("g1", "メジロ", 1, 0); err != nil {
		t.Fatal(err)
	}
	if got := bird(t, f, "b2").StayExtensionDays; got != 1 {
		t.Errorf("b2 extension = %d", got)
	}
	if _, err := f.svc.ExtendStay("g1", "b1", 0, 5); err != nil {
		t.Fatal(err)
	}
	if got := bird(t, f, "b1").StayExtensionHours; got != 5 {
		t.Errorf("b1 extension hours = %d", got)
	}
}
