package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/catalog"
	"github.com/nidhogg/bird-zoo/internal/ledger"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

var t0 = time.Date(2026, 10, 18, 5, 0, 0, 0, time.UTC)

type fixedRand struct{}

func (fixedRand) Float64() float64 { return 0 }
func (fixedRand) IntN(int) int     { return 0 }

type downCatalog struct{}

func (downCatalog) Lookup(context.Context, string) (*catalog.Species, error) {
	return nil, errors.New("connection refused")
}

func newController(t *testing.T, cat catalog.Catalog, led ledger.Ledger, now *time.Time) (*Controller, *zoo.Store) {
	t.Helper()
	clock := func() time.Time { return *now }
	store := zoo.NewStore(5, clock, zap.NewNop())
	c := NewController(store, cat, led, Options{Now: clock, Rand: fixedRand{}}, nil, zap.NewNop())
	return c, store
}

func TestAdmitResidentPlacesByHabitat(t *testing.T) {
	now := t0
	c, store := newController(t, catalog.Default(), nil, &now)

	tests := map[string]zoo.Habitat{
		"メジロ":  zoo.HabitatForest,
		"カワセミ": zoo.HabitatWaterside,
		"ヒバリ":  zoo.HabitatGrassland,
	}
	for species, want := range tests {
		got, err := c.AdmitResident(context.Background(), "g1", species, ResidentOptions{})
		if err != nil {
			t.Fatalf("%s: %v", species, err)
		}
		if got.Area != want {
			t.Errorf("%s placed in %s, want %s", species, got.Area, want)
		}
		// fixedRand picks the minimum base stay.
		if d := got.Bird.ScheduledDeparture.Sub(got.Bird.EntryTime); d != 48*time.Hour {
			t.Errorf("%s base stay = %s", species, d)
		}
	}
	st := store.Get("g1")
	if st.Population() != 3 || len(st.EventLog) != 3 {
		t.Errorf("population %d events %d", st.Population(), len(st.EventLog))
	}
}

func TestAdmitResidentQueuesWhenFullAndDrainsOnDeparture(t *testing.T) {
	now := t0
	c, store := newController(t, catalog.Default(), nil, &now)
	ctx := context.Background()

	var firstID string
	for i := 0; i < 5; i++ {
		a, err := c.AdmitResident(ctx, "g1", "コゲラ", ResidentOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			firstID = a.Bird.ID
		}
	}

	_, err := c.AdmitResident(ctx, "g1", "メジロ", ResidentOptions{RequestID: "req-1"})
	var capErr *zoo.CapacityError
	if !errors.As(err, &capErr) || !errors.Is(err, zoo.ErrCapacityExceeded) {
		t.Fatalf("err = %v", err)
	}
	if !capErr.Queued || capErr.QueuePosition != 1 || capErr.Area != zoo.HabitatForest {
		t.Errorf("capacity error = %+v", capErr)
	}

	// Resubmitting the same request is a no-op.
	c.AdmitResident(ctx, "g1", "メジロ", ResidentOptions{RequestID: "req-1"})

	st := store.Get("g1")
	if len(st.Areas[zoo.HabitatForest]) != 5 {
		t.Fatalf("forest holds %d", len(st.Areas[zoo.HabitatForest]))
	}
	if len(st.AdmissionQueue) != 1 {
		t.Fatalf("queue = %d", len(st.AdmissionQueue))
	}
	if _, ok := st.FindResident("メジロ"); ok {
		t.Fatal("queued bird must not be placed")
	}

	if _, err := c.RemoveResident(ctx, "g1", firstID); err != nil {
		t.Fatal(err)
	}
	st = store.Get("g1")
	if _, ok := st.FindResident("メジロ"); !ok {
		t.Error("queued bird not admitted after a slot freed")
	}
	if len(st.AdmissionQueue) != 0 || len(st.Areas[zoo.HabitatForest]) != 5 {
		t.Errorf("queue %d forest %d", len(st.AdmissionQueue), len(st.Areas[zoo.HabitatForest]))
	}
}

func TestAdmitResidentUnknownSpecies(t *testing.T) {
	now := t0
	c, _ := newController(t, catalog.Default(), nil, &now)
	_, err := c.AdmitResident(context.Background(), "g1", "ドードー", ResidentOptions{})
	if !errors.Is(err, zoo.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestAdmitResidentCatalogDownFallsBackToGrassland(t *testing.T) {
	now := t0
	c, _ := newController(t, downCatalog{}, nil, &now)
	a, err := c.AdmitResident(context.Background(), "g1", "メジロ", ResidentOptions{StayDays: 4})
	if err != nil {
		t.Fatal(err)
	}
	if a.Area != zoo.HabitatGrassland {
		t.Errorf("area = %s", a.Area)
	}
	if d := a.Bird.ScheduledDeparture.Sub(t0); d != 96*time.Hour {
		t.Errorf("stay = %s", d)
	}
}

func TestVisitorExpiry(t *testing.T) {
	now := t0
	c, store := newController(t, catalog.Default(), nil, &now)

	v, err := c.AdmitVisitor(context.Background(), "g1", "ツバメ", "u1", "Alice", VisitorOptions{Window: 3 * time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if v.InviterName != "Alice" {
		t.Errorf("inviter = %q", v.InviterName)
	}

	expired, _ := c.ExpireVisitors("g1", t0.Add(2*time.Hour+59*time.Minute))
	if len(expired) != 0 {
		t.Fatal("visitor expired early")
	}
	if _, ok := store.Get("g1").FindVisitor("ツバメ"); !ok {
		t.Fatal("visitor missing at t+2h59m")
	}

	expired, _ = c.ExpireVisitors("g1", t0.Add(3*time.Hour+time.Minute))
	if len(expired) != 1 {
		t.Fatalf("expired = %d", len(expired))
	}
	st := store.Get("g1")
	if _, ok := st.FindVisitor("ツバメ"); ok {
		t.Error("visitor present at t+3h01m")
	}
	if last := st.EventLog[len(st.EventLog)-1]; last.Type != "visitor_departure" {
		t.Errorf("last event = %s", last.Type)
	}
}

func TestRandomVisitWindowWithinBounds(t *testing.T) {
	now := t0
	c, _ := newController(t, catalog.Default(), nil, &now)
	v, err := c.AdmitVisitor(context.Background(), "g1", "スズメ", "u1", "", VisitorOptions{})
	if err != nil {
		t.Fatal(err)
	}
	w := v.ScheduledDeparture.Sub(v.EntryTime)
	if w < 2*time.Hour || w > 4*time.Hour {
		t.Errorf("window = %s", w)
	}
}

func TestIsDuplicatedAndForceRemove(t *testing.T) {
	now := t0
	led := ledger.NewMemoryLedger()
	c, store := newController(t, catalog.Default(), led, &now)
	ctx := context.Background()

	if _, err := c.AdmitResident(ctx, "g1", "スズメ", ResidentOptions{}); err != nil {
		t.Fatal(err)
	}
	rep, err := c.IsDuplicated(ctx, "スズメ", "g1")
	if err != nil || rep.Duplicated {
		t.Fatalf("rep = %+v err = %v", rep, err)
	}

	led.SetNest(ctx, "g1", "スズメ", "alice")
	rep, _ = c.IsDuplicated(ctx, "スズメ", "g1")
	if !rep.Duplicated || rep.NestOwner != "alice" || len(rep.Locations) != 1 {
		t.Fatalf("rep = %+v", rep)
	}

	n, err := c.ForceRemove(ctx, "スズメ", "g1")
	if err != nil || n != 1 {
		t.Fatalf("n = %d err = %v", n, err)
	}
	if _, ok := store.Get("g1").FindResident("スズメ"); ok {
		t.Error("bird still resident")
	}
	if _, ok, _ := led.NestOwner(ctx, "g1", "スズメ"); !ok {
		t.Error("force remove must not touch the nest")
	}

	if _, err := c.ForceRemove(ctx, "スズメ", "g1"); !errors.Is(err, zoo.ErrNotFound) {
		t.Errorf("second remove err = %v", err)
	}
}

func TestStayBoundsNeverInvert(t *testing.T) {
	now := t0
	clock := func() time.Time { return now }
	store := zoo.NewStore(5, clock, zap.NewNop())
	c := NewController(store, catalog.Default(), nil, Options{
		MinStayDays: 6,
		MinVisit:    5 * time.Hour,
		Now:         clock,
	}, nil, zap.NewNop())

	got, err := c.AdmitResident(context.Background(), "g1", "メジロ", ResidentOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if d := got.Bird.ScheduledDeparture.Sub(got.Bird.EntryTime); d != 6*24*time.Hour {
		t.Errorf("stay = %s, want the 6 day minimum", d)
	}
	v, err := c.AdmitVisitor(context.Background(), "g1", "ツバメ", "u1", "Alice", VisitorOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if d := v.ScheduledDeparture.Sub(v.EntryTime); d != 5*time.Hour {
		t.Errorf("visit = %s, want the 5h minimum", d)
	}
}
