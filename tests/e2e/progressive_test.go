//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nidhogg/bird-zoo/internal/admission"
	"github.com/nidhogg/bird-zoo/internal/bus"
	"github.com/nidhogg/bird-zoo/internal/catalog"
	"github.com/nidhogg/bird-zoo/internal/command"
	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/events"
	"github.com/nidhogg/bird-zoo/internal/feeding"
	"github.com/nidhogg/bird-zoo/internal/gateway"
	"github.com/nidhogg/bird-zoo/internal/ledger"
	"github.com/nidhogg/bird-zoo/internal/persistence"
	"github.com/nidhogg/bird-zoo/internal/router"
	pgstore "github.com/nidhogg/bird-zoo/internal/store"
	"github.com/nidhogg/bird-zoo/internal/world"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	testLogger, _ = zap.NewDevelopment()

	pgDSN, pgCleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres: %v\n", err)
		os.Exit(1)
	}
	testPGDSN = pgDSN

	redisURL, redisCleanup, err := startRedis(ctx)
	if err != nil {
		pgCleanup()
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = redisURL

	code := m.Run()
	redisCleanup()
	pgCleanup()
	os.Exit(code)
}

func dialRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb, err := bus.Dial(context.Background(), testRedisURL)
	if err != nil {
		t.Fatalf("dial redis: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestProgressiveFlow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 20, 14, 0, 0, 0, environment.JST)
	clock := func() time.Time { return now }

	t.Run("L1_Postgres", func(t *testing.T) {
		ps, err := pgstore.New(ctx, testPGDSN, testLogger)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		defer ps.Close()
		// Migrations are re-runnable.
		for i := 0; i < 2; i++ {
			if err := ps.Migrate(ctx); err != nil {
				t.Fatalf("migrate #%d: %v", i+1, err)
			}
		}

		t.Run("MissingGuild", func(t *testing.T) {
			st, err := ps.Load(ctx, "nobody")
			if err != nil || st != nil {
				t.Fatalf("Load(nobody) = %v, %v", st, err)
			}
		})

		t.Run("PersisterRoundTrip", func(t *testing.T) {
			src := zoo.NewStore(5, clock, testLogger)
			p := persistence.NewPersister(ps, src, 5*time.Second, nil, testLogger)
			adm := admission.NewController(src, catalog.Default(), nil, admission.Options{Now: clock}, nil, testLogger)
			for _, sp := range []string{"メジロ", "カワセミ", "ヒバリ"} {
				if _, err := adm.AdmitResident(ctx, "pg-guild", sp, admission.ResidentOptions{StayDays: 3}); err != nil {
					t.Fatalf("admit %s: %v", sp, err)
				}
			}
			if err := p.Flush(ctx); err != nil {
				t.Fatalf("flush: %v", err)
			}

			dst := zoo.NewStore(5, clock, testLogger)
			if n := persistence.NewPersister(ps, dst, 5*time.Second, nil, testLogger).RestoreAll(ctx); n < 1 {
				t.Fatalf("restored %d guilds", n)
			}
			got := dst.Get("pg-guild")
			if len(got.Residents()) != 3 {
				t.Fatalf("restored %d residents, want 3", len(got.Residents()))
			}
			if b, ok := got.FindResident("カワセミ"); !ok || b.Area != zoo.HabitatWaterside || !b.EntryTime.Equal(now) {
				t.Errorf("restored kingfisher = %+v", b)
			}
			if len(got.EventLog) != 3 {
				t.Errorf("event log = %d entries", len(got.EventLog))
			}
		})
	})

	t.Run("L2_Redis", func(t *testing.T) {
		rdb := dialRedis(t)

		t.Run("Ledger", func(t *testing.T) {
			led := ledger.NewRedisLedger(rdb, testLogger)
			led.AddAffinity(ctx, "g1", "メジロ", "alice", 1)
			led.AddAffinity(ctx, "g1", "メジロ", "bob", 2)
			led.AddAffinity(ctx, "g1", "メジロ", "alice", 3)
			top, ok, err := led.TopSupporter(ctx, "g1", "メジロ")
			if err != nil || !ok || top != "alice" {
				t.Errorf("TopSupporter = %q, %v, %v", top, ok, err)
			}
			if _, ok, _ := led.TopSupporter(ctx, "g1", "ツバメ"); ok {
				t.Error("supporter for a bird nobody fed")
			}

			if err := led.SetNest(ctx, "g1", "メジロ", "bob"); err != nil {
				t.Fatalf("SetNest: %v", err)
			}
			owner, ok, _ := led.NestOwner(ctx, "g1", "メジロ")
			if !ok || owner != "bob" {
				t.Errorf("NestOwner = %q, %v", owner, ok)
			}
			nests, _ := led.Nests(ctx, "g1")
			if len(nests) != 1 {
				t.Errorf("nests = %v", nests)
			}
			led.ClearNest(ctx, "g1", "メジロ")
			if _, ok, _ := led.NestOwner(ctx, "g1", "メジロ"); ok {
				t.Error("nest survived ClearNest")
			}
		})

		t.Run("StreamSink", func(t *testing.T) {
			sink := bus.NewStreamSink(rdb, 3, testLogger)
			for i := 0; i < 5; i++ {
				ev := zoo.Event{ID: fmt.Sprintf("e%d", i), Type: "time_slot", Content: fmt.Sprintf("event %d", i), Timestamp: now}
				if err := sink.Publish(ctx, "stream-guild", ev); err != nil {
					t.Fatalf("publish: %v", err)
				}
			}
			recent, err := sink.Recent(ctx, "stream-guild", 2)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if len(recent) != 2 || recent[0].ID != "e4" || recent[1].ID != "e3" {
				t.Errorf("recent = %+v", recent)
			}

			subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			ch := sink.Subscribe(subCtx, "stream-guild")
			live := zoo.Event{ID: "live", Type: "flyover", Content: "ツバメの群れが空を横切っていきました", Timestamp: now}
			ticker := time.NewTicker(200 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case ev, ok := <-ch:
					if !ok {
						t.Fatal("subscription closed before delivery")
					}
					if ev.ID == "live" {
						return
					}
				case <-ticker.C:
					// The subscription starts at "$"; republish until the reader is attached.
					sink.Publish(ctx, "stream-guild", live)
				}
			}
		})
	})

	t.Run("L3_Gateway", func(t *testing.T) {
		rdb := dialRedis(t)
		cat := catalog.Default()
		led := ledger.NewRedisLedger(rdb, testLogger)
		store := zoo.NewStore(5, clock, testLogger)
		adm := admission.NewController(store, cat, led, admission.Options{Now: clock}, nil, testLogger)
		feed := feeding.NewService(store, cat, led, feeding.Options{Now: clock}, nil, testLogger)
		env := environment.NewProvider(nil, 0, clock, testLogger)

		capture := &CaptureAdapter{}
		gw := gateway.NewGateway(testLogger)
		stream := bus.NewStreamSink(rdb, 100, testLogger)
		bc := gateway.NewBroadcaster(time.Second, 50, testLogger)
		bc.AddSink("redis", stream)

		commands := command.NewRegistry()
		command.RegisterBuiltins(commands, gw)
		command.RegisterZooCommands(commands, &command.ZooServices{
			Store: store, Admission: adm, Feeding: feed, Env: env, Species: cat, Publisher: bc,
		})
		msgRouter := router.New(gw, commands, 0, testLogger)

		// SetHandler BEFORE Register so the adapter forwards to the router.
		gw.SetHandler(msgRouter.Handle)
		gw.Register(capture)
		for name, s := range gw.Sinks() {
			bc.AddSink(name, s)
		}

		capture.Inject(&gateway.InboundMessage{GuildID: "l3", ChannelID: "c1", UserID: "u1", UserName: "alice", Content: "/admit メジロ 2"})
		sent := capture.Sent()
		if len(sent) != 1 || !strings.Contains(sent[0].Content, "森林エリア") {
			t.Fatalf("admit replies = %+v", sent)
		}

		capture.Inject(&gateway.InboundMessage{GuildID: "l3", ChannelID: "c1", UserID: "u1", UserName: "alice", Content: "/feed メジロ 花の蜜"})
		if top, ok, _ := led.TopSupporter(ctx, "l3", "メジロ"); !ok || top != "u1" {
			t.Errorf("affinity not recorded: %q %v", top, ok)
		}

		now = now.Add(48 * time.Hour)
		sched := world.NewPopulationScheduler(store, adm, feed, env, events.DefaultRegistry(0.15),
			events.NewPopulationBuilder(cat, led, 0, testLogger), bc, nil, world.SchedulerOptions{}, nil, testLogger)
		rep := sched.Tick(ctx, now)
		if rep.Departures != 1 {
			t.Errorf("tick report = %+v", rep)
		}

		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		bc.Wait(waitCtx)

		var types []string
		for _, ev := range capture.Published() {
			types = append(types, ev.Type)
		}
		joined := strings.Join(types, ",")
		// Sinks are fanned out concurrently, so only membership is stable.
		if !strings.Contains(joined, "arrival") || !strings.Contains(joined, "departure") {
			t.Errorf("narration = %v", types)
		}

		recent, err := stream.Recent(ctx, "l3", 10)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(recent) != len(types) {
			t.Errorf("stream holds %d events, adapter saw %d", len(recent), len(types))
		}
	})
}
