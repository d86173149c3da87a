package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nidhogg/bird-zoo/internal/admission"
	"github.com/nidhogg/bird-zoo/internal/api"
	"github.com/nidhogg/bird-zoo/internal/bus"
	"github.com/nidhogg/bird-zoo/internal/catalog"
	"github.com/nidhogg/bird-zoo/internal/command"
	"github.com/nidhogg/bird-zoo/internal/config"
	"github.com/nidhogg/bird-zoo/internal/environment"
	"github.com/nidhogg/bird-zoo/internal/events"
	"github.com/nidhogg/bird-zoo/internal/feeding"
	"github.com/nidhogg/bird-zoo/internal/gateway"
	"github.com/nidhogg/bird-zoo/internal/ledger"
	"github.com/nidhogg/bird-zoo/internal/metrics"
	"github.com/nidhogg/bird-zoo/internal/persistence"
	msgrouter "github.com/nidhogg/bird-zoo/internal/router"
	pgstore "github.com/nidhogg/bird-zoo/internal/store"
	"github.com/nidhogg/bird-zoo/internal/weather"
	"github.com/nidhogg/bird-zoo/internal/world"
	"github.com/nidhogg/bird-zoo/internal/zoo"
)

func main() {
	config.LoadEnv()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/birdzoo.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting bird zoo...", zap.String("config", cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Species catalog
	var species *catalog.Table
	if cfg.Zoo.CatalogPath != "" {
		species, err = catalog.Load(cfg.Zoo.CatalogPath)
		if err != nil {
			logger.Fatal("failed to load species catalog", zap.String("path", cfg.Zoo.CatalogPath), zap.Error(err))
		}
	} else {
		species = catalog.Default()
	}

	// Services stamp birds with world time, the clock ticks run on.
	clock := world.NewWorldClock(cfg.Scheduler.TickInterval.Std(), cfg.Scheduler.Speed, time.Now, logger)

	// Zoo store and persistence
	zooStore := zoo.NewStore(cfg.Zoo.AreaCapacity, clock.Now, logger)
	codec, closeCodec := openCodec(ctx, cfg, logger)
	defer closeCodec()
	var persister *persistence.Persister
	if codec != nil {
		persister = persistence.NewPersister(codec, zooStore, cfg.Persistence.Timeout.Std(), m, logger)
		n := persister.RestoreAll(ctx)
		logger.Info("Zoo states restored", zap.Int("guilds", n))
		go persister.Run(ctx, cfg.Persistence.FlushInterval.Std())
	}

	// Redis: ledger and narration stream
	var (
		rdb *redis.Client
		led ledger.Ledger
	)
	if cfg.Database.Redis.URL != "" {
		rdb, err = bus.Dial(ctx, cfg.Database.Redis.URL)
		if err != nil {
			logger.Warn("Redis unavailable, using in-memory ledger", zap.Error(err))
		} else {
			defer rdb.Close()
			led = ledger.NewRedisLedger(rdb, logger)
		}
	}
	if led == nil {
		led = ledger.NewMemoryLedger()
	}

	// Environment
	var oracle weather.Oracle
	if c := weather.NewOpenWeatherClient(cfg.Weather.APIKey, cfg.Weather.Location, cfg.Weather.CacheTTL.Std(), logger); c != nil {
		oracle = c
	} else {
		logger.Info("No weather API key, running without weather")
	}
	env := environment.NewProvider(oracle, cfg.Zoo.UpstreamTimeout.Std(), clock.Now, logger)

	adm := admission.NewController(zooStore, species, led, admission.Options{
		UpstreamTimeout: cfg.Zoo.UpstreamTimeout.Std(),
		EventLogSize:    cfg.Zoo.EventLogSize,
		Now:             clock.Now,
	}, m, logger)
	feed := feeding.NewService(zooStore, species, led, feeding.Options{
		Cooldown:        cfg.Feeding.Cooldown.Std(),
		HungerThreshold: cfg.Feeding.HungerThreshold.Std(),
		UpstreamTimeout: cfg.Zoo.UpstreamTimeout.Std(),
		EventLogSize:    cfg.Zoo.EventLogSize,
		Now:             clock.Now,
	}, m, logger)

	// Gateway
	gw := gateway.NewGateway(logger)
	commands := command.NewRegistry()
	commands.SetAdmins(cfg.Admins)

	// Wire message router BEFORE registering adapters
	msgRouter := msgrouter.New(gw, commands, 0, logger)
	gw.SetHandler(msgRouter.Handle)

	restAdapter := gateway.NewRESTAdapter(0, logger)
	gw.Register(restAdapter)

	persona := gateway.DefaultPersona
	if p := cfg.Gateway.Discord.Persona; p.Name != "" {
		persona = gateway.Persona{Name: p.Name, IconURL: p.IconURL, Emoji: p.Emoji}
	}
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		discordAdapter := gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, persona, logger)
		for guildID, channelID := range cfg.Gateway.Discord.Channels {
			discordAdapter.SetNarrationChannel(guildID, channelID)
		}
		for guildID, url := range cfg.Gateway.Discord.Webhooks {
			discordAdapter.SetWebhook(guildID, url)
		}
		gw.Register(discordAdapter)
	}
	if sc := cfg.Gateway.Slack; sc.Enabled && sc.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(sc.BotToken, sc.AppToken, sc.GuildID, sc.ChannelID, persona, logger))
	}

	broadcaster := gateway.NewBroadcaster(cfg.Gateway.Broadcast.Timeout.Std(), cfg.Gateway.Broadcast.HistorySize, logger)
	for name, sink := range gw.Sinks() {
		broadcaster.AddSink(name, sink)
	}
	if rdb != nil {
		broadcaster.AddSink("redis", bus.NewStreamSink(rdb, cfg.Database.Redis.StreamMaxLen, logger))
	}

	command.RegisterBuiltins(commands, gw)
	command.RegisterZooCommands(commands, &command.ZooServices{
		Store:     zooStore,
		Admission: adm,
		Feeding:   feed,
		Env:       env,
		Species:   species,
		Publisher: broadcaster,
	})

	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// World simulation
	var flusher world.Flusher
	if persister != nil {
		flusher = persister
	}
	scheduler := world.NewPopulationScheduler(zooStore, adm, feed, env,
		events.DefaultRegistry(cfg.Scheduler.FlyoverChance),
		events.NewPopulationBuilder(species, led, cfg.Zoo.UpstreamTimeout.Std(), logger),
		broadcaster, flusher,
		world.SchedulerOptions{
			EventChance:  cfg.Scheduler.EventChance,
			Parallelism:  cfg.Scheduler.Parallelism,
			EventLogSize: cfg.Zoo.EventLogSize,
		}, m, logger)

	clock.AddListener(scheduler)
	clock.Start()
	logger.Info("World simulation started",
		zap.Duration("tick", cfg.Scheduler.TickInterval.Std()),
		zap.Int("guilds", len(zooStore.GuildIDs())))

	handler := api.NewHandler(api.Deps{
		Store:       zooStore,
		Admission:   adm,
		Feeding:     feed,
		Env:         env,
		Scheduler:   scheduler,
		Clock:       clock,
		Broadcaster: broadcaster,
		Gateway:     gw,
		RESTGateway: restAdapter,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Bird zoo listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down bird zoo...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	clock.Stop()
	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		logger.Warn("final flush incomplete", zap.Error(err))
	}
	broadcaster.Wait(shutdownCtx)
	gw.Close()
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openCodec picks the snapshot backend. A nil codec runs the zoo in memory.
func openCodec(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.Codec, func()) {
	noop := func() {}
	switch cfg.Persistence.Backend {
	case "file":
		if err := os.MkdirAll(cfg.Persistence.Dir, 0o755); err != nil {
			logger.Fatal("failed to create snapshot dir", zap.String("dir", cfg.Persistence.Dir), zap.Error(err))
		}
		logger.Info("Using file snapshots", zap.String("dir", cfg.Persistence.Dir), zap.Bool("compress", cfg.Persistence.Compress))
		return persistence.NewFileCodec(cfg.Persistence.Dir, cfg.Persistence.Compress), noop
	case "sqlite":
		c, err := persistence.OpenSQLite(cfg.Persistence.SQLitePath)
		if err != nil {
			logger.Fatal("failed to open sqlite", zap.String("path", cfg.Persistence.SQLitePath), zap.Error(err))
		}
		logger.Info("Using SQLite snapshots", zap.String("path", cfg.Persistence.SQLitePath))
		return c, func() { c.Close() }
	case "postgres":
		ps, err := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
		if err != nil {
			logger.Fatal("PostgreSQL unavailable", zap.Error(err))
		}
		if err := ps.Migrate(ctx); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		return ps, ps.Close
	default:
		logger.Warn("Persistence disabled, zoo state lives in memory only")
		return nil, noop
	}
}
