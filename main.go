package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"libchat/internal/api"
	"libchat/internal/botlog"
	"libchat/internal/catalog"
	"libchat/internal/config"
	"libchat/internal/directory"
	"libchat/internal/errtrack"
	"libchat/internal/intent"
	"libchat/internal/logger"
	"libchat/internal/metrics"
	redisclient "libchat/internal/redis"
	"libchat/internal/router"
	"libchat/internal/seed"
	"libchat/internal/storage"
	"libchat/internal/support"
)

func main() {
	cfg, err := config.Load(os.Getenv("LIBCHAT_CONFIG"))
	if err != nil {
		logger.New("info").Fatal("load config", "error", err)
	}
	log := logger.New(cfg.BasicConfig.LogLevel)

	if err := errtrack.Initialize(errtrack.Config{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		SampleRate:  cfg.Sentry.SampleRate,
	}); err != nil {
		log.WithError(err).Warn("sentry disabled")
	}
	defer errtrack.Flush(2 * time.Second)

	dbType := config.DatabaseDriver()
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatal("open database", "driver", dbType, "error", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatal("migrate database", "error", err)
	}
	log.Info("database ready", "driver", dbType)

	var cache *redisclient.Client
	if cfg.Redis.Enabled {
		cache, err = redisclient.NewRedisClient(cfg)
		if err != nil {
			log.Fatal("connect redis", "error", err)
		}
		defer cache.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := directory.NewService(db, cache, log, m)
	bookSource := catalog.NewSQLSource(db)
	if path := cfg.BasicConfig.SeedFile; path != "" {
		f, err := seed.Load(path)
		if err != nil {
			log.Fatal("load seed", "error", err)
		}
		if _, err := seed.Apply(ctx, f, users, bookSource, log); err != nil {
			log.Fatal("apply seed", "error", err)
		}
	}
	books := catalog.NewLookup(bookSource, log)

	provider, err := intent.SelectProvider(ctx, cfg.Providers, cfg.ProviderOrder)
	if err != nil {
		if !errors.Is(err, intent.ErrNoProvider) {
			log.Fatal("init intent provider", "error", err)
		}
		log.Warn("no language model configured, every message falls back to a clarifying reply")
	}
	classifier := intent.NewClassifier(provider, cfg.ProviderTimeout(), log, m)
	log.Info("intent classifier ready", "provider", classifier.ProviderName())

	var store botlog.Store = botlog.NewMemoryStore()
	if cfg.BasicConfig.BotLogBackend == config.BotLogRedis {
		if cache == nil {
			log.Fatal("bot log backend redis requires redis.enabled")
		}
		rs, err := botlog.NewRedisStore(cache)
		if err != nil {
			log.Fatal("init redis bot log", "error", err)
		}
		store = rs
	}

	manager := support.NewManager(support.NewSQLStore(db), users, log, m)
	rt := router.New(classifier, books, store, log, m)

	handler := api.NewHandler(rt, store, manager, api.PollHints{
		MessageSeconds: cfg.BasicConfig.MessagePollSeconds,
		SessionSeconds: cfg.BasicConfig.SessionPollSeconds,
	}, api.ReadinessCheck(db, cache), log)

	if cfg.BasicConfig.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := api.NewEngine(handler, log, m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
