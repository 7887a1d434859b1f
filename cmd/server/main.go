package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relationd/internal/events"
	"relationd/internal/graph"
	graphhandler "relationd/internal/graph/handler"
	graphmetrics "relationd/internal/graph/metrics"
	"relationd/internal/graph/service"
	memorystore "relationd/internal/graph/store/memory"
	postgresstore "relationd/internal/graph/store/postgres"
	"relationd/internal/platform/config"
	"relationd/internal/platform/httpserver"
	"relationd/internal/platform/logger"
	"relationd/internal/platform/middleware"
	platformredis "relationd/internal/platform/redis"
	"relationd/internal/upstream"
	"relationd/internal/upstream/keybase"
	"relationd/internal/upstream/sybil"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx := context.Background()

	var store graph.Store
	if cfg.PostgresDSN != "" {
		pg, err := postgresstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.Error("migrate graph schema", "error", err)
			os.Exit(1)
		}
		store = pg
	} else {
		log.Warn("no postgres DSN configured, using in-memory store")
		store = memorystore.New()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient, err := events.NewClient(cfg.KafkaBrokers)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()
		publisher = events.New(kafkaClient, cfg.KafkaTopic, log)
	}

	registry := upstream.NewRegistry()
	registry.Register(graph.PlatformKeybase, keybase.New(store, cfg.KeybaseURL, nil))
	if cfg.SybilListURL != "" {
		registry.Register(graph.PlatformEthereum, sybil.New(store, cfg.SybilListURL, nil))
	}

	metrics := graphmetrics.New()
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics),
		service.WithPublisher(publisher),
		service.WithLockTTL(cfg.LockTTL),
	}
	if redisClient != nil {
		opts = append(opts,
			service.WithLocker(redisClient),
			service.WithCooldown(redisClient, cfg.FetchCooldown),
		)
	}
	svc := service.New(store, registry, opts...)
	handler := graphhandler.New(svc, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	handler.RegisterQueries(router)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(cfg.JWTSigningKey))
		handler.RegisterFetch(r)
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting relationd", "addr", cfg.Addr, "platforms", registry.Platforms())

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
