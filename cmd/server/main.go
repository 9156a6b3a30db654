package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/alerts"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/api"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/cache"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/config"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/gateway"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/infrastructure/postgres"
	redisinfra "github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/infrastructure/redis"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/ingest"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/pipeline"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/publish"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/queue"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/record"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Ingest.Secret == "" {
		logger.Error("INGEST_SECRET is required; unsigned notifications are always rejected")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Postgres, with connection retries while the database comes up.
	pool, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Cache: redis when reachable, in-process fallback otherwise. The
	// pipeline treats the cache as an optimization either way.
	var store cache.Store
	redisClient, err := redisinfra.NewClient(ctx, redisinfra.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("redis unreachable, using in-process cache", "error", err)
		mem := cache.NewMemory(time.Minute)
		defer mem.Close()
		store = mem
	} else {
		defer redisClient.Close()
		store = cache.NewRedis(redisClient, logger)
	}

	// Store of record.
	txManager := postgres.NewTxManager(pool)
	recorder := record.NewPostgres(
		txManager,
		postgres.NewStockRepository(pool),
		postgres.NewRequisitionRepository(pool),
		postgres.NewFacilityRepository(pool),
	)

	// Pipeline.
	q := queue.New()
	gate := ingest.NewGate(cfg.Ingest.Secret, q, logger)
	publisher := publish.NewPublisher(store, logger)
	engine := alerts.NewEngine(store, cfg.Pipeline.AlertTTL, logger)
	processor := pipeline.New(q, recorder, store, publisher, engine, cfg.Pipeline.TickInterval, logger)
	go processor.Run(ctx)

	// Broadcast gateway.
	hub := gateway.NewHub(store, logger)
	hub.Start()
	defer hub.Stop()

	handlers := api.NewHandlers(gate)
	router := api.NewRouter(handlers, gateway.ServeWS(hub, logger))

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exiting")
}

func connectPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pool *pgxpool.Pool, err error) {
	for i := 0; i < 5; i++ {
		pool, err = postgres.NewClient(ctx, postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
		})
		if err == nil {
			return pool, nil
		}
		logger.Warn("postgres connect failed, retrying in 2s", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	return nil, err
}
