package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/alerts"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/cache"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/config"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/infrastructure/kafka"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/infrastructure/postgres"
	redisinfra "github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/infrastructure/redis"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/ingest"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/pipeline"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/publish"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/queue"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/record"
)

// signatureHeader is the Kafka message header carrying the HMAC of the
// message value, mirroring the X-Signature HTTP header.
const signatureHeader = "signature"

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

	// Metrics server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("consumer metrics listening on :9091")
		http.ListenAndServe(":9091", mux)
	}()

	pgPool, err := postgres.NewClient(ctx, postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
	})
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	// Invalidation notices must cross processes to reach the server's
	// gateway, so the consumer requires redis; the in-process cache would
	// publish into the void.
	redisClient, err := redisinfra.NewClient(ctx, redisinfra.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	store := cache.NewRedis(redisClient, logger)

	recorder := record.NewPostgres(
		postgres.NewTxManager(pgPool),
		postgres.NewStockRepository(pgPool),
		postgres.NewRequisitionRepository(pgPool),
		postgres.NewFacilityRepository(pgPool),
	)

	q := queue.New()
	gate := ingest.NewGate(cfg.Ingest.Secret, q, logger)
	publisher := publish.NewPublisher(store, logger)
	engine := alerts.NewEngine(store, cfg.Pipeline.AlertTTL, logger)
	processor := pipeline.New(q, recorder, store, publisher, engine, cfg.Pipeline.TickInterval, logger)
	go processor.Run(ctx)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	defer consumer.Close()

	logger.Info("notification consumer started", "topic", cfg.Kafka.Topic, "group_id", cfg.Kafka.GroupID)

	for {
		msg, err := consumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("failed to fetch message", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		// A rejection is an authentication failure, not a transient
		// error; retrying the same message cannot fix it, so it commits
		// either way. At-least-once redelivery of accepted messages is
		// absorbed downstream: repeat invalidations are harmless and
		// alerts deduplicate.
		if _, err := gate.Accept(msg.Value, kafka.Header(msg, signatureHeader)); err != nil {
			logger.Warn("notification not accepted", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}

		if err := consumer.CommitMessages(ctx, msg); err != nil {
			logger.Error("failed to commit kafka message", "error", err)
		}
	}
}
