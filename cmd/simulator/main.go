// Simulator produces signed synthetic change notifications to the Kafka
// topic, standing in for the upstream system of record during development.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/config"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/domain/event"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/infrastructure/kafka"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/ingest"
)

type stockNotification struct {
	Kind string `json:"kind"`
	event.StockChange
}

var (
	facilities = []struct{ id, lga, state string }{
		{"fac-ikeja-01", "ikeja", "lagos"},
		{"fac-surulere-02", "surulere", "lagos"},
		{"fac-kano-01", "kano-municipal", "kano"},
		{"fac-gwagwalada-01", "gwagwalada", "fct"},
	}
	products = []string{"bcg", "opv", "penta", "measles", "yellow-fever"}
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	producer := kafka.NewProducer(kafka.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	defer producer.Close()

	logger.Info("simulator started", "topic", producer.GetTopic())

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("simulator exiting")
			return
		case <-ticker.C:
			if err := emit(ctx, producer, cfg.Ingest.Secret, logger); err != nil {
				logger.Error("failed to emit notification", "error", err)
			}
		}
	}
}

func emit(ctx context.Context, producer *kafka.Producer, secret string, logger *slog.Logger) error {
	fac := facilities[rand.Intn(len(facilities))]
	note := stockNotification{
		Kind: event.KindStockUpdate,
		StockChange: event.StockChange{
			FacilityID: fac.id,
			ProductID:  products[rand.Intn(len(products))],
			Quantity:   rand.Intn(500),
			LGA:        fac.lga,
			State:      fac.state,
		},
	}

	// Roughly one in ten facilities runs dry.
	if rand.Intn(10) == 0 {
		note.Kind = event.KindStockout
		note.Quantity = 0
	}

	body, err := json.Marshal(note)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = producer.SendMessage(sendCtx, []byte(note.FacilityID), body, kafkago.Header{
		Key:   "signature",
		Value: []byte(ingest.Sign(secret, body)),
	})
	if err != nil {
		return err
	}

	logger.Info("notification sent", "kind", note.Kind, "facility", note.FacilityID, "product", note.ProductID)
	return nil
}
