package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/cache"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/metrics"
)

// Notice announces that the value behind a cache key changed. It exists
// only on the pub/sub channel and is never persisted; a subscriber that
// missed one reconciles from store state on reconnect.
type Notice struct {
	Key string    `json:"key"`
	At  time.Time `json:"at"`
}

// Publisher is a thin wrapper over the cache's pub/sub publish. No
// buffering, no delivery guarantee.
type Publisher struct {
	store cache.Store
	log   *slog.Logger
}

func NewPublisher(store cache.Store, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{store: store, log: log}
}

func (p *Publisher) Publish(ctx context.Context, topic, key string) {
	payload, err := json.Marshal(Notice{Key: key, At: time.Now().UTC()})
	if err != nil {
		p.log.Error("marshal invalidation notice", "key", key, "error", err)
		return
	}

	p.store.Publish(ctx, topic, payload)
	metrics.NoticesPublished.WithLabelValues(topic).Inc()
}
