package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/metrics"
)

// Redis is the primary Store, backed by a redis server with native TTL
// support (no in-process reaper needed). It tracks connection health: after
// an I/O failure every operation short-circuits until a probe interval has
// passed and a ping succeeds, so a dead server degrades to fast no-ops
// instead of a timeout per call.
type Redis struct {
	client        *redis.Client
	log           *slog.Logger
	probeInterval time.Duration

	mu      sync.Mutex
	down    bool
	retryAt time.Time
}

func NewRedis(client *redis.Client, log *slog.Logger) *Redis {
	if log == nil {
		log = slog.Default()
	}
	return &Redis{
		client:        client,
		log:           log,
		probeInterval: 5 * time.Second,
	}
}

// available reports whether the server is believed reachable, probing at
// most once per probe interval while down.
func (r *Redis) available(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.down {
		return true
	}
	if time.Now().Before(r.retryAt) {
		return false
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.retryAt = time.Now().Add(r.probeInterval)
		return false
	}

	r.down = false
	r.log.Info("cache connection recovered")
	return true
}

func (r *Redis) markDown(op string, err error) {
	metrics.CacheFailures.WithLabelValues(op).Inc()
	r.log.Warn("cache operation failed, degrading", "op", op, "error", err)

	r.mu.Lock()
	r.down = true
	r.retryAt = time.Now().Add(r.probeInterval)
	r.mu.Unlock()
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if !r.available(ctx) {
		return
	}
	if ttl < 0 {
		ttl = 0 // no expiry
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.markDown("set", err)
	}
}

func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) bool {
	if !r.available(ctx) {
		return false
	}
	if ttl < 0 {
		ttl = 0
	}
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		r.markDown("setnx", err)
		return false
	}
	return ok
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	if !r.available(ctx) {
		return "", false
	}
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.markDown("get", err)
		}
		return "", false
	}
	return val, true
}

func (r *Redis) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 || !r.available(ctx) {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.markDown("del", err)
	}
}

func (r *Redis) DeleteByPattern(ctx context.Context, pattern string) {
	if !r.available(ctx) {
		return
	}

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				r.markDown("del", err)
				return
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		r.markDown("scan", err)
		return
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			r.markDown("del", err)
		}
	}
}

func (r *Redis) Publish(ctx context.Context, topic string, payload []byte) {
	if !r.available(ctx) {
		return
	}
	if err := r.client.Publish(ctx, topic, payload).Err(); err != nil {
		r.markDown("publish", err)
	}
}

func (r *Redis) Subscribe(topic string, handler func(topic string, payload []byte)) func() {
	sub := r.client.Subscribe(context.Background(), topic)

	go func() {
		for msg := range sub.Channel() {
			handler(msg.Channel, []byte(msg.Payload))
		}
	}()

	return func() {
		if err := sub.Close(); err != nil {
			r.log.Warn("closing subscription", "topic", topic, "error", err)
		}
	}
}
