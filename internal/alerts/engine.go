package alerts

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/cache"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/domain/alert"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/metrics"
)

type Outcome int

const (
	Created Outcome = iota
	Deduplicated
)

func (o Outcome) String() string {
	if o == Created {
		return "created"
	}
	return "deduplicated"
}

// Engine derives domain alerts from processed events, using the cache as a
// deduplication ledger: for a given dedup key at most one alert is created
// per TTL window. There is no explicit resolve; the window lapsing is the
// only way a condition re-alerts.
type Engine struct {
	store cache.Store
	ttl   time.Duration
	log   *slog.Logger
}

func NewEngine(store cache.Store, ttl time.Duration, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, ttl: ttl, log: log}
}

// Raise creates an alert for (kind, subjectRef) unless one already exists
// within the TTL window. Idempotent: the deduplicated path performs no
// writes.
func (e *Engine) Raise(ctx context.Context, kind, subjectRef, detail string) Outcome {
	dedupKey := alert.DedupKey(kind, subjectRef)
	ledgerKey := cache.AlertKey(dedupKey)

	a := alert.Alert{
		DedupKey:   dedupKey,
		Kind:       kind,
		Severity:   severityFor(kind),
		SubjectRef: subjectRef,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}

	body, err := json.Marshal(a)
	if err != nil {
		e.log.Error("marshal alert", "dedup_key", dedupKey, "error", err)
		return Deduplicated
	}

	if e.store.SetNX(ctx, ledgerKey, string(body), e.ttl) {
		e.store.Set(ctx, cache.AlertLatestKey(subjectRef), string(body), e.ttl)
		metrics.AlertsCreated.WithLabelValues(kind).Inc()
		e.log.Info("alert created", "dedup_key", dedupKey, "severity", a.Severity)
		return Created
	}

	if _, exists := e.store.Get(ctx, ledgerKey); exists {
		metrics.AlertsDeduplicated.WithLabelValues(kind).Inc()
		return Deduplicated
	}

	// SetNX failed but no entry exists: the cache is unreachable, so the
	// ledger cannot dedup. Treat the condition as newly raised rather than
	// silently dropping it; the cache is never a source of truth.
	metrics.AlertsCreated.WithLabelValues(kind).Inc()
	e.log.Warn("alert raised without dedup ledger", "dedup_key", dedupKey)
	return Created
}

func severityFor(kind string) string {
	if kind == alert.KindStockout {
		return alert.SeverityCritical
	}
	return alert.SeverityWarning
}
