package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/alerts"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/cache"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/domain/event"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/metrics"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/publish"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/queue"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/record"
)

type handlerFunc func(ctx context.Context, ev *event.ChangeEvent) error

// Processor drains the queue on a fixed cadence. Events are processed
// strictly one at a time, in enqueue order; that single-flight rule is what
// upholds the pipeline's ordering contract: no invalidation notice for a
// key is observable before the write that produced it is durable.
type Processor struct {
	queue     *queue.Queue
	recorder  record.Recorder
	store     cache.Store
	publisher *publish.Publisher
	alerts    *alerts.Engine
	interval  time.Duration
	handlers  map[string]handlerFunc
	log       *slog.Logger
}

func New(
	q *queue.Queue,
	recorder record.Recorder,
	store cache.Store,
	publisher *publish.Publisher,
	engine *alerts.Engine,
	interval time.Duration,
	log *slog.Logger,
) *Processor {
	if log == nil {
		log = slog.Default()
	}

	p := &Processor{
		queue:     q,
		recorder:  recorder,
		store:     store,
		publisher: publisher,
		alerts:    engine,
		interval:  interval,
		log:       log,
	}

	p.handlers = map[string]handlerFunc{
		event.KindStockUpdate:       p.handleStockChange,
		event.KindStockout:          p.handleStockChange,
		event.KindRequisitionUpdate: p.handleRequisitionChange,
		event.KindFacilityUpdate:    p.handleFacilityChange,
	}

	return p
}

func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("event processor started", "tick_interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick processes every event queued at its start, sequentially. Events
// enqueued while a tick runs wait for the next one. Exported so tests can
// drive the processor without the ticker.
func (p *Processor) Tick(ctx context.Context) {
	for _, ev := range p.queue.Snapshot() {
		handler, ok := p.handlers[ev.Kind]
		if !ok {
			p.log.Warn("unknown event kind, dropping", "event_id", ev.ID, "kind", ev.Kind)
			metrics.EventsDropped.Inc()
			p.queue.Remove(ev.ID)
			continue
		}

		started := time.Now()
		if err := p.process(ctx, handler, ev); err != nil {
			ev.Attempts++
			ev.LastError = err.Error()
			metrics.EventRetries.Inc()
			p.log.Error("event processing failed, will retry",
				"event_id", ev.ID, "kind", ev.Kind, "attempts", ev.Attempts, "error", err)
			continue
		}

		metrics.ProcessingDuration.Observe(time.Since(started).Seconds())
		metrics.EventsProcessed.WithLabelValues(ev.Kind).Inc()
		p.queue.Remove(ev.ID)
		p.log.Info("event processed", "event_id", ev.ID, "kind", ev.Kind)
	}

	if oldest, ok := p.queue.OldestReceivedAt(); ok {
		metrics.OldestQueuedAge.Set(time.Since(oldest).Seconds())
	} else {
		metrics.OldestQueuedAge.Set(0)
	}
}

// process isolates one event's failure from the rest of the tick,
// converting a handler panic into a retryable error.
func (p *Processor) process(ctx context.Context, handler handlerFunc, ev *event.ChangeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(ctx, ev)
}
