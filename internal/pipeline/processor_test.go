package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/alerts"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/cache"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/gateway"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/ingest"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/pipeline"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/publish"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/queue"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/record"
)

const secret = "test-secret"

type rig struct {
	q     *queue.Queue
	gate  *ingest.Gate
	store *cache.Memory
	proc  *pipeline.Processor
}

func newRig(t *testing.T, recorder record.Recorder) *rig {
	t.Helper()

	store := cache.NewMemory(0)
	t.Cleanup(store.Close)

	q := queue.New()
	publisher := publish.NewPublisher(store, nil)
	engine := alerts.NewEngine(store, time.Hour, nil)

	return &rig{
		q:     q,
		gate:  ingest.NewGate(secret, q, nil),
		store: store,
		proc:  pipeline.New(q, recorder, store, publisher, engine, time.Second, nil),
	}
}

func (r *rig) ingest(t *testing.T, body string) {
	t.Helper()
	if _, err := r.gate.Accept([]byte(body), ingest.Sign(secret, []byte(body))); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
}

// countNotices subscribes to a topic and counts notices per key.
func (r *rig) countNotices(topic string) map[string]int {
	counts := map[string]int{}
	r.store.Subscribe(topic, func(_ string, payload []byte) {
		var n publish.Notice
		if json.Unmarshal(payload, &n) == nil {
			counts[n.Key]++
		}
	})
	return counts
}

func okRecorder() record.Recorder {
	return record.Func(func(context.Context, string, json.RawMessage) error { return nil })
}

func TestWriteBeforeInvalidate(t *testing.T) {
	// A failing store-of-record write must leave the cache untouched and
	// publish nothing.
	boom := errors.New("db down")
	r := newRig(t, record.Func(func(context.Context, string, json.RawMessage) error { return boom }))
	ctx := context.Background()

	r.store.Set(ctx, "stock:facility:fac-1", "cached", time.Hour)
	notices := r.countNotices(cache.TopicStock)

	r.ingest(t, `{"kind":"stock.update","facilityId":"fac-1","productId":"opv","quantity":3}`)
	r.proc.Tick(ctx)

	if _, ok := r.store.Get(ctx, "stock:facility:fac-1"); !ok {
		t.Fatal("cache must not be invalidated when the write failed")
	}
	if len(notices) != 0 {
		t.Fatalf("no notice may be published before the write is durable, got %v", notices)
	}

	if r.q.Len() != 1 {
		t.Fatal("failed event must remain queued")
	}
	ev := r.q.Snapshot()[0]
	if ev.Attempts != 1 {
		t.Fatalf("attempts must increment by exactly 1 per tick, got %d", ev.Attempts)
	}
	if ev.LastError == "" {
		t.Fatal("the failure must be recorded on the event")
	}

	r.proc.Tick(ctx)
	if got := r.q.Snapshot()[0].Attempts; got != 2 {
		t.Fatalf("second tick must bring attempts to 2, got %d", got)
	}
}

func TestSuccessfulEventInvalidatesAndPublishes(t *testing.T) {
	r := newRig(t, okRecorder())
	ctx := context.Background()

	r.store.Set(ctx, "stock:facility:fac-1", "stale", time.Hour)
	r.store.Set(ctx, "stock:lga:ikeja", "stale", time.Hour)
	r.store.Set(ctx, "map:nodes", "stale", time.Hour)
	notices := r.countNotices(cache.TopicStock)

	r.ingest(t, `{"kind":"stock.update","facilityId":"fac-1","productId":"opv","quantity":3,"lga":"ikeja"}`)
	r.proc.Tick(ctx)

	if r.q.Len() != 0 {
		t.Fatal("successfully processed event must be removed from the queue")
	}
	for _, key := range []string{"stock:facility:fac-1", "stock:lga:ikeja", "map:nodes"} {
		if _, ok := r.store.Get(ctx, key); ok {
			t.Fatalf("stale key %s must be invalidated", key)
		}
	}
	if notices["stock:facility:fac-1"] != 1 {
		t.Fatalf("expected one notice for the facility key, got %v", notices)
	}
}

func TestUnknownKindIsDroppedNotRetried(t *testing.T) {
	called := false
	r := newRig(t, record.Func(func(context.Context, string, json.RawMessage) error {
		called = true
		return nil
	}))

	r.ingest(t, `{"kind":"shipment.teleported","facilityId":"fac-1"}`)
	r.proc.Tick(context.Background())

	if r.q.Len() != 0 {
		t.Fatal("unknown kind must be dropped, not retried")
	}
	if called {
		t.Fatal("unknown kind must never reach the store of record")
	}
}

func TestFailureIsolatedPerEvent(t *testing.T) {
	r := newRig(t, record.Func(func(_ context.Context, _ string, payload json.RawMessage) error {
		if len(payload) > 0 && json.Valid(payload) {
			var p struct {
				FacilityID string `json:"facilityId"`
			}
			json.Unmarshal(payload, &p)
			if p.FacilityID == "fac-bad" {
				return fmt.Errorf("write for %s failed", p.FacilityID)
			}
		}
		return nil
	}))
	ctx := context.Background()

	r.ingest(t, `{"kind":"stock.update","facilityId":"fac-bad","productId":"opv","quantity":1}`)
	r.ingest(t, `{"kind":"stock.update","facilityId":"fac-good","productId":"opv","quantity":1}`)
	r.proc.Tick(ctx)

	if r.q.Len() != 1 {
		t.Fatalf("only the failing event may remain queued, got %d", r.q.Len())
	}
	if r.q.Snapshot()[0].Attempts != 1 {
		t.Fatal("the surviving event must be the failed one")
	}
}

type fakeConn struct {
	id string

	mu   sync.Mutex
	msgs []gateway.Message
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg gateway.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for _, m := range c.msgs {
		out = append(out, m.Event)
	}
	return out
}

func countOf(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}

func TestStockoutScenarioEndToEnd(t *testing.T) {
	// Ingest a signed stockout; after one tick the facility's cache key is
	// gone, exactly one alert exists, and the facility room heard about
	// both. Re-ingesting produces a second invalidation broadcast but no
	// second alert.
	r := newRig(t, okRecorder())
	ctx := context.Background()

	hub := gateway.NewHub(r.store, nil)
	hub.Start()
	defer hub.Stop()

	watcher := &fakeConn{id: "watcher"}
	bystander := &fakeConn{id: "bystander"}
	hub.OnConnect(watcher)
	hub.OnConnect(bystander)
	hub.JoinRoom(watcher, "facility:fac-1")
	hub.JoinRoom(bystander, "facility:fac-2")

	r.store.Set(ctx, "stock:facility:fac-1", "stale", time.Hour)

	body := `{"kind":"stock.stockout","facilityId":"fac-1","productId":"prod-1","quantity":0}`
	r.ingest(t, body)
	r.proc.Tick(ctx)

	if _, ok := r.store.Get(ctx, "stock:facility:fac-1"); ok {
		t.Fatal("facility cache key must be absent after the tick")
	}
	if _, ok := r.store.Get(ctx, "alert:stockout:fac-1:prod-1"); !ok {
		t.Fatal("exactly one alert with dedupKey stockout:fac-1:prod-1 must exist")
	}

	got := watcher.events()
	if countOf(got, gateway.EventStockUpdate) != 1 {
		t.Fatalf("watcher must receive one stock:update, got %v", got)
	}
	if countOf(got, gateway.EventAlertNew) != 1 {
		t.Fatalf("watcher must receive one alert:new, got %v", got)
	}
	if len(bystander.events()) != 0 {
		t.Fatalf("a client in a different room must receive nothing, got %v", bystander.events())
	}

	// Same event again, inside the dedup window.
	r.ingest(t, body)
	r.proc.Tick(ctx)

	got = watcher.events()
	if countOf(got, gateway.EventStockUpdate) != 2 {
		t.Fatalf("re-ingest must trigger a second invalidation broadcast, got %v", got)
	}
	if countOf(got, gateway.EventAlertNew) != 1 {
		t.Fatalf("re-ingest within the window must not produce a second alert, got %v", got)
	}
}
