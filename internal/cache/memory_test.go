package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/cache"
)

func newMemory(t *testing.T) *cache.Memory {
	t.Helper()
	m := cache.NewMemory(10 * time.Millisecond)
	t.Cleanup(m.Close)
	return m
}

func TestSetGetRoundTrip(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	m.Set(ctx, "stock:facility:fac-1", `{"quantity":12}`, time.Minute)

	got, ok := m.Get(ctx, "stock:facility:fac-1")
	if !ok {
		t.Fatal("expected key to be present before TTL expiry")
	}
	if got != `{"quantity":12}` {
		t.Fatalf("got %q, want the exact value written", got)
	}
}

func TestGetAbsentKey(t *testing.T) {
	m := newMemory(t)

	if _, ok := m.Get(context.Background(), "nope"); ok {
		t.Fatal("absent key must report absent, not error")
	}
}

func TestGetAfterExpiry(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	m.Set(ctx, "stock:facility:fac-1", "v", 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if _, ok := m.Get(ctx, "stock:facility:fac-1"); ok {
		t.Fatal("expired key must report absent")
	}
}

func TestZeroTTLMeansNoExpiry(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	m.Set(ctx, "map:nodes", "v", 0)
	time.Sleep(40 * time.Millisecond) // across at least one reaper sweep

	if _, ok := m.Get(ctx, "map:nodes"); !ok {
		t.Fatal("ttl <= 0 must mean no expiry")
	}
}

func TestSetNX(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	if !m.SetNX(ctx, "alert:stockout:f:p", "a", time.Minute) {
		t.Fatal("first SetNX must succeed")
	}
	if m.SetNX(ctx, "alert:stockout:f:p", "b", time.Minute) {
		t.Fatal("second SetNX on a live key must fail")
	}

	got, _ := m.Get(ctx, "alert:stockout:f:p")
	if got != "a" {
		t.Fatalf("losing SetNX must not overwrite, got %q", got)
	}

	m.Delete(ctx, "alert:stockout:f:p")
	if !m.SetNX(ctx, "alert:stockout:f:p", "c", time.Minute) {
		t.Fatal("SetNX after delete must succeed")
	}
}

func TestDeleteByPattern(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	m.Set(ctx, "stock:facility:a", "1", time.Minute)
	m.Set(ctx, "stock:facility:b", "2", time.Minute)
	m.Set(ctx, "facility:a", "3", time.Minute)

	m.DeleteByPattern(ctx, "stock:facility:*")

	if _, ok := m.Get(ctx, "stock:facility:a"); ok {
		t.Fatal("matching key must be removed")
	}
	if _, ok := m.Get(ctx, "stock:facility:b"); ok {
		t.Fatal("matching key must be removed")
	}
	if _, ok := m.Get(ctx, "facility:a"); !ok {
		t.Fatal("non-matching key must survive")
	}
}

func TestReaperSweepsExpiredEntries(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	m.Set(ctx, "a", "1", 15*time.Millisecond)
	m.Set(ctx, "b", "2", time.Minute)

	time.Sleep(60 * time.Millisecond)

	if got := m.Len(); got != 1 {
		t.Fatalf("expected 1 live entry after sweep, got %d", got)
	}
}

func TestPubSub(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	var got []string
	unsub := m.Subscribe("stock", func(topic string, payload []byte) {
		got = append(got, topic+"/"+string(payload))
	})

	m.Publish(ctx, "stock", []byte("one"))
	m.Publish(ctx, "requisition", []byte("other topic"))

	if len(got) != 1 || got[0] != "stock/one" {
		t.Fatalf("expected exactly the subscribed topic's message, got %v", got)
	}

	unsub()
	m.Publish(ctx, "stock", []byte("two"))

	if len(got) != 1 {
		t.Fatalf("unsubscribed handler must not receive, got %v", got)
	}
}
