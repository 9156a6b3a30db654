package queue

import (
	"sync"
	"time"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/domain/event"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/metrics"
)

// Queue is the owned collection of not-yet-applied change events. Producers
// (the ingestion gate, possibly several goroutines) append; a single
// processor drains. It deliberately lives inside one struct handed to its
// users rather than in package state, so the single-flight processing rule
// is auditable in one place.
type Queue struct {
	mu     sync.Mutex
	events []*event.ChangeEvent
}

func New() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(ev *event.ChangeEvent) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	depth := len(q.events)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
}

// Snapshot returns the queued events in enqueue order. The processor
// iterates a snapshot so events enqueued mid-tick wait for the next tick.
func (q *Queue) Snapshot() []*event.ChangeEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*event.ChangeEvent, len(q.events))
	copy(out, q.events)
	return out
}

// Remove deletes the event with the given id, preserving order of the rest.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	for i, ev := range q.events {
		if ev.ID == id {
			q.events = append(q.events[:i], q.events[i+1:]...)
			break
		}
	}
	depth := len(q.events)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// OldestReceivedAt reports when the head of the queue was accepted; false
// when the queue is empty. Exported as a gauge so a perpetually failing
// event is visible.
func (q *Queue) OldestReceivedAt() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return time.Time{}, false
	}
	return q.events[0].ReceivedAt, true
}
