package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// entry is intentionally replaced wholesale on Set; there is no partial
// update. A zero expireAt means no TTL.
type entry struct {
	value     string
	writtenAt time.Time
	expireAt  time.Time
	version   uint64
}

// Memory is an in-process Store used by tests and as a degraded fallback
// when Redis is unreachable at boot. A reaper goroutine sweeps expired
// entries on a fixed interval; reads never wait on the sweep because
// expiry is also checked lazily on Get.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry

	subMu   sync.RWMutex
	subs    map[string]map[int]func(topic string, payload []byte)
	nextSub int

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemory(sweepInterval time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		subs:    make(map[string]map[int]func(string, []byte)),
		stop:    make(chan struct{}),
	}

	if sweepInterval > 0 {
		go m.reap(sweepInterval)
	}

	return m
}

func (m *Memory) reap(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for k, e := range m.entries {
				if !e.expireAt.IsZero() && now.After(e.expireAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, value, ttl)
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && m.alive(e) {
		return false
	}
	m.put(key, value, ttl)
	return true
}

// put assumes m.mu is held.
func (m *Memory) put(key, value string, ttl time.Duration) {
	now := time.Now()
	e := entry{
		value:     value,
		writtenAt: now,
		version:   m.entries[key].version + 1,
	}
	if ttl > 0 {
		e.expireAt = now.Add(ttl)
	}
	m.entries[key] = e
}

func (m *Memory) alive(e entry) bool {
	return e.expireAt.IsZero() || time.Now().Before(e.expireAt)
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !m.alive(e) {
		return "", false
	}
	return e.value, true
}

func (m *Memory) Delete(_ context.Context, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
}

func (m *Memory) DeleteByPattern(_ context.Context, pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if ok, err := path.Match(pattern, k); err == nil && ok {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) Publish(_ context.Context, topic string, payload []byte) {
	m.subMu.RLock()
	handlers := make([]func(string, []byte), 0, len(m.subs[topic]))
	for _, h := range m.subs[topic] {
		handlers = append(handlers, h)
	}
	m.subMu.RUnlock()

	// Dispatched synchronously; subscribers hand off to their own
	// goroutines if they need to do real work.
	for _, h := range handlers {
		h(topic, payload)
	}
}

func (m *Memory) Subscribe(topic string, handler func(topic string, payload []byte)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	if m.subs[topic] == nil {
		m.subs[topic] = make(map[int]func(string, []byte))
	}
	id := m.nextSub
	m.nextSub++
	m.subs[topic][id] = handler

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs[topic], id)
	}
}

// Len reports the number of live entries; used by tests and the health
// endpoint.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.entries {
		if m.alive(e) {
			n++
		}
	}
	return n
}
