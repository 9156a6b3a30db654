package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/cache"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/metrics"
	"github.com/Tuz301/VaxTrace-Nigeria-sub001/internal/publish"
)

// Server-initiated event names.
const (
	EventStockUpdate = "stock:update"
	EventReqUpdate   = "requisition:update"
	EventMapUpdate   = "map:update"
	EventAlertNew    = "alert:new"
)

// DefaultRoom is joined by every connection; room-scoped traffic requires
// an explicit join.
const DefaultRoom = "global"

// Message is the wire frame in both directions: server-initiated named
// events carry Data, client control frames carry Room.
type Message struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is one live client connection as the hub sees it. The websocket
// transport implements it; tests substitute fakes.
type Conn interface {
	ID() string
	Send(msg Message) error
}

type subscription struct {
	conn  Conn
	rooms map[string]struct{}
}

// Hub owns the registry of client subscriptions and fans cache
// invalidations out to the rooms they concern. Connect, disconnect and
// join/leave arrive on per-connection goroutines, so the registry is
// mutex-guarded.
type Hub struct {
	store cache.Store
	log   *slog.Logger

	mu     sync.RWMutex
	subs   map[string]*subscription
	unsubs []func()
}

func NewHub(store cache.Store, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		store: store,
		log:   log,
		subs:  make(map[string]*subscription),
	}
}

// Start subscribes the hub to the invalidation topics. Notices received
// before Start or after Stop are lost; clients reconcile via HTTP state on
// (re)connect, notices only buy latency.
func (h *Hub) Start() {
	for _, topic := range []string{cache.TopicStock, cache.TopicRequisition, cache.TopicFacility, cache.TopicAlert} {
		h.unsubs = append(h.unsubs, h.store.Subscribe(topic, h.onNotice))
	}
	h.log.Info("broadcast gateway subscribed to invalidation topics")
}

func (h *Hub) Stop() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
}

func (h *Hub) OnConnect(conn Conn) {
	h.mu.Lock()
	h.subs[conn.ID()] = &subscription{
		conn:  conn,
		rooms: map[string]struct{}{DefaultRoom: {}},
	}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.ConnectedClients.Set(float64(n))
	h.log.Info("client connected", "conn_id", conn.ID())
}

func (h *Hub) OnDisconnect(conn Conn) {
	h.mu.Lock()
	delete(h.subs, conn.ID())
	n := len(h.subs)
	h.mu.Unlock()

	metrics.ConnectedClients.Set(float64(n))
	h.log.Info("client disconnected", "conn_id", conn.ID())
}

func (h *Hub) JoinRoom(conn Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[conn.ID()]; ok {
		sub.rooms[room] = struct{}{}
	}
}

func (h *Hub) LeaveRoom(conn Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[conn.ID()]; ok {
		delete(sub.rooms, room)
	}
}

// Broadcast sends a named event to every connection.
func (h *Hub) Broadcast(eventName string, data []byte) {
	h.send(eventName, data, func(*subscription) bool { return true })
}

// BroadcastToRoom sends a named event to connections that joined room.
func (h *Hub) BroadcastToRoom(room, eventName string, data []byte) {
	h.send(eventName, data, func(s *subscription) bool {
		_, ok := s.rooms[room]
		return ok
	})
}

func (h *Hub) send(eventName string, data []byte, want func(*subscription) bool) {
	msg := Message{Event: eventName, Data: data}

	h.mu.RLock()
	targets := make([]Conn, 0, len(h.subs))
	for _, sub := range h.subs {
		if want(sub) {
			targets = append(targets, sub.conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.Send(msg); err != nil {
			// Reconnecting is the client transport's job, not the hub's.
			h.log.Warn("send to client failed", "conn_id", conn.ID(), "error", err)
			continue
		}
		metrics.BroadcastsSent.WithLabelValues(eventName).Inc()
	}
}

// onNotice translates an invalidation notice into a room-scoped broadcast
// so clients only hear about what they are viewing.
func (h *Hub) onNotice(topic string, payload []byte) {
	var notice publish.Notice
	if err := json.Unmarshal(payload, &notice); err != nil {
		h.log.Warn("malformed invalidation notice", "topic", topic, "error", err)
		return
	}

	room, eventName, err := routeNotice(topic, notice.Key)
	if err != nil {
		h.log.Warn("unroutable invalidation notice", "topic", topic, "key", notice.Key, "error", err)
		return
	}

	h.BroadcastToRoom(room, eventName, payload)
}

// routeNotice maps a (topic, key) pair onto a room and event name, e.g.
// topic "stock" with key "stock:facility:F" goes to room "facility:F" as a
// "stock:update" event.
func routeNotice(topic, key string) (room, eventName string, err error) {
	parts := strings.Split(key, ":")

	switch topic {
	case cache.TopicStock:
		// stock:facility:{id}
		if len(parts) >= 3 && parts[1] == "facility" {
			return "facility:" + parts[2], EventStockUpdate, nil
		}
	case cache.TopicRequisition:
		// requisition:facility:{id}
		if len(parts) >= 3 && parts[1] == "facility" {
			return "facility:" + parts[2], EventReqUpdate, nil
		}
	case cache.TopicFacility:
		// facility:{id}
		if len(parts) >= 2 {
			return "facility:" + parts[1], EventMapUpdate, nil
		}
	case cache.TopicAlert:
		// alert:{kind}:{facility}:{product}
		if len(parts) >= 3 {
			return "facility:" + parts[2], EventAlertNew, nil
		}
	}

	return "", "", fmt.Errorf("no route for key %q on topic %q", key, topic)
}
