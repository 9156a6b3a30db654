package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client control frames.
const (
	eventRoomJoin  = "room:join"
	eventRoomLeave = "room:leave"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendQueueSize  = 64
)

var (
	errSlowClient  = errors.New("send queue full")
	errConnClosing = errors.New("connection closing")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients for the dashboard are served from other origins in
	// dev; auth happens upstream of the gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a gorilla websocket to the hub's Conn. Sends go through a
// bounded queue drained by the write pump; a client that cannot keep up
// loses messages rather than stalling the hub.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan Message
	done chan struct{}
	log  *slog.Logger
}

func (c *wsConn) ID() string { return c.id }

// Send never blocks the hub: the send queue is never closed, and a closing
// or backed-up connection reports an error instead.
func (c *wsConn) Send(msg Message) error {
	select {
	case <-c.done:
		return errConnClosing
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return errSlowClient
	}
}

// ServeWS upgrades an HTTP request into a hub-registered websocket
// connection and starts its pumps.
func ServeWS(hub *Hub, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}

		conn := &wsConn{
			id:   uuid.New().String(),
			ws:   ws,
			send: make(chan Message, sendQueueSize),
			done: make(chan struct{}),
			log:  log,
		}

		hub.OnConnect(conn)
		go conn.writePump()
		go conn.readPump(hub)
	}
}

// readPump handles the client's room join/leave control frames and tears
// the connection down on error.
func (c *wsConn) readPump(hub *Hub) {
	defer func() {
		hub.OnDisconnect(c)
		close(c.done)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "conn_id", c.id, "error", err)
			}
			return
		}

		switch msg.Event {
		case eventRoomJoin:
			if msg.Room != "" {
				hub.JoinRoom(c, msg.Room)
			}
		case eventRoomLeave:
			if msg.Room != "" {
				hub.LeaveRoom(c, msg.Room)
			}
		default:
			c.log.Warn("unknown client frame", "conn_id", c.id, "event", msg.Event)
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
