// Package live pushes authoritative state changes to connected dashboards
// over websockets, so clients refetch instead of keeping their own copies of
// what was marked or read.
package live

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/metrics"
)

const (
	EventNotification    = "notification"
	EventAttendance      = "attendance.marked"
	EventHandoverUpdated = "handover.updated"
	EventRoutine         = "routine.published"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Event is one message pushed to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Target selects recipients: a single user, every user holding a role, or
// everyone when All is set. HODs hold the faculty role as well.
type Target struct {
	UserID string
	Role   string
	All    bool
}

func ToUser(id string) Target   { return Target{UserID: id} }
func ToRole(role string) Target { return Target{Role: role} }
func ToAll() Target             { return Target{All: true} }

func (t Target) matches(c *client) bool {
	switch {
	case t.All:
		return true
	case t.UserID != "":
		return c.userID == t.UserID
	case t.Role != "":
		return core.HasRole(c.role, t.Role)
	}
	return false
}

type client struct {
	userID string
	role   string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans events out to connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	buffer  int
	logger  *zap.Logger
}

// NewHub creates a hub whose clients buffer up to buffer events.
func NewHub(logger *zap.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{clients: make(map[*client]struct{}), buffer: buffer, logger: logger}
}

// Publish delivers e to every matching connection without blocking. A client
// whose buffer is full is disconnected; it will refetch on reconnect.
func (h *Hub) Publish(t Target, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("live: marshal event", zap.String("type", e.Type), zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !t.matches(c) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("live: dropping slow client", zap.String("user_id", c.userID))
		h.unregister(c)
	}
}

// Serve owns conn until the peer disconnects.
func (h *Hub) Serve(conn *websocket.Conn, userID, role string) {
	c := &client{userID: userID, role: role, conn: conn, send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.LiveConnections.Inc()

	go h.writePump(c)
	h.readPump(c)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		metrics.LiveConnections.Dec()
	}
	c.close()
}

// readPump discards client messages; it only exists to observe pongs and
// disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
