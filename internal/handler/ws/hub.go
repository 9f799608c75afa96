package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 32
)

// envelope is the wire format for every outbound event.
type envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// client is one live websocket connection. All frames go through the send
// channel so a single goroutine owns writes, as gorilla requires. The
// channel is closed only by the connection's own read loop, after the hub no
// longer references the client.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{id: id, conn: conn, send: make(chan []byte, sendBuffer)}
}

// deliver enqueues a frame without blocking; a client that cannot keep up
// has frames dropped rather than stalling its session.
func (c *client) deliver(frame []byte) {
	select {
	case c.send <- frame:
	default:
		log.Printf("[websocket] dropping frame for slow connection %s", c.id)
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub scopes outbound broadcasts to a session's connection set. Delivery is
// best-effort in-memory fan-out; there is no cross-session traffic.
type Hub struct {
	mu      sync.Mutex
	members map[string]map[string]*client // session id -> connection id -> client
}

// NewHub returns an empty connection registry.
func NewHub() *Hub {
	return &Hub{members: make(map[string]map[string]*client)}
}

// Add binds a connection to a session's broadcast set.
func (h *Hub) Add(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.members[sessionID]
	if !ok {
		set = make(map[string]*client)
		h.members[sessionID] = set
	}
	set[c.id] = c
}

// Remove unbinds a connection. After Remove returns, no broadcast can reach
// the client, so its owner may close the send channel.
func (h *Hub) Remove(sessionID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.members[sessionID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(h.members, sessionID)
	}
}

// Broadcast sends an event to every connection in the session.
func (h *Hub) Broadcast(sessionID, eventType string, data any) {
	h.broadcast(sessionID, "", eventType, data)
}

// BroadcastExcept sends an event to every session connection but one,
// typically the originator of the event.
func (h *Hub) BroadcastExcept(sessionID, exceptID, eventType string, data any) {
	h.broadcast(sessionID, exceptID, eventType, data)
}

func (h *Hub) broadcast(sessionID, exceptID, eventType string, data any) {
	frame, err := json.Marshal(envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("[websocket] failed to encode %s event: %v", eventType, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, member := range h.members[sessionID] {
		if id == exceptID {
			continue
		}
		member.deliver(frame)
	}
}
