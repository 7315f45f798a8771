package http

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub tracks live websocket connections by ID and implements app.Sender.
// Each connection gets a buffered send channel drained by a single writer
// goroutine, so rooms never write to sockets and never block on them.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*client
}

type client struct {
	conn *websocket.Conn
	send chan outboundMessage
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*client)}
}

// Register mints a connection ID, wires the writer goroutine, and returns
// the ID used as the participant identity for the connection's lifetime.
func (h *Hub) Register(conn *websocket.Conn) string {
	id := newConnID()
	c := &client{conn: conn, send: make(chan outboundMessage, 16)}

	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()

	go func() {
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error for %s: %v", id, err)
				return
			}
		}
	}()
	return id
}

// Unregister removes the connection and stops its writer. Closing under
// the write lock keeps the close ordered against in-flight Sends, which
// hold the read lock.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[connID]; ok {
		delete(h.conns, connID)
		close(c.send)
	}
}

// Send delivers a named event to one connection. Unknown connections are
// dropped silently; a full buffer sheds the oldest message so a slow
// client cannot stall the room.
func (h *Hub) Send(connID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}

	msg := outboundMessage{Type: event, Payload: payload}
	select {
	case c.send <- msg:
	default:
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}

func newConnID() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
