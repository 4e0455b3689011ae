package events

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

const clientSendBuffer = 64

// Hub broadcasts events to connected websocket clients and doubles as the
// delivery transport for the web-chat channel. Clients that subscribe with
// a session query parameter additionally receive chat deliveries addressed
// to that session.
type Hub struct {
	upgrader       websocket.Upgrader
	allowedOrigins []string
	log            *slog.Logger

	mu      sync.RWMutex
	clients map[string]*hubClient
}

type hubClient struct {
	id      string
	session string // chat session address, empty for plain event consumers
	conn    *websocket.Conn
	send    chan Event
	once    sync.Once
}

// NewHub creates a websocket event hub. An empty origin list allows all
// origins (non-browser clients send no Origin header at all).
func NewHub(allowedOrigins []string, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		allowedOrigins: allowedOrigins,
		log:            log,
		clients:        make(map[string]*hubClient),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range h.allowedOrigins {
		if origin == a || a == "*" {
			return true
		}
	}
	h.log.Warn("websocket origin rejected", "origin", origin)
	return false
}

// HandleWS upgrades an HTTP request and serves the client until it
// disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &hubClient{
		id:      uuid.NewString(),
		session: r.URL.Query().Get("session"),
		conn:    conn,
		send:    make(chan Event, clientSendBuffer),
	}
	h.register(client)
	defer h.unregister(client)

	go client.writePump()

	// Read loop exists only to observe close; clients don't send frames.
	for {
		if _, _, readErr := conn.ReadMessage(); readErr != nil {
			return
		}
	}
}

func (h *Hub) register(c *hubClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Info("event client connected", "id", c.id, "session", c.session)
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
	h.log.Info("event client disconnected", "id", c.id)
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

func (c *hubClient) writePump() {
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// enqueue drops the event when the client's buffer is full; a slow UI must
// not stall message processing.
func (c *hubClient) enqueue(ev Event) {
	select {
	case c.send <- ev:
	default:
	}
}

// Publish broadcasts an event to every connected client.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(ev)
	}
	return nil
}

// Close disconnects all clients.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
	return nil
}

// chatPayload is the wire shape of a web-chat delivery.
type chatPayload struct {
	Session     string             `json:"session"`
	Content     string             `json:"content"`
	Attachments []store.Attachment `json:"attachments,omitempty"`
}

// DeliverChat pushes a chat message to the clients subscribed to the given
// session. It satisfies the chat sender's Deliverer contract and fails when
// no client is listening, so the dispatcher records the send as failed.
func (h *Hub) DeliverChat(_ context.Context, address, content string, attachments []store.Attachment) error {
	ev := NewEvent(EventChatDelivery, chatPayload{Session: address, Content: content, Attachments: attachments})

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, c := range h.clients {
		if c.session == address {
			c.enqueue(ev)
			delivered++
		}
	}
	if delivered == 0 {
		return fmt.Errorf("no connected client for chat session %q", address)
	}
	return nil
}
