// Package ws streams pricing events from the signal bus to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// upgrader configures the WebSocket upgrade parameters. Origin checks are
// left to the CORS settings of the HTTP server.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Envelope is the frame sent to clients.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// filterMsg lets a client narrow the engines it hears about, e.g.
// {"action":"subscribe","engines":["fdm","montecarlo"]}. An empty set means
// every engine.
type filterMsg struct {
	Action  string   `json:"action"`
	Engines []string `json:"engines"`
}

// client represents a single WebSocket connection.
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	engines map[string]bool
	mu      sync.RWMutex
}

// Hub fans pricing events from the bus out to connected clients.
type Hub struct {
	pattern    string
	clients    map[*client]bool
	broadcast  chan domain.PricingEvent
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	mu         sync.RWMutex
	logger     *slog.Logger
	startedAt  time.Time
}

// NewHub creates a hub that relays messages published on channels matching
// pattern (e.g. "pricing:*").
func NewHub(bus domain.SignalBus, pattern string, logger *slog.Logger) *Hub {
	return &Hub{
		pattern:    pattern,
		clients:    make(map[*client]bool),
		broadcast:  make(chan domain.PricingEvent, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger,
		startedAt:  time.Now().UTC(),
	}
}

// Run subscribes to the bus and serves registrations and broadcasts until ctx
// is cancelled. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	go h.relay(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case evt := <-h.broadcast:
			frame, err := json.Marshal(Envelope{Type: "pricing_event", Payload: evt})
			if err != nil {
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(evt.Engine) {
					continue
				}
				select {
				case c.send <- frame:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// relay decodes bus payloads into events for the broadcast loop.
func (h *Hub) relay(ctx context.Context) {
	msgs, err := h.bus.Subscribe(ctx, h.pattern)
	if err != nil {
		h.logger.Error("ws: failed to subscribe",
			slog.String("pattern", h.pattern),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("ws: subscribed", slog.String("pattern", h.pattern))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: subscription closed", slog.String("pattern", h.pattern))
				return
			}
			var evt domain.PricingEvent
			if err := json.Unmarshal(data, &evt); err != nil {
				h.logger.Warn("ws: skipping undecodable event", slog.String("error", err.Error()))
				continue
			}
			select {
			case h.broadcast <- evt:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		engines: make(map[string]bool),
	}

	if !h.join(c) {
		conn.Close()
		return
	}
	c.sendHello()

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
		var msg filterMsg
		if err := json.Unmarshal(message, &msg); err == nil {
			c.applyFilter(msg)
		}
	}
}

// join hands c to the run loop. It reports false once the hub has stopped.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave hands c back to the run loop, or drops it if the hub has stopped.
func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (c *client) applyFilter(msg filterMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, e := range msg.Engines {
			c.engines[e] = true
		}
	case "unsubscribe":
		for _, e := range msg.Engines {
			delete(c.engines, e)
		}
	case "reset":
		clear(c.engines)
	}
}

func (c *client) wants(engine string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.engines) == 0 || c.engines[engine]
}

// sendHello tells a new client the connection is live before any event flows.
func (c *client) sendHello() {
	frame, err := json.Marshal(Envelope{
		Type: "hello",
		Payload: map[string]any{
			"pattern":        c.hub.pattern,
			"uptime_seconds": int64(time.Since(c.hub.startedAt).Seconds()),
		},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
