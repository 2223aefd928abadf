// Package ws bridges the game event bus to browser WebSocket clients. Each
// connection is bound to one player and only receives events that concern
// that player.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/server/middleware"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256

	// replayCount bounds how many logged events a fresh connection replays.
	replayCount = 32
)

// upgrader configures the WebSocket upgrade parameters. Origin checks are
// handled by the CORS middleware ahead of the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client represents a single WebSocket connection bound to a player.
type client struct {
	hub      *Hub
	conn     *websocket.Conn
	playerID string
	send     chan []byte
	types    map[domain.EventType]bool // event type filter; empty = all
	mu       sync.RWMutex
}

// filterMsg is the JSON frame a client sends to narrow or widen the event
// types it receives:
//
//	{"action":"subscribe","types":["trade.accepted","trade.expired"]}
//	{"action":"unsubscribe","types":["egg.opened"]}
type filterMsg struct {
	Action string   `json:"action"`
	Types  []string `json:"types"`
}

// Config captures runtime metadata for the hub.
type Config struct {
	// Channel is the pub/sub channel carrying game events.
	Channel string

	// Stream, when set, names the durable event log replayed to fresh
	// connections so a reconnecting client can catch up.
	Stream string

	// StartedAt is reported in the connection acknowledgement.
	StartedAt time.Time
}

// Hub manages the set of connected clients and fans events from the signal
// bus out to the players they concern.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	channel    string
	stream     string
	startedAt  time.Time
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a hub reading game events from the given SignalBus channel.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		channel:    cfg.Channel,
		stream:     cfg.Stream,
		startedAt:  startedAt,
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// Run starts the hub's main loop: client registration, unregistration, and
// event fan-out. The loop exits when the context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	go h.subscribeToBus(ctx)

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
			h.mu.Unlock()
			h.logger.Info("client connected",
				slog.String("player_id", c.playerID),
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected",
				slog.String("player_id", c.playerID),
				slog.Int("total_clients", h.clientCount()),
			)

		case payload := <-h.broadcast:
			h.dispatch(payload)
		}
	}
}

// dispatch decodes a bus payload and forwards it to every client the event
// concerns. Events without player IDs go to everyone.
func (h *Hub) dispatch(payload []byte) {
	var event domain.GameEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Warn("dropping malformed event", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if len(event.PlayerIDs) > 0 && !event.Concerns(c.playerID) {
			continue
		}
		if !c.wants(event.Type) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Send buffer full; drop rather than stall the hub.
			h.logger.Warn("dropping event for slow client",
				slog.String("player_id", c.playerID),
			)
		}
	}
}

// subscribeToBus pumps events from the signal bus into the broadcast channel.
func (h *Hub) subscribeToBus(ctx context.Context) {
	msgCh, err := h.bus.Subscribe(ctx, h.channel)
	if err != nil {
		h.logger.Error("failed to subscribe to event channel",
			slog.String("channel", h.channel),
			slog.String("error", err.Error()),
		)
		return
	}

	h.logger.Info("subscribed to event channel", slog.String("channel", h.channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("event channel closed", slog.String("channel", h.channel))
				return
			}
			h.broadcast <- data
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub. The player identity comes from the request
// context set by the identity middleware.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	playerID := middleware.PlayerFrom(r.Context())
	if playerID == "" {
		http.Error(w, "missing player identity", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:      h,
		conn:     conn,
		playerID: playerID,
		send:     make(chan []byte, sendBufferSize),
		types:    make(map[domain.EventType]bool),
	}

	h.register <- c
	c.sendAck()
	h.replay(r.Context(), c)

	go c.writePump()
	go c.readPump()
}

// replay queues the tail of the durable event log so a reconnecting
// client sees what it missed before live traffic resumes. Only events
// concerning the player are queued; a full send buffer ends the replay.
func (h *Hub) replay(ctx context.Context, c *client) {
	if h.stream == "" {
		return
	}

	msgs, err := h.bus.StreamRead(ctx, h.stream, "0", replayCount)
	if err != nil {
		h.logger.Warn("event replay failed",
			slog.String("player_id", c.playerID),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, msg := range msgs {
		var event domain.GameEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			continue
		}
		if len(event.PlayerIDs) > 0 && !event.Concerns(c.playerID) {
			continue
		}
		select {
		case c.send <- msg.Payload:
		default:
			return
		}
	}
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump reads frames from the connection, handling event type filter
// requests from the client.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
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
				c.hub.logger.Warn("unexpected close error",
					slog.String("player_id", c.playerID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg filterMsg
		if jsonErr := json.Unmarshal(message, &msg); jsonErr == nil && msg.Action != "" {
			c.applyFilter(msg)
		}
	}
}

// applyFilter updates the client's event type filter.
func (c *client) applyFilter(msg filterMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, t := range msg.Types {
			c.types[domain.EventType(t)] = true
		}
	case "unsubscribe":
		for _, t := range msg.Types {
			delete(c.types, domain.EventType(t))
		}
	}
}

// wants reports whether the client's filter admits the event type. An empty
// filter admits everything.
func (c *client) wants(t domain.EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.types) == 0 {
		return true
	}
	return c.types[t]
}

// sendAck pushes a small JSON envelope so clients can mark the connection
// healthy before any game events flow.
func (c *client) sendAck() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	msg, err := json.Marshal(map[string]any{
		"type": "connection.ack",
		"payload": map[string]any{
			"playerId":      c.playerID,
			"uptimeSeconds": uptime,
		},
	})
	if err != nil {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

// writePump pumps events from the hub to the connection, interleaved with
// periodic ping frames for keepalive.
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
				// The hub closed the channel.
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
