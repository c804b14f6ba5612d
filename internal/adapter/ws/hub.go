// Package ws pushes committed balance changes to connected players.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/infrastructure/metrics"
)

const (
	defaultSendBuffer   = 16
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
	maxMessageSize      = 512
)

// UserResolver extracts the authenticated user from an upgrade request.
type UserResolver func(r *http.Request) (string, bool)

// Config configures a Hub.
type Config struct {
	ResolveUser  UserResolver
	CheckOrigin  func(r *http.Request) bool
	SendBuffer   int
	PingInterval time.Duration
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
}

// Hub tracks live sockets per user and fans balance deltas out to them.
// It implements usecase.BalanceNotifier.
type Hub struct {
	upgrader     websocket.Upgrader
	resolveUser  UserResolver
	sendBuffer   int
	pingInterval time.Duration
	logger       zerolog.Logger
	metrics      *metrics.Metrics

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
}

// NewHub creates a new Hub.
func NewHub(cfg Config) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		resolveUser:  cfg.ResolveUser,
		sendBuffer:   cfg.SendBuffer,
		pingInterval: cfg.PingInterval,
		logger:       cfg.Logger.With().Str("component", "ws_hub").Logger(),
		metrics:      cfg.Metrics,
		clients:      make(map[string]map[*client]struct{}),
	}
}

// OnBalanceChanged enqueues a balance_update frame on every socket of the user.
// It never blocks: a connection whose buffer is full misses the frame.
func (h *Hub) OnBalanceChanged(_ context.Context, delta domain.BalanceDelta) {
	frame, err := encodeBalanceUpdate(delta)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", delta.UserID).Msg("failed to encode balance update")
		return
	}

	h.deliver(delta.UserID, frame)
}

func (h *Hub) deliver(userID string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- frame:
			if h.metrics != nil {
				h.metrics.WSDelivered.Inc()
			}
		default:
			if h.metrics != nil {
				h.metrics.WSDropped.Inc()
			}
			h.logger.Debug().Str("user_id", userID).Msg("send buffer full, dropping frame")
		}
	}
}

// ServeHTTP upgrades the request and serves the socket until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(h, conn, userID)
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

// Connections returns the number of open sockets for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[userID])
}

// Close disconnects every client and refuses new ones. The pumps of each socket
// wind down on their own once it is stopped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for userID, set := range h.clients {
		for c := range set {
			c.stop()
			h.connClosed()
		}
		delete(h.clients, userID)
	}
}

// register adds c unless the hub is closed.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
	h.logger.Debug().Str("user_id", c.userID).Int("connections", len(set)).Msg("client connected")
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}

	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	c.stop()
	h.connClosed()
}

func (h *Hub) connClosed() {
	if h.metrics != nil {
		h.metrics.WSConnections.Dec()
	}
}
