// Package realtime pushes POS and catalog events to websocket clients.
package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/fratpos/pkg/logger"
	"github.com/charlesng35/fratpos/pkg/metrics"
)

// Message is the JSON frame delivered to subscribers.
type Message struct {
	Stream string `json:"stream"`
	Event  string `json:"event"`
	Data   any    `json:"data,omitempty"`
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAllowedOrigins accepts upgrades from these browser origins in addition
// to same-host and loopback origins.
func WithAllowedOrigins(origins ...string) HubOption {
	return func(h *Hub) {
		for _, origin := range origins {
			if host := originHost(origin); host != "" {
				h.origins[host] = struct{}{}
			}
		}
	}
}

// Hub fans stream events out to connected clients. A client only receives
// streams it subscribed to and is allowed to read.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[*client]struct{}
	clients map[*client]struct{}
	closed  bool

	origins  map[string]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		streams: make(map[string]map[*client]struct{}),
		clients: make(map[*client]struct{}),
		origins: make(map[string]struct{}),
		log:     logger.WithModule("realtime"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Serve upgrades the request and subscribes the client to the requested
// streams it may read. A nil allowed set permits every stream. Serve blocks
// until the client disconnects.
func (h *Hub) Serve(userID string, streams []string, allowed map[string]struct{}, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(h, socket, userID, allowed)
	if !h.register(c) {
		_ = socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline())
		_ = socket.Close()
		return
	}
	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()

	h.subscribe(c, streams)

	go c.writePump()
	c.readPump()
}

// Publish sends event to every subscriber of stream. The frame is encoded
// once for all recipients. Clients that cannot keep up are disconnected.
func (h *Hub) Publish(stream, event string, data any) {
	stream = normalizeStream(stream)
	if stream == "" {
		return
	}

	h.mu.RLock()
	subscribers := make([]*client, 0, len(h.streams[stream]))
	for c := range h.streams[stream] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()
	if len(subscribers) == 0 {
		return
	}

	frame, err := prepare(Message{Stream: stream, Event: event, Data: data})
	if err != nil {
		h.log.Error("encode realtime event", zap.String("event", event), zap.Error(err))
		return
	}

	for _, c := range subscribers {
		if !c.enqueue(frame) {
			h.log.Warn("disconnecting slow client", zap.String("user_id", c.userID), zap.String("stream", stream))
			c.shutdown(websocket.ClosePolicyViolation, "too slow")
		}
	}
}

// Subscribers returns the number of clients listening on stream.
func (h *Hub) Subscribers(stream string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[normalizeStream(stream)])
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown(websocket.CloseGoingAway, "server shutting down")
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// subscribe adds c to the permitted subset of streams and returns c's
// subscriptions afterwards.
func (h *Hub) subscribe(c *client, streams []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range NormalizeStreams(streams) {
		if !c.mayRead(stream) {
			h.log.Debug("stream not permitted", zap.String("stream", stream), zap.String("user_id", c.userID))
			continue
		}
		if h.streams[stream] == nil {
			h.streams[stream] = make(map[*client]struct{})
		}
		h.streams[stream][c] = struct{}{}
		c.subscribed[stream] = struct{}{}
	}
	return c.subscriptions()
}

func (h *Hub) unsubscribe(c *client, streams []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range NormalizeStreams(streams) {
		h.dropLocked(c, stream)
	}
	return c.subscriptions()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for stream := range c.subscribed {
		h.dropLocked(c, stream)
	}
	delete(h.clients, c)
}

func (h *Hub) dropLocked(c *client, stream string) {
	if members, ok := h.streams[stream]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.streams, stream)
		}
	}
	delete(c.subscribed, stream)
}

func prepare(msg Message) (*websocket.PreparedMessage, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return websocket.NewPreparedMessage(websocket.TextMessage, payload)
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

// NormalizeStreams lower-cases names and drops blanks and duplicates, keeping order.
func NormalizeStreams(streams []string) []string {
	seen := make(map[string]struct{}, len(streams))
	out := make([]string, 0, len(streams))
	for _, stream := range streams {
		stream = normalizeStream(stream)
		if _, dup := seen[stream]; stream == "" || dup {
			continue
		}
		seen[stream] = struct{}{}
		out = append(out, stream)
	}
	return out
}
