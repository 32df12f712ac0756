package realtime

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	outboxSize     = 64
)

// Control actions a client may send.
const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionPing        = "ping"
)

// Replies to control actions, delivered on the "system" stream.
const (
	StreamSystem      = "system"
	EventSubscribed   = "subscribed"
	EventPong         = "pong"
	EventInvalidFrame = "error"
)

type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

type client struct {
	hub     *Hub
	socket  *websocket.Conn
	userID  string
	allowed map[string]struct{}

	// guarded by hub.mu
	subscribed map[string]struct{}

	once   sync.Once
	outbox chan *websocket.PreparedMessage
	done   chan struct{}
}

func newClient(h *Hub, socket *websocket.Conn, userID string, allowed map[string]struct{}) *client {
	return &client{
		hub:        h,
		socket:     socket,
		userID:     userID,
		allowed:    allowed,
		subscribed: make(map[string]struct{}),
		outbox:     make(chan *websocket.PreparedMessage, outboxSize),
		done:       make(chan struct{}),
	}
}

// enqueue queues frame without blocking. It reports false when the outbox is full.
func (c *client) enqueue(frame *websocket.PreparedMessage) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.outbox <- frame:
		return true
	default:
		return false
	}
}

func (c *client) reply(event string, data any) {
	frame, err := prepare(Message{Stream: StreamSystem, Event: event, Data: data})
	if err == nil {
		c.enqueue(frame)
	}
}

func (c *client) readPump() {
	defer c.shutdown(websocket.CloseNormalClosure, "")

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debug("client connection lost", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		c.handle(payload)
	}
}

func (c *client) handle(payload []byte) {
	if len(payload) == 0 {
		return
	}

	var ctrl controlMessage
	if err := json.Unmarshal(payload, &ctrl); err != nil {
		c.reply(EventInvalidFrame, map[string]string{"message": "invalid control frame"})
		return
	}

	switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
	case actionSubscribe:
		c.reply(EventSubscribed, map[string][]string{"streams": c.hub.subscribe(c, ctrl.Streams)})
	case actionUnsubscribe:
		c.reply(EventSubscribed, map[string][]string{"streams": c.hub.unsubscribe(c, ctrl.Streams)})
	case actionPing:
		c.reply(EventPong, nil)
	default:
		c.reply(EventInvalidFrame, map[string]string{"message": "unknown action " + ctrl.Action})
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.outbox:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WritePreparedMessage(frame); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.socket.WriteControl(websocket.PingMessage, nil, deadline()); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

// shutdown unregisters the client, sends a close frame with code and closes
// the socket. Only the first call has an effect.
func (c *client) shutdown(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		c.hub.unregister(c)
		if code != websocket.CloseAbnormalClosure {
			_ = c.socket.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline())
		}
		_ = c.socket.Close()
	})
}

func (c *client) mayRead(stream string) bool {
	if c.allowed == nil {
		return true
	}
	_, ok := c.allowed[stream]
	return ok
}

// subscriptions lists the client's streams sorted. Callers hold hub.mu.
func (c *client) subscriptions() []string {
	out := make([]string, 0, len(c.subscribed))
	for stream := range c.subscribed {
		out = append(out, stream)
	}
	sort.Strings(out)
	return out
}

func deadline() time.Time {
	return time.Now().Add(writeWait)
}
