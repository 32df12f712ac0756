package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/middleware"
	"github.com/charlesng35/fratpos/internal/realtime"
	"github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/response"
)

// RealtimeHandler upgrades authenticated requests into websocket streams.
type RealtimeHandler struct {
	hub      *realtime.Hub
	streams  []string
	readable map[string]struct{}
}

// NewRealtimeHandler serves the given streams. Clients that name none are
// subscribed to all of them.
func NewRealtimeHandler(hub *realtime.Hub, streams ...string) *RealtimeHandler {
	h := &RealtimeHandler{hub: hub, streams: realtime.NormalizeStreams(streams)}
	h.readable = make(map[string]struct{}, len(h.streams))
	for _, stream := range h.streams {
		h.readable[stream] = struct{}{}
	}
	return h
}

// GET /api/ws?stream=pos&streams=pos,catalog
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	requested := c.QueryArray("stream")
	if raw := c.Query("streams"); raw != "" {
		requested = append(requested, strings.Split(raw, ",")...)
	}
	streams := realtime.NormalizeStreams(requested)
	if len(streams) == 0 {
		streams = h.streams
	}
	for _, stream := range streams {
		if _, ok := h.readable[stream]; !ok {
			response.Error(c, errors.ErrNotFound)
			return
		}
	}

	h.hub.Serve(userID, streams, h.readable, c.Writer, c.Request)
}
