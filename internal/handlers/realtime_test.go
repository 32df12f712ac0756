package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/fratpos/internal/handlers"
	"github.com/charlesng35/fratpos/internal/middleware"
	"github.com/charlesng35/fratpos/internal/realtime"
)

func TestRealtimeHandlerUnauthorizedWithoutUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := handlers.NewRealtimeHandler(realtime.NewHub(), realtime.StreamPOS)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/ws", nil)

	handler.Stream(c)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRealtimeHandlerRejectsUnknownStream(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := handlers.NewRealtimeHandler(realtime.NewHub(), realtime.StreamPOS)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.CtxUserIDKey, "user-1")
	c.Request = httptest.NewRequest(http.MethodGet, "/api/ws?stream=unknown", nil)

	handler.Stream(c)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRealtimeHandlerWithoutHub(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := handlers.NewRealtimeHandler(nil, realtime.StreamPOS)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(middleware.CtxUserIDKey, "user-1")
	c.Request = httptest.NewRequest(http.MethodGet, "/api/ws", nil)

	handler.Stream(c)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRealtimeStreamReceivesTransactions(t *testing.T) {
	f := newPOSFixture(t)

	server := httptest.NewServer(f.env.Router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws?stream=pos&token=" + f.token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	})

	require.Eventually(t, func() bool {
		return f.env.Hub.Subscribers(realtime.StreamPOS) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, code := f.sell(1)
	require.Equal(t, http.StatusCreated, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg realtime.Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, realtime.StreamPOS, msg.Stream)
	require.Equal(t, realtime.EventTransactionCreated, msg.Event)
}
