package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/fratpos/pkg/response"
)

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), w.Body.String())
	return payload
}

func TestRecoveryRendersInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Recovery())
	r.POST("/api/transaction", func(c *gin.Context) {
		var lines []int
		_ = lines[3]
	})

	w := serve(r, http.MethodPost, "/api/transaction")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	payload := decodeEnvelope(t, w)
	require.False(t, payload.Success)
	require.Equal(t, "INTERNAL_SERVER_ERROR", payload.Error.Code)
}

func TestRecoveryKeepsWrittenResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Recovery())
	r.GET("/api/posdata", func(c *gin.Context) {
		c.String(http.StatusAccepted, "partial")
		panic("late failure")
	})

	w := serve(r, http.MethodGet, "/api/posdata")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "partial", w.Body.String())
}

func TestRecoveryRethrowsAbortHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Recovery())
	r.GET("/api/ws", func(c *gin.Context) {
		panic(http.ErrAbortHandler)
	})

	require.PanicsWithError(t, http.ErrAbortHandler.Error(), func() {
		serve(r, http.MethodGet, "/api/ws")
	})
}

func TestNotFoundHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.NoRoute(NotFoundHandler)

	w := serve(r, http.MethodGet, "/api/unknown")
	require.Equal(t, http.StatusNotFound, w.Code)

	payload := decodeEnvelope(t, w)
	require.Equal(t, "ROUTE_NOT_FOUND", payload.Error.Code)
	require.Equal(t, "route /api/unknown not found", payload.Error.Message)
}
