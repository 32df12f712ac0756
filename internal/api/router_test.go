package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/fratpos/internal/app"
	iauth "github.com/charlesng35/fratpos/internal/auth"
	"github.com/charlesng35/fratpos/internal/database/testutil"
	"github.com/charlesng35/fratpos/internal/realtime"
	"github.com/charlesng35/fratpos/internal/services"
)

func testConfig() *app.Config {
	cfg := &app.Config{}
	cfg.POS.Role = testutil.OperationalRole
	cfg.POS.RecentTransactions = 20
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	cfg.Monitoring.Health.Enabled = true
	return cfg
}

func newTestRouter(t *testing.T) (*gin.Engine, *Services) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret", Issuer: "test", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	cfg := testConfig()
	hub := realtime.NewHub()
	svc, err := NewServices(db, jwtSvc, cfg, hub)
	require.NoError(t, err)

	router, err := NewRouter(Dependencies{DB: db, JWT: jwtSvc, Config: cfg, Services: svc, Hub: hub})
	require.NoError(t, err)
	return router, svc
}

func serve(router *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(Dependencies{})
	require.Error(t, err)
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/auth/me", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/users", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/posdata", "", "").Code)

	rec := serve(router, http.MethodGet, "/nope", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "ROUTE_NOT_FOUND")
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "", "").Code)

	rec := serve(router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "fratpos_api_latency_seconds")
}

func TestRouterEnforcesPermissions(t *testing.T) {
	router, svc := newTestRouter(t)
	ctx := context.Background()

	_, err := svc.Users.Create(ctx, services.CreateUserInput{
		Email:     "clerk@example.com",
		Password:  "secret1",
		FirstName: "Cash",
		LastName:  "Clerk",
	})
	require.NoError(t, err)
	_, err = svc.Users.EnsureAdmin(ctx, services.AdminInput{
		Email:     "admin@example.com",
		Password:  "secret1",
		FirstName: "Ada",
		LastName:  "Admin",
	}, "ROLES", testutil.OperationalRole)
	require.NoError(t, err)

	login := func(email string) string {
		rec := serve(router, http.MethodPost, "/api/auth/login", `{"email":"`+email+`","password":"secret1"}`, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body struct {
			Data struct {
				AccessToken string `json:"access_token"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.NotEmpty(t, body.Data.AccessToken)
		return body.Data.AccessToken
	}

	clerk := login("clerk@example.com")
	admin := login("admin@example.com")

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/auth/me", "", clerk).Code)
	require.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/api/posdata", "", clerk).Code)
	require.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/api/roles", "", clerk).Code)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/posdata", "", admin).Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/roles", "", admin).Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/permissions", "", admin).Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/audit", "", admin).Code)
}

func TestRouterThrottlesLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret", Issuer: "test", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Auth.LoginRateLimit.Requests = 2
	cfg.Auth.LoginRateLimit.Window = time.Hour
	router, err := NewRouter(Dependencies{DB: db, JWT: jwtSvc, Config: cfg})
	require.NoError(t, err)

	body := `{"email":"nobody@example.com","password":"wrong-password"}`
	for range 2 {
		w := serve(router, http.MethodPost, "/api/auth/login", body, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	}

	w := serve(router, http.MethodPost, "/api/auth/login", body, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}
