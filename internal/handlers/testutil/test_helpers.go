// Package testutil wires a complete router over a seeded in-memory database
// for HTTP level tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/api"
	"github.com/charlesng35/fratpos/internal/app"
	iauth "github.com/charlesng35/fratpos/internal/auth"
	dbtestutil "github.com/charlesng35/fratpos/internal/database/testutil"
	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/realtime"
	"github.com/charlesng35/fratpos/internal/seeding"
	"github.com/charlesng35/fratpos/internal/services"
	"github.com/charlesng35/fratpos/pkg/response"
)

const testSecret = "handler-tests-signing-secret-0123456789"

// Env is a router plus the collaborators behind it.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Hub      *realtime.Hub
	Services *api.Services
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &Env{T: t, DB: dbtestutil.MustOpenTestDB(t, dbtestutil.WithSeedData()), Hub: realtime.NewHub()}
	t.Cleanup(env.Hub.Close)

	var err error
	env.JWT, err = iauth.NewJWTService(iauth.JWTConfig{Secret: testSecret, Issuer: "fratpos-test", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.POS.Role = dbtestutil.OperationalRole
	cfg.POS.RecentTransactions = 50
	cfg.Monitoring.Health.Enabled = true

	env.Services, err = api.NewServices(env.DB, env.JWT, cfg, env.Hub)
	require.NoError(t, err)

	env.Router, err = api.NewRouter(api.Dependencies{DB: env.DB, JWT: env.JWT, Config: cfg, Services: env.Services, Hub: env.Hub})
	require.NoError(t, err)
	return env
}

// CreateUser adds an active member with a random email holding roleNames.
func (e *Env) CreateUser(password string, roleNames ...string) *models.User {
	e.T.Helper()
	ctx := context.Background()

	user, err := e.Services.Users.Create(ctx, services.CreateUserInput{
		Email:     "member-" + uuid.NewString()[:8] + "@example.com",
		Password:  password,
		FirstName: "Test",
		LastName:  "Member",
	})
	require.NoError(e.T, err)

	if len(roleNames) == 0 {
		return user
	}
	var roles []models.Role
	require.NoError(e.T, e.DB.Where("name IN ?", roleNames).Find(&roles).Error)
	require.Len(e.T, roles, len(roleNames), "unknown role in %v", roleNames)
	for _, role := range roles {
		user, err = e.Services.Users.AddRole(ctx, user.ID, role.ID)
		require.NoError(e.T, err)
	}
	return user
}

// CreateAdmin adds a member holding the role administration role and the
// operational role.
func (e *Env) CreateAdmin(password string) *models.User {
	e.T.Helper()
	return e.CreateUser(password, seeding.RolesRole, dbtestutil.OperationalRole)
}

type UserPayload struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Active    bool    `json:"active"`
	Balance   float64 `json:"balance"`
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int         `json:"expires_in"`
	User        UserPayload `json:"user"`
}

// Login posts credentials and fails the test unless a token comes back.
func (e *Env) Login(email, password string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.Positive(e.T, result.ExpiresIn)
	require.Equal(e.T, email, result.User.Email)
	return result
}

func (e *Env) AdminToken() string {
	e.T.Helper()
	admin := e.CreateAdmin("admin-pass")
	return e.Login(admin.Email, "admin-pass").AccessToken
}

// APIResponse mirrors response.Response with the data left undecoded.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var envelope APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	return envelope
}

func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	require.NotNil(t, dest)
	require.NoError(t, json.Unmarshal(raw, dest), string(raw))
}

// Request serves one request through the router. A non-nil body is sent as
// JSON and a non-empty token as a bearer credential.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
