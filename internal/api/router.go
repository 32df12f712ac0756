package api

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/app"
	iauth "github.com/charlesng35/fratpos/internal/auth"
	"github.com/charlesng35/fratpos/internal/handlers"
	"github.com/charlesng35/fratpos/internal/middleware"
	"github.com/charlesng35/fratpos/internal/monitoring"
	"github.com/charlesng35/fratpos/internal/realtime"
	"github.com/charlesng35/fratpos/internal/services"
)

// Dependencies carries everything NewRouter needs. Hub may be nil, in which
// case the websocket endpoint answers 404. A nil Health gets database and
// realtime probes.
type Dependencies struct {
	DB       *gorm.DB
	JWT      *iauth.JWTService
	Config   *app.Config
	Services *Services
	Hub      *realtime.Hub
	Health   *monitoring.Health
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, errors.New("api: database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, errors.New("api: jwt service must be provided")
	}
	if deps.Config == nil {
		return nil, errors.New("api: config must be provided")
	}

	svc := deps.Services
	if svc == nil {
		built, err := NewServices(deps.DB, deps.JWT, deps.Config, hubPublisher(deps.Hub))
		if err != nil {
			return nil, err
		}
		svc = built
	}

	r := gin.New()

	metricsEndpoint := deps.Config.Monitoring.Prometheus.Endpoint
	if metricsEndpoint == "" {
		metricsEndpoint = "/metrics"
	}

	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics(metricsEndpoint))

	health := deps.Health
	if health == nil {
		health = DefaultHealth(deps.DB, deps.Hub)
	}
	registerHealthRoutes(r, deps.Config, health)

	if deps.Config.Monitoring.Prometheus.Enabled {
		r.GET(metricsEndpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	loginLimit := deps.Config.Auth.LoginRateLimit
	registerAuthRoutes(r, api, handlers.NewAuthHandler(svc.Auth, svc.Users, svc.Permissions),
		middleware.NewRateLimiter(loginLimit.Requests, loginLimit.Window))
	registerPermissionRoutes(api, handlers.NewPermissionHandler(svc.Permissions), svc.Checker)
	registerUserRoutes(api, handlers.NewUserHandler(svc.Users, svc.Assignments), svc.Checker)
	registerCatalogRoutes(api, svc)
	registerPOSRoutes(api, handlers.NewTransactionHandler(svc.Transactions), svc.Checker)
	registerRealtimeRoutes(api, deps.Hub, svc.Checker)
	registerAuditRoutes(api, handlers.NewAuditHandler(svc.Audit), svc.Checker)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

// DefaultHealth registers the probes every deployment has: a liveness probe
// that always passes and readiness probes for the database and realtime hub.
func DefaultHealth(db *gorm.DB, hub *realtime.Hub) *monitoring.Health {
	health := monitoring.NewHealth()
	health.AddLiveness(monitoring.Probe{Name: "process", Run: func(context.Context) monitoring.Result {
		return monitoring.Result{Status: monitoring.StatusUp}
	}})
	health.AddReadiness(monitoring.DatabaseProbe(db, 0))
	if hub != nil {
		health.AddReadiness(monitoring.RealtimeProbe(hub, realtime.StreamPOS, realtime.StreamCatalog))
	}
	return health
}

// hubPublisher keeps a nil *Hub from becoming a non-nil interface value.
func hubPublisher(hub *realtime.Hub) services.EventPublisher {
	if hub == nil {
		return nil
	}
	return hub
}
