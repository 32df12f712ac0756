package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/handlers"
	"github.com/charlesng35/fratpos/internal/middleware"
)

// registerAuthRoutes mounts login outside the authenticated group. A nil
// limiter leaves login unthrottled.
func registerAuthRoutes(engine *gin.Engine, api *gin.RouterGroup, handler *handlers.AuthHandler, limiter *middleware.RateLimiter) {
	engine.POST("/api/auth/login", middleware.RateLimit(limiter), handler.Login)
	api.GET("/auth/me", handler.Me)
}
