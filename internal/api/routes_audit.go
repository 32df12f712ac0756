package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/handlers"
	"github.com/charlesng35/fratpos/internal/middleware"
	"github.com/charlesng35/fratpos/internal/permissions"
)

func registerAuditRoutes(api *gin.RouterGroup, handler *handlers.AuditHandler, checker *permissions.Checker) {
	api.GET("/audit", middleware.RequirePermission(checker, permissions.RolesModify), handler.List)
}
