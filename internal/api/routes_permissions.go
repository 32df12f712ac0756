package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/handlers"
	"github.com/charlesng35/fratpos/internal/middleware"
	"github.com/charlesng35/fratpos/internal/permissions"
)

func registerPermissionRoutes(api *gin.RouterGroup, handler *handlers.PermissionHandler, checker *permissions.Checker) {
	view := middleware.RequirePermission(checker, permissions.RolesView)
	modify := middleware.RequirePermission(checker, permissions.RolesModify)

	api.GET("/permissions", view, handler.ListPermissions)

	roles := api.Group("/roles")
	{
		roles.GET("", view, handler.ListRoles)
		roles.POST("", modify, handler.CreateRole)
		roles.GET("/:id", view, handler.GetRole)
		roles.PATCH("/:id", modify, handler.UpdateRole)
		roles.DELETE("/:id", modify, handler.DeleteRole)
		roles.PUT("/:id/permissions", modify, handler.SetRolePermissions)
	}
}
