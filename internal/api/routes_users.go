package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/handlers"
	"github.com/charlesng35/fratpos/internal/middleware"
	"github.com/charlesng35/fratpos/internal/permissions"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler, checker *permissions.Checker) {
	view := middleware.RequirePermission(checker, permissions.UsersView)
	modify := middleware.RequirePermission(checker, permissions.UsersModify)

	users := api.Group("/users")
	{
		users.GET("", view, handler.List)
		users.POST("", modify, handler.Create)
		users.GET("/me", view, handler.Me)
		users.GET("/:id", view, handler.Get)
		users.POST("/:id", modify, handler.Update)
		users.DELETE("/:id", modify, handler.Delete)
		users.GET("/:id/stat", view, handler.Stat)
		users.POST("/:id/password", modify, handler.ChangePassword)
		users.PUT("/:id/role/:roleId", modify, handler.AddRole)
		users.DELETE("/:id/role/:roleId", modify, handler.RemoveRole)
		users.POST("/:id/userprofile", modify, handler.CreateProfile)
		users.POST("/:id/userprofile/:profileId", modify, handler.UpdateProfile)
		users.GET("/:id/obligation", view, handler.ListObligations)
		users.POST("/:id/obligation/:obligationId", modify, handler.AssignObligation)
		users.POST("/:id/obligation/:obligationId/recurring", modify, handler.AssignRecurringObligation)
	}
}
