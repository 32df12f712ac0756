package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/handlers"
	"github.com/charlesng35/fratpos/internal/middleware"
	"github.com/charlesng35/fratpos/internal/permissions"
	"github.com/charlesng35/fratpos/internal/realtime"
)

func registerPOSRoutes(api *gin.RouterGroup, handler *handlers.TransactionHandler, checker *permissions.Checker) {
	view := middleware.RequirePermission(checker, permissions.PosView)
	modify := middleware.RequirePermission(checker, permissions.PosModify)

	api.GET("/posdata", view, handler.PosData)

	txns := api.Group("/transaction")
	{
		txns.GET("", view, handler.List)
		txns.POST("", view, handler.Create)
		txns.GET("/:id", view, handler.Get)
		txns.POST("/:id/invalidate", modify, handler.Invalidate)
	}
}

func registerRealtimeRoutes(api *gin.RouterGroup, hub *realtime.Hub, checker *permissions.Checker) {
	handler := handlers.NewRealtimeHandler(hub, realtime.StreamPOS, realtime.StreamCatalog)
	api.GET("/ws", middleware.RequirePermission(checker, permissions.PosView), handler.Stream)
}
