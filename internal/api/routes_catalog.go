package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/handlers"
	"github.com/charlesng35/fratpos/internal/middleware"
	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/permissions"
	"github.com/charlesng35/fratpos/internal/services"
)

// crudRoutes is the subset of CRUDHandler methods a resource group mounts.
type crudRoutes interface {
	List(*gin.Context)
	Get(*gin.Context)
	Create(*gin.Context)
	Update(*gin.Context)
	Delete(*gin.Context)
}

func registerCatalogRoutes(api *gin.RouterGroup, svc *Services) {
	checker := svc.Checker

	registerCRUD(api.Group("/product"), handlers.NewCRUDHandler[models.Product, services.ProductInput, services.ProductPatch](svc.Products),
		middleware.RequirePermission(checker, permissions.PosView),
		middleware.RequirePermission(checker, permissions.PosModify))
	registerCRUD(api.Group("/status"), handlers.NewCRUDHandler[models.Status, services.StatusInput, services.StatusPatch](svc.Statuses),
		middleware.RequirePermission(checker, permissions.PosView),
		middleware.RequirePermission(checker, permissions.PosModify))
	registerCRUD(api.Group("/paytype"), handlers.NewCRUDHandler[models.Paytype, services.PaytypeInput, services.PaytypePatch](svc.Paytypes),
		middleware.RequirePermission(checker, permissions.PosView),
		middleware.RequirePermission(checker, permissions.PosModify))
	registerCRUD(api.Group("/obligation"), handlers.NewCRUDHandler[models.Obligation, services.ObligationInput, services.ObligationPatch](svc.Obligations),
		middleware.RequirePermission(checker, permissions.UsersView),
		middleware.RequirePermission(checker, permissions.UsersModify))

	// Terminals leave feedback; reading it is an administrative task.
	feedback := handlers.NewCRUDHandler[models.Feedback, services.FeedbackInput, services.FeedbackPatch](svc.Feedback)
	posView := middleware.RequirePermission(checker, permissions.PosView)
	posModify := middleware.RequirePermission(checker, permissions.PosModify)
	group := api.Group("/feedback")
	{
		group.GET("", posModify, feedback.List)
		group.POST("", posView, feedback.Create)
		group.GET("/:id", posModify, feedback.Get)
		group.POST("/:id", posModify, feedback.Update)
		group.DELETE("/:id", posModify, feedback.Delete)
	}
}

func registerCRUD(group *gin.RouterGroup, handler crudRoutes, view, modify gin.HandlerFunc) {
	group.GET("", view, handler.List)
	group.POST("", modify, handler.Create)
	group.GET("/:id", view, handler.Get)
	group.POST("/:id", modify, handler.Update)
	group.PATCH("/:id", modify, handler.Update)
	group.DELETE("/:id", modify, handler.Delete)
}
