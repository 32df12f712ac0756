package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/app"
	"github.com/charlesng35/fratpos/internal/handlers"
	"github.com/charlesng35/fratpos/internal/monitoring"
	appErrors "github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/response"
)

// registerHealthRoutes mounts the probes at the root and under /api. With
// health checks disabled the paths answer 404 in the usual error envelope.
func registerHealthRoutes(r *gin.Engine, cfg *app.Config, health *monitoring.Health) {
	summary, live, ready := probesDisabled, probesDisabled, probesDisabled
	if cfg.Monitoring.Health.Enabled && health != nil {
		h := handlers.NewHealthHandler(health)
		summary, live, ready = h.Summary, h.Live, h.Ready
	}

	for _, group := range []gin.IRoutes{r, r.Group("/api")} {
		group.GET("/health", summary)
		group.GET("/health/live", live)
		group.GET("/health/ready", ready)
	}
}

func probesDisabled(c *gin.Context) {
	response.Error(c, appErrors.ErrNotFound.WithDetails(appErrors.Detail{Field: "monitoring.health_check.enabled", Message: "health checks are disabled"}))
}
