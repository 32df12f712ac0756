package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/monitoring"
)

// HealthHandler serves liveness and readiness reports.
type HealthHandler struct {
	health *monitoring.Health
}

func NewHealthHandler(health *monitoring.Health) *HealthHandler {
	return &HealthHandler{health: health}
}

// GET /health
func (h *HealthHandler) Summary(c *gin.Context) {
	report := h.health.Ready(requestContext(c))
	c.JSON(statusFor(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checked_at": time.Now().UTC(),
	})
}

// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	writeHealthReport(c, h.health.Live(requestContext(c)))
}

// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	writeHealthReport(c, h.health.Ready(requestContext(c)))
}

func writeHealthReport(c *gin.Context, report monitoring.Report) {
	c.JSON(statusFor(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	})
}

// statusFor answers 503 only when a component is down; degraded still serves traffic.
func statusFor(report monitoring.Report) int {
	if report.Status == monitoring.StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
