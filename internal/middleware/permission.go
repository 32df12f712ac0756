package middleware

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/permissions"
	"github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/metrics"
	"github.com/charlesng35/fratpos/pkg/response"
)

// RequirePermission checks that the authenticated user holds permission,
// directly or through a permission that implies it.
func RequirePermission(checker *permissions.Checker, permission permissions.Permission) gin.HandlerFunc {
	label := permission.String()
	return func(c *gin.Context) {
		userID := c.GetString(CtxUserIDKey)
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		allowed, err := checker.Check(c.Request.Context(), userID, permission)
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			// token outlived its user
			metrics.PermissionChecks.WithLabelValues(label, "deny").Inc()
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if err != nil {
			metrics.PermissionChecks.WithLabelValues(label, "error").Inc()
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			c.Abort()
			return
		}
		if !allowed {
			metrics.PermissionChecks.WithLabelValues(label, "deny").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		metrics.PermissionChecks.WithLabelValues(label, "allow").Inc()
		c.Next()
	}
}
