package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/logger"
	"github.com/charlesng35/fratpos/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// writeError renders err and logs failures that are not the client's fault.
func writeError(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.WithModule("api").Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	response.Error(c, appErr)
}
