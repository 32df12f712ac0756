package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/logger"
	"github.com/charlesng35/fratpos/pkg/response"
)

// Recovery turns a handler panic into a 500 envelope. http.ErrAbortHandler is
// re-raised so the server can drop the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(recovered)
			}

			logger.WithModule("http").Error("handler panic",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(CtxRequestIDKey)),
				zap.Any("panic", recovered),
				zap.Stack("stack"),
			)
			if !c.Writer.Written() {
				response.Error(c, appErrors.ErrInternalServer)
			}
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with a ROUTE_NOT_FOUND envelope.
func NotFoundHandler(c *gin.Context) {
	msg := fmt.Sprintf("route %s not found", c.Request.URL.Path)
	response.Error(c, appErrors.New("ROUTE_NOT_FOUND", msg, http.StatusNotFound))
}
