package middleware

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/auditctx"
	iauth "github.com/charlesng35/fratpos/internal/auth"
	"github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxEmailKey  = "userEmail"
)

var errTokenExpired = errors.New("TOKEN_EXPIRED", "Access token expired", http.StatusUnauthorized)

// Auth enforces JWT authentication using the supplied JWT service. Websocket
// upgrades may pass the token as the "token" query parameter.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			deny(c, errors.ErrUnauthorized)
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if stderrors.Is(err, iauth.ErrTokenExpired) {
			deny(c, errTokenExpired)
			return
		}
		if err != nil {
			deny(c, errors.ErrUnauthorized)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxEmailKey, claims.Email)

		ctx := auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			UserID:    claims.UserID,
			Email:     claims.Email,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: c.GetString(CtxRequestIDKey),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func deny(c *gin.Context, err *errors.AppError) {
	c.Header("WWW-Authenticate", `Bearer realm="fratpos"`)
	response.Error(c, err)
	c.Abort()
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if c.IsWebsocket() {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}
