package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/middleware"
	"github.com/charlesng35/fratpos/internal/models"
	"github.com/charlesng35/fratpos/internal/permissions"
	"github.com/charlesng35/fratpos/internal/services"
	"github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/response"
)

// AuthHandler manages password login and the current-user lookup.
type AuthHandler struct {
	auth  *services.AuthService
	users *services.UserService
	perms *services.PermissionService
}

func NewAuthHandler(auth *services.AuthService, users *services.UserService, perms *services.PermissionService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, perms: perms}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"`
	User        *models.User `json:"user"`
}

type meResponse struct {
	User        *models.User             `json:"user"`
	Permissions []permissions.Permission `json:"permissions"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, loginResponse{
		AccessToken: result.Token,
		ExpiresIn:   int(time.Until(result.ExpiresAt).Seconds()),
		User:        result.User,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		if errors.FromError(err).StatusCode == http.StatusNotFound {
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		writeError(c, err)
		return
	}

	perms, err := h.perms.ListUserPermissions(requestContext(c), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, meResponse{User: user, Permissions: perms})
}
