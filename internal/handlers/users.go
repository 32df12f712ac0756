package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/middleware"
	"github.com/charlesng35/fratpos/internal/services"
	"github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/response"
)

// UserHandler serves user management, role membership, profiles and obligations.
type UserHandler struct {
	users       *services.UserService
	obligations *services.ObligationService
}

func NewUserHandler(users *services.UserService, obligations *services.ObligationService) *UserHandler {
	return &UserHandler{users: users, obligations: obligations}
}

type changePasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 100)

	filters := services.UserFilters{Query: c.Query("q")}
	switch strings.ToLower(strings.TrimSpace(c.Query("active"))) {
	case "true", "1":
		active := true
		filters.Active = &active
	case "false", "0":
		active := false
		filters.Active = &active
	}

	users, total, err := h.users.List(requestContext(c), services.ListUsersOptions{Page: page, PageSize: per, Filters: filters})
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, users, response.NewMeta(page, per, total))
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// GET /api/users/me
func (h *UserHandler) Me(c *gin.Context) {
	email := c.GetString(middleware.CtxEmailKey)
	if email == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	user, err := h.users.GetByEmail(requestContext(c), email)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// GET /api/users/:id/stat
func (h *UserHandler) Stat(c *gin.Context) {
	stats, err := h.users.Stats(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var body services.CreateUserInput
	if !bindAndValidate(c, &body) {
		return
	}
	user, err := h.users.Create(requestContext(c), body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// POST /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var body services.UpdateUserInput
	if !bindAndValidate(c, &body) {
		return
	}
	user, err := h.users.Update(requestContext(c), c.Param("id"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(requestContext(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/users/:id/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var body changePasswordRequest
	if !bindAndValidate(c, &body) {
		return
	}
	if err := h.users.ChangePassword(requestContext(c), c.Param("id"), body.Password); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// PUT /api/users/:id/role/:roleId
func (h *UserHandler) AddRole(c *gin.Context) {
	user, err := h.users.AddRole(requestContext(c), c.Param("id"), c.Param("roleId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// DELETE /api/users/:id/role/:roleId
func (h *UserHandler) RemoveRole(c *gin.Context) {
	user, err := h.users.RemoveRole(requestContext(c), c.Param("id"), c.Param("roleId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /api/users/:id/userprofile
func (h *UserHandler) CreateProfile(c *gin.Context) {
	var body services.ProfileInput
	if !bindAndValidate(c, &body) {
		return
	}
	profile, err := h.users.CreateProfile(requestContext(c), c.Param("id"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, profile)
}

// POST /api/users/:id/userprofile/:profileId
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var body services.ProfileInput
	if !bindAndValidate(c, &body) {
		return
	}
	profile, err := h.users.UpdateProfile(requestContext(c), c.Param("id"), c.Param("profileId"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// GET /api/users/:id/obligation
func (h *UserHandler) ListObligations(c *gin.Context) {
	if _, err := h.users.GetByID(requestContext(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	items, err := h.obligations.ListForUser(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// POST /api/users/:id/obligation/:obligationId
func (h *UserHandler) AssignObligation(c *gin.Context) {
	h.assignObligation(c, false)
}

// POST /api/users/:id/obligation/:obligationId/recurring
func (h *UserHandler) AssignRecurringObligation(c *gin.Context) {
	h.assignObligation(c, true)
}

func (h *UserHandler) assignObligation(c *gin.Context, recurring bool) {
	var body services.AssignObligationInput
	if c.Request.ContentLength != 0 {
		if !bindAndValidate(c, &body) {
			return
		}
	}

	assign := h.obligations.Assign
	if recurring {
		assign = h.obligations.AssignRecurring
	}
	item, err := assign(requestContext(c), c.Param("id"), c.Param("obligationId"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, item)
}
