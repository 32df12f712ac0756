package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/services"
	"github.com/charlesng35/fratpos/pkg/response"
)

// PermissionHandler serves the permission catalog and role management.
type PermissionHandler struct {
	svc *services.PermissionService
}

func NewPermissionHandler(svc *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{svc: svc}
}

type setRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// GET /api/permissions
func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	response.Success(c, http.StatusOK, h.svc.ListPermissions())
}

// GET /api/roles
func (h *PermissionHandler) ListRoles(c *gin.Context) {
	roles, err := h.svc.ListRoles(requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/roles/:id
func (h *PermissionHandler) GetRole(c *gin.Context) {
	role, err := h.svc.GetRole(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// POST /api/roles
func (h *PermissionHandler) CreateRole(c *gin.Context) {
	var body services.CreateRoleInput
	if !bindAndValidate(c, &body) {
		return
	}
	role, err := h.svc.CreateRole(requestContext(c), body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// PATCH /api/roles/:id
func (h *PermissionHandler) UpdateRole(c *gin.Context) {
	var body services.UpdateRoleInput
	if !bindAndValidate(c, &body) {
		return
	}
	role, err := h.svc.UpdateRole(requestContext(c), c.Param("id"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// DELETE /api/roles/:id
func (h *PermissionHandler) DeleteRole(c *gin.Context) {
	if err := h.svc.DeleteRole(requestContext(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// PUT /api/roles/:id/permissions
func (h *PermissionHandler) SetRolePermissions(c *gin.Context) {
	var body setRolePermissionsRequest
	if !bindAndValidate(c, &body) {
		return
	}
	role, err := h.svc.SetRolePermissions(requestContext(c), c.Param("id"), body.Permissions)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}
