package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/services"
	"github.com/charlesng35/fratpos/pkg/response"
)

// CRUDHandler exposes a services.Resource as list/get/create/update/delete endpoints.
type CRUDHandler[T any, C any, U any] struct {
	svc services.Resource[T, C, U]
}

// NewCRUDHandler constructs a CRUDHandler.
func NewCRUDHandler[T any, C any, U any](svc services.Resource[T, C, U]) *CRUDHandler[T, C, U] {
	return &CRUDHandler[T, C, U]{svc: svc}
}

// GET /api/<resource>
func (h *CRUDHandler[T, C, U]) List(c *gin.Context) {
	items, err := h.svc.List(requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	response.Success(c, http.StatusOK, items)
}

// GET /api/<resource>/:id
func (h *CRUDHandler[T, C, U]) Get(c *gin.Context) {
	item, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}

// POST /api/<resource>
func (h *CRUDHandler[T, C, U]) Create(c *gin.Context) {
	var body C
	if !bindAndValidate(c, &body) {
		return
	}
	item, err := h.svc.Create(requestContext(c), body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, item)
}

// PATCH /api/<resource>/:id
func (h *CRUDHandler[T, C, U]) Update(c *gin.Context) {
	var body U
	if !bindAndValidate(c, &body) {
		return
	}
	item, err := h.svc.Update(requestContext(c), c.Param("id"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}

// DELETE /api/<resource>/:id
func (h *CRUDHandler[T, C, U]) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
