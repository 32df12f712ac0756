package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/services"
	"github.com/charlesng35/fratpos/pkg/response"
)

// TransactionHandler serves the POS terminal endpoints.
type TransactionHandler struct {
	svc *services.TransactionService
}

func NewTransactionHandler(svc *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// GET /api/posdata
func (h *TransactionHandler) PosData(c *gin.Context) {
	data, err := h.svc.PosData(requestContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, data)
}

// GET /api/transaction
func (h *TransactionHandler) List(c *gin.Context) {
	items, err := h.svc.List(requestContext(c), services.TransactionFilter{
		UserID: c.Query("user_id"),
		Limit:  parseIntQuery(c, "limit", 0),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// GET /api/transaction/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	txn, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, txn)
}

// POST /api/transaction
func (h *TransactionHandler) Create(c *gin.Context) {
	var body services.TransactionInput
	if !bindAndValidate(c, &body) {
		return
	}
	txn, err := h.svc.Create(requestContext(c), body)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, txn)
}

// POST /api/transaction/:id/invalidate
func (h *TransactionHandler) Invalidate(c *gin.Context) {
	txn, err := h.svc.Invalidate(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, txn)
}
