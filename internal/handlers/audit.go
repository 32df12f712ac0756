package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/internal/services"
	appErrors "github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/response"
)

// AuditHandler exposes the audit trail to role administrators.
type AuditHandler struct {
	svc *services.AuditService
}

func NewAuditHandler(svc *services.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// List serves GET /api/audit. The action filter matches by prefix so that
// "transaction." selects every transaction entry.
func (h *AuditHandler) List(c *gin.Context) {
	filters := services.AuditFilters{
		UserID:   c.Query("user_id"),
		Action:   c.Query("action"),
		Result:   c.Query("result"),
		Resource: c.Query("resource"),
	}

	var ok bool
	if filters.Since, ok = timeQuery(c, "since"); !ok {
		return
	}
	if filters.Until, ok = timeQuery(c, "until"); !ok {
		return
	}
	if filters.Since != nil && filters.Until != nil && filters.Until.Before(*filters.Since) {
		response.Error(c, appErrors.NewBadRequest("until must not be before since"))
		return
	}

	opts := services.AuditListOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 50),
		Filters:  filters,
	}
	entries, total, err := h.svc.List(requestContext(c), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, entries, response.NewMeta(opts.Page, opts.PageSize, total))
}

// timeQuery parses an optional RFC 3339 query parameter. A malformed value
// writes a 400 response and reports false.
func timeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(key+" must be an RFC 3339 timestamp").
			WithDetails(appErrors.Detail{Field: key, Message: "expected a value like 2024-01-02T15:04:05Z"}))
		return nil, false
	}
	return &parsed, true
}
