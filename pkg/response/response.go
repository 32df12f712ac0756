// Package response writes the JSON envelope shared by every API endpoint:
//
//	{"success": true, "data": ..., "meta": {...}}
//	{"success": false, "error": {"code": "...", "message": "...", "details": [...]}}
package response

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/fratpos/pkg/errors"
)

// Response is the envelope.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo is the client-facing part of an AppError.
type ErrorInfo struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Details []appErrors.Detail `json:"details,omitempty"`
}

// Meta carries pagination for list endpoints.
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// NewMeta fills TotalPages from total and perPage.
func NewMeta(page, perPage int, total int64) *Meta {
	meta := &Meta{Page: page, PerPage: perPage, Total: int(total)}
	if perPage > 0 {
		meta.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return meta
}

// Success writes data with the given status.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Success: true, Data: data})
}

// SuccessWithMeta writes data plus pagination metadata.
func SuccessWithMeta(c *gin.Context, statusCode int, data any, meta *Meta) {
	c.JSON(statusCode, Response{Success: true, Data: data, Meta: meta})
}

// Error renders err. Errors that are not AppErrors are reported as internal
// server errors without leaking their text.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}
	appErr := appErrors.FromError(err)

	c.JSON(appErrors.StatusOf(appErr), Response{
		Error: &ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}
