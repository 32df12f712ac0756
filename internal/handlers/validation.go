package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/response"
	appValidator "github.com/charlesng35/fratpos/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and checks its validate tags.
// On failure it writes a 400 response and returns false.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, validationError(err))
		return false
	}
	return true
}

// validationError turns rule failures into a bad request listing each field.
func validationError(err error) *appErrors.AppError {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return appErrors.NewBadRequest("invalid request payload")
	}

	details := make([]appErrors.Detail, len(failures))
	for i, failure := range failures {
		details[i] = appErrors.Detail{Field: failure.Field, Message: failure.Message()}
	}
	return appErrors.NewBadRequest(failures.Error()).WithDetails(details...)
}

// parseIntQuery reads a positive integer query parameter, falling back when
// the value is missing or malformed.
func parseIntQuery(c *gin.Context, key string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
