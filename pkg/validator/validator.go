// Package validator wraps go-playground/validator with the rules and field
// naming used by request payloads.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// FieldError is a single failed rule on a payload field. Field uses the json name.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Message renders the failure for API consumers.
func (f FieldError) Message() string {
	field := strings.ToLower(strings.ReplaceAll(f.Field, "_", " "))
	if field == "" {
		field = "field"
	}

	switch f.Tag {
	case "required":
		return field + " is required"
	case "notblank":
		return field + " must not be blank"
	case "email":
		return field + " must be a valid email address"
	case "uuid", "uuid4":
		return field + " must be a valid UUID"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, f.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, f.Param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, f.Param)
	case "gte":
		return fmt.Sprintf("%s must not be less than %s", field, f.Param)
	}
	if f.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", field, f.Tag, f.Param)
	}
	return fmt.Sprintf("%s failed %s", field, f.Tag)
}

// ValidationErrors collects every failed rule of one payload.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(v))
	for i, failure := range v {
		messages[i] = failure.Message()
	}
	return strings.Join(messages, "; ")
}

// ValidateStruct runs the `validate` tags of s. Rule failures are returned as
// ValidationErrors; anything else (for example a nil pointer) is returned as is.
func ValidateStruct(s any) error {
	return convert(instance().Struct(s), "")
}

// ValidateVar checks a single value against a tag expression such as "required,email".
func ValidateVar(value any, tag string) error {
	return convert(instance().Var(value, tag), "value")
}

// RegisterValidation adds a custom rule.
func RegisterValidation(tag string, fn validator.Func) error {
	return instance().RegisterValidation(tag, fn)
}

func convert(err error, field string) error {
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	failures := make(ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		name := field
		if name == "" {
			name = fe.Field()
		}
		failures = append(failures, FieldError{Field: name, Tag: fe.Tag(), Param: fe.Param()})
	}
	return failures
}

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return true
			}
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}
