package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/permitflow/backend/internal/interfaces/http/dto"
)

// SetupValidator reports JSON field names in validation errors
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
}

// ValidationDetails converts binding errors into per-field details. Errors
// that are not validator errors (malformed JSON) yield nil.
func ValidationDetails(err error) []dto.ValidationDetail {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make([]dto.ValidationDetail, 0, len(validationErrors))
	for _, e := range validationErrors {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return details
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "datetime":
		return "Must be a date in format " + e.Param()
	default:
		return "Invalid value"
	}
}
