// Package validate wraps go-playground/validator and maps failures to apperr.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"complaint_triage/core/domain"
	"complaint_triage/pkg/apperr"
)

var (
	instance *validator.Validate
	once     sync.Once
)

// Get returns the shared validator with the custom tags registered.
func Get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// report json names instead of Go field names
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("complaint_status", func(fl validator.FieldLevel) bool {
			return domain.ComplaintStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("team", func(fl validator.FieldLevel) bool {
			return domain.Team(fl.Field().String()).Valid()
		})
		instance = v
	})
	return instance
}

// Struct validates s. A missing required field is reported as MISSING_FIELD
// for the first such field; anything else becomes VALIDATION_FAILED with
// one detail entry per field.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.ValidationFailed(err.Error())
	}

	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return apperr.MissingField(fe.Field())
		}
	}

	appErr := apperr.ValidationFailed("request validation failed")
	for _, fe := range verrs {
		appErr.WithDetail(fe.Field(), describe(fe))
	}
	return appErr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "complaint_status":
		return "must be one of New, In Progress, Assigned, Resolved"
	case "team":
		return "must be an assignable team"
	}
	return "failed " + fe.Tag() + " check"
}
