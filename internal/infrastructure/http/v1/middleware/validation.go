package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/adjustment"
	"stockledger/internal/domain/ledger"
)

// SetupValidator configures gin's validator: JSON field names in errors and
// the movement_type / adjustment_type tags.
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

	_ = v.RegisterValidation("movement_type", func(fl validator.FieldLevel) bool {
		return ledger.MovementType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("adjustment_type", func(fl validator.FieldLevel) bool {
		return adjustment.Type(fl.Field().String()).Valid()
	})
}

// BindingError converts a bind/validation failure into a VALIDATION_ERROR
// listing the offending fields.
func BindingError(message string, err error) *apperror.AppError {
	appErr := apperror.NewValidation(message)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErr.WithDetail("error", err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[fieldPath(e)] = validationMessage(e)
	}
	return appErr.WithDetail("fields", fields)
}

// fieldPath drops the top-level struct name: "CreateRequest.items[0].quantity" -> "items[0].quantity".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "uuid":
		return "Invalid UUID format"
	case "min":
		return "Must be at least " + e.Param()
	case "max":
		return "Must be at most " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "movement_type":
		return "Unknown movement type"
	case "adjustment_type":
		return "Must be one of: add subtract set"
	case "nefield":
		return "Must differ from " + e.Param()
	default:
		return "Invalid value"
	}
}
