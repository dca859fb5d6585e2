package validator

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var productCodeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Validator validates the given struct.
type Validator interface {
	Validate(s any) error
}

type DefaultValidator struct {
	v *validator.Validate
}

// NewDefaultValidator creates a new default validator with the custom
// validations registered. It returns an error if registration fails.
func NewDefaultValidator() (*DefaultValidator, error) {
	v := validator.New()

	if err := v.RegisterValidation("productcode", validateProductCode); err != nil {
		return nil, fmt.Errorf("register productcode validator: %w", err)
	}

	return &DefaultValidator{v: v}, nil
}

func (v DefaultValidator) Validate(s any) error {
	return v.v.Struct(s)
}

// IsValidationError checks if the given error is a validation error
func IsValidationError(err error) bool {
	_, ok := err.(validator.ValidationErrors)
	return ok
}

func ValidationErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "productcode":
		return "must be a valid product code"
	default:
		return "is invalid"
	}
}

// validateProductCode accepts codes like "P100" or "sku-42": alphanumeric
// with optional dashes or underscores after the first character.
func validateProductCode(fl validator.FieldLevel) bool {
	return productCodeRegex.MatchString(fl.Field().String())
}
