package core

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"quickai/internal/types"
)

// Validator wraps go-playground/validator and translates its errors into
// AppErrors with per-field details suitable for API responses.
type Validator struct {
	validate *validator.Validate
}

// NewValidator constructs a Validator with struct-tag validation enabled.
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// ValidateStruct validates a decoded request body. On failure it returns an AppError
// whose Details map lists each invalid field and a human-readable reason;
// missing required fields get the dedicated missing-field code so clients can
// distinguish them from format problems.
func (v *Validator) ValidateStruct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	details := make(map[string]any, len(verrs))
	code := types.ErrCodeValidationFieldFormat
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			code = types.ErrCodeValidationMissingField
			details[field] = "this field is required"
			continue
		}
		details[field] = fieldMessage(fe)
	}

	return types.NewAppErrorWithDetails(code, "Request validation failed", err, details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
