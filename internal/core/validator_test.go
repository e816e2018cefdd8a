package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickai/internal/types"
)

type validatedRequest struct {
	Prompt string `json:"prompt" validate:"required,max=20"`
	Length string `json:"length" validate:"omitempty,oneof=short long"`
}

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.ValidateStruct(validatedRequest{Prompt: "hello", Length: "short"}))
	require.NoError(t, v.ValidateStruct(validatedRequest{Prompt: "hello"}))
}

func TestValidateStruct_MissingRequiredField(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(validatedRequest{})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.Contains(t, appErr.Details, "prompt")
}

func TestValidateStruct_OneOfViolation(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(validatedRequest{Prompt: "hello", Length: "medium"})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationFieldFormat, appErr.Code)
	assert.Contains(t, appErr.Details["length"], "short long")
}

func TestValidateStruct_MaxViolation(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(validatedRequest{Prompt: "this prompt is far too long for the limit"})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details, "prompt")
}
