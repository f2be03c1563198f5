package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewValidationError("horizon must be positive, got %d", 0),
			expected: "[VALIDATION] horizon must be positive, got 0",
		},
		{
			name:     "with cause",
			err:      NewParsingError("read banks file", fmt.Errorf("unexpected EOF")),
			expected: "[PARSING] read banks file: unexpected EOF",
		},
		{
			name:     "arithmetic",
			err:      NewArithmeticError("RWA must be positive, got %g", -1.0),
			expected: "[ARITHMETIC] RWA must be positive, got -1",
		},
		{
			name:     "alignment",
			err:      NewAlignmentError("no overlapping quarters"),
			expected: "[ALIGNMENT] no overlapping quarters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestNewLookupError_ListsSortedKeys(t *testing.T) {
	err := NewLookupError("regressor columns", "unemployment_rate", "gdp_growth")

	assert.Equal(t, "[LOOKUP] missing regressor columns: gdp_growth, unemployment_rate", err.Error())
	assert.Equal(t, []string{"gdp_growth", "unemployment_rate"}, err.Context["missing"])
}

func TestIsType(t *testing.T) {
	base := NewLookupError("bank", "Barclays")
	wrapped := fmt.Errorf("trough summary: %w", base)

	assert.True(t, IsType(wrapped, ErrTypeLookup))
	assert.False(t, IsType(wrapped, ErrTypeValidation))
	assert.False(t, IsType(errors.New("plain"), ErrTypeLookup))
	assert.Equal(t, ErrTypeLookup, TypeOf(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("write trough_summary.csv", cause)

	require.True(t, errors.Is(err, cause))

	var appErr *AppError
	require.True(t, errors.As(fmt.Errorf("report: %w", err), &appErr))
	assert.Equal(t, ErrTypeStorage, appErr.Type)
}

func TestAppError_WithContext(t *testing.T) {
	err := &AppError{Type: ErrTypeConfig, Message: "bad"}
	err.WithContext("bank", "HSBC").WithContext("field", "lgd")

	assert.Equal(t, "HSBC", err.Context["bank"])
	assert.Equal(t, "lgd", err.Context["field"])
}
