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
			name:     "error without cause",
			err:      NewNotFoundError("holder"),
			expected: "[NOT_FOUND] holder not found",
		},
		{
			name:     "error with cause",
			err:      NewNetworkError("dial failed", fmt.Errorf("connection refused")),
			expected: "[NETWORK] dial failed: connection refused",
		},
		{
			name:     "license error",
			err:      NewLicenseError("lease table rejected request", nil),
			expected: "[LICENSE] lease table rejected request",
		},
		{
			name:     "config error with cause",
			err:      NewConfigError("roster unreadable", fmt.Errorf("no such file")),
			expected: "[CONFIG] roster unreadable: no such file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewParsingError("bad frame payload", cause)

	require.ErrorIs(t, err, cause)

	var appErr *AppError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &appErr)
	assert.Equal(t, ErrTypeParsing, appErr.Type)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewValidationError("holder name empty").
		WithContext("holder", "").
		WithContext("remote_addr", "127.0.0.1:54021")

	assert.Equal(t, "", err.Context["holder"])
	assert.Equal(t, "127.0.0.1:54021", err.Context["remote_addr"])
}

func TestAppError_WithContext_NilMap(t *testing.T) {
	err := &AppError{Type: ErrTypeNetwork, Message: "reset"}
	err = err.WithContext("attempt", 3)
	assert.Equal(t, 3, err.Context["attempt"])
}
