package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// StackError Tests
// =============================================================================

func TestStackError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *StackError
		expected string
	}{
		{
			name:     "with id",
			err:      NewStackError("Compose", "profile", "9.9.9", "not registered", ErrConfigNotFound),
			expected: "Compose profile 9.9.9: not registered",
		},
		{
			name:     "without id",
			err:      NewStackError("Ping", "engine", "", "connection refused", ErrEngineUnavailable),
			expected: "Ping engine: connection refused",
		},
		{
			name:     "operation only",
			err:      NewStackError("Run", "", "", "boom", nil),
			expected: "Run: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestStackError_Unwrap(t *testing.T) {
	err := fmt.Errorf("start: %w", NewStackError("Wait", "container", "shop-mariadb", "never healthy", ErrReadinessTimeout))

	assert.True(t, errors.Is(err, ErrReadinessTimeout))
	assert.False(t, errors.Is(err, ErrDatabaseWrite))

	var stackErr *StackError
	assert.True(t, errors.As(err, &stackErr))
	assert.Equal(t, "shop-mariadb", stackErr.ID)
}

// =============================================================================
// Remediation Tests
// =============================================================================

func TestRemediationFor(t *testing.T) {
	t.Run("default per kind", func(t *testing.T) {
		err := NewStackError("Ping", "engine", "", "refused", ErrEngineUnavailable)
		assert.Contains(t, RemediationFor(err), "Docker daemon")
	})

	t.Run("attached guidance wins", func(t *testing.T) {
		err := NewStackError("Download", "binary", "composer", "404", ErrBinaryAcquisition).
			WithRemediation("use a mirror")
		assert.Equal(t, "use a mirror", RemediationFor(fmt.Errorf("wrapped: %w", err)))
	})

	t.Run("several kinds pick the first in order", func(t *testing.T) {
		err := fmt.Errorf("%w: %w", ErrDatabaseWrite, ErrEngineUnavailable)
		for i := 0; i < 50; i++ {
			assert.Contains(t, RemediationFor(err), "Docker daemon")
		}
	})

	t.Run("unknown error", func(t *testing.T) {
		assert.Empty(t, RemediationFor(errors.New("something else")))
	})

	t.Run("every fatal kind has guidance", func(t *testing.T) {
		for _, kind := range []error{
			ErrConfigNotFound, ErrEngineUnavailable, ErrBinaryAcquisition,
			ErrVersionConflict, ErrReadinessTimeout, ErrDatabaseWrite,
		} {
			assert.NotEmpty(t, RemediationFor(kind), kind.Error())
		}
	})
}
