package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Slugify Tests
// =============================================================================

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"basic", "My Shop", "my-shop"},
		{"already slug", "my-shop", "my-shop"},
		{"uppercase", "STORE", "store"},
		{"version suffix", "shop_2.4.3", "shop-2-4-3"},
		{"collapses separators", "hello   world", "hello-world"},
		{"trims separators", "--Store!!--", "store"},
		{"leading spaces", "  trim me  ", "trim-me"},
		{"punctuation removed", "hello, world.", "hello-world"},
		{"only special chars", "!@#$%^&*()", ""},
		{"empty", "", ""},
		{"unicode removed", "Héllo", "hllo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}
