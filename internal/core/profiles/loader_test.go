package profiles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/devstack/internal/core/domain"
)

const profileYAML = `
app_version: 2.4.4
services:
  php:
    version: "8.1"
    image: ghcr.io/example/php
    tag: php-8.1
    extensions:
      xdebug:
        version: 3.1.5
  mariadb:
    version: "10.4"
    image: mariadb
  composer:
    version: "2"
host: shop.local
ssl: true
`

// =============================================================================
// ParseProfile Tests
// =============================================================================

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(profileYAML))
	require.NoError(t, err)

	assert.Equal(t, "2.4.4", p.AppVersion)
	assert.False(t, p.IsDefault)
	assert.Equal(t, "shop.local", p.Host)
	assert.True(t, p.SSL)

	php := p.Services[domain.ServicePHP]
	assert.Equal(t, domain.ServicePHP, php.Kind)
	assert.Equal(t, "php-8.1", php.ImageTag())
	assert.Equal(t, "3.1.5", php.Extensions["xdebug"].Version)
}

func TestParseProfile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", "app_version: [unclosed"},
		{"no services", "app_version: 1.0.0"},
		{"unknown service", "app_version: 1.0.0\nservices:\n  varnish: {version: '6', image: varnish}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidProfile))
		})
	}
}

// =============================================================================
// LoadDir Tests
// =============================================================================

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.4.4.yaml"), []byte(profileYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	r, err := NewBuiltinRegistry()
	require.NoError(t, err)
	require.NoError(t, LoadDir(r, dir))

	assert.Equal(t, []string{"2.4.1-p1", "2.4.3-p2", "2.4.4"}, r.Versions())

	def, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, "2.4.3-p2", def.AppVersion)
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	r, err := NewBuiltinRegistry()
	require.NoError(t, err)

	assert.NoError(t, LoadDir(r, filepath.Join(t.TempDir(), "absent")))
	assert.NoError(t, LoadDir(r, ""))
}

func TestLoadDir_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("app_version: 1.0.0"), 0o644))

	r, err := NewBuiltinRegistry()
	require.NoError(t, err)

	err = LoadDir(r, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yml")
}
