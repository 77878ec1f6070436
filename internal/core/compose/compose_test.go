package compose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/devstack/internal/core/configuration"
	"github.com/artpar/devstack/internal/core/deployment"
	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/profiles"
)

func derivedSpecs(t *testing.T) []domain.ContainerSpec {
	t.Helper()
	r, err := profiles.NewBuiltinRegistry()
	require.NoError(t, err)
	cfg, err := configuration.Compose(r, "2.4.3-p2", "/tpl", domain.Overrides{})
	require.NoError(t, err)
	specs, err := deployment.Derive(deployment.DeriveParams{
		Config:      cfg,
		Project:     "shop",
		ProjectPath: "/src/shop",
		Ports:       domain.DefaultPorts(),
		CacheDir:    "/cache",
	})
	require.NoError(t, err)
	return specs
}

// =============================================================================
// Export Tests
// =============================================================================

func TestExport(t *testing.T) {
	specs := derivedSpecs(t)

	project, err := Export("shop", specs)
	require.NoError(t, err)

	assert.Equal(t, "shop", project.Name)
	assert.Len(t, project.Services, len(specs))
	assert.Contains(t, project.Networks, "shop_network")
	assert.Contains(t, project.Volumes, "shop_mariadb-data")

	search := project.Services["elasticsearch"]
	assert.Equal(t, "elasticsearch:7.16.3", search.Image)
	assert.Equal(t, "shop_elasticsearch", search.ContainerName)

	php := project.Services["php"]
	assert.Contains(t, php.DependsOn, "mariadb")
	assert.Contains(t, php.DependsOn, "redis")
	assert.Contains(t, php.DependsOn, "elasticsearch")
	require.NotNil(t, php.HealthCheck)
	require.NotNil(t, php.HealthCheck.Retries)

	nginx := project.Services["nginx"]
	require.Len(t, nginx.Ports, 1)
	assert.Equal(t, uint32(80), nginx.Ports[0].Target)
	assert.Equal(t, "80", nginx.Ports[0].Published)
}

func TestExport_NoSpecs(t *testing.T) {
	_, err := Export("shop", nil)
	assert.True(t, errors.Is(err, ErrNoSpecs))
}

// =============================================================================
// Round-Trip Tests
// =============================================================================

func TestExportParse_RoundTrip(t *testing.T) {
	specs := derivedSpecs(t)

	project, err := Export("shop", specs)
	require.NoError(t, err)
	data, err := MarshalProject(project)
	require.NoError(t, err)

	parsed, err := Parse(string(data))
	require.NoError(t, err)
	require.Len(t, parsed, len(specs))

	byName := make(map[string]domain.ContainerSpec)
	for _, s := range parsed {
		byName[s.Name] = s
	}
	for _, want := range specs {
		got, ok := byName[want.Name]
		require.True(t, ok, want.Name)
		assert.Equal(t, want.Service, got.Service)
		assert.Equal(t, want.ImageRef(), got.ImageRef())
		if len(want.Env) > 0 {
			assert.Equal(t, want.Env, got.Env, want.Name)
		} else {
			assert.Empty(t, got.Env, want.Name)
		}
		assert.ElementsMatch(t, want.DependsOn, got.DependsOn, want.Name)
		assert.ElementsMatch(t, want.Mounts, got.Mounts, want.Name)
		assert.Equal(t, want.Network, got.Network)
	}

	// Parsed specs come back dependencies first.
	assert.Equal(t, "shop_nginx", parsed[len(parsed)-1].Name)
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_Minimal(t *testing.T) {
	specs, err := Parse(`
services:
  redis:
    image: redis:6.0
    container_name: shop_redis
`)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "shop_redis", specs[0].Name)
	assert.Equal(t, "redis", specs[0].Image)
	assert.Equal(t, "6.0", specs[0].Tag)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"empty", "   ", ErrEmptyInput},
		{"invalid yaml", "services: [unclosed", ErrInvalidYAML},
		{"unknown service", "services:\n  varnish:\n    image: varnish:6", ErrUnknownService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err), err.Error())
		})
	}
}

func TestSplitImage(t *testing.T) {
	tests := []struct{ ref, image, tag string }{
		{"redis:6.0", "redis", "6.0"},
		{"redis", "redis", ""},
		{"ghcr.io/scandipwa/create-magento-app:php-7.4-magento-2.4", "ghcr.io/scandipwa/create-magento-app", "php-7.4-magento-2.4"},
		{"localhost:5000/app", "localhost:5000/app", ""},
	}
	for _, tt := range tests {
		image, tag := splitImage(tt.ref)
		assert.Equal(t, tt.image, image, tt.ref)
		assert.Equal(t, tt.tag, tag, tt.ref)
	}
}
