package configuration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/profiles"
)

func builtinRegistry(t *testing.T) *profiles.Registry {
	t.Helper()
	r, err := profiles.NewBuiltinRegistry()
	require.NoError(t, err)
	return r
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// =============================================================================
// Compose Tests
// =============================================================================

func TestCompose_Default(t *testing.T) {
	cfg, err := Compose(builtinRegistry(t), "default", "/tpl", domain.Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "2.4.3-p2", cfg.AppVersion)
	assert.Equal(t, "localhost", cfg.Host)
	assert.False(t, cfg.SSL)
	assert.Equal(t, "/tpl", cfg.TemplateDir)
	assert.Equal(t, "/tpl/nginx.template.conf", cfg.Services[domain.ServiceNginx].Templates["nginx"])
}

func TestCompose_EveryServiceOnce(t *testing.T) {
	r := builtinRegistry(t)
	profile, err := r.Lookup("2.4.3-p2")
	require.NoError(t, err)

	cfg, err := Compose(r, "2.4.3-p2", "", domain.Overrides{})
	require.NoError(t, err)

	assert.Len(t, cfg.Services, len(profile.Services))
	for kind, svc := range cfg.Services {
		assert.Equal(t, kind, svc.Kind)
	}
}

func TestCompose_UnknownVersion(t *testing.T) {
	_, err := Compose(builtinRegistry(t), "9.9.9", "", domain.Overrides{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfigNotFound))
}

func TestCompose_NoDefault(t *testing.T) {
	r := profiles.NewRegistry()
	require.NoError(t, r.Register(domain.Profile{
		AppVersion: "1.0.0",
		Services:   map[domain.ServiceKind]domain.ServiceProfile{domain.ServiceRedis: {Version: "6", Image: "redis"}},
	}))

	_, err := Compose(r, "", "", domain.Overrides{})
	assert.True(t, errors.Is(err, domain.ErrConfigNotFound))
}

func TestCompose_ScalarOverrides(t *testing.T) {
	cfg, err := Compose(builtinRegistry(t), "", "", domain.Overrides{
		Host:  strPtr("shop.ngrok.io"),
		SSL:   boolPtr(true),
		Ports: domain.Ports{App: 8080},
	})
	require.NoError(t, err)

	assert.Equal(t, "shop.ngrok.io", cfg.Host)
	assert.True(t, cfg.SSL)
	assert.Equal(t, 8080, cfg.Ports.App)
}

func TestCompose_EmptyHostKeepsProfileHost(t *testing.T) {
	cfg, err := Compose(builtinRegistry(t), "", "", domain.Overrides{Host: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
}

func TestCompose_ExtensionMergeOverrideWins(t *testing.T) {
	r := builtinRegistry(t)
	cfg, err := Compose(r, "2.4.3-p2", "", domain.Overrides{
		Services: map[domain.ServiceKind]domain.ServiceOverride{
			domain.ServicePHP: {
				Extensions: map[string]domain.Extension{
					"xdebug":  {Version: "3.2.1"},
					"mongodb": {Version: "1.12"},
				},
			},
		},
	})
	require.NoError(t, err)

	php := cfg.Services[domain.ServicePHP]
	assert.Equal(t, "3.2.1", php.Extensions["xdebug"].Version)
	assert.Empty(t, php.Extensions["xdebug"].Options, "shallow merge replaces the whole extension entry")
	assert.Contains(t, php.Extensions, "mongodb")
	assert.Contains(t, php.Extensions, "intl")

	// The registry copy is untouched.
	again, err := r.Lookup("2.4.3-p2")
	require.NoError(t, err)
	assert.Equal(t, "3.1.2", again.Services[domain.ServicePHP].Extensions["xdebug"].Version)
	assert.NotContains(t, again.Services[domain.ServicePHP].Extensions, "mongodb")
}

func TestCompose_ImageOverride(t *testing.T) {
	cfg, err := Compose(builtinRegistry(t), "", "", domain.Overrides{
		Services: map[domain.ServiceKind]domain.ServiceOverride{
			domain.ServiceElasticsearch: {Image: "opensearchproject/opensearch", Version: "1.2.4"},
		},
	})
	require.NoError(t, err)

	search := cfg.Services[domain.ServiceElasticsearch]
	assert.Equal(t, "opensearchproject/opensearch:1.2.4", search.ImageRef())
}

// =============================================================================
// MergeService Tests
// =============================================================================

func TestMergeService_Environment(t *testing.T) {
	base := domain.ServiceProfile{Environment: map[string]string{"A": "1", "B": "2"}}
	merged := MergeService(base, domain.ServiceOverride{Environment: map[string]string{"B": "3", "C": "4"}})

	assert.Equal(t, map[string]string{"A": "1", "B": "3", "C": "4"}, merged.Environment)
	assert.Equal(t, "2", base.Environment["B"])
}
