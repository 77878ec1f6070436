package profiles

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/devstack/internal/core/domain"
)

func minimalProfile(version string, isDefault bool) domain.Profile {
	return domain.Profile{
		AppVersion: version,
		IsDefault:  isDefault,
		Services: map[domain.ServiceKind]domain.ServiceProfile{
			domain.ServiceMariaDB: {Version: "10.4", Image: "mariadb"},
		},
	}
}

// =============================================================================
// Registry Tests
// =============================================================================

func TestRegistry_LookupDefault(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(minimalProfile("1.0.0", false)))
	require.NoError(t, r.Register(minimalProfile("2.0.0", true)))

	for _, version := range []string{"", DefaultVersion} {
		p, err := r.Lookup(version)
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", p.AppVersion)
	}

	p, err := r.Lookup("1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", p.AppVersion)
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(minimalProfile("1.0.0", true)))

	_, err := r.Lookup("9.9.9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfigNotFound))
}

func TestRegistry_NoDefault(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(minimalProfile("1.0.0", false)))

	_, err := r.Lookup("")
	assert.True(t, errors.Is(err, domain.ErrConfigNotFound))
	assert.True(t, errors.Is(r.Validate(), domain.ErrInvalidProfile))
}

func TestRegistry_SecondDefaultRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(minimalProfile("1.0.0", true)))

	err := r.Register(minimalProfile("2.0.0", true))
	assert.True(t, errors.Is(err, domain.ErrInvalidProfile))

	// Replacing the default itself is allowed.
	require.NoError(t, r.Register(minimalProfile("1.0.0", true)))
	require.NoError(t, r.Validate())
}

func TestRegistry_InvalidProfileRejected(t *testing.T) {
	r := NewRegistry()
	err := r.Register(domain.Profile{AppVersion: "1.0.0"})
	assert.True(t, errors.Is(err, domain.ErrInvalidProfile))
	assert.Empty(t, r.Versions())
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := NewRegistry()
	p := minimalProfile("1.0.0", true)
	p.Services[domain.ServiceMariaDB] = domain.ServiceProfile{
		Version: "10.4", Image: "mariadb", Environment: map[string]string{"A": "1"},
	}
	require.NoError(t, r.Register(p))

	got, err := r.Lookup("1.0.0")
	require.NoError(t, err)
	got.Services[domain.ServiceMariaDB].Environment["A"] = "changed"

	again, err := r.Lookup("1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1", again.Services[domain.ServiceMariaDB].Environment["A"])
}

// =============================================================================
// Builtin Tests
// =============================================================================

func TestNewBuiltinRegistry(t *testing.T) {
	r, err := NewBuiltinRegistry()
	require.NoError(t, err)

	assert.Equal(t, []string{"2.4.1-p1", "2.4.3-p2"}, r.Versions())

	def, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, "2.4.3-p2", def.AppVersion)
	assert.Equal(t, "7.16.3", def.Services[domain.ServiceElasticsearch].Version)
	assert.Equal(t, "2", def.Services[domain.ServiceComposer].Version)
	assert.Equal(t, domain.ServicePHP, def.Services[domain.ServicePHP].Kind)
}
