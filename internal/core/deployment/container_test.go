package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/devstack/internal/core/configuration"
	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/profiles"
)

func composeBuiltin(t *testing.T, version string, overrides domain.Overrides) domain.EffectiveConfiguration {
	t.Helper()
	r, err := profiles.NewBuiltinRegistry()
	require.NoError(t, err)
	cfg, err := configuration.Compose(r, version, "/tpl", overrides)
	require.NoError(t, err)
	return cfg
}

func specByService(specs []domain.ContainerSpec, kind domain.ServiceKind) (domain.ContainerSpec, bool) {
	for _, s := range specs {
		if s.Service == kind {
			return s, true
		}
	}
	return domain.ContainerSpec{}, false
}

// =============================================================================
// Derive Tests
// =============================================================================

func TestDerive_RoundTripSearchTag(t *testing.T) {
	cfg := composeBuiltin(t, "2.4.3-p2", domain.Overrides{})

	specs, err := Derive(DeriveParams{Config: cfg, Project: "shop", Ports: domain.DefaultPorts()})
	require.NoError(t, err)

	search, ok := specByService(specs, domain.ServiceElasticsearch)
	require.True(t, ok)
	assert.Equal(t, cfg.Services[domain.ServiceElasticsearch].Version, search.Tag)
	assert.Equal(t, "7.16.3", search.Tag)
	assert.Equal(t, "elasticsearch:7.16.3", search.ImageRef())
}

func TestDerive_NamesUnique(t *testing.T) {
	ssl := true
	for _, version := range []string{"2.4.1-p1", "2.4.3-p2"} {
		for _, overrides := range []domain.Overrides{{}, {SSL: &ssl}} {
			cfg := composeBuiltin(t, version, overrides)
			specs, err := Derive(DeriveParams{Config: cfg, Project: "shop", Ports: domain.DefaultPorts()})
			require.NoError(t, err)

			seen := make(map[string]bool)
			for _, s := range specs {
				assert.False(t, seen[s.Name], "duplicate name %s", s.Name)
				seen[s.Name] = true
			}
		}
	}
}

func TestDerive_OneSpecPerContainerService(t *testing.T) {
	cfg := composeBuiltin(t, "", domain.Overrides{})
	specs, err := Derive(DeriveParams{Config: cfg, Project: "shop", Ports: domain.DefaultPorts()})
	require.NoError(t, err)

	_, hasComposer := specByService(specs, domain.ServiceComposer)
	assert.False(t, hasComposer)
	_, hasSSL := specByService(specs, domain.ServiceSSLTerminator)
	assert.False(t, hasSSL, "ssl terminator only runs with ssl enabled")
	assert.Len(t, specs, 6)
}

func TestDerive_SSLTerminator(t *testing.T) {
	ssl := true
	cfg := composeBuiltin(t, "", domain.Overrides{SSL: &ssl})
	specs, err := Derive(DeriveParams{Config: cfg, Project: "shop", Ports: domain.DefaultPorts(), CacheDir: "/cache"})
	require.NoError(t, err)

	term, ok := specByService(specs, domain.ServiceSSLTerminator)
	require.True(t, ok)
	assert.Equal(t, []string{"shop_nginx"}, term.DependsOn)
	assert.Equal(t, "shop_ssl-terminator", specs[len(specs)-1].Name)
	require.Len(t, term.Mounts, 1)
	assert.Equal(t, "/cache/ssl-terminator/ssl-terminator.conf", term.Mounts[0].Source)
}

func TestDerive_OrderAndDependencies(t *testing.T) {
	cfg := composeBuiltin(t, "", domain.Overrides{})
	specs, err := Derive(DeriveParams{Config: cfg, Project: "shop", Ports: domain.DefaultPorts()})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"shop_elasticsearch", "shop_maildev", "shop_mariadb", "shop_redis", "shop_php", "shop_nginx",
	}, names(specs))

	php, _ := specByService(specs, domain.ServicePHP)
	assert.ElementsMatch(t, []string{"shop_mariadb", "shop_redis", "shop_elasticsearch"}, php.DependsOn)

	assert.Equal(t, [][]string{
		{"shop_elasticsearch", "shop_maildev", "shop_mariadb", "shop_redis"},
		{"shop_php"},
		{"shop_nginx"},
	}, Stages(specs))
}

func TestDerive_MissingDependencyNotWired(t *testing.T) {
	cfg := composeBuiltin(t, "", domain.Overrides{})
	delete(cfg.Services, domain.ServiceElasticsearch)

	specs, err := Derive(DeriveParams{Config: cfg, Project: "shop", Ports: domain.DefaultPorts()})
	require.NoError(t, err)

	php, _ := specByService(specs, domain.ServicePHP)
	assert.ElementsMatch(t, []string{"shop_mariadb", "shop_redis"}, php.DependsOn)
}

func TestDerive_Deterministic(t *testing.T) {
	cfg := composeBuiltin(t, "", domain.Overrides{})
	params := DeriveParams{Config: cfg, Project: "shop", ProjectPath: "/src/shop", Ports: domain.DefaultPorts(), CacheDir: "/cache"}

	first, err := Derive(params)
	require.NoError(t, err)
	second, err := Derive(params)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDerive_PortsAndMounts(t *testing.T) {
	cfg := composeBuiltin(t, "", domain.Overrides{})
	ports := domain.DefaultPorts().Merge(domain.Ports{App: 8080, MariaDB: 3307})
	specs, err := Derive(DeriveParams{Config: cfg, Project: "My Shop", ProjectPath: "/src/shop", Ports: ports, CacheDir: "/cache"})
	require.NoError(t, err)

	nginx, ok := specByService(specs, domain.ServiceNginx)
	require.True(t, ok)
	assert.Equal(t, "my-shop_nginx", nginx.Name)
	assert.Equal(t, []domain.PortBinding{{HostPort: 8080, ContainerPort: 80, Protocol: "tcp"}}, nginx.Ports)
	assert.Contains(t, nginx.Mounts, domain.Mount{Type: domain.MountBind, Source: "/src/shop", Target: "/var/www/public", ReadOnly: true})
	assert.Contains(t, nginx.Mounts, domain.Mount{Type: domain.MountBind, Source: "/cache/nginx/nginx.conf", Target: "/etc/nginx/conf.d/default.conf", ReadOnly: true})

	db, _ := specByService(specs, domain.ServiceMariaDB)
	assert.Equal(t, 3307, db.Ports[0].HostPort)
	assert.Equal(t, "magento", db.Env["MARIADB_DATABASE"])
	assert.Equal(t, "my-shop_mariadb-data", db.Mounts[0].Source)
	require.NotNil(t, db.HealthCheck)
	assert.Equal(t, "my-shop", db.Labels[LabelProject])

	maildev, _ := specByService(specs, domain.ServiceMaildev)
	assert.Len(t, maildev.Ports, 2)
}

func TestDerive_EnvironmentSubstitution(t *testing.T) {
	cfg := composeBuiltin(t, "", domain.Overrides{
		Services: map[domain.ServiceKind]domain.ServiceOverride{
			domain.ServicePHP: {Environment: map[string]string{"DATABASE_URL": "mysql://${DB_USER}@${DB_HOST}/${DB_NAME}"}},
		},
	})
	specs, err := Derive(DeriveParams{Config: cfg, Project: "shop", Ports: domain.DefaultPorts()})
	require.NoError(t, err)

	php, _ := specByService(specs, domain.ServicePHP)
	assert.Equal(t, "mysql://magento@shop_mariadb/magento", php.Env["DATABASE_URL"])
	assert.Contains(t, php.Env["PHP_EXTENSIONS"], "xdebug")
}

func TestDerive_ZeroPortNotPublished(t *testing.T) {
	cfg := composeBuiltin(t, "", domain.Overrides{})
	specs, err := Derive(DeriveParams{Config: cfg, Project: "shop"})
	require.NoError(t, err)

	for _, s := range specs {
		assert.Empty(t, s.Ports, s.Name)
	}
}

// =============================================================================
// RenderedPath Tests
// =============================================================================

func TestRenderedPath(t *testing.T) {
	assert.Equal(t, "/cache/php/php.ini", RenderedPath("/cache", domain.ServicePHP, "/tpl/php.template.ini"))
	assert.Equal(t, "/cache/php/php-fpm.conf", RenderedPath("/cache", domain.ServicePHP, "php-fpm.template.conf"))
	assert.Equal(t, "/cache/nginx/custom.conf", RenderedPath("/cache", domain.ServiceNginx, "custom.conf"))
}
