package deployment

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Desired-State Derivation
// =============================================================================

// Derive builds the ordered container specs of a configuration.
//
// This is a pure function: the same configuration, project and ports always
// yield the same specs in the same order. The function:
//   - Emits one spec per configured service that runs as a container
//   - Skips the SSL terminator unless SSL is enabled
//   - Uses the profile image and tag verbatim
//   - Substitutes ${VAR} placeholders in profile environments
//   - Wires depends-on edges to the configured dependencies only
//   - Orders specs dependencies first (TopologicalSort)
//
// Container names are pairwise distinct; a collision fails with
// domain.ErrDuplicateContainer.
//
// Example:
//
//	specs, err := Derive(DeriveParams{Config: cfg, Project: "shop", Ports: ports})
//	// specs[0].Name == "shop_elasticsearch", ..., last is "shop_nginx"
func Derive(params DeriveParams) ([]domain.ContainerSpec, error) {
	project := ProjectSlug(params.Project)
	cfg := params.Config
	vars := Variables(cfg, project, params.Ports)

	specs := make([]domain.ContainerSpec, 0, len(cfg.Services))
	seen := make(map[string]domain.ServiceKind, len(cfg.Services))
	for _, kind := range cfg.Kinds() {
		if !kind.HasContainer() {
			continue
		}
		if kind == domain.ServiceSSLTerminator && !cfg.SSL {
			continue
		}
		svc := cfg.Services[kind]

		spec := buildContainerSpec(params, project, svc, vars)
		if other, dup := seen[spec.Name]; dup {
			return nil, domain.NewStackError("Derive", "container", spec.Name,
				fmt.Sprintf("services %s and %s share a container name", other, kind), domain.ErrDuplicateContainer)
		}
		seen[spec.Name] = kind
		specs = append(specs, spec)
	}

	configured := make(map[domain.ServiceKind]bool, len(specs))
	for _, s := range specs {
		configured[s.Service] = true
	}
	for i := range specs {
		for _, dep := range DependenciesOf(specs[i].Service) {
			if configured[dep] {
				specs[i].DependsOn = append(specs[i].DependsOn, ContainerName(project, dep))
			}
		}
	}

	return TopologicalSort(specs), nil
}

// buildContainerSpec maps one service profile to its container spec.
func buildContainerSpec(params DeriveParams, project string, svc domain.ServiceProfile, vars map[string]string) domain.ContainerSpec {
	cfg := params.Config
	ports := params.Ports
	spec := domain.ContainerSpec{
		Name:    ContainerName(project, svc.Kind),
		Service: svc.Kind,
		Image:   svc.Image,
		Tag:     svc.ImageTag(),
		Env:     make(map[string]string),
		Labels: map[string]string{
			LabelManaged: "true",
			LabelProject: project,
			LabelService: string(svc.Kind),
			LabelVersion: cfg.AppVersion,
		},
		Restart: domain.RestartUnlessStopped,
		Network: NetworkName(project),
	}

	switch svc.Kind {
	case domain.ServiceMariaDB:
		spec.Ports = publish(ports.MariaDB, containerPortMariaDB)
		spec.Env["MARIADB_ROOT_PASSWORD"] = cfg.App.DBRootPass
		spec.Env["MARIADB_DATABASE"] = cfg.App.DBName
		spec.Env["MARIADB_USER"] = cfg.App.DBUser
		spec.Env["MARIADB_PASSWORD"] = cfg.App.DBPassword
		spec.Mounts = []domain.Mount{
			{Type: domain.MountVolume, Source: VolumeName(project, "mariadb-data"), Target: "/var/lib/mysql"},
		}
		spec.Command = []string{"--log_bin_trust_function_creators=1", "--max_allowed_packet=1G"}
		spec.HealthCheck = healthCheck("CMD-SHELL", "mysqladmin ping -h 127.0.0.1 --silent")

	case domain.ServiceRedis:
		spec.Ports = publish(ports.Redis, containerPortRedis)
		spec.HealthCheck = healthCheck("CMD", "redis-cli", "ping")

	case domain.ServiceElasticsearch:
		spec.Ports = publish(ports.Elasticsearch, containerPortElasticsearch)
		spec.Env["discovery.type"] = "single-node"
		spec.Env["xpack.security.enabled"] = "false"
		spec.Env["ES_JAVA_OPTS"] = "-Xms512m -Xmx512m"
		spec.Mounts = []domain.Mount{
			{Type: domain.MountVolume, Source: VolumeName(project, "elasticsearch-data"), Target: "/usr/share/elasticsearch/data"},
		}
		spec.HealthCheck = healthCheck("CMD-SHELL", "curl -fs http://127.0.0.1:9200/_cluster/health || exit 1")

	case domain.ServiceMaildev:
		spec.Ports = append(publish(ports.MaildevSMTP, containerPortMaildevSMTP), publish(ports.MaildevWeb, containerPortMaildevWeb)...)

	case domain.ServicePHP:
		spec.Ports = publish(ports.FPM, containerPortFPM)
		spec.Mounts = appMounts(params.ProjectPath, false)
		if path, ok := svc.Templates["php"]; ok {
			spec.Mounts = append(spec.Mounts, renderedMount(params.CacheDir, svc.Kind, path, "/usr/local/etc/php/php.ini"))
		}
		if path, ok := svc.Templates["fpm"]; ok {
			spec.Mounts = append(spec.Mounts, renderedMount(params.CacheDir, svc.Kind, path, "/usr/local/etc/php-fpm.d/zz-docker.conf"))
		}
		spec.Env["COMPOSER_HOME"] = "/var/www/.composer"
		spec.Env["PHP_EXTENSIONS"] = strings.Join(svc.ExtensionNames(), " ")
		spec.SecurityOptions = []string{"seccomp=unconfined"}
		spec.HealthCheck = healthCheck("CMD-SHELL", "php-fpm -t || exit 1")

	case domain.ServiceNginx:
		spec.Ports = publish(ports.App, containerPortHTTP)
		spec.Mounts = appMounts(params.ProjectPath, true)
		if path, ok := svc.Templates["nginx"]; ok {
			spec.Mounts = append(spec.Mounts, renderedMount(params.CacheDir, svc.Kind, path, "/etc/nginx/conf.d/default.conf"))
		}
		spec.SecurityOptions = []string{"no-new-privileges:true"}

	case domain.ServiceSSLTerminator:
		spec.Ports = publish(ports.SSLTerminator, containerPortHTTPS)
		if path, ok := svc.Templates["nginx"]; ok {
			spec.Mounts = append(spec.Mounts, renderedMount(params.CacheDir, svc.Kind, path, "/etc/nginx/conf.d/default.conf"))
		}
		spec.SecurityOptions = []string{"no-new-privileges:true"}
	}

	for k, v := range svc.Environment {
		spec.Env[k] = SubstituteVariables(v, vars)
	}
	return spec
}

// publish binds containerPort to hostPort. A zero host port publishes nothing.
func publish(hostPort, containerPort int) []domain.PortBinding {
	if hostPort == 0 {
		return nil
	}
	return []domain.PortBinding{{HostPort: hostPort, ContainerPort: containerPort, Protocol: "tcp"}}
}

func appMounts(projectPath string, readOnly bool) []domain.Mount {
	if projectPath == "" {
		return nil
	}
	return []domain.Mount{{Type: domain.MountBind, Source: projectPath, Target: "/var/www/public", ReadOnly: readOnly}}
}

// renderedMount mounts the rendered form of a template. Templates are
// rendered into {cacheDir}/{service}/ under their base name minus ".template".
func renderedMount(cacheDir string, kind domain.ServiceKind, templatePath, target string) domain.Mount {
	return domain.Mount{
		Type:     domain.MountBind,
		Source:   RenderedPath(cacheDir, kind, templatePath),
		Target:   target,
		ReadOnly: true,
	}
}

// RenderedPath returns where the rendered form of templatePath lives.
//
// Example:
//
//	RenderedPath("/cache", domain.ServiceNginx, "/tpl/nginx.template.conf")
//	// Returns: "/cache/nginx/nginx.conf"
func RenderedPath(cacheDir string, kind domain.ServiceKind, templatePath string) string {
	base := filepath.Base(templatePath)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	if filepath.Ext(stem) == ".template" {
		stem = stem[:len(stem)-len(".template")]
	}
	return filepath.Join(cacheDir, string(kind), stem+ext)
}

func healthCheck(test ...string) *domain.HealthCheck {
	return &domain.HealthCheck{
		Test:        test,
		Interval:    healthInterval,
		Timeout:     healthTimeout,
		Retries:     healthRetries,
		StartPeriod: healthStartPeriod,
	}
}
