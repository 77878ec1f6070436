// Package configuration merges a version profile with environment overrides
// into the effective configuration of one invocation.
//
// Precedence is profile default < explicit override. Scalars are replaced
// only when the override sets them; extension and environment maps merge
// shallowly with override keys winning.
package configuration

import (
	"path/filepath"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/profiles"
)

// Lookup resolves a version to a profile. *profiles.Registry implements it.
type Lookup interface {
	Lookup(version string) (domain.Profile, error)
}

var _ Lookup = (*profiles.Registry)(nil)

// Compose builds the EffectiveConfiguration for version. An empty version or
// "default" selects the registry default. Unknown versions fail with
// domain.ErrConfigNotFound.
//
// Example:
//
//	ssl := true
//	cfg, err := Compose(registry, "2.4.3-p2", "/opt/templates", domain.Overrides{SSL: &ssl})
//	// cfg.SSL == true, cfg.Services[domain.ServiceElasticsearch].Version == "7.16.3"
func Compose(registry Lookup, version, templateDir string, overrides domain.Overrides) (domain.EffectiveConfiguration, error) {
	profile, err := registry.Lookup(version)
	if err != nil {
		return domain.EffectiveConfiguration{}, err
	}

	cfg := domain.EffectiveConfiguration{
		AppVersion:  profile.AppVersion,
		TemplateDir: templateDir,
		Host:        profile.Host,
		SSL:         profile.SSL,
		Ports:       overrides.Ports,
		Services:    make(map[domain.ServiceKind]domain.ServiceProfile, len(profile.Services)),
		App:         profile.App,
	}
	if overrides.Host != nil && *overrides.Host != "" {
		cfg.Host = *overrides.Host
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if overrides.SSL != nil {
		cfg.SSL = *overrides.SSL
	}

	for kind, svc := range profile.Services {
		svc.Kind = kind
		if override, ok := overrides.Services[kind]; ok {
			svc = MergeService(svc, override)
		}
		svc.Templates = resolveTemplates(templateDir, svc.Templates)
		cfg.Services[kind] = svc
	}

	return cfg, nil
}

// MergeService applies override on top of base and returns a new profile.
// base is not modified.
func MergeService(base domain.ServiceProfile, override domain.ServiceOverride) domain.ServiceProfile {
	out := base.Clone()
	if override.Image != "" {
		out.Image = override.Image
	}
	if override.Version != "" {
		out.Version = override.Version
	}
	if override.Tag != "" {
		out.Tag = override.Tag
	}
	if len(override.Extensions) > 0 {
		if out.Extensions == nil {
			out.Extensions = make(map[string]domain.Extension, len(override.Extensions))
		}
		for name, ext := range override.Extensions {
			out.Extensions[name] = ext
		}
	}
	if len(override.Environment) > 0 {
		if out.Environment == nil {
			out.Environment = make(map[string]string, len(override.Environment))
		}
		for k, v := range override.Environment {
			out.Environment[k] = v
		}
	}
	return out
}

// resolveTemplates joins relative template paths onto dir.
func resolveTemplates(dir string, templates map[string]string) map[string]string {
	if len(templates) == 0 {
		return templates
	}
	out := make(map[string]string, len(templates))
	for name, path := range templates {
		if dir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		out[name] = path
	}
	return out
}
