package domain

import (
	"fmt"
	"sort"
)

// =============================================================================
// Service Kinds
// =============================================================================

// ServiceKind identifies one service of the development stack.
type ServiceKind string

const (
	ServicePHP           ServiceKind = "php"
	ServiceNginx         ServiceKind = "nginx"
	ServiceRedis         ServiceKind = "redis"
	ServiceMariaDB       ServiceKind = "mariadb"
	ServiceElasticsearch ServiceKind = "elasticsearch"
	ServiceSSLTerminator ServiceKind = "ssl-terminator"
	ServiceMaildev       ServiceKind = "maildev"
	ServiceComposer      ServiceKind = "composer"
)

// AllServiceKinds lists every known kind in canonical order.
var AllServiceKinds = []ServiceKind{
	ServiceMariaDB,
	ServiceRedis,
	ServiceElasticsearch,
	ServiceMaildev,
	ServicePHP,
	ServiceNginx,
	ServiceSSLTerminator,
	ServiceComposer,
}

// IsValid reports whether k is a known service kind.
func (k ServiceKind) IsValid() bool {
	for _, known := range AllServiceKinds {
		if k == known {
			return true
		}
	}
	return false
}

// HasContainer reports whether the service runs as a container. The package
// manager is a binary on the host.
func (k ServiceKind) HasContainer() bool {
	return k != ServiceComposer
}

// =============================================================================
// Service Profile
// =============================================================================

// Extension is a runtime extension (e.g., a PHP module) with optional settings.
type Extension struct {
	Version string            `yaml:"version,omitempty" json:"version,omitempty"`
	Options map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// ServiceProfile is the immutable definition of one service in a version profile.
type ServiceProfile struct {
	Kind        ServiceKind          `yaml:"-" json:"kind"`
	Version     string               `yaml:"version" json:"version"`
	Image       string               `yaml:"image" json:"image"`
	Tag         string               `yaml:"tag,omitempty" json:"tag,omitempty"`
	Templates   map[string]string    `yaml:"templates,omitempty" json:"templates,omitempty"`
	Extensions  map[string]Extension `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Environment map[string]string    `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// ImageTag returns the tag to run. The version is used verbatim when no
// explicit tag is declared.
func (p ServiceProfile) ImageTag() string {
	if p.Tag != "" {
		return p.Tag
	}
	return p.Version
}

// ImageRef returns the full image reference (repository:tag).
func (p ServiceProfile) ImageRef() string {
	return fmt.Sprintf("%s:%s", p.Image, p.ImageTag())
}

// ExtensionNames returns the extension names sorted alphabetically.
func (p ServiceProfile) ExtensionNames() []string {
	names := make([]string, 0, len(p.Extensions))
	for name := range p.Extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy so registry entries are never mutated through
// derived configurations.
func (p ServiceProfile) Clone() ServiceProfile {
	out := p
	out.Templates = cloneStringMap(p.Templates)
	out.Environment = cloneStringMap(p.Environment)
	if p.Extensions != nil {
		out.Extensions = make(map[string]Extension, len(p.Extensions))
		for name, ext := range p.Extensions {
			out.Extensions[name] = Extension{Version: ext.Version, Options: cloneStringMap(ext.Options)}
		}
	}
	return out
}

// =============================================================================
// Version Profile
// =============================================================================

// AppSettings holds the application-level settings of a profile.
type AppSettings struct {
	AdminUser     string `yaml:"admin_user" json:"admin_user"`
	AdminPassword string `yaml:"admin_password" json:"admin_password"`
	AdminEmail    string `yaml:"admin_email" json:"admin_email"`
	DBName        string `yaml:"db_name" json:"db_name"`
	DBUser        string `yaml:"db_user" json:"db_user"`
	DBPassword    string `yaml:"db_password" json:"db_password"`
	DBRootPass    string `yaml:"db_root_password" json:"db_root_password"`
	Mode          string `yaml:"mode" json:"mode"`
}

// Profile is one registry entry: an application version and the services it
// requires.
type Profile struct {
	AppVersion string                         `yaml:"app_version" json:"app_version"`
	IsDefault  bool                           `yaml:"default,omitempty" json:"default,omitempty"`
	Services   map[ServiceKind]ServiceProfile `yaml:"services" json:"services"`
	App        AppSettings                    `yaml:"app" json:"app"`
	Host       string                         `yaml:"host" json:"host"`
	SSL        bool                           `yaml:"ssl" json:"ssl"`
}

// Validate checks that every referenced service kind is known and carries an
// image and a version.
func (p Profile) Validate() error {
	if p.AppVersion == "" {
		return NewStackError("Validate", "profile", "", "app version is required", ErrInvalidProfile)
	}
	if len(p.Services) == 0 {
		return NewStackError("Validate", "profile", p.AppVersion, "profile declares no services", ErrInvalidProfile)
	}
	for kind, svc := range p.Services {
		if !kind.IsValid() {
			return NewStackError("Validate", "profile", p.AppVersion, fmt.Sprintf("unknown service kind %q", kind), ErrInvalidProfile)
		}
		if svc.Version == "" {
			return NewStackError("Validate", "profile", p.AppVersion, fmt.Sprintf("service %s has no version", kind), ErrInvalidProfile)
		}
		if kind.HasContainer() && svc.Image == "" {
			return NewStackError("Validate", "profile", p.AppVersion, fmt.Sprintf("service %s has no image", kind), ErrInvalidProfile)
		}
	}
	return nil
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	out := p
	out.Services = make(map[ServiceKind]ServiceProfile, len(p.Services))
	for kind, svc := range p.Services {
		svc.Kind = kind
		out.Services[kind] = svc.Clone()
	}
	return out
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
