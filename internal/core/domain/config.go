package domain

import "sort"

// =============================================================================
// Runtime Port Assignment
// =============================================================================

// Ports is the host port assignment for one invocation.
type Ports struct {
	App           int `json:"app" yaml:"app" mapstructure:"app"`
	FPM           int `json:"fpm" yaml:"fpm" mapstructure:"fpm"`
	MariaDB       int `json:"mariadb" yaml:"mariadb" mapstructure:"mariadb"`
	Redis         int `json:"redis" yaml:"redis" mapstructure:"redis"`
	Elasticsearch int `json:"elasticsearch" yaml:"elasticsearch" mapstructure:"elasticsearch"`
	MaildevSMTP   int `json:"maildev_smtp" yaml:"maildev_smtp" mapstructure:"maildev_smtp"`
	MaildevWeb    int `json:"maildev_web" yaml:"maildev_web" mapstructure:"maildev_web"`
	SSLTerminator int `json:"ssl_terminator" yaml:"ssl_terminator" mapstructure:"ssl_terminator"`
}

// DefaultPorts returns the preferred host ports before availability checks.
func DefaultPorts() Ports {
	return Ports{
		App:           80,
		FPM:           9000,
		MariaDB:       3306,
		Redis:         6379,
		Elasticsearch: 9200,
		MaildevSMTP:   1025,
		MaildevWeb:    1080,
		SSLTerminator: 443,
	}
}

// Merge returns p with every non-zero field of override applied.
func (p Ports) Merge(override Ports) Ports {
	pick := func(base, over int) int {
		if over != 0 {
			return over
		}
		return base
	}
	return Ports{
		App:           pick(p.App, override.App),
		FPM:           pick(p.FPM, override.FPM),
		MariaDB:       pick(p.MariaDB, override.MariaDB),
		Redis:         pick(p.Redis, override.Redis),
		Elasticsearch: pick(p.Elasticsearch, override.Elasticsearch),
		MaildevSMTP:   pick(p.MaildevSMTP, override.MaildevSMTP),
		MaildevWeb:    pick(p.MaildevWeb, override.MaildevWeb),
		SSLTerminator: pick(p.SSLTerminator, override.SSLTerminator),
	}
}

// IsZero reports whether no port is assigned.
func (p Ports) IsZero() bool {
	return p == Ports{}
}

// =============================================================================
// Overrides
// =============================================================================

// ServiceOverride replaces parts of one service profile. Empty fields keep
// the profile value; extension and environment keys win over the profile.
type ServiceOverride struct {
	Image       string               `yaml:"image,omitempty" mapstructure:"image"`
	Tag         string               `yaml:"tag,omitempty" mapstructure:"tag"`
	Version     string               `yaml:"version,omitempty" mapstructure:"version"`
	Extensions  map[string]Extension `yaml:"extensions,omitempty" mapstructure:"extensions"`
	Environment map[string]string    `yaml:"environment,omitempty" mapstructure:"environment"`
}

// Overrides are the environment-level settings layered over a profile.
type Overrides struct {
	Host     *string                         `yaml:"host,omitempty"`
	SSL      *bool                           `yaml:"ssl,omitempty"`
	Ports    Ports                           `yaml:"ports,omitempty"`
	Services map[ServiceKind]ServiceOverride `yaml:"services,omitempty"`
}

// =============================================================================
// Effective Configuration
// =============================================================================

// EffectiveConfiguration is one profile merged with overrides. It is built
// once per invocation and treated as read-only afterwards.
type EffectiveConfiguration struct {
	AppVersion  string
	TemplateDir string
	Host        string
	SSL         bool
	Ports       Ports
	Services    map[ServiceKind]ServiceProfile
	App         AppSettings
}

// Service returns the profile of kind and whether it is configured.
func (c EffectiveConfiguration) Service(kind ServiceKind) (ServiceProfile, bool) {
	svc, ok := c.Services[kind]
	return svc, ok
}

// Kinds returns the configured service kinds in canonical order.
func (c EffectiveConfiguration) Kinds() []ServiceKind {
	order := make(map[ServiceKind]int, len(AllServiceKinds))
	for i, k := range AllServiceKinds {
		order[k] = i
	}
	kinds := make([]ServiceKind, 0, len(c.Services))
	for k := range c.Services {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return order[kinds[i]] < order[kinds[j]] })
	return kinds
}
