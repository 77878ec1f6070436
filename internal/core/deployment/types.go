package deployment

import (
	"time"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Derivation Parameters
// =============================================================================

// DeriveParams contains all inputs for deriving container specs.
type DeriveParams struct {
	Config      domain.EffectiveConfiguration
	Project     string // project name; slugged into the resource prefix
	ProjectPath string // application source directory, bind-mounted into php and nginx
	Ports       domain.Ports
	CacheDir    string // rendered service config files live under {CacheDir}/{service}
}

// =============================================================================
// Container Labels
// =============================================================================

// Label keys used for devstack container identification.
const (
	LabelManaged = "com.devstack.managed"
	LabelProject = "com.devstack.project"
	LabelService = "com.devstack.service"
	LabelVersion = "com.devstack.app-version"
)

// Readiness probe defaults applied to services with an engine health check.
const (
	healthInterval    = 5 * time.Second
	healthTimeout     = 3 * time.Second
	healthRetries     = 20
	healthStartPeriod = 10 * time.Second
)

// containerPorts are the in-container ports of each published service.
const (
	containerPortHTTP          = 80
	containerPortHTTPS         = 443
	containerPortFPM           = 9000
	containerPortMariaDB       = 3306
	containerPortRedis         = 6379
	containerPortElasticsearch = 9200
	containerPortMaildevSMTP   = 1025
	containerPortMaildevWeb    = 1080
)
