package deployment

import (
	"regexp"
	"strconv"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Variable Substitution Functions
// =============================================================================

// varPlaceholderRegex matches ${VAR} and ${VAR:-default} patterns.
// Groups:
//   - Group 1: Variable name (required)
//   - Group 2: ":-" marker (optional)
//   - Group 3: Default value (optional)
var varPlaceholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// SubstituteVariables replaces ${VAR} and ${VAR:-default} placeholders with
// values from the variables map.
//
// Behavior:
//   - ${VAR} - replaced with variables["VAR"] if exists, otherwise kept as-is
//   - ${VAR:-default} - replaced with variables["VAR"] if exists, otherwise "default"
//   - Unmatched text is left unchanged
//
// Examples:
//
//	SubstituteVariables("${DB_HOST}", map[string]string{"DB_HOST": "shop_mariadb"})
//	// Returns: "shop_mariadb"
//
//	SubstituteVariables("${MODE:-developer}", nil)
//	// Returns: "developer"
func SubstituteVariables(value string, variables map[string]string) string {
	return varPlaceholderRegex.ReplaceAllStringFunc(value, func(match string) string {
		sub := varPlaceholderRegex.FindStringSubmatch(match)
		if val, ok := variables[sub[1]]; ok {
			return val
		}
		if sub[2] != "" {
			return sub[3]
		}
		return match
	})
}

// Variables returns the placeholders available to profile environments.
func Variables(cfg domain.EffectiveConfiguration, project string, ports domain.Ports) map[string]string {
	return map[string]string{
		"PROJECT":            project,
		"HOST":               cfg.Host,
		"APP_VERSION":        cfg.AppVersion,
		"APP_MODE":           cfg.App.Mode,
		"APP_PORT":           strconv.Itoa(ports.App),
		"DB_HOST":            ContainerName(project, domain.ServiceMariaDB),
		"DB_NAME":            cfg.App.DBName,
		"DB_USER":            cfg.App.DBUser,
		"DB_PASSWORD":        cfg.App.DBPassword,
		"DB_ROOT_PASSWORD":   cfg.App.DBRootPass,
		"REDIS_HOST":         ContainerName(project, domain.ServiceRedis),
		"ELASTICSEARCH_HOST": ContainerName(project, domain.ServiceElasticsearch),
		"MAIL_HOST":          ContainerName(project, domain.ServiceMaildev),
	}
}
