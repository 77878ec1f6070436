package deployment

import (
	"fmt"

	"github.com/artpar/devstack/internal/core/domain"
)

// DefaultProject is used when a project name slugs to nothing.
const DefaultProject = "devstack"

// =============================================================================
// Resource Naming Functions
// =============================================================================

// ProjectSlug turns a project name into the prefix of its resource names.
//
// Example:
//
//	ProjectSlug("My Shop") // returns "my-shop"
//	ProjectSlug("!!!")     // returns "devstack"
func ProjectSlug(name string) string {
	if slug := domain.Slugify(name); slug != "" {
		return slug
	}
	return DefaultProject
}

// NetworkName generates the network name of a project.
// Pattern: {project}_network
//
// Example:
//
//	NetworkName("shop") // returns "shop_network"
func NetworkName(project string) string {
	return fmt.Sprintf("%s_network", project)
}

// VolumeName generates a named volume for a project.
// Pattern: {project}_{volumeName}
//
// Example:
//
//	VolumeName("shop", "mariadb-data") // returns "shop_mariadb-data"
func VolumeName(project, volumeName string) string {
	return fmt.Sprintf("%s_%s", project, volumeName)
}

// ContainerName generates the container name of a service in a project.
// Pattern: {project}_{service}
//
// Example:
//
//	ContainerName("shop", domain.ServiceMariaDB) // returns "shop_mariadb"
func ContainerName(project string, service domain.ServiceKind) string {
	return fmt.Sprintf("%s_%s", project, service)
}
