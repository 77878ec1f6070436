// Package profiles holds the version-profile registry: every supported
// application version and the service profiles it requires.
package profiles

import (
	"fmt"
	"sort"

	"github.com/artpar/devstack/internal/core/domain"
)

// DefaultVersion selects the registry's designated default profile.
const DefaultVersion = "default"

// =============================================================================
// Registry
// =============================================================================

// Registry maps application versions to profiles. Lookups hand out deep
// copies, so registered profiles are never mutated by callers.
type Registry struct {
	profiles map[string]domain.Profile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]domain.Profile)}
}

// Register validates and stores p. A profile with the same version replaces
// the previous one. Registering a second default is rejected.
func (r *Registry) Register(p domain.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.IsDefault {
		if current, ok := r.defaultProfile(); ok && current.AppVersion != p.AppVersion {
			return domain.NewStackError("Register", "profile", p.AppVersion,
				fmt.Sprintf("profile %s is already the default", current.AppVersion), domain.ErrInvalidProfile)
		}
	}
	r.profiles[p.AppVersion] = p.Clone()
	return nil
}

// Lookup returns the profile registered for version. An empty version or
// DefaultVersion resolves to the designated default.
func (r *Registry) Lookup(version string) (domain.Profile, error) {
	if version == "" || version == DefaultVersion {
		return r.Default()
	}
	p, ok := r.profiles[version]
	if !ok {
		return domain.Profile{}, domain.NewStackError("Lookup", "profile", version,
			fmt.Sprintf("no profile registered (available: %v)", r.Versions()), domain.ErrConfigNotFound)
	}
	return p.Clone(), nil
}

// Default returns the designated default profile.
func (r *Registry) Default() (domain.Profile, error) {
	p, ok := r.defaultProfile()
	if !ok {
		return domain.Profile{}, domain.NewStackError("Lookup", "profile", DefaultVersion,
			"no default profile designated", domain.ErrConfigNotFound)
	}
	return p.Clone(), nil
}

// Versions returns the registered versions sorted lexically.
func (r *Registry) Versions() []string {
	versions := make([]string, 0, len(r.profiles))
	for v := range r.profiles {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Validate checks that exactly one profile is marked default.
func (r *Registry) Validate() error {
	var defaults []string
	for _, v := range r.Versions() {
		if r.profiles[v].IsDefault {
			defaults = append(defaults, v)
		}
	}
	switch len(defaults) {
	case 1:
		return nil
	case 0:
		return domain.NewStackError("Validate", "registry", "", "no profile is marked default", domain.ErrInvalidProfile)
	default:
		return domain.NewStackError("Validate", "registry", "",
			fmt.Sprintf("multiple default profiles: %v", defaults), domain.ErrInvalidProfile)
	}
}

func (r *Registry) defaultProfile() (domain.Profile, bool) {
	for _, v := range r.Versions() {
		if p := r.profiles[v]; p.IsDefault {
			return p, true
		}
	}
	return domain.Profile{}, false
}
