package profiles

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// YAML Profiles
// =============================================================================

// ParseProfile decodes one YAML profile document.
//
// Example:
//
//	app_version: 2.4.4
//	services:
//	  php: {version: "8.1", image: ghcr.io/example/php}
//	  mariadb: {version: "10.4", image: mariadb}
func ParseProfile(data []byte) (domain.Profile, error) {
	var p domain.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return domain.Profile{}, domain.NewStackError("Parse", "profile", "", err.Error(), domain.ErrInvalidProfile)
	}
	for kind, svc := range p.Services {
		svc.Kind = kind
		p.Services[kind] = svc
	}
	return p, p.Validate()
}

// LoadDir registers every *.yaml / *.yml file of dir into r, in file name
// order. A missing directory is not an error. File profiles replace
// built-in profiles of the same version.
func LoadDir(r *Registry, dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read profile dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read profile %s: %w", file, err)
		}
		p, err := ParseProfile(data)
		if err != nil {
			return fmt.Errorf("profile %s: %w", file, err)
		}
		if err := r.Register(p); err != nil {
			return fmt.Errorf("profile %s: %w", file, err)
		}
	}
	return r.Validate()
}
