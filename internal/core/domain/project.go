package domain

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Project
// =============================================================================

// Project is one registered application directory. The registry remembers it
// so assigned ports stay stable between runs and stop-all can find it.
type Project struct {
	ID            string
	Name          string
	Path          string // absolute application directory, unique
	Version       string // application version of the profile last used
	Ports         Ports
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastStartedAt *time.Time
}

// Project validation errors
var (
	ErrProjectPathRequired = errors.New("project path is required")
	ErrProjectPathRelative = errors.New("project path must be absolute")
)

// NewProject creates a project record for the directory at path. An empty name
// falls back to the directory's base name.
func NewProject(name, path, version string, ports Ports) (*Project, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrProjectPathRequired
	}
	if !filepath.IsAbs(path) {
		return nil, ErrProjectPathRelative
	}
	path = filepath.Clean(path)
	if name == "" {
		name = filepath.Base(path)
	}

	now := time.Now().UTC()
	return &Project{
		ID:        uuid.New().String(),
		Name:      name,
		Path:      path,
		Version:   version,
		Ports:     ports,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
