// Package docker talks to the container engine: it creates, inspects and
// removes the containers of a development environment and applies the action
// sets produced by the reconciler.
package docker

import (
	"context"
	"time"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Container Info
// =============================================================================

// ContainerInfo is the engine view of one container.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string // image reference the container was created from
	State     string // raw engine state ("running", "exited", "created", ...)
	Health    string // "", "starting", "healthy" or "unhealthy"
	CreatedAt time.Time
	Ports     []domain.PortBinding
	Labels    map[string]string
	ExitCode  int
}

// =============================================================================
// Options
// =============================================================================

// RemoveOptions configures container removal.
type RemoveOptions struct {
	Force         bool
	RemoveVolumes bool
}

// ListOptions configures container listing.
type ListOptions struct {
	All    bool              // include stopped containers
	Labels map[string]string // label=value filters, all must match
}

// =============================================================================
// Client Interface
// =============================================================================

// Client is the subset of the engine API devstack needs. Containers are
// addressed by name or ID.
type Client interface {
	// Connection
	Ping(ctx context.Context) error
	Close() error

	// Container lifecycle
	CreateContainer(ctx context.Context, spec domain.ContainerSpec) (string, error)
	StartContainer(ctx context.Context, nameOrID string) error
	StopContainer(ctx context.Context, nameOrID string, timeout *time.Duration) error
	RemoveContainer(ctx context.Context, nameOrID string, opts RemoveOptions) error
	InspectContainer(ctx context.Context, nameOrID string) (*ContainerInfo, error)
	ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error)

	// Networks and volumes are created on demand and never removed by stop.
	EnsureNetwork(ctx context.Context, name string, labels map[string]string) error
	EnsureVolume(ctx context.Context, name string, labels map[string]string) error

	// Images
	PullImage(ctx context.Context, ref string) error
	ImageExists(ctx context.Context, ref string) (bool, error)
}
