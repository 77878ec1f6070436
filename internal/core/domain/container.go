package domain

import (
	"fmt"
	"time"
)

// =============================================================================
// Container Spec
// =============================================================================

// PortBinding publishes a container port on the host.
type PortBinding struct {
	HostPort      int
	ContainerPort int
	Protocol      string // "tcp" (default) or "udp"
	HostIP        string // "" for all interfaces
}

// MountType selects how a mount source is interpreted.
type MountType string

const (
	MountBind   MountType = "bind"
	MountVolume MountType = "volume"
)

// Mount attaches a host path or named volume to the container.
type Mount struct {
	Type     MountType
	Source   string
	Target   string
	ReadOnly bool
}

// RestartPolicy mirrors the engine restart policies ("no", "always",
// "on-failure", "unless-stopped").
type RestartPolicy string

const (
	RestartNo            RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// HealthCheck is the engine-side health probe of a container.
type HealthCheck struct {
	Test        []string
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
	StartPeriod time.Duration
}

// ContainerSpec is the desired descriptor of one service container.
type ContainerSpec struct {
	Name            string
	Service         ServiceKind
	Image           string
	Tag             string
	Ports           []PortBinding
	Mounts          []Mount
	Env             map[string]string
	Labels          map[string]string
	Restart         RestartPolicy
	HealthCheck     *HealthCheck
	Entrypoint      []string
	Command         []string
	SecurityOptions []string
	Network         string
	DependsOn       []string // container names
}

// ImageRef returns the image reference (image:tag) the container runs.
func (s ContainerSpec) ImageRef() string {
	if s.Tag == "" {
		return s.Image
	}
	return fmt.Sprintf("%s:%s", s.Image, s.Tag)
}

// =============================================================================
// Container State
// =============================================================================

// ContainerStatus is the engine-observed presence of a container.
type ContainerStatus string

const (
	ContainerAbsent  ContainerStatus = "absent"
	ContainerStopped ContainerStatus = "stopped"
	ContainerRunning ContainerStatus = "running"
)

// Health is the engine-reported health of a running container.
type Health string

const (
	HealthNone      Health = ""
	HealthStarting  Health = "starting"
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
)

// ContainerState is the observed state of one container. It is refetched on
// every reconciliation pass.
type ContainerState struct {
	Name   string
	ID     string
	Status ContainerStatus
	Health Health
	Image  string // image reference the container was created from
	State  string // raw engine state ("running", "exited", "created", ...)
}

// Present reports whether the container exists in any state.
func (s ContainerState) Present() bool {
	return s.Status == ContainerRunning || s.Status == ContainerStopped
}

// AbsentState returns the state of a container the engine does not know.
func AbsentState(name string) ContainerState {
	return ContainerState{Name: name, Status: ContainerAbsent}
}
