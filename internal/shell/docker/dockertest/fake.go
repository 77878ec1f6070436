// Package dockertest provides an in-memory container engine for tests of code
// that depends on docker.Client.
package dockertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/shell/docker"
)

// Container is one container held by the fake engine.
type Container struct {
	ID     string
	Name   string
	Image  string
	State  string // "created", "running" or "exited"
	Health string
	Spec   domain.ContainerSpec
}

// Client is an in-memory docker.Client. The exported fields tune its
// behaviour and must be set before the client is shared between goroutines.
type Client struct {
	// Unavailable makes every call fail as if the engine were unreachable.
	Unavailable bool
	// PullErrors fails the pull of the given image references.
	PullErrors map[string]error
	// StartErrors fails the start of the given containers.
	StartErrors map[string]error
	// HealthOnStart overrides the health a container reports once started.
	// Containers with a health check report "healthy" by default.
	HealthOnStart map[string]string
	// ExitOnStart makes the given containers exit right after starting.
	ExitOnStart map[string]bool
	// Delay is added to every pull and start.
	Delay time.Duration

	mu         sync.Mutex
	containers map[string]*Container
	images     map[string]bool
	networks   map[string]bool
	volumes    map[string]bool
	calls      []string
	nextID     int
}

var _ docker.Client = (*Client)(nil)

// New creates an empty fake engine.
func New() *Client {
	return &Client{
		PullErrors:    make(map[string]error),
		StartErrors:   make(map[string]error),
		HealthOnStart: make(map[string]string),
		ExitOnStart:   make(map[string]bool),
		containers:    make(map[string]*Container),
		images:        make(map[string]bool),
		networks:      make(map[string]bool),
		volumes:       make(map[string]bool),
	}
}

// =============================================================================
// Seeding and Assertions
// =============================================================================

// AddImage marks image references as present locally.
func (c *Client) AddImage(refs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ref := range refs {
		c.images[ref] = true
	}
}

// AddContainer seeds an existing container.
func (c *Client) AddContainer(name, image, state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.containers[name] = &Container{
		ID:    fmt.Sprintf("fake-%d", c.nextID),
		Name:  name,
		Image: image,
		State: state,
	}
}

// SetHealth changes the reported health of a container.
func (c *Client) SetHealth(name, health string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.containers[name]; ok {
		ctr.Health = health
	}
}

// Container returns a copy of the named container.
func (c *Client) Container(name string) (Container, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctr, ok := c.containers[name]
	if !ok {
		return Container{}, false
	}
	return *ctr, true
}

// Names returns the names of all containers, sorted.
func (c *Client) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.containers))
	for name := range c.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasNetwork reports whether the network was created.
func (c *Client) HasNetwork(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.networks[name]
}

// HasVolume reports whether the volume was created.
func (c *Client) HasVolume(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volumes[name]
}

// Calls returns the mutating calls in the order they happened, formatted as
// "<op> <name>" (for example "pull redis:6.0" or "start shop_php").
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// CallIndex returns the position of call in Calls, or -1.
func (c *Client) CallIndex(call string) int {
	for i, got := range c.Calls() {
		if got == call {
			return i
		}
	}
	return -1
}

// CountCalls returns how many times call happened.
func (c *Client) CountCalls(call string) int {
	n := 0
	for _, got := range c.Calls() {
		if got == call {
			n++
		}
	}
	return n
}

func (c *Client) record(op, name string) {
	c.calls = append(c.calls, op+" "+name)
}

func (c *Client) unavailable(op string) error {
	return docker.NewDockerError(op, "", "", "engine unreachable", docker.ErrConnectionFailed)
}

func (c *Client) notFound(op, name string) error {
	return docker.NewDockerError(op, "container", name, "container not found", docker.ErrContainerNotFound)
}

// =============================================================================
// docker.Client
// =============================================================================

func (c *Client) Ping(context.Context) error {
	if c.Unavailable {
		return c.unavailable("Ping")
	}
	return nil
}

func (c *Client) Close() error { return nil }

func (c *Client) CreateContainer(_ context.Context, spec domain.ContainerSpec) (string, error) {
	if c.Unavailable {
		return "", c.unavailable("CreateContainer")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.containers[spec.Name]; exists {
		return "", docker.NewDockerError("CreateContainer", "container", spec.Name, "container already exists", docker.ErrContainerAlreadyExists)
	}
	if !c.images[spec.ImageRef()] {
		return "", docker.NewDockerError("CreateContainer", "image", spec.ImageRef(), "image not found", docker.ErrImageNotFound)
	}

	c.nextID++
	ctr := &Container{
		ID:    fmt.Sprintf("fake-%d", c.nextID),
		Name:  spec.Name,
		Image: spec.ImageRef(),
		State: "created",
		Spec:  spec,
	}
	c.containers[spec.Name] = ctr
	c.record("create", spec.Name)
	return ctr.ID, nil
}

func (c *Client) StartContainer(_ context.Context, name string) error {
	if c.Unavailable {
		return c.unavailable("StartContainer")
	}
	if c.Delay > 0 {
		time.Sleep(c.Delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ctr, ok := c.containers[name]
	if !ok {
		return c.notFound("StartContainer", name)
	}
	if err := c.StartErrors[name]; err != nil {
		return docker.NewDockerError("StartContainer", "container", name, err.Error(), err)
	}

	ctr.State = "running"
	ctr.Health = ""
	if ctr.Spec.HealthCheck != nil {
		ctr.Health = "healthy"
	}
	if h, ok := c.HealthOnStart[name]; ok {
		ctr.Health = h
	}
	if c.ExitOnStart[name] {
		ctr.State = "exited"
		ctr.Health = ""
	}
	c.record("start", name)
	return nil
}

func (c *Client) StopContainer(_ context.Context, name string, _ *time.Duration) error {
	if c.Unavailable {
		return c.unavailable("StopContainer")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ctr, ok := c.containers[name]
	if !ok {
		return c.notFound("StopContainer", name)
	}
	if ctr.State != "running" {
		return docker.NewDockerError("StopContainer", "container", name, "container is not running", docker.ErrContainerNotRunning)
	}
	ctr.State = "exited"
	ctr.Health = ""
	c.record("stop", name)
	return nil
}

func (c *Client) RemoveContainer(_ context.Context, name string, _ docker.RemoveOptions) error {
	if c.Unavailable {
		return c.unavailable("RemoveContainer")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.containers[name]; !ok {
		return c.notFound("RemoveContainer", name)
	}
	delete(c.containers, name)
	c.record("remove", name)
	return nil
}

func (c *Client) InspectContainer(_ context.Context, name string) (*docker.ContainerInfo, error) {
	if c.Unavailable {
		return nil, c.unavailable("InspectContainer")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ctr, ok := c.containers[name]
	if !ok {
		return nil, c.notFound("InspectContainer", name)
	}
	return &docker.ContainerInfo{
		ID:     ctr.ID,
		Name:   ctr.Name,
		Image:  ctr.Image,
		State:  ctr.State,
		Health: ctr.Health,
		Ports:  ctr.Spec.Ports,
		Labels: ctr.Spec.Labels,
	}, nil
}

func (c *Client) ListContainers(_ context.Context, opts docker.ListOptions) ([]docker.ContainerInfo, error) {
	if c.Unavailable {
		return nil, c.unavailable("ListContainers")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var result []docker.ContainerInfo
	for _, ctr := range c.containers {
		if !opts.All && ctr.State != "running" {
			continue
		}
		if !matchLabels(ctr.Spec.Labels, opts.Labels) {
			continue
		}
		result = append(result, docker.ContainerInfo{
			ID:     ctr.ID,
			Name:   ctr.Name,
			Image:  ctr.Image,
			State:  ctr.State,
			Health: ctr.Health,
			Ports:  ctr.Spec.Ports,
			Labels: ctr.Spec.Labels,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (c *Client) EnsureNetwork(_ context.Context, name string, _ map[string]string) error {
	if c.Unavailable {
		return c.unavailable("EnsureNetwork")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.networks[name] {
		c.networks[name] = true
		c.record("network", name)
	}
	return nil
}

func (c *Client) EnsureVolume(_ context.Context, name string, _ map[string]string) error {
	if c.Unavailable {
		return c.unavailable("EnsureVolume")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.volumes[name] {
		c.volumes[name] = true
		c.record("volume", name)
	}
	return nil
}

func (c *Client) PullImage(_ context.Context, ref string) error {
	if c.Unavailable {
		return c.unavailable("PullImage")
	}
	if c.Delay > 0 {
		time.Sleep(c.Delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("pull", ref)
	if err := c.PullErrors[ref]; err != nil {
		return docker.NewDockerError("PullImage", "image", ref, err.Error(), docker.ErrImagePullFailed)
	}
	c.images[ref] = true
	return nil
}

func (c *Client) ImageExists(_ context.Context, ref string) (bool, error) {
	if c.Unavailable {
		return false, c.unavailable("ImageExists")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images[ref], nil
}

func matchLabels(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}
