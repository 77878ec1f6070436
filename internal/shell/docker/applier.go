package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/artpar/devstack/internal/core/deployment"
	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/monitoring"
	"github.com/artpar/devstack/internal/core/reconcile"
)

// =============================================================================
// Applier Configuration
// =============================================================================

// ApplierConfig bounds the concurrency and waits of the applier.
type ApplierConfig struct {
	ReadinessInterval time.Duration // pause between readiness probes
	ReadinessAttempts uint64        // probes before ErrReadinessTimeout
	StopTimeout       time.Duration // grace period before the engine kills a container
	Limit             int           // max concurrent engine calls per group, <= 0 for unbounded
}

// DefaultApplierConfig returns the defaults used by the CLI.
func DefaultApplierConfig() ApplierConfig {
	return ApplierConfig{
		ReadinessInterval: 2 * time.Second,
		ReadinessAttempts: 90,
		StopTimeout:       10 * time.Second,
		Limit:             4,
	}
}

// =============================================================================
// Applier
// =============================================================================

// Applier performs the engine actions of an action set.
//
// Each concurrent group (pulls, starts of one stage, stops) runs without
// context cancellation: once a member fails, members that already started
// finish and members still waiting for a slot are skipped. The first failure
// is returned after the group drains.
type Applier struct {
	client Client
	logger *slog.Logger
	config ApplierConfig
}

// NewApplier creates an applier. Zero config fields take the defaults.
func NewApplier(client Client, logger *slog.Logger, config ApplierConfig) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultApplierConfig()
	if config.ReadinessInterval <= 0 {
		config.ReadinessInterval = defaults.ReadinessInterval
	}
	if config.ReadinessAttempts == 0 {
		config.ReadinessAttempts = defaults.ReadinessAttempts
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = defaults.StopTimeout
	}
	return &Applier{
		client: client,
		logger: logger.With("component", "applier"),
		config: config,
	}
}

// =============================================================================
// Pull
// =============================================================================

// Pull fetches the images of specs concurrently. Each image reference is
// pulled once even when several containers share it.
func (a *Applier) Pull(ctx context.Context, specs []domain.ContainerSpec) error {
	seen := make(map[string]bool)
	var refs []string
	for _, s := range specs {
		if ref := s.ImageRef(); !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil
	}

	return a.group(refs, func(ref string) error {
		a.logger.Info("pulling image", "image", ref)
		start := time.Now()
		if err := a.client.PullImage(ctx, ref); err != nil {
			return wrapEngine("PullImage", "image", ref, err)
		}
		a.logger.Debug("image pulled", "image", ref, "duration", time.Since(start))
		return nil
	})
}

// =============================================================================
// Start
// =============================================================================

// Start creates and starts the containers of each stage. Stages run strictly
// in order and each stage must be ready before the next one begins.
func (a *Applier) Start(ctx context.Context, specs []domain.ContainerSpec, stages [][]string) error {
	if len(stages) == 0 {
		return nil
	}
	byName := make(map[string]domain.ContainerSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	if err := a.ensureResources(ctx, specs); err != nil {
		return err
	}

	for i, stage := range stages {
		a.logger.Info("starting stage", "stage", i+1, "of", len(stages), "containers", stage)

		err := a.group(stage, func(name string) error {
			spec, ok := byName[name]
			if !ok {
				return domain.NewStackError("StartContainer", "container", name, "no spec for container", ErrContainerNotFound)
			}
			return a.startContainer(ctx, spec)
		})
		if err != nil {
			return err
		}

		if err := a.WaitReady(ctx, reconcile.SpecsByName(specs, stage)); err != nil {
			return err
		}
	}
	return nil
}

// startContainer replaces any stopped container of the same name so the
// running one always matches its spec.
func (a *Applier) startContainer(ctx context.Context, spec domain.ContainerSpec) error {
	info, err := a.client.InspectContainer(ctx, spec.Name)
	switch {
	case err == nil:
		status, _ := monitoring.ClassifyState(info.State, info.Health)
		if status == domain.ContainerRunning {
			return nil
		}
		a.logger.Debug("removing stopped container", "container", spec.Name)
		if err := a.client.RemoveContainer(ctx, spec.Name, RemoveOptions{Force: true}); err != nil && !IsNotFound(err) {
			return wrapEngine("StartContainer", "container", spec.Name, err)
		}
	case !IsNotFound(err):
		return wrapEngine("StartContainer", "container", spec.Name, err)
	}

	if _, err := a.client.CreateContainer(ctx, spec); err != nil {
		return wrapEngine("CreateContainer", "container", spec.Name, err)
	}
	if err := a.client.StartContainer(ctx, spec.Name); err != nil {
		return wrapEngine("StartContainer", "container", spec.Name, err)
	}
	a.logger.Info("container started", "container", spec.Name, "image", spec.ImageRef())
	return nil
}

// ensureResources creates the project networks and named volumes.
func (a *Applier) ensureResources(ctx context.Context, specs []domain.ContainerSpec) error {
	networks := make(map[string]bool)
	volumes := make(map[string]bool)
	for _, s := range specs {
		labels := map[string]string{
			deployment.LabelManaged: "true",
			deployment.LabelProject: s.Labels[deployment.LabelProject],
		}
		if s.Network != "" && !networks[s.Network] {
			networks[s.Network] = true
			if err := a.client.EnsureNetwork(ctx, s.Network, labels); err != nil {
				return wrapEngine("EnsureNetwork", "network", s.Network, err)
			}
		}
		for _, m := range s.Mounts {
			if m.Type != domain.MountVolume || volumes[m.Source] {
				continue
			}
			volumes[m.Source] = true
			if err := a.client.EnsureVolume(ctx, m.Source, labels); err != nil {
				return wrapEngine("EnsureVolume", "volume", m.Source, err)
			}
		}
	}
	return nil
}

// =============================================================================
// Readiness
// =============================================================================

var errNotReady = errors.New("containers not ready")

// WaitReady polls the containers of specs at a fixed interval until every one
// is ready. A container that stops or turns unhealthy fails immediately and
// running out of attempts fails too; both carry domain.ErrReadinessTimeout.
func (a *Applier) WaitReady(ctx context.Context, specs []domain.ContainerSpec) error {
	if len(specs) == 0 {
		return nil
	}
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	inspector := NewInspector(a.client, a.logger)

	var last monitoring.StageReadiness
	probe := func() error {
		states, err := inspector.Inspect(ctx, names)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = monitoring.EvaluateStage(specs, states)
		if len(last.Failed) > 0 {
			return backoff.Permanent(domain.NewStackError("WaitReady", "container", last.Failed[0],
				"container stopped or became unhealthy",
				fmt.Errorf("%w: %w", domain.ErrReadinessTimeout, ErrContainerFailed)))
		}
		if !last.Ready() {
			return errNotReady
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.config.ReadinessInterval), a.config.ReadinessAttempts),
		ctx,
	)
	err := backoff.Retry(probe, policy)
	if errors.Is(err, errNotReady) {
		return domain.NewStackError("WaitReady", "container", last.Pending[0],
			fmt.Sprintf("not ready after %d attempts (pending: %v)", a.config.ReadinessAttempts+1, last.Pending),
			domain.ErrReadinessTimeout)
	}
	return err
}

// =============================================================================
// Stop
// =============================================================================

// Stop stops and removes the named containers concurrently. Containers that
// are already gone count as stopped.
func (a *Applier) Stop(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	timeout := a.config.StopTimeout

	return a.group(names, func(name string) error {
		a.logger.Info("stopping container", "container", name)
		err := a.client.StopContainer(ctx, name, &timeout)
		if err != nil && !IsNotFound(err) && !errors.Is(err, ErrContainerNotRunning) {
			return wrapEngine("StopContainer", "container", name, err)
		}
		if err := a.client.RemoveContainer(ctx, name, RemoveOptions{Force: true}); err != nil && !IsNotFound(err) {
			return wrapEngine("RemoveContainer", "container", name, err)
		}
		return nil
	})
}

// =============================================================================
// Concurrent Groups
// =============================================================================

// group runs fn for every item with bounded concurrency. After the first
// failure, items that were queued behind the limit are skipped. Without a
// limit every item runs.
func (a *Applier) group(items []string, fn func(string) error) error {
	var g errgroup.Group
	limit := a.config.Limit
	if limit > 0 {
		g.SetLimit(limit)
	}

	var failed atomic.Bool
	for i, item := range items {
		queued := limit > 0 && i >= limit
		g.Go(func() error {
			if queued && failed.Load() {
				return nil
			}
			if err := fn(item); err != nil {
				failed.Store(true)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
