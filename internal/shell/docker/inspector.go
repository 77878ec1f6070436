package docker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/monitoring"
)

// =============================================================================
// Container State Inspector
// =============================================================================

// Inspector reads the observed state of named containers and local images.
type Inspector struct {
	client Client
	logger *slog.Logger
}

// NewInspector creates an inspector over client.
func NewInspector(client Client, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{
		client: client,
		logger: logger.With("component", "inspector"),
	}
}

// Inspect returns the state of every named container. Containers the engine
// does not know are reported absent. An unreachable engine fails the whole
// call with domain.ErrEngineUnavailable.
func (i *Inspector) Inspect(ctx context.Context, names []string) (map[string]domain.ContainerState, error) {
	states := make(map[string]domain.ContainerState, len(names))
	for _, name := range names {
		info, err := i.client.InspectContainer(ctx, name)
		if err != nil {
			if IsNotFound(err) {
				states[name] = domain.AbsentState(name)
				continue
			}
			return nil, wrapEngine("Inspect", "container", name, err)
		}

		status, health := monitoring.ClassifyState(info.State, info.Health)
		states[name] = domain.ContainerState{
			Name:   name,
			ID:     info.ID,
			Status: status,
			Health: health,
			Image:  info.Image,
			State:  info.State,
		}
	}

	i.logger.Debug("inspected containers", "count", len(names))
	return states, nil
}

// LocalImages reports which image references are present locally.
func (i *Inspector) LocalImages(ctx context.Context, refs []string) (map[string]bool, error) {
	images := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if _, seen := images[ref]; seen {
			continue
		}
		ok, err := i.client.ImageExists(ctx, ref)
		if err != nil {
			return nil, wrapEngine("LocalImages", "image", ref, err)
		}
		images[ref] = ok
	}
	return images, nil
}

// wrapEngine converts an engine failure into a domain.StackError. Errors that
// mean the engine is unreachable keep the domain.ErrEngineUnavailable kind.
func wrapEngine(op, entity, id string, err error) error {
	if errors.Is(err, domain.ErrEngineUnavailable) {
		return domain.NewStackError(op, entity, id, "container engine is not reachable", err)
	}
	return domain.NewStackError(op, entity, id, err.Error(), err)
}
