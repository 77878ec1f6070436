package provision

import (
	"context"
	"errors"

	"github.com/artpar/devstack/internal/core/configuration"
	"github.com/artpar/devstack/internal/core/deployment"
	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/pipeline"
	"github.com/artpar/devstack/internal/core/profiles"
	"github.com/artpar/devstack/internal/shell/docker"
	"github.com/artpar/devstack/internal/shell/ports"
	"github.com/artpar/devstack/internal/shell/store"
)

type task = pipeline.Task[*TaskContext]

type handle = pipeline.Handle[*TaskContext]

// =============================================================================
// Planning Steps
// =============================================================================

func (p *Provisioner) checkEngine() task {
	return task{
		Title: TitleCheckEngine,
		Run: func(ctx context.Context, _ *TaskContext, _ *handle) error {
			if err := p.deps.Docker.Ping(ctx); err != nil {
				return domain.NewStackError("CheckEngine", "engine", "", "container engine is not reachable", err)
			}
			return nil
		},
	}
}

// loadProject reads the registered project of the directory. An unknown
// directory gets an unsaved record; the default ports stand in for saved ones.
func (p *Provisioner) loadProject() task {
	return task{
		Title: TitleLoadProject,
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			project, err := p.deps.Store.GetProjectByPath(ctx, c.ProjectPath)
			switch {
			case errors.Is(err, store.ErrNotFound):
				project, err = domain.NewProject("", c.ProjectPath, "", domain.Ports{})
				if err != nil {
					return err
				}
				h.Output("New project %s", project.Name)
			case err != nil:
				return err
			}
			c.Project = project
			c.Ports = domain.DefaultPorts().Merge(project.Ports)
			return nil
		},
	}
}

func (p *Provisioner) resolveConfig() task {
	return task{
		Title: TitleResolveConfig,
		Run: func(_ context.Context, c *TaskContext, h *handle) error {
			version := c.Version
			if version == "" && c.Project != nil {
				version = c.Project.Version
			}
			if version == "" {
				version = profiles.DefaultVersion
			}

			cfg, err := configuration.Compose(p.deps.Registry, version, p.settings.TemplateDir, p.settings.Overrides)
			if err != nil {
				return err
			}
			c.Config = cfg
			h.Output("Application version %s", cfg.AppVersion)
			return nil
		},
	}
}

func (p *Provisioner) assignPorts() task {
	return task{
		Title: TitleAssignPorts,
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			owned, err := p.ownedPorts(ctx, c.Project.Name)
			if err != nil {
				return err
			}
			assigned, err := p.deps.Ports.Assign(ports.Request{
				Override: c.Config.Ports,
				Saved:    c.Project.Ports,
				Owned:    owned,
				SSL:      c.Config.SSL,
			})
			if err != nil {
				return err
			}
			c.Ports = assigned
			h.Output("Application port %d", assigned.App)
			return nil
		},
	}
}

// ownedPorts returns the host ports published by the project's containers.
func (p *Provisioner) ownedPorts(ctx context.Context, projectName string) (map[int]bool, error) {
	containers, err := p.deps.Docker.ListContainers(ctx, docker.ListOptions{
		All:    true,
		Labels: map[string]string{deployment.LabelProject: deployment.ProjectSlug(projectName)},
	})
	if err != nil {
		return nil, domain.NewStackError("AssignPorts", "engine", "", "failed to list project containers", err)
	}
	owned := make(map[int]bool)
	for _, ctr := range containers {
		for port := range ports.Published(ctr.Ports) {
			owned[port] = true
		}
	}
	return owned, nil
}

func (p *Provisioner) registerProject() task {
	return task{
		Title: TitleRegisterProject,
		Run: func(ctx context.Context, c *TaskContext, _ *handle) error {
			c.Project.Version = c.Config.AppVersion
			c.Project.Ports = c.Ports
			return p.deps.Store.UpsertProject(ctx, c.Project)
		},
	}
}

func (p *Provisioner) derive() task {
	return task{
		Title: TitleDerive,
		Run: func(_ context.Context, c *TaskContext, h *handle) error {
			specs, err := deployment.Derive(deployment.DeriveParams{
				Config:      c.Config,
				Project:     c.Project.Name,
				ProjectPath: c.ProjectPath,
				Ports:       c.Ports,
				CacheDir:    p.settings.CacheDir,
			})
			if err != nil {
				return err
			}
			c.Specs = specs
			h.Output("%d containers", len(specs))
			return nil
		},
	}
}
