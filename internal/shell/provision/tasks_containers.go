package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/instance"
	"github.com/artpar/devstack/internal/core/monitoring"
	"github.com/artpar/devstack/internal/core/pipeline"
	"github.com/artpar/devstack/internal/core/reconcile"
)

// =============================================================================
// Container Steps
// =============================================================================

func (p *Provisioner) inspect() task {
	return task{
		Title: TitleInspect,
		Run: func(ctx context.Context, c *TaskContext, _ *handle) error {
			states, err := p.inspector.Inspect(ctx, specNames(c.Specs))
			if err != nil {
				return err
			}
			images, err := p.inspector.LocalImages(ctx, imageRefs(c.Specs))
			if err != nil {
				return err
			}
			c.States = states
			c.Images = images
			return nil
		},
	}
}

func (p *Provisioner) plan(title string, intent domain.Intent) task {
	return task{
		Title: title,
		Run: func(_ context.Context, c *TaskContext, h *handle) error {
			c.Actions = reconcile.Reconcile(reconcile.Params{
				Specs:  c.Specs,
				States: c.States,
				Images: c.Images,
				Intent: intent,
			})
			if c.Actions.IsEmpty() {
				h.Output("Nothing to change")
				return nil
			}
			h.Output("pull %d, start %d, stop %d", len(c.Actions.ToPull), len(c.Actions.ToStart), len(c.Actions.ToStop))
			return nil
		},
	}
}

func (p *Provisioner) stopOutdated() task {
	return task{
		Title: TitleStopOutdated,
		Skip: func(c *TaskContext) (bool, string) {
			return len(c.Actions.ToStop) == 0, "no outdated containers"
		},
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			h.Output("%s", strings.Join(c.Actions.ToStop, ", "))
			return p.applier.Stop(ctx, c.Actions.ToStop)
		},
	}
}

func (p *Provisioner) pull() task {
	return task{
		Title: TitlePull,
		Skip: func(c *TaskContext) (bool, string) {
			return len(c.Actions.ToPull) == 0, "all images present"
		},
		Run: func(ctx context.Context, c *TaskContext, _ *handle) error {
			return p.applier.Pull(ctx, reconcile.SpecsByName(c.Specs, c.Actions.ToPull))
		},
	}
}

func (p *Provisioner) start() task {
	return task{
		Title: TitleStart,
		Skip: func(c *TaskContext) (bool, string) {
			return len(c.Actions.ToStart) == 0, "all containers already running"
		},
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			for i, stage := range c.Actions.Stages {
				h.Output("stage %d: %s", i+1, strings.Join(stage, ", "))
			}
			return p.applier.Start(ctx, c.Specs, c.Actions.Stages)
		},
	}
}

// converge repeats inspect, plan and apply until a pass plans nothing.
// Pulled images start on the next pass; drifted containers are stopped in
// one pass and recreated in the next.
func (p *Provisioner) converge() task {
	return task{
		Title: TitleConverge,
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			for pass := 1; pass <= p.settings.MaxPasses; pass++ {
				c.Passes = pass
				err := h.Run(ctx, c, []task{
					p.inspect(),
					p.plan(TitleReconcileStart, domain.IntentStart),
					p.stopOutdated(),
					p.pull(),
					p.start(),
				}, pipeline.Options{})
				if err != nil {
					return err
				}
				if c.Actions.IsEmpty() {
					if pass == 1 {
						h.Skip("containers already up to date")
					}
					return nil
				}
			}
			return domain.NewStackError("Converge", "containers", "",
				fmt.Sprintf("containers did not converge after %d passes", p.settings.MaxPasses), nil).
				WithRemediation("Run the command again; inspect the containers with the status command if it keeps failing.")
		},
	}
}

func (p *Provisioner) waitReady() task {
	return task{
		Title: TitleWaitReady,
		Run: func(ctx context.Context, c *TaskContext, _ *handle) error {
			return p.applier.WaitReady(ctx, c.Specs)
		},
	}
}

func (p *Provisioner) stopContainers() task {
	return task{
		Title: TitleStopContainers,
		Skip: func(c *TaskContext) (bool, string) {
			return len(c.Actions.ToStop) == 0, "no containers running"
		},
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			h.Output("%s", strings.Join(c.Actions.ToStop, ", "))
			return p.applier.Stop(ctx, c.Actions.ToStop)
		},
	}
}

// =============================================================================
// Reporting Steps
// =============================================================================

func (p *Provisioner) status() task {
	return task{
		Title: TitleStatus,
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			states, err := p.inspector.Inspect(ctx, specNames(c.Specs))
			if err != nil {
				return err
			}
			c.States = states
			c.Statuses = reconcile.Summarize(c.Specs, states)
			for _, row := range c.Statuses {
				h.Output("%s", monitoring.StatusMessage(row))
			}
			return nil
		},
	}
}

func (p *Provisioner) metadata() task {
	return task{
		Title: TitleMetadata,
		Run: func(_ context.Context, c *TaskContext, _ *handle) error {
			c.Metadata = instance.BuildMetadata(c.Config, c.Ports)
			return nil
		},
	}
}

func specNames(specs []domain.ContainerSpec) []string {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	return names
}

func imageRefs(specs []domain.ContainerSpec) []string {
	seen := make(map[string]bool, len(specs))
	refs := make([]string, 0, len(specs))
	for _, s := range specs {
		ref := s.ImageRef()
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}
