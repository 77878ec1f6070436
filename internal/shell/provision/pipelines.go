package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/artpar/devstack/internal/core/compose"
	"github.com/artpar/devstack/internal/core/deployment"
	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/pipeline"
	"github.com/artpar/devstack/internal/shell/store"
)

// Request identifies the project a command acts on.
type Request struct {
	ProjectPath string // absolute application directory
	Version     string // application version, "" for the registered or default one
}

// Result is the outcome of one command pipeline. Context is returned even
// when the pipeline fails so callers can show partial state.
type Result struct {
	Context *TaskContext
	Report  pipeline.Report
}

// =============================================================================
// Pipelines
// =============================================================================

// StartTasks returns the steps of the start command.
func (p *Provisioner) StartTasks() []task {
	return []task{
		p.checkEngine(),
		p.loadProject(),
		p.resolveConfig(),
		p.assignPorts(),
		p.registerProject(),
		p.derive(),
		p.converge(),
		p.waitReady(),
		{
			Title: TitlePrepare,
			Run: func(ctx context.Context, c *TaskContext, h *handle) error {
				return h.Run(ctx, c, p.PrepareTasks(), pipeline.Options{Concurrent: true})
			},
		},
		p.configure(),
		p.recordStart(),
		p.status(),
		p.metadata(),
	}
}

// PrepareTasks returns the concurrent group run once containers are ready.
// The steps write disjoint TaskContext fields.
func (p *Provisioner) PrepareTasks() []task {
	return []task{
		p.installComposer(),
		p.connectDB(),
	}
}

// StopTasks returns the steps of the stop command.
func (p *Provisioner) StopTasks() []task {
	return []task{
		p.checkEngine(),
		p.loadProject(),
		p.resolveConfig(),
		p.derive(),
		p.inspect(),
		p.plan(TitleReconcileStop, domain.IntentStop),
		p.stopContainers(),
	}
}

// StatusTasks returns the steps of the status command.
func (p *Provisioner) StatusTasks() []task {
	return []task{
		p.checkEngine(),
		p.loadProject(),
		p.resolveConfig(),
		p.derive(),
		p.status(),
		p.metadata(),
	}
}

// Start brings the project's environment up and configures the application.
// A failure leaves already applied changes in place; running start again
// resumes from the observed state.
func (p *Provisioner) Start(ctx context.Context, req Request) (*Result, error) {
	return p.run(ctx, req, p.StartTasks())
}

// Stop stops and removes the project's containers. Networks and volumes
// are kept.
func (p *Provisioner) Stop(ctx context.Context, req Request) (*Result, error) {
	return p.run(ctx, req, p.StopTasks())
}

// Status reports the state of the project's containers.
func (p *Provisioner) Status(ctx context.Context, req Request) (*Result, error) {
	return p.run(ctx, req, p.StatusTasks())
}

func (p *Provisioner) run(ctx context.Context, req Request, tasks []task) (*Result, error) {
	c := p.newContext(req.ProjectPath, req.Version)
	defer func() {
		if c.DB != nil {
			c.DB.Close()
		}
	}()

	p.logger.Debug("pipeline started", "run_id", c.RunID, "project", req.ProjectPath)
	report, err := p.runner().Run(ctx, c, tasks, pipeline.Options{})
	if err != nil {
		p.logger.Debug("pipeline failed", "run_id", c.RunID, "error", err)
	}
	return &Result{Context: c, Report: report}, err
}

// StopAll stops every registered project in turn. Projects whose directory
// no longer holds a composer.json are skipped.
func (p *Provisioner) StopAll(ctx context.Context) (pipeline.Report, error) {
	projects, err := p.deps.Store.ListProjects(ctx, store.ListOptions{Limit: p.settings.StopAllLimit})
	if err != nil {
		return pipeline.Report{}, err
	}

	tasks := make([]task, 0, len(projects))
	for _, project := range projects {
		tasks = append(tasks, task{
			Title: "Stopping application " + project.Path,
			Skip: func(*TaskContext) (bool, string) {
				return !hasComposerJSON(project.Path), "no composer.json found"
			},
			Run: func(ctx context.Context, _ *TaskContext, h *handle) error {
				return h.Run(ctx, p.newContext(project.Path, ""), p.StopTasks(), pipeline.Options{})
			},
		})
	}

	return p.runner().Run(ctx, p.newContext("", ""), tasks, pipeline.Options{})
}

func hasComposerJSON(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "composer.json"))
	return err == nil && !info.IsDir()
}

// ExportCompose renders the project's desired containers as a compose file.
// Saved ports are used as they are; nothing is probed or started. The output
// is loaded back before it is returned and must describe the same
// containers.
func (p *Provisioner) ExportCompose(ctx context.Context, req Request) ([]byte, error) {
	res, err := p.run(ctx, req, []task{
		p.loadProject(),
		p.resolveConfig(),
		p.derive(),
	})
	if err != nil {
		return nil, err
	}
	c := res.Context
	project, err := compose.Export(deployment.ProjectSlug(c.Project.Name), c.Specs)
	if err != nil {
		return nil, err
	}
	data, err := compose.MarshalProject(project)
	if err != nil {
		return nil, err
	}
	if err := verifyExport(data, c.Specs); err != nil {
		return nil, err
	}
	return data, nil
}

func verifyExport(data []byte, specs []domain.ContainerSpec) error {
	loaded, err := compose.Parse(string(data))
	if err != nil {
		return fmt.Errorf("exported compose file does not load: %w", err)
	}
	want := specNames(specs)
	got := specNames(loaded)
	sort.Strings(want)
	sort.Strings(got)
	if !slices.Equal(want, got) {
		return fmt.Errorf("exported compose file describes %v, want %v", got, want)
	}
	return nil
}
