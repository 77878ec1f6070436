package provision

import (
	"context"
	"fmt"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/version"
	"github.com/artpar/devstack/internal/shell/process"
)

const composerTool = "Composer"

// installComposer makes the package-manager binary available and negotiates
// its version. A missing binary is downloaded. A cached binary that does not
// satisfy the profile suspends the step for a resolution: continue with the
// installed binary, install the required one, or abort.
func (p *Provisioner) installComposer() task {
	return task{
		Title:         TitleInstallComposer,
		PromptCapable: true,
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			svc, ok := c.Config.Service(domain.ServiceComposer)
			if !ok {
				h.Skip("no package manager configured")
				return nil
			}
			req, err := version.ParseRequirement(svc.Version)
			if err != nil {
				return err
			}

			if !p.deps.Fetcher.Cached(req.Channel) {
				h.Output("Downloading %s %s", composerTool, req.Channel)
				path, err := p.deps.Fetcher.Fetch(ctx, req.Channel, false)
				if err != nil {
					return err
				}
				c.ComposerPath = path
			} else {
				c.ComposerPath = p.deps.Fetcher.Path(req.Channel)
				if err := p.negotiate(ctx, c, h, req); err != nil {
					return err
				}
			}

			installed, err := p.composerVersion(ctx, c.ComposerPath)
			if err != nil {
				return err
			}
			c.ComposerVersion = installed
			h.Output("Using %s version %s", composerTool, installed)
			return nil
		},
	}
}

func (p *Provisioner) negotiate(ctx context.Context, c *TaskContext, h *handle, req version.Requirement) error {
	installed, err := p.composerVersion(ctx, c.ComposerPath)
	if err != nil {
		return err
	}
	verdict, err := version.Check(installed, req)
	if err != nil {
		return domain.NewStackError("InstallComposer", "binary", req.Channel, err.Error(), domain.ErrBinaryAcquisition)
	}
	if verdict.Compatible {
		return nil
	}

	resolution, err := h.Prompt(ctx, version.ConflictQuestion(composerTool, verdict))
	if err != nil {
		return err
	}
	switch resolution {
	case version.ResolutionInstall:
		h.Output("Installing %s %s", composerTool, req.Channel)
		path, err := p.deps.Fetcher.Fetch(ctx, req.Channel, true)
		if err != nil {
			return err
		}
		c.ComposerPath = path
	case version.ResolutionAbort:
		return domain.NewStackError("InstallComposer", "binary", req.Channel,
			fmt.Sprintf("current %s version %s is not compatible with %s", composerTool, installed, req.Constraint),
			domain.ErrVersionConflict)
	default:
		c.ContinueWithExistingComposerVersion = true
	}
	return nil
}

// composerVersion runs the binary with the host interpreter and extracts the
// reported version.
func (p *Provisioner) composerVersion(ctx context.Context, path string) (string, error) {
	res, err := p.deps.Runner.Run(ctx, process.Command{
		Name: p.settings.PHPBinary,
		Args: []string{path, "--version", "--no-ansi"},
	})
	if err != nil {
		return "", domain.NewStackError("ComposerVersion", "binary", path, err.Error(), domain.ErrBinaryAcquisition).
			WithRemediation(fmt.Sprintf("Make sure %q can run %s, or delete it so the next start downloads it again.", p.settings.PHPBinary, path))
	}
	installed, err := version.ExtractVersion(string(res.Stdout))
	if err != nil {
		return "", domain.NewStackError("ComposerVersion", "binary", path, err.Error(), domain.ErrBinaryAcquisition).
			WithRemediation(fmt.Sprintf("Check that %s contains the %s program; delete it and run start again to download it.", path, composerTool))
	}
	return installed, nil
}
