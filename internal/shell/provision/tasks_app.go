package provision

import (
	"context"
	"time"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/instance"
	"github.com/artpar/devstack/internal/core/pipeline"
	"github.com/artpar/devstack/internal/shell/appdb"
)

// =============================================================================
// Application Steps
// =============================================================================

func (p *Provisioner) connectDB() task {
	return task{
		Title: TitleConnectDB,
		Skip: func(c *TaskContext) (bool, string) {
			_, ok := c.Config.Service(domain.ServiceMariaDB)
			return !ok, "no database configured"
		},
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			conn := appdb.ConnectionFor(c.Config, c.Ports)
			if p.settings.DBTimeout > 0 {
				conn.Timeout = p.settings.DBTimeout
			}
			w, err := p.deps.OpenSettings(conn, p.deps.Logger)
			if err != nil {
				return err
			}
			if err := w.WaitReady(ctx, p.settings.DBInterval, p.settings.DBAttempts); err != nil {
				w.Close()
				return err
			}
			c.DB = w
			h.Output("Connected to %s on port %d", conn.Name, conn.Port)
			return nil
		},
	}
}

// configure writes the post-install settings. A database without the
// application schema is left alone.
func (p *Provisioner) configure() task {
	return task{
		Title: TitleConfigure,
		Skip: func(c *TaskContext) (bool, string) {
			return c.DB == nil, "no database connection"
		},
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			installed, err := c.DB.Installed(ctx)
			if err != nil {
				return err
			}
			if !installed {
				h.Skip("application not installed yet")
				return nil
			}
			return h.Run(ctx, c, []task{
				p.setBaseURL(),
				p.setURLRewrites(),
			}, pipeline.Options{})
		},
	}
}

func (p *Provisioner) setBaseURL() task {
	return task{
		Title: TitleSetBaseURL,
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			settings := instance.BaseURLSettings(c.Config.Host, c.Ports.App, c.Config.SSL)
			n, err := applyChanged(ctx, c.DB, settings)
			if err != nil {
				return err
			}
			if n == 0 {
				h.Output("%s (unchanged)", *settings[0].Value)
				return nil
			}
			h.Output("%s", *settings[0].Value)
			return nil
		},
	}
}

func (p *Provisioner) setURLRewrites() task {
	return task{
		Title: TitleURLRewrites,
		Run: func(ctx context.Context, c *TaskContext, h *handle) error {
			n, err := applyChanged(ctx, c.DB, instance.URLRewriteSettings())
			if err != nil {
				return err
			}
			if n == 0 {
				h.Output("already enabled")
			}
			return nil
		},
	}
}

// applyChanged writes the settings whose stored value differs and returns
// how many it wrote.
func applyChanged(ctx context.Context, db SettingsWriter, settings []instance.Setting) (int, error) {
	var changed []instance.Setting
	for _, s := range settings {
		current, ok, err := db.Get(ctx, s.Path)
		if err != nil {
			return 0, err
		}
		if ok && sameValue(current, s.Value) {
			continue
		}
		changed = append(changed, s)
	}
	if len(changed) == 0 {
		return 0, nil
	}
	return len(changed), db.Apply(ctx, changed)
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (p *Provisioner) recordStart() task {
	return task{
		Title: TitleRecordStart,
		Run: func(ctx context.Context, c *TaskContext, _ *handle) error {
			return p.deps.Store.MarkStarted(ctx, c.Project.ID, time.Now().UTC())
		},
	}
}
