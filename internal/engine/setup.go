package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/pipeline"
	"github.com/artpar/devstack/internal/core/profiles"
	"github.com/artpar/devstack/internal/shell/binary"
	"github.com/artpar/devstack/internal/shell/docker"
	"github.com/artpar/devstack/internal/shell/ports"
	"github.com/artpar/devstack/internal/shell/process"
	"github.com/artpar/devstack/internal/shell/prompt"
	"github.com/artpar/devstack/internal/shell/provision"
	"github.com/artpar/devstack/internal/shell/store"
)

// SetupConfig holds everything needed to wire the command bus.
type SetupConfig struct {
	DockerHost  string
	CacheDir    string // composer binaries and the project registry live here
	RegistryDSN string // project registry, {CacheDir}/registry.db when empty
	ProfileDir  string // extra YAML version profiles
	TemplateDir string

	ComposerBaseURL string
	Provision       provision.Settings
	PortRange       ports.PortRange

	NonInteractive bool
	Resolution     pipeline.Resolution // fixed answer to version conflicts
	Verbose        bool
	Out            io.Writer // step output, os.Stdout when nil
	NoColor        bool

	Logger *slog.Logger
}

// App is the wired command bus with the resources it owns.
type App struct {
	Bus     *Bus
	closers []io.Closer
}

// Close releases the engine client and the project registry.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Setup creates the engine client, the project registry and the
// provisioner, and registers every command handler.
func Setup(ctx context.Context, cfg SetupConfig) (*App, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if cfg.RegistryDSN == "" {
		cfg.RegistryDSN = filepath.Join(cfg.CacheDir, "registry.db")
	}
	if cfg.PortRange == (ports.PortRange{}) {
		cfg.PortRange = ports.DefaultPortRange()
	}

	registry, err := profiles.NewBuiltinRegistry()
	if err != nil {
		return nil, err
	}
	if err := profiles.LoadDir(registry, cfg.ProfileDir); err != nil {
		return nil, err
	}

	app := &App{}

	client, err := docker.NewDockerClient(ctx, cfg.DockerHost)
	if err != nil {
		return nil, domain.NewStackError("Setup", "engine", cfg.DockerHost, err.Error(), domain.ErrEngineUnavailable)
	}
	app.closers = append(app.closers, client)

	st, err := store.NewSQLiteStore(cfg.RegistryDSN)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open project registry: %w", err)
	}
	app.closers = append(app.closers, st)

	fetcherCfg := binary.DefaultConfig(cfg.CacheDir)
	if cfg.ComposerBaseURL != "" {
		fetcherCfg.BaseURL = cfg.ComposerBaseURL
	}

	reporter := provision.NewColorReporter(cfg.Out, cfg.Verbose)
	if cfg.NoColor {
		reporter.WithoutColor()
	}

	settings := cfg.Provision
	settings.CacheDir = cfg.CacheDir
	settings.TemplateDir = cfg.TemplateDir

	p := provision.New(provision.Deps{
		Registry: registry,
		Docker:   client,
		Store:    st,
		Fetcher:  binary.NewFetcher(fetcherCfg, cfg.Logger),
		Runner:   process.ExecRunner{},
		Ports:    ports.NewAssigner(ports.ListenProber{}, cfg.PortRange, cfg.Logger),
		Prompter: prompt.Choose(cfg.Resolution, cfg.NonInteractive),
		Reporter: reporter,
		Logger:   cfg.Logger,
	}, settings)

	app.Bus = NewBus(p, cfg.Logger)
	RegisterHandlers(app.Bus)

	cfg.Logger.Debug("engine ready",
		"cache_dir", cfg.CacheDir,
		"registry", cfg.RegistryDSN,
		"profiles", registry.Versions(),
	)
	return app, nil
}
