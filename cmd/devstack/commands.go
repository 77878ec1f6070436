package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/moby/sys/atomicwriter"
	"github.com/spf13/cobra"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/pipeline"
	"github.com/artpar/devstack/internal/core/version"
	"github.com/artpar/devstack/internal/engine"
	"github.com/artpar/devstack/internal/shell/docker"
	"github.com/artpar/devstack/internal/shell/ports"
	"github.com/artpar/devstack/internal/shell/provision"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess           = 0
	ExitFailure           = 1
	ExitConfigError       = 2
	ExitEngineUnavailable = 3
	ExitVersionConflict   = 4
	ExitBinaryAcquisition = 5
	ExitReadinessTimeout  = 6
	ExitDatabaseWrite     = 7
)

// configError marks failures to load configuration or parse arguments.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// exitCodeFor maps an error to the process exit code of its kind.
func exitCodeFor(err error) int {
	var cfgErr *configError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &cfgErr),
		errors.Is(err, domain.ErrConfigNotFound),
		errors.Is(err, domain.ErrInvalidProfile):
		return ExitConfigError
	case errors.Is(err, domain.ErrEngineUnavailable):
		return ExitEngineUnavailable
	case errors.Is(err, domain.ErrVersionConflict):
		return ExitVersionConflict
	case errors.Is(err, domain.ErrBinaryAcquisition):
		return ExitBinaryAcquisition
	case errors.Is(err, domain.ErrReadinessTimeout):
		return ExitReadinessTimeout
	case errors.Is(err, domain.ErrDatabaseWrite):
		return ExitDatabaseWrite
	default:
		return ExitFailure
	}
}

// =============================================================================
// Root Command
// =============================================================================

// cli holds the global flags and output streams shared by all commands.
type cli struct {
	configPath     string
	version        string
	nonInteractive bool
	resolution     string
	verbose        bool
	noColor        bool

	stdout io.Writer
	stderr io.Writer
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	root := c.rootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	c.printError(err)
	return exitCodeFor(err)
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "devstack",
		Short: "Local development environments for PHP e-commerce applications",
		Long: `devstack provisions the containers an application needs (runtime, web server,
cache, database, search engine, SSL terminator, mail sink) on the local
container engine and configures the application to use them.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &configError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file")
	flags.StringVar(&c.version, "version-profile", "", "application version profile (default: registered or default profile)")
	flags.BoolVar(&c.nonInteractive, "non-interactive", false, "never prompt; version conflicts take the default resolution")
	flags.StringVar(&c.resolution, "resolution", "", "fixed answer to version conflicts: continue, install or abort")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "show step output")
	flags.BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		c.projectCmd(engine.CommandStart, "Start the environment and configure the application", c.renderStart),
		c.projectCmd(engine.CommandStop, "Stop and remove the environment's containers", nil),
		c.projectCmd(engine.CommandStatus, "Show the state of the environment's containers", c.renderStatus),
		c.stopAllCmd(),
		c.exportComposeCmd(),
		c.versionCmd(),
	)
	return root
}

func (c *cli) projectCmd(command, short string, render func(*engine.Outcome)) *cobra.Command {
	return &cobra.Command{
		Use:   command + " [project-dir]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.dispatch(cmd.Context(), command, args)
			if err != nil {
				return err
			}
			if render != nil && out != nil && out.Context != nil {
				render(out)
			}
			return nil
		},
	}
}

func (c *cli) stopAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   engine.CommandStopAll,
		Short: "Stop the environments of every registered project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.dispatch(cmd.Context(), engine.CommandStopAll, args)
			if err != nil {
				return err
			}
			stopped, skipped := 0, 0
			for _, res := range out.Report.Tasks {
				if res.Status == pipeline.StatusSkipped {
					skipped++
				} else {
					stopped++
				}
			}
			fmt.Fprintf(c.stdout, "Stopped %d project(s), skipped %d\n", stopped, skipped)
			return nil
		},
	}
}

func (c *cli) exportComposeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   engine.CommandExportCompose + " [project-dir]",
		Short: "Print the environment as a compose file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.dispatch(cmd.Context(), engine.CommandExportCompose, args)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err := c.stdout.Write(out.Compose)
				return err
			}
			return atomicwriter.WriteFile(output, out.Compose, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "devstack %s (built %s)\n", Version, BuildTime)
		},
	}
}

// =============================================================================
// Dispatch
// =============================================================================

// dispatch loads the configuration, wires the engine and runs one command.
func (c *cli) dispatch(ctx context.Context, command string, args []string) (*engine.Outcome, error) {
	projectDir, err := projectDirFromArgs(args)
	if err != nil {
		return nil, &configError{err: err}
	}

	cfg, err := LoadConfig(c.configPath, projectDir)
	if err != nil {
		return nil, &configError{err: err}
	}
	if len(args) == 0 && cfg.Project.Path != "" {
		if projectDir, err = filepath.Abs(cfg.Project.Path); err != nil {
			return nil, &configError{err: err}
		}
	}

	setup, err := c.setupConfig(cfg)
	if err != nil {
		return nil, &configError{err: err}
	}
	setup.Logger = SetupLogger(cfg, c.stderr)

	app, err := engine.Setup(ctx, setup)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	v := cfg.Project.Version
	if c.version != "" {
		v = c.version
	}
	return app.Bus.Dispatch(ctx, command, engine.Request{ProjectPath: projectDir, Version: v})
}

func (c *cli) setupConfig(cfg *Config) (engine.SetupConfig, error) {
	overrides, err := cfg.Overrides.BuildOverrides()
	if err != nil {
		return engine.SetupConfig{}, err
	}

	var resolution pipeline.Resolution
	if c.resolution != "" {
		if resolution, err = version.ParseResolution(c.resolution); err != nil {
			return engine.SetupConfig{}, err
		}
	}

	settings := provision.DefaultSettings(cfg.Cache.Dir)
	settings.Overrides = overrides
	settings.PHPBinary = cfg.Composer.PHPBinary
	settings.MaxPasses = cfg.Readiness.MaxPasses
	settings.Applier = docker.ApplierConfig{
		ReadinessInterval: cfg.Readiness.Interval,
		ReadinessAttempts: cfg.Readiness.Attempts,
		StopTimeout:       cfg.Readiness.StopTimeout,
		Limit:             cfg.Readiness.Concurrency,
	}
	settings.DBInterval = cfg.Database.Interval
	settings.DBAttempts = cfg.Database.Attempts
	settings.DBTimeout = cfg.Database.Timeout

	return engine.SetupConfig{
		DockerHost:      cfg.Docker.Host,
		CacheDir:        cfg.Cache.Dir,
		RegistryDSN:     cfg.Registry.DSN,
		ProfileDir:      cfg.Registry.ProfileDir,
		TemplateDir:     cfg.Project.TemplateDir,
		ComposerBaseURL: cfg.Composer.BaseURL,
		Provision:       settings,
		PortRange:       ports.DefaultPortRange(),
		NonInteractive:  c.nonInteractive,
		Resolution:      resolution,
		Verbose:         c.verbose,
		Out:             c.stdout,
		NoColor:         c.noColor,
	}, nil
}

// projectDirFromArgs returns the absolute project directory named by args,
// or the working directory.
func projectDirFromArgs(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return filepath.Abs(args[0])
	}
	return os.Getwd()
}

// =============================================================================
// Rendering
// =============================================================================

func (c *cli) renderStart(out *engine.Outcome) {
	fmt.Fprintln(c.stdout, provision.RenderSummary(out.Context.Metadata))
	if out.Context.ContinueWithExistingComposerVersion {
		fmt.Fprintf(c.stdout, "Continuing with Composer %s; dependency versions may need fixing.\n", out.Context.ComposerVersion)
	}
}

func (c *cli) renderStatus(out *engine.Outcome) {
	fmt.Fprintln(c.stdout, provision.RenderStatus(out.Context.Statuses))
	fmt.Fprintln(c.stdout, provision.RenderSummary(out.Context.Metadata))
}

func (c *cli) printError(err error) {
	red := color.New(color.FgRed, color.Bold)
	if c.noColor {
		red.DisableColor()
	}
	fmt.Fprintf(c.stderr, "%s %v\n", red.Sprint("Error:"), err)
	if hint := domain.RemediationFor(err); hint != "" {
		fmt.Fprintf(c.stderr, "%s\n", hint)
	}
}
