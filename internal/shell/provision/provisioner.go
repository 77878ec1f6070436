package provision

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/devstack/internal/core/configuration"
	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/instance"
	"github.com/artpar/devstack/internal/core/pipeline"
	"github.com/artpar/devstack/internal/shell/appdb"
	"github.com/artpar/devstack/internal/shell/binary"
	"github.com/artpar/devstack/internal/shell/docker"
	"github.com/artpar/devstack/internal/shell/ports"
	"github.com/artpar/devstack/internal/shell/process"
	"github.com/artpar/devstack/internal/shell/store"
)

// Step titles.
const (
	TitleCheckEngine     = "Checking container engine"
	TitleLoadProject     = "Loading project"
	TitleResolveConfig   = "Resolving configuration"
	TitleAssignPorts     = "Assigning ports"
	TitleRegisterProject = "Registering project"
	TitleDerive          = "Deriving containers"
	TitleInspect         = "Inspecting containers"
	TitleReconcileStart  = "Planning container changes"
	TitleReconcileStop   = "Planning container removal"
	TitleStopOutdated    = "Stopping outdated containers"
	TitlePull            = "Pulling images"
	TitleStart           = "Starting containers"
	TitleConverge        = "Converging containers"
	TitleWaitReady       = "Waiting for containers"
	TitleStopContainers  = "Stopping containers"
	TitlePrepare         = "Preparing application"
	TitleInstallComposer = "Installing Composer"
	TitleConnectDB       = "Connecting to database"
	TitleConfigure       = "Configuring application"
	TitleSetBaseURL      = "Setting base url"
	TitleURLRewrites     = "Enabling url rewrites"
	TitleRecordStart     = "Recording start"
	TitleStatus          = "Collecting container status"
	TitleMetadata        = "Collecting instance information"
)

// =============================================================================
// Collaborators
// =============================================================================

// SettingsWriter writes application settings into the application database.
type SettingsWriter interface {
	WaitReady(ctx context.Context, interval time.Duration, attempts uint64) error
	Installed(ctx context.Context) (bool, error)
	Get(ctx context.Context, path string) (*string, bool, error)
	Apply(ctx context.Context, settings []instance.Setting) error
	Close() error
}

var _ SettingsWriter = (*appdb.Writer)(nil)

// SettingsOpener opens a settings writer for a connection.
type SettingsOpener func(conn appdb.ConnectionConfig, logger *slog.Logger) (SettingsWriter, error)

// OpenMySQL opens the production MariaDB settings writer.
func OpenMySQL(conn appdb.ConnectionConfig, logger *slog.Logger) (SettingsWriter, error) {
	return appdb.Open(conn, logger)
}

// BinaryFetcher acquires the package-manager binary.
type BinaryFetcher interface {
	Cached(channel string) bool
	Path(channel string) string
	Fetch(ctx context.Context, channel string, force bool) (string, error)
}

var _ BinaryFetcher = (*binary.Fetcher)(nil)

// PortAssigner assigns host ports.
type PortAssigner interface {
	Assign(req ports.Request) (domain.Ports, error)
}

var _ PortAssigner = (*ports.Assigner)(nil)

// Deps are the collaborators of the provisioner.
type Deps struct {
	Registry     configuration.Lookup
	Docker       docker.Client
	Store        store.Store
	Fetcher      BinaryFetcher
	Runner       process.Runner
	Ports        PortAssigner
	OpenSettings SettingsOpener
	Prompter     pipeline.Prompter
	Reporter     pipeline.Reporter
	Logger       *slog.Logger
}

// Settings are the static options of the provisioner.
type Settings struct {
	TemplateDir  string
	CacheDir     string
	Overrides    domain.Overrides
	PHPBinary    string // host interpreter that runs the package manager
	Applier      docker.ApplierConfig
	MaxPasses    int // reconciliation passes before giving up
	DBInterval   time.Duration
	DBAttempts   uint64
	DBTimeout    time.Duration
	StopAllLimit int // projects listed by stop-all
}

// DefaultSettings returns the settings used when the configuration is silent.
func DefaultSettings(cacheDir string) Settings {
	return Settings{
		CacheDir:     cacheDir,
		PHPBinary:    "php",
		Applier:      docker.DefaultApplierConfig(),
		MaxPasses:    4,
		DBInterval:   2 * time.Second,
		DBAttempts:   30,
		DBTimeout:    5 * time.Second,
		StopAllLimit: 1000,
	}
}

// =============================================================================
// Provisioner
// =============================================================================

// Provisioner runs the command pipelines.
type Provisioner struct {
	deps      Deps
	settings  Settings
	inspector *docker.Inspector
	applier   *docker.Applier
	logger    *slog.Logger
}

// New creates a provisioner.
func New(deps Deps, settings Settings) *Provisioner {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.OpenSettings == nil {
		deps.OpenSettings = OpenMySQL
	}
	if deps.Prompter == nil {
		deps.Prompter = pipeline.DefaultPrompter{}
	}
	if settings.MaxPasses <= 0 {
		settings.MaxPasses = 4
	}
	if settings.PHPBinary == "" {
		settings.PHPBinary = "php"
	}
	return &Provisioner{
		deps:      deps,
		settings:  settings,
		inspector: docker.NewInspector(deps.Docker, deps.Logger),
		applier:   docker.NewApplier(deps.Docker, deps.Logger, settings.Applier),
		logger:    deps.Logger.With("component", "provision"),
	}
}

func (p *Provisioner) newContext(projectPath, version string) *TaskContext {
	return &TaskContext{
		RunID:       uuid.New().String(),
		ProjectPath: projectPath,
		Version:     version,
	}
}

func (p *Provisioner) runner() *pipeline.Runner[*TaskContext] {
	return pipeline.NewRunner[*TaskContext](pipeline.Config{
		Prompter: p.deps.Prompter,
		Reporter: p.deps.Reporter,
	})
}
