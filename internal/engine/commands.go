package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/artpar/devstack/internal/core/pipeline"
	"github.com/artpar/devstack/internal/shell/provision"
)

// Command names dispatched by the CLI.
const (
	CommandStart         = "start"
	CommandStop          = "stop"
	CommandStatus        = "status"
	CommandStopAll       = "stop-all"
	CommandExportCompose = "export-compose"
)

// ErrUnknownCommand is returned when no handler is registered for a command.
var ErrUnknownCommand = errors.New("unknown command")

// Request carries the arguments of one command.
type Request struct {
	ProjectPath string
	Version     string
}

// Outcome is what a command produced. Fields not relevant to the command
// stay zero.
type Outcome struct {
	Context *provision.TaskContext
	Report  pipeline.Report
	Compose []byte
}

// Handler processes a dispatched command.
type Handler func(ctx context.Context, deps *Deps, req Request) (*Outcome, error)

// Provisioner is the subset of the provisioner the handlers drive.
type Provisioner interface {
	Start(ctx context.Context, req provision.Request) (*provision.Result, error)
	Stop(ctx context.Context, req provision.Request) (*provision.Result, error)
	Status(ctx context.Context, req provision.Request) (*provision.Result, error)
	StopAll(ctx context.Context) (pipeline.Report, error)
	ExportCompose(ctx context.Context, req provision.Request) ([]byte, error)
}

var _ Provisioner = (*provision.Provisioner)(nil)

// Deps holds dependencies available to all command handlers.
type Deps struct {
	Provisioner Provisioner
	Logger      *slog.Logger
}

// Bus dispatches commands to registered handlers.
type Bus struct {
	handlers map[string]Handler
	deps     *Deps
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewBus creates a new command bus.
func NewBus(p Provisioner, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[string]Handler),
		deps: &Deps{
			Provisioner: p,
			Logger:      logger,
		},
		logger: logger.With("component", "bus"),
	}
}

// Register registers a handler for a command name.
func (b *Bus) Register(command string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[command] = handler
}

// Commands returns the registered command names in order.
func (b *Bus) Commands() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch dispatches a command to its registered handler. The outcome is
// returned alongside a failure so partial state can be shown.
func (b *Bus) Dispatch(ctx context.Context, command string, req Request) (*Outcome, error) {
	b.mu.RLock()
	handler, ok := b.handlers[command]
	b.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}

	b.logger.Debug("dispatching command", "command", command, "project", req.ProjectPath)
	out, err := handler(ctx, b.deps, req)
	if err != nil {
		b.logger.Debug("command failed", "command", command, "error", err)
		return out, err
	}
	return out, nil
}

// =============================================================================
// Handlers
// =============================================================================

// RegisterHandlers registers the handlers of every CLI command.
func RegisterHandlers(b *Bus) {
	b.Register(CommandStart, pipelineHandler(Provisioner.Start))
	b.Register(CommandStop, pipelineHandler(Provisioner.Stop))
	b.Register(CommandStatus, pipelineHandler(Provisioner.Status))
	b.Register(CommandStopAll, handleStopAll)
	b.Register(CommandExportCompose, handleExportCompose)
}

type pipelineFunc func(p Provisioner, ctx context.Context, req provision.Request) (*provision.Result, error)

func pipelineHandler(run pipelineFunc) Handler {
	return func(ctx context.Context, deps *Deps, req Request) (*Outcome, error) {
		res, err := run(deps.Provisioner, ctx, provisionRequest(req))
		if res == nil {
			return nil, err
		}
		return &Outcome{Context: res.Context, Report: res.Report}, err
	}
}

func handleStopAll(ctx context.Context, deps *Deps, _ Request) (*Outcome, error) {
	report, err := deps.Provisioner.StopAll(ctx)
	return &Outcome{Report: report}, err
}

func handleExportCompose(ctx context.Context, deps *Deps, req Request) (*Outcome, error) {
	data, err := deps.Provisioner.ExportCompose(ctx, provisionRequest(req))
	if err != nil {
		return nil, err
	}
	return &Outcome{Compose: data}, nil
}

func provisionRequest(req Request) provision.Request {
	return provision.Request{ProjectPath: req.ProjectPath, Version: req.Version}
}
