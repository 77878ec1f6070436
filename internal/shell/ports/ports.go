// Package ports assigns host ports to the services of one project.
package ports

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/artpar/devstack/internal/core/domain"
)

// ErrNoAvailablePort is returned when neither the preferred port nor any
// port of the fallback range can be bound.
var ErrNoAvailablePort = errors.New("no available ports in range")

// PortRange is an inclusive range of fallback host ports.
type PortRange struct {
	Start int
	End   int
}

// DefaultPortRange returns the range searched when a preferred port is taken.
func DefaultPortRange() PortRange {
	return PortRange{Start: 30000, End: 39999}
}

// Contains reports whether port is within the range.
func (r PortRange) Contains(port int) bool {
	return port >= r.Start && port <= r.End
}

// =============================================================================
// Probing
// =============================================================================

// Prober reports whether a host port can be bound right now.
type Prober interface {
	Available(port int) bool
}

// ListenProber probes by briefly listening on the port.
type ListenProber struct {
	Host string // "" for all interfaces
}

// Available listens on port and closes the listener immediately.
func (p ListenProber) Available(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort(p.Host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// =============================================================================
// Assignment
// =============================================================================

// Request is the input of one assignment.
type Request struct {
	Override domain.Ports // explicit ports, used without probing
	Saved    domain.Ports // ports the project used last time
	Owned    map[int]bool // host ports published by the project's own containers
	SSL      bool         // assign the SSL terminator port; zero otherwise
}

// Assigner picks a host port per service. Precedence is override, then the
// saved port, then the default port, then the first free fallback port. A
// port held by the project's own containers counts as free.
type Assigner struct {
	prober   Prober
	fallback PortRange
	logger   *slog.Logger
}

// NewAssigner creates an assigner.
func NewAssigner(prober Prober, fallback PortRange, logger *slog.Logger) *Assigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assigner{
		prober:   prober,
		fallback: fallback,
		logger:   logger.With("component", "ports"),
	}
}

type slot struct {
	name  string
	out   *int
	over  int
	saved int
	def   int
}

// Assign returns a complete port assignment. No two services share a port.
func (a *Assigner) Assign(req Request) (domain.Ports, error) {
	var out domain.Ports
	def := domain.DefaultPorts()
	slots := []slot{
		{"app", &out.App, req.Override.App, req.Saved.App, def.App},
		{"fpm", &out.FPM, req.Override.FPM, req.Saved.FPM, def.FPM},
		{"mariadb", &out.MariaDB, req.Override.MariaDB, req.Saved.MariaDB, def.MariaDB},
		{"redis", &out.Redis, req.Override.Redis, req.Saved.Redis, def.Redis},
		{"elasticsearch", &out.Elasticsearch, req.Override.Elasticsearch, req.Saved.Elasticsearch, def.Elasticsearch},
		{"maildev_smtp", &out.MaildevSMTP, req.Override.MaildevSMTP, req.Saved.MaildevSMTP, def.MaildevSMTP},
		{"maildev_web", &out.MaildevWeb, req.Override.MaildevWeb, req.Saved.MaildevWeb, def.MaildevWeb},
	}
	if req.SSL {
		slots = append(slots, slot{"ssl_terminator", &out.SSLTerminator, req.Override.SSLTerminator, req.Saved.SSLTerminator, def.SSLTerminator})
	}

	taken := make(map[int]bool, len(slots))
	for _, s := range slots {
		if s.over != 0 {
			*s.out = s.over
			taken[s.over] = true
		}
	}

	usable := func(port int) bool {
		if port <= 0 || taken[port] {
			return false
		}
		return req.Owned[port] || a.prober.Available(port)
	}

	for _, s := range slots {
		if s.over != 0 {
			continue
		}
		port, err := a.pick(s, usable, taken)
		if err != nil {
			return domain.Ports{}, fmt.Errorf("assign %s port: %w", s.name, err)
		}
		*s.out = port
		taken[port] = true
	}
	return out, nil
}

func (a *Assigner) pick(s slot, usable func(int) bool, taken map[int]bool) (int, error) {
	for _, candidate := range []int{s.saved, s.def} {
		if usable(candidate) {
			return candidate, nil
		}
	}

	port, err := allocate(taken, a.fallback, usable)
	if err != nil {
		return 0, err
	}
	a.logger.Info("preferred port unavailable, using fallback",
		"service", s.name,
		"preferred", s.def,
		"port", port,
	)
	return port, nil
}

// allocate finds the first port in r that is not taken and passes usable.
func allocate(taken map[int]bool, r PortRange, usable func(int) bool) (int, error) {
	for port := r.Start; port <= r.End; port++ {
		if taken[port] {
			continue
		}
		if usable(port) {
			return port, nil
		}
	}
	return 0, ErrNoAvailablePort
}

// Published collects the host ports of bindings into a set.
func Published(bindings []domain.PortBinding) map[int]bool {
	set := make(map[int]bool, len(bindings))
	for _, b := range bindings {
		if b.HostPort != 0 {
			set[b.HostPort] = true
		}
	}
	return set
}
