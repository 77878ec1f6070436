// Package monitoring provides pure functions for container readiness and
// health classification.
// This package contains NO I/O.
package monitoring

import "github.com/artpar/devstack/internal/core/domain"

// =============================================================================
// Engine State Classification (Pure Functions)
// =============================================================================

// ClassifyState maps a raw engine state ("running", "exited", ...) and health
// check result to the observed status and health.
//
// Restarting and paused containers count as running: they exist with their
// process attached and must not be started a second time.
func ClassifyState(state string, health string) (domain.ContainerStatus, domain.Health) {
	switch state {
	case "running", "restarting", "paused":
		return domain.ContainerRunning, classifyHealth(health)
	case "":
		return domain.ContainerAbsent, domain.HealthNone
	default:
		return domain.ContainerStopped, domain.HealthNone
	}
}

func classifyHealth(health string) domain.Health {
	switch health {
	case "healthy":
		return domain.HealthHealthy
	case "unhealthy":
		return domain.HealthUnhealthy
	case "starting":
		return domain.HealthStarting
	default:
		return domain.HealthNone
	}
}

// =============================================================================
// Readiness (Pure Functions)
// =============================================================================

// Readiness is the result of one readiness probe of a started container.
type Readiness string

const (
	ReadinessReady   Readiness = "ready"
	ReadinessPending Readiness = "pending"
	ReadinessFailed  Readiness = "failed"
)

// DetermineReadiness classifies a container that was just started.
//
// Parameters:
// - state: observed container state
// - hasHealthCheck: whether the container spec declares an engine health check
//
// A restarting container is pending: it counts as running but its process
// keeps exiting, so it never passes readiness on its own.
// A running container without a health check is ready as soon as it runs.
// A container with a health check is ready only once the engine reports it
// healthy. A container that stopped or was removed after starting failed.
func DetermineReadiness(state domain.ContainerState, hasHealthCheck bool) Readiness {
	if state.Status != domain.ContainerRunning {
		return ReadinessFailed
	}
	if state.State == "restarting" {
		return ReadinessPending
	}
	if !hasHealthCheck {
		return ReadinessReady
	}
	switch state.Health {
	case domain.HealthHealthy:
		return ReadinessReady
	case domain.HealthUnhealthy:
		return ReadinessFailed
	default:
		return ReadinessPending
	}
}

// StageReadiness summarizes the readiness of every container of one stage.
// The stage is ready when no container is pending or failed.
type StageReadiness struct {
	Pending []string
	Failed  []string
}

// Ready reports whether every container of the stage is ready.
func (s StageReadiness) Ready() bool {
	return len(s.Pending) == 0 && len(s.Failed) == 0
}

// EvaluateStage classifies every spec of a stage against observed states.
// Missing states count as absent.
func EvaluateStage(specs []domain.ContainerSpec, states map[string]domain.ContainerState) StageReadiness {
	var result StageReadiness
	for _, spec := range specs {
		state, ok := states[spec.Name]
		if !ok {
			state = domain.AbsentState(spec.Name)
		}
		switch DetermineReadiness(state, spec.HealthCheck != nil) {
		case ReadinessPending:
			result.Pending = append(result.Pending, spec.Name)
		case ReadinessFailed:
			result.Failed = append(result.Failed, spec.Name)
		}
	}
	return result
}

// =============================================================================
// Health Aggregation (Pure Functions)
// =============================================================================

// OverallHealth is the aggregate health of a project.
type OverallHealth string

const (
	OverallHealthy   OverallHealth = "healthy"
	OverallDegraded  OverallHealth = "degraded"
	OverallUnhealthy OverallHealth = "unhealthy"
	OverallStopped   OverallHealth = "stopped"
	OverallUnknown   OverallHealth = "unknown"
)

// AggregateHealth determines the overall project health from status rows.
func AggregateHealth(rows []domain.ServiceStatus) OverallHealth {
	if len(rows) == 0 {
		return OverallUnknown
	}

	running, unhealthy, degraded := 0, 0, 0
	for _, r := range rows {
		if r.Status != domain.ContainerRunning {
			continue
		}
		running++
		switch {
		case r.Health == domain.HealthUnhealthy:
			unhealthy++
		case r.Health == domain.HealthStarting || r.Drift:
			degraded++
		}
	}

	switch {
	case running == 0:
		return OverallStopped
	case unhealthy == len(rows):
		return OverallUnhealthy
	case running < len(rows) || unhealthy > 0 || degraded > 0:
		return OverallDegraded
	default:
		return OverallHealthy
	}
}

// =============================================================================
// Status Message Generation (Pure Functions)
// =============================================================================

// StatusMessage generates a human-readable line for a status row.
func StatusMessage(row domain.ServiceStatus) string {
	switch row.Status {
	case domain.ContainerAbsent:
		return "Container " + row.Name + " is not created"
	case domain.ContainerStopped:
		return "Container " + row.Name + " is stopped"
	}
	msg := "Container " + row.Name + " is running"
	if row.Health != domain.HealthNone {
		msg += " (" + string(row.Health) + ")"
	}
	if row.Drift {
		msg += ", image differs from configuration"
	}
	return msg
}
