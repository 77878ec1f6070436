// Package reconcile diffs the desired container topology against the
// observed engine state and produces the minimal action set for one pass.
// This package contains NO I/O.
package reconcile

import (
	"github.com/artpar/devstack/internal/core/deployment"
	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Reconciliation
// =============================================================================

// Params contains all inputs of one reconciliation pass.
type Params struct {
	Specs  []domain.ContainerSpec           // desired state, dependency ordered
	States map[string]domain.ContainerState // observed state by container name
	Images map[string]bool                  // image references present locally
	Intent domain.Intent
	Scope  []string // container names to consider; empty means every spec
}

// Reconcile computes the action set that moves the observed state toward the
// desired state for the given intent.
//
// Start intent:
//   - image absent locally: ToPull (the container starts on the next pass)
//   - container absent or stopped, image present: ToStart
//   - running with the desired image: no-op
//   - present with a different image: ToStop (phase one of a recreate)
//
// A start candidate is held back while any in-scope dependency, direct or
// indirect, is neither running with its desired image nor starting in the
// same pass. A later pass starts it.
//
// Stop intent: every present container in scope lands in ToStop.
// Status intent: always empty.
//
// Applying each result and reconciling again converges; once converged the
// result is empty.
func Reconcile(p Params) domain.ActionSet {
	var set domain.ActionSet
	inScope := scopeFilter(p.Scope)

	var toStart []domain.ContainerSpec
	for _, spec := range p.Specs {
		if !inScope(spec.Name) {
			continue
		}
		state := stateOf(p.States, spec.Name)

		switch p.Intent {
		case domain.IntentStart:
			switch {
			case state.Present() && drifted(spec, state):
				set.ToStop = append(set.ToStop, spec.Name)
				if !p.Images[spec.ImageRef()] {
					set.ToPull = append(set.ToPull, spec.Name)
				}
			case state.Status == domain.ContainerRunning:
				// already in the desired state
			case !p.Images[spec.ImageRef()]:
				set.ToPull = append(set.ToPull, spec.Name)
			default:
				toStart = append(toStart, spec)
			}

		case domain.IntentStop:
			if state.Present() {
				set.ToStop = append(set.ToStop, spec.Name)
			}
		}
	}

	toStart = startable(p, toStart, inScope)
	for _, spec := range toStart {
		set.ToStart = append(set.ToStart, spec.Name)
	}
	set.Stages = deployment.Stages(toStart)
	return set
}

// startable drops the candidates whose dependency chain is not settled.
func startable(p Params, candidates []domain.ContainerSpec, inScope func(string) bool) []domain.ContainerSpec {
	specs := make(map[string]domain.ContainerSpec, len(p.Specs))
	for _, s := range p.Specs {
		specs[s.Name] = s
	}
	candidate := make(map[string]bool, len(candidates))
	for _, s := range candidates {
		candidate[s.Name] = true
	}

	// ready memoizes per name; visiting guards against cycles.
	ready := make(map[string]bool)
	visiting := make(map[string]bool)
	var depsReady func(spec domain.ContainerSpec) bool
	depsReady = func(spec domain.ContainerSpec) bool {
		if r, ok := ready[spec.Name]; ok {
			return r
		}
		if visiting[spec.Name] {
			return false
		}
		visiting[spec.Name] = true
		r := true
		for _, name := range spec.DependsOn {
			dep, known := specs[name]
			if !known || !inScope(name) {
				continue
			}
			if settled(dep, stateOf(p.States, name)) {
				continue
			}
			if !candidate[name] || !depsReady(dep) {
				r = false
				break
			}
		}
		visiting[spec.Name] = false
		ready[spec.Name] = r
		return r
	}

	var out []domain.ContainerSpec
	for _, s := range candidates {
		if depsReady(s) {
			out = append(out, s)
		}
	}
	return out
}

// settled reports whether a container runs with its desired image.
func settled(spec domain.ContainerSpec, state domain.ContainerState) bool {
	return state.Status == domain.ContainerRunning && !drifted(spec, state)
}

// Summarize produces one status row per spec, in spec order.
func Summarize(specs []domain.ContainerSpec, states map[string]domain.ContainerState) []domain.ServiceStatus {
	rows := make([]domain.ServiceStatus, 0, len(specs))
	for _, spec := range specs {
		state := stateOf(states, spec.Name)
		rows = append(rows, domain.ServiceStatus{
			Service: spec.Service,
			Name:    spec.Name,
			Image:   spec.ImageRef(),
			Status:  state.Status,
			Health:  state.Health,
			Ports:   spec.Ports,
			Drift:   state.Present() && drifted(spec, state),
		})
	}
	return rows
}

// SpecsByName returns the specs named in names, in spec order.
func SpecsByName(specs []domain.ContainerSpec, names []string) []domain.ContainerSpec {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []domain.ContainerSpec
	for _, s := range specs {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

func stateOf(states map[string]domain.ContainerState, name string) domain.ContainerState {
	if state, ok := states[name]; ok {
		return state
	}
	return domain.AbsentState(name)
}

// drifted reports whether a present container runs another image than its
// spec. An unknown running image never counts as drift.
func drifted(spec domain.ContainerSpec, state domain.ContainerState) bool {
	return state.Image != "" && state.Image != spec.ImageRef()
}

func scopeFilter(scope []string) func(string) bool {
	if len(scope) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]bool, len(scope))
	for _, name := range scope {
		set[name] = true
	}
	return func(name string) bool { return set[name] }
}
