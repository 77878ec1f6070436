package domain

// =============================================================================
// Reconciliation Intent
// =============================================================================

// Intent is what the invoking command wants the environment to become.
type Intent string

const (
	IntentStart  Intent = "start"
	IntentStop   Intent = "stop"
	IntentStatus Intent = "status"
)

// =============================================================================
// Action Set
// =============================================================================

// ActionSet is the minimal set of engine actions for one reconciliation pass.
// A container name appears in at most one of ToPull and ToStart. Recreating a
// container is two-phase: ToStop in this pass, ToStart in the next one.
type ActionSet struct {
	ToPull  []string   // containers whose image is missing locally
	ToStart []string   // containers to create and start
	ToStop  []string   // containers to stop and remove
	Stages  [][]string // ToStart split into dependency-ordered stages
}

// IsEmpty reports whether the pass requires no engine action.
func (a ActionSet) IsEmpty() bool {
	return len(a.ToPull) == 0 && len(a.ToStart) == 0 && len(a.ToStop) == 0
}

// =============================================================================
// Service Status
// =============================================================================

// ServiceStatus is one row of the status listing.
type ServiceStatus struct {
	Service ServiceKind
	Name    string
	Image   string
	Status  ContainerStatus
	Health  Health
	Ports   []PortBinding
	Drift   bool // present but created from a different image
}
