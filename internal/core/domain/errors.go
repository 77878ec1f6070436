package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Provisioning Errors
// =============================================================================

// Every error kind below is fatal to the current invocation. Only binary
// downloads are retried internally before ErrBinaryAcquisition surfaces.
var (
	ErrConfigNotFound     = errors.New("configuration not found")
	ErrEngineUnavailable  = errors.New("container engine unavailable")
	ErrBinaryAcquisition  = errors.New("binary acquisition failed")
	ErrVersionConflict    = errors.New("version conflict")
	ErrReadinessTimeout   = errors.New("readiness timeout")
	ErrDatabaseWrite      = errors.New("database write failed")
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrDuplicateContainer = errors.New("duplicate container name")
)

// StackError wraps a provisioning error with the operation that failed and
// guidance for the operator.
type StackError struct {
	Op          string // Operation that failed (e.g., "Compose", "PullImage")
	Entity      string // Entity type (e.g., "profile", "container", "setting")
	ID          string // Entity ID if applicable
	Message     string
	Remediation string
	Err         error
}

func (e *StackError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StackError) Unwrap() error {
	return e.Err
}

// NewStackError creates a new StackError.
func NewStackError(op, entity, id, message string, err error) *StackError {
	return &StackError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// WithRemediation sets the operator guidance and returns the same error.
func (e *StackError) WithRemediation(text string) *StackError {
	e.Remediation = text
	return e
}

// =============================================================================
// Remediation
// =============================================================================

// defaultRemediation is checked in order; the first kind an error matches
// supplies the hint.
var defaultRemediation = []struct {
	kind error
	text string
}{
	{ErrConfigNotFound, "Check the requested version against the available profiles, or omit it to use the default profile."},
	{ErrEngineUnavailable, "Make sure the Docker daemon is running and reachable (docker info), then run the command again."},
	{ErrBinaryAcquisition, "Check network access to the download host, or place the binary in the cache directory manually."},
	{ErrVersionConflict, "Install the required version or re-run and choose to continue with the installed one."},
	{ErrReadinessTimeout, "Inspect the service logs (docker logs <container>) and re-run start; reconciliation resumes where it stopped."},
	{ErrDatabaseWrite, "Verify the database container is healthy and the credentials in the profile are correct, then re-run start."},
	{ErrInvalidProfile, "Fix the profile definition so every service appears once and exactly one profile is marked default."},
}

// RemediationFor returns operator guidance for err. Guidance attached to a
// StackError wins over the per-kind default. Returns "" for unknown errors.
func RemediationFor(err error) string {
	var stackErr *StackError
	if errors.As(err, &stackErr) && stackErr.Remediation != "" {
		return stackErr.Remediation
	}
	for _, r := range defaultRemediation {
		if errors.Is(err, r.kind) {
			return r.text
		}
	}
	return ""
}
