package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrProcessNotFound  = errors.New("process not found")
	ErrPhaseNotFound    = errors.New("phase not found")
	ErrFeedbackNotFound = errors.New("feedback not found")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

// ValidationError is returned when caller input is malformed or out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransitionError is returned when the lifecycle does not allow an action,
// which in practice means the process is already closed.
type TransitionError struct {
	Action  Action
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("action %q is not valid from state %q", e.Action, e.Current)
}

// RequiresFinalizationError is returned when an edit would move a process into
// its terminal phase. Entering it is only possible through finalization.
type RequiresFinalizationError struct {
	PhaseID string
}

func (e *RequiresFinalizationError) Error() string {
	return fmt.Sprintf("phase %q is terminal: finalize the process instead", e.PhaseID)
}

// NoTerminalPhaseError is returned when a process type has no active terminal
// phase to finalize into. An administrator must configure one.
type NoTerminalPhaseError struct {
	Type ProcessType
}

func (e *NoTerminalPhaseError) Error() string {
	return fmt.Sprintf("no terminal phase configured for process type %q", e.Type)
}

// TerminalPhaseConflictError is returned when a catalog write would leave two
// active terminal phases for the same type.
type TerminalPhaseConflictError struct {
	Type ProcessType
}

func (e *TerminalPhaseConflictError) Error() string {
	return fmt.Sprintf("process type %q already has an active terminal phase", e.Type)
}

// VersionConflictError is returned when a process changed between read and
// write. Retrying the request is safe.
type VersionConflictError struct {
	ProcessID string
	Version   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("process %q was modified concurrently (expected version %d)", e.ProcessID, e.Version)
}
