package domain

import (
	"context"
	"time"
)

// ProcessRepository defines the persistence contract for processes and their
// audit trail. Every write is atomic: the process row, its event and, on
// finalization, its feedback land together or not at all.
type ProcessRepository interface {
	// Create stores a new process together with its creation event.
	Create(ctx context.Context, process Process, created Event) error
	GetByID(ctx context.Context, id string) (Process, error)
	// List returns one page of processes and the total matching the filter.
	List(ctx context.Context, filter ListFilter) ([]Process, int, error)
	// Update stores process if its stored version still equals process.Version
	// and the stored status is open. event is appended when non-nil.
	Update(ctx context.Context, process Process, event *Event) error
	// Finalize closes process under the same conditions as Update, appending
	// the closing event and the feedback.
	Finalize(ctx context.Context, process Process, event Event, feedback Feedback) error
	// Events returns the audit trail ordered by time, oldest first.
	Events(ctx context.Context, processID string) ([]Event, error)
	Feedback(ctx context.Context, processID string) (Feedback, error)
}

// PhaseCatalog defines the persistence contract for phases.
type PhaseCatalog interface {
	// ListPhases returns phases ordered by position.
	ListPhases(ctx context.Context, filter PhaseFilter) ([]Phase, error)
	GetPhase(ctx context.Context, id string) (Phase, error)
	CreatePhase(ctx context.Context, phase Phase) error
	UpdatePhase(ctx context.Context, phase Phase) error
}

// NotificationKind names a committed change announced to subscribers.
type NotificationKind string

const (
	NotifyCreated      NotificationKind = "process.created"
	NotifyTransitioned NotificationKind = "process.transitioned"
	NotifyFinalized    NotificationKind = "process.finalized"
)

// Notification is a snapshot of a process right after a committed change.
type Notification struct {
	Kind    NotificationKind
	Process Process
	Event   Event
}

// EventPublisher defines the contract for announcing committed changes.
type EventPublisher interface {
	Publish(ctx context.Context, n Notification) error
}

// TransitionValidator checks lifecycle actions against the current status.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, action Action) (Status, error)
}

// Metrics records business measurements of the process engine.
type Metrics interface {
	TransitionApplied(typ ProcessType, phaseChanged, ownerChanged bool)
	ProcessFinalized(typ ProcessType, lifetime time.Duration)
	SLAObserved(typ ProcessType, status SLAStatus)
}
