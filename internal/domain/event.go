package domain

import "time"

// Notes recorded on events the service writes on its own.
const (
	NoteProcessCreated   = "process created"
	NoteProcessFinalized = "process finalized"
)

// Event is one immutable audit record of a process change.
// FromPhaseID is empty on the creation event; ToPhaseID is empty when the
// process had no phase.
type Event struct {
	ID          string
	ProcessID   string
	At          time.Time
	FromPhaseID string
	ToPhaseID   string
	Owner       Owner
	Note        string
	Actor       string
}

// Feedback is the satisfaction survey recorded once, when a process closes.
type Feedback struct {
	ID                 string
	ProcessID          string
	UserSatisfaction   int
	ClientSatisfaction int
	ImprovementText    string
	Actor              string
	CreatedAt          time.Time
}

// Satisfaction scores are percentages.
const (
	MinSatisfaction = 0
	MaxSatisfaction = 100
)

// ValidateSatisfaction checks a score against the accepted range.
func ValidateSatisfaction(field string, score int) error {
	if score < MinSatisfaction || score > MaxSatisfaction {
		return &ValidationError{Field: field, Reason: "must be between 0 and 100"}
	}
	return nil
}
