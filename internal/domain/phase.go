package domain

import "time"

// ProcessType scopes a phase catalog and the processes that walk it.
type ProcessType string

const (
	TypeBillingTransfer ProcessType = "billing_transfer"
	TypeQuotaTransfer   ProcessType = "quota_transfer"
)

// ProcessTypes lists every known process type.
var ProcessTypes = []ProcessType{TypeBillingTransfer, TypeQuotaTransfer}

// Valid reports whether t is a known process type.
func (t ProcessType) Valid() bool {
	for _, known := range ProcessTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SLAKind selects how a phase deadline is measured.
type SLAKind string

const (
	SLADays  SLAKind = "days"
	SLAHours SLAKind = "hours"
)

// SLAPolicy is a tagged variant: Days is meaningful when Kind is SLADays,
// Minutes when Kind is SLAHours.
type SLAPolicy struct {
	Kind    SLAKind
	Days    int
	Minutes int
}

// DaysSLA returns a policy of n calendar days.
func DaysSLA(n int) SLAPolicy {
	return SLAPolicy{Kind: SLADays, Days: n}
}

// MinutesSLA returns a policy of n minutes.
func MinutesSLA(n int) SLAPolicy {
	return SLAPolicy{Kind: SLAHours, Minutes: n}
}

// Validate checks that the policy kind is known and its amount non-negative.
func (p SLAPolicy) Validate() error {
	switch p.Kind {
	case SLADays:
		if p.Days < 0 {
			return &ValidationError{Field: "sla_days", Reason: "must not be negative"}
		}
	case SLAHours:
		if p.Minutes < 0 {
			return &ValidationError{Field: "sla_minutes", Reason: "must not be negative"}
		}
	default:
		return &ValidationError{Field: "sla_kind", Reason: `must be "days" or "hours"`}
	}
	return nil
}

// Phase is a named stage of a process type's workflow.
// Phases are never hard-deleted; Active=false keeps them for history.
type Phase struct {
	ID        string
	Type      ProcessType
	Name      string
	SLA       SLAPolicy
	Position  int
	Active    bool
	Terminal  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PhaseFilter holds criteria for listing catalog phases.
type PhaseFilter struct {
	Type            ProcessType
	IncludeInactive bool
}

// PhasePatch lists the phase fields an administrator may change.
// Nil fields are left untouched.
type PhasePatch struct {
	Name     *string
	SLA      *SLAPolicy
	Position *int
	Active   *bool
	Terminal *bool
}

// Apply merges the patch into p and reports whether anything changed.
func (pp PhasePatch) Apply(p *Phase) bool {
	changed := false
	if pp.Name != nil && *pp.Name != p.Name {
		p.Name = *pp.Name
		changed = true
	}
	if pp.SLA != nil && *pp.SLA != p.SLA {
		p.SLA = *pp.SLA
		changed = true
	}
	if pp.Position != nil && *pp.Position != p.Position {
		p.Position = *pp.Position
		changed = true
	}
	if pp.Active != nil && *pp.Active != p.Active {
		p.Active = *pp.Active
		changed = true
	}
	if pp.Terminal != nil && *pp.Terminal != p.Terminal {
		p.Terminal = *pp.Terminal
		changed = true
	}
	return changed
}

// DefaultPhase returns the first active non-terminal phase by position, or
// false if the list holds none. Ties keep list order. Terminal phases are only
// entered by finalizing.
func DefaultPhase(phases []Phase) (Phase, bool) {
	var (
		best  Phase
		found bool
	)
	for _, p := range phases {
		if !p.Active || p.Terminal {
			continue
		}
		if !found || p.Position < best.Position {
			best = p
			found = true
		}
	}
	return best, found
}

// FinalPhase returns the active terminal phase in the list.
func FinalPhase(phases []Phase) (Phase, bool) {
	for _, p := range phases {
		if p.Active && p.Terminal {
			return p, true
		}
	}
	return Phase{}, false
}
