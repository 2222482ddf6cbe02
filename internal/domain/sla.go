package domain

import "time"

// SLAStatus is the live deadline state of a process in its current phase.
type SLAStatus string

const (
	SLAOnTrack  SLAStatus = "on_track"
	SLADueToday SLAStatus = "due_today"
	SLAOverdue  SLAStatus = "overdue"
)

// Label returns the pt-BR text the back office uses for the status.
func (s SLAStatus) Label() string {
	switch s {
	case SLAOverdue:
		return "Atrasado"
	case SLADueToday:
		return "No dia"
	default:
		return "Em dia"
	}
}

// ComputeDeadline returns when a process that entered phase at enteredAt runs
// out of time, or nil when there is no phase.
func ComputeDeadline(phase *Phase, enteredAt time.Time) *time.Time {
	if phase == nil {
		return nil
	}
	var deadline time.Time
	switch phase.SLA.Kind {
	case SLADays:
		deadline = enteredAt.AddDate(0, 0, phase.SLA.Days)
	case SLAHours:
		deadline = enteredAt.Add(time.Duration(phase.SLA.Minutes) * time.Minute)
	default:
		return nil
	}
	return &deadline
}

// ComputeStatus classifies deadline against now. Calendar days are taken in
// now's location, so callers pick the business time zone by converting now.
func ComputeStatus(deadline *time.Time, now time.Time) SLAStatus {
	if deadline == nil {
		return SLAOnTrack
	}
	if now.After(*deadline) {
		return SLAOverdue
	}
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if deadline.Before(startOfDay.AddDate(0, 0, 1)) {
		return SLADueToday
	}
	return SLAOnTrack
}
