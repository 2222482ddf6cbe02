package domain

import (
	"sort"
	"time"
)

// Breakdown is a duration split into whole days, hours and minutes.
type Breakdown struct {
	Days         int64
	Hours        int64
	Minutes      int64
	TotalMinutes int64
}

// NewBreakdown floors d to whole minutes and splits it. Negative durations
// count as zero.
func NewBreakdown(d time.Duration) Breakdown {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	total := ms / 60000
	rem := total % 1440
	return Breakdown{
		Days:         total / 1440,
		Hours:        rem / 60,
		Minutes:      rem % 60,
		TotalMinutes: total,
	}
}

// Attribution is the wall-clock time a closed process spent with each owner.
type Attribution struct {
	Total   time.Duration
	ByOwner map[Owner]time.Duration
}

// Segment is one contiguous stretch of a process under a single owner.
type Segment struct {
	Owner Owner
	Start time.Time
	End   time.Time
}

// Duration returns the segment length, never negative.
func (s Segment) Duration() time.Duration {
	if d := s.End.Sub(s.Start); d > 0 {
		return d
	}
	return 0
}

// Segments partitions [startAt, closedAt] by the owner recorded on each event.
// Each segment starts at its event and ends where the next event begins; the
// first one starts at startAt. Event times are clamped into the window, so an
// edited start date later than some events still yields segments that cover
// the window exactly once. Without events the whole lifetime belongs to
// fallbackOwner.
func Segments(events []Event, startAt, closedAt time.Time, fallbackOwner Owner) []Segment {
	if len(events) == 0 {
		return []Segment{{Owner: fallbackOwner, Start: startAt, End: closedAt}}
	}

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].At.Before(ordered[j].At)
	})

	clamp := func(t time.Time) time.Time {
		if t.Before(startAt) {
			return startAt
		}
		if t.After(closedAt) && !closedAt.Before(startAt) {
			return closedAt
		}
		return t
	}

	segments := make([]Segment, 0, len(ordered))
	for i, ev := range ordered {
		start := clamp(ev.At)
		if i == 0 {
			start = startAt
		}
		end := closedAt
		if i+1 < len(ordered) {
			end = clamp(ordered[i+1].At)
		}
		segments = append(segments, Segment{Owner: ev.Owner, Start: start, End: end})
	}
	return segments
}

// Attribute sums segment durations per owner. Every known owner is present in
// the result; owners outside the known set keep their own key.
func Attribute(events []Event, startAt, closedAt time.Time, fallbackOwner Owner) Attribution {
	byOwner := make(map[Owner]time.Duration, len(Owners))
	for _, o := range Owners {
		byOwner[o] = 0
	}
	for _, seg := range Segments(events, startAt, closedAt, fallbackOwner) {
		byOwner[seg.Owner] += seg.Duration()
	}

	total := closedAt.Sub(startAt)
	if total < 0 {
		total = 0
	}
	return Attribution{Total: total, ByOwner: byOwner}
}
