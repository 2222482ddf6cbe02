package domain_test

import (
	"testing"
	"time"

	"github.com/neomorfeo/processiq/internal/domain"
)

func TestComputeDeadline(t *testing.T) {
	entered := time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		phase *domain.Phase
		want  *time.Time
	}{
		{"no phase", nil, nil},
		{"days", &domain.Phase{SLA: domain.DaysSLA(2)}, ptr(entered.AddDate(0, 0, 2))},
		{"minutes", &domain.Phase{SLA: domain.MinutesSLA(90)}, ptr(entered.Add(90 * time.Minute))},
		{"zero days", &domain.Phase{SLA: domain.DaysSLA(0)}, ptr(entered)},
		{"unknown kind", &domain.Phase{SLA: domain.SLAPolicy{Kind: "weeks"}}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.ComputeDeadline(tc.phase, entered)
			switch {
			case tc.want == nil && got != nil:
				t.Errorf("deadline = %v, want nil", *got)
			case tc.want != nil && got == nil:
				t.Errorf("deadline = nil, want %v", *tc.want)
			case tc.want != nil && !got.Equal(*tc.want):
				t.Errorf("deadline = %v, want %v", *got, *tc.want)
			}
		})
	}
}

func TestComputeStatus_TwoDaySLA(t *testing.T) {
	entered := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	deadline := domain.ComputeDeadline(&domain.Phase{SLA: domain.DaysSLA(2)}, entered)

	cases := []struct {
		name string
		now  time.Time
		want domain.SLAStatus
	}{
		{"just entered", entered, domain.SLAOnTrack},
		{"day before deadline", time.Date(2024, 1, 2, 23, 59, 0, 0, time.UTC), domain.SLAOnTrack},
		{"deadline day morning", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), domain.SLADueToday},
		{"exactly at deadline", *deadline, domain.SLADueToday},
		{"one second late", deadline.Add(time.Second), domain.SLAOverdue},
		{"days later", time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), domain.SLAOverdue},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.ComputeStatus(deadline, tc.now); got != tc.want {
				t.Errorf("ComputeStatus(%v) = %q, want %q", tc.now, got, tc.want)
			}
		})
	}
}

func TestComputeStatus_NoDeadline(t *testing.T) {
	if got := domain.ComputeStatus(nil, time.Now()); got != domain.SLAOnTrack {
		t.Errorf("ComputeStatus(nil) = %q, want %q", got, domain.SLAOnTrack)
	}
}

func TestComputeStatus_UsesNowLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	// 01:00 UTC on Jan 3 is still Jan 2 in BRT.
	deadline := time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, loc)

	if got := domain.ComputeStatus(&deadline, now); got != domain.SLADueToday {
		t.Errorf("ComputeStatus in BRT = %q, want %q", got, domain.SLADueToday)
	}
	if got := domain.ComputeStatus(&deadline, now.UTC()); got != domain.SLAOnTrack {
		t.Errorf("ComputeStatus in UTC = %q, want %q", got, domain.SLAOnTrack)
	}
}

func TestSLAStatus_Label(t *testing.T) {
	cases := map[domain.SLAStatus]string{
		domain.SLAOverdue:  "Atrasado",
		domain.SLADueToday: "No dia",
		domain.SLAOnTrack:  "Em dia",
	}
	for status, want := range cases {
		if got := status.Label(); got != want {
			t.Errorf("%q.Label() = %q, want %q", status, got, want)
		}
	}
}

func ptr[T any](v T) *T { return &v }
