package app_test

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/neomorfeo/processiq/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	processes map[string]domain.Process
	events    map[string][]domain.Event
	feedback  map[string]domain.Feedback
	order     []string
	writes    int
	reads     int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		processes: make(map[string]domain.Process),
		events:    make(map[string][]domain.Event),
		feedback:  make(map[string]domain.Feedback),
	}
}

func (m *mockRepo) Create(_ context.Context, p domain.Process, created domain.Event) error {
	m.writes++
	m.processes[p.ID] = p
	m.events[p.ID] = append(m.events[p.ID], created)
	m.order = append(m.order, p.ID)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (domain.Process, error) {
	m.reads++
	p, ok := m.processes[id]
	if !ok {
		return domain.Process{}, domain.ErrProcessNotFound
	}
	return p, nil
}

func (m *mockRepo) List(_ context.Context, f domain.ListFilter) ([]domain.Process, int, error) {
	var matched []domain.Process
	for _, id := range m.order {
		p := m.processes[id]
		if f.Type != nil && p.Type != *f.Type {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		matched = append(matched, p)
	}
	total := len(matched)
	if f.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (m *mockRepo) guard(p domain.Process) error {
	stored, ok := m.processes[p.ID]
	if !ok {
		return domain.ErrProcessNotFound
	}
	if stored.Status != domain.StatusOpen {
		return &domain.TransitionError{Action: domain.ActionEdit, Current: stored.Status}
	}
	if stored.Version != p.Version {
		return &domain.VersionConflictError{ProcessID: p.ID, Version: p.Version}
	}
	return nil
}

func (m *mockRepo) Update(_ context.Context, p domain.Process, ev *domain.Event) error {
	if err := m.guard(p); err != nil {
		return err
	}
	m.writes++
	p.Version++
	m.processes[p.ID] = p
	if ev != nil {
		m.events[p.ID] = append(m.events[p.ID], *ev)
	}
	return nil
}

func (m *mockRepo) Finalize(_ context.Context, p domain.Process, ev domain.Event, fb domain.Feedback) error {
	if err := m.guard(p); err != nil {
		return err
	}
	m.writes++
	p.Version++
	m.processes[p.ID] = p
	m.events[p.ID] = append(m.events[p.ID], ev)
	m.feedback[p.ID] = fb
	return nil
}

func (m *mockRepo) Events(_ context.Context, id string) ([]domain.Event, error) {
	out := make([]domain.Event, len(m.events[id]))
	copy(out, m.events[id])
	return out, nil
}

func (m *mockRepo) Feedback(_ context.Context, id string) (domain.Feedback, error) {
	fb, ok := m.feedback[id]
	if !ok {
		return domain.Feedback{}, domain.ErrFeedbackNotFound
	}
	return fb, nil
}

type mockCatalog struct {
	phases map[string]domain.Phase
}

func newMockCatalog(phases ...domain.Phase) *mockCatalog {
	c := &mockCatalog{phases: make(map[string]domain.Phase)}
	for _, p := range phases {
		c.phases[p.ID] = p
	}
	return c
}

func (c *mockCatalog) ListPhases(_ context.Context, f domain.PhaseFilter) ([]domain.Phase, error) {
	var out []domain.Phase
	for _, p := range c.phases {
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if !f.IncludeInactive && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *mockCatalog) GetPhase(_ context.Context, id string) (domain.Phase, error) {
	p, ok := c.phases[id]
	if !ok {
		return domain.Phase{}, domain.ErrPhaseNotFound
	}
	return p, nil
}

func (c *mockCatalog) CreatePhase(_ context.Context, p domain.Phase) error {
	c.phases[p.ID] = p
	return nil
}

func (c *mockCatalog) UpdatePhase(_ context.Context, p domain.Phase) error {
	if _, ok := c.phases[p.ID]; !ok {
		return domain.ErrPhaseNotFound
	}
	c.phases[p.ID] = p
	return nil
}

type mockPublisher struct {
	notifications []domain.Notification
	err           error
}

func (m *mockPublisher) Publish(_ context.Context, n domain.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.notifications = append(m.notifications, n)
	return nil
}

// testValidator walks domain.Transitions directly.
type testValidator struct{}

func (v *testValidator) Apply(_ context.Context, current domain.Status, action domain.Action) (domain.Status, error) {
	for _, t := range domain.Transitions {
		if t.Action == action && t.Src == current {
			return t.Dst, nil
		}
	}
	return "", &domain.TransitionError{Action: action, Current: current}
}

type recordedTransition struct {
	typ                        domain.ProcessType
	phaseChanged, ownerChanged bool
}

type mockMetrics struct {
	transitions []recordedTransition
	finalized   []time.Duration
	sla         map[domain.SLAStatus]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{sla: make(map[domain.SLAStatus]int)}
}

func (m *mockMetrics) TransitionApplied(typ domain.ProcessType, phaseChanged, ownerChanged bool) {
	m.transitions = append(m.transitions, recordedTransition{typ, phaseChanged, ownerChanged})
}

func (m *mockMetrics) ProcessFinalized(_ domain.ProcessType, lifetime time.Duration) {
	m.finalized = append(m.finalized, lifetime)
}

func (m *mockMetrics) SLAObserved(_ domain.ProcessType, status domain.SLAStatus) {
	m.sla[status]++
}

// clock is a settable wall clock.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Set(t time.Time) { c.t = t }

var errPublish = errors.New("queue unavailable")

// --- Fixtures ---

func billingPhases() []domain.Phase {
	return []domain.Phase{
		{ID: "ph-a", Type: domain.TypeBillingTransfer, Name: "Solicitação", SLA: domain.DaysSLA(2), Position: 1, Active: true},
		{ID: "ph-b", Type: domain.TypeBillingTransfer, Name: "Análise", SLA: domain.MinutesSLA(240), Position: 2, Active: true},
		{ID: "ph-old", Type: domain.TypeBillingTransfer, Name: "Antiga", SLA: domain.DaysSLA(1), Position: 0, Active: false},
		{ID: "ph-done", Type: domain.TypeBillingTransfer, Name: "Concluído", SLA: domain.DaysSLA(0), Position: 99, Active: true, Terminal: true},
		{ID: "ph-quota", Type: domain.TypeQuotaTransfer, Name: "Cota", SLA: domain.DaysSLA(5), Position: 1, Active: true},
	}
}

func jan(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }
