package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neomorfeo/processiq/internal/domain"
)

// ProcessService orchestrates the process lifecycle: creation, phase and owner
// transitions, finalization and SLA-enriched reads.
type ProcessService struct {
	repo      domain.ProcessRepository
	catalog   domain.PhaseCatalog
	publisher domain.EventPublisher
	validator domain.TransitionValidator
	metrics   domain.Metrics
	logger    *slog.Logger
	now       func() time.Time
	location  *time.Location
}

// Option customizes a ProcessService.
type Option func(*ProcessService)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ProcessService) { s.now = now }
}

// WithLocation sets the time zone whose calendar days decide "due today".
func WithLocation(loc *time.Location) Option {
	return func(s *ProcessService) { s.location = loc }
}

// WithMetrics records business metrics on m.
func WithMetrics(m domain.Metrics) Option {
	return func(s *ProcessService) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *ProcessService) { s.logger = l }
}

// NewProcessService creates a service with the given adapters.
func NewProcessService(
	repo domain.ProcessRepository,
	catalog domain.PhaseCatalog,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
	opts ...Option,
) *ProcessService {
	s := &ProcessService{
		repo:      repo,
		catalog:   catalog,
		publisher: publisher,
		validator: validator,
		metrics:   nopMetrics{},
		logger:    slog.Default(),
		now:       time.Now,
		location:  time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries the fields of a new process.
type CreateRequest struct {
	Type    domain.ProcessType
	StartAt *time.Time
	// PhaseID defaults to the catalog's first active non-terminal phase.
	PhaseID string
	// Owner defaults to domain.DefaultOwner.
	Owner   string
	Payload domain.Payload
}

// TransitionRequest carries a phase move, an owner handoff, a note and payload
// edits. Nil fields are left untouched.
type TransitionRequest struct {
	PhaseID *string
	Owner   *string
	Note    *string
	Patch   domain.PayloadPatch
}

// FinalizeRequest carries the satisfaction survey recorded on closing.
type FinalizeRequest struct {
	UserSatisfaction   int
	ClientSatisfaction int
	ImprovementText    string
	Note               string
}

// FinalizeResult is the closed process and where its time went.
type FinalizeResult struct {
	Process     domain.Process
	Attribution domain.Attribution
}

// ProcessView is a process enriched with its live phase and SLA state.
type ProcessView struct {
	Process   domain.Process
	PhaseName string
	// Deadline and SLAStatus are only set for open processes.
	Deadline  *time.Time
	SLAStatus domain.SLAStatus
}

// ListQuery selects one page of processes.
type ListQuery struct {
	Type     *domain.ProcessType
	Status   *domain.Status
	Page     int
	PageSize int
}

// ProcessPage is one page of a listing plus the total number of matches.
type ProcessPage struct {
	Items    []ProcessView
	Total    int
	Page     int
	PageSize int
}

// Create validates and stores a new open process along with its creation event.
func (s *ProcessService) Create(ctx context.Context, req CreateRequest, actor string) (domain.Process, error) {
	if actor == "" {
		return domain.Process{}, domain.ErrUnauthenticated
	}
	if !req.Type.Valid() {
		return domain.Process{}, &domain.ValidationError{Field: "type", Reason: "unknown process type"}
	}
	if req.StartAt == nil || req.StartAt.IsZero() {
		return domain.Process{}, &domain.ValidationError{Field: "start_date", Reason: "is required"}
	}

	owner := domain.DefaultOwner
	if strings.TrimSpace(req.Owner) != "" {
		parsed, err := domain.ParseOwner(req.Owner)
		if err != nil {
			return domain.Process{}, err
		}
		owner = parsed
	}

	phaseID, err := s.initialPhase(ctx, req.Type, req.PhaseID)
	if err != nil {
		return domain.Process{}, err
	}

	now := s.now().UTC()
	id, err := generateID(now)
	if err != nil {
		return domain.Process{}, fmt.Errorf("generating process id: %w", err)
	}
	eventID, err := generateID(now)
	if err != nil {
		return domain.Process{}, fmt.Errorf("generating event id: %w", err)
	}

	process := domain.NewProcess(id, req.Type, phaseID, owner, *req.StartAt, trimPayload(req.Payload), actor, now)
	created := domain.Event{
		ID:        eventID,
		ProcessID: id,
		At:        now,
		ToPhaseID: phaseID,
		Owner:     owner,
		Note:      domain.NoteProcessCreated,
		Actor:     actor,
	}

	if err := s.repo.Create(ctx, process, created); err != nil {
		return domain.Process{}, fmt.Errorf("creating process: %w", err)
	}

	s.logger.InfoContext(ctx, "process created",
		"process_id", process.ID,
		"process_type", process.Type,
		"phase_id", phaseID,
		"owner", owner,
		"actor", actor,
	)
	s.notify(ctx, domain.Notification{Kind: domain.NotifyCreated, Process: process, Event: created})

	return process, nil
}

func (s *ProcessService) initialPhase(ctx context.Context, typ domain.ProcessType, requested string) (string, error) {
	if requested == "" {
		phases, err := s.catalog.ListPhases(ctx, domain.PhaseFilter{Type: typ})
		if err != nil {
			return "", fmt.Errorf("listing phases: %w", err)
		}
		if phase, ok := domain.DefaultPhase(phases); ok {
			return phase.ID, nil
		}
		return "", nil
	}

	phase, err := s.selectablePhase(ctx, typ, requested)
	if err != nil {
		return "", err
	}
	if phase.Terminal {
		return "", &domain.RequiresFinalizationError{PhaseID: phase.ID}
	}
	return phase.ID, nil
}

// selectablePhase loads a phase a process of type typ may move into.
func (s *ProcessService) selectablePhase(ctx context.Context, typ domain.ProcessType, id string) (domain.Phase, error) {
	phase, err := s.catalog.GetPhase(ctx, id)
	if err != nil {
		return domain.Phase{}, err
	}
	if phase.Type != typ {
		return domain.Phase{}, &domain.ValidationError{Field: "phase_id", Reason: "belongs to another process type"}
	}
	if !phase.Active {
		return domain.Phase{}, &domain.ValidationError{Field: "phase_id", Reason: "phase is inactive"}
	}
	return phase, nil
}

// Get returns one process with its live SLA state.
func (s *ProcessService) Get(ctx context.Context, id string) (ProcessView, error) {
	process, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ProcessView{}, err
	}

	phases, err := s.phaseIndex(ctx, process.Type)
	if err != nil {
		return ProcessView{}, err
	}
	return s.view(process, phases, s.now()), nil
}

// List returns one page of processes with their live SLA state.
func (s *ProcessService) List(ctx context.Context, q ListQuery) (ProcessPage, error) {
	limit, offset, page := domain.Paging(q.Page, q.PageSize)

	processes, total, err := s.repo.List(ctx, domain.ListFilter{
		Type:   q.Type,
		Status: q.Status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return ProcessPage{}, fmt.Errorf("listing processes: %w", err)
	}

	var typ domain.ProcessType
	if q.Type != nil {
		typ = *q.Type
	}
	phases, err := s.phaseIndex(ctx, typ)
	if err != nil {
		return ProcessPage{}, err
	}

	now := s.now()
	items := make([]ProcessView, len(processes))
	for i, p := range processes {
		items[i] = s.view(p, phases, now)
		if p.IsOpen() {
			s.metrics.SLAObserved(p.Type, items[i].SLAStatus)
		}
	}

	return ProcessPage{Items: items, Total: total, Page: page, PageSize: limit}, nil
}

// phaseIndex loads every phase of typ, inactive ones included, keyed by id.
// An empty typ loads the whole catalog.
func (s *ProcessService) phaseIndex(ctx context.Context, typ domain.ProcessType) (map[string]domain.Phase, error) {
	phases, err := s.catalog.ListPhases(ctx, domain.PhaseFilter{Type: typ, IncludeInactive: true})
	if err != nil {
		return nil, fmt.Errorf("listing phases: %w", err)
	}
	index := make(map[string]domain.Phase, len(phases))
	for _, p := range phases {
		index[p.ID] = p
	}
	return index, nil
}

func (s *ProcessService) view(p domain.Process, phases map[string]domain.Phase, now time.Time) ProcessView {
	v := ProcessView{Process: p}

	phase, ok := phases[p.CurrentPhaseID]
	if ok {
		v.PhaseName = phase.Name
	}
	if !p.IsOpen() {
		return v
	}

	// Inactive phases no longer carry an SLA.
	if ok && phase.Active {
		v.Deadline = domain.ComputeDeadline(&phase, p.CurrentPhaseStartedAt)
	}
	v.SLAStatus = domain.ComputeStatus(v.Deadline, now.In(s.location))
	return v
}

// Transition applies a phase move, owner handoff, note and payload edits to an
// open process in one atomic write. An event is recorded only when the phase
// or owner changes or a note is given.
func (s *ProcessService) Transition(ctx context.Context, id string, req TransitionRequest, actor string) (domain.Process, error) {
	if actor == "" {
		return domain.Process{}, domain.ErrUnauthenticated
	}

	var targetOwner *domain.Owner
	if req.Owner != nil {
		o, err := domain.ParseOwner(*req.Owner)
		if err != nil {
			return domain.Process{}, err
		}
		targetOwner = &o
	}

	process, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Process{}, err
	}
	if _, err := s.validator.Apply(ctx, process.Status, domain.ActionEdit); err != nil {
		return domain.Process{}, err
	}

	targetPhase := process.CurrentPhaseID
	phaseChanged := false
	if req.PhaseID != nil && *req.PhaseID != process.CurrentPhaseID {
		phase, err := s.selectablePhase(ctx, process.Type, *req.PhaseID)
		if err != nil {
			return domain.Process{}, err
		}
		if phase.Terminal {
			return domain.Process{}, &domain.RequiresFinalizationError{PhaseID: phase.ID}
		}
		targetPhase = phase.ID
		phaseChanged = true
	} else if targetPhase != "" {
		phase, err := s.catalog.GetPhase(ctx, targetPhase)
		switch {
		case errors.Is(err, domain.ErrPhaseNotFound):
			// A dangling phase id cannot be terminal.
		case err != nil:
			return domain.Process{}, fmt.Errorf("loading current phase: %w", err)
		case phase.Active && phase.Terminal:
			return domain.Process{}, &domain.RequiresFinalizationError{PhaseID: phase.ID}
		}
	}

	owner := process.CurrentOwner
	if targetOwner != nil {
		owner = *targetOwner
	}
	ownerChanged := owner != process.CurrentOwner

	var note string
	if req.Note != nil {
		note = strings.TrimSpace(*req.Note)
	}

	if !phaseChanged && !ownerChanged && note == "" && req.Patch.Empty() {
		return process, nil
	}

	now := s.now().UTC()
	updated := process
	updated.CurrentPhaseID = targetPhase
	updated.CurrentOwner = owner
	if phaseChanged {
		updated.CurrentPhaseStartedAt = now
	}
	req.Patch.Apply(&updated)
	updated.UpdatedAt = now

	var event *domain.Event
	if phaseChanged || ownerChanged || note != "" {
		eventID, err := generateID(now)
		if err != nil {
			return domain.Process{}, fmt.Errorf("generating event id: %w", err)
		}
		event = &domain.Event{
			ID:          eventID,
			ProcessID:   process.ID,
			At:          now,
			FromPhaseID: process.CurrentPhaseID,
			ToPhaseID:   targetPhase,
			Owner:       owner,
			Note:        note,
			Actor:       actor,
		}
	}

	if err := s.repo.Update(ctx, updated, event); err != nil {
		return domain.Process{}, fmt.Errorf("updating process: %w", err)
	}
	updated.Version++

	s.metrics.TransitionApplied(updated.Type, phaseChanged, ownerChanged)
	s.logger.InfoContext(ctx, "process updated",
		"process_id", updated.ID,
		"process_type", updated.Type,
		"phase_changed", phaseChanged,
		"owner_changed", ownerChanged,
		"event_recorded", event != nil,
		"actor", actor,
	)
	if event != nil {
		s.notify(ctx, domain.Notification{Kind: domain.NotifyTransitioned, Process: updated, Event: *event})
	}

	return updated, nil
}

// Finalize closes an open process into its type's terminal phase, records the
// satisfaction feedback and reports how long each owner held it.
func (s *ProcessService) Finalize(ctx context.Context, id string, req FinalizeRequest, actor string) (FinalizeResult, error) {
	if err := domain.ValidateSatisfaction("user_satisfaction", req.UserSatisfaction); err != nil {
		return FinalizeResult{}, err
	}
	if err := domain.ValidateSatisfaction("client_satisfaction", req.ClientSatisfaction); err != nil {
		return FinalizeResult{}, err
	}
	if actor == "" {
		return FinalizeResult{}, domain.ErrUnauthenticated
	}

	process, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return FinalizeResult{}, err
	}
	status, err := s.validator.Apply(ctx, process.Status, domain.ActionFinalize)
	if err != nil {
		return FinalizeResult{}, err
	}

	phases, err := s.catalog.ListPhases(ctx, domain.PhaseFilter{Type: process.Type})
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("listing phases: %w", err)
	}
	final, ok := domain.FinalPhase(phases)
	if !ok {
		return FinalizeResult{}, &domain.NoTerminalPhaseError{Type: process.Type}
	}

	// Read the history before writing: the version guard on Finalize rejects
	// the write if anything was appended in between.
	history, err := s.repo.Events(ctx, process.ID)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("loading events: %w", err)
	}

	now := s.now().UTC()
	eventID, err := generateID(now)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("generating event id: %w", err)
	}
	feedbackID, err := generateID(now)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("generating feedback id: %w", err)
	}

	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = domain.NoteProcessFinalized
	}

	closed := process
	closed.Status = status
	closed.ClosedAt = &now
	closed.CurrentPhaseID = final.ID
	closed.CurrentPhaseStartedAt = now
	closed.UpdatedAt = now

	event := domain.Event{
		ID:          eventID,
		ProcessID:   process.ID,
		At:          now,
		FromPhaseID: process.CurrentPhaseID,
		ToPhaseID:   final.ID,
		Owner:       process.CurrentOwner,
		Note:        note,
		Actor:       actor,
	}
	feedback := domain.Feedback{
		ID:                 feedbackID,
		ProcessID:          process.ID,
		UserSatisfaction:   req.UserSatisfaction,
		ClientSatisfaction: req.ClientSatisfaction,
		ImprovementText:    strings.TrimSpace(req.ImprovementText),
		Actor:              actor,
		CreatedAt:          now,
	}

	if err := s.repo.Finalize(ctx, closed, event, feedback); err != nil {
		return FinalizeResult{}, fmt.Errorf("finalizing process: %w", err)
	}
	closed.Version++

	attribution := domain.Attribute(append(history, event), closed.StartAt, now, closed.CurrentOwner)

	s.metrics.ProcessFinalized(closed.Type, attribution.Total)
	s.logger.InfoContext(ctx, "process finalized",
		"process_id", closed.ID,
		"process_type", closed.Type,
		"lifetime", attribution.Total.String(),
		"actor", actor,
	)
	s.notify(ctx, domain.Notification{Kind: domain.NotifyFinalized, Process: closed, Event: event})

	return FinalizeResult{Process: closed, Attribution: attribution}, nil
}

// History returns the audit trail of a process, oldest first.
func (s *ProcessService) History(ctx context.Context, id string) ([]domain.Event, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Events(ctx, id)
}

// Feedback returns the survey recorded when the process was finalized.
func (s *ProcessService) Feedback(ctx context.Context, id string) (domain.Feedback, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return domain.Feedback{}, err
	}
	return s.repo.Feedback(ctx, id)
}

// notify publishes a committed change. The change is already durable, so a
// failed publish is logged rather than returned.
func (s *ProcessService) notify(ctx context.Context, n domain.Notification) {
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "publishing notification failed",
			"kind", n.Kind,
			"process_id", n.Process.ID,
			"error", err,
		)
	}
}

func trimPayload(p domain.Payload) domain.Payload {
	p.Administradora = strings.TrimSpace(p.Administradora)
	p.Proposta = strings.TrimSpace(p.Proposta)
	p.Grupo = strings.TrimSpace(p.Grupo)
	p.Cota = strings.TrimSpace(p.Cota)
	p.Segmento = strings.TrimSpace(p.Segmento)
	p.ClienteNome = strings.TrimSpace(p.ClienteNome)
	return p
}

type nopMetrics struct{}

func (nopMetrics) TransitionApplied(domain.ProcessType, bool, bool)   {}
func (nopMetrics) ProcessFinalized(domain.ProcessType, time.Duration) {}
func (nopMetrics) SLAObserved(domain.ProcessType, domain.SLAStatus)   {}
