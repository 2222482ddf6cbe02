package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/processiq/internal/domain"
)

// CatalogService administers the phase catalog of each process type.
// It keeps at most one active terminal phase per type.
type CatalogService struct {
	catalog domain.PhaseCatalog
	now     func() time.Time
}

// NewCatalogService creates a catalog service over the given store.
func NewCatalogService(catalog domain.PhaseCatalog) *CatalogService {
	return &CatalogService{catalog: catalog, now: time.Now}
}

// PhaseInput carries the fields of a new phase.
type PhaseInput struct {
	Type     domain.ProcessType
	Name     string
	SLA      domain.SLAPolicy
	Position int
	Terminal bool
}

// ListPhases returns the phases of a type ordered by position.
func (s *CatalogService) ListPhases(ctx context.Context, filter domain.PhaseFilter) ([]domain.Phase, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, &domain.ValidationError{Field: "type", Reason: "unknown process type"}
	}
	return s.catalog.ListPhases(ctx, filter)
}

// GetPhase returns a single phase, active or not.
func (s *CatalogService) GetPhase(ctx context.Context, id string) (domain.Phase, error) {
	return s.catalog.GetPhase(ctx, id)
}

// CreatePhase adds an active phase to a type's catalog.
func (s *CatalogService) CreatePhase(ctx context.Context, in PhaseInput) (domain.Phase, error) {
	now := s.now().UTC()
	id, err := generateID(now)
	if err != nil {
		return domain.Phase{}, fmt.Errorf("generating phase id: %w", err)
	}

	phase := domain.Phase{
		ID:        id,
		Type:      in.Type,
		Name:      strings.TrimSpace(in.Name),
		SLA:       in.SLA,
		Position:  in.Position,
		Active:    true,
		Terminal:  in.Terminal,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validatePhase(phase); err != nil {
		return domain.Phase{}, err
	}
	if err := s.ensureSingleTerminal(ctx, phase); err != nil {
		return domain.Phase{}, err
	}

	if err := s.catalog.CreatePhase(ctx, phase); err != nil {
		return domain.Phase{}, fmt.Errorf("creating phase: %w", err)
	}
	return phase, nil
}

// UpdatePhase applies an administrator's edit to a phase.
func (s *CatalogService) UpdatePhase(ctx context.Context, id string, patch domain.PhasePatch) (domain.Phase, error) {
	phase, err := s.catalog.GetPhase(ctx, id)
	if err != nil {
		return domain.Phase{}, err
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if !patch.Apply(&phase) {
		return phase, nil
	}
	if err := validatePhase(phase); err != nil {
		return domain.Phase{}, err
	}
	if err := s.ensureSingleTerminal(ctx, phase); err != nil {
		return domain.Phase{}, err
	}

	phase.UpdatedAt = s.now().UTC()
	if err := s.catalog.UpdatePhase(ctx, phase); err != nil {
		return domain.Phase{}, fmt.Errorf("updating phase: %w", err)
	}
	return phase, nil
}

// DeactivatePhase soft-deletes a phase. Historical events keep referencing it.
func (s *CatalogService) DeactivatePhase(ctx context.Context, id string) (domain.Phase, error) {
	inactive := false
	return s.UpdatePhase(ctx, id, domain.PhasePatch{Active: &inactive})
}

// Seed loads initial phases for every type that has none yet and returns how
// many phases it created.
func (s *CatalogService) Seed(ctx context.Context, seeds []PhaseInput) (int, error) {
	byType := make(map[domain.ProcessType][]PhaseInput)
	var order []domain.ProcessType
	for _, in := range seeds {
		if _, ok := byType[in.Type]; !ok {
			order = append(order, in.Type)
		}
		byType[in.Type] = append(byType[in.Type], in)
	}

	created := 0
	for _, typ := range order {
		existing, err := s.catalog.ListPhases(ctx, domain.PhaseFilter{Type: typ, IncludeInactive: true})
		if err != nil {
			return created, fmt.Errorf("listing phases of %q: %w", typ, err)
		}
		if len(existing) > 0 {
			continue
		}
		for _, in := range byType[typ] {
			if _, err := s.CreatePhase(ctx, in); err != nil {
				return created, fmt.Errorf("seeding phase %q of %q: %w", in.Name, typ, err)
			}
			created++
		}
	}
	return created, nil
}

func (s *CatalogService) ensureSingleTerminal(ctx context.Context, phase domain.Phase) error {
	if !phase.Active || !phase.Terminal {
		return nil
	}
	active, err := s.catalog.ListPhases(ctx, domain.PhaseFilter{Type: phase.Type})
	if err != nil {
		return fmt.Errorf("listing phases: %w", err)
	}
	for _, p := range active {
		if p.Terminal && p.ID != phase.ID {
			return &domain.TerminalPhaseConflictError{Type: phase.Type}
		}
	}
	return nil
}

func validatePhase(p domain.Phase) error {
	if !p.Type.Valid() {
		return &domain.ValidationError{Field: "type", Reason: "unknown process type"}
	}
	if p.Name == "" {
		return &domain.ValidationError{Field: "name", Reason: "is required"}
	}
	return p.SLA.Validate()
}
