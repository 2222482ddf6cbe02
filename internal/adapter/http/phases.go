package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/processiq/internal/app"
	"github.com/neomorfeo/processiq/internal/domain"
)

// SLAPolicyBody is the wire form of an SLA policy.
type SLAPolicyBody struct {
	Kind    string `json:"kind" enum:"days,hours" doc:"days counts calendar days, hours counts minutes"`
	Days    int    `json:"days,omitempty" doc:"Used when kind is days"`
	Minutes int    `json:"minutes,omitempty" doc:"Used when kind is hours"`
}

func (b SLAPolicyBody) policy() domain.SLAPolicy {
	return domain.SLAPolicy{Kind: domain.SLAKind(b.Kind), Days: b.Days, Minutes: b.Minutes}
}

// PhaseResponse is the API representation of a catalog phase.
type PhaseResponse struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Name      string        `json:"name"`
	SLA       SLAPolicyBody `json:"sla"`
	Position  int           `json:"position"`
	Active    bool          `json:"active"`
	Terminal  bool          `json:"terminal"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

func toPhaseResponse(p domain.Phase) PhaseResponse {
	return PhaseResponse{
		ID:        p.ID,
		Type:      string(p.Type),
		Name:      p.Name,
		SLA:       SLAPolicyBody{Kind: string(p.SLA.Kind), Days: p.SLA.Days, Minutes: p.SLA.Minutes},
		Position:  p.Position,
		Active:    p.Active,
		Terminal:  p.Terminal,
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
}

type ListPhasesInput struct {
	Type            string `query:"type" required:"false" doc:"Filter by process type"`
	IncludeInactive bool   `query:"include_inactive" required:"false" doc:"Also return deactivated phases"`
}

type ListPhasesOutput struct {
	Body []PhaseResponse
}

type CreatePhaseInput struct {
	Body struct {
		Type     string        `json:"type" doc:"billing_transfer or quota_transfer"`
		Name     string        `json:"name" maxLength:"255"`
		SLA      SLAPolicyBody `json:"sla"`
		Position int           `json:"position,omitempty"`
		Terminal bool          `json:"terminal,omitempty" doc:"Entering this phase closes the process"`
	}
}

type PhaseOutput struct {
	Body PhaseResponse
}

type PhaseIDInput struct {
	ID string `path:"id" doc:"Phase ID"`
}

type UpdatePhaseInput struct {
	ID   string `path:"id" doc:"Phase ID"`
	Body struct {
		Name     *string        `json:"name,omitempty" maxLength:"255"`
		SLA      *SLAPolicyBody `json:"sla,omitempty"`
		Position *int           `json:"position,omitempty"`
		Active   *bool          `json:"active,omitempty"`
		Terminal *bool          `json:"terminal,omitempty"`
	}
}

// RegisterPhases adds the phase catalog administration routes to the Huma API.
func RegisterPhases(api huma.API, svc *app.CatalogService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-phases",
		Method:      http.MethodGet,
		Path:        "/api/v1/phases",
		Summary:     "List catalog phases ordered by position",
		Tags:        []string{"Phases"},
	}, func(ctx context.Context, input *ListPhasesInput) (*ListPhasesOutput, error) {
		phases, err := svc.ListPhases(ctx, domain.PhaseFilter{
			Type:            domain.ProcessType(input.Type),
			IncludeInactive: input.IncludeInactive,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		resp := make([]PhaseResponse, len(phases))
		for i, p := range phases {
			resp[i] = toPhaseResponse(p)
		}
		return &ListPhasesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-phase",
		Method:        http.MethodPost,
		Path:          "/api/v1/phases",
		Summary:       "Add a phase to a process type",
		Tags:          []string{"Phases"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreatePhaseInput) (*PhaseOutput, error) {
		phase, err := svc.CreatePhase(ctx, app.PhaseInput{
			Type:     domain.ProcessType(input.Body.Type),
			Name:     input.Body.Name,
			SLA:      input.Body.SLA.policy(),
			Position: input.Body.Position,
			Terminal: input.Body.Terminal,
		})
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &PhaseOutput{Body: toPhaseResponse(phase)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-phase",
		Method:      http.MethodGet,
		Path:        "/api/v1/phases/{id}",
		Summary:     "Get a phase by ID",
		Tags:        []string{"Phases"},
	}, func(ctx context.Context, input *PhaseIDInput) (*PhaseOutput, error) {
		phase, err := svc.GetPhase(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &PhaseOutput{Body: toPhaseResponse(phase)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-phase",
		Method:      http.MethodPatch,
		Path:        "/api/v1/phases/{id}",
		Summary:     "Edit a phase",
		Tags:        []string{"Phases"},
	}, func(ctx context.Context, input *UpdatePhaseInput) (*PhaseOutput, error) {
		b := input.Body
		patch := domain.PhasePatch{
			Name:     b.Name,
			Position: b.Position,
			Active:   b.Active,
			Terminal: b.Terminal,
		}
		if b.SLA != nil {
			sla := b.SLA.policy()
			patch.SLA = &sla
		}
		phase, err := svc.UpdatePhase(ctx, input.ID, patch)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &PhaseOutput{Body: toPhaseResponse(phase)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deactivate-phase",
		Method:      http.MethodDelete,
		Path:        "/api/v1/phases/{id}",
		Summary:     "Deactivate a phase",
		Description: "Phases are never removed; past events keep referencing them.",
		Tags:        []string{"Phases"},
	}, func(ctx context.Context, input *PhaseIDInput) (*PhaseOutput, error) {
		phase, err := svc.DeactivatePhase(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &PhaseOutput{Body: toPhaseResponse(phase)}, nil
	})
}

// Register adds every API route to the Huma API.
func Register(api huma.API, processes *app.ProcessService, catalog *app.CatalogService) {
	RegisterProcesses(api, processes)
	RegisterPhases(api, catalog)
}
