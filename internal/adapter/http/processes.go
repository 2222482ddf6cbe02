package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/processiq/internal/adapter/auth"
	"github.com/neomorfeo/processiq/internal/app"
	"github.com/neomorfeo/processiq/internal/domain"
)

// SLAStatusResponse is the live SLA state of an open process.
type SLAStatusResponse struct {
	Code  string `json:"code" enum:"on_track,due_today,overdue" doc:"Machine-readable status"`
	Label string `json:"label" doc:"Display label"`
}

// ProcessResponse is the API representation of a process.
type ProcessResponse struct {
	ID                string             `json:"id" doc:"Unique identifier"`
	Type              string             `json:"type" doc:"Process type"`
	Status            string             `json:"status" doc:"open or closed"`
	PhaseID           *string            `json:"phase_id" doc:"Current phase, null when none was assigned"`
	PhaseName         string             `json:"phase_name,omitempty" doc:"Current phase display name"`
	PhaseStartedAt    string             `json:"phase_started_at" doc:"When the current phase was entered (ISO 8601)"`
	OwnerKind         string             `json:"owner_kind" doc:"Party currently responsible"`
	StartDate         string             `json:"start_date" doc:"Lifecycle origin (ISO 8601)"`
	ClosedAt          *string            `json:"closed_at" doc:"Closing timestamp (ISO 8601)"`
	Administradora    string             `json:"administradora"`
	Proposta          string             `json:"proposta"`
	Grupo             string             `json:"grupo"`
	Cota              string             `json:"cota"`
	Segmento          string             `json:"segmento"`
	ClienteNome       string             `json:"cliente_nome"`
	CreditoDisponivel float64            `json:"credito_disponivel"`
	CreatedBy         string             `json:"created_by"`
	CreatedAt         string             `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt         string             `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
	Version           int64              `json:"version" doc:"Incremented on every change"`
	SLADeadline       *string            `json:"sla_deadline,omitempty" doc:"Deadline of the current phase (ISO 8601)"`
	SLAStatus         *SLAStatusResponse `json:"sla_status,omitempty" doc:"Live SLA state, open processes only"`
}

const apiTime = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(apiTime)
}

func optionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toProcessResponse(p domain.Process) ProcessResponse {
	return ProcessResponse{
		ID:                p.ID,
		Type:              string(p.Type),
		Status:            string(p.Status),
		PhaseID:           optionalString(p.CurrentPhaseID),
		PhaseStartedAt:    formatTime(p.CurrentPhaseStartedAt),
		OwnerKind:         string(p.CurrentOwner),
		StartDate:         formatTime(p.StartAt),
		ClosedAt:          optionalTime(p.ClosedAt),
		Administradora:    p.Payload.Administradora,
		Proposta:          p.Payload.Proposta,
		Grupo:             p.Payload.Grupo,
		Cota:              p.Payload.Cota,
		Segmento:          p.Payload.Segmento,
		ClienteNome:       p.Payload.ClienteNome,
		CreditoDisponivel: p.Payload.CreditoDisponivel,
		CreatedBy:         p.CreatedBy,
		CreatedAt:         formatTime(p.CreatedAt),
		UpdatedAt:         formatTime(p.UpdatedAt),
		Version:           p.Version,
	}
}

func toViewResponse(v app.ProcessView) ProcessResponse {
	resp := toProcessResponse(v.Process)
	resp.PhaseName = v.PhaseName
	resp.SLADeadline = optionalTime(v.Deadline)
	if v.SLAStatus != "" {
		resp.SLAStatus = &SLAStatusResponse{Code: string(v.SLAStatus), Label: v.SLAStatus.Label()}
	}
	return resp
}

// DurationResponse is a duration broken down into whole units.
type DurationResponse struct {
	Days         int64 `json:"days"`
	Hours        int64 `json:"hours"`
	Minutes      int64 `json:"minutes"`
	TotalMinutes int64 `json:"totalMinutes"`
}

func toDurationResponse(d time.Duration) DurationResponse {
	b := domain.NewBreakdown(d)
	return DurationResponse{Days: b.Days, Hours: b.Hours, Minutes: b.Minutes, TotalMinutes: b.TotalMinutes}
}

// StatsResponse reports how long a closed process spent with each owner.
type StatsResponse struct {
	Total   DurationResponse            `json:"total"`
	ByOwner map[string]DurationResponse `json:"by_owner"`
}

// EventResponse is one audit trail entry.
type EventResponse struct {
	ID          string  `json:"id"`
	At          string  `json:"at" doc:"When the change happened (ISO 8601)"`
	FromPhaseID *string `json:"from_phase_id" doc:"Null on the creation event"`
	ToPhaseID   *string `json:"to_phase_id"`
	OwnerKind   string  `json:"owner_kind" doc:"Owner in effect from this event on"`
	Note        string  `json:"note,omitempty"`
	Actor       string  `json:"actor"`
}

func toEventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:          e.ID,
		At:          formatTime(e.At),
		FromPhaseID: optionalString(e.FromPhaseID),
		ToPhaseID:   optionalString(e.ToPhaseID),
		OwnerKind:   string(e.Owner),
		Note:        e.Note,
		Actor:       e.Actor,
	}
}

// FeedbackResponse is the satisfaction survey recorded on closing.
type FeedbackResponse struct {
	UserSatisfaction   int    `json:"user_satisfaction"`
	ClientSatisfaction int    `json:"client_satisfaction"`
	ImprovementText    string `json:"improvement_text,omitempty"`
	Actor              string `json:"actor"`
	CreatedAt          string `json:"created_at"`
}

// --- Create Process ---

type CreateProcessInput struct {
	Body struct {
		Type              string     `json:"type" doc:"billing_transfer or quota_transfer"`
		StartDate         *time.Time `json:"start_date,omitempty" doc:"Lifecycle origin (ISO 8601), required"`
		PhaseID           string     `json:"phase_id,omitempty" doc:"Initial phase; defaults to the first active non-terminal phase"`
		OwnerKind         string     `json:"owner_kind,omitempty" doc:"administradora, corretora (default) or cliente"`
		Administradora    string     `json:"administradora,omitempty"`
		Proposta          string     `json:"proposta,omitempty"`
		Grupo             string     `json:"grupo,omitempty"`
		Cota              string     `json:"cota,omitempty"`
		Segmento          string     `json:"segmento,omitempty"`
		ClienteNome       string     `json:"cliente_nome,omitempty"`
		CreditoDisponivel float64    `json:"credito_disponivel,omitempty"`
	}
}

type ProcessOutput struct {
	Body ProcessResponse
}

// --- Get Process ---

type GetProcessInput struct {
	ID string `path:"id" doc:"Process ID"`
}

// --- List Processes ---

type ListProcessesInput struct {
	Type     string `query:"type" required:"false" doc:"Filter by process type"`
	Status   string `query:"status" required:"false" doc:"Filter by status"`
	Page     int    `query:"page" required:"false" default:"1" doc:"1-based page number"`
	PageSize int    `query:"pageSize" required:"false" default:"10" doc:"Rows per page, clamped to 5..50"`
}

type ListProcessesOutput struct {
	Body struct {
		Items    []ProcessResponse `json:"items"`
		Total    int               `json:"total" doc:"Matches before paging"`
		Page     int               `json:"page"`
		PageSize int               `json:"pageSize"`
	}
}

// --- Transition ---

type TransitionInput struct {
	ID   string `path:"id" doc:"Process ID"`
	Body struct {
		PhaseID           *string    `json:"phase_id,omitempty" doc:"Target phase"`
		OwnerKind         *string    `json:"owner_kind,omitempty" doc:"New responsible party"`
		Note              *string    `json:"note,omitempty" doc:"Recorded on the audit event"`
		StartDate         *time.Time `json:"start_date,omitempty"`
		Administradora    *string    `json:"administradora,omitempty"`
		Proposta          *string    `json:"proposta,omitempty"`
		Grupo             *string    `json:"grupo,omitempty"`
		Cota              *string    `json:"cota,omitempty"`
		Segmento          *string    `json:"segmento,omitempty"`
		ClienteNome       *string    `json:"cliente_nome,omitempty"`
		CreditoDisponivel *float64   `json:"credito_disponivel,omitempty"`
	}
}

// --- Finalize ---

type FinalizeInput struct {
	ID   string `path:"id" doc:"Process ID"`
	Body struct {
		UserSatisfaction   int    `json:"user_satisfaction" doc:"0 to 100"`
		ClientSatisfaction int    `json:"client_satisfaction" doc:"0 to 100"`
		ImprovementText    string `json:"improvement_text,omitempty"`
		Note               string `json:"note,omitempty" doc:"Defaults to \"process finalized\""`
	}
}

type FinalizeOutput struct {
	Body struct {
		Process ProcessResponse `json:"process"`
		Stats   StatsResponse   `json:"stats"`
	}
}

// --- History / Feedback ---

type EventsOutput struct {
	Body []EventResponse
}

type FeedbackOutput struct {
	Body FeedbackResponse
}

// RegisterProcesses adds the process lifecycle routes to the Huma API.
func RegisterProcesses(api huma.API, svc *app.ProcessService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-process",
		Method:        http.MethodPost,
		Path:          "/api/v1/processes",
		Summary:       "Open a new process",
		Tags:          []string{"Processes"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateProcessInput) (*ProcessOutput, error) {
		b := input.Body
		process, err := svc.Create(ctx, app.CreateRequest{
			Type:    domain.ProcessType(strings.TrimSpace(b.Type)),
			StartAt: b.StartDate,
			PhaseID: strings.TrimSpace(b.PhaseID),
			Owner:   b.OwnerKind,
			Payload: domain.Payload{
				Administradora:    b.Administradora,
				Proposta:          b.Proposta,
				Grupo:             b.Grupo,
				Cota:              b.Cota,
				Segmento:          b.Segmento,
				ClienteNome:       b.ClienteNome,
				CreditoDisponivel: b.CreditoDisponivel,
			},
		}, auth.ActorFromContext(ctx))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		view, err := svc.Get(ctx, process.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ProcessOutput{Body: toViewResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/api/v1/processes/{id}",
		Summary:     "Get a process with its live SLA state",
		Tags:        []string{"Processes"},
	}, func(ctx context.Context, input *GetProcessInput) (*ProcessOutput, error) {
		view, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ProcessOutput{Body: toViewResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/api/v1/processes",
		Summary:     "List processes, newest start date first",
		Tags:        []string{"Processes"},
	}, func(ctx context.Context, input *ListProcessesInput) (*ListProcessesOutput, error) {
		q := app.ListQuery{Page: input.Page, PageSize: input.PageSize}
		if input.Type != "" {
			typ := domain.ProcessType(input.Type)
			if !typ.Valid() {
				return nil, toHumaError(ctx, &domain.ValidationError{Field: "type", Reason: "unknown process type"})
			}
			q.Type = &typ
		}
		if input.Status != "" {
			status := domain.Status(input.Status)
			if status != domain.StatusOpen && status != domain.StatusClosed {
				return nil, toHumaError(ctx, &domain.ValidationError{Field: "status", Reason: "must be open or closed"})
			}
			q.Status = &status
		}

		page, err := svc.List(ctx, q)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}

		out := &ListProcessesOutput{}
		out.Body.Items = make([]ProcessResponse, len(page.Items))
		for i, v := range page.Items {
			out.Body.Items[i] = toViewResponse(v)
		}
		out.Body.Total = page.Total
		out.Body.Page = page.Page
		out.Body.PageSize = page.PageSize
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-process",
		Method:      http.MethodPatch,
		Path:        "/api/v1/processes/{id}",
		Summary:     "Move phase, hand off ownership, add a note or edit fields",
		Tags:        []string{"Processes"},
	}, func(ctx context.Context, input *TransitionInput) (*ProcessOutput, error) {
		b := input.Body
		process, err := svc.Transition(ctx, input.ID, app.TransitionRequest{
			PhaseID: b.PhaseID,
			Owner:   b.OwnerKind,
			Note:    b.Note,
			Patch: domain.PayloadPatch{
				StartAt:           b.StartDate,
				Administradora:    b.Administradora,
				Proposta:          b.Proposta,
				Grupo:             b.Grupo,
				Cota:              b.Cota,
				Segmento:          b.Segmento,
				ClienteNome:       b.ClienteNome,
				CreditoDisponivel: b.CreditoDisponivel,
			},
		}, auth.ActorFromContext(ctx))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		view, err := svc.Get(ctx, process.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &ProcessOutput{Body: toViewResponse(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "finalize-process",
		Method:      http.MethodPost,
		Path:        "/api/v1/processes/{id}/finalize",
		Summary:     "Close a process into its terminal phase",
		Description: "Records the satisfaction survey and returns the time spent with each owner.",
		Tags:        []string{"Processes"},
	}, func(ctx context.Context, input *FinalizeInput) (*FinalizeOutput, error) {
		res, err := svc.Finalize(ctx, input.ID, app.FinalizeRequest{
			UserSatisfaction:   input.Body.UserSatisfaction,
			ClientSatisfaction: input.Body.ClientSatisfaction,
			ImprovementText:    input.Body.ImprovementText,
			Note:               input.Body.Note,
		}, auth.ActorFromContext(ctx))
		if err != nil {
			return nil, toHumaError(ctx, err)
		}

		out := &FinalizeOutput{}
		out.Body.Process = toProcessResponse(res.Process)
		out.Body.Stats.Total = toDurationResponse(res.Attribution.Total)
		out.Body.Stats.ByOwner = make(map[string]DurationResponse, len(res.Attribution.ByOwner))
		for owner, d := range res.Attribution.ByOwner {
			out.Body.Stats.ByOwner[string(owner)] = toDurationResponse(d)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-process-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/processes/{id}/events",
		Summary:     "Get the audit trail of a process",
		Tags:        []string{"Processes"},
	}, func(ctx context.Context, input *GetProcessInput) (*EventsOutput, error) {
		events, err := svc.History(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		resp := make([]EventResponse, len(events))
		for i, e := range events {
			resp[i] = toEventResponse(e)
		}
		return &EventsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-process-feedback",
		Method:      http.MethodGet,
		Path:        "/api/v1/processes/{id}/feedback",
		Summary:     "Get the closing survey of a process",
		Tags:        []string{"Processes"},
	}, func(ctx context.Context, input *GetProcessInput) (*FeedbackOutput, error) {
		fb, err := svc.Feedback(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &FeedbackOutput{Body: FeedbackResponse{
			UserSatisfaction:   fb.UserSatisfaction,
			ClientSatisfaction: fb.ClientSatisfaction,
			ImprovementText:    fb.ImprovementText,
			Actor:              fb.Actor,
			CreatedAt:          formatTime(fb.CreatedAt),
		}}, nil
	})
}
