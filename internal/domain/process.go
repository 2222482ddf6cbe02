package domain

import (
	"strings"
	"time"
)

// Status represents the lifecycle state of a process.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Action is something a caller does to a process that the lifecycle must allow.
type Action string

const (
	// ActionEdit covers phase moves, owner handoffs, notes and payload edits.
	ActionEdit     Action = "edit"
	ActionFinalize Action = "finalize"
)

// Transition defines a valid status change: an action moves a process from Src to Dst.
type Transition struct {
	Action Action
	Src    Status
	Dst    Status
}

// Transitions defines every allowed action in the process lifecycle.
// Closed is terminal: nothing leaves it.
var Transitions = []Transition{
	{Action: ActionEdit, Src: StatusOpen, Dst: StatusOpen},
	{Action: ActionFinalize, Src: StatusOpen, Dst: StatusClosed},
}

// Owner is the party currently responsible for moving a process forward.
type Owner string

const (
	OwnerAdministradora Owner = "administradora"
	OwnerCorretora      Owner = "corretora"
	OwnerCliente        Owner = "cliente"
)

// Owners lists the known responsible parties in display order.
var Owners = []Owner{OwnerAdministradora, OwnerCorretora, OwnerCliente}

// DefaultOwner holds a new process unless the caller names someone else.
const DefaultOwner = OwnerCorretora

// ParseOwner validates a free-form owner string against the known parties.
func ParseOwner(s string) (Owner, error) {
	o := Owner(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Owners {
		if o == known {
			return o, nil
		}
	}
	return "", &ValidationError{Field: "owner_kind", Reason: "must be one of administradora, corretora, cliente"}
}

// Payload holds the business fields of a process. They are editable only
// while the process is open.
type Payload struct {
	Administradora    string
	Proposta          string
	Grupo             string
	Cota              string
	Segmento          string
	ClienteNome       string
	CreditoDisponivel float64
}

// PayloadPatch enumerates the payload fields a transition may change.
// Nil fields are left untouched.
type PayloadPatch struct {
	StartAt           *time.Time
	Administradora    *string
	Proposta          *string
	Grupo             *string
	Cota              *string
	Segmento          *string
	ClienteNome       *string
	CreditoDisponivel *float64
}

// Empty reports whether the patch carries no field at all.
func (pp PayloadPatch) Empty() bool {
	return pp == PayloadPatch{}
}

// Apply merges the patch into p.
func (pp PayloadPatch) Apply(p *Process) {
	if pp.StartAt != nil {
		p.StartAt = pp.StartAt.UTC()
	}
	setString(&p.Payload.Administradora, pp.Administradora)
	setString(&p.Payload.Proposta, pp.Proposta)
	setString(&p.Payload.Grupo, pp.Grupo)
	setString(&p.Payload.Cota, pp.Cota)
	setString(&p.Payload.Segmento, pp.Segmento)
	setString(&p.Payload.ClienteNome, pp.ClienteNome)
	if pp.CreditoDisponivel != nil {
		p.Payload.CreditoDisponivel = *pp.CreditoDisponivel
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// Process is one tracked back-office workflow instance.
type Process struct {
	ID     string
	Type   ProcessType
	Status Status

	// CurrentPhaseID is empty when no phase was ever assigned.
	CurrentPhaseID        string
	CurrentPhaseStartedAt time.Time
	CurrentOwner          Owner

	// StartAt is the lifecycle origin used for elapsed-time accounting.
	StartAt  time.Time
	ClosedAt *time.Time

	Payload   Payload
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Version increments on every stored change and guards concurrent writers.
	Version int64
}

// IsOpen reports whether the process still accepts changes.
func (p Process) IsOpen() bool {
	return p.Status == StatusOpen
}

// NewProcess creates an open process entering phaseID at now.
func NewProcess(id string, typ ProcessType, phaseID string, owner Owner, startAt time.Time, payload Payload, actor string, now time.Time) Process {
	now = now.UTC()
	return Process{
		ID:                    id,
		Type:                  typ,
		Status:                StatusOpen,
		CurrentPhaseID:        phaseID,
		CurrentPhaseStartedAt: now,
		CurrentOwner:          owner,
		StartAt:               startAt.UTC(),
		Payload:               payload,
		CreatedBy:             actor,
		CreatedAt:             now,
		UpdatedAt:             now,
		Version:               1,
	}
}

// ListFilter holds optional criteria for listing processes.
type ListFilter struct {
	Type   *ProcessType
	Status *Status
	Limit  int
	Offset int
}

// Page bounds for process listings.
const (
	MinPageSize     = 5
	MaxPageSize     = 50
	DefaultPageSize = 10
)

// Paging converts a 1-based page and a page size into a clamped limit/offset.
func Paging(page, pageSize int) (limit, offset, normalizedPage int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize < MinPageSize:
		pageSize = MinPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return pageSize, (page - 1) * pageSize, page
}
