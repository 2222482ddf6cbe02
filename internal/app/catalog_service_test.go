package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neomorfeo/processiq/internal/app"
	"github.com/neomorfeo/processiq/internal/domain"
)

func TestCatalog_CreatePhase(t *testing.T) {
	catalog := newMockCatalog()
	svc := app.NewCatalogService(catalog)

	phase, err := svc.CreatePhase(context.Background(), app.PhaseInput{
		Type:     domain.TypeBillingTransfer,
		Name:     "  Análise  ",
		SLA:      domain.MinutesSLA(90),
		Position: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if phase.ID == "" {
		t.Error("expected generated id")
	}
	if phase.Name != "Análise" {
		t.Errorf("name = %q, want trimmed", phase.Name)
	}
	if !phase.Active {
		t.Error("new phases must be active")
	}
	if _, ok := catalog.phases[phase.ID]; !ok {
		t.Error("phase not stored")
	}
}

func TestCatalog_CreatePhase_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    app.PhaseInput
		field string
	}{
		{"unknown type", app.PhaseInput{Type: "loan", Name: "x", SLA: domain.DaysSLA(1)}, "type"},
		{"blank name", app.PhaseInput{Type: domain.TypeQuotaTransfer, Name: "  ", SLA: domain.DaysSLA(1)}, "name"},
		{"negative days", app.PhaseInput{Type: domain.TypeQuotaTransfer, Name: "x", SLA: domain.DaysSLA(-1)}, "sla_days"},
		{"negative minutes", app.PhaseInput{Type: domain.TypeQuotaTransfer, Name: "x", SLA: domain.MinutesSLA(-5)}, "sla_minutes"},
		{"unknown kind", app.PhaseInput{Type: domain.TypeQuotaTransfer, Name: "x", SLA: domain.SLAPolicy{Kind: "weeks"}}, "sla_kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newMockCatalog()
			_, err := app.NewCatalogService(catalog).CreatePhase(context.Background(), tt.in)

			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
			if len(catalog.phases) != 0 {
				t.Error("invalid phase was stored")
			}
		})
	}
}

func TestCatalog_SingleTerminalPerType(t *testing.T) {
	svc := app.NewCatalogService(newMockCatalog(billingPhases()...))
	ctx := context.Background()

	_, err := svc.CreatePhase(ctx, app.PhaseInput{
		Type: domain.TypeBillingTransfer, Name: "Encerrado", SLA: domain.DaysSLA(0), Position: 100, Terminal: true,
	})
	var conflict *domain.TerminalPhaseConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected TerminalPhaseConflictError, got %v", err)
	}

	// The other type has no terminal phase yet.
	if _, err := svc.CreatePhase(ctx, app.PhaseInput{
		Type: domain.TypeQuotaTransfer, Name: "Encerrado", SLA: domain.DaysSLA(0), Position: 100, Terminal: true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Marking another billing phase terminal conflicts too.
	terminal := true
	if _, err := svc.UpdatePhase(ctx, "ph-b", domain.PhasePatch{Terminal: &terminal}); !errors.As(err, &conflict) {
		t.Fatalf("expected TerminalPhaseConflictError, got %v", err)
	}

	// Once the old terminal phase is retired the move is allowed.
	if _, err := svc.DeactivatePhase(ctx, "ph-done"); err != nil {
		t.Fatalf("DeactivatePhase: %v", err)
	}
	if _, err := svc.UpdatePhase(ctx, "ph-b", domain.PhasePatch{Terminal: &terminal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Reactivating the retired one now conflicts.
	active := true
	if _, err := svc.UpdatePhase(ctx, "ph-done", domain.PhasePatch{Active: &active}); !errors.As(err, &conflict) {
		t.Fatalf("expected TerminalPhaseConflictError, got %v", err)
	}
}

func TestCatalog_UpdatePhase(t *testing.T) {
	catalog := newMockCatalog(billingPhases()...)
	svc := app.NewCatalogService(catalog)
	ctx := context.Background()

	name := " Análise documental "
	sla := domain.DaysSLA(3)
	updated, err := svc.UpdatePhase(ctx, "ph-b", domain.PhasePatch{Name: &name, SLA: &sla})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "Análise documental" || updated.SLA != sla {
		t.Errorf("updated = %+v", updated)
	}
	if catalog.phases["ph-b"].Name != "Análise documental" {
		t.Error("update not stored")
	}

	if _, err := svc.UpdatePhase(ctx, "missing", domain.PhasePatch{Name: &name}); !errors.Is(err, domain.ErrPhaseNotFound) {
		t.Errorf("expected ErrPhaseNotFound, got %v", err)
	}

	blank := " "
	var ve *domain.ValidationError
	if _, err := svc.UpdatePhase(ctx, "ph-b", domain.PhasePatch{Name: &blank}); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestCatalog_DeactivateKeepsPhase(t *testing.T) {
	catalog := newMockCatalog(billingPhases()...)
	svc := app.NewCatalogService(catalog)
	ctx := context.Background()

	if _, err := svc.DeactivatePhase(ctx, "ph-a"); err != nil {
		t.Fatalf("DeactivatePhase: %v", err)
	}

	active, err := svc.ListPhases(ctx, domain.PhaseFilter{Type: domain.TypeBillingTransfer})
	if err != nil {
		t.Fatalf("ListPhases: %v", err)
	}
	for _, p := range active {
		if p.ID == "ph-a" {
			t.Error("deactivated phase still listed as active")
		}
	}

	all, err := svc.ListPhases(ctx, domain.PhaseFilter{Type: domain.TypeBillingTransfer, IncludeInactive: true})
	if err != nil {
		t.Fatalf("ListPhases: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 billing phases, got %d", len(all))
	}
}

func TestCatalog_ListPhases_UnknownType(t *testing.T) {
	svc := app.NewCatalogService(newMockCatalog())
	var ve *domain.ValidationError
	if _, err := svc.ListPhases(context.Background(), domain.PhaseFilter{Type: "loan"}); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCatalog_Seed(t *testing.T) {
	catalog := newMockCatalog(domain.Phase{
		ID: "existing", Type: domain.TypeQuotaTransfer, Name: "Old", SLA: domain.DaysSLA(1), Active: false,
	})
	svc := app.NewCatalogService(catalog)
	seeds := []app.PhaseInput{
		{Type: domain.TypeBillingTransfer, Name: "Solicitação", SLA: domain.DaysSLA(2), Position: 1},
		{Type: domain.TypeQuotaTransfer, Name: "Cota", SLA: domain.DaysSLA(5), Position: 1},
		{Type: domain.TypeBillingTransfer, Name: "Concluído", SLA: domain.DaysSLA(0), Position: 9, Terminal: true},
	}

	n, err := svc.Seed(context.Background(), seeds)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	// Quota already has a (retired) phase and is left alone.
	if n != 2 {
		t.Errorf("created %d phases, want 2", n)
	}

	n, err = svc.Seed(context.Background(), seeds)
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if n != 0 {
		t.Errorf("second seed created %d phases, want 0", n)
	}
	if len(catalog.phases) != 3 {
		t.Errorf("catalog has %d phases, want 3", len(catalog.phases))
	}
}
