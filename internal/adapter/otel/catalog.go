package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/processiq/internal/domain"
)

// TracingCatalog wraps a domain.PhaseCatalog with OpenTelemetry tracing.
type TracingCatalog struct {
	next   domain.PhaseCatalog
	tracer trace.Tracer
}

var _ domain.PhaseCatalog = (*TracingCatalog)(nil)

// NewTracingCatalog creates a tracing decorator around the given catalog.
func NewTracingCatalog(next domain.PhaseCatalog) *TracingCatalog {
	return &TracingCatalog{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func phaseAttributes(p domain.Phase) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("phase.id", p.ID),
		attribute.String("phase.type", string(p.Type)),
		attribute.Bool("phase.active", p.Active),
		attribute.Bool("phase.terminal", p.Terminal),
	}
}

func (c *TracingCatalog) ListPhases(ctx context.Context, filter domain.PhaseFilter) (_ []domain.Phase, err error) {
	ctx, span := c.tracer.Start(ctx, "PhaseCatalog.ListPhases",
		trace.WithAttributes(
			attribute.String("filter.type", string(filter.Type)),
			attribute.Bool("filter.include_inactive", filter.IncludeInactive),
		),
	)
	defer func() { endSpan(span, err) }()

	phases, err := c.next.ListPhases(ctx, filter)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(phases)))
	}
	return phases, err
}

func (c *TracingCatalog) GetPhase(ctx context.Context, id string) (_ domain.Phase, err error) {
	ctx, span := c.tracer.Start(ctx, "PhaseCatalog.GetPhase",
		trace.WithAttributes(attribute.String("phase.id", id)),
	)
	defer func() { endSpan(span, err) }()

	return c.next.GetPhase(ctx, id)
}

func (c *TracingCatalog) CreatePhase(ctx context.Context, phase domain.Phase) (err error) {
	ctx, span := c.tracer.Start(ctx, "PhaseCatalog.CreatePhase",
		trace.WithAttributes(phaseAttributes(phase)...),
	)
	defer func() { endSpan(span, err) }()

	return c.next.CreatePhase(ctx, phase)
}

func (c *TracingCatalog) UpdatePhase(ctx context.Context, phase domain.Phase) (err error) {
	ctx, span := c.tracer.Start(ctx, "PhaseCatalog.UpdatePhase",
		trace.WithAttributes(phaseAttributes(phase)...),
	)
	defer func() { endSpan(span, err) }()

	return c.next.UpdatePhase(ctx, phase)
}
