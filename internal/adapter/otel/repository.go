package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/processiq/internal/domain"
)

// TracingRepository wraps a domain.ProcessRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingRepository struct {
	next   domain.ProcessRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.ProcessRepository.
var _ domain.ProcessRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.ProcessRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func processAttributes(p domain.Process) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("process.id", p.ID),
		attribute.String("process.type", string(p.Type)),
		attribute.String("process.status", string(p.Status)),
		attribute.String("process.phase_id", p.CurrentPhaseID),
		attribute.String("process.owner", string(p.CurrentOwner)),
		attribute.Int64("process.version", p.Version),
	}
}

func (r *TracingRepository) Create(ctx context.Context, process domain.Process, created domain.Event) (err error) {
	ctx, span := r.tracer.Start(ctx, "ProcessRepository.Create",
		trace.WithAttributes(processAttributes(process)...),
	)
	defer func() { endSpan(span, err) }()

	return r.next.Create(ctx, process, created)
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (_ domain.Process, err error) {
	ctx, span := r.tracer.Start(ctx, "ProcessRepository.GetByID",
		trace.WithAttributes(attribute.String("process.id", id)),
	)
	defer func() { endSpan(span, err) }()

	return r.next.GetByID(ctx, id)
}

func (r *TracingRepository) List(ctx context.Context, filter domain.ListFilter) (_ []domain.Process, _ int, err error) {
	ctx, span := r.tracer.Start(ctx, "ProcessRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer func() { endSpan(span, err) }()

	if filter.Type != nil {
		span.SetAttributes(attribute.String("filter.type", string(*filter.Type)))
	}
	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}

	processes, total, err := r.next.List(ctx, filter)
	if err == nil {
		span.SetAttributes(
			attribute.Int("result.count", len(processes)),
			attribute.Int("result.total", total),
		)
	}
	return processes, total, err
}

func (r *TracingRepository) Update(ctx context.Context, process domain.Process, event *domain.Event) (err error) {
	ctx, span := r.tracer.Start(ctx, "ProcessRepository.Update",
		trace.WithAttributes(processAttributes(process)...),
	)
	defer func() { endSpan(span, err) }()

	span.SetAttributes(attribute.Bool("event.recorded", event != nil))
	return r.next.Update(ctx, process, event)
}

func (r *TracingRepository) Finalize(ctx context.Context, process domain.Process, event domain.Event, feedback domain.Feedback) (err error) {
	ctx, span := r.tracer.Start(ctx, "ProcessRepository.Finalize",
		trace.WithAttributes(processAttributes(process)...),
	)
	defer func() { endSpan(span, err) }()

	return r.next.Finalize(ctx, process, event, feedback)
}

func (r *TracingRepository) Events(ctx context.Context, processID string) (_ []domain.Event, err error) {
	ctx, span := r.tracer.Start(ctx, "ProcessRepository.Events",
		trace.WithAttributes(attribute.String("process.id", processID)),
	)
	defer func() { endSpan(span, err) }()

	events, err := r.next.Events(ctx, processID)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(events)))
	}
	return events, err
}

func (r *TracingRepository) Feedback(ctx context.Context, processID string) (_ domain.Feedback, err error) {
	ctx, span := r.tracer.Start(ctx, "ProcessRepository.Feedback",
		trace.WithAttributes(attribute.String("process.id", processID)),
	)
	defer func() { endSpan(span, err) }()

	return r.next.Feedback(ctx, processID)
}
