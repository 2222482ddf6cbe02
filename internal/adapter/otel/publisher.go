package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/processiq/internal/domain"
)

// TracingPublisher opens a producer span around every notification handed
// to the queue.
type TracingPublisher struct {
	next   domain.EventPublisher
	tracer trace.Tracer
}

var _ domain.EventPublisher = (*TracingPublisher)(nil)

func NewTracingPublisher(next domain.EventPublisher) *TracingPublisher {
	return &TracingPublisher{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingPublisher) Publish(ctx context.Context, n domain.Notification) (err error) {
	ctx, span := p.tracer.Start(ctx, "EventPublisher.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("notification.kind", string(n.Kind)),
			attribute.String("process.id", n.Process.ID),
			attribute.String("process.type", string(n.Process.Type)),
			attribute.String("event.id", n.Event.ID),
		),
	)
	defer func() { endSpan(span, err) }()

	return p.next.Publish(ctx, n)
}
