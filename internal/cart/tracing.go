package cart

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const tracerName = "storefront/cart"

// tracingLineStore оборачивает LineStore спанами OpenTelemetry.
type tracingLineStore struct {
	next   domain.LineStore
	tracer trace.Tracer
}

// NewTracingLineStore добавляет спан на каждый удалённый вызов коллекции Cart.
// Если tracer == nil, используется глобальный провайдер.
func NewTracingLineStore(next domain.LineStore, tracer trace.Tracer) domain.LineStore {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &tracingLineStore{next: next, tracer: tracer}
}

func (t *tracingLineStore) Insert(ctx context.Context, line domain.CartLine) (string, error) {
	ctx, span := t.tracer.Start(ctx, "LineStore.Insert",
		trace.WithAttributes(
			attribute.String("cart.product_ref", line.ProductRef),
			attribute.Int("cart.quantity", line.Quantity),
		),
	)
	defer span.End()

	id, err := t.next.Insert(ctx, line)
	if err != nil {
		recordSpanError(span, err)
		return "", err
	}

	span.SetAttributes(attribute.String("cart.line_id", id))
	return id, nil
}

func (t *tracingLineStore) Query(ctx context.Context, owner string) ([]domain.CartLine, error) {
	ctx, span := t.tracer.Start(ctx, "LineStore.Query")
	defer span.End()

	lines, err := t.next.Query(ctx, owner)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("cart.lines", len(lines)))
	return lines, nil
}

func (t *tracingLineStore) Update(ctx context.Context, id string, patch domain.LinePatch) error {
	attrs := []attribute.KeyValue{attribute.String("cart.line_id", id)}
	if patch.Quantity != nil {
		attrs = append(attrs, attribute.Int("cart.quantity", *patch.Quantity))
	}
	ctx, span := t.tracer.Start(ctx, "LineStore.Update", trace.WithAttributes(attrs...))
	defer span.End()

	if err := t.next.Update(ctx, id, patch); err != nil {
		recordSpanError(span, err)
		return err
	}
	return nil
}

func (t *tracingLineStore) Delete(ctx context.Context, id string) error {
	ctx, span := t.tracer.Start(ctx, "LineStore.Delete",
		trace.WithAttributes(attribute.String("cart.line_id", id)),
	)
	defer span.End()

	if err := t.next.Delete(ctx, id); err != nil {
		recordSpanError(span, err)
		return err
	}
	return nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

var _ domain.LineStore = (*tracingLineStore)(nil)
