package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracingPublisher wraps a watermill publisher and opens one span per published message.
type tracingPublisher struct {
	publisher message.Publisher
	tracer    trace.Tracer
}

func newTracingPublisher(publisher message.Publisher, tracer trace.Tracer) *tracingPublisher {
	return &tracingPublisher{publisher: publisher, tracer: tracer}
}

// Publish wraps the publish operation with tracing
func (p *tracingPublisher) Publish(topic string, messages ...*message.Message) error {
	spans := make([]trace.Span, 0, len(messages))
	for _, msg := range messages {
		ctx := msg.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		spanCtx, span := p.tracer.Start(ctx, fmt.Sprintf("pubsub.publish.%s", topic),
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(
				attribute.String("messaging.system", "watermill"),
				attribute.String("messaging.operation", "publish"),
				attribute.String("messaging.destination", topic),
				attribute.String("messaging.message_id", msg.UUID),
				attribute.String("relay.connection_id", msg.Metadata.Get(metaKeyConnectionID)),
				attribute.Int("messaging.message_payload_size_bytes", len(msg.Payload)),
			),
		)
		msg.SetContext(spanCtx)
		spans = append(spans, span)
	}

	err := p.publisher.Publish(topic, messages...)
	for _, span := range spans {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	return err
}

// Close closes the underlying publisher
func (p *tracingPublisher) Close() error {
	return p.publisher.Close()
}

// traceHandler wraps a Handler so every delivery runs inside a consumer span.
func traceHandler(tracer trace.Tracer, topic string, h Handler) Handler {
	return func(ctx context.Context, msg Message) error {
		spanCtx, span := tracer.Start(ctx, fmt.Sprintf("pubsub.process.%s", topic),
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "watermill"),
				attribute.String("messaging.operation", "process"),
				attribute.String("messaging.destination", topic),
				attribute.String("relay.connection_id", msg.ConnectionID),
			),
		)
		defer span.End()

		if err := h(spanCtx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		return nil
	}
}
