package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// WatermillBridge implements the Publisher and Subscriber interfaces using watermill's GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	tracer trace.Tracer
	logger watermill.LoggerAdapter
}

const (
	// Metadata keys used to transfer our Message structure fields through watermill's message.
	metaKeyConnectionID = "connection_id"
	metaKeyTopic        = "topic"

	defaultOutputBuffer = 256
)

// Option configures a WatermillBridge.
type Option func(*WatermillBridge)

// WithTracer enables publish and process spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(wb *WatermillBridge) {
		wb.tracer = tracer
	}
}

// WithLogger replaces watermill's internal logger.
func WithLogger(logger watermill.LoggerAdapter) Option {
	return func(wb *WatermillBridge) {
		wb.logger = logger
	}
}

// NewWatermillBridge initializes an in-memory bus. Messages published to a
// topic nobody subscribes to are dropped.
func NewWatermillBridge(opts ...Option) *WatermillBridge {
	wb := &WatermillBridge{
		tracer: noop.NewTracerProvider().Tracer(tracerName),
		logger: watermill.NewStdLogger(false, false),
	}
	for _, opt := range opts {
		opt(wb)
	}

	goChannel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: defaultOutputBuffer},
		wb.logger,
	)

	wb.pub = newTracingPublisher(goChannel, wb.tracer)
	wb.sub = goChannel
	return wb
}

// mapToWatermillMessage converts our pubsub.Message to a watermill message.
func mapToWatermillMessage(ctx context.Context, msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wmMsg.SetContext(ctx)

	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	wmMsg.Metadata.Set(metaKeyConnectionID, msg.ConnectionID)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)

	return wmMsg
}

// mapToPubSubMessage converts a watermill message back to our internal pubsub.Message.
func mapToPubSubMessage(wmMsg *message.Message) Message {
	metadata := make(map[string]string, len(wmMsg.Metadata))
	for k, v := range wmMsg.Metadata {
		if k != metaKeyConnectionID && k != metaKeyTopic {
			metadata[k] = v
		}
	}

	return Message{
		Topic:        wmMsg.Metadata.Get(metaKeyTopic),
		ConnectionID: wmMsg.Metadata.Get(metaKeyConnectionID),
		Payload:      wmMsg.Payload,
		Metadata:     metadata,
	}
}

// Publish implements the Publisher interface.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return wb.pub.Publish(msg.Topic, mapToWatermillMessage(ctx, msg))
}

// Subscribe implements the Subscriber interface. It returns once the
// subscription is active; messages are handled on a background goroutine.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	handle := traceHandler(wb.tracer, topic, handler)
	go func() {
		for wmMsg := range messages {
			msg := mapToPubSubMessage(wmMsg)
			if err := handle(wmMsg.Context(), msg); err != nil {
				// GoChannel redelivers nacked messages forever; events are
				// best-effort, so a failed handler is logged and acked.
				slog.Error("Failed to handle message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
			}
			wmMsg.Ack()
		}
		slog.Debug("Subscription message loop ended", "topic", topic)
	}()

	return nil
}

// Close implements the Publisher and Subscriber interface to shut down the bridge.
func (wb *WatermillBridge) Close() error {
	// Closing the subscriber closes the gochannel and ends every subscription loop.
	return wb.sub.Close()
}

// Shutdown lets the application container close the bus on teardown.
func (wb *WatermillBridge) Shutdown() error {
	return wb.Close()
}
