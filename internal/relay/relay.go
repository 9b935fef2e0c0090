package relay

import (
	"context"
	"log/slog"

	"github.com/nfrund/topicrelay/internal/pubsub"
)

// Close reasons carried by the relay.connection.closed event.
const (
	ReasonClientClosed   = "client_closed"
	ReasonServerShutdown = "server_shutdown"
	ReasonReadLimit      = "read_limit"
	ReasonTransportError = "transport_error"
)

// Result describes what happened to one inbound frame.
type Result struct {
	// Topic is the sender's topic after the frame was applied.
	Topic string
	// Delivered counts recipients that accepted the message.
	Delivered int
	// Failed counts recipients whose channel rejected it.
	Failed int
}

// Recipients is the number of peers a delivery was attempted to.
func (r Result) Recipients() int {
	return r.Delivered + r.Failed
}

// Relay applies inbound frames to the registry and fans messages out.
type Relay struct {
	registry *Registry
	bus      pubsub.Publisher
	logger   *slog.Logger
}

// New creates a relay over registry. Lifecycle events are published on bus;
// a nil bus disables them.
func New(registry *Registry, bus pubsub.Publisher, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		registry: registry,
		bus:      bus,
		logger:   logger.With("component", "relay"),
	}
}

// Registry returns the registry the relay dispatches over.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Open registers ch as a new, unjoined connection.
func (r *Relay) Open(ctx context.Context, ch Channel, remoteAddr string) *Connection {
	conn := r.registry.Add(ch)
	r.logger.Info("Connection opened", "connection_id", conn.ID(), "remote_addr", remoteAddr)
	r.emit(func() error {
		return pubsub.Publish(ctx, r.bus, EventConnectionOpened, conn.ID(), ConnectionOpened{
			ConnectionID: conn.ID(),
			RemoteAddr:   remoteAddr,
		})
	})
	return conn
}

// Close removes conn from the registry and closes its channel. Only the first
// call for a connection has any effect.
func (r *Relay) Close(ctx context.Context, conn *Connection, reason string) {
	topic := conn.Topic()
	if !r.registry.Remove(conn) {
		return
	}

	r.logger.Info("Connection closed", "connection_id", conn.ID(), "topic", topic, "reason", reason)
	r.emit(func() error {
		return pubsub.Publish(ctx, r.bus, EventConnectionClosed, conn.ID(), ConnectionClosed{
			ConnectionID: conn.ID(),
			Topic:        topic,
			Reason:       reason,
		})
	})
}

// HandleFrame parses raw and dispatches it. Malformed frames are reported
// and otherwise ignored; the sender stays connected and keeps its topic.
func (r *Relay) HandleFrame(ctx context.Context, sender *Connection, raw []byte) (Result, error) {
	frame, err := ParseFrame(raw)
	if err != nil {
		r.logger.Warn("Ignoring malformed frame", "connection_id", sender.ID(), "size", len(raw), "error", err)
		r.emit(func() error {
			return pubsub.Publish(ctx, r.bus, EventFrameMalformed, sender.ID(), FrameMalformed{
				ConnectionID: sender.ID(),
				Size:         len(raw),
				Error:        err.Error(),
			})
		})
		return Result{Topic: sender.Topic()}, err
	}
	return r.Dispatch(ctx, sender, frame), nil
}

// Dispatch applies a decoded frame: a present topic moves the sender first,
// then a non-empty message goes to every other connection on the sender's topic.
// A message nobody else could receive is dropped without a relayed event, as
// is any frame from a connection that is no longer registered.
func (r *Relay) Dispatch(ctx context.Context, sender *Connection, frame Frame) Result {
	// A frame still in flight when its connection closed goes nowhere.
	if !r.registry.Contains(sender) {
		return Result{Topic: sender.Topic()}
	}

	if frame.HasTopic() {
		r.setTopic(ctx, sender, *frame.Topic)
	}

	topic := sender.Topic()
	res := Result{Topic: topic}
	if topic == "" || !frame.HasMessage() {
		return res
	}

	payload := []byte(*frame.Message)
	for _, peer := range r.registry.Members(topic) {
		if peer == sender || peer.Topic() != topic {
			continue
		}
		if err := peer.Send(payload); err != nil {
			res.Failed++
			r.logger.Warn("Delivery failed",
				"connection_id", peer.ID(),
				"sender_id", sender.ID(),
				"topic", topic,
				"error", err,
			)
			r.emit(func() error {
				return pubsub.Publish(ctx, r.bus, EventDeliveryFailed, peer.ID(), DeliveryFailed{
					ConnectionID: peer.ID(),
					SenderID:     sender.ID(),
					Topic:        topic,
					Error:        err.Error(),
				})
			})
			continue
		}
		res.Delivered++
	}
	if res.Recipients() == 0 {
		return res
	}

	r.logger.Debug("Message relayed", "sender_id", sender.ID(), "topic", topic,
		"recipients", res.Recipients(), "failed", res.Failed)
	r.emit(func() error {
		return pubsub.Publish(ctx, r.bus, EventMessageRelayed, sender.ID(), MessageRelayed{
			SenderID:   sender.ID(),
			Topic:      topic,
			Recipients: res.Recipients(),
			Failed:     res.Failed,
		})
	})
	return res
}

func (r *Relay) setTopic(ctx context.Context, conn *Connection, topic string) {
	previous, ok := r.registry.SetTopic(conn, topic)
	if !ok || previous == topic {
		return
	}

	r.logger.Debug("Topic changed", "connection_id", conn.ID(), "from", previous, "to", topic)
	r.emit(func() error {
		return pubsub.Publish(ctx, r.bus, EventTopicChanged, conn.ID(), TopicChanged{
			ConnectionID: conn.ID(),
			From:         previous,
			To:           topic,
		})
	})
}

// emit publishes an event if a bus is configured. Event failures never affect relaying.
func (r *Relay) emit(publish func() error) {
	if r.bus == nil {
		return
	}
	if err := publish(); err != nil {
		r.logger.Debug("Failed to publish relay event", "error", err)
	}
}
