package relay

import (
	"github.com/nfrund/topicrelay/internal/pubsub"
	"github.com/nfrund/topicrelay/internal/topicmgr"
)

// ConnectionOpened is published after a connection is registered.
type ConnectionOpened struct {
	ConnectionID string `json:"connection_id"`
	RemoteAddr   string `json:"remote_addr"`
}

// ConnectionClosed is published once per connection, after it left the registry.
type ConnectionClosed struct {
	ConnectionID string `json:"connection_id"`
	Topic        string `json:"topic"`
	Reason       string `json:"reason"`
}

// TopicChanged is published when a frame moves a connection to another topic.
type TopicChanged struct {
	ConnectionID string `json:"connection_id"`
	From         string `json:"from"`
	To           string `json:"to"`
}

// FrameMalformed is published when an inbound frame could not be parsed.
type FrameMalformed struct {
	ConnectionID string `json:"connection_id"`
	Size         int    `json:"size"`
	Error        string `json:"error"`
}

// DeliveryFailed is published for every recipient whose channel rejected a message.
type DeliveryFailed struct {
	ConnectionID string `json:"connection_id"`
	SenderID     string `json:"sender_id"`
	Topic        string `json:"topic"`
	Error        string `json:"error"`
}

// MessageRelayed summarises one fan-out.
type MessageRelayed struct {
	SenderID   string `json:"sender_id"`
	Topic      string `json:"topic"`
	Recipients int    `json:"recipients"`
	Failed     int    `json:"failed"`
}

var (
	EventConnectionOpened = pubsub.NewEvent[ConnectionOpened](topicmgr.TopicConfig{
		Name:        "relay.connection.opened",
		Description: "A client connected and was registered with no topic",
		Example:     `{"connection_id":"4f7c...","remote_addr":"10.0.0.7"}`,
	})

	EventConnectionClosed = pubsub.NewEvent[ConnectionClosed](topicmgr.TopicConfig{
		Name:        "relay.connection.closed",
		Description: "A client disconnected and was removed from the registry",
		Example:     `{"connection_id":"4f7c...","topic":"room-42","reason":"client_closed"}`,
	})

	EventTopicChanged = pubsub.NewEvent[TopicChanged](topicmgr.TopicConfig{
		Name:        "relay.topic.changed",
		Description: "A client moved from one topic to another",
		Example:     `{"connection_id":"4f7c...","from":"","to":"room-42"}`,
	})

	EventFrameMalformed = pubsub.NewEvent[FrameMalformed](topicmgr.TopicConfig{
		Name:        "relay.frame.malformed",
		Description: "An inbound frame was not a valid JSON object and was ignored",
		Example:     `{"connection_id":"4f7c...","size":9,"error":"malformed frame: not a JSON object"}`,
	})

	EventDeliveryFailed = pubsub.NewEvent[DeliveryFailed](topicmgr.TopicConfig{
		Name:        "relay.delivery.failed",
		Description: "A message could not be queued for one recipient",
		Example:     `{"connection_id":"9a01...","sender_id":"4f7c...","topic":"room-42","error":"send buffer full"}`,
	})

	EventMessageRelayed = pubsub.NewEvent[MessageRelayed](topicmgr.TopicConfig{
		Name:        "relay.message.relayed",
		Description: "A message was fanned out to the sender's topic peers",
		Example:     `{"sender_id":"4f7c...","topic":"room-42","recipients":3,"failed":0}`,
	})
)

// Topics lists the event topics the relay publishes.
func Topics() []topicmgr.Topic {
	return []topicmgr.Topic{
		EventConnectionOpened.Topic(),
		EventConnectionClosed.Topic(),
		EventTopicChanged.Topic(),
		EventFrameMalformed.Topic(),
		EventDeliveryFailed.Topic(),
		EventMessageRelayed.Topic(),
	}
}

// RegisterTopics adds the relay's event topics to the catalogue.
func RegisterTopics(m *topicmgr.Manager) error {
	for _, t := range Topics() {
		if err := m.Register(t); err != nil {
			return err
		}
	}
	return nil
}
