package relay

import (
	"errors"
	"sync"
)

var (
	// ErrChannelClosed is returned by Channel.Send after the channel was closed.
	ErrChannelClosed = errors.New("channel closed")
	// ErrSendBufferFull is returned when a recipient's outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Channel is the transport handle used to deliver payloads to one client.
// Send must not block; Close must be safe to call more than once.
type Channel interface {
	Send(payload []byte) error
	Close()
}

// Connection is one registry entry: a channel and the topic it joined.
// The empty topic means the connection has not joined anything.
type Connection struct {
	id      string
	channel Channel

	// topic is written only while the owning Registry holds its write lock,
	// and additionally under mu so Topic() can be read without the registry.
	mu    sync.RWMutex
	topic string
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string {
	return c.id
}

// Topic returns the topic the connection currently belongs to.
func (c *Connection) Topic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topic
}

// Send delivers payload on the connection's channel.
func (c *Connection) Send(payload []byte) error {
	return c.channel.Send(payload)
}

func (c *Connection) setTopic(topic string) {
	c.mu.Lock()
	c.topic = topic
	c.mu.Unlock()
}
