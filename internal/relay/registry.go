package relay

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks every open connection and the topic it joined.
// Entries are identified by their *Connection handle, never by value.
type Registry struct {
	mu      sync.RWMutex
	entries map[*Connection]struct{}
	byTopic map[string]map[*Connection]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[*Connection]struct{}),
		byTopic: make(map[string]map[*Connection]struct{}),
	}
}

// Add registers a newly accepted channel with an empty topic and returns its handle.
func (r *Registry) Add(ch Channel) *Connection {
	conn := &Connection{id: uuid.NewString(), channel: ch}

	r.mu.Lock()
	r.entries[conn] = struct{}{}
	r.mu.Unlock()

	return conn
}

// Remove unregisters a connection and closes its channel. It reports whether
// the connection was present; removing an absent handle is a no-op.
func (r *Registry) Remove(conn *Connection) bool {
	if conn == nil {
		return false
	}

	r.mu.Lock()
	if _, ok := r.entries[conn]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, conn)
	r.unindexLocked(conn, conn.topic)
	r.mu.Unlock()

	conn.channel.Close()
	return true
}

// SetTopic moves a connection to topic and returns the topic it left.
// ok is false if the connection is not registered.
func (r *Registry) SetTopic(conn *Connection, topic string) (previous string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, registered := r.entries[conn]; !registered {
		return "", false
	}

	previous = conn.topic
	if previous == topic {
		return previous, true
	}

	r.unindexLocked(conn, previous)
	if topic != "" {
		members, exists := r.byTopic[topic]
		if !exists {
			members = make(map[*Connection]struct{})
			r.byTopic[topic] = members
		}
		members[conn] = struct{}{}
	}
	conn.setTopic(topic)

	return previous, true
}

// Snapshot returns the connections registered at call time.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.entries))
	for conn := range r.entries {
		conns = append(conns, conn)
	}
	return conns
}

// Members returns the connections on topic at call time. The empty topic has no members.
func (r *Registry) Members(topic string) []*Connection {
	if topic == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.byTopic[topic]
	conns := make([]*Connection, 0, len(members))
	for conn := range members {
		conns = append(conns, conn)
	}
	return conns
}

// Contains reports whether conn is registered.
func (r *Registry) Contains(conn *Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[conn]
	return ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Topics returns the member count of every non-empty topic.
func (r *Registry) Topics() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.byTopic))
	for topic, members := range r.byTopic {
		counts[topic] = len(members)
	}
	return counts
}

// Shutdown removes every connection registered at call time and closes its channel.
func (r *Registry) Shutdown() {
	for _, conn := range r.Snapshot() {
		r.Remove(conn)
	}
}

// unindexLocked drops conn from topic's bucket. Callers hold r.mu.
func (r *Registry) unindexLocked(conn *Connection, topic string) {
	if topic == "" {
		return
	}
	if members, ok := r.byTopic[topic]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(r.byTopic, topic)
		}
	}
}
