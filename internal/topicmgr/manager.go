package topicmgr

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Manager is the catalogue of registered topics.
type Manager struct {
	validator *Validator
	mu        sync.RWMutex
	entries   map[string]Entry
}

// NewManager creates an empty topic manager.
func NewManager() *Manager {
	return &Manager{
		validator: NewValidator(),
		entries:   make(map[string]Entry),
	}
}

// Register validates a topic and adds it to the catalogue. Registering the
// same definition twice is a no-op; a different definition under an existing
// name is a duplicate registration error.
func (m *Manager) Register(topic Topic) error {
	if err := m.validator.ValidateDefinition(topic); err != nil {
		name := ""
		if topic != nil {
			name = topic.Name()
		}
		return &TopicError{
			Type:    ErrorValidationFailed,
			Topic:   name,
			Message: "topic validation failed",
			Cause:   err,
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[topic.Name()]; ok {
		if existing.Topic == topic {
			return nil
		}
		return &TopicError{
			Type:    ErrorDuplicateRegistration,
			Topic:   topic.Name(),
			Message: fmt.Sprintf("topic already registered: %s", topic.Name()),
		}
	}

	m.entries[topic.Name()] = Entry{Topic: topic, RegisteredAt: time.Now()}
	return nil
}

// MustRegister registers every topic and panics on the first error.
func (m *Manager) MustRegister(topics ...Topic) {
	for _, t := range topics {
		if err := m.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a topic by name
func (m *Manager) Get(name string) (Topic, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[name]
	if !ok {
		return nil, false
	}
	return entry.Topic, true
}

// Lookup is Get returning a TopicError for unknown names.
func (m *Manager) Lookup(name string) (Topic, error) {
	if t, ok := m.Get(name); ok {
		return t, nil
	}
	return nil, &TopicError{
		Type:    ErrorTopicNotFound,
		Topic:   name,
		Message: fmt.Sprintf("topic not found: %s", name),
	}
}

// List returns all registered topics sorted by name.
func (m *Manager) List() []Topic {
	return m.filter(func(Topic) bool { return true })
}

// ListByPrefix returns the topics whose name starts with prefix, sorted by name.
func (m *Manager) ListByPrefix(prefix string) []Topic {
	return m.filter(func(t Topic) bool { return strings.HasPrefix(t.Name(), prefix) })
}

func (m *Manager) filter(keep func(Topic) bool) []Topic {
	m.mu.RLock()
	defer m.mu.RUnlock()

	topics := make([]Topic, 0, len(m.entries))
	for _, entry := range m.entries {
		if keep(entry.Topic) {
			topics = append(topics, entry.Topic)
		}
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name() < topics[j].Name() })
	return topics
}
