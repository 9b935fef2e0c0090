package topicmgr

import (
	"time"
)

// Topic represents a strongly-typed topic identifier
type Topic interface {
	// Name returns the unique string identifier for this topic
	Name() string

	// Description returns human-readable documentation
	Description() string

	// Pattern returns the routing pattern
	Pattern() string

	// Example returns a payload example
	Example() string

	// Metadata returns additional topic information
	Metadata() map[string]interface{}

	// Scope returns the layer that publishes this topic
	Scope() TopicScope
}

// TypedTopic is the Topic implementation returned by DefineFramework.
type TypedTopic struct {
	name        string
	description string
	pattern     string
	example     string
	metadata    map[string]interface{}
	scope       TopicScope
}

var _ Topic = (*TypedTopic)(nil)

// TopicConfig holds configuration for creating a new topic
type TopicConfig struct {
	Name        string                 `json:"name"`
	Scope       TopicScope             `json:"scope"`
	Description string                 `json:"description"`
	Pattern     string                 `json:"pattern"`
	Example     string                 `json:"example"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// TopicScope names the layer a topic belongs to.
type TopicScope string

// ScopeFramework covers the relay core (connections, frames, deliveries).
const ScopeFramework TopicScope = "framework"

// Entry is a registered topic together with its registration time.
type Entry struct {
	Topic        Topic     `json:"-"`
	RegisteredAt time.Time `json:"registered_at"`
}

// TopicError represents structured errors in the topic management system
type TopicError struct {
	Type    ErrorType `json:"type"`
	Topic   string    `json:"topic"`
	Message string    `json:"message"`
	Cause   error     `json:"cause,omitempty"`
}

// ErrorType defines the type of topic management error
type ErrorType string

const (
	ErrorTopicNotFound         ErrorType = "topic_not_found"
	ErrorDuplicateRegistration ErrorType = "duplicate_registration"
	ErrorValidationFailed      ErrorType = "validation_failed"
)

// Error implements the error interface
func (e *TopicError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *TopicError) Unwrap() error {
	return e.Cause
}

func (t *TypedTopic) Name() string        { return t.name }
func (t *TypedTopic) Description() string { return t.description }
func (t *TypedTopic) Pattern() string     { return t.pattern }
func (t *TypedTopic) Example() string     { return t.example }
func (t *TypedTopic) Scope() TopicScope   { return t.scope }

// Metadata returns a copy of the topic metadata.
func (t *TypedTopic) Metadata() map[string]interface{} {
	result := make(map[string]interface{}, len(t.metadata))
	for k, v := range t.metadata {
		result[k] = v
	}
	return result
}

// String returns the topic name for easy debugging
func (t *TypedTopic) String() string {
	return t.name
}

// DefineFramework creates a new typed topic for framework services
func DefineFramework(config TopicConfig) Topic {
	config.Scope = ScopeFramework
	return newTypedTopic(config)
}

func newTypedTopic(config TopicConfig) *TypedTopic {
	pattern := config.Pattern
	if pattern == "" {
		pattern = config.Name
	}
	return &TypedTopic{
		name:        config.Name,
		description: config.Description,
		pattern:     pattern,
		example:     config.Example,
		metadata:    config.Metadata,
		scope:       config.Scope,
	}
}
