package topicmgr

import (
	"fmt"
	"regexp"
	"strings"
)

// frameworkPrefixes lists the name prefixes framework topics may use.
var frameworkPrefixes = []string{
	"relay.",  // connection lifecycle, frames, deliveries
	"server.", // process lifecycle
}

// Validator checks topic definitions against the naming rules.
type Validator struct {
	namePattern *regexp.Regexp
}

// NewValidator creates a new topic validator
func NewValidator() *Validator {
	return &Validator{
		// Hierarchical names: relay.connection.opened, server.shutdown
		namePattern: regexp.MustCompile(`^[a-z][a-z0-9]*(\.[a-z][a-z0-9]*)*$`),
	}
}

// ValidateDefinition validates a topic definition
func (v *Validator) ValidateDefinition(topic Topic) error {
	if topic == nil {
		return fmt.Errorf("topic cannot be nil")
	}

	if err := v.ValidateName(topic.Name()); err != nil {
		return fmt.Errorf("invalid topic name: %w", err)
	}

	if strings.TrimSpace(topic.Description()) == "" {
		return fmt.Errorf("topic description cannot be empty")
	}

	if topic.Scope() != ScopeFramework {
		return fmt.Errorf("invalid topic scope: %q", topic.Scope())
	}
	if !hasAnyPrefix(topic.Name(), frameworkPrefixes) {
		return fmt.Errorf("framework topic must start with one of %v", frameworkPrefixes)
	}

	return nil
}

// ValidateName checks if a topic name follows the naming convention
func (v *Validator) ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("name too long (max 100 characters)")
	}
	if !v.namePattern.MatchString(name) {
		return fmt.Errorf("name must be lowercase dot-separated segments")
	}
	return nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
