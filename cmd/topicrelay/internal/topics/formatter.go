package topics

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/nfrund/topicrelay/internal/relay"
	"github.com/nfrund/topicrelay/internal/topicmgr"
)

// Catalogue returns a manager holding every event topic the relay publishes.
func Catalogue() (*topicmgr.Manager, error) {
	m := topicmgr.NewManager()
	if err := relay.RegisterTopics(m); err != nil {
		return nil, fmt.Errorf("register relay topics: %w", err)
	}
	return m, nil
}

// TopicDisplay represents a topic for display purposes
type TopicDisplay struct {
	Name        string                 `json:"name"`
	Scope       string                 `json:"scope"`
	Description string                 `json:"description"`
	Pattern     string                 `json:"pattern"`
	Example     string                 `json:"example"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

func toDisplay(topic topicmgr.Topic) TopicDisplay {
	return TopicDisplay{
		Name:        topic.Name(),
		Scope:       string(topic.Scope()),
		Description: topic.Description(),
		Pattern:     topic.Pattern(),
		Example:     topic.Example(),
		Metadata:    topic.Metadata(),
	}
}

// DisplayTopicsTable writes topics as an aligned table.
func DisplayTopicsTable(w io.Writer, topics []topicmgr.Topic) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "NAME\tSCOPE\tDESCRIPTION\tFIELDS")
	fmt.Fprintln(tw, "----\t-----\t-----------\t------")

	for _, topic := range topics {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			topic.Name(),
			topic.Scope(),
			truncateString(topic.Description(), 50),
			truncateString(payloadFields(topic), 40))
	}
	return tw.Flush()
}

// DisplayTopicsJSON writes topics as a JSON document.
func DisplayTopicsJSON(w io.Writer, topics []topicmgr.Topic) error {
	topicDisplays := make([]TopicDisplay, len(topics))
	for i, topic := range topics {
		topicDisplays[i] = toDisplay(topic)
	}

	output := struct {
		Topics []TopicDisplay `json:"topics"`
		Count  int            `json:"count"`
	}{
		Topics: topicDisplays,
		Count:  len(topicDisplays),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// DisplayTopicDetails writes everything known about one topic.
func DisplayTopicDetails(w io.Writer, topic topicmgr.Topic, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(toDisplay(topic))
	}

	fmt.Fprintf(w, "Name:        %s\n", topic.Name())
	fmt.Fprintf(w, "Scope:       %s\n", topic.Scope())
	fmt.Fprintf(w, "Description: %s\n", topic.Description())
	fmt.Fprintf(w, "Pattern:     %s\n", topic.Pattern())
	fmt.Fprintf(w, "Example:     %s\n", topic.Example())

	metadata := topic.Metadata()
	if len(metadata) > 0 {
		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(w, "Metadata:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, metadata[k])
		}
	}
	return nil
}

func payloadFields(topic topicmgr.Topic) string {
	fields, ok := topic.Metadata()["payload_fields"].([]string)
	if !ok || len(fields) == 0 {
		return "-"
	}
	return strings.Join(fields, ",")
}

// truncateString truncates a string to maxLen characters, adding "..." if truncated
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
