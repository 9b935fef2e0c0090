package topics

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogue(t *testing.T) {
	m, err := Catalogue()
	require.NoError(t, err)
	assert.Len(t, m.List(), 6)
}

func TestDisplayTopicsTable(t *testing.T) {
	m, err := Catalogue()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DisplayTopicsTable(&buf, m.List()))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "relay.message.relayed")
	assert.Contains(t, out, "sender_id,topic,recipients,failed")
}

func TestDisplayTopicsJSON(t *testing.T) {
	m, err := Catalogue()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DisplayTopicsJSON(&buf, m.List()))

	var decoded struct {
		Topics []TopicDisplay `json:"topics"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 6, decoded.Count)
	assert.Equal(t, "relay.connection.closed", decoded.Topics[0].Name)
	assert.Equal(t, "framework", decoded.Topics[0].Scope)
}

func TestDisplayTopicDetails(t *testing.T) {
	m, err := Catalogue()
	require.NoError(t, err)
	topic, err := m.Lookup("relay.topic.changed")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DisplayTopicDetails(&buf, topic, "table"))
	assert.Contains(t, buf.String(), "Name:        relay.topic.changed")
	assert.Contains(t, buf.String(), "Scope:       framework")
	assert.Contains(t, buf.String(), "type_name: TopicChanged")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcd...", truncateString("abcdefghij", 7))
	assert.Equal(t, "...", truncateString("abcdef", 2))
}
