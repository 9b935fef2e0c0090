package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMalformedFrame is returned for frames that are not a JSON object with
// optional string "topic" and "message" fields.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a decoded inbound frame. A nil field was absent (or null).
type Frame struct {
	Topic   *string `json:"topic"`
	Message *string `json:"message"`
}

// HasTopic reports whether the frame asks to change topic.
func (f Frame) HasTopic() bool {
	return f.Topic != nil
}

// HasMessage reports whether the frame carries something to relay.
func (f Frame) HasMessage() bool {
	return f.Message != nil && *f.Message != ""
}

// ParseFrame decodes a raw text or binary frame. Unknown fields are ignored.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame

	if !utf8.Valid(data) {
		return f, fmt.Errorf("%w: invalid UTF-8", ErrMalformedFrame)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return f, fmt.Errorf("%w: not a JSON object", ErrMalformedFrame)
	}

	if err := json.Unmarshal(trimmed, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f, nil
}
