// Package protocol defines the DDP frames exchanged with the realtime API.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Tag is the value of the `msg` discriminant of a frame.
type Tag string

const (
	TagConnect   Tag = "connect"
	TagConnected Tag = "connected"
	TagFailed    Tag = "failed"
	TagMethod    Tag = "method"
	TagResult    Tag = "result"
	TagUpdated   Tag = "updated"
	TagSub       Tag = "sub"
	TagUnsub     Tag = "unsub"
	TagReady     Tag = "ready"
	TagNosub     Tag = "nosub"
	TagAdded     Tag = "added"
	TagChanged   Tag = "changed"
	TagRemoved   Tag = "removed"
	TagPing      Tag = "ping"
	TagPong      Tag = "pong"
	TagError     Tag = "error"
)

// String returns the string representation of Tag
func (t Tag) String() string {
	return string(t)
}

// Message is a single DDP frame. Outgoing requests and incoming replies
// share the type; only the fields relevant to the tag are set.
type Message struct {
	Msg     Tag      `json:"msg"`
	ID      string   `json:"id,omitempty"`
	Method  string   `json:"method,omitempty"`
	Name    string   `json:"name,omitempty"`
	Params  []any    `json:"params,omitzero"`
	Version string   `json:"version,omitempty"`
	Support []string `json:"support,omitempty"`

	Session    string          `json:"session,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *Error          `json:"error,omitempty"`
	Collection string          `json:"collection,omitempty"`
	Fields     *Fields         `json:"fields,omitempty"`
	Subs       []string        `json:"subs,omitempty"`
	Methods    []string        `json:"methods,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// Fields is the payload of a stream push frame.
type Fields struct {
	EventName string            `json:"eventName"`
	Args      []json.RawMessage `json:"args"`
}

// Error is an error object returned by the server in a result or nosub frame.
type Error struct {
	Code      any    `json:"error,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("server error: %s", e.Message)
	case e.Reason != "":
		return fmt.Sprintf("server error: %s", e.Reason)
	default:
		return fmt.Sprintf("server error: %v", e.Code)
	}
}

// Encode encodes the message into a JSON frame
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Decode decodes a JSON frame into the message
func (m *Message) Decode(data []byte) error {
	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	*m = decoded
	return nil
}
