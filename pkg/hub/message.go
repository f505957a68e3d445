// Package hub fans messages out to websocket clients.
package hub

import "encoding/json"

// MessageType selects the websocket frame type.
type MessageType int

const (
	JSONMessage   MessageType = iota // Text frame carrying JSON
	BinaryMessage                    // Binary frame, e.g. a JPEG preview
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// Event is the JSON envelope for typed messages.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps binary data.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// NewEvent encodes an Event envelope.
func NewEvent(eventType string, data any) (Message, error) {
	b, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(b), nil
}
