package websocket

import (
	"encoding/json"
)

// MessageType is the protocol independent kind of a wire message.
type MessageType int

const (
	MessageTypeInit MessageType = iota + 1
	MessageTypeTerminate
	MessageTypeStart
	MessageTypeStop
	MessageTypeData
	MessageTypeError
	MessageTypeComplete
	MessageTypeKeepAlive
	MessageTypeConnectionAck
	MessageTypeConnectionError
	MessageTypePing
	MessageTypePong
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeInit:
		return "init"
	case MessageTypeTerminate:
		return "terminate"
	case MessageTypeStart:
		return "start"
	case MessageTypeStop:
		return "stop"
	case MessageTypeData:
		return "data"
	case MessageTypeError:
		return "error"
	case MessageTypeComplete:
		return "complete"
	case MessageTypeKeepAlive:
		return "keep_alive"
	case MessageTypeConnectionAck:
		return "connection_ack"
	case MessageTypeConnectionError:
		return "connection_error"
	case MessageTypePing:
		return "ping"
	case MessageTypePong:
		return "pong"
	default:
		return "unknown"
	}
}

// Message is a decoded wire message. Start and Stop always carry an ID, as do
// the server produced Data, Error and Complete messages.
type Message struct {
	Type    MessageType
	ID      string
	Payload json.RawMessage
}

// envelope is the json shape shared by both sub-protocols.
type envelope struct {
	Id      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
