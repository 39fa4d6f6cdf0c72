package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	ProtocolGraphQLWS          = "graphql-ws"
	ProtocolGraphQLTransportWS = "graphql-transport-ws"
)

var (
	// ErrNotAMessage is returned by Decode for heartbeats and frames that are
	// no valid message. It is never fatal.
	ErrNotAMessage = errors.New("not a message")
	// ErrStopWithPayload is returned by Decode for a stop message carrying a payload.
	ErrStopWithPayload        = errors.New("stop message must not carry a payload")
	ErrUnsupportedMessageType = errors.New("message type is not supported by protocol")
	ErrUnhandledMessage       = errors.New("message has no handler")
)

// Protocol is the codec and framing of one sub-protocol. It is selected once
// per connection from the negotiated sub-protocol name.
type Protocol interface {
	Name() string
	Encode(message *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)
	// KeepAlive and ConnectionAck return pre-encoded messages. Callers must
	// not modify them.
	KeepAlive() []byte
	ConnectionAck() []byte
	// NotAMessageReply is sent back when a frame decodes to ErrNotAMessage.
	// Nil means no reply.
	NotAMessageReply() []byte
	// EndFrame is called by the receiver after every received message.
	EndFrame(pipe *FramePipe) error
	// Split returns the length of the next complete frame in data and the
	// frame itself. An advance of 0 means more data is needed.
	Split(data []byte, atBoundary bool) (advance int, frame []byte)
}

// ProtocolByName returns a fresh Protocol for a sub-protocol name.
func ProtocolByName(name string) (Protocol, bool) {
	switch name {
	case ProtocolGraphQLWS:
		return NewGraphQLWSProtocol(), true
	case ProtocolGraphQLTransportWS:
		return NewGraphQLTransportWSProtocol(), true
	default:
		return nil, false
	}
}

// SupportedProtocols lists the sub-protocols in order of preference.
func SupportedProtocols() []string {
	return []string{ProtocolGraphQLTransportWS, ProtocolGraphQLWS}
}

func IsSupportedProtocol(name string) bool {
	_, ok := ProtocolByName(name)
	return ok
}

type messageTypeTable struct {
	encode map[MessageType]string
	decode map[string]MessageType
}

func (t messageTypeTable) encodeEnvelope(message *Message) ([]byte, error) {
	if message == nil {
		return nil, fmt.Errorf("%w: nil message", ErrUnsupportedMessageType)
	}
	typ, ok := t.encode[message.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMessageType, message.Type)
	}
	return json.Marshal(envelope{
		Id:      message.ID,
		Type:    typ,
		Payload: message.Payload,
	})
}

func (t messageTypeTable) decodeEnvelope(data []byte) (*Message, error) {
	if len(data) == 0 || (len(data) == 1 && data[0] == 0) {
		return nil, ErrNotAMessage
	}

	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAMessage, err)
	}
	typ, ok := t.decode[e.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrNotAMessage, e.Type)
	}

	message := &Message{
		Type: typ,
		ID:   e.Id,
	}
	if !isEmptyPayload(e.Payload) {
		message.Payload = e.Payload
	}

	switch typ {
	case MessageTypeStart:
		if message.ID == "" || message.Payload == nil {
			return nil, fmt.Errorf("%w: start requires id and payload", ErrNotAMessage)
		}
	case MessageTypeStop:
		if message.ID == "" {
			return nil, fmt.Errorf("%w: stop requires id", ErrNotAMessage)
		}
		if message.Payload != nil {
			return nil, ErrStopWithPayload
		}
	}
	return message, nil
}

var literalNull = []byte("null")

func isEmptyPayload(payload json.RawMessage) bool {
	payload = bytes.TrimSpace(payload)
	return len(payload) == 0 || bytes.Equal(payload, literalNull)
}

func mustEncode(protocol Protocol, message *Message) []byte {
	data, err := protocol.Encode(message)
	if err != nil {
		panic(err)
	}
	return data
}
