package websocket

import (
	"encoding/json"
)

const (
	GraphQLTransportWSMessageTypeConnectionInit = "connection_init"
	GraphQLTransportWSMessageTypeConnectionAck  = "connection_ack"
	GraphQLTransportWSMessageTypePing           = "ping"
	GraphQLTransportWSMessageTypePong           = "pong"
	GraphQLTransportWSMessageTypeSubscribe      = "subscribe"
	GraphQLTransportWSMessageTypeNext           = "next"
	GraphQLTransportWSMessageTypeError          = "error"
	GraphQLTransportWSMessageTypeComplete       = "complete"
)

// GraphQLTransportWSHeartbeatPayload marks a pong sent as server keep-alive.
var GraphQLTransportWSHeartbeatPayload = json.RawMessage(`{"type":"heartbeat"}`)

// The server side complete and the client side complete share one type
// string, so Complete only encodes and Stop is what decodes.
var graphQLTransportWSTypes = messageTypeTable{
	encode: map[MessageType]string{
		MessageTypeInit:          GraphQLTransportWSMessageTypeConnectionInit,
		MessageTypeConnectionAck: GraphQLTransportWSMessageTypeConnectionAck,
		MessageTypePing:          GraphQLTransportWSMessageTypePing,
		MessageTypePong:          GraphQLTransportWSMessageTypePong,
		MessageTypeKeepAlive:     GraphQLTransportWSMessageTypePong,
		MessageTypeStart:         GraphQLTransportWSMessageTypeSubscribe,
		MessageTypeData:          GraphQLTransportWSMessageTypeNext,
		MessageTypeError:         GraphQLTransportWSMessageTypeError,
		MessageTypeComplete:      GraphQLTransportWSMessageTypeComplete,
		MessageTypeStop:          GraphQLTransportWSMessageTypeComplete,
	},
	decode: map[string]MessageType{
		GraphQLTransportWSMessageTypeConnectionInit: MessageTypeInit,
		GraphQLTransportWSMessageTypeConnectionAck:  MessageTypeConnectionAck,
		GraphQLTransportWSMessageTypePing:           MessageTypePing,
		GraphQLTransportWSMessageTypePong:           MessageTypePong,
		GraphQLTransportWSMessageTypeSubscribe:      MessageTypeStart,
		GraphQLTransportWSMessageTypeNext:           MessageTypeData,
		GraphQLTransportWSMessageTypeError:          MessageTypeError,
		GraphQLTransportWSMessageTypeComplete:       MessageTypeStop,
	},
}

// GraphQLTransportWSProtocol implements graphql-transport-ws. Message
// boundaries come from the websocket framing.
type GraphQLTransportWSProtocol struct {
	keepAlive     []byte
	connectionAck []byte
}

func NewGraphQLTransportWSProtocol() *GraphQLTransportWSProtocol {
	p := &GraphQLTransportWSProtocol{}
	p.keepAlive = mustEncode(p, &Message{Type: MessageTypeKeepAlive})
	p.connectionAck = mustEncode(p, &Message{Type: MessageTypeConnectionAck})
	return p
}

func (p *GraphQLTransportWSProtocol) Name() string {
	return ProtocolGraphQLTransportWS
}

func (p *GraphQLTransportWSProtocol) Encode(message *Message) ([]byte, error) {
	if message != nil && message.Type == MessageTypeKeepAlive && message.Payload == nil {
		message = &Message{Type: MessageTypeKeepAlive, Payload: GraphQLTransportWSHeartbeatPayload}
	}
	return graphQLTransportWSTypes.encodeEnvelope(message)
}

func (p *GraphQLTransportWSProtocol) Decode(data []byte) (*Message, error) {
	return graphQLTransportWSTypes.decodeEnvelope(data)
}

func (p *GraphQLTransportWSProtocol) KeepAlive() []byte {
	return p.keepAlive
}

func (p *GraphQLTransportWSProtocol) ConnectionAck() []byte {
	return p.connectionAck
}

func (p *GraphQLTransportWSProtocol) NotAMessageReply() []byte {
	return nil
}

func (p *GraphQLTransportWSProtocol) EndFrame(pipe *FramePipe) error {
	pipe.MarkBoundary()
	return nil
}

func (p *GraphQLTransportWSProtocol) Split(data []byte, atBoundary bool) (int, []byte) {
	if !atBoundary || len(data) == 0 {
		return 0, nil
	}
	return len(data), data
}

// Interface Guard
var _ Protocol = (*GraphQLTransportWSProtocol)(nil)
