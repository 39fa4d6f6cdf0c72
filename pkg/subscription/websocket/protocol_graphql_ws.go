package websocket

import (
	"bytes"
)

// GraphQLWSDelimiter terminates every message of the graphql-ws protocol in
// the receive pipe.
const GraphQLWSDelimiter byte = 0x07

const (
	GraphQLWSMessageTypeConnectionInit      = "connection_init"
	GraphQLWSMessageTypeConnectionTerminate = "connection_terminate"
	GraphQLWSMessageTypeStart               = "start"
	GraphQLWSMessageTypeStop                = "stop"
	GraphQLWSMessageTypeData                = "data"
	GraphQLWSMessageTypeError               = "error"
	GraphQLWSMessageTypeComplete            = "complete"
	GraphQLWSMessageTypeConnectionKeepAlive = "ka"
	GraphQLWSMessageTypeConnectionAck       = "connection_ack"
	GraphQLWSMessageTypeConnectionError     = "connection_error"
)

var graphQLWSTypes = newMessageTypeTable(map[MessageType]string{
	MessageTypeInit:            GraphQLWSMessageTypeConnectionInit,
	MessageTypeTerminate:       GraphQLWSMessageTypeConnectionTerminate,
	MessageTypeStart:           GraphQLWSMessageTypeStart,
	MessageTypeStop:            GraphQLWSMessageTypeStop,
	MessageTypeData:            GraphQLWSMessageTypeData,
	MessageTypeError:           GraphQLWSMessageTypeError,
	MessageTypeComplete:        GraphQLWSMessageTypeComplete,
	MessageTypeKeepAlive:       GraphQLWSMessageTypeConnectionKeepAlive,
	MessageTypeConnectionAck:   GraphQLWSMessageTypeConnectionAck,
	MessageTypeConnectionError: GraphQLWSMessageTypeConnectionError,
})

func newMessageTypeTable(encode map[MessageType]string) messageTypeTable {
	decode := make(map[string]MessageType, len(encode))
	for typ, name := range encode {
		decode[name] = typ
	}
	return messageTypeTable{encode: encode, decode: decode}
}

// GraphQLWSProtocol implements the legacy graphql-ws protocol
// (subscriptions-transport-ws). Messages are delimited in the receive pipe
// by GraphQLWSDelimiter.
type GraphQLWSProtocol struct {
	keepAlive     []byte
	connectionAck []byte
}

func NewGraphQLWSProtocol() *GraphQLWSProtocol {
	p := &GraphQLWSProtocol{}
	p.keepAlive = mustEncode(p, &Message{Type: MessageTypeKeepAlive})
	p.connectionAck = mustEncode(p, &Message{Type: MessageTypeConnectionAck})
	return p
}

func (p *GraphQLWSProtocol) Name() string {
	return ProtocolGraphQLWS
}

func (p *GraphQLWSProtocol) Encode(message *Message) ([]byte, error) {
	return graphQLWSTypes.encodeEnvelope(message)
}

// Decode accepts a frame with or without its trailing delimiter.
func (p *GraphQLWSProtocol) Decode(data []byte) (*Message, error) {
	if n := len(data); n > 0 && data[n-1] == GraphQLWSDelimiter {
		data = data[:n-1]
	}
	return graphQLWSTypes.decodeEnvelope(data)
}

func (p *GraphQLWSProtocol) KeepAlive() []byte {
	return p.keepAlive
}

func (p *GraphQLWSProtocol) ConnectionAck() []byte {
	return p.connectionAck
}

// NotAMessageReply treats garbage and heartbeats as a client ping.
func (p *GraphQLWSProtocol) NotAMessageReply() []byte {
	return p.keepAlive
}

func (p *GraphQLWSProtocol) EndFrame(pipe *FramePipe) error {
	_, err := pipe.Write([]byte{GraphQLWSDelimiter})
	return err
}

func (p *GraphQLWSProtocol) Split(data []byte, _ bool) (int, []byte) {
	idx := bytes.IndexByte(data, GraphQLWSDelimiter)
	if idx == -1 {
		return 0, nil
	}
	return idx + 1, data[:idx]
}

// Interface Guard
var _ Protocol = (*GraphQLWSProtocol)(nil)
