package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-ws-transport/pkg/subscription"
)

// InitPayload is the payload of the connection_init message.
type InitPayload json.RawMessage

// InitFunc is called for every connection_init message. A returned error
// rejects the connection.
type InitFunc func(ctx context.Context, payload InitPayload) error

// Pipeline decodes frames and dispatches the messages.
type Pipeline struct {
	conn     *Connection
	initFunc InitFunc
	logger   abstractlogger.Logger
}

func NewPipeline(conn *Connection, initFunc InitFunc, logger abstractlogger.Logger) *Pipeline {
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &Pipeline{
		conn:     conn,
		initFunc: initFunc,
		logger:   logger,
	}
}

// Process handles one frame. Returned errors are fatal to the connection.
func (p *Pipeline) Process(ctx context.Context, frame []byte) error {
	protocol := p.conn.Protocol()

	message, err := protocol.Decode(frame)
	if errors.Is(err, ErrNotAMessage) {
		p.logger.Debug("websocket.Pipeline.Process: not a message",
			abstractlogger.String("connection", p.conn.ID()),
			abstractlogger.Error(err),
		)
		if reply := protocol.NotAMessageReply(); reply != nil {
			p.conn.Send(ctx, reply)
		}
		return nil
	}
	if err != nil {
		return err
	}

	switch message.Type {
	case MessageTypeInit:
		return p.handleInit(ctx, message)
	case MessageTypeTerminate:
		_ = p.conn.Close(CloseCodeNormalClosure, "")
		return nil
	case MessageTypeStart:
		return p.handleStart(ctx, message)
	case MessageTypeStop:
		p.conn.Registry().Unregister(message.ID)
		return nil
	case MessageTypePing:
		return p.conn.WriteMessage(ctx, &Message{Type: MessageTypePong, Payload: message.Payload})
	case MessageTypePong:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnhandledMessage, message.Type)
	}
}

func (p *Pipeline) handleInit(ctx context.Context, message *Message) error {
	if p.initFunc != nil {
		if err := p.initFunc(ctx, InitPayload(message.Payload)); err != nil {
			p.logger.Debug("websocket.Pipeline.handleInit: connection rejected",
				abstractlogger.String("connection", p.conn.ID()),
				abstractlogger.Error(err),
			)
			payload, _ := json.Marshal(subscription.RequestErrorsFromError(err)[0])
			writeErr := p.conn.WriteMessage(ctx, &Message{Type: MessageTypeConnectionError, Payload: payload})
			if writeErr != nil && !errors.Is(writeErr, ErrUnsupportedMessageType) {
				return writeErr
			}
			_ = p.conn.Close(CloseCodePolicyViolation, "Forbidden")
			return nil
		}
	}

	p.conn.Send(ctx, p.conn.Protocol().ConnectionAck())
	return nil
}

func (p *Pipeline) handleStart(ctx context.Context, message *Message) error {
	request, err := subscription.UnmarshalRequest(message.Payload)
	if err != nil {
		return p.conn.WriteError(ctx, message.ID, subscription.RequestErrorsFromError(err))
	}

	registered, err := p.conn.Registry().Register(message.ID, request)
	switch {
	case errors.Is(err, subscription.ErrRegistryClosed):
		return nil
	case err != nil:
		return err
	case !registered:
		p.logger.Debug("websocket.Pipeline.handleStart: operation already running",
			abstractlogger.String("connection", p.conn.ID()),
			abstractlogger.String("id", message.ID),
		)
	}
	return nil
}
