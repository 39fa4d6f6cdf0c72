package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"

	"github.com/wundergraph/graphql-ws-transport/pkg/subscription"
)

type ConnectionOptions struct {
	Logger            abstractlogger.Logger
	Hooks             subscription.Hooks
	ResultInterceptor subscription.ResultInterceptor
}

// Connection binds a Transport to the context of the request that upgraded
// it and owns the operations running on it.
type Connection struct {
	id        string
	logger    abstractlogger.Logger
	transport Transport
	executor  subscription.Executor
	options   ConnectionOptions

	// ctx is the originating request scope, scope the orchestrator scope
	// derived from it.
	ctx         context.Context
	scope       context.Context
	cancelScope context.CancelFunc

	protocol Protocol
	registry *subscription.OperationRegistry

	closing   atomic.Bool
	closeDone chan struct{}
}

func NewConnection(ctx context.Context, transport Transport, executor subscription.Executor, options ConnectionOptions) *Connection {
	if options.Logger == nil {
		options.Logger = abstractlogger.NoopLogger
	}
	return &Connection{
		id:        uuid.NewString(),
		logger:    options.Logger,
		transport: transport,
		executor:  executor,
		options:   options,
		ctx:       ctx,
		closeDone: make(chan struct{}),
	}
}

// Open selects the protocol for the negotiated sub-protocol. It closes the
// connection and returns false if the sub-protocol is not supported.
func (c *Connection) Open() bool {
	name := c.transport.Subprotocol()
	protocol, ok := ProtocolByName(name)
	if !ok {
		c.logger.Debug("websocket.Connection.Open: unsupported sub-protocol",
			abstractlogger.String("connection", c.id),
			abstractlogger.String("protocol", name),
		)
		_ = c.Close(CloseCodeProtocolError, fmt.Sprintf("unsupported sub-protocol %q", name))
		return false
	}

	c.protocol = protocol
	c.scope, c.cancelScope = context.WithCancel(c.ctx)
	c.registry = subscription.NewOperationRegistry(c.scope, c, c.executor, subscription.RegistryOptions{
		Logger:      c.logger,
		Hooks:       c.options.Hooks,
		Interceptor: c.options.ResultInterceptor,
		SendContext: c.ctx,
	})

	c.logger.Debug("websocket.Connection.Open: connection opened",
		abstractlogger.String("connection", c.id),
		abstractlogger.String("protocol", name),
	)
	return true
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Protocol() Protocol {
	return c.protocol
}

func (c *Connection) Registry() *subscription.OperationRegistry {
	return c.registry
}

// Context returns the orchestrator scope. It is only valid after Open.
func (c *Connection) Context() context.Context {
	return c.scope
}

func (c *Connection) cancel() {
	if c.cancelScope != nil {
		c.cancelScope()
	}
}

// Send writes data unless ctx is done or the connection is closed. Transport
// errors are logged and never returned.
func (c *Connection) Send(ctx context.Context, data []byte) {
	if ctx.Err() != nil || c.IsClosed() {
		return
	}

	err := c.transport.Write(data)
	switch {
	case err == nil:
	case errors.Is(err, ErrTransportClosed):
		c.logger.Debug("websocket.Connection.Send: connection closed",
			abstractlogger.String("connection", c.id),
		)
	default:
		c.logger.Error("websocket.Connection.Send: on write",
			abstractlogger.String("connection", c.id),
			abstractlogger.Error(err),
		)
	}
}

// WriteMessage encodes message with the connection protocol and sends it.
// Only encoding errors are returned.
func (c *Connection) WriteMessage(ctx context.Context, message *Message) error {
	data, err := c.protocol.Encode(message)
	if err != nil {
		return err
	}
	c.Send(ctx, data)
	return nil
}

func (c *Connection) WriteData(ctx context.Context, id string, result *subscription.ExecutionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.WriteMessage(ctx, &Message{Type: MessageTypeData, ID: id, Payload: payload})
}

func (c *Connection) WriteError(ctx context.Context, id string, errs subscription.RequestErrors) error {
	payload, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	return c.WriteMessage(ctx, &Message{Type: MessageTypeError, ID: id, Payload: payload})
}

func (c *Connection) WriteComplete(ctx context.Context, id string) error {
	return c.WriteMessage(ctx, &Message{Type: MessageTypeComplete, ID: id})
}

// ReceiveInto copies the next message from the transport into w.
func (c *Connection) ReceiveInto(w io.Writer) error {
	return c.transport.Receive(w)
}

// IsClosed queries the transport on every call.
func (c *Connection) IsClosed() bool {
	return c.closing.Load() || c.transport.IsClosed()
}

// Close cancels the connection scope, cancels every operation, closes the
// transport and waits for the operations to return. Concurrent and repeated
// calls wait for the first one to finish.
func (c *Connection) Close(code CloseCode, reason string) error {
	if !c.closing.CompareAndSwap(false, true) {
		<-c.closeDone
		return nil
	}
	defer close(c.closeDone)

	c.cancel()
	if c.registry != nil {
		c.registry.Close()
	}

	c.logger.Debug("websocket.Connection.Close: closing connection",
		abstractlogger.String("connection", c.id),
		abstractlogger.String("code", code.String()),
		abstractlogger.String("reason", reason),
	)
	err := c.transport.Close(code, reason)

	if c.registry != nil {
		c.registry.Wait()
	}
	return err
}

// Interface Guard
var _ subscription.MessageWriter = (*Connection)(nil)
