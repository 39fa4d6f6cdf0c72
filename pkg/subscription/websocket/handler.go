package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/jensneuse/abstractlogger"
	"golang.org/x/sync/errgroup"

	"github.com/wundergraph/graphql-ws-transport/pkg/subscription"
)

// HandleOptions can be used to pass options to the websocket handler.
type HandleOptions struct {
	Logger            abstractlogger.Logger
	InitFunc          InitFunc
	KeepAliveInterval time.Duration
	Hooks             subscription.Hooks
	ResultInterceptor subscription.ResultInterceptor
	PipeCapacity      int
}

// HandleOptionFunc can be used to define option functions.
type HandleOptionFunc func(opts *HandleOptions)

// WithLogger is a function that sets a logger for the websocket handler.
func WithLogger(logger abstractlogger.Logger) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.Logger = logger
	}
}

// WithInitFunc is a function that sets the init function for the websocket handler.
func WithInitFunc(initFunc InitFunc) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.InitFunc = initFunc
	}
}

// WithKeepAliveInterval is a function that sets a custom keep-alive interval for the websocket handler.
func WithKeepAliveInterval(interval time.Duration) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.KeepAliveInterval = interval
	}
}

func WithHooks(hooks subscription.Hooks) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.Hooks = hooks
	}
}

func WithResultInterceptor(interceptor subscription.ResultInterceptor) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.ResultInterceptor = interceptor
	}
}

// WithPipeCapacity sets how many received chunks may queue up before the
// receiver blocks.
func WithPipeCapacity(capacity int) HandleOptionFunc {
	return func(opts *HandleOptions) {
		opts.PipeCapacity = capacity
	}
}

// Handle will handle the websocket connection until it is closed. It can take
// optional option functions to customize the handler behavior.
func Handle(ctx context.Context, transport Transport, executor subscription.Executor, options ...HandleOptionFunc) error {
	definedOptions := HandleOptions{
		Logger: abstractlogger.Noop{},
	}

	for _, optionFunc := range options {
		optionFunc(&definedOptions)
	}

	return HandleWithOptions(ctx, transport, executor, definedOptions)
}

// HandleWithOptions will handle the websocket connection. It requires an option
// struct to define the behavior. The receive loop runs on the calling goroutine,
// its exit drives the shutdown of the connection.
func HandleWithOptions(ctx context.Context, transport Transport, executor subscription.Executor, options HandleOptions) error {
	// Use noop logger to prevent nil pointers if none was provided
	if options.Logger == nil {
		options.Logger = abstractlogger.Noop{}
	}
	if options.KeepAliveInterval <= 0 {
		options.KeepAliveInterval = DefaultKeepAliveInterval
	}

	conn := NewConnection(ctx, transport, executor, ConnectionOptions{
		Logger:            options.Logger,
		Hooks:             options.Hooks,
		ResultInterceptor: options.ResultInterceptor,
	})
	if !conn.Open() {
		return nil
	}

	// the receive loop blocks in the socket read, closing the socket is the
	// only way to stop it when the originating request goes away
	stopAfterCancel := context.AfterFunc(ctx, func() {
		_ = conn.Close(CloseCodeNormalClosure, "")
	})
	defer stopAfterCancel()

	protocol := conn.Protocol()
	pipe := NewFramePipe(options.PipeCapacity)
	receiver := NewFrameReceiver(conn, protocol, pipe, options.Logger)
	processor := NewFrameProcessor(pipe, protocol, NewPipeline(conn, options.InitFunc, options.Logger))
	keepAlive := NewKeepAliveJob(conn, protocol.KeepAlive(), options.KeepAliveInterval)

	group, groupCtx := errgroup.WithContext(conn.Context())
	group.Go(func() error {
		return keepAlive.Run(groupCtx)
	})
	group.Go(func() error {
		err := processor.Run(groupCtx)
		if err != nil {
			options.Logger.Error("websocket.HandleWithOptions: on processing messages",
				abstractlogger.String("connection", conn.ID()),
				abstractlogger.Error(err),
			)
			_ = conn.Close(closeCodeFor(err))
		}
		return err
	})

	receiveErr := receiver.Run(conn.Context())
	if receiveErr != nil {
		options.Logger.Error("websocket.HandleWithOptions: on receiving messages",
			abstractlogger.String("connection", conn.ID()),
			abstractlogger.Error(receiveErr),
		)
	}

	conn.cancel()
	processErr := group.Wait()

	code, reason := CloseCodeNormalClosure, ""
	if receiveErr != nil {
		code, reason = closeCodeFor(receiveErr)
	}
	if err := conn.Close(code, reason); err != nil {
		options.Logger.Debug("websocket.HandleWithOptions: on closing connection",
			abstractlogger.String("connection", conn.ID()),
			abstractlogger.Error(err),
		)
	}

	switch {
	case processErr != nil && !errors.Is(processErr, context.Canceled):
		return processErr
	case receiveErr != nil && !errors.Is(receiveErr, context.Canceled):
		return receiveErr
	default:
		return nil
	}
}

func closeCodeFor(err error) (CloseCode, string) {
	switch {
	case errors.Is(err, ErrUnhandledMessage), errors.Is(err, ErrStopWithPayload), errors.Is(err, ErrInvalidFrame):
		return CloseCodeProtocolError, "protocol error"
	default:
		return CloseCodeInternalServerError, "internal server error"
	}
}
