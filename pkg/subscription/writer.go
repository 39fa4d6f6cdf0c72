package subscription

import (
	"context"
)

// MessageWriter sends the server side messages of an operation. The
// websocket connection implements it for the negotiated protocol.
type MessageWriter interface {
	WriteData(ctx context.Context, id string, result *ExecutionResult) error
	WriteError(ctx context.Context, id string, errors RequestErrors) error
	WriteComplete(ctx context.Context, id string) error
}

// Hooks are optional callbacks around the lifetime of an operation.
type Hooks struct {
	// OnBeforeStart runs inside a registered operation before the executor is
	// called. A returned error is sent to the client as an error message and
	// the operation finishes without executing.
	OnBeforeStart func(ctx context.Context, id string, request *Request) error
	// OnComplete runs once when an operation finished for any reason.
	// Errors and panics are swallowed.
	OnComplete func(ctx context.Context, id string) error
}
