package subscription

//go:generate mockgen -destination=executor_mock_test.go -package=subscription . Executor,ResultStream

import (
	"bytes"
	"context"
	"encoding/json"
)

// Executor executes a single GraphQL request. It is the boundary to the
// GraphQL engine, which is opaque to the transport.
type Executor interface {
	Execute(ctx context.Context, request *Request) (*Response, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, request *Request) (*Response, error)

func (f ExecutorFunc) Execute(ctx context.Context, request *Request) (*Response, error) {
	return f(ctx, request)
}

// ResultStream is a single-consumption sequence of results produced by a
// subscription. Next returns io.EOF once the sequence is exhausted.
type ResultStream interface {
	Next(ctx context.Context) (*ExecutionResult, error)
	Close() error
}

// Response is what an Executor returns. Exactly one of Result and Stream is set.
type Response struct {
	Result *ExecutionResult
	Stream ResultStream
}

// NewResultResponse wraps a single result.
func NewResultResponse(result *ExecutionResult) *Response {
	return &Response{Result: result}
}

// NewStreamResponse wraps a result stream.
func NewStreamResponse(stream ResultStream) *Response {
	return &Response{Stream: stream}
}

// ExecutionResult is one GraphQL response object.
type ExecutionResult struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     RequestErrors   `json:"errors,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`

	// OnRelease is called once by Release. Executors use it to return
	// pooled buffers.
	OnRelease func() `json:"-"`
}

// HasOnlyErrors reports whether the result carries errors but no data.
func (r *ExecutionResult) HasOnlyErrors() bool {
	if r == nil || len(r.Errors) == 0 {
		return false
	}
	data := bytes.TrimSpace(r.Data)
	return len(data) == 0 || bytes.Equal(data, literalNull)
}

// Release runs the release callback at most once.
func (r *ExecutionResult) Release() {
	if r == nil || r.OnRelease == nil {
		return
	}
	release := r.OnRelease
	r.OnRelease = nil
	release()
}

var literalNull = []byte("null")
