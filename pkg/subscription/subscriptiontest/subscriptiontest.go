// Package subscriptiontest provides test doubles for the subscription package.
package subscriptiontest

import (
	"context"
	"io"
	"sync"

	"go.uber.org/atomic"

	"github.com/wundergraph/graphql-ws-transport/pkg/subscription"
)

// Executor answers every request with Respond and remembers the requests.
type Executor struct {
	Respond func(ctx context.Context, request *subscription.Request) (*subscription.Response, error)

	mu       sync.Mutex
	requests []*subscription.Request
}

func (e *Executor) Execute(ctx context.Context, request *subscription.Request) (*subscription.Response, error) {
	e.mu.Lock()
	e.requests = append(e.requests, request)
	e.mu.Unlock()
	return e.Respond(ctx, request)
}

func (e *Executor) Requests() []*subscription.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*subscription.Request, len(e.requests))
	copy(out, e.requests)
	return out
}

// Stream is a ResultStream fed by Push and ended by Finish.
type Stream struct {
	results chan *subscription.ExecutionResult
	err     error
	closed  atomic.Bool
	once    sync.Once
}

func NewStream(buffer int) *Stream {
	return &Stream{
		results: make(chan *subscription.ExecutionResult, buffer),
	}
}

// StaticStream yields the given results and then io.EOF.
func StaticStream(results ...*subscription.ExecutionResult) *Stream {
	stream := NewStream(len(results))
	for _, result := range results {
		stream.Push(result)
	}
	stream.Finish(nil)
	return stream
}

func (s *Stream) Push(result *subscription.ExecutionResult) {
	s.results <- result
}

// Finish ends the stream. A nil err ends it with io.EOF.
func (s *Stream) Finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.results)
	})
}

func (s *Stream) Next(ctx context.Context) (*subscription.ExecutionResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result, ok := <-s.results:
		if ok {
			return result, nil
		}
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
}

func (s *Stream) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Stream) Closed() bool {
	return s.closed.Load()
}

type MessageKind string

const (
	KindData     MessageKind = "data"
	KindError    MessageKind = "error"
	KindComplete MessageKind = "complete"
)

type RecordedMessage struct {
	Kind   MessageKind
	ID     string
	Result *subscription.ExecutionResult
	Errors subscription.RequestErrors
}

// Recorder is a subscription.MessageWriter keeping every written message.
// OnWrite, when set, runs before a message is recorded and may block or fail
// the write.
type Recorder struct {
	OnWrite func(ctx context.Context, message RecordedMessage) error

	mu       sync.Mutex
	messages []RecordedMessage
}

func (r *Recorder) WriteData(ctx context.Context, id string, result *subscription.ExecutionResult) error {
	return r.record(ctx, RecordedMessage{Kind: KindData, ID: id, Result: result})
}

func (r *Recorder) WriteError(ctx context.Context, id string, errors subscription.RequestErrors) error {
	return r.record(ctx, RecordedMessage{Kind: KindError, ID: id, Errors: errors})
}

func (r *Recorder) WriteComplete(ctx context.Context, id string) error {
	return r.record(ctx, RecordedMessage{Kind: KindComplete, ID: id})
}

func (r *Recorder) record(ctx context.Context, message RecordedMessage) error {
	if r.OnWrite != nil {
		if err := r.OnWrite(ctx, message); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Messages() []RecordedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// Kinds returns the kinds of all messages written for id, in order.
func (r *Recorder) Kinds(id string) []MessageKind {
	var kinds []MessageKind
	for _, message := range r.Messages() {
		if message.ID == id {
			kinds = append(kinds, message.Kind)
		}
	}
	return kinds
}
