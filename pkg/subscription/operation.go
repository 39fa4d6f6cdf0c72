package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
)

// operation executes one request and writes its results. It is owned by the
// registry and removes itself from it once done is closed.
type operation struct {
	id       string
	request  *Request
	registry *OperationRegistry

	ctx    context.Context
	cancel context.CancelFunc

	completed atomic.Bool
	done      chan struct{}
	doneOnce  sync.Once
}

func newOperation(registry *OperationRegistry, id string, request *Request) *operation {
	ctx, cancel := context.WithCancel(registry.ctx)
	return &operation{
		id:       id,
		request:  request,
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (o *operation) Done() <-chan struct{} {
	return o.done
}

func (o *operation) IsCompleted() bool {
	return o.completed.Load()
}

func (o *operation) run() {
	defer o.finish()

	if err := o.execute(); err != nil {
		o.registry.logger.Error("subscription.operation.run: operation failed",
			abstractlogger.String("id", o.id),
			abstractlogger.Error(err),
		)
	}
}

func (o *operation) execute() (err error) {
	completionAttempted := false

	defer func() {
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) && o.ctx.Err() != nil {
			err = nil
			return
		}
		if completionAttempted {
			return
		}
		if writeErr := o.registry.writer.WriteError(o.ctx, o.id, RequestErrorsFromError(err)); writeErr != nil {
			o.registry.logger.Debug("subscription.operation.execute: could not send error",
				abstractlogger.String("id", o.id),
				abstractlogger.Error(writeErr),
			)
		}
	}()

	if hook := o.registry.hooks.OnBeforeStart; hook != nil {
		if err = hook(o.ctx, o.id, o.request); err != nil {
			return fmt.Errorf("on before start hook failed: %w", err)
		}
	}

	response, err := o.registry.executor.Execute(o.ctx, o.request)
	if err != nil {
		return err
	}

	switch {
	case response == nil:
		return ErrEmptyResponse
	case response.Stream != nil:
		err = o.stream(response.Stream)
	case response.Result != nil:
		err = o.single(response.Result)
	default:
		return ErrEmptyResponse
	}
	if err != nil {
		return err
	}

	completionAttempted = true
	if o.ctx.Err() != nil {
		return nil
	}
	return o.registry.writer.WriteComplete(o.ctx, o.id)
}

func (o *operation) single(result *ExecutionResult) error {
	defer result.Release()

	result, err := o.intercept(result)
	if err != nil {
		return err
	}
	defer result.Release()
	if result.HasOnlyErrors() {
		return o.registry.writer.WriteError(o.ctx, o.id, result.Errors)
	}
	return o.registry.writer.WriteData(o.ctx, o.id, result)
}

// stream forwards every item with the registry send context, so stopping
// this operation never cuts a write in flight on the shared connection.
func (o *operation) stream(stream ResultStream) error {
	defer func() {
		if err := stream.Close(); err != nil {
			o.registry.logger.Debug("subscription.operation.stream: closing stream",
				abstractlogger.String("id", o.id),
				abstractlogger.Error(err),
			)
		}
	}()

	for {
		if err := o.ctx.Err(); err != nil {
			return err
		}
		result, err := stream.Next(o.ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if result == nil {
			continue
		}
		err = o.sendItem(result)
		result.Release()
		if err != nil {
			return err
		}
	}
}

func (o *operation) sendItem(result *ExecutionResult) error {
	result, err := o.intercept(result)
	if err != nil {
		return err
	}
	defer result.Release()
	return o.registry.writer.WriteData(o.registry.sendCtx, o.id, result)
}

func (o *operation) intercept(result *ExecutionResult) (*ExecutionResult, error) {
	if o.registry.interceptor == nil {
		return result, nil
	}
	intercepted, err := o.registry.interceptor.InterceptResult(o.ctx, o.id, result)
	if err != nil {
		return nil, err
	}
	if intercepted == nil {
		return result, nil
	}
	return intercepted, nil
}

func (o *operation) finish() {
	o.runOnComplete()
	o.completed.Store(true)
	o.doneOnce.Do(func() {
		close(o.done)
	})
}

func (o *operation) runOnComplete() {
	hook := o.registry.hooks.OnComplete
	if hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.registry.logger.Error("subscription.operation.runOnComplete: hook panicked",
				abstractlogger.String("id", o.id),
				abstractlogger.Any("recovered", r),
			)
		}
	}()
	if err := hook(context.WithoutCancel(o.ctx), o.id); err != nil {
		o.registry.logger.Debug("subscription.operation.runOnComplete: hook failed",
			abstractlogger.String("id", o.id),
			abstractlogger.Error(err),
		)
	}
}
