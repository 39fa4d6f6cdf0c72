package subscription

import (
	"context"
	"sort"
	"sync"

	"github.com/jensneuse/abstractlogger"
)

type RegistryOptions struct {
	Logger      abstractlogger.Logger
	Hooks       Hooks
	Interceptor ResultInterceptor
	// SendContext is used when sending subscription items. It defaults to the
	// context the registry was created with.
	SendContext context.Context
}

// OperationRegistry holds the running operations of one connection, keyed by
// the client supplied operation id. At most one operation per id is running.
type OperationRegistry struct {
	logger      abstractlogger.Logger
	writer      MessageWriter
	executor    Executor
	hooks       Hooks
	interceptor ResultInterceptor
	sendCtx     context.Context

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	operations map[string]*operation
	closed     bool
	wg         sync.WaitGroup
}

// NewOperationRegistry creates a registry whose lifetime is bound to ctx.
func NewOperationRegistry(ctx context.Context, writer MessageWriter, executor Executor, options RegistryOptions) *OperationRegistry {
	if options.Logger == nil {
		options.Logger = abstractlogger.NoopLogger
	}
	if options.SendContext == nil {
		options.SendContext = ctx
	}

	lifetime, cancel := context.WithCancel(ctx)
	return &OperationRegistry{
		logger:      options.Logger,
		writer:      writer,
		executor:    executor,
		hooks:       options.Hooks,
		interceptor: options.Interceptor,
		sendCtx:     options.SendContext,
		ctx:         lifetime,
		cancel:      cancel,
		operations:  make(map[string]*operation),
	}
}

// Register starts a new operation for id. It returns false without touching
// the running operation if id is already registered.
func (r *OperationRegistry) Register(id string, request *Request) (bool, error) {
	if id == "" {
		return false, ErrEmptyOperationID
	}
	if request == nil {
		return false, ErrNilRequest
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, ErrRegistryClosed
	}
	if _, exists := r.operations[id]; exists {
		return false, nil
	}

	op := newOperation(r, id, request)
	r.operations[id] = op

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		<-op.Done()
		r.remove(id, op)
	}()
	go func() {
		defer r.wg.Done()
		op.run()
	}()

	r.logger.Debug("subscription.OperationRegistry.Register",
		abstractlogger.String("id", id),
	)
	return true, nil
}

// Unregister cancels and removes the operation for id. It reports whether an
// operation was removed.
func (r *OperationRegistry) Unregister(id string) bool {
	r.mu.Lock()
	op, ok := r.operations[id]
	if ok {
		delete(r.operations, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	op.cancel()

	r.logger.Debug("subscription.OperationRegistry.Unregister",
		abstractlogger.String("id", id),
	)
	return true
}

// remove is the completion path. A newer operation registered under the same
// id is left alone.
func (r *OperationRegistry) remove(id string, op *operation) {
	r.mu.Lock()
	if current, ok := r.operations[id]; ok && current == op {
		delete(r.operations, id)
	}
	r.mu.Unlock()
	op.cancel()
}

func (r *OperationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.operations)
}

// IDs returns the sorted ids of all registered operations.
func (r *OperationRegistry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.operations))
	for id := range r.operations {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Close cancels the registry lifetime and removes every operation. Further
// registrations fail with ErrRegistryClosed. Close does not wait for the
// operations to return, use Wait for that.
func (r *OperationRegistry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	operations := r.operations
	r.operations = make(map[string]*operation)
	r.mu.Unlock()

	r.cancel()
	for _, op := range operations {
		op.cancel()
	}

	r.logger.Debug("subscription.OperationRegistry.Close",
		abstractlogger.Int("operations", len(operations)),
	)
}

// Wait blocks until every operation goroutine returned.
func (r *OperationRegistry) Wait() {
	r.wg.Wait()
}

// Context returns the registry lifetime.
func (r *OperationRegistry) Context() context.Context {
	return r.ctx
}
