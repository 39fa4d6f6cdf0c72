package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

type recordingTarget struct {
	closed atomic.Bool

	mu    sync.Mutex
	sends [][]byte
}

func (r *recordingTarget) Send(_ context.Context, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, data)
}

func (r *recordingTarget) IsClosed() bool {
	return r.closed.Load()
}

func (r *recordingTarget) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

func TestKeepAliveJob_Run(t *testing.T) {
	t.Run("should send periodically", func(t *testing.T) {
		target := &recordingTarget{}
		job := NewKeepAliveJob(target, []byte(`{"type":"ka"}`), 5*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- job.Run(ctx)
		}()

		assert.Eventually(t, func() bool {
			return target.count() >= 3
		}, waitFor, tick)
		cancel()
		assert.NoError(t, <-done)

		target.mu.Lock()
		defer target.mu.Unlock()
		assert.Equal(t, `{"type":"ka"}`, string(target.sends[0]))
	})

	t.Run("should stop once the connection is closed", func(t *testing.T) {
		target := &recordingTarget{}
		target.closed.Store(true)
		job := NewKeepAliveJob(target, []byte(`{"type":"ka"}`), time.Millisecond)

		done := make(chan error, 1)
		go func() {
			done <- job.Run(context.Background())
		}()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			assert.FailNow(t, "keep alive did not stop")
		}
		assert.Zero(t, target.count())
	})

	t.Run("should default the interval", func(t *testing.T) {
		job := NewKeepAliveJob(&recordingTarget{}, nil, 0)
		assert.Equal(t, DefaultKeepAliveInterval, job.interval)
	})
}
