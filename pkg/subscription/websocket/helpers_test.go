package websocket

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/wundergraph/graphql-ws-transport/pkg/subscription"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

// fakeTransport is an in-memory Transport. Every received chunk is one message.
type fakeTransport struct {
	subprotocol string
	inbound     chan []byte
	outbound    chan []byte
	done        chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once

	mu          sync.Mutex
	closeCalls  int
	closeCode   CloseCode
	closeReason string
	// onClose runs inside the first Close call.
	onClose func()
}

func newFakeTransport(subprotocol string) *fakeTransport {
	return &fakeTransport{
		subprotocol: subprotocol,
		inbound:     make(chan []byte, 64),
		outbound:    make(chan []byte, 1024),
		done:        make(chan struct{}),
	}
}

func (f *fakeTransport) Subprotocol() string {
	return f.subprotocol
}

func (f *fakeTransport) Receive(w io.Writer) error {
	select {
	case <-f.done:
		return ErrTransportClosed
	case data, ok := <-f.inbound:
		if !ok {
			f.closed.Store(true)
			return ErrTransportClosed
		}
		_, err := w.Write(data)
		return err
	}
}

// ReceiveInto lets the fake feed a FrameReceiver directly.
func (f *fakeTransport) ReceiveInto(w io.Writer) error {
	return f.Receive(w)
}

func (f *fakeTransport) Write(data []byte) error {
	if f.closed.Load() {
		return ErrTransportClosed
	}
	out := make([]byte, len(data))
	copy(out, data)
	f.outbound <- out
	return nil
}

func (f *fakeTransport) Close(code CloseCode, reason string) error {
	f.mu.Lock()
	f.closeCalls++
	first := f.closeCalls == 1
	if first {
		f.closeCode = code
		f.closeReason = reason
	}
	onClose := f.onClose
	f.mu.Unlock()

	if first && onClose != nil {
		onClose()
	}
	f.closed.Store(true)
	f.closeOnce.Do(func() {
		close(f.done)
	})
	return nil
}

func (f *fakeTransport) IsClosed() bool {
	return f.closed.Load()
}

func (f *fakeTransport) sendFromClient(message string) {
	f.inbound <- []byte(message)
}

// clientDisconnect ends the inbound stream like a client dropping the socket.
func (f *fakeTransport) clientDisconnect() {
	close(f.inbound)
}

func (f *fakeTransport) closeStatus() (int, CloseCode, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls, f.closeCode, f.closeReason
}

type testMessage struct {
	Id      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (f *fakeTransport) readMessageToClient(t *testing.T) testMessage {
	t.Helper()
	select {
	case data := <-f.outbound:
		var message testMessage
		require.NoError(t, json.Unmarshal(data, &message), "message: %s", string(data))
		return message
	case <-time.After(waitFor):
		require.FailNow(t, "timed out waiting for a message to the client")
		return testMessage{}
	}
}

// readMessageOfType skips keep-alive messages.
func (f *fakeTransport) readMessageOfType(t *testing.T, typ string) testMessage {
	t.Helper()
	for {
		message := f.readMessageToClient(t)
		if message.Type == GraphQLWSMessageTypeConnectionKeepAlive && typ != GraphQLWSMessageTypeConnectionKeepAlive {
			continue
		}
		require.Equal(t, typ, message.Type, "payload: %s", string(message.Payload))
		return message
	}
}

func (f *fakeTransport) assertNoMessage(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case data := <-f.outbound:
		require.FailNow(t, "unexpected message to the client", string(data))
	case <-time.After(within):
	}
}

// collectingHandler records every frame handed to it.
type collectingHandler struct {
	mu     sync.Mutex
	frames []string
	err    error
}

func (c *collectingHandler) Process(_ context.Context, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(frame))
	return c.err
}

func (c *collectingHandler) collected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	copy(out, c.frames)
	return out
}

// newOpenConnection opens a connection over a fake transport. It is closed
// when the test ends.
func newOpenConnection(t *testing.T, subprotocol string, executor subscription.Executor) (*Connection, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport(subprotocol)
	conn := NewConnection(context.Background(), transport, executor, ConnectionOptions{})
	require.True(t, conn.Open())
	t.Cleanup(func() {
		_ = conn.Close(CloseCodeNormalClosure, "")
	})
	return conn, transport
}
