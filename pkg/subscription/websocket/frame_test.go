package websocket

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func legacyStream(messages ...string) []byte {
	var buf bytes.Buffer
	for _, message := range messages {
		buf.WriteString(message)
		buf.WriteByte(GraphQLWSDelimiter)
	}
	return buf.Bytes()
}

// processChunks feeds chunks through a pipe into a processor and returns the
// frames it produced.
func processChunks(t *testing.T, protocol Protocol, chunks ...Segment) []string {
	t.Helper()

	pipe := NewFramePipe(2)
	handler := &collectingHandler{}
	processor := NewFrameProcessor(pipe, protocol, handler)

	done := make(chan error, 1)
	go func() {
		done <- processor.Run(context.Background())
	}()

	for _, chunk := range chunks {
		_, err := pipe.Write(chunk.Data)
		require.NoError(t, err)
		if chunk.Boundary {
			pipe.MarkBoundary()
		}
		require.NoError(t, pipe.Flush())
	}
	pipe.CompleteWriter()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		require.FailNow(t, "processor did not finish")
	}
	return handler.collected()
}

func TestFrameProcessor_Reassembly(t *testing.T) {
	messages := []string{
		`{"type":"connection_init"}`,
		`{"id":"1","type":"start","payload":{"query":"subscription { counter }"}}`,
		`{"id":"1","type":"stop"}`,
	}
	stream := legacyStream(messages...)
	protocol := NewGraphQLWSProtocol()

	t.Run("unsplit", func(t *testing.T) {
		assert.Equal(t, messages, processChunks(t, protocol, Segment{Data: stream}))
	})

	t.Run("split at every position", func(t *testing.T) {
		for i := 0; i <= len(stream); i++ {
			frames := processChunks(t, protocol, Segment{Data: stream[:i]}, Segment{Data: stream[i:]})
			require.Equal(t, messages, frames, "split at %d", i)
		}
	})

	t.Run("split at every position twice", func(t *testing.T) {
		for i := 0; i <= len(stream); i += 3 {
			for j := i; j <= len(stream); j += 5 {
				frames := processChunks(t, protocol,
					Segment{Data: stream[:i]},
					Segment{Data: stream[i:j]},
					Segment{Data: stream[j:]},
				)
				require.Equal(t, messages, frames, "split at %d and %d", i, j)
			}
		}
	})

	t.Run("one byte at a time", func(t *testing.T) {
		chunks := make([]Segment, len(stream))
		for i := range stream {
			chunks[i] = Segment{Data: stream[i : i+1]}
		}
		assert.Equal(t, messages, processChunks(t, protocol, chunks...))
	})

	t.Run("keeps a trailing partial frame", func(t *testing.T) {
		partial := append(legacyStream(messages[0]), []byte(`{"type":"conn`)...)
		assert.Equal(t, messages[:1], processChunks(t, protocol, Segment{Data: partial}))
	})
}

func TestFrameProcessor_TransportFramed(t *testing.T) {
	protocol := NewGraphQLTransportWSProtocol()
	first := `{"type":"connection_init"}`
	second := `{"type":"ping"}`

	t.Run("frames end at boundaries only", func(t *testing.T) {
		frames := processChunks(t, protocol,
			Segment{Data: []byte(first[:5])},
			Segment{Data: []byte(first[5:]), Boundary: true},
			Segment{Data: []byte(second), Boundary: true},
		)
		assert.Equal(t, []string{first, second}, frames)
	})

	t.Run("drops an unterminated message", func(t *testing.T) {
		frames := processChunks(t, protocol,
			Segment{Data: []byte(first), Boundary: true},
			Segment{Data: []byte(second)},
		)
		assert.Equal(t, []string{first}, frames)
	})
}

func TestFrameProcessor_Run(t *testing.T) {
	t.Run("should return handler errors", func(t *testing.T) {
		pipe := NewFramePipe(1)
		handler := &collectingHandler{err: ErrUnhandledMessage}
		processor := NewFrameProcessor(pipe, NewGraphQLWSProtocol(), handler)

		_, err := pipe.Write(legacyStream(`{"type":"ka"}`))
		require.NoError(t, err)
		require.NoError(t, pipe.Flush())

		assert.ErrorIs(t, processor.Run(context.Background()), ErrUnhandledMessage)

		_, err = pipe.Write([]byte("more"))
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	})

	t.Run("should stop on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		processor := NewFrameProcessor(NewFramePipe(1), NewGraphQLWSProtocol(), &collectingHandler{})
		assert.NoError(t, processor.Run(ctx))
	})
}

func TestFrameReceiver_Run(t *testing.T) {
	t.Run("should delimit every legacy message", func(t *testing.T) {
		transport := newFakeTransport(ProtocolGraphQLWS)
		pipe := NewFramePipe(DefaultPipeCapacity)
		receiver := NewFrameReceiver(transport, NewGraphQLWSProtocol(), pipe, nil)

		transport.sendFromClient(`{"type":"connection_init"}`)
		transport.sendFromClient(`{"type":"ka"}`)
		transport.clientDisconnect()

		require.NoError(t, receiver.Run(context.Background()))

		var received []byte
		for {
			segment, err := pipe.Next(context.Background())
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			received = append(received, segment.Data...)
		}
		assert.Equal(t, string(legacyStream(`{"type":"connection_init"}`, `{"type":"ka"}`)), string(received))
	})

	t.Run("should mark boundaries of large transport framed messages", func(t *testing.T) {
		transport := newFakeTransport(ProtocolGraphQLTransportWS)
		protocol := NewGraphQLTransportWSProtocol()
		pipe := NewFramePipe(DefaultPipeCapacity)
		receiver := NewFrameReceiver(transport, protocol, pipe, abstractlogger.NoopLogger)
		handler := &collectingHandler{}
		processor := NewFrameProcessor(pipe, protocol, handler)

		large := `{"type":"ping","payload":{"blob":"` + strings.Repeat("x", 3*pipeFlushThreshold) + `"}}`
		transport.sendFromClient(large)
		transport.sendFromClient(`{"type":"pong"}`)
		transport.clientDisconnect()

		done := make(chan error, 1)
		go func() {
			done <- processor.Run(context.Background())
		}()
		require.NoError(t, receiver.Run(context.Background()))
		require.NoError(t, <-done)

		assert.Equal(t, []string{large, `{"type":"pong"}`}, handler.collected())
	})

	t.Run("should stop when the connection is closed", func(t *testing.T) {
		transport := newFakeTransport(ProtocolGraphQLWS)
		pipe := NewFramePipe(DefaultPipeCapacity)
		receiver := NewFrameReceiver(transport, NewGraphQLWSProtocol(), pipe, abstractlogger.NoopLogger)

		done := make(chan error, 1)
		go func() {
			done <- receiver.Run(context.Background())
		}()
		require.NoError(t, transport.Close(CloseCodeNormalClosure, ""))

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			require.FailNow(t, "receiver did not stop")
		}
		_, err := pipe.Next(context.Background())
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("should stop when the processor is gone", func(t *testing.T) {
		transport := newFakeTransport(ProtocolGraphQLWS)
		pipe := NewFramePipe(DefaultPipeCapacity)
		receiver := NewFrameReceiver(transport, NewGraphQLWSProtocol(), pipe, abstractlogger.NoopLogger)
		pipe.CompleteReader()

		transport.sendFromClient(`{"type":"ka"}`)
		assert.NoError(t, receiver.Run(context.Background()))
	})
}

func TestFramePipe(t *testing.T) {
	t.Run("flush blocks while full and fails once the reader completed", func(t *testing.T) {
		pipe := NewFramePipe(1)
		_, err := pipe.Write([]byte("a"))
		require.NoError(t, err)
		require.NoError(t, pipe.Flush())

		_, err = pipe.Write([]byte("b"))
		require.NoError(t, err)
		flushed := make(chan error, 1)
		go func() {
			flushed <- pipe.Flush()
		}()

		select {
		case <-flushed:
			require.FailNow(t, "flush did not block")
		case <-time.After(20 * time.Millisecond):
		}

		pipe.CompleteReader()
		assert.ErrorIs(t, <-flushed, io.ErrClosedPipe)
	})

	t.Run("reader drains before end of stream", func(t *testing.T) {
		pipe := NewFramePipe(4)
		_, _ = pipe.Write([]byte("a"))
		require.NoError(t, pipe.Flush())
		pipe.MarkBoundary()
		require.NoError(t, pipe.Flush())
		pipe.CompleteWriter()
		pipe.CompleteWriter()

		segment, err := pipe.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Segment{Data: []byte("a")}, segment)

		segment, err = pipe.Next(context.Background())
		require.NoError(t, err)
		assert.True(t, segment.Boundary)
		assert.Empty(t, segment.Data)

		_, err = pipe.Next(context.Background())
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("empty flush sends nothing", func(t *testing.T) {
		pipe := NewFramePipe(1)
		require.NoError(t, pipe.Flush())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := pipe.Next(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("write flushes large chunks early", func(t *testing.T) {
		pipe := NewFramePipe(1)
		_, err := pipe.Write(bytes.Repeat([]byte("x"), pipeFlushThreshold))
		require.NoError(t, err)

		segment, err := pipe.Next(context.Background())
		require.NoError(t, err)
		assert.Len(t, segment.Data, pipeFlushThreshold)
		assert.False(t, segment.Boundary)
	})
}
