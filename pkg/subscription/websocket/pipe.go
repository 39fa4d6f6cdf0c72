package websocket

import (
	"context"
	"io"
	"sync"
)

const (
	DefaultPipeCapacity = 16
	pipeFlushThreshold  = 4 * 1024
)

// Segment is a chunk of received bytes. Boundary is set when the chunk ends
// a message of a transport framed protocol.
type Segment struct {
	Data     []byte
	Boundary bool
}

// FramePipe is a bounded byte stream between one writer, the FrameReceiver,
// and one reader, the FrameProcessor. The writer side is not safe for
// concurrent use.
type FramePipe struct {
	segments chan Segment
	// readerDone is closed by CompleteReader.
	readerDone chan struct{}

	pending  []byte
	boundary bool

	writerOnce sync.Once
	readerOnce sync.Once
}

func NewFramePipe(capacity int) *FramePipe {
	if capacity <= 0 {
		capacity = DefaultPipeCapacity
	}
	return &FramePipe{
		segments:   make(chan Segment, capacity),
		readerDone: make(chan struct{}),
	}
}

// Write buffers b. Large messages are handed to the reader in chunks before
// the message is complete.
func (p *FramePipe) Write(b []byte) (int, error) {
	select {
	case <-p.readerDone:
		return 0, io.ErrClosedPipe
	default:
	}

	p.pending = append(p.pending, b...)
	if len(p.pending) >= pipeFlushThreshold {
		if err := p.flush(false); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// MarkBoundary marks the end of a message. It takes effect on the next Flush.
func (p *FramePipe) MarkBoundary() {
	p.boundary = true
}

// Flush hands the buffered bytes to the reader. It blocks while the pipe is
// full and returns io.ErrClosedPipe once the reader completed.
func (p *FramePipe) Flush() error {
	return p.flush(p.boundary)
}

func (p *FramePipe) flush(boundary bool) error {
	if len(p.pending) == 0 && !boundary {
		return nil
	}
	segment := Segment{Data: p.pending, Boundary: boundary}
	p.pending = nil
	p.boundary = false

	select {
	case <-p.readerDone:
		return io.ErrClosedPipe
	default:
	}

	select {
	case p.segments <- segment:
		return nil
	case <-p.readerDone:
		return io.ErrClosedPipe
	}
}

// CompleteWriter signals that no more data will be written.
func (p *FramePipe) CompleteWriter() {
	p.writerOnce.Do(func() {
		close(p.segments)
	})
}

// Next returns the next segment. It returns io.EOF once the writer completed
// and every segment was read.
func (p *FramePipe) Next(ctx context.Context) (Segment, error) {
	select {
	case <-ctx.Done():
		return Segment{}, ctx.Err()
	case segment, ok := <-p.segments:
		if !ok {
			return Segment{}, io.EOF
		}
		return segment, nil
	}
}

// CompleteReader signals that no more data will be read. Pending and future
// writes fail with io.ErrClosedPipe.
func (p *FramePipe) CompleteReader() {
	p.readerOnce.Do(func() {
		close(p.readerDone)
	})
}
