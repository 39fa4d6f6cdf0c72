package websocket

import (
	"context"
	"errors"
	"io"

	"github.com/jensneuse/abstractlogger"
)

type frameSource interface {
	ReceiveInto(w io.Writer) error
	IsClosed() bool
}

type frameHandler interface {
	Process(ctx context.Context, frame []byte) error
}

// FrameReceiver pumps messages from the connection into the pipe.
type FrameReceiver struct {
	source   frameSource
	protocol Protocol
	pipe     *FramePipe
	logger   abstractlogger.Logger
}

func NewFrameReceiver(source frameSource, protocol Protocol, pipe *FramePipe, logger abstractlogger.Logger) *FrameReceiver {
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &FrameReceiver{
		source:   source,
		protocol: protocol,
		pipe:     pipe,
		logger:   logger,
	}
}

// Run receives until the connection closes or ctx is done. A closed
// connection or a cancelled ctx is no error.
func (r *FrameReceiver) Run(ctx context.Context) error {
	defer r.pipe.CompleteWriter()

	for ctx.Err() == nil && !r.source.IsClosed() {
		err := r.source.ReceiveInto(r.pipe)
		if err == nil {
			err = r.protocol.EndFrame(r.pipe)
		}
		if err == nil {
			err = r.pipe.Flush()
		}
		if err == nil {
			continue
		}
		if isShutdown(ctx, err) {
			r.logger.Debug("websocket.FrameReceiver.Run: stopped receiving",
				abstractlogger.Error(err),
			)
			return nil
		}
		return err
	}
	return nil
}

func isShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, ErrTransportClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, context.Canceled)
}

// FrameProcessor reads the pipe, reassembles frames and hands every complete
// frame to the pipeline.
type FrameProcessor struct {
	pipe     *FramePipe
	protocol Protocol
	handler  frameHandler
	buf      []byte
}

func NewFrameProcessor(pipe *FramePipe, protocol Protocol, handler frameHandler) *FrameProcessor {
	return &FrameProcessor{
		pipe:     pipe,
		protocol: protocol,
		handler:  handler,
	}
}

// Run returns nil once the pipe is drained or ctx is done. Errors of the
// handler are returned unchanged.
func (p *FrameProcessor) Run(ctx context.Context) error {
	defer p.pipe.CompleteReader()

	for {
		segment, err := p.pipe.Next(ctx)
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		p.buf = append(p.buf, segment.Data...)
		if err := p.drain(ctx, segment.Boundary); err != nil {
			return err
		}
	}
}

// drain processes every complete frame in buf and keeps the trailing
// partial frame.
func (p *FrameProcessor) drain(ctx context.Context, atBoundary bool) error {
	consumed := 0
	for consumed < len(p.buf) {
		advance, frame := p.protocol.Split(p.buf[consumed:], atBoundary)
		if advance == 0 {
			break
		}
		consumed += advance
		if err := p.handler.Process(ctx, frame); err != nil {
			return err
		}
	}

	n := copy(p.buf, p.buf[consumed:])
	p.buf = p.buf[:n]
	return nil
}
