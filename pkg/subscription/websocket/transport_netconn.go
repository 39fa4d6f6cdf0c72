package websocket

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
)

// NetConnTransport is a Transport for a connection upgraded with gobwas/ws.
type NetConnTransport struct {
	logger      abstractlogger.Logger
	conn        net.Conn
	subprotocol string

	reader         *wsutil.Reader
	controlHandler wsutil.FrameHandlerFunc

	// writeMu serializes data frames and control frame replies.
	writeMu sync.Mutex

	closed     atomic.Bool
	peerClosed atomic.Bool
}

type NetConnTransportOptions struct {
	Logger abstractlogger.Logger
	// MaxMessageSize limits a single frame. Zero means no limit.
	MaxMessageSize int64
}

func NewNetConnTransport(conn net.Conn, subprotocol string, options NetConnTransportOptions) *NetConnTransport {
	if options.Logger == nil {
		options.Logger = abstractlogger.NoopLogger
	}

	t := &NetConnTransport{
		logger:      options.Logger,
		conn:        conn,
		subprotocol: subprotocol,
	}
	t.controlHandler = wsutil.ControlFrameHandler(lockedWriter{t: t}, ws.StateServerSide)
	t.reader = &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		MaxFrameSize:   options.MaxMessageSize,
		OnIntermediate: t.controlHandler,
	}
	return t
}

func (t *NetConnTransport) Subprotocol() string {
	return t.subprotocol
}

func (t *NetConnTransport) Receive(w io.Writer) error {
	if t.IsClosed() {
		return ErrTransportClosed
	}

	for {
		hdr, err := t.reader.NextFrame()
		if err != nil {
			return t.readError(err)
		}

		if hdr.OpCode.IsControl() {
			if err := t.controlHandler(hdr, t.reader); err != nil {
				return t.readError(err)
			}
			continue
		}

		if hdr.OpCode != ws.OpText && hdr.OpCode != ws.OpBinary {
			if err := t.reader.Discard(); err != nil {
				return t.readError(err)
			}
			continue
		}

		if _, err := io.Copy(w, t.reader); err != nil {
			if errors.Is(err, io.ErrClosedPipe) && !t.IsClosed() {
				// the pipe reader is gone, the socket is still fine
				return err
			}
			return t.readError(err)
		}
		return nil
	}
}

func (t *NetConnTransport) readError(err error) error {
	var closedErr wsutil.ClosedError
	if errors.As(err, &closedErr) {
		t.peerClosed.Store(true)
		t.logger.Debug("websocket.NetConnTransport.Receive: client closed connection",
			abstractlogger.Any("code", closedErr.Code),
			abstractlogger.String("reason", closedErr.Reason),
		)
		return ErrTransportClosed
	}
	if isClosedConnError(err) || t.closed.Load() {
		t.peerClosed.Store(true)
		return ErrTransportClosed
	}

	var protocolErr ws.ProtocolError
	if errors.As(err, &protocolErr) || errors.Is(err, wsutil.ErrInvalidUTF8) || errors.Is(err, wsutil.ErrFrameTooLarge) {
		return fmt.Errorf("%w: %s", ErrInvalidFrame, err)
	}

	t.logger.Error("websocket.NetConnTransport.Receive: after reading from client",
		abstractlogger.Error(err),
	)
	return err
}

func (t *NetConnTransport) Write(data []byte) error {
	if t.IsClosed() {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	err := wsutil.WriteServerMessage(t.conn, ws.OpText, data)
	t.writeMu.Unlock()

	if err == nil {
		return nil
	}
	if isClosedConnError(err) || t.IsClosed() {
		t.peerClosed.Store(true)
		return ErrTransportClosed
	}
	t.logger.Error("websocket.NetConnTransport.Write: after writing to client",
		abstractlogger.Error(err),
		abstractlogger.ByteString("message", data),
	)
	return err
}

func (t *NetConnTransport) Close(code CloseCode, reason string) error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	if code != CloseCodeNone && !t.peerClosed.Load() {
		// unblocks a concurrent write to a client that stopped reading
		_ = t.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))

		t.writeMu.Lock()
		err := ws.WriteFrame(t.conn, ws.NewCloseFrame(ws.NewCloseFrameBody(
			ws.StatusCode(code), truncateCloseReason(reason),
		)))
		t.writeMu.Unlock()

		if err != nil {
			t.logger.Debug("websocket.NetConnTransport.Close: writing close frame",
				abstractlogger.Error(err),
			)
		}
	}

	t.logger.Debug("websocket.NetConnTransport.Close: before disconnect",
		abstractlogger.String("code", code.String()),
		abstractlogger.String("reason", reason),
	)
	if err := t.conn.Close(); err != nil && !isClosedConnError(err) {
		return err
	}
	return nil
}

func (t *NetConnTransport) IsClosed() bool {
	return t.closed.Load() || t.peerClosed.Load()
}

// lockedWriter lets control frame replies share the data write lock.
type lockedWriter struct {
	t *NetConnTransport
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.t.writeMu.Lock()
	defer w.t.writeMu.Unlock()
	return w.t.conn.Write(p)
}

// Interface Guard
var _ Transport = (*NetConnTransport)(nil)
