package websocket

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
)

// GorillaTransport is a Transport for a connection upgraded with
// gorilla/websocket. Control frames are answered by gorilla itself.
type GorillaTransport struct {
	logger abstractlogger.Logger
	conn   *gorillaws.Conn

	// writeMu is required, gorilla allows one concurrent writer only.
	writeMu sync.Mutex

	closed     atomic.Bool
	peerClosed atomic.Bool
}

func NewGorillaTransport(conn *gorillaws.Conn, logger abstractlogger.Logger) *GorillaTransport {
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &GorillaTransport{
		logger: logger,
		conn:   conn,
	}
}

func (t *GorillaTransport) Subprotocol() string {
	return t.conn.Subprotocol()
}

func (t *GorillaTransport) Receive(w io.Writer) error {
	if t.IsClosed() {
		return ErrTransportClosed
	}

	_, reader, err := t.conn.NextReader()
	if err != nil {
		return t.readError(err)
	}
	if _, err := io.Copy(w, reader); err != nil {
		if errors.Is(err, io.ErrClosedPipe) && !t.IsClosed() {
			return err
		}
		return t.readError(err)
	}
	return nil
}

func (t *GorillaTransport) readError(err error) error {
	var closeErr *gorillaws.CloseError
	if errors.As(err, &closeErr) {
		t.peerClosed.Store(true)
		t.logger.Debug("websocket.GorillaTransport.Receive: client closed connection",
			abstractlogger.Int("code", closeErr.Code),
			abstractlogger.String("reason", closeErr.Text),
		)
		return ErrTransportClosed
	}
	if isClosedConnError(err) || t.closed.Load() {
		t.peerClosed.Store(true)
		return ErrTransportClosed
	}
	if errors.Is(err, gorillaws.ErrReadLimit) {
		return fmt.Errorf("%w: %s", ErrInvalidFrame, err)
	}

	t.logger.Error("websocket.GorillaTransport.Receive: after reading from client",
		abstractlogger.Error(err),
	)
	return err
}

func (t *GorillaTransport) Write(data []byte) error {
	if t.IsClosed() {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	err := t.conn.WriteMessage(gorillaws.TextMessage, data)
	t.writeMu.Unlock()

	if err == nil {
		return nil
	}
	if errors.Is(err, gorillaws.ErrCloseSent) || isClosedConnError(err) || t.IsClosed() {
		t.peerClosed.Store(true)
		return ErrTransportClosed
	}
	t.logger.Error("websocket.GorillaTransport.Write: after writing to client",
		abstractlogger.Error(err),
		abstractlogger.ByteString("message", data),
	)
	return err
}

func (t *GorillaTransport) Close(code CloseCode, reason string) error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	if code != CloseCodeNone && !t.peerClosed.Load() {
		message := gorillaws.FormatCloseMessage(int(code), truncateCloseReason(reason))
		if err := t.conn.WriteControl(gorillaws.CloseMessage, message, time.Now().Add(closeWriteTimeout)); err != nil {
			t.logger.Debug("websocket.GorillaTransport.Close: writing close frame",
				abstractlogger.Error(err),
			)
		}
	}

	if err := t.conn.Close(); err != nil && !isClosedConnError(err) {
		return err
	}
	return nil
}

func (t *GorillaTransport) IsClosed() bool {
	return t.closed.Load() || t.peerClosed.Load()
}

// Interface Guard
var _ Transport = (*GorillaTransport)(nil)
