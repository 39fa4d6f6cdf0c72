package websocket

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

var (
	// ErrTransportClosed is returned once the socket is closed by either side.
	ErrTransportClosed = errors.New("transport is closed")
	// ErrInvalidFrame is returned when the client violates websocket framing.
	ErrInvalidFrame = errors.New("invalid websocket frame")
)

// closeWriteTimeout bounds writing the close frame to a slow client.
const closeWriteTimeout = time.Second

// Transport is the raw websocket after the upgrade.
type Transport interface {
	// Subprotocol returns the negotiated sub-protocol name.
	Subprotocol() string
	// Receive copies the next data message into w.
	Receive(w io.Writer) error
	// Write sends data as one text message. It is safe for concurrent use.
	Write(data []byte) error
	// Close sends a close frame unless code is CloseCodeNone and closes the
	// socket. It is idempotent.
	Close(code CloseCode, reason string) error
	IsClosed() bool
}

func isClosedConnError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
