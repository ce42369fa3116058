package transport

import (
	"errors"
	"io"
	"net"
	"strings"
)

// closeNotifyFailure is the message Go's net package uses when a TLS peer
// closed the connection without completing the close_notify alert — not an
// error worth tearing the RPC down any differently than a clean EOF.
const closeNotifyFailure = "tls: failed to send closeNotify alert (but connection was closed anyway)"

// isGracefulClose reports whether err is one of the handful of ways a
// socket read/write surfaces "the peer is gone" without actually
// indicating a protocol or network failure: read reached EOF, the local
// side already closed the connection, or TLS couldn't finish its closing
// handshake. The Frame Dispatcher's reader loop (§4.F) uses this to decide
// whether a read failure is a normal end-of-stream or transport-fatal.
func isGracefulClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), closeNotifyFailure)
}
