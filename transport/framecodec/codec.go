// Package framecodec is the Component A boundary of the transport: an
// abstract reader/writer of HTTP/2 frames. It is bit-exact with RFC 7540
// because it is a thin adapter over golang.org/x/net/http2, not a
// reimplementation of framing.
package framecodec

import (
	"golang.org/x/net/http2"
)

// Reader exposes a blocking "next frame" operation. The Frame Dispatcher
// loops calling ReadFrame until it returns io.EOF (peer closed cleanly) or
// any other error (transport-fatal).
type Reader interface {
	ReadFrame() (http2.Frame, error)
}

// Writer exposes typed send operations for every frame kind the transport
// emits. Implementations write synchronously to the underlying connection;
// the Write Queue above this layer is what gives callers a completion
// handle and serializes concurrent submissions.
type Writer interface {
	WriteData(streamID uint32, endStream bool, data []byte) error
	WriteHeaders(streamID uint32, headerBlock []byte, endStream, endHeaders bool) error
	WriteRSTStream(streamID uint32, code http2.ErrCode) error
	WriteSettings(settings ...http2.Setting) error
	WriteSettingsAck() error
	WritePing(ack bool, payload [8]byte) error
	WriteGoAway(lastStreamID uint32, code http2.ErrCode, debugData []byte) error
	WriteWindowUpdate(streamID, increment uint32) error
	Flush() error
}

// Codec is a full-duplex frame codec bound to one connection.
type Codec interface {
	Reader
	Writer
}

// HeaderField mirrors hpack.HeaderField without forcing every caller of
// this package to import hpack directly.
type HeaderField struct {
	Name, Value string
	Sensitive   bool
}
