package transport

import (
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MethodDescriptor names the RPC being carried. The RPC framework's actual
// method/codec types live outside this module; this is the minimal shape
// the transport needs to build the :path pseudo-header.
type MethodDescriptor struct {
	FullName              string
	ClientSendsOneMessage bool
}

// Header is one wire header pair, pre-HPACK. Metadata semantics (repeated
// keys, binary "-bin" suffix) are the RPC framework's concern; the
// transport only strips the authority-override key and forwards the rest.
type Header struct {
	Name, Value string
}

// AuthorityOverrideMetadataKey is the reserved application metadata key
// that, when present, replaces the connection's default :authority
// pseudo-header for that one stream.
const AuthorityOverrideMetadataKey = ":authority-override"

// Stream is one RPC call multiplexed over the shared connection.
type Stream struct {
	t       *Transport
	method  *MethodDescriptor
	headers []Header

	mu        sync.Mutex
	id        uint32 // 0 while pending admission
	admitted  bool
	outWindow int32 // outbound flow-control credit for this stream
	pending   []pendingChunk

	inUnacked    int32 // inbound bytes read but not yet WINDOW_UPDATE'd
	inBuf        []byte
	inBufLimit   int
	headersSeen  bool
	halfClosedRX bool
	halfClosedTX bool

	done       chan struct{}
	closedOnce sync.Once
	status     *status.Status
}

func newStream(t *Transport, method *MethodDescriptor, headers []Header, inBufLimit int, initialWindow int32) *Stream {
	return &Stream{
		t:          t,
		method:     method,
		headers:    headers,
		outWindow:  initialWindow,
		inBufLimit: inBufLimit,
		done:       make(chan struct{}),
	}
}

// ID returns the assigned HTTP/2 stream id, or 0 if the stream is still
// pending admission.
func (s *Stream) ID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Done is closed once the stream has a terminal status.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Status returns the terminal status, or nil if the stream is still active.
func (s *Stream) Status() *status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// finish assigns the terminal status exactly once and unblocks Done().
// Callers must not hold t.mu.
func (s *Stream) finish(st *status.Status) {
	s.closedOnce.Do(func() {
		s.mu.Lock()
		s.status = st
		s.mu.Unlock()
		close(s.done)
	})
}

// markHalfClosedRX records that the peer has finished sending (end_stream
// seen on DATA or HEADERS) and reports whether the local side was already
// half-closed too, meaning the stream is now fully done.
func (s *Stream) markHalfClosedRX() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halfClosedRX = true
	return s.halfClosedTX
}

// markHalfClosedTX is the transmit-side counterpart of markHalfClosedRX.
func (s *Stream) markHalfClosedTX() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halfClosedTX = true
	return s.halfClosedRX
}

// Write submits one DATA chunk for this stream via the transport's write
// queue, subject to outbound flow control.
func (s *Stream) Write(p []byte, endStream bool) error {
	return s.t.writeData(s, p, endStream)
}

// RST requests that the local side abort the stream with the given error
// code, informing the peer.
func (s *Stream) RST(code uint32) error {
	return s.t.resetStream(s, code)
}

func (s *Stream) appendInbound(b []byte) *status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inBuf)+len(b) > s.inBufLimit {
		return status.New(codes.ResourceExhausted, "received message larger than max")
	}
	s.inBuf = append(s.inBuf, b...)
	return nil
}

// Read drains and clears the buffered inbound message bytes accumulated so
// far. The RPC framework's message codec is expected to call this as
// DATA frames accumulate and HEADERS(end_stream) closes the read side.
func (s *Stream) Read() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.inBuf
	s.inBuf = nil
	return b
}
