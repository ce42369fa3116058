package transport

// DefaultInitialWindowSize is the HTTP/2 default, used until a SETTINGS
// frame from the peer says otherwise.
const DefaultInitialWindowSize = 65535

// outboundFlowController tracks the connection-level and per-stream
// outbound windows described in §4.C. Like streamRegistry, it carries no
// lock of its own: the owning Transport's mutex guards it.
type outboundFlowController struct {
	connWindow      int32
	initialStreamWN int32 // baseline applied to newly created streams, updated by SETTINGS
}

func newOutboundFlowController(initialWindow int32) *outboundFlowController {
	return &outboundFlowController{
		connWindow:      initialWindow,
		initialStreamWN: initialWindow,
	}
}

// pendingChunk holds one queued-but-not-yet-credited outbound DATA write.
type pendingChunk struct {
	data      []byte
	endStream bool
}

// admit computes how many bytes of data can be sent right now for s,
// debiting both windows immediately. Any remainder is left for the caller
// to queue on the stream (via Stream.pending) until more credit arrives.
func (fc *outboundFlowController) admit(s *Stream, data []byte) (toSend, remainder []byte) {
	n := len(data)
	if n > int(s.outWindow) {
		n = int(s.outWindow)
	}
	if n > int(fc.connWindow) {
		n = int(fc.connWindow)
	}
	if n < 0 {
		n = 0
	}
	s.outWindow -= int32(n)
	fc.connWindow -= int32(n)
	return data[:n], data[n:]
}

// creditStream applies a stream-scoped WINDOW_UPDATE. delta must be > 0;
// delta == 0 is a caller-detected PROTOCOL_ERROR, not handled here.
func (fc *outboundFlowController) creditStream(s *Stream, delta int32) {
	s.outWindow += delta
}

// creditConn applies a connection-scoped WINDOW_UPDATE.
func (fc *outboundFlowController) creditConn(delta int32) {
	fc.connWindow += delta
}

// drain greedily flushes as much of s's queued pending data as the current
// windows allow, returning the chunks ready to go on the wire in order.
func (fc *outboundFlowController) drain(s *Stream) []pendingChunk {
	var out []pendingChunk
	for len(s.pending) > 0 && fc.connWindow > 0 && s.outWindow > 0 {
		head := s.pending[0]
		sent, rest := fc.admit(s, head.data)
		if len(sent) == 0 {
			break
		}
		if len(rest) == 0 {
			out = append(out, pendingChunk{data: sent, endStream: head.endStream})
			s.pending = s.pending[1:]
		} else {
			out = append(out, pendingChunk{data: sent, endStream: false})
			s.pending[0] = pendingChunk{data: rest, endStream: head.endStream}
		}
	}
	return out
}
