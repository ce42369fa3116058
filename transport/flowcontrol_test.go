package transport

import "testing"

func TestOutboundFlowControllerAdmit(t *testing.T) {
	tests := []struct {
		name          string
		connWindow    int32
		streamWindow  int32
		data          []byte
		wantSent      int
		wantRemainder int
	}{
		{name: "fits entirely", connWindow: 100, streamWindow: 100, data: make([]byte, 10), wantSent: 10, wantRemainder: 0},
		{name: "capped by stream window", connWindow: 100, streamWindow: 4, data: make([]byte, 10), wantSent: 4, wantRemainder: 6},
		{name: "capped by connection window", connWindow: 3, streamWindow: 100, data: make([]byte, 10), wantSent: 3, wantRemainder: 7},
		{name: "no credit at all", connWindow: 0, streamWindow: 100, data: make([]byte, 10), wantSent: 0, wantRemainder: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newOutboundFlowController(0)
			fc.connWindow = tt.connWindow
			s := &Stream{outWindow: tt.streamWindow}

			sent, rest := fc.admit(s, tt.data)
			if len(sent) != tt.wantSent {
				t.Errorf("sent = %d bytes, want %d", len(sent), tt.wantSent)
			}
			if len(rest) != tt.wantRemainder {
				t.Errorf("remainder = %d bytes, want %d", len(rest), tt.wantRemainder)
			}
			if s.outWindow != tt.streamWindow-int32(tt.wantSent) {
				t.Errorf("stream window after admit = %d, want %d", s.outWindow, tt.streamWindow-int32(tt.wantSent))
			}
			if fc.connWindow != tt.connWindow-int32(tt.wantSent) {
				t.Errorf("conn window after admit = %d, want %d", fc.connWindow, tt.connWindow-int32(tt.wantSent))
			}
		})
	}
}

func TestOutboundFlowControllerDrain(t *testing.T) {
	fc := newOutboundFlowController(0)
	fc.connWindow = 5
	s := &Stream{outWindow: 5}
	s.pending = []pendingChunk{
		{data: []byte("hello"), endStream: false},
		{data: []byte("world!"), endStream: true},
	}

	chunks := fc.drain(s)
	if len(chunks) != 1 || string(chunks[0].data) != "hello" || chunks[0].endStream {
		t.Fatalf("first drain = %+v, want one non-final chunk \"hello\"", chunks)
	}
	if len(s.pending) != 1 {
		t.Fatalf("pending len after first drain = %d, want 1", len(s.pending))
	}

	fc.creditConn(6)
	fc.creditStream(s, 6)
	chunks = fc.drain(s)
	if len(chunks) != 1 || string(chunks[0].data) != "world!" || !chunks[0].endStream {
		t.Fatalf("second drain = %+v, want one final chunk \"world!\"", chunks)
	}
	if len(s.pending) != 0 {
		t.Fatalf("pending len after second drain = %d, want 0", len(s.pending))
	}
}

func TestOutboundFlowControllerDrainPartialChunk(t *testing.T) {
	fc := newOutboundFlowController(0)
	fc.connWindow = 3
	s := &Stream{outWindow: 100}
	s.pending = []pendingChunk{{data: []byte("0123456789"), endStream: true}}

	chunks := fc.drain(s)
	if len(chunks) != 1 || string(chunks[0].data) != "012" || chunks[0].endStream {
		t.Fatalf("drain = %+v, want one 3-byte non-final chunk", chunks)
	}
	if len(s.pending) != 1 || string(s.pending[0].data) != "3456789" || !s.pending[0].endStream {
		t.Fatalf("remaining pending = %+v, want the 7-byte tail flagged endStream", s.pending)
	}
}
