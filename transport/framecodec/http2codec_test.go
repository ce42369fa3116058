package framecodec

import (
	"io"
	"net"
	"testing"

	"golang.org/x/net/http2"
)

func TestHTTP2CodecRoundTripsDataFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientCodec := New(client, 0)
	serverFramer := http2.NewFramer(server, server)

	// net.Pipe is unbuffered: the write only completes once something on
	// the other end reads, so writing and reading must run concurrently.
	writeErrCh := make(chan error, 1)
	go func() {
		if err := clientCodec.WriteData(3, true, []byte("payload")); err != nil {
			writeErrCh <- err
			return
		}
		writeErrCh <- clientCodec.Flush()
	}()

	frame, err := serverFramer.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if err := <-writeErrCh; err != nil {
		t.Fatalf("client write side: %v", err)
	}
	df, ok := frame.(*http2.DataFrame)
	if !ok {
		t.Fatalf("frame type = %T, want *http2.DataFrame", frame)
	}
	if df.StreamID != 3 {
		t.Errorf("StreamID = %d, want 3", df.StreamID)
	}
	if !df.StreamEnded() {
		t.Errorf("StreamEnded() = false, want true")
	}
	if string(df.Data()) != "payload" {
		t.Errorf("Data() = %q, want %q", df.Data(), "payload")
	}
}

func TestHTTP2CodecEncodeHeadersIsIndependentPerCall(t *testing.T) {
	codec := New(&discardReadWriter{}, 0)

	block1, err := codec.EncodeHeaders([]HeaderField{{Name: ":method", Value: "POST"}})
	if err != nil {
		t.Fatalf("EncodeHeaders: %v", err)
	}
	block2, err := codec.EncodeHeaders([]HeaderField{{Name: ":path", Value: "/x"}})
	if err != nil {
		t.Fatalf("EncodeHeaders: %v", err)
	}

	if len(block1) == 0 || len(block2) == 0 {
		t.Fatalf("expected non-empty header blocks, got %d and %d bytes", len(block1), len(block2))
	}
	// Mutating one returned slice, or encoding again, must not change a
	// block returned earlier: EncodeHeaders must hand back a fresh copy,
	// not a window into the codec's reused internal buffer. (A re-encode of
	// the same field is not byte-identical to the first: the HPACK
	// encoder's dynamic table persists across calls.)
	want2 := append([]byte(nil), block2...)
	for i := range block1 {
		block1[i] = 0xFF
	}
	block3, err := codec.EncodeHeaders([]HeaderField{{Name: ":path", Value: "/x"}})
	if err != nil {
		t.Fatalf("EncodeHeaders: %v", err)
	}
	if len(block3) == 0 {
		t.Fatalf("re-encoding the same fields produced an empty header block")
	}
	for i := range block2 {
		if block2[i] != want2[i] {
			t.Fatalf("an earlier header block changed at byte %d: %x, want %x", i, block2[i], want2[i])
		}
	}
}

// discardReadWriter satisfies io.ReadWriter for codecs that are only used
// to exercise the write/encode side in a test.
type discardReadWriter struct{}

func (discardReadWriter) Read(p []byte) (int, error)  { return 0, io.EOF }
func (discardReadWriter) Write(p []byte) (int, error) { return len(p), nil }
