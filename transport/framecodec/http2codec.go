package framecodec

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// DefaultMaxHeaderListSize bounds HPACK decode the way a client that never
// sent a different SETTINGS_MAX_HEADER_LIST_SIZE would observe.
const DefaultMaxHeaderListSize = 16 << 20

// HTTP2Codec wraps golang.org/x/net/http2.Framer with the HPACK
// encoder/decoder state it needs, fulfilling Codec. Apart from encMu around
// header encoding it performs no synchronization of its own: callers
// serialize writes through the Write Queue and reads happen only on the
// dedicated reader task.
type HTTP2Codec struct {
	framer *http2.Framer

	encMu   sync.Mutex // guards hBuf/hEnc; header encoding always happens on the writer side
	hBuf    bytes.Buffer
	hEnc    *hpack.Encoder
	hDec    *hpack.Decoder
	bw      *bufio.Writer
	onMeta  func(*http2.MetaHeadersFrame)
	headers *http2.MetaHeadersFrame
}

// New builds a Codec over rw. maxHeaderListSize bounds inbound HPACK
// decode; 0 selects DefaultMaxHeaderListSize.
func New(rw io.ReadWriter, maxHeaderListSize uint32) *HTTP2Codec {
	if maxHeaderListSize == 0 {
		maxHeaderListSize = DefaultMaxHeaderListSize
	}
	bw := bufio.NewWriter(rw)
	c := &HTTP2Codec{bw: bw}
	c.hEnc = hpack.NewEncoder(&c.hBuf)
	c.framer = http2.NewFramer(bw, rw)
	c.framer.ReadMetaHeaders = hpack.NewDecoder(maxHeaderListSize, nil)
	c.framer.MaxHeaderListSize = maxHeaderListSize
	return c
}

func (c *HTTP2Codec) ReadFrame() (http2.Frame, error) {
	return c.framer.ReadFrame()
}

func (c *HTTP2Codec) WriteData(streamID uint32, endStream bool, data []byte) error {
	return c.framer.WriteData(streamID, endStream, data)
}

func (c *HTTP2Codec) WriteHeaders(streamID uint32, headerBlock []byte, endStream, endHeaders bool) error {
	return c.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: headerBlock,
		EndStream:     endStream,
		EndHeaders:    endHeaders,
	})
}

func (c *HTTP2Codec) WriteRSTStream(streamID uint32, code http2.ErrCode) error {
	return c.framer.WriteRSTStream(streamID, code)
}

func (c *HTTP2Codec) WriteSettings(settings ...http2.Setting) error {
	return c.framer.WriteSettings(settings...)
}

func (c *HTTP2Codec) WriteSettingsAck() error {
	return c.framer.WriteSettingsAck()
}

func (c *HTTP2Codec) WritePing(ack bool, payload [8]byte) error {
	return c.framer.WritePing(ack, payload)
}

func (c *HTTP2Codec) WriteGoAway(lastStreamID uint32, code http2.ErrCode, debugData []byte) error {
	return c.framer.WriteGoAway(lastStreamID, code, debugData)
}

func (c *HTTP2Codec) WriteWindowUpdate(streamID, increment uint32) error {
	return c.framer.WriteWindowUpdate(streamID, increment)
}

func (c *HTTP2Codec) Flush() error {
	return c.bw.Flush()
}

// EncodeHeaders HPACK-encodes fields into a single header block, ready for
// WriteHeaders. Calls are serialized by encMu; the Write Queue's single
// consumer goroutine is the only caller. The HPACK dynamic table persists
// across calls, so a field encoded before may come out as a shorter
// indexed representation.
func (c *HTTP2Codec) EncodeHeaders(fields []HeaderField) ([]byte, error) {
	c.encMu.Lock()
	defer c.encMu.Unlock()

	c.hBuf.Reset()
	for _, f := range fields {
		if err := c.hEnc.WriteField(hpack.HeaderField{Name: f.Name, Value: f.Value, Sensitive: f.Sensitive}); err != nil {
			return nil, err
		}
	}
	out := make([]byte, c.hBuf.Len())
	copy(out, c.hBuf.Bytes())
	return out, nil
}
