package transport

import (
	"fmt"

	"golang.org/x/net/http2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// connWindowUpdateThreshold is half the default initial window (§6): once
// unacked inbound bytes on the connection reach this, we credit the peer
// back rather than waiting for the window to run dry.
const connWindowUpdateThreshold = DefaultInitialWindowSize / 2

// readLoop is Component F's dedicated reader task: the only goroutine that
// calls t.codec.ReadFrame. It exits on the first read error or the first
// locally detected protocol violation, either way handing off to
// maybeTerminate exactly once via defer, per §4.F's "finally".
func (t *Transport) readLoop() {
	defer t.maybeTerminate()

	for {
		frame, err := t.codec.ReadFrame()
		if err != nil {
			if isGracefulClose(err) {
				t.startGoAway(0, errConnectionClosed)
			} else {
				t.logger.Error().Err(err).Str("conn_id", t.connID).Msg("read failed")
				t.startGoAway(0, status.New(codes.Unavailable, err.Error()))
			}
			return
		}

		if ferr := t.dispatchFrame(frame); ferr != nil {
			t.logger.Error().Err(ferr).Str("conn_id", t.connID).Msg("protocol error")
			t.wq.enqueue(func() error {
				if err := t.codec.WriteGoAway(t.lastAssignedLastKnownID(), http2.ErrCodeProtocol, nil); err != nil {
					return err
				}
				return t.codec.Flush()
			})
			t.startGoAway(0, status.New(codes.Internal, ferr.Error()))
			return
		}
	}
}

// dispatchFrame routes one decoded frame to its handler. A non-nil return
// is a locally detected protocol violation that ends the connection.
func (t *Transport) dispatchFrame(f http2.Frame) error {
	switch fr := f.(type) {
	case *http2.DataFrame:
		return t.handleData(fr)
	case *http2.MetaHeadersFrame:
		return t.handleHeaders(fr)
	case *http2.RSTStreamFrame:
		t.handleRSTStream(fr)
	case *http2.SettingsFrame:
		return t.handleSettings(fr)
	case *http2.WindowUpdateFrame:
		return t.handleWindowUpdate(fr)
	case *http2.GoAwayFrame:
		t.handleGoAway(fr)
	case *http2.PushPromiseFrame:
		t.handlePushPromise(fr)
	case *http2.PingFrame:
		t.handlePing(fr)
	case *http2.PriorityFrame:
		// ignored, §4.F.
	default:
		// ALTSVC and anything else we don't recognize: ignored, §4.F.
	}
	return nil
}

func (t *Transport) handleData(fr *http2.DataFrame) error {
	id := fr.StreamID
	payload := fr.Data()
	t.accountInboundBytes(len(payload))

	t.mu.Lock()
	s, ok := t.reg.get(id)
	mayHave := t.reg.mayHaveCreatedStream(id)
	t.mu.Unlock()

	if !ok {
		if mayHave {
			t.wq.enqueue(func() error {
				if err := t.codec.WriteRSTStream(id, http2.ErrCodeStreamClosed); err != nil {
					return err
				}
				return t.codec.Flush()
			})
			return nil
		}
		return fmt.Errorf("DATA on stream %d that was never created", id)
	}

	if len(payload) > 0 {
		if st := s.appendInbound(payload); st != nil {
			t.wq.enqueue(func() error {
				if err := t.codec.WriteRSTStream(id, http2.ErrCodeInternal); err != nil {
					return err
				}
				return t.codec.Flush()
			})
			t.finishAndRemove(s, st)
			return nil
		}
	}

	if fr.StreamEnded() {
		if s.markHalfClosedRX() {
			t.finishAndRemove(s, status.New(codes.OK, ""))
		}
	}
	return nil
}

func (t *Transport) handleHeaders(fr *http2.MetaHeadersFrame) error {
	id := fr.StreamID

	t.mu.Lock()
	s, ok := t.reg.get(id)
	mayHave := t.reg.mayHaveCreatedStream(id)
	t.mu.Unlock()

	if !ok {
		if mayHave {
			t.wq.enqueue(func() error {
				if err := t.codec.WriteRSTStream(id, http2.ErrCodeStreamClosed); err != nil {
					return err
				}
				return t.codec.Flush()
			})
			return nil
		}
		return fmt.Errorf("HEADERS on stream %d that was never created", id)
	}

	s.mu.Lock()
	s.headersSeen = true
	s.mu.Unlock()

	if fr.StreamEnded() {
		if s.markHalfClosedRX() {
			t.finishAndRemove(s, status.New(codes.OK, ""))
		}
	}
	return nil
}

func (t *Transport) handleRSTStream(fr *http2.RSTStreamFrame) {
	t.mu.Lock()
	s, ok := t.reg.get(fr.StreamID)
	t.mu.Unlock()
	if !ok {
		return
	}
	t.finishAndRemove(s, errCodeToStatus(fr.ErrCode))
}

func (t *Transport) handleSettings(fr *http2.SettingsFrame) error {
	if fr.IsAck() {
		return nil
	}

	t.mu.Lock()
	firstSettings := !t.settingsSeen
	t.settingsSeen = true
	var started []*Stream
	var exhausted idExhaustion
	walkErr := fr.ForeachSetting(func(s http2.Setting) error {
		switch s.ID {
		case http2.SettingMaxConcurrentStreams:
			t.reg.setMaxConcurrentStreams(s.Val)
			started, exhausted = t.reg.drainPending()
		case http2.SettingInitialWindowSize:
			// Per RFC 7540 §6.9.2, this also retroactively adjusts every
			// already-open stream's window by the same delta (unlike a
			// WINDOW_UPDATE, the delta here may be zero or negative).
			newBaseline := int32(s.Val)
			delta := newBaseline - t.flow.initialStreamWN
			t.flow.initialStreamWN = newBaseline
			for _, st := range t.reg.snapshot() {
				st.outWindow += delta
			}
		}
		return nil
	})
	t.mu.Unlock()
	if walkErr != nil {
		return walkErr
	}

	for _, ns := range started {
		t.flushNewlyStartedHeaders(ns)
	}
	if exhausted {
		t.startGoAway(t.lastAssignedLastKnownID(), errStreamIdsExhausted)
	}

	t.wq.enqueue(func() error {
		if err := t.codec.WriteSettingsAck(); err != nil {
			return err
		}
		return t.codec.Flush()
	})

	if firstSettings {
		t.mu.Lock()
		if t.state == StateConnecting {
			t.state = StateReady
		}
		t.mu.Unlock()
		if t.listener != nil {
			t.listener.TransportReady()
		}
	}
	return nil
}

func (t *Transport) handleWindowUpdate(fr *http2.WindowUpdateFrame) error {
	if fr.StreamID == 0 {
		if fr.Increment == 0 {
			return fmt.Errorf("connection WINDOW_UPDATE with zero increment")
		}
		t.mu.Lock()
		t.flow.creditConn(int32(fr.Increment))
		for _, s := range t.reg.snapshot() {
			t.drainStreamPendingLocked(s)
		}
		t.mu.Unlock()
		return nil
	}

	t.mu.Lock()
	s, ok := t.reg.get(fr.StreamID)
	mayHave := t.reg.mayHaveCreatedStream(fr.StreamID)
	t.mu.Unlock()

	if !ok {
		if mayHave {
			return nil
		}
		return fmt.Errorf("WINDOW_UPDATE on stream %d that was never created", fr.StreamID)
	}

	if fr.Increment == 0 {
		t.wq.enqueue(func() error {
			if err := t.codec.WriteRSTStream(fr.StreamID, http2.ErrCodeProtocol); err != nil {
				return err
			}
			return t.codec.Flush()
		})
		return nil
	}

	t.mu.Lock()
	t.flow.creditStream(s, int32(fr.Increment))
	t.drainStreamPendingLocked(s)
	t.mu.Unlock()
	return nil
}

func (t *Transport) handleGoAway(fr *http2.GoAwayFrame) {
	st := withDebugData(errCodeToStatus(fr.ErrCode), fr.DebugData())
	t.startGoAway(fr.LastStreamID, st)
}

func (t *Transport) handlePushPromise(fr *http2.PushPromiseFrame) {
	t.wq.enqueue(func() error {
		if err := t.codec.WriteRSTStream(fr.PromiseID, http2.ErrCodeProtocol); err != nil {
			return err
		}
		return t.codec.Flush()
	})
}

func (t *Transport) handlePing(fr *http2.PingFrame) {
	if fr.IsAck() {
		t.mu.Lock()
		cbs, rtt, ok := t.ping.ack(fr.Data)
		t.mu.Unlock()
		if !ok {
			t.logger.Warn().Str("conn_id", t.connID).Msg("ping ack payload mismatch, ignoring")
			return
		}
		for _, cb := range cbs {
			cb(rtt, nil)
		}
		return
	}

	t.wq.enqueue(func() error {
		if err := t.codec.WritePing(true, fr.Data); err != nil {
			return err
		}
		return t.codec.Flush()
	})
}

// accountInboundBytes implements the connection-level half-window credit
// rule (§6). Only the reader task calls this, so connUnacked needs no lock.
func (t *Transport) accountInboundBytes(n int) {
	if n <= 0 {
		return
	}
	t.connUnacked += int32(n)
	if t.connUnacked < connWindowUpdateThreshold {
		return
	}
	acc := uint32(t.connUnacked)
	t.connUnacked = 0
	t.wq.enqueue(func() error {
		if err := t.codec.WriteWindowUpdate(0, acc); err != nil {
			return err
		}
		return t.codec.Flush()
	})
}
