// Package transport implements a client-side HTTP/2 transport for an RPC
// framework: one TCP (optionally TLS) connection to a single server,
// multiplexing many logical calls as HTTP/2 streams. See SPEC_FULL.md for
// the full contract; this file is Component G, the lifecycle state
// machine and public API.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/corvid-systems/h2transport/transport/framecodec"
	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// State is the transport's lifecycle state, §4.G.
type State int32

const (
	StateNew State = iota
	StateConnecting
	StateReady
	StateGoingAway
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateConnecting:
		return "CONNECTING"
	case StateReady:
		return "READY"
	case StateGoingAway:
		return "GOING_AWAY"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Transport manages exactly one connection and multiplexes RPCs over it as
// HTTP/2 streams. It is created via New, started once via Start, and is
// single-use: once TERMINATED it cannot be reused.
type Transport struct {
	address string
	opts    Options
	logger  zerolog.Logger
	connID  string

	ctx    context.Context
	cancel context.CancelFunc

	listener Listener
	wq       *writeQueue

	conn  net.Conn
	codec *framecodec.HTTP2Codec

	scheme string

	mu            sync.Mutex
	state         State
	reg           *streamRegistry
	flow          *outboundFlowController
	ping          pingTracker
	goAway        bool
	startedGoAway bool
	goAwayStatus  *status.Status
	settingsSeen  bool

	// connUnacked is touched only by the reader task (readLoop and its
	// frame handlers), which is single-threaded by construction, so it
	// needs no lock of its own.
	connUnacked int32
}

// New constructs a Transport for address. Nothing happens on the wire
// until Start is called.
func New(address string, opts Options) *Transport {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		address: address,
		opts:    opts,
		logger:  opts.Logger,
		connID:  shortuuid.New(),
		ctx:     ctx,
		cancel:  cancel,
		state:   StateNew,
		reg:     newStreamRegistry(opts.MaxConcurrentStreams),
		flow:    newOutboundFlowController(opts.InitialWindowSize),
		scheme:  "http",
	}
	t.wq = newWriteQueue(t.onWriteFatal)
	return t
}

// Start begins asynchronous connection establishment. One-shot: calling it
// twice is a programmer error and the second call is a no-op.
func (t *Transport) Start(l Listener) {
	t.mu.Lock()
	if t.state != StateNew {
		t.mu.Unlock()
		return
	}
	t.state = StateConnecting
	t.listener = l
	t.mu.Unlock()

	go t.wq.run()
	go t.connectAndServe()
}

func (t *Transport) connectAndServe() {
	raw, err := net.Dial("tcp", t.address)
	if err != nil {
		t.failConnect(fmt.Errorf("dial %s: %w", t.address, err))
		return
	}

	t.mu.Lock()
	racedAway := t.goAway
	t.mu.Unlock()
	if racedAway {
		// Shutdown raced with CONNECTING; we own this fresh socket and no
		// reader task will ever run for it, so we finish termination here.
		raw.Close()
		t.maybeTerminate()
		return
	}

	conn, err := t.negotiate(raw)
	if err != nil {
		raw.Close()
		t.failConnect(fmt.Errorf("negotiate: %w", err))
		return
	}
	if _, ok := t.opts.Negotiator.(*TLSNegotiator); ok {
		t.scheme = "https"
	}

	t.mu.Lock()
	racedAway = t.goAway
	t.mu.Unlock()
	if racedAway {
		conn.Close()
		t.maybeTerminate()
		return
	}

	t.conn = conn
	t.codec = framecodec.New(conn, t.opts.MaxHeaderListSize)
	t.wq.bind()

	settingsCmd := t.wq.enqueue(func() error {
		if err := t.codec.WriteSettings(
			http2.Setting{ID: http2.SettingInitialWindowSize, Val: uint32(t.opts.InitialWindowSize)},
		); err != nil {
			return err
		}
		return t.codec.Flush()
	})
	if err := settingsCmd.wait(); err != nil {
		t.failConnect(fmt.Errorf("write initial settings: %w", err))
		return
	}

	go t.runKeepalive()
	t.readLoop()
}

// negotiate runs the negotiator alongside a watcher that force-closes raw
// if the transport's context is cancelled mid-handshake (e.g. Shutdown
// arriving while CONNECTING), mirroring the teacher's dial/watch goroutine
// pairing in proxy/transport/quic/dialer.go.
func (t *Transport) negotiate(raw net.Conn) (net.Conn, error) {
	done := make(chan struct{})
	var conn net.Conn
	var negErr error

	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		conn, negErr = t.opts.Negotiator.Negotiate(t.ctx, raw)
		return negErr
	})
	g.Go(func() error {
		select {
		case <-t.ctx.Done():
			raw.Close()
		case <-done:
		}
		return nil
	})
	_ = g.Wait()
	return conn, negErr
}

// failConnect handles a connect/negotiate failure. No reader task was ever
// started in this path, so unlike a mid-life failure this is the one place
// that must call maybeTerminate itself instead of relying on the reader
// task's own "finally".
func (t *Transport) failConnect(err error) {
	t.logger.Error().Err(err).Str("conn_id", t.connID).Msg("connect failed")
	t.startGoAway(0, status.New(codes.Unavailable, err.Error()))
	t.maybeTerminate()
}

func (t *Transport) onWriteFatal(err error) {
	if isGracefulClose(err) {
		return
	}
	t.logger.Error().Err(err).Str("conn_id", t.connID).Msg("write failed")
	t.startGoAway(0, status.New(codes.Unavailable, err.Error()))
}

// NewStream returns immediately with a Stream; admission (and any
// resulting failure) happens asynchronously on the write queue so it
// observes connection readiness and participates in wire-level ordering,
// per §4.G.
func (t *Transport) NewStream(method *MethodDescriptor, headers []Header) *Stream {
	t.mu.Lock()
	initialWindow := t.flow.initialStreamWN
	t.mu.Unlock()
	s := newStream(t, method, headers, t.opts.MaxMessageSize, initialWindow)

	t.wq.enqueue(func() error {
		t.mu.Lock()
		if t.goAway {
			st := t.goAwayStatus
			t.mu.Unlock()
			s.finish(st)
			return nil
		}
		admitted := uint32(t.reg.size()) < t.reg.maxConcurrentStreams
		var exhausted idExhaustion
		if admitted {
			exhausted = t.reg.assignAndInsert(s)
		} else {
			t.reg.admitPending(s)
		}
		t.mu.Unlock()

		if !admitted {
			return nil
		}

		fields := buildHeaderBlock(method, t.scheme, t.opts.Authority, headers)
		block, err := t.codec.EncodeHeaders(fields)
		if err != nil {
			s.finish(status.New(codes.Internal, err.Error()))
			return nil
		}
		if err := t.codec.WriteHeaders(s.ID(), block, false, true); err != nil {
			return err
		}
		if err := t.codec.Flush(); err != nil {
			return err
		}
		if exhausted {
			t.startGoAway(t.lastAssignedLastKnownID(), errStreamIdsExhausted)
		}
		return nil
	})

	return s
}

// lastAssignedLastKnownID reports the highest stream id this transport has
// ever handed out, for use as the last-good-id of a locally-initiated
// GOAWAY (e.g. on id exhaustion): everything at or below it gets to run to
// completion, per §4.G / invariant 7.
func (t *Transport) lastAssignedLastKnownID() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reg.highestAssignedID
}

// writeData implements Stream.Write: split/queue per the outbound flow
// controller, then hand whatever is immediately sendable to the write
// queue.
func (t *Transport) writeData(s *Stream, p []byte, endStream bool) error {
	cmd := t.wq.enqueue(func() error {
		t.mu.Lock()
		sent, rest := t.flow.admit(s, p)
		if len(rest) > 0 {
			s.pending = append(s.pending, pendingChunk{data: rest, endStream: endStream})
		}
		t.mu.Unlock()

		thisEnd := endStream && len(rest) == 0
		if len(sent) > 0 || thisEnd {
			if err := t.codec.WriteData(s.ID(), thisEnd, sent); err != nil {
				return err
			}
			if err := t.codec.Flush(); err != nil {
				return err
			}
		}
		if thisEnd {
			if s.markHalfClosedTX() {
				t.finishAndRemove(s, status.New(codes.OK, ""))
			}
		}
		return nil
	})
	return cmd.wait()
}

// drainStreamPendingLocked flushes whatever credit now allows for s, called
// after a WINDOW_UPDATE is applied. Must be called with t.mu held for the
// flow-controller computation, but the actual write is queued, not
// executed inline, to keep socket I/O off the mutex.
func (t *Transport) drainStreamPendingLocked(s *Stream) {
	chunks := t.flow.drain(s)
	if len(chunks) == 0 {
		return
	}
	t.wq.enqueue(func() error {
		sawEnd := false
		for _, c := range chunks {
			if err := t.codec.WriteData(s.ID(), c.endStream, c.data); err != nil {
				return err
			}
			sawEnd = sawEnd || c.endStream
		}
		if err := t.codec.Flush(); err != nil {
			return err
		}
		if sawEnd {
			if s.markHalfClosedTX() {
				t.finishAndRemove(s, status.New(codes.OK, ""))
			}
		}
		return nil
	})
}

func (t *Transport) resetStream(s *Stream, code uint32) error {
	cmd := t.wq.enqueue(func() error {
		id := s.ID()
		if id == 0 {
			return nil
		}
		if err := t.codec.WriteRSTStream(id, http2.ErrCode(code)); err != nil {
			return err
		}
		return t.codec.Flush()
	})
	err := cmd.wait()
	t.finishAndRemove(s, status.New(codes.Canceled, "cancelled locally"))
	return err
}

// Ping fires cb with the round trip time once a PING is ACKed; concurrent
// callers while one is outstanding share that ping's sample, §4.E.
func (t *Transport) Ping(cb PingCallback) {
	t.mu.Lock()
	if t.state == StateTerminated || t.goAway {
		st := t.goAwayStatus
		t.mu.Unlock()
		if st == nil {
			st = errConnectionClosed
		}
		cb(0, st.Err())
		return
	}
	payload, shouldSend := t.ping.begin(cb)
	t.mu.Unlock()

	if !shouldSend {
		return
	}
	t.wq.enqueue(func() error {
		if err := t.codec.WritePing(false, payload); err != nil {
			return err
		}
		return t.codec.Flush()
	})
}

// Shutdown is graceful and idempotent: it tells the peer GOAWAY(NO_ERROR)
// and lets every already-admitted stream run to completion.
func (t *Transport) Shutdown() {
	t.mu.Lock()
	if t.startedGoAway {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.wq.enqueue(func() error {
		if err := t.codec.WriteGoAway(0, http2.ErrCodeNo, nil); err != nil {
			return err
		}
		return t.codec.Flush()
	})
	// lastKnownStreamID = max uint32 means "keep all my streams alive
	// until they complete naturally" (§4.G).
	t.startGoAway(maxUint32, errTransportShuttingDown)
}

// startGoAway is idempotent and is the only path into StateGoingAway. It
// is safe to call from the reader task, the write queue, or an
// application goroutine.
func (t *Transport) startGoAway(lastKnownStreamID uint32, st *status.Status) {
	t.mu.Lock()
	if t.startedGoAway {
		t.mu.Unlock()
		return
	}
	t.startedGoAway = true
	t.goAwayStatus = st
	t.mu.Unlock()

	// Cancel immediately (not just at final termination) so anything
	// blocked on t.ctx.Done() - the keepalive loop, a negotiate watcher
	// mid-handshake - unwinds as soon as going away starts.
	t.cancel()

	if t.listener != nil {
		t.listener.TransportShutdown(st)
	}

	t.mu.Lock()
	t.state = StateGoingAway
	t.goAway = true
	t.reg.lastKnownStreamID = lastKnownStreamID
	removed := t.reg.removeAbove(lastKnownStreamID, true)
	t.mu.Unlock()

	for _, s := range removed {
		s.finish(st)
	}

	pingCbs := func() []PingCallback {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.ping.fail()
	}()
	for _, cb := range pingCbs {
		cb(0, st.Err())
	}

	t.stopIfNecessary()
}

// stopIfNecessary moves GOING_AWAY -> TERMINATED once every remaining
// stream has been removed from the registry.
func (t *Transport) stopIfNecessary() {
	t.mu.Lock()
	if t.state != StateGoingAway || t.reg.size() > 0 {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	if t.conn != nil {
		t.conn.Close()
	}
	t.wq.closeQueue(t.goAwayStatus.Err())
	// Closing conn unblocks the reader task's blocked ReadFrame; its own
	// "finally" is what calls maybeTerminate (§4.F). If no reader task
	// was ever started (failure during CONNECTING), the caller that
	// knows that is responsible for calling maybeTerminate itself.
}

// maybeTerminate fires TransportTerminated exactly once. It is called from
// the reader task's defer in the common case, and directly by any code
// path that aborts before a reader task ever starts.
func (t *Transport) maybeTerminate() {
	t.mu.Lock()
	already := t.state == StateTerminated
	t.state = StateTerminated
	t.mu.Unlock()
	if already {
		return
	}
	if t.listener != nil {
		t.listener.TransportTerminated()
	}
}

// finishAndRemove assigns st to s, removes it from the registry, and
// drains whatever capacity that frees up to pending streams.
func (t *Transport) finishAndRemove(s *Stream, st *status.Status) {
	t.mu.Lock()
	id := s.ID()
	t.reg.remove(id)
	started, exhausted := t.reg.drainPending()
	t.mu.Unlock()

	s.finish(st)

	for _, ns := range started {
		t.flushNewlyStartedHeaders(ns)
	}
	if exhausted {
		t.startGoAway(t.lastAssignedLastKnownID(), errStreamIdsExhausted)
	}
	t.stopIfNecessary()
}

func (t *Transport) flushNewlyStartedHeaders(s *Stream) {
	t.wq.enqueue(func() error {
		fields := buildHeaderBlock(s.method, t.scheme, t.opts.Authority, s.headers)
		block, err := t.codec.EncodeHeaders(fields)
		if err != nil {
			return err
		}
		if err := t.codec.WriteHeaders(s.ID(), block, false, true); err != nil {
			return err
		}
		return t.codec.Flush()
	})
}

const maxUint32 = ^uint32(0)
