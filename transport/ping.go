package transport

import (
	"crypto/rand"
	"time"
)

// PingCallback is invoked with the round-trip time once a PING is ACKed, or
// with a non-nil err if the ping could not complete (transport stopped or
// torn down while outstanding).
type PingCallback func(rtt time.Duration, err error)

// pingRecord is the at-most-one outstanding ping described in §4.E.
type pingRecord struct {
	payload   [8]byte
	started   time.Time
	callbacks []PingCallback
}

// pingTracker enforces "at most one outstanding PING"; callers arriving
// while one is outstanding attach to it and all observe the same sample.
// No lock of its own; guarded by the owning Transport's mutex.
type pingTracker struct {
	outstanding *pingRecord
}

// begin starts a new ping if none is outstanding, attaches cb to the
// existing one otherwise. Returns the payload to send on the wire with
// shouldSend true, or a zero payload with shouldSend false if cb was merely
// attached to an existing ping.
func (pt *pingTracker) begin(cb PingCallback) (payload [8]byte, shouldSend bool) {
	if pt.outstanding != nil {
		pt.outstanding.callbacks = append(pt.outstanding.callbacks, cb)
		return [8]byte{}, false
	}
	var p [8]byte
	_, _ = rand.Read(p[:])
	pt.outstanding = &pingRecord{payload: p, started: time.Now(), callbacks: []PingCallback{cb}}
	return p, true
}

// ack matches an inbound PING ack against the outstanding record. It
// returns the callbacks to fire (outside the lock) and the measured RTT;
// ok is false if the payload didn't match, in which case the caller should
// log and ignore per §4.E.
func (pt *pingTracker) ack(payload [8]byte) (callbacks []PingCallback, rtt time.Duration, ok bool) {
	if pt.outstanding == nil || pt.outstanding.payload != payload {
		return nil, 0, false
	}
	rtt = time.Since(pt.outstanding.started)
	callbacks = pt.outstanding.callbacks
	pt.outstanding = nil
	return callbacks, rtt, true
}

// fail detaches the outstanding ping (if any) and returns its callbacks so
// the caller can fire them with err, outside the lock.
func (pt *pingTracker) fail() []PingCallback {
	if pt.outstanding == nil {
		return nil
	}
	cbs := pt.outstanding.callbacks
	pt.outstanding = nil
	return cbs
}
