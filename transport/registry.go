package transport

import (
	"container/list"
	"math"
)

// streamRegistry is the stream-id -> Stream map plus the pending-admission
// queue described in §4.D. All methods assume the caller already holds the
// owning Transport's mutex; it has no lock of its own because the spec
// requires a single transport-wide mutex shared with the flow controller
// and ping tracker.
type streamRegistry struct {
	streams map[uint32]*Stream
	pending list.List // of *Stream

	maxConcurrentStreams uint32
	nextStreamID         uint32 // next id to hand out; odd, starts at 3
	highestAssignedID    uint32 // highest id ever handed out by assignAndInsert
	lastKnownStreamID    uint32 // the go-away boundary passed to startGoAway
}

func newStreamRegistry(maxConcurrentStreams uint32) *streamRegistry {
	return &streamRegistry{
		streams:              make(map[uint32]*Stream),
		maxConcurrentStreams: maxConcurrentStreams,
		nextStreamID:         3,
	}
}

func (r *streamRegistry) get(id uint32) (*Stream, bool) {
	s, ok := r.streams[id]
	return s, ok
}

func (r *streamRegistry) size() int {
	return len(r.streams)
}

func (r *streamRegistry) snapshot() []*Stream {
	out := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	return out
}

// mayHaveCreatedStream reports whether id could be a stream this transport
// has already assigned (odd, and below the next id to hand out) even if it
// is no longer present in the map.
func (r *streamRegistry) mayHaveCreatedStream(id uint32) bool {
	return id%2 == 1 && id < r.nextStreamID
}

// idExhaustion is returned by assignAndInsert when the id space is
// spent; the caller (the transport core, outside the lock) must then start
// a local go-away.
type idExhaustion bool

// assignAndInsert allocates the next odd id for s, stores it, and reports
// whether this exhausted the id space.
func (r *streamRegistry) assignAndInsert(s *Stream) idExhaustion {
	id := r.nextStreamID
	s.mu.Lock()
	s.id = id
	s.admitted = true
	s.mu.Unlock()
	r.streams[id] = s
	r.highestAssignedID = id

	if r.nextStreamID >= math.MaxInt32-2 {
		r.nextStreamID = math.MaxInt32
		return true
	}
	r.nextStreamID += 2
	return false
}

// admitPending appends s to the FIFO pending queue.
func (r *streamRegistry) admitPending(s *Stream) {
	r.pending.PushBack(s)
}

func (r *streamRegistry) remove(id uint32) {
	delete(r.streams, id)
}

// drainPending starts as many pending streams as current capacity allows,
// in FIFO order, returning the ones that were started (the caller emits
// HEADERS for each, outside the lock) and whether id exhaustion was hit.
func (r *streamRegistry) drainPending() ([]*Stream, idExhaustion) {
	var started []*Stream
	for uint32(len(r.streams)) < r.maxConcurrentStreams {
		front := r.pending.Front()
		if front == nil {
			break
		}
		r.pending.Remove(front)
		s := front.Value.(*Stream)
		exhausted := r.assignAndInsert(s)
		started = append(started, s)
		if exhausted {
			return started, true
		}
	}
	return started, false
}

// removeAbove removes and returns every stream (active and pending) whose
// id is greater than lastGoodID; used by startGoAway. Pending streams have
// no id yet; all of them are removed when dropPending is set, whatever
// lastGoodID is.
func (r *streamRegistry) removeAbove(lastGoodID uint32, dropPending bool) []*Stream {
	var removed []*Stream
	for id, s := range r.streams {
		if id > lastGoodID {
			removed = append(removed, s)
			delete(r.streams, id)
		}
	}
	if dropPending {
		for e := r.pending.Front(); e != nil; {
			next := e.Next()
			removed = append(removed, e.Value.(*Stream))
			r.pending.Remove(e)
			e = next
		}
	}
	return removed
}

func (r *streamRegistry) setMaxConcurrentStreams(n uint32) {
	r.maxConcurrentStreams = n
}
