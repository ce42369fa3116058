package transport

import (
	"math"
	"testing"
)

func TestStreamRegistryAssignAndInsert(t *testing.T) {
	tests := []struct {
		name       string
		startID    uint32
		wantFirst  uint32
		wantSecond uint32
	}{
		{name: "starts at 3", startID: 3, wantFirst: 3, wantSecond: 5},
		{name: "odd increment from non-default", startID: 7, wantFirst: 7, wantSecond: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newStreamRegistry(100)
			r.nextStreamID = tt.startID

			s1 := &Stream{}
			if exhausted := r.assignAndInsert(s1); exhausted {
				t.Fatalf("unexpected id exhaustion")
			}
			if s1.ID() != tt.wantFirst {
				t.Errorf("first id = %d, want %d", s1.ID(), tt.wantFirst)
			}

			s2 := &Stream{}
			if exhausted := r.assignAndInsert(s2); exhausted {
				t.Fatalf("unexpected id exhaustion")
			}
			if s2.ID() != tt.wantSecond {
				t.Errorf("second id = %d, want %d", s2.ID(), tt.wantSecond)
			}

			if got, ok := r.get(tt.wantFirst); !ok || got != s1 {
				t.Errorf("get(%d) = %v, %v, want %v, true", tt.wantFirst, got, ok, s1)
			}
			if r.size() != 2 {
				t.Errorf("size() = %d, want 2", r.size())
			}
		})
	}
}

func TestStreamRegistryIDExhaustion(t *testing.T) {
	r := newStreamRegistry(100)
	r.nextStreamID = math.MaxInt32 - 3

	s1 := &Stream{}
	if exhausted := r.assignAndInsert(s1); exhausted {
		t.Fatalf("exhaustion reported one step too early")
	}

	s2 := &Stream{}
	exhausted := r.assignAndInsert(s2)
	if !exhausted {
		t.Fatalf("expected id exhaustion on final assignment")
	}
	if r.nextStreamID != math.MaxInt32 {
		t.Errorf("nextStreamID = %d, want %d", r.nextStreamID, math.MaxInt32)
	}
}

func TestStreamRegistryMayHaveCreatedStream(t *testing.T) {
	r := newStreamRegistry(100)
	r.nextStreamID = 9

	tests := []struct {
		name string
		id   uint32
		want bool
	}{
		{name: "already assigned odd id", id: 3, want: true},
		{name: "not yet assigned", id: 11, want: false},
		{name: "even id never client-initiated", id: 4, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.mayHaveCreatedStream(tt.id); got != tt.want {
				t.Errorf("mayHaveCreatedStream(%d) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestStreamRegistryDrainPendingFIFO(t *testing.T) {
	r := newStreamRegistry(1)
	s1 := &Stream{}
	r.assignAndInsert(s1)

	s2 := &Stream{}
	s3 := &Stream{}
	r.admitPending(s2)
	r.admitPending(s3)

	r.remove(s1.ID())
	r.setMaxConcurrentStreams(2)

	started, exhausted := r.drainPending()
	if exhausted {
		t.Fatalf("unexpected id exhaustion")
	}
	if len(started) != 2 {
		t.Fatalf("drainPending started %d streams, want 2", len(started))
	}
	if started[0] != s2 || started[1] != s3 {
		t.Errorf("drainPending did not preserve FIFO order")
	}
	if started[0].ID() == 0 || started[1].ID() == 0 {
		t.Errorf("drained streams were not assigned ids")
	}
}

func TestStreamRegistryRemoveAbove(t *testing.T) {
	r := newStreamRegistry(100)
	var streams []*Stream
	for i := 0; i < 4; i++ {
		s := &Stream{}
		r.assignAndInsert(s)
		streams = append(streams, s)
	}
	pending := &Stream{}
	r.admitPending(pending)

	lastGood := streams[1].ID()
	removed := r.removeAbove(lastGood, true)

	if r.size() != 2 {
		t.Errorf("size() after removeAbove = %d, want 2", r.size())
	}
	if _, ok := r.get(streams[0].ID()); !ok {
		t.Errorf("stream below lastGood was removed")
	}
	if _, ok := r.get(streams[3].ID()); ok {
		t.Errorf("stream above lastGood was not removed")
	}
	wantRemoved := len(streams) - 2 + 1 // two active above lastGood, plus the pending one
	if len(removed) != wantRemoved {
		t.Errorf("removeAbove returned %d streams, want %d", len(removed), wantRemoved)
	}
}
