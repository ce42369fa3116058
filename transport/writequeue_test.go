package transport

import (
	"errors"
	"testing"
	"time"
)

func TestWriteQueueBuffersBeforeBind(t *testing.T) {
	q := newWriteQueue(nil)
	go q.run()

	var order []int
	c1 := q.enqueue(func() error { order = append(order, 1); return nil })
	c2 := q.enqueue(func() error { order = append(order, 2); return nil })

	select {
	case <-c1.done:
		t.Fatalf("command submitted before bind() ran before bind() was called")
	case <-time.After(20 * time.Millisecond):
	}

	q.bind()

	if err := c1.wait(); err != nil {
		t.Fatalf("c1.wait() = %v, want nil", err)
	}
	if err := c2.wait(); err != nil {
		t.Fatalf("c2.wait() = %v, want nil", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("execution order = %v, want [1 2]", order)
	}
}

func TestWriteQueuePropagatesCommandError(t *testing.T) {
	fatalCh := make(chan error, 1)
	q := newWriteQueue(func(err error) { fatalCh <- err })
	q.bind()
	go q.run()

	wantErr := errors.New("boom")
	cmd := q.enqueue(func() error { return wantErr })

	if err := cmd.wait(); err != wantErr {
		t.Fatalf("cmd.wait() = %v, want %v", err, wantErr)
	}
	select {
	case fatal := <-fatalCh:
		if fatal != wantErr {
			t.Errorf("onFatal received %v, want %v", fatal, wantErr)
		}
	case <-time.After(time.Second):
		t.Fatalf("onFatal was never called")
	}
}

func TestWriteQueueCloseFailsBufferedCommands(t *testing.T) {
	q := newWriteQueue(nil)
	cmd := q.enqueue(func() error { t.Fatalf("buffered command should never run after closeQueue"); return nil })

	cause := errors.New("shutting down")
	q.closeQueue(cause)

	if err := cmd.wait(); err != cause {
		t.Fatalf("buffered cmd.wait() = %v, want %v", err, cause)
	}

	late := q.enqueue(func() error { t.Fatalf("post-close command should never run"); return nil })
	if err := late.wait(); err != cause {
		t.Fatalf("post-close cmd.wait() = %v, want %v", err, cause)
	}
}

func TestWriteQueueCloseIsIdempotent(t *testing.T) {
	q := newWriteQueue(nil)
	q.bind()
	go q.run()

	q.closeQueue(errors.New("first"))
	q.closeQueue(errors.New("second")) // must not double-close q.ch
}
