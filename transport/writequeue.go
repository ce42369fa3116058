package transport

import "sync"

// command is one serialized unit of work submitted to the write queue. fn
// runs on the queue's single consumer goroutine, after negotiation has
// bound a codec, so it is free to write frames directly.
type command struct {
	fn   func() error
	done chan struct{}
	err  error
}

// wait blocks until the command has been executed and returns its result.
// This is the "completion handle" §4.B promises every enqueue() call.
func (c *command) wait() error {
	<-c.done
	return c.err
}

// writeQueue is Component B: a single-producer-per-call, serializing
// consumer. Commands submitted before bind() are buffered and released in
// submission order once bound; every command after that goes straight to
// the channel, preserving the same order.
type writeQueue struct {
	mu       sync.Mutex
	bound    bool
	closed   bool
	cause    error
	buffered []*command
	ch       chan *command

	onFatal func(error)
}

func newWriteQueue(onFatal func(error)) *writeQueue {
	return &writeQueue{
		ch:      make(chan *command, 64),
		onFatal: onFatal,
	}
}

// bind releases every command buffered before negotiation completed, in
// order, then opens the gate for direct enqueueing. The sends happen with
// q.mu held (see enqueue's comment) so they cannot race closeQueue's
// close(q.ch).
func (q *writeQueue) bind() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	buffered := q.buffered
	q.buffered = nil
	q.bound = true

	for _, c := range buffered {
		q.ch <- c
	}
}

// enqueue submits fn for execution on the consumer goroutine and returns a
// handle that resolves once it has run. Once closeQueue has run, every
// further enqueue fails immediately with its cause instead of touching the
// (by then closed) channel.
//
// The send to q.ch happens with q.mu held. closeQueue also takes q.mu
// before flipping closed and closing q.ch, so a send in flight here always
// finishes (run()'s consumer never needs q.mu, so this cannot deadlock)
// before closeQueue can observe the lock free and close the channel out
// from under it — otherwise a losing enqueue would send on a closed
// channel and panic.
func (q *writeQueue) enqueue(fn func() error) *command {
	c := &command{fn: fn, done: make(chan struct{})}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		c.err = q.cause
		close(c.done)
		return c
	}
	if !q.bound {
		q.buffered = append(q.buffered, c)
		return c
	}
	q.ch <- c
	return c
}

// run is the queue's single consumer loop; it must run on its own
// goroutine for the lifetime of the transport.
func (q *writeQueue) run() {
	for c := range q.ch {
		err := c.fn()
		c.err = err
		close(c.done)
		if err != nil && q.onFatal != nil {
			q.onFatal(err)
		}
	}
}

// closeQueue stops the consumer loop permanently. Any command still
// buffered (never bound) is failed in place since it will never run; the
// channel is always closed so run()'s goroutine exits even if bind() was
// never called (e.g. a connect failure during CONNECTING). Idempotent.
//
// close(q.ch) happens after releasing q.mu, but that is still race-free:
// enqueue/bind hold q.mu for the entirety of any send to q.ch, so setting
// closed = true here (under the same lock) happens-before any send that
// starts afterward — those see closed and never touch the channel — and
// any send already in flight when this Lock() call is reached must finish
// and release q.mu first, so by the time we reach close(q.ch) no goroutine
// can still be sending.
func (q *writeQueue) closeQueue(cause error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cause = cause
	buffered := q.buffered
	q.buffered = nil
	q.mu.Unlock()

	for _, c := range buffered {
		c.err = cause
		close(c.done)
	}
	close(q.ch)
}
