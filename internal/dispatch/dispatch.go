// Package dispatch provides the serialized execution context the controller
// runs every hypervisor-mutating call on: a single-worker FIFO queue, a
// one-shot result slot bridging asynchronous completion to blocking callers,
// and a one-shot broadcast latch for terminal events.
package dispatch

import (
	"sync"
	"sync/atomic"
)

// Queue executes submitted work on a single worker goroutine, strictly in
// submission order. No two units of work ever run concurrently, so work
// touching the hypervisor handle needs no locking.
type Queue struct {
	work chan func()
	wg   sync.WaitGroup
}

// NewQueue starts a queue with one worker goroutine.
func NewQueue() *Queue {
	q := &Queue{
		work: make(chan func(), 16),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for fn := range q.work {
		fn()
	}
}

// Submit enqueues fn and returns immediately. Submissions from any number of
// goroutines are executed FIFO in enqueue order.
func (q *Queue) Submit(fn func()) {
	q.work <- fn
}

// Close stops the worker after all previously submitted work has run.
// Submitting after Close panics.
func (q *Queue) Close() {
	close(q.work)
	q.wg.Wait()
}

// Promise is a one-shot result slot. Exactly one of Resolve or Reject must be
// called, exactly once; a second resolution is a programming error and
// panics. Await blocks until the slot is resolved.
type Promise[T any] struct {
	done     chan struct{}
	resolved atomic.Bool
	value    T
	err      error
}

// NewPromise creates an unresolved promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolve completes the promise with a value.
func (p *Promise[T]) Resolve(v T) {
	if !p.resolved.CompareAndSwap(false, true) {
		panic("dispatch: promise resolved twice")
	}
	p.value = v
	close(p.done)
}

// Reject completes the promise with an error.
func (p *Promise[T]) Reject(err error) {
	if !p.resolved.CompareAndSwap(false, true) {
		panic("dispatch: promise resolved twice")
	}
	p.err = err
	close(p.done)
}

// Await blocks until the promise is resolved, then returns its outcome.
func (p *Promise[T]) Await() (T, error) {
	<-p.done
	return p.value, p.err
}

// Call submits fn to the queue and blocks the calling goroutine until fn
// resolves the promise it is handed. This is the async-to-sync bridge for
// long-running hypervisor operations.
//
// Must not be called from the queue's own worker: fn runs on the worker, so
// waiting there would deadlock.
func Call[T any](q *Queue, fn func(p *Promise[T])) (T, error) {
	p := NewPromise[T]()
	q.Submit(func() { fn(p) })
	return p.Await()
}

// Latch is a one-shot broadcast: the first Trip wins and records the cause,
// later trips are benign no-ops, and every Wait call returns the winning
// cause once tripped. It backs the terminal-stop signal.
type Latch struct {
	mu      sync.Mutex
	done    chan struct{}
	tripped bool
	cause   error
}

// NewLatch creates an untripped latch.
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Trip resolves the latch with cause. Returns true if this call won the
// race; false means the latch was already tripped and cause is discarded.
func (l *Latch) Trip(cause error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tripped {
		return false
	}
	l.tripped = true
	l.cause = cause
	close(l.done)
	return true
}

// Wait blocks until the latch trips, then returns the winning cause.
// Callable any number of times, from any goroutine.
func (l *Latch) Wait() error {
	<-l.done
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cause
}

// Tripped reports whether the latch has been tripped.
func (l *Latch) Tripped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tripped
}
