package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// mpscNode is a single link of the queue
type mpscNode[T any] struct {
	value *T
	next  atomic.Pointer[mpscNode[T]]
}

// MPSCQueue is an unbounded lock-free multi-producer single-consumer queue.
//
// Producers append to a linked list with CAS operations and never block. A
// single internal goroutine drains the list and forwards the items on the
// channel returned by Recv. Items pushed by one producer keep their relative
// order; items of different producers are ordered by whichever CAS wins.
type MPSCQueue[T any] struct {
	head   atomic.Pointer[mpscNode[T]]
	tail   atomic.Pointer[mpscNode[T]]
	out    chan *T
	closed atomic.Bool
	drain  sync.WaitGroup

	// pushing counts producers between their closed check and their link.
	// sealed is set once Close has waited them out; no node is linked after.
	pushing atomic.Int64
	sealed  atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewMPSCQueue creates a queue and starts its drain goroutine.
func NewMPSCQueue[T any]() *MPSCQueue[T] {
	sentinel := &mpscNode[T]{}
	q := &MPSCQueue[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.drain.Add(1)
	go q.run()
	return q
}

// Push appends value to the queue. It returns false if value is nil or the
// queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *MPSCQueue[T]) Push(value *T) bool {
	if value == nil {
		return false
	}
	q.pushing.Add(1)
	defer q.pushing.Add(-1)
	if q.closed.Load() {
		return false
	}

	n := &mpscNode[T]{value: value}
	var spins uint8

	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// a failed swing is fine, another producer already moved the tail
				q.tail.CompareAndSwap(tail, n)

				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// help a producer that linked its node but did not move the tail yet
			q.tail.CompareAndSwap(tail, next)
		}

		// exponential backoff under contention
		if spins < 10 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// run moves items from the linked list to the out channel until the queue is
// closed and empty.
func (q *MPSCQueue[T]) run() {
	defer q.drain.Done()
	defer close(q.out)

	for {
		drained := false
		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			drained = true
			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil
		}

		if !drained {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil {
				if q.sealed.Load() {
					q.mu.Unlock()
					return
				}
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel the consumer reads from. The channel is closed
// after Close once every pending item has been delivered.
func (q *MPSCQueue[T]) Recv() <-chan *T {
	return q.out
}

// Close rejects further pushes. Items already queued, including those of
// pushes that raced with Close and returned true, are still delivered.
func (q *MPSCQueue[T]) Close() {
	q.closed.Store(true)
	for q.pushing.Load() > 0 {
		runtime.Gosched()
	}
	q.sealed.Store(true)
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// IsClosed reports whether Close was called.
func (q *MPSCQueue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len counts the queued items. It walks the list and is meant for debugging.
func (q *MPSCQueue[T]) Len() int {
	count := 0
	for n := q.head.Load().next.Load(); n != nil; n = n.next.Load() {
		count++
	}
	return count
}
