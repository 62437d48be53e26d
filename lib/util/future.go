package util

import (
	"sync"
	"sync/atomic"
)

// Future is a single-resolution value holder. The first call to Complete wins,
// every later call is ignored. Callbacks registered with OnComplete run exactly
// once: immediately if the future is already resolved, otherwise on the
// goroutine that resolves it.
//
// Thread-safety: all methods are safe for concurrent use.
type Future[T any] struct {
	done      atomic.Bool
	mu        sync.Mutex
	value     T
	callbacks []func(T)
}

// NewFuture creates an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{}
}

// CompletedFuture creates a future that is already resolved with value.
func CompletedFuture[T any](value T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(value)
	return f
}

// Complete resolves the future. It returns true if this call resolved it.
func (f *Future[T]) Complete(value T) bool {
	f.mu.Lock()
	if f.done.Load() {
		f.mu.Unlock()
		return false
	}
	f.value = value
	f.done.Store(true)
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	// run the callbacks outside the lock, they may register new callbacks
	for _, cb := range callbacks {
		cb(value)
	}
	return true
}

// IsDone reports whether the future has been resolved.
func (f *Future[T]) IsDone() bool {
	return f.done.Load()
}

// Value returns the resolved value and true, or the zero value and false if
// the future is still pending.
func (f *Future[T]) Value() (T, bool) {
	if !f.done.Load() {
		var zero T
		return zero, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, true
}

// OnComplete registers cb to run once the future is resolved.
func (f *Future[T]) OnComplete(cb func(T)) {
	f.mu.Lock()
	if !f.done.Load() {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	value := f.value
	f.mu.Unlock()
	cb(value)
}
