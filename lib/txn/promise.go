package txn

import (
	"time"

	"github.com/ValentinKolb/dOrder/lib/util"
)

// IPendingLockPromise is the pending result of a pending transaction check
type IPendingLockPromise interface {
	// IsReady reports whether the check completed
	IsReady() bool
	// HasTimedOut reports whether the check completed because it timed out
	HasTimedOut() bool
	// RemainingTimeout returns what is left of the timeout after the check
	RemainingTimeout() time.Duration
	// AddListener registers a callback for the completion. It runs right away
	// if the check already completed.
	AddListener(listener func())
}

type pendingResult struct {
	timedOut  bool
	remaining time.Duration
}

type pendingPromise struct {
	f *util.Future[pendingResult]
}

func newPendingPromise() *pendingPromise {
	return &pendingPromise{f: util.NewFuture[pendingResult]()}
}

func readyPromise(remaining time.Duration) *pendingPromise {
	return &pendingPromise{f: util.CompletedFuture(pendingResult{remaining: remaining})}
}

func timedOutPromise() *pendingPromise {
	return &pendingPromise{f: util.CompletedFuture(pendingResult{timedOut: true})}
}

func (p *pendingPromise) IsReady() bool {
	return p.f.IsDone()
}

func (p *pendingPromise) HasTimedOut() bool {
	r, ok := p.f.Value()
	return ok && r.timedOut
}

func (p *pendingPromise) RemainingTimeout() time.Duration {
	r, _ := p.f.Value()
	return r.remaining
}

func (p *pendingPromise) AddListener(listener func()) {
	p.f.OnComplete(func(pendingResult) { listener() })
}
