package action

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dOrder/lib/txn"
)

// keepAll treats the local node as primary owner of every key
type keepAll struct{}

func (keepAll) FilterPrimaryOwned(keys []string) []string { return keys }

// fixedTopology reports a fixed first topology as member
type fixedTopology int

func (f fixedTopology) FirstTopologyAsMember() int { return int(f) }

// countingSignal counts CheckForReadyTasks calls
type countingSignal struct{ calls atomic.Int32 }

func (s *countingSignal) CheckForReadyTasks() { s.calls.Add(1) }

// fakePendingPromise is a manually completed IPendingLockPromise
type fakePendingPromise struct {
	mu             sync.Mutex
	ready          bool
	timedOut       bool
	remaining      time.Duration
	remainingCalls atomic.Int32
	listeners      []func()
}

func (p *fakePendingPromise) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

func (p *fakePendingPromise) HasTimedOut() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timedOut
}

func (p *fakePendingPromise) RemainingTimeout() time.Duration {
	p.remainingCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}

func (p *fakePendingPromise) AddListener(l func()) {
	p.mu.Lock()
	if !p.ready {
		p.listeners = append(p.listeners, l)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	l()
}

func (p *fakePendingPromise) complete(timedOut bool, remaining time.Duration) {
	p.mu.Lock()
	p.ready, p.timedOut, p.remaining = true, timedOut, remaining
	listeners := p.listeners
	p.listeners = nil
	p.mu.Unlock()
	for _, l := range listeners {
		l()
	}
}

// fakePending hands out one promise and records the checks
type fakePending struct {
	promise  *fakePendingPromise
	mu       sync.Mutex
	checked  [][]string
	timeouts []time.Duration
	released []string
}

func (f *fakePending) Release(owner string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, owner)
}

func (f *fakePending) CheckPendingTransactionsForKey(ctx txn.ITxInvocationContext, key string, timeout time.Duration) txn.IPendingLockPromise {
	return f.CheckPendingTransactionsForKeys(ctx, []string{key}, timeout)
}

func (f *fakePending) CheckPendingTransactionsForKeys(_ txn.ITxInvocationContext, keys []string, timeout time.Duration) txn.IPendingLockPromise {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, keys)
	f.timeouts = append(f.timeouts, timeout)
	return f.promise
}

// countingAction returns a scripted status and counts its calls
type countingAction struct {
	status     atomic.Int32
	checks     atomic.Int32
	exceptions atomic.Int32
	finallys   atomic.Int32
}

func newCountingAction(s Status) *countingAction {
	a := &countingAction{}
	a.status.Store(int32(s))
	return a
}

func (a *countingAction) Check(*State) Status {
	a.checks.Add(1)
	return Status(a.status.Load())
}

func (a *countingAction) AddListener(Listener) {}

func (a *countingAction) OnException(*State) { a.exceptions.Add(1) }

func (a *countingAction) OnFinally(*State) { a.finallys.Add(1) }

func (a *countingAction) set(s Status) { a.status.Store(int32(s)) }

// countingWrapper counts the hooks of a real action
type countingWrapper struct {
	IAction
	finallys atomic.Int32
}

func (w *countingWrapper) OnFinally(state *State) {
	w.finallys.Add(1)
	w.IAction.OnFinally(state)
}
