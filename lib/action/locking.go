package action

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dOrder/lib/command"
	"github.com/ValentinKolb/dOrder/lib/lockmgr"
	"github.com/ValentinKolb/dOrder/lib/txn"
	"github.com/ValentinKolb/dOrder/lib/util"
)

// IKeyFilter selects the keys the local node is the primary owner of
type IKeyFilter interface {
	FilterPrimaryOwned(keys []string) []string
}

// IPendingLockManager is the pending transaction collaborator of PendingTxAction
type IPendingLockManager interface {
	txn.IPendingRegistry
	CheckPendingTransactionsForKey(ctx txn.ITxInvocationContext, key string, timeout time.Duration) txn.IPendingLockPromise
	CheckPendingTransactionsForKeys(ctx txn.ITxInvocationContext, keys []string, timeout time.Duration) txn.IPendingLockPromise
}

// ---- base locking state machine ----

type internalState int32

const (
	stateInit internalState = iota
	stateChecking
	stateMakeReady
	stateReady
	stateCanceled
)

// baseLockingAction is the compare-and-swap state machine of the locking gates
type baseLockingAction struct {
	state    atomic.Int32
	filter   IKeyFilter
	notifier *util.Future[struct{}]
}

func newBaseLockingAction(filter IKeyFilter) baseLockingAction {
	return baseLockingAction{filter: filter, notifier: util.NewFuture[struct{}]()}
}

func (b *baseLockingAction) cas(from, to internalState) bool {
	return b.state.CompareAndSwap(int32(from), int32(to))
}

func (b *baseLockingAction) current() internalState {
	return internalState(b.state.Load())
}

// check dispatches on the internal state
func (b *baseLockingAction) check(state *State, init, checking func(*State) Status) Status {
	switch b.current() {
	case stateInit:
		return init(state)
	case stateChecking:
		return checking(state)
	case stateMakeReady:
		return NotReady
	case stateReady:
		return Ready
	default:
		return Canceled
	}
}

// finish moves from checking straight to a terminal state
func (b *baseLockingAction) finish(status Status) Status {
	to := stateReady
	if status == Canceled {
		to = stateCanceled
	}
	b.cas(stateChecking, to)
	b.notify()
	return b.terminal()
}

// finalize runs fn on the single goroutine that wins checking -> make-ready
// and installs its result. Losers observe NotReady until the winner is done.
func (b *baseLockingAction) finalize(fn func() Status) Status {
	if !b.cas(stateChecking, stateMakeReady) {
		return b.terminal()
	}
	to := stateReady
	if fn() == Canceled {
		to = stateCanceled
	}
	b.cas(stateMakeReady, to)
	b.notify()
	return b.terminal()
}

// terminal maps the current internal state to the externally visible status
func (b *baseLockingAction) terminal() Status {
	switch b.current() {
	case stateReady:
		return Ready
	case stateCanceled:
		return Canceled
	default:
		return NotReady
	}
}

func (b *baseLockingAction) notify() {
	b.notifier.Complete(struct{}{})
}

func (b *baseLockingAction) AddListener(listener Listener) {
	b.notifier.OnComplete(func(struct{}) { listener() })
}

func (b *baseLockingAction) OnException(*State) {}

// OnFinally is empty: locks are released by the command, not by the gate
func (b *baseLockingAction) OnFinally(*State) {}

// getAndUpdateFilteredKeys returns the primary owned keys of the command,
// computing them once per state.
func (b *baseLockingAction) getAndUpdateFilteredKeys(state *State) []string {
	if keys, ok := state.FilteredKeys(); ok {
		return keys
	}
	var keys []string
	if lc, ok := state.Command().(command.IRemoteLockCommand); ok {
		keys = b.filter.FilterPrimaryOwned(lc.KeysToLock())
	}
	return state.SetFilteredKeys(keys)
}

// ---- lock action ----

// LockAction acquires the locks of the primary owned keys of a lock command.
// A timed out lock request is Ready as well; the command detects that it
// does not hold its locks and fails.
type LockAction struct {
	baseLockingAction
	locks   lockmgr.ILockManager
	promise atomic.Pointer[lockmgr.ILockPromise]
}

// NewLockAction creates a lock gate
func NewLockAction(locks lockmgr.ILockManager, filter IKeyFilter) *LockAction {
	return &LockAction{baseLockingAction: newBaseLockingAction(filter), locks: locks}
}

func (a *LockAction) Check(state *State) Status {
	return a.check(state, a.init, a.checking)
}

func (a *LockAction) init(state *State) Status {
	if !a.cas(stateInit, stateChecking) {
		return a.Check(state)
	}

	keys := a.getAndUpdateFilteredKeys(state)
	if len(keys) == 0 {
		return a.finish(Ready)
	}

	lc := state.Command().(command.IRemoteLockCommand)
	var p lockmgr.ILockPromise
	if len(keys) == 1 {
		p = a.locks.Lock(keys[0], lc.LockOwner(), state.Timeout())
	} else {
		p = a.locks.LockAll(keys, lc.LockOwner(), state.Timeout())
	}
	a.promise.Store(&p)

	if !p.IsAvailable() {
		log.Debugf("%s waits for locks of %v", lc.CommandID(), keys)
		p.AddListener(func(lockmgr.LockState) { a.Check(state) })
	}
	return a.checking(state)
}

func (a *LockAction) checking(*State) Status {
	p := a.promise.Load()
	if p == nil || !(*p).IsAvailable() {
		return NotReady
	}
	return a.finalize(func() Status { return Ready })
}

// ---- pending transaction action ----

// PendingTxAction waits until no older transaction holds or waits for the
// keys of a transactional lock command.
type PendingTxAction struct {
	baseLockingAction
	pending IPendingLockManager
	locks   txn.ILockOwnership
	promise atomic.Pointer[txn.IPendingLockPromise]
}

// NewPendingTxAction creates a pending transaction gate
func NewPendingTxAction(pending IPendingLockManager, locks txn.ILockOwnership, filter IKeyFilter) *PendingTxAction {
	return &PendingTxAction{baseLockingAction: newBaseLockingAction(filter), pending: pending, locks: locks}
}

func (a *PendingTxAction) Check(state *State) Status {
	return a.check(state, a.init, a.checking)
}

func (a *PendingTxAction) init(state *State) Status {
	if !a.cas(stateInit, stateChecking) {
		return a.Check(state)
	}

	tc, ok := state.Command().(command.ITransactionalRemoteLockCommand)
	if !ok {
		log.Warningf("%s is not transactional, canceling pending transaction check", state.Command().CommandID())
		return a.finish(Canceled)
	}

	keys := a.getAndUpdateFilteredKeys(state)
	if len(keys) == 0 {
		return a.finish(Ready)
	}

	ctx := tc.CreateContext(a.locks, a.pending)
	if tc.IsRetried() {
		ctx.CleanupBackupLocks()
		locked := ctx.LockedKeys()
		keys = slices.DeleteFunc(slices.Clone(keys), func(k string) bool { return slices.Contains(locked, k) })
		if len(keys) == 0 {
			return a.finish(Ready)
		}
	}

	var p txn.IPendingLockPromise
	if len(keys) == 1 {
		p = a.pending.CheckPendingTransactionsForKey(ctx, keys[0], state.Timeout())
	} else {
		p = a.pending.CheckPendingTransactionsForKeys(ctx, keys, state.Timeout())
	}
	a.promise.Store(&p)

	if !p.IsReady() {
		p.AddListener(func() { a.Check(state) })
	}
	return a.checking(state)
}

func (a *PendingTxAction) checking(state *State) Status {
	p := a.promise.Load()
	if p == nil || !(*p).IsReady() {
		return NotReady
	}
	return a.finalize(func() Status {
		if (*p).HasTimedOut() {
			log.Infof("pending transactions of %s timed out", state.Command().CommandID())
			return Canceled
		}
		state.UpdateTimeout((*p).RemainingTimeout())
		return Ready
	})
}
