// Package lockmgr implements the in-memory, promise-based lock manager used
// by the lock acquisition action.
//
// Locks are exclusive and granted to waiters in FIFO order per key. A
// request by the current owner succeeds at once without counting holds, so
// one Unlock always frees the key. Lock requests never block: they return an
// ILockPromise that completes with Acquired or TimedOut. Callers either poll
// IsAvailable or register a listener.
//
// Core Functionality:
//   - Lock:      acquire one key for an owner with a timeout
//   - LockAll:   acquire several keys in sorted key order (deadlock
//     avoidance) with one shared deadline; keys acquired so far are released
//     again if a later key times out
//   - Unlock:    release a key, handing it to the next waiter
//   - Owner / IsLocked: inspect the lock table
//
// A timeout of zero turns a request into a try-lock: it completes
// immediately, either Acquired or TimedOut.
//
// Implementation Approach:
//
//	The lock table is an xsync.MapOf keyed by the lock key. Every mutation of
//	an entry runs inside MapOf.Compute, which serializes operations per key
//	without a global mutex. Idle entries are removed from the table. Waiter
//	timeouts are armed with time.AfterFunc; granting a waiter stops its timer
//	and a fired timer only expires a waiter that is still queued. Promise
//	listeners run after Compute returned, so they may call back into the
//	lock manager.
//
// Metrics:
//
//	Each manager owns a go-metrics registry with a lock wait timer, meters for
//	acquired and timed out requests and a gauge of locked keys. The registry
//	is served by the status endpoint.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager()
//	owner := lockmgr.NewOwner()
//
//	p := locks.Lock("resource:123", owner, 2*time.Second)
//	p.AddListener(func(state lockmgr.LockState) {
//	    if state == lockmgr.Acquired {
//	        // use the resource, then
//	        _ = locks.Unlock("resource:123", owner)
//	    }
//	})
package lockmgr
