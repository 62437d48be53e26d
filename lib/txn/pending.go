package txn

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dOrder/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("txn")

type pendingTx struct {
	owner      string
	topologyID int
	keys       map[string]struct{}
	released   *util.Future[struct{}]
}

// PendingLockManager tracks prepared transactions until they are released.
//
// Thread-safety: safe for concurrent use.
type PendingLockManager struct {
	txs *xsync.MapOf[string, *pendingTx]
}

// NewPendingLockManager creates an empty manager
func NewPendingLockManager() *PendingLockManager {
	return &PendingLockManager{txs: xsync.NewMapOf[string, *pendingTx]()}
}

// Track registers the transaction of owner. Tracking an owner again adds the
// keys to the existing registration.
func (m *PendingLockManager) Track(owner string, topologyID int, keys []string) {
	m.txs.Compute(owner, func(old *pendingTx, loaded bool) (*pendingTx, bool) {
		tx := &pendingTx{owner: owner, topologyID: topologyID, keys: make(map[string]struct{}, len(keys))}
		if loaded {
			for k := range old.keys {
				tx.keys[k] = struct{}{}
			}
			tx.topologyID = old.topologyID
			tx.released = old.released
		} else {
			tx.released = util.NewFuture[struct{}]()
		}
		for _, k := range keys {
			tx.keys[k] = struct{}{}
		}
		return tx, false
	})
}

// Release removes the transaction of owner and wakes everyone waiting for it
func (m *PendingLockManager) Release(owner string) {
	if tx, ok := m.txs.LoadAndDelete(owner); ok {
		tx.released.Complete(struct{}{})
		log.Debugf("released pending transaction %s", owner)
	}
}

// IsPending reports whether owner has a tracked transaction
func (m *PendingLockManager) IsPending(owner string) bool {
	_, ok := m.txs.Load(owner)
	return ok
}

// Keys returns the sorted keys tracked for owner
func (m *PendingLockManager) Keys(owner string) []string {
	tx, ok := m.txs.Load(owner)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(tx.keys))
	for k := range tx.keys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Size returns the number of tracked transactions
func (m *PendingLockManager) Size() int {
	return m.txs.Size()
}

// CheckPendingTransactionsForKey waits for older transactions touching key
func (m *PendingLockManager) CheckPendingTransactionsForKey(ctx ITxInvocationContext, key string, timeout time.Duration) IPendingLockPromise {
	return m.CheckPendingTransactionsForKeys(ctx, []string{key}, timeout)
}

// CheckPendingTransactionsForKeys waits for older transactions touching any of keys
func (m *PendingLockManager) CheckPendingTransactionsForKeys(ctx ITxInvocationContext, keys []string, timeout time.Duration) IPendingLockPromise {
	start := time.Now()

	var blockers []*pendingTx
	m.txs.Range(func(owner string, tx *pendingTx) bool {
		if owner == ctx.LockOwner() || tx.topologyID >= ctx.TopologyID() {
			return true
		}
		if slices.ContainsFunc(keys, func(k string) bool { _, ok := tx.keys[k]; return ok }) {
			blockers = append(blockers, tx)
		}
		return true
	})

	if len(blockers) == 0 {
		return readyPromise(timeout)
	}
	if timeout <= 0 {
		return timedOutPromise()
	}

	log.Debugf("%s waits for %d older transactions", ctx.LockOwner(), len(blockers))
	p := newPendingPromise()
	timer := time.AfterFunc(timeout, func() {
		if p.f.Complete(pendingResult{timedOut: true}) {
			log.Infof("pending transaction check of %s timed out after %v", ctx.LockOwner(), timeout)
		}
	})

	var outstanding atomic.Int32
	outstanding.Store(int32(len(blockers)))
	for _, tx := range blockers {
		tx.released.OnComplete(func(struct{}) {
			if outstanding.Add(-1) != 0 {
				return
			}
			timer.Stop()
			remaining := timeout - time.Since(start)
			if remaining <= 0 {
				p.f.Complete(pendingResult{timedOut: true})
				return
			}
			p.f.Complete(pendingResult{remaining: remaining})
		})
	}
	return p
}
