package lockmgr

import (
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"
)

var log = logger.GetLogger("lockmgr")

type waiter struct {
	owner   string
	promise *lockPromise
	timer   *time.Timer
}

// lockEntry is only accessed inside the Compute function of the lock table
type lockEntry struct {
	owner   string
	waiters []*waiter
}

func (e *lockEntry) idle() bool {
	return e.owner == "" && len(e.waiters) == 0
}

func (e *lockEntry) removeWaiter(w *waiter) bool {
	for i, cur := range e.waiters {
		if cur == w {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// LockManager is the in-memory ILockManager.
type LockManager struct {
	table *xsync.MapOf[string, *lockEntry]

	registry metrics.Registry
	wait     metrics.Timer
	acquired metrics.Meter
	timeouts metrics.Meter
}

// NewLockManager creates an empty lock manager with its own metrics registry
func NewLockManager() *LockManager {
	registry := metrics.NewRegistry()
	m := &LockManager{
		table:    xsync.NewMapOf[string, *lockEntry](),
		registry: registry,
		wait:     metrics.GetOrRegisterTimer("lock.wait", registry),
		acquired: metrics.GetOrRegisterMeter("lock.acquired", registry),
		timeouts: metrics.GetOrRegisterMeter("lock.timeouts", registry),
	}
	metrics.NewRegisteredFunctionalGauge("lock.keys", registry, func() int64 {
		return int64(m.table.Size())
	})
	return m
}

// Registry returns the metrics registry of the lock manager
func (m *LockManager) Registry() metrics.Registry {
	return m.registry
}

// ---- ILockManager ----

func (m *LockManager) Lock(key, owner string, timeout time.Duration) ILockPromise {
	start := time.Now()
	p := m.lock(key, owner, timeout)
	m.observe(p, start)
	return p
}

func (m *LockManager) lock(key, owner string, timeout time.Duration) *lockPromise {
	var result = Waiting
	var p *lockPromise

	m.table.Compute(key, func(e *lockEntry, loaded bool) (*lockEntry, bool) {
		if !loaded {
			e = &lockEntry{}
		}
		switch {
		case e.owner == "":
			e.owner = owner
			result = Acquired
		case e.owner == owner:
			result = Acquired
		case timeout <= 0:
			result = TimedOut
		default:
			p = newLockPromise()
			w := &waiter{owner: owner, promise: p}
			w.timer = time.AfterFunc(timeout, func() { m.expire(key, w) })
			e.waiters = append(e.waiters, w)
		}
		return e, e.idle()
	})

	if result != Waiting {
		p = completedLockPromise(result)
	} else {
		log.Debugf("%s waits for %s", owner, key)
	}
	return p
}

func (m *LockManager) LockAll(keys []string, owner string, timeout time.Duration) ILockPromise {
	start := time.Now()
	p := newLockPromise()
	m.lockChain(sortedUnique(keys), 0, owner, timeout > 0, start.Add(timeout), p)
	m.observe(p, start)
	return p
}

// lockChain acquires keys[i:] one after the other. Each step continues from
// the completion listener of the previous one, so LockAll never blocks.
func (m *LockManager) lockChain(keys []string, i int, owner string, wait bool, deadline time.Time, p *lockPromise) {
	if i == len(keys) {
		p.complete(Acquired)
		return
	}
	var remaining time.Duration
	if wait {
		remaining = time.Until(deadline)
	}
	m.lock(keys[i], owner, remaining).AddListener(func(state LockState) {
		if state == Acquired {
			m.lockChain(keys, i+1, owner, wait, deadline, p)
			return
		}
		m.UnlockAll(keys[:i], owner)
		p.complete(TimedOut)
	})
}

func (m *LockManager) Unlock(key, owner string) error {
	var next *waiter
	notOwner := false

	m.table.Compute(key, func(e *lockEntry, loaded bool) (*lockEntry, bool) {
		if !loaded || e.owner != owner {
			notOwner = true
			return e, !loaded
		}
		e.owner = ""
		if len(e.waiters) > 0 {
			next = e.waiters[0]
			e.waiters = e.waiters[1:]
			next.timer.Stop()
			e.owner = next.owner
		}
		return e, e.idle()
	})

	if notOwner {
		return ErrNotOwner
	}
	if next != nil {
		log.Debugf("%s handed to %s", key, next.owner)
		next.promise.complete(Acquired)
	}
	return nil
}

func (m *LockManager) UnlockAll(keys []string, owner string) {
	for _, key := range keys {
		if err := m.Unlock(key, owner); err != nil {
			log.Debugf("skipping release of %s by %s: %v", key, owner, err)
		}
	}
}

func (m *LockManager) Owner(key string) (string, bool) {
	// entries are mutated in place, so they are read under Compute as well
	owner := ""
	m.table.Compute(key, func(e *lockEntry, loaded bool) (*lockEntry, bool) {
		if loaded {
			owner = e.owner
		}
		return e, !loaded
	})
	return owner, owner != ""
}

func (m *LockManager) IsLocked(key string) bool {
	_, ok := m.Owner(key)
	return ok
}

// ---- internal ----

// expire times out a waiter that is still queued
func (m *LockManager) expire(key string, w *waiter) {
	expired := false
	m.table.Compute(key, func(e *lockEntry, loaded bool) (*lockEntry, bool) {
		if !loaded {
			return e, true
		}
		expired = e.removeWaiter(w)
		return e, e.idle()
	})
	if expired {
		log.Infof("lock request of %s for %s timed out", w.owner, key)
		w.promise.complete(TimedOut)
	}
}

func (m *LockManager) observe(p ILockPromise, start time.Time) {
	p.AddListener(func(state LockState) {
		if state == Acquired {
			m.acquired.Mark(1)
			m.wait.UpdateSince(start)
		} else {
			m.timeouts.Mark(1)
		}
	})
}
