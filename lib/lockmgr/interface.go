package lockmgr

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrNotOwner is returned when a key is released by someone who does not hold it
var ErrNotOwner = errors.New("lock is not held by this owner")

// LockState is the state of a lock request
type LockState int

const (
	Waiting LockState = iota
	Acquired
	TimedOut
)

func (s LockState) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Acquired:
		return "ACQUIRED"
	case TimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// ILockPromise is the pending result of a lock request
type ILockPromise interface {
	// IsAvailable reports whether the request completed (acquired or timed out)
	IsAvailable() bool
	// State returns Waiting until the request completed
	State() LockState
	// AddListener registers a callback for the completion. It runs right away
	// if the request already completed.
	AddListener(listener func(state LockState))
}

// ILockManager defines the interface of the lock manager.
type ILockManager interface {
	// Lock requests the lock of key for owner. The owner must not be empty.
	// Requesting a key the owner already holds succeeds without adding a hold.
	Lock(key, owner string, timeout time.Duration) ILockPromise

	// LockAll requests the locks of all keys for owner. The keys are acquired
	// in sorted order and share one deadline.
	LockAll(keys []string, owner string, timeout time.Duration) ILockPromise

	// Unlock releases key. It returns ErrNotOwner if owner does
	// not hold the lock.
	Unlock(key, owner string) error

	// UnlockAll releases every key owned by owner, ignoring the others.
	UnlockAll(keys []string, owner string)

	// Owner returns the current owner of key
	Owner(key string) (owner string, ok bool)

	// IsLocked reports whether any owner holds key
	IsLocked(key string) bool
}
