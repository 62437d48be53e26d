package txn

// ITxInvocationContext is the transactional context of a remote lock command
type ITxInvocationContext interface {
	// LockOwner returns the owner used for every lock of the transaction
	LockOwner() string
	// TopologyID returns the topology the transaction was prepared in
	TopologyID() int
	// CleanupBackupLocks drops the pending registration left by an earlier
	// attempt of the same transaction.
	CleanupBackupLocks()
	// LockedKeys returns the keys of the transaction its owner already holds
	LockedKeys() []string
}

// ILockOwnership is the part of the lock manager a context needs
type ILockOwnership interface {
	Owner(key string) (owner string, ok bool)
}

// IPendingRegistry is the part of the pending lock manager a context needs
type IPendingRegistry interface {
	Release(owner string)
}

// TxContext is the ITxInvocationContext of a remote prepare
type TxContext struct {
	owner      string
	topologyID int
	keys       []string
	locks      ILockOwnership
	pending    IPendingRegistry
}

// NewTxContext creates the context of a transaction over keys
func NewTxContext(owner string, topologyID int, keys []string, locks ILockOwnership, pending IPendingRegistry) *TxContext {
	return &TxContext{
		owner:      owner,
		topologyID: topologyID,
		keys:       keys,
		locks:      locks,
		pending:    pending,
	}
}

func (c *TxContext) LockOwner() string { return c.owner }

func (c *TxContext) TopologyID() int { return c.topologyID }

func (c *TxContext) CleanupBackupLocks() {
	if c.pending != nil {
		c.pending.Release(c.owner)
	}
}

func (c *TxContext) LockedKeys() []string {
	if c.locks == nil {
		return nil
	}
	var locked []string
	for _, k := range c.keys {
		if owner, ok := c.locks.Owner(k); ok && owner == c.owner {
			locked = append(locked, k)
		}
	}
	return locked
}
