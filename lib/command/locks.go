package command

import (
	"slices"
	"time"

	"github.com/ValentinKolb/dOrder/lib/txn"
)

// ---- lock control ----

// LockControlCommand locks or unlocks keys for an owner
type LockControlCommand struct {
	Base
	Keys    []string
	Owner   string
	Timeout time.Duration
	Unlock  bool
}

func NewLockControlCommand(topologyID int, owner string, keys []string, timeout time.Duration, unlock bool) *LockControlCommand {
	return &LockControlCommand{Base: NewBase(topologyID), Keys: keys, Owner: owner, Timeout: timeout, Unlock: unlock}
}

func (c *LockControlCommand) Kind() Kind { return KindLockControl }

// KeysToLock is empty for unlock requests, they need no lock gate
func (c *LockControlCommand) KeysToLock() []string {
	if c.Unlock {
		return nil
	}
	return c.Keys
}

func (c *LockControlCommand) LockOwner() string          { return c.Owner }
func (c *LockControlCommand) LockTimeout() time.Duration { return c.Timeout }

// Perform releases the keys for unlock requests. Lock requests fail with
// ErrLockTimeout when the owner does not hold every primary owned key.
func (c *LockControlCommand) Perform(env *Env) (any, error) {
	if c.Unlock {
		env.Locks.UnlockAll(c.Keys, c.Owner)
		return len(c.Keys), nil
	}
	if !holdsAll(env, c.Keys, c.Owner) {
		return nil, ErrLockTimeout
	}
	return true, nil
}

// ---- prepare ----

// PrepareCommand is the prepare phase of a transaction on a remote owner
type PrepareCommand struct {
	Base
	Owner   string
	Keys    []string
	Timeout time.Duration
	Retried bool
}

func NewPrepareCommand(topologyID int, owner string, keys []string, timeout time.Duration) *PrepareCommand {
	return &PrepareCommand{Base: NewBase(topologyID), Owner: owner, Keys: keys, Timeout: timeout}
}

// Retry returns a retried copy of the prepare with a new command id
func (c *PrepareCommand) Retry() *PrepareCommand {
	r := *c
	r.Base = NewBase(c.Topology)
	r.Retried = true
	return &r
}

func (c *PrepareCommand) Kind() Kind                 { return KindPrepare }
func (c *PrepareCommand) KeysToLock() []string       { return c.Keys }
func (c *PrepareCommand) LockOwner() string          { return c.Owner }
func (c *PrepareCommand) LockTimeout() time.Duration { return c.Timeout }
func (c *PrepareCommand) IsRetried() bool            { return c.Retried }

func (c *PrepareCommand) CreateContext(locks txn.ILockOwnership, pending txn.IPendingRegistry) txn.ITxInvocationContext {
	return txn.NewTxContext(c.Owner, c.Topology, c.Keys, locks, pending)
}

// Perform registers the transaction as pending once it holds its locks
func (c *PrepareCommand) Perform(env *Env) (any, error) {
	if !holdsAll(env, c.Keys, c.Owner) {
		return nil, ErrLockTimeout
	}
	env.Pending.Track(c.Owner, c.Topology, c.Keys)
	return true, nil
}

// ---- commit / rollback ----

// CommitCommand applies the writes of a prepared transaction and releases it
type CommitCommand struct {
	Base
	Owner  string
	Writes []Entry
}

func NewCommitCommand(topologyID int, owner string, writes []Entry) *CommitCommand {
	return &CommitCommand{Base: NewBase(topologyID), Owner: owner, Writes: writes}
}

func (c *CommitCommand) Kind() Kind { return KindCommit }

// Perform returns the number of applied writes
func (c *CommitCommand) Perform(env *Env) (any, error) {
	defer c.release(env)
	return applyAll(env, c.Writes)
}

func (c *CommitCommand) release(env *Env) {
	keys := make([]string, len(c.Writes))
	for i, w := range c.Writes {
		keys[i] = w.Key
	}
	releaseTx(env, c.Owner, keys)
}

// RollbackCommand releases a prepared transaction without applying anything
type RollbackCommand struct {
	Base
	Owner string
	Keys  []string
}

func NewRollbackCommand(topologyID int, owner string, keys []string) *RollbackCommand {
	return &RollbackCommand{Base: NewBase(topologyID), Owner: owner, Keys: keys}
}

func (c *RollbackCommand) Kind() Kind { return KindRollback }

func (c *RollbackCommand) Perform(env *Env) (any, error) {
	releaseTx(env, c.Owner, c.Keys)
	return true, nil
}

// releaseTx unlocks keys together with every key prepared by owner and drops
// the pending registration
func releaseTx(env *Env, owner string, keys []string) {
	all := append(slices.Clone(keys), env.Pending.Keys(owner)...)
	slices.Sort(all)
	env.Locks.UnlockAll(slices.Compact(all), owner)
	env.Pending.Release(owner)
}
