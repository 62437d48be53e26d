package command

import (
	"time"

	"github.com/ValentinKolb/dOrder/lib/cluster"
	"github.com/ValentinKolb/dOrder/lib/container"
	"github.com/ValentinKolb/dOrder/lib/lockmgr"
	"github.com/ValentinKolb/dOrder/lib/txn"
	"github.com/ValentinKolb/dOrder/lib/versioning"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ErrLockTimeout is returned by lock commands that run without holding their locks
var ErrLockTimeout = errors.New("unable to acquire lock")

// Kind names a command type
type Kind string

const (
	KindWrite            Kind = "write"
	KindBackupWrite      Kind = "backup-write"
	KindBackupMultiWrite Kind = "backup-multi-write"
	KindStateChunk       Kind = "state-chunk"
	KindLockControl      Kind = "lock-control"
	KindPrepare          Kind = "prepare"
	KindCommit           Kind = "commit"
	KindRollback         Kind = "rollback"
)

// Env is what commands run against
type Env struct {
	Container *container.Container
	Locks     lockmgr.ILockManager
	Pending   *txn.PendingLockManager
	Topology  *cluster.TopologyTracker
}

// IRemoteCommand is a command received from another node
type IRemoteCommand interface {
	CommandID() string
	Kind() Kind
	TopologyID() int
	Perform(env *Env) (any, error)
}

// IRemoteLockCommand is a command that needs the locks of its keys
type IRemoteLockCommand interface {
	IRemoteCommand
	KeysToLock() []string
	LockOwner() string
	// LockTimeout returns the requested lock timeout, zero for the node default
	LockTimeout() time.Duration
}

// ITransactionalRemoteLockCommand is a lock command of a transaction
type ITransactionalRemoteLockCommand interface {
	IRemoteLockCommand
	CreateContext(locks txn.ILockOwnership, pending txn.IPendingRegistry) txn.ITxInvocationContext
	// IsRetried reports whether the command is a retry of an earlier attempt
	IsRetried() bool
}

// ISequencedCommand is a backup write ordered within one segment
type ISequencedCommand interface {
	IRemoteCommand
	Segment() int
	Sequence() uint64
}

// IMultiSequencedCommand is a backup write ordered within several segments
type IMultiSequencedCommand interface {
	IRemoteCommand
	Sequences() map[int]uint64
}

// IPositionedCommand is applied in the order of a single position cursor
type IPositionedCommand interface {
	IRemoteCommand
	Position() uint64
}

// Base carries the fields every command has
type Base struct {
	ID       string `yaml:"id"`
	Topology int    `yaml:"topology"`
}

// NewBase creates a Base with a fresh command id
func NewBase(topologyID int) Base {
	return Base{ID: uuid.New().String(), Topology: topologyID}
}

func (b Base) CommandID() string { return b.ID }
func (b Base) TopologyID() int   { return b.Topology }

// Entry is one versioned write
type Entry struct {
	Key     string                  `yaml:"key"`
	Value   []byte                  `yaml:"value"`
	Version versioning.EntryVersion `yaml:"-"`
}

func applyAll(env *Env, entries []Entry) (int, error) {
	applied := 0
	for _, e := range entries {
		ok, err := env.Container.Apply(e.Key, e.Value, e.Version)
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

// holdsAll checks that owner holds the locks of every key this node is primary owner of
func holdsAll(env *Env, keys []string, owner string) bool {
	owned := keys
	if env.Topology != nil {
		owned = env.Topology.FilterPrimaryOwned(keys)
	}
	for _, k := range owned {
		if o, ok := env.Locks.Owner(k); !ok || o != owner {
			return false
		}
	}
	return true
}
