package action

import (
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dOrder/lib/command"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("action")

// Status is the result of an action check
type Status int

const (
	NotReady Status = iota
	Ready
	Canceled
)

func (s Status) String() string {
	switch s {
	case NotReady:
		return "NOT_READY"
	case Ready:
		return "READY"
	case Canceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Listener is called when an action may have changed its status
type Listener func()

// IAction is one admission gate of a command
type IAction interface {
	// Check returns the status of the gate. It must be idempotent.
	Check(state *State) Status
	// AddListener registers a wake-up for gates that complete asynchronously
	AddListener(listener Listener)
	// OnException is called if the command failed
	OnException(state *State)
	// OnFinally is called once after the command finished or was canceled
	OnFinally(state *State)
}

// noHooks provides the optional IAction methods for synchronous gates
type noHooks struct{}

func (noHooks) AddListener(Listener) {}
func (noHooks) OnException(*State)   {}
func (noHooks) OnFinally(*State)     {}

// ---- state ----

// State is the context shared by every action of one command
type State struct {
	cmd          command.IRemoteCommand
	timeout      atomic.Int64
	filteredKeys atomic.Pointer[[]string]
}

// NewState creates the state of cmd. Lock commands that request their own
// timeout override defaultTimeout.
func NewState(cmd command.IRemoteCommand, defaultTimeout time.Duration) *State {
	s := &State{cmd: cmd}
	timeout := defaultTimeout
	if lc, ok := cmd.(command.IRemoteLockCommand); ok && lc.LockTimeout() > 0 {
		timeout = lc.LockTimeout()
	}
	s.timeout.Store(int64(timeout))
	return s
}

// Command returns the command the state belongs to
func (s *State) Command() command.IRemoteCommand {
	return s.cmd
}

// TopologyID returns the topology id the command was sent in
func (s *State) TopologyID() int {
	return s.cmd.TopologyID()
}

// Timeout returns the remaining timeout of the command
func (s *State) Timeout() time.Duration {
	return time.Duration(s.timeout.Load())
}

// UpdateTimeout replaces the remaining timeout
func (s *State) UpdateTimeout(timeout time.Duration) {
	s.timeout.Store(int64(timeout))
}

// FilteredKeys returns the cached primary owned keys
func (s *State) FilteredKeys() ([]string, bool) {
	if p := s.filteredKeys.Load(); p != nil {
		return *p, true
	}
	return nil, false
}

// SetFilteredKeys caches keys unless another goroutine already did, and
// returns the cached value. Racing writers compute the same keys.
func (s *State) SetFilteredKeys(keys []string) []string {
	if s.filteredKeys.CompareAndSwap(nil, &keys) {
		return keys
	}
	return *s.filteredKeys.Load()
}
