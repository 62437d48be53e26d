package action

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dOrder/lib/util"
)

// IReadyAction is a complete admission unit the dispatcher polls
type IReadyAction interface {
	// IsReady reports whether the command may run (or was canceled)
	IsReady() bool
	// AddListener registers a callback that fires once, when IsReady turns true
	AddListener(listener Listener)
	OnException()
	OnFinally()
}

// ---- default ready action ----

// DefaultReadyAction checks its actions in order behind a single cursor.
// Once an action is canceled the remaining actions are never checked.
type DefaultReadyAction struct {
	state    *State
	actions  []IAction
	cursor   atomic.Int32
	canceled atomic.Bool
	notifier *util.Future[struct{}]
}

// NewDefaultReadyAction chains actions for state
func NewDefaultReadyAction(state *State, actions ...IAction) *DefaultReadyAction {
	d := &DefaultReadyAction{
		state:    state,
		actions:  actions,
		notifier: util.NewFuture[struct{}](),
	}
	for _, a := range actions {
		a.AddListener(d.onActionChanged)
	}
	return d
}

func (d *DefaultReadyAction) IsReady() bool {
	n := int32(len(d.actions))
	for {
		i := d.cursor.Load()
		if i >= n {
			d.notifier.Complete(struct{}{})
			return true
		}
		switch d.actions[i].Check(d.state) {
		case Ready:
			d.cursor.CompareAndSwap(i, i+1)
		case Canceled:
			d.canceled.Store(true)
			d.cursor.Store(n)
		default:
			return false
		}
	}
}

// IsCanceled reports whether one of the actions canceled the command
func (d *DefaultReadyAction) IsCanceled() bool {
	return d.canceled.Load()
}

// State returns the shared state of the actions
func (d *DefaultReadyAction) State() *State {
	return d.state
}

func (d *DefaultReadyAction) AddListener(listener Listener) {
	d.notifier.OnComplete(func(struct{}) { listener() })
}

func (d *DefaultReadyAction) OnException() {
	for _, a := range d.actions {
		a.OnException(d.state)
	}
}

func (d *DefaultReadyAction) OnFinally() {
	for _, a := range d.actions {
		a.OnFinally(d.state)
	}
}

func (d *DefaultReadyAction) onActionChanged() {
	d.IsReady()
}

// ---- composite action ----

// CompositeAction is ready when all of its ready actions are ready
type CompositeAction struct {
	actions []IReadyAction

	mu        sync.Mutex
	notified  atomic.Bool
	listeners []Listener
}

// NewCompositeAction joins actions into one unit
func NewCompositeAction(actions ...IReadyAction) *CompositeAction {
	c := &CompositeAction{actions: actions}
	for _, a := range actions {
		a.AddListener(c.onComplete)
	}
	return c
}

func (c *CompositeAction) IsReady() bool {
	for _, a := range c.actions {
		if !a.IsReady() {
			return false
		}
	}
	return true
}

func (c *CompositeAction) AddListener(listener Listener) {
	c.mu.Lock()
	if !c.notified.Load() {
		c.listeners = append(c.listeners, listener)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	listener()
}

func (c *CompositeAction) OnException() {
	for _, a := range c.actions {
		a.OnException()
	}
}

func (c *CompositeAction) OnFinally() {
	for _, a := range c.actions {
		a.OnFinally()
	}
}

func (c *CompositeAction) onComplete() {
	if !c.IsReady() {
		return
	}
	c.mu.Lock()
	if !c.notified.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return
	}
	listeners := c.listeners
	c.listeners = nil
	c.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}
