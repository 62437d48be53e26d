package cluster

import (
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("cluster")

type listenerEntry struct {
	id       uint64
	listener IViewListener
}

// Notifier distributes views to its listeners. Views whose id is not newer
// than the last published one are dropped, and a listener that registers
// after the first view immediately receives the latest view.
type Notifier struct {
	publishMu sync.Mutex // serializes delivery so listeners see views in order

	mu        sync.Mutex
	listeners []listenerEntry
	nextID    uint64
	latest    *View
}

// NewNotifier creates a notifier without any view
func NewNotifier() *Notifier {
	return &Notifier{}
}

// AddListener registers a listener and returns a function that removes it again
func (n *Notifier) AddListener(l IViewListener) (remove func()) {
	n.publishMu.Lock()
	defer n.publishMu.Unlock()

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, listenerEntry{id: id, listener: l})
	latest := n.latest
	n.mu.Unlock()

	if latest != nil {
		l.ViewChanged(*latest)
	}

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, e := range n.listeners {
			if e.id == id {
				n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish installs a new view and notifies every listener. It returns false if
// the view was ignored because it is not newer than the current one.
func (n *Notifier) Publish(view View) bool {
	n.publishMu.Lock()
	defer n.publishMu.Unlock()

	n.mu.Lock()
	if n.latest != nil && view.ID <= n.latest.ID {
		n.mu.Unlock()
		log.Debugf("ignoring %s, current is %s", view, n.latest)
		return false
	}
	view.Members = append([]string(nil), view.Members...)
	n.latest = &view
	listeners := append([]listenerEntry(nil), n.listeners...)
	n.mu.Unlock()

	log.Infof("installing %s (local=%s, rank=%d)", view, view.Local, view.Rank())
	for _, e := range listeners {
		e.listener.ViewChanged(view)
	}
	return true
}

// Latest returns the last published view
func (n *Notifier) Latest() (View, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.latest == nil {
		return View{}, false
	}
	return *n.latest, true
}

// PublishStatic publishes the single view of a static cluster
func PublishStatic(n *Notifier, members []string, local string) {
	n.Publish(View{ID: 1, Members: members, Local: local})
}
