package versioning

import (
	"sync"

	"github.com/ValentinKolb/dOrder/lib/cluster"
)

// RankCalculator keeps the rank prefix of clustered numeric generators in
// sync with the cluster view. The rank of a node is its 1-based position in
// the member list of the view.
type RankCalculator struct {
	notifier *cluster.Notifier

	mu         sync.Mutex
	generators []*NumericVersionGenerator
	last       *cluster.View
	remove     func()
}

// NewRankCalculator creates a calculator for the views of notifier
func NewRankCalculator(notifier *cluster.Notifier) *RankCalculator {
	return &RankCalculator{notifier: notifier}
}

// Register adds a generator. It receives the prefix of the latest view right away.
func (r *RankCalculator) Register(g *NumericVersionGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators = append(r.generators, g)
	if r.last != nil {
		applyRank(*r.last, g)
	}
}

// Start subscribes to view changes
func (r *RankCalculator) Start() {
	remove := r.notifier.AddListener(r)
	r.mu.Lock()
	r.remove = remove
	r.mu.Unlock()
}

// Stop unsubscribes from view changes. Generators keep their last prefix.
func (r *RankCalculator) Stop() {
	r.mu.Lock()
	remove := r.remove
	r.remove = nil
	r.mu.Unlock()
	if remove != nil {
		remove()
	}
}

// ViewChanged recomputes the rank and updates every registered generator
func (r *RankCalculator) ViewChanged(view cluster.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if view.Rank() == 0 {
		log.Warningf("%s is not a member of %s, keeping previous version prefix", view.Local, view)
		return
	}
	r.last = &view
	for _, g := range r.generators {
		applyRank(view, g)
	}
	log.Infof("rank of %s is %d in view %d", view.Local, view.Rank(), view.ID)
}

func applyRank(view cluster.View, g *NumericVersionGenerator) {
	g.SetRank(view.ID, uint32(view.Rank()))
}
