package cluster

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dOrder/lib/util"
)

// NoTopology is the topology id reported before the first view was installed
const NoTopology = -1

// CacheTopology is the routing table derived from one view
type CacheTopology struct {
	ID          int
	NumSegments int
	Members     []string
	Owners      [][]string // owners per segment, primary first
}

// OwnersOf returns the owners of a segment, primary first
func (t *CacheTopology) OwnersOf(segment int) []string {
	if segment < 0 || segment >= len(t.Owners) {
		return nil
	}
	return t.Owners[segment]
}

// PrimaryOf returns the primary owner of a segment
func (t *CacheTopology) PrimaryOf(segment int) string {
	owners := t.OwnersOf(segment)
	if len(owners) == 0 {
		return ""
	}
	return owners[0]
}

// ITopologyListener is notified after a new topology was installed
type ITopologyListener interface {
	TopologyChanged(topology *CacheTopology)
}

// TopologyListenerFunc adapts a function to the ITopologyListener interface
type TopologyListenerFunc func(topology *CacheTopology)

func (f TopologyListenerFunc) TopologyChanged(topology *CacheTopology) { f(topology) }

// TopologyTracker maintains the current cache topology of the local node.
// It is an IViewListener and must be registered on the node's Notifier.
type TopologyTracker struct {
	numSegments int
	numOwners   int

	current       atomic.Pointer[CacheTopology]
	local         atomic.Pointer[string]
	firstAsMember atomic.Int64

	mu        sync.Mutex
	listeners []ITopologyListener
}

// NewTopologyTracker creates a tracker for the given segment and owner count
func NewTopologyTracker(numSegments, numOwners int) *TopologyTracker {
	if numSegments < 1 {
		numSegments = 1
	}
	if numOwners < 1 {
		numOwners = 1
	}
	t := &TopologyTracker{numSegments: numSegments, numOwners: numOwners}
	t.firstAsMember.Store(math.MaxInt64)
	return t
}

// AddListener registers a topology listener. If a topology is already
// installed the listener receives it immediately.
func (t *TopologyTracker) AddListener(l ITopologyListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
	if top := t.current.Load(); top != nil {
		l.TopologyChanged(top)
	}
}

// ViewChanged builds and installs the topology of the view
func (t *TopologyTracker) ViewChanged(view View) {
	top := &CacheTopology{
		ID:          int(view.ID),
		NumSegments: t.numSegments,
		Members:     append([]string(nil), view.Members...),
		Owners:      make([][]string, t.numSegments),
	}
	for segment := range top.Owners {
		top.Owners[segment] = rendezvousOwners(view.Members, segment, t.numOwners)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if cur := t.current.Load(); cur != nil && cur.ID >= top.ID {
		return
	}
	local := view.Local
	t.local.Store(&local)
	if view.IsMember(local) && t.firstAsMember.Load() == math.MaxInt64 {
		t.firstAsMember.Store(int64(top.ID))
		log.Infof("node %s joined the cluster in topology %d", local, top.ID)
	}
	t.current.Store(top)
	log.Infof("installed topology %d with %d members", top.ID, len(top.Members))

	for _, l := range t.listeners {
		l.TopologyChanged(top)
	}
}

// Topology returns the current topology or nil before the first view
func (t *TopologyTracker) Topology() *CacheTopology {
	return t.current.Load()
}

// TopologyID returns the current topology id, or NoTopology
func (t *TopologyTracker) TopologyID() int {
	if top := t.current.Load(); top != nil {
		return top.ID
	}
	return NoTopology
}

// FirstTopologyAsMember returns the id of the first topology that contained
// the local node, or math.MaxInt while the node has never been a member.
func (t *TopologyTracker) FirstTopologyAsMember() int {
	v := t.firstAsMember.Load()
	if v > math.MaxInt {
		return math.MaxInt
	}
	return int(v)
}

// NumSegments returns the number of routing segments
func (t *TopologyTracker) NumSegments() int {
	return t.numSegments
}

// SegmentOf maps a key to its routing segment
func (t *TopologyTracker) SegmentOf(key string) int {
	return util.SegmentOf(key, t.numSegments)
}

// IsPrimaryOwner reports whether the local node is the primary owner of key
func (t *TopologyTracker) IsPrimaryOwner(key string) bool {
	top := t.current.Load()
	local := t.local.Load()
	if top == nil || local == nil {
		return false
	}
	return top.PrimaryOf(t.SegmentOf(key)) == *local
}

// IsOwner reports whether the local node owns key (primary or backup)
func (t *TopologyTracker) IsOwner(key string) bool {
	top := t.current.Load()
	local := t.local.Load()
	if top == nil || local == nil {
		return false
	}
	for _, o := range top.OwnersOf(t.SegmentOf(key)) {
		if o == *local {
			return true
		}
	}
	return false
}

// FilterPrimaryOwned returns the keys the local node is the primary owner of,
// preserving their order.
func (t *TopologyTracker) FilterPrimaryOwned(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if t.IsPrimaryOwner(k) {
			out = append(out, k)
		}
	}
	return out
}

// rendezvousOwners picks the n members with the highest score for the segment
func rendezvousOwners(members []string, segment int, n int) []string {
	if len(members) == 0 {
		return nil
	}
	type scored struct {
		member string
		score  uint64
	}
	scores := make([]scored, len(members))
	for i, m := range members {
		scores[i] = scored{member: m, score: util.HashString(m, uint64(segment)+1)}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].member < scores[j].member
	})
	if n > len(scores) {
		n = len(scores)
	}
	owners := make([]string, n)
	for i := 0; i < n; i++ {
		owners[i] = scores[i].member
	}
	return owners
}
