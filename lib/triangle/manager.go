package triangle

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dOrder/lib/cluster"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("triangle")

// ErrOutdatedTopology is returned by Next when the caller's topology is not the installed one
var ErrOutdatedTopology = errors.New("topology is not the installed topology")

type segmentInfo struct {
	mu         sync.Mutex
	topologyID int
	sent       uint64 // last sequence handed out by Next
	delivered  uint64 // last sequence marked delivered
}

// sync moves the segment to topologyID, restarting both sequences.
// Must be called with mu held.
func (s *segmentInfo) sync(topologyID int) {
	if topologyID > s.topologyID {
		s.topologyID = topologyID
		s.sent = 0
		s.delivered = 0
	}
}

// Manager is the triangle order manager of one node.
//
// Thread-safety: safe for concurrent use.
type Manager struct {
	topologyID atomic.Int64
	segments   *xsync.MapOf[int, *segmentInfo]

	mu        sync.Mutex
	onInstall []func(topologyID int)
}

// NewManager creates a manager without an installed topology
func NewManager() *Manager {
	m := &Manager{segments: xsync.NewMapOf[int, *segmentInfo]()}
	m.topologyID.Store(cluster.NoTopology)
	return m
}

// OnTopologyInstalled registers a callback that runs after every installed topology.
// Commands of that topology may have become next.
func (m *Manager) OnTopologyInstalled(cb func(topologyID int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInstall = append(m.onInstall, cb)
}

// TopologyID returns the installed topology id
func (m *Manager) TopologyID() int {
	return int(m.topologyID.Load())
}

// UpdateTopology installs a newer topology. Older ids are ignored.
func (m *Manager) UpdateTopology(topologyID int) {
	for {
		cur := m.topologyID.Load()
		if int64(topologyID) <= cur {
			return
		}
		if m.topologyID.CompareAndSwap(cur, int64(topologyID)) {
			break
		}
	}
	log.Infof("installed topology %d", topologyID)

	m.mu.Lock()
	callbacks := append([]func(int){}, m.onInstall...)
	m.mu.Unlock()
	for _, cb := range callbacks {
		cb(topologyID)
	}
}

// TopologyChanged makes the manager a cluster.ITopologyListener
func (m *Manager) TopologyChanged(topology *cluster.CacheTopology) {
	m.UpdateTopology(topology.ID)
}

func (m *Manager) segment(segment int) *segmentInfo {
	s, _ := m.segments.LoadOrCompute(segment, func() *segmentInfo {
		return &segmentInfo{topologyID: cluster.NoTopology}
	})
	return s
}

// Next allocates the next sequence number of a segment on the primary owner
func (m *Manager) Next(segment int, topologyID int) (uint64, error) {
	if cur := m.TopologyID(); topologyID != cur {
		return 0, errors.Wrapf(ErrOutdatedTopology, "segment %d: got %d, installed %d", segment, topologyID, cur)
	}
	s := m.segment(segment)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync(topologyID)
	s.sent++
	return s.sent, nil
}

// IsNext reports whether sequence is the next one to deliver in segment
func (m *Manager) IsNext(segment int, sequence uint64, topologyID int) bool {
	cur := m.TopologyID()
	if topologyID < cur {
		return true
	}
	if topologyID > cur {
		return false
	}
	s := m.segment(segment)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.topologyID < topologyID {
		return sequence == 1
	}
	return s.topologyID == topologyID && sequence == s.delivered+1
}

// IsNextAll reports whether every (segment, sequence) pair is next
func (m *Manager) IsNextAll(sequences map[int]uint64, topologyID int) bool {
	for segment, sequence := range sequences {
		if !m.IsNext(segment, sequence, topologyID) {
			return false
		}
	}
	return true
}

// MarkDelivered records sequence as delivered in segment. Marks of an older
// topology than the installed one, and marks of any sequence but the next
// one, are ignored.
func (m *Manager) MarkDelivered(segment int, sequence uint64, topologyID int) {
	if topologyID < m.TopologyID() {
		return
	}
	s := m.segment(segment)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync(topologyID)
	if s.topologyID != topologyID {
		return
	}
	if sequence != s.delivered+1 {
		log.Warningf("segment %d: ignoring delivery of %d out of order (expected %d)", segment, sequence, s.delivered+1)
		return
	}
	s.delivered = sequence
}

// MarkDeliveredAll marks every (segment, sequence) pair delivered
func (m *Manager) MarkDeliveredAll(sequences map[int]uint64, topologyID int) {
	for segment, sequence := range sequences {
		m.MarkDelivered(segment, sequence, topologyID)
	}
}

// Delivered returns the last delivered sequence of a segment in the installed topology
func (m *Manager) Delivered(segment int) uint64 {
	s := m.segment(segment)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.topologyID != m.TopologyID() {
		return 0
	}
	return s.delivered
}
