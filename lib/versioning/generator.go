package versioning

import (
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/dOrder/lib/cluster"
	"github.com/ValentinKolb/dOrder/lib/common"
	"github.com/ValentinKolb/dOrder/lib/util"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("versioning")

// IVersionGenerator creates and increments versions of one cache
type IVersionGenerator interface {
	// GenerateNew returns a fresh version
	GenerateNew() (EntryVersion, error)
	// Increment returns the successor of v. The non-existing version is
	// incremented to a fresh version.
	Increment(v EntryVersion) (EntryVersion, error)
	// NonExistingVersion returns the version of a key that was never written
	NonExistingVersion() EntryVersion
}

// NewGenerator creates the generator selected by kind. Clustered kinds are
// wired to the given rank calculator or topology tracker.
func NewGenerator(kind common.GeneratorKind, ranks *RankCalculator, topology *cluster.TopologyTracker) (IVersionGenerator, error) {
	switch kind {
	case common.GeneratorNumeric:
		return NewNumericVersionGenerator(), nil
	case common.GeneratorClustered:
		if ranks == nil {
			return nil, errors.New("clustered generator requires a rank calculator")
		}
		g := NewClusteredNumericVersionGenerator()
		ranks.Register(g)
		return g, nil
	case common.GeneratorSimpleClustered:
		if topology == nil {
			return nil, errors.New("simple clustered generator requires a topology tracker")
		}
		g := NewSimpleClusteredVersionGenerator()
		topology.AddListener(g)
		return g, nil
	case common.GeneratorRandom:
		return NewRandomVersionGenerator(), nil
	default:
		return nil, errors.Newf("unknown version generator %q", kind)
	}
}

// --------------------------------------------------------------------------
// Numeric version generator
// --------------------------------------------------------------------------

const (
	counterBits = 32
	counterMask = uint64(1)<<counterBits - 1
	rankMask    = uint64(0xFFFF)
	viewIDMask  = uint64(0xFFFF)
)

// RankPrefix returns (viewID << 48) | (rank << 32). Both inputs are truncated to 16 bits.
func RankPrefix(viewID uint64, rank uint32) uint64 {
	return (viewID&viewIDMask)<<48 | (uint64(rank)&rankMask)<<counterBits
}

type rankState struct {
	viewID uint64
	rank   uint32
	prefix uint64
}

// NumericVersionGenerator creates NumericVersions. In clustered mode the
// counter occupies the low 32 bits and the rank prefix the high 32 bits.
//
// Thread-safety: safe for concurrent use.
type NumericVersionGenerator struct {
	clustered bool
	counter   atomic.Uint64
	rank      atomic.Pointer[rankState]
}

// NewNumericVersionGenerator creates a generator for a local (non clustered) cache
func NewNumericVersionGenerator() *NumericVersionGenerator {
	return &NumericVersionGenerator{}
}

// NewClusteredNumericVersionGenerator creates a generator that needs a rank
// before it can produce versions. Register it on a RankCalculator.
func NewClusteredNumericVersionGenerator() *NumericVersionGenerator {
	return &NumericVersionGenerator{clustered: true}
}

// SetRank installs the prefix of a view. Views that are not newer than the
// installed one are ignored, the prefix never moves back.
func (g *NumericVersionGenerator) SetRank(viewID uint64, rank uint32) bool {
	next := &rankState{viewID: viewID, rank: rank, prefix: RankPrefix(viewID, rank)}
	for {
		cur := g.rank.Load()
		if cur != nil && viewID <= cur.viewID {
			return false
		}
		if g.rank.CompareAndSwap(cur, next) {
			log.Debugf("version prefix set to %#x (view=%d, rank=%d)", next.prefix, viewID, rank)
			return true
		}
	}
}

// Prefix returns the installed rank prefix
func (g *NumericVersionGenerator) Prefix() (uint64, bool) {
	if s := g.rank.Load(); s != nil {
		return s.prefix, true
	}
	return 0, false
}

func (g *NumericVersionGenerator) GenerateNew() (EntryVersion, error) {
	if !g.clustered {
		return NumericVersion{Version: g.counter.Add(1)}, nil
	}
	s := g.rank.Load()
	if s == nil {
		return nil, ErrRankNotInitialized
	}
	return NumericVersion{Version: s.prefix | (g.counter.Add(1) & counterMask)}, nil
}

func (g *NumericVersionGenerator) Increment(v EntryVersion) (EntryVersion, error) {
	if IsNonExisting(v) {
		return g.GenerateNew()
	}
	old, ok := v.(NumericVersion)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedVersion, "numeric generator cannot increment %s", v)
	}
	if !g.clustered {
		return NumericVersion{Version: old.Version + 1}, nil
	}
	s := g.rank.Load()
	if s == nil {
		return nil, ErrRankNotInitialized
	}
	// own prefix with the next counter, unless that would not be After old
	next := s.prefix | ((old.Version&counterMask + 1) & counterMask)
	if next > old.Version {
		return NumericVersion{Version: next}, nil
	}
	if old.Version == ^uint64(0) {
		return nil, errors.Wrapf(ErrVersionOverflow, "cannot increment %s", v)
	}
	log.Debugf("version %#x is not below prefix %#x, incrementing in place", old.Version, s.prefix)
	return NumericVersion{Version: old.Version + 1}, nil
}

func (g *NumericVersionGenerator) NonExistingVersion() EntryVersion {
	return NonExisting
}

// --------------------------------------------------------------------------
// Simple clustered version generator
// --------------------------------------------------------------------------

// SimpleClusteredVersionGenerator stamps versions with the current topology
// id. It is a cluster.ITopologyListener.
type SimpleClusteredVersionGenerator struct {
	topologyID atomic.Int64
}

// NewSimpleClusteredVersionGenerator creates a generator without topology
func NewSimpleClusteredVersionGenerator() *SimpleClusteredVersionGenerator {
	g := &SimpleClusteredVersionGenerator{}
	g.topologyID.Store(cluster.NoTopology)
	return g
}

// TopologyChanged moves the generator to a newer topology
func (g *SimpleClusteredVersionGenerator) TopologyChanged(topology *cluster.CacheTopology) {
	for {
		cur := g.topologyID.Load()
		if int64(topology.ID) <= cur {
			return
		}
		if g.topologyID.CompareAndSwap(cur, int64(topology.ID)) {
			return
		}
	}
}

func (g *SimpleClusteredVersionGenerator) current() (int, error) {
	id := g.topologyID.Load()
	if id == cluster.NoTopology {
		return 0, ErrRankNotInitialized
	}
	return int(id), nil
}

func (g *SimpleClusteredVersionGenerator) GenerateNew() (EntryVersion, error) {
	id, err := g.current()
	if err != nil {
		return nil, err
	}
	return SimpleClusteredVersion{TopologyID: id, Version: 1}, nil
}

func (g *SimpleClusteredVersionGenerator) Increment(v EntryVersion) (EntryVersion, error) {
	if IsNonExisting(v) {
		return g.GenerateNew()
	}
	old, ok := v.(SimpleClusteredVersion)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedVersion, "simple clustered generator cannot increment %s", v)
	}
	id, err := g.current()
	if err != nil {
		return nil, err
	}
	return SimpleClusteredVersion{TopologyID: id, Version: old.Version + 1}, nil
}

func (g *SimpleClusteredVersionGenerator) NonExistingVersion() EntryVersion {
	return NonExisting
}

// --------------------------------------------------------------------------
// Random version generator
// --------------------------------------------------------------------------

// RandomVersion is a random token. Two random versions are either Equal or
// Conflicting, they carry no order.
type RandomVersion struct {
	Value uint64
}

func (v RandomVersion) Compare(other EntryVersion) (ComparisonResult, error) {
	if IsNonExisting(other) {
		return After, nil
	}
	o, ok := other.(RandomVersion)
	if !ok {
		return Conflicting, errors.Wrapf(ErrIncomparableVersions, "%s vs %s", v, other)
	}
	if o.Value == v.Value {
		return Equal, nil
	}
	return Conflicting, nil
}

func (v RandomVersion) String() string {
	return fmt.Sprintf("RandomVersion{value=%#x}", v.Value)
}

// RandomVersionGenerator creates random versions for caches that only need
// to detect concurrent modification.
type RandomVersionGenerator struct{}

func NewRandomVersionGenerator() *RandomVersionGenerator {
	return &RandomVersionGenerator{}
}

func (g *RandomVersionGenerator) GenerateNew() (EntryVersion, error) {
	return RandomVersion{Value: util.GenerateSeed()}, nil
}

func (g *RandomVersionGenerator) Increment(v EntryVersion) (EntryVersion, error) {
	if _, ok := v.(RandomVersion); !ok && !IsNonExisting(v) {
		return nil, errors.Wrapf(ErrUnexpectedVersion, "random generator cannot increment %s", v)
	}
	return g.GenerateNew()
}

func (g *RandomVersionGenerator) NonExistingVersion() EntryVersion {
	return NonExisting
}
