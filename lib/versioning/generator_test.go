package versioning

import (
	"sync"
	"testing"

	"github.com/ValentinKolb/dOrder/lib/cluster"
	"github.com/ValentinKolb/dOrder/lib/common"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestLocalNumericGenerator(t *testing.T) {
	g := NewNumericVersionGenerator()
	v1, err := g.GenerateNew()
	require.NoError(t, err)
	v2, err := g.GenerateNew()
	require.NoError(t, err)

	res, err := v1.Compare(v2)
	require.NoError(t, err)
	require.Equal(t, Before, res)

	inc, err := g.Increment(NumericVersion{41})
	require.NoError(t, err)
	require.Equal(t, NumericVersion{42}, inc)

	_, err = g.Increment(SimpleClusteredVersion{1, 1})
	require.True(t, errors.Is(err, ErrUnexpectedVersion))
	require.Equal(t, NonExisting, g.NonExistingVersion())
}

func TestClusteredGeneratorFailsBeforeFirstView(t *testing.T) {
	g := NewClusteredNumericVersionGenerator()
	_, err := g.GenerateNew()
	require.True(t, errors.Is(err, ErrRankNotInitialized))
	_, err = g.Increment(NumericVersion{1})
	require.True(t, errors.Is(err, ErrRankNotInitialized))
	_, ok := g.Prefix()
	require.False(t, ok)
}

func TestClusteredGeneratorPrefixNeverRollsBack(t *testing.T) {
	g := NewClusteredNumericVersionGenerator()
	require.True(t, g.SetRank(5, 2))
	require.False(t, g.SetRank(4, 1))
	require.False(t, g.SetRank(5, 3))

	prefix, ok := g.Prefix()
	require.True(t, ok)
	require.Equal(t, RankPrefix(5, 2), prefix)

	v, err := g.GenerateNew()
	require.NoError(t, err)
	require.Equal(t, prefix|1, v.(NumericVersion).Version)
}

func TestClusteredIncrementKeepsCounterBits(t *testing.T) {
	g := NewClusteredNumericVersionGenerator()
	g.SetRank(2, 1)

	old := NumericVersion{Version: RankPrefix(1, 3) | 10}
	v, err := g.Increment(old)
	require.NoError(t, err)
	require.Equal(t, RankPrefix(2, 1)|11, v.(NumericVersion).Version)

	// a full counter carries into the prefix bits instead of wrapping
	wrapped, err := g.Increment(NumericVersion{Version: RankPrefix(2, 1) | counterMask})
	require.NoError(t, err)
	require.Equal(t, RankPrefix(2, 1)+counterMask+1, wrapped.(NumericVersion).Version)

	_, err = g.Increment(NumericVersion{Version: ^uint64(0)})
	require.True(t, errors.Is(err, ErrVersionOverflow))
}

func TestClusteredIncrementIsAfterAcrossRanks(t *testing.T) {
	g := NewClusteredNumericVersionGenerator()
	g.SetRank(2, 1)

	// same view, higher rank: the local prefix alone would compare Before
	old := NumericVersion{Version: RankPrefix(2, 3) | 10}
	v, err := g.Increment(old)
	require.NoError(t, err)
	res, err := v.Compare(old)
	require.NoError(t, err)
	require.Equal(t, After, res)
	require.Equal(t, old.Version+1, v.(NumericVersion).Version)

	for _, prefix := range []uint64{RankPrefix(1, 1), RankPrefix(1, 9), RankPrefix(2, 1), RankPrefix(2, 2), RankPrefix(3, 1), RankPrefix(7, 4)} {
		for _, counter := range []uint64{0, 1, 10, counterMask - 1, counterMask} {
			old := NumericVersion{Version: prefix | counter}
			v, err := g.Increment(old)
			require.NoError(t, err)
			res, err := v.Compare(old)
			require.NoError(t, err)
			require.Equal(t, After, res, "increment of %s gave %s", old, v)
		}
	}
}

func TestRankPrefixUniqueness(t *testing.T) {
	seen := make(map[uint64][2]uint64)
	for viewID := uint64(1); viewID <= 8; viewID++ {
		for rank := uint32(1); rank <= 16; rank++ {
			p := RankPrefix(viewID, rank)
			require.Zero(t, p&counterMask, "prefix must leave the counter bits free")
			prev, dup := seen[p]
			require.False(t, dup, "prefix of (%d,%d) collides with %v", viewID, rank, prev)
			seen[p] = [2]uint64{viewID, uint64(rank)}
		}
	}
}

func TestGeneratorsOfDifferentRanksNeverCollide(t *testing.T) {
	notifier := cluster.NewNotifier()
	members := []string{"a", "b", "c"}

	var gens []*NumericVersionGenerator
	for _, m := range members {
		node := m
		rc := NewRankCalculator(notifier)
		g := NewClusteredNumericVersionGenerator()
		rc.Register(g)
		notifier.AddListener(cluster.ViewListenerFunc(func(v cluster.View) {
			v.Local = node
			rc.ViewChanged(v)
		}))
		gens = append(gens, g)
	}
	notifier.Publish(cluster.View{ID: 1, Members: members})

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for _, g := range gens {
		wg.Add(1)
		go func(g *NumericVersionGenerator) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				v, err := g.GenerateNew()
				if err != nil {
					t.Errorf("generate: %v", err)
					return
				}
				mu.Lock()
				if seen[v.(NumericVersion).Version] {
					t.Errorf("duplicate version %s", v)
				}
				seen[v.(NumericVersion).Version] = true
				mu.Unlock()
			}
		}(g)
	}
	wg.Wait()
	require.Len(t, seen, 3000)
}

func TestRankCalculatorLifecycle(t *testing.T) {
	notifier := cluster.NewNotifier()
	rc := NewRankCalculator(notifier)
	g := NewClusteredNumericVersionGenerator()
	rc.Register(g)
	rc.Start()

	notifier.Publish(cluster.View{ID: 1, Members: []string{"x"}, Local: "me"})
	_, ok := g.Prefix()
	require.False(t, ok, "non members get no rank")

	notifier.Publish(cluster.View{ID: 2, Members: []string{"x", "me"}, Local: "me"})
	prefix, ok := g.Prefix()
	require.True(t, ok)
	require.Equal(t, RankPrefix(2, 2), prefix)

	late := NewClusteredNumericVersionGenerator()
	rc.Register(late)
	latePrefix, ok := late.Prefix()
	require.True(t, ok)
	require.Equal(t, prefix, latePrefix)

	rc.Stop()
	notifier.Publish(cluster.View{ID: 3, Members: []string{"me"}, Local: "me"})
	after, _ := g.Prefix()
	require.Equal(t, prefix, after)
}

func TestSimpleClusteredGenerator(t *testing.T) {
	g := NewSimpleClusteredVersionGenerator()
	_, err := g.GenerateNew()
	require.True(t, errors.Is(err, ErrRankNotInitialized))

	tracker := cluster.NewTopologyTracker(4, 1)
	tracker.AddListener(g)
	tracker.ViewChanged(cluster.View{ID: 3, Members: []string{"a"}, Local: "a"})

	v, err := g.GenerateNew()
	require.NoError(t, err)
	require.Equal(t, SimpleClusteredVersion{TopologyID: 3, Version: 1}, v)

	tracker.ViewChanged(cluster.View{ID: 4, Members: []string{"a"}, Local: "a"})
	next, err := g.Increment(SimpleClusteredVersion{TopologyID: 3, Version: 8})
	require.NoError(t, err)
	require.Equal(t, SimpleClusteredVersion{TopologyID: 4, Version: 9}, next)

	g.TopologyChanged(&cluster.CacheTopology{ID: 2})
	v, _ = g.GenerateNew()
	require.Equal(t, 4, v.(SimpleClusteredVersion).TopologyID)

	_, err = g.Increment(NumericVersion{1})
	require.True(t, errors.Is(err, ErrUnexpectedVersion))
}

func TestRandomGenerator(t *testing.T) {
	g := NewRandomVersionGenerator()
	v1, err := g.GenerateNew()
	require.NoError(t, err)
	v2, err := g.Increment(v1)
	require.NoError(t, err)

	res, err := v1.Compare(v1)
	require.NoError(t, err)
	require.Equal(t, Equal, res)
	res, err = v1.Compare(v2)
	require.NoError(t, err)
	require.Equal(t, Conflicting, res)
}

func TestNewGenerator(t *testing.T) {
	notifier := cluster.NewNotifier()
	rc := NewRankCalculator(notifier)
	tracker := cluster.NewTopologyTracker(4, 1)

	for _, kind := range []common.GeneratorKind{common.GeneratorNumeric, common.GeneratorClustered, common.GeneratorSimpleClustered, common.GeneratorRandom} {
		g, err := NewGenerator(kind, rc, tracker)
		require.NoError(t, err, kind)
		require.NotNil(t, g)
	}
	_, err := NewGenerator(common.GeneratorClustered, nil, tracker)
	require.Error(t, err)
	_, err = NewGenerator("vector", rc, tracker)
	require.Error(t, err)
}
