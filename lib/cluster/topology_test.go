package cluster

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopologyTrackerBeforeFirstView(t *testing.T) {
	tr := NewTopologyTracker(16, 2)
	require.Nil(t, tr.Topology())
	require.Equal(t, NoTopology, tr.TopologyID())
	require.Equal(t, math.MaxInt, tr.FirstTopologyAsMember())
	require.False(t, tr.IsPrimaryOwner("k"))
	require.False(t, tr.IsOwner("k"))
}

func TestTopologyTrackerFirstTopologyAsMember(t *testing.T) {
	tr := NewTopologyTracker(16, 2)
	n := NewNotifier()
	n.AddListener(tr)

	n.Publish(View{ID: 3, Members: []string{"a", "b"}, Local: "c"})
	require.Equal(t, 3, tr.TopologyID())
	require.Equal(t, math.MaxInt, tr.FirstTopologyAsMember())

	n.Publish(View{ID: 4, Members: []string{"a", "b", "c"}, Local: "c"})
	require.Equal(t, 4, tr.FirstTopologyAsMember())

	n.Publish(View{ID: 7, Members: []string{"c"}, Local: "c"})
	require.Equal(t, 7, tr.TopologyID())
	require.Equal(t, 4, tr.FirstTopologyAsMember())
}

func TestTopologyOwnersAgreeAcrossNodes(t *testing.T) {
	members := []string{"a", "b", "c", "d"}
	trackers := make(map[string]*TopologyTracker)
	for _, m := range members {
		tr := NewTopologyTracker(32, 2)
		tr.ViewChanged(View{ID: 1, Members: members, Local: m})
		trackers[m] = tr
	}

	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key-%d", i)
		primaries := 0
		owners := 0
		for _, m := range members {
			if trackers[m].IsPrimaryOwner(key) {
				primaries++
			}
			if trackers[m].IsOwner(key) {
				owners++
			}
		}
		require.Equal(t, 1, primaries, key)
		require.Equal(t, 2, owners, key)
	}

	top := trackers["a"].Topology()
	for s := 0; s < top.NumSegments; s++ {
		require.Len(t, top.OwnersOf(s), 2)
		require.NotEqual(t, top.OwnersOf(s)[0], top.OwnersOf(s)[1])
	}
	require.Nil(t, top.OwnersOf(-1))
	require.Equal(t, "", top.PrimaryOf(top.NumSegments))
}

func TestTopologyTrackerFilterPrimaryOwned(t *testing.T) {
	tr := NewTopologyTracker(8, 1)
	tr.ViewChanged(View{ID: 1, Members: []string{"solo"}, Local: "solo"})

	keys := []string{"x", "y", "z"}
	require.Equal(t, keys, tr.FilterPrimaryOwned(keys))

	tr.ViewChanged(View{ID: 2, Members: []string{"other"}, Local: "solo"})
	require.Empty(t, tr.FilterPrimaryOwned(keys))
}

func TestTopologyListeners(t *testing.T) {
	tr := NewTopologyTracker(4, 1)
	tr.ViewChanged(View{ID: 1, Members: []string{"a"}, Local: "a"})

	var ids []int
	tr.AddListener(TopologyListenerFunc(func(top *CacheTopology) { ids = append(ids, top.ID) }))
	tr.ViewChanged(View{ID: 2, Members: []string{"a", "b"}, Local: "a"})
	tr.ViewChanged(View{ID: 2, Members: []string{"a"}, Local: "a"})

	require.Equal(t, []int{1, 2}, ids)
}
