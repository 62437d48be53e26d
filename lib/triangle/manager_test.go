package triangle

import (
	"testing"

	"github.com/ValentinKolb/dOrder/lib/cluster"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestNextRequiresInstalledTopology(t *testing.T) {
	m := NewManager()
	_, err := m.Next(0, 1)
	require.True(t, errors.Is(err, ErrOutdatedTopology))

	m.UpdateTopology(1)
	for want := uint64(1); want <= 3; want++ {
		seq, err := m.Next(0, 1)
		require.NoError(t, err)
		require.Equal(t, want, seq)
	}
	seq, err := m.Next(1, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq, "sequences are per segment")

	m.UpdateTopology(2)
	seq, err = m.Next(0, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq, "sequences restart in a new topology")
	_, err = m.Next(0, 1)
	require.True(t, errors.Is(err, ErrOutdatedTopology))
}

func TestPermutedArrivalsAreAdmittedInOrder(t *testing.T) {
	m := NewManager()
	m.UpdateTopology(4)

	pending := map[uint64]bool{}
	var admitted []uint64
	admit := func() {
		for progress := true; progress; {
			progress = false
			for seq := range pending {
				if m.IsNext(7, seq, 4) {
					admitted = append(admitted, seq)
					delete(pending, seq)
					m.MarkDelivered(7, seq, 4)
					progress = true
				}
			}
		}
	}

	pending[2] = true
	admit()
	require.Empty(t, admitted, "2 must wait for 1")

	pending[1] = true
	admit()
	require.Equal(t, []uint64{1, 2}, admitted)

	pending[3] = true
	admit()
	require.Equal(t, []uint64{1, 2, 3}, admitted)
	require.Equal(t, uint64(3), m.Delivered(7))
}

func TestIsNextAcrossTopologies(t *testing.T) {
	m := NewManager()
	m.UpdateTopology(5)

	require.True(t, m.IsNext(0, 42, 4), "older topology is always next")
	require.False(t, m.IsNext(0, 1, 6), "newer topology waits")
	require.True(t, m.IsNext(0, 1, 5))
	require.False(t, m.IsNext(0, 2, 5))

	m.MarkDelivered(0, 1, 5)
	m.MarkDelivered(0, 9, 4)
	require.True(t, m.IsNext(0, 2, 5))

	installed := 0
	m.OnTopologyInstalled(func(id int) { installed = id })
	m.TopologyChanged(&cluster.CacheTopology{ID: 6})
	require.Equal(t, 6, installed)
	require.True(t, m.IsNext(0, 1, 6))
	require.Equal(t, uint64(0), m.Delivered(0))

	m.UpdateTopology(3)
	require.Equal(t, 6, m.TopologyID())
}

func TestIsNextAll(t *testing.T) {
	m := NewManager()
	m.UpdateTopology(1)
	m.MarkDelivered(1, 1, 1)

	require.True(t, m.IsNextAll(map[int]uint64{1: 2, 2: 1}, 1))
	require.False(t, m.IsNextAll(map[int]uint64{1: 2, 2: 2}, 1))

	m.MarkDeliveredAll(map[int]uint64{1: 2, 2: 1}, 1)
	require.Equal(t, uint64(2), m.Delivered(1))
	require.Equal(t, uint64(1), m.Delivered(2))
}

func TestPositionCursor(t *testing.T) {
	c := NewPositionCursor()
	require.True(t, c.IsNext(0))
	require.False(t, c.IsNext(1))
	require.False(t, c.Advance(1))
	require.True(t, c.Advance(0))
	require.True(t, c.IsNext(1))
	require.Equal(t, uint64(1), c.Position())
}

func TestMarkDeliveredIgnoresOutOfOrderSequences(t *testing.T) {
	m := NewManager()
	m.UpdateTopology(1)

	m.MarkDelivered(0, 3, 1)
	require.Zero(t, m.Delivered(0), "skipping ahead is ignored")
	require.True(t, m.IsNext(0, 1, 1))

	m.MarkDelivered(0, 1, 1)
	m.MarkDelivered(0, 1, 1)
	require.Equal(t, uint64(1), m.Delivered(0), "a repeated mark is ignored")

	m.MarkDelivered(0, 2, 1)
	m.MarkDelivered(0, 3, 1)
	require.Equal(t, uint64(3), m.Delivered(0))
	require.True(t, m.IsNext(0, 4, 1))
	require.False(t, m.IsNext(0, 5, 1))

	m.MarkDeliveredAll(map[int]uint64{0: 4, 1: 2}, 1)
	require.Equal(t, uint64(4), m.Delivered(0))
	require.Zero(t, m.Delivered(1))
}
