package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewRank(t *testing.T) {
	v := View{ID: 3, Members: []string{"a", "b", "c"}, Local: "b"}
	require.Equal(t, 2, v.Rank())
	require.True(t, v.IsMember("c"))

	v.Local = "x"
	require.Equal(t, 0, v.Rank())
	require.False(t, v.IsMember("x"))
}

func TestNotifierIgnoresOlderViews(t *testing.T) {
	n := NewNotifier()
	var seen []uint64
	n.AddListener(ViewListenerFunc(func(v View) { seen = append(seen, v.ID) }))

	require.True(t, n.Publish(View{ID: 2, Members: []string{"a"}, Local: "a"}))
	require.False(t, n.Publish(View{ID: 2, Members: []string{"a", "b"}, Local: "a"}))
	require.False(t, n.Publish(View{ID: 1, Members: []string{"a"}, Local: "a"}))
	require.True(t, n.Publish(View{ID: 5, Members: []string{"a", "b"}, Local: "a"}))

	require.Equal(t, []uint64{2, 5}, seen)
	latest, ok := n.Latest()
	require.True(t, ok)
	require.Equal(t, uint64(5), latest.ID)
}

func TestNotifierReplaysLatestView(t *testing.T) {
	n := NewNotifier()
	_, ok := n.Latest()
	require.False(t, ok)

	PublishStatic(n, []string{"a", "b"}, "b")

	var got View
	n.AddListener(ViewListenerFunc(func(v View) { got = v }))
	require.Equal(t, uint64(1), got.ID)
	require.Equal(t, 2, got.Rank())
}

func TestNotifierRemoveListener(t *testing.T) {
	n := NewNotifier()
	calls := 0
	remove := n.AddListener(ViewListenerFunc(func(View) { calls++ }))

	n.Publish(View{ID: 1, Members: []string{"a"}, Local: "a"})
	remove()
	n.Publish(View{ID: 2, Members: []string{"a"}, Local: "a"})
	require.Equal(t, 1, calls)
}

func TestNotifierCopiesMembers(t *testing.T) {
	n := NewNotifier()
	members := []string{"a", "b"}
	n.Publish(View{ID: 1, Members: members, Local: "a"})
	members[0] = "z"

	latest, _ := n.Latest()
	require.Equal(t, []string{"a", "b"}, latest.Members)
}
