package condition

import (
	"testing"

	"github.com/reflexrun/reflex/internal/heap"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDependencySetUnionDeduplicates(t *testing.T) {
	h := heap.New()
	c1 := Custom(h, "v", h.Int(3), h.Nil())
	c2 := Custom(h, "v", h.Int(3), h.Nil()) // identical triple, same identity

	a := NewDependencySet()
	a.Add(c1)
	b := NewDependencySet()
	b.Add(c2)

	u := a.Union(b)
	require.Equal(t, 1, u.Len())
}

func TestDependencySetDifference(t *testing.T) {
	h := heap.New()
	c1 := Custom(h, "a", h.Int(1), h.Nil())
	c2 := Custom(h, "b", h.Int(2), h.Nil())

	a := NewDependencySet()
	a.Add(c1)
	a.Add(c2)
	b := NewDependencySet()
	b.Add(c1)

	diff := a.Difference(b)
	require.Equal(t, 1, diff.Len())
	require.True(t, diff.Contains(c2))
}

func TestPendingAndCustomAreUnresolvedErrorIsNot(t *testing.T) {
	h := heap.New()
	require.True(t, Pending(h).IsUnresolvedEffect())
	require.True(t, Custom(h, "v", h.Int(1), h.Nil()).IsUnresolvedEffect())
	require.False(t, Err(h, h.String("boom")).IsUnresolvedEffect())
}

func TestSignalListRoundTrip(t *testing.T) {
	h := heap.New()
	c1 := Custom(h, "a", h.Int(1), h.Nil())
	c2 := Custom(h, "b", h.Int(2), h.Nil())
	c3 := Custom(h, "c", h.Int(3), h.Nil())

	list := ToSignalList(h, []Condition{c1, c2, c3})
	back := FromSignalList(h, list)
	require.Len(t, back, 3)

	hashes := map[uint64]bool{}
	for _, c := range back {
		hashes[c.Hash()] = true
	}
	require.True(t, hashes[c1.Hash()])
	require.True(t, hashes[c2.Hash()])
	require.True(t, hashes[c3.Hash()])
}

func TestUnionSignalListsIsConstantAllocation(t *testing.T) {
	h := heap.New()
	c1 := Custom(h, "a", h.Int(1), h.Nil())
	c2 := Custom(h, "b", h.Int(2), h.Nil())
	a := ToSignalList(h, []Condition{c1})
	b := ToSignalList(h, []Condition{c2})

	u := UnionSignalLists(h, a, b)
	n := h.Get(u)
	require.Equal(t, heap.KindTree, n.Kind)
	require.Equal(t, a, n.Children[0])
	require.Equal(t, b, n.Children[1])
	back := FromSignalList(h, u)
	require.Len(t, back, 2)
}
