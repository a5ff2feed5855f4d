package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStructuralEqualityImpliesHashEquality(t *testing.T) {
	h := New()
	a := h.Int(5)
	b := h.Int(5)
	require.Equal(t, a, b, "structurally identical terms must intern to the same pointer")
	require.Equal(t, h.Hash(a), h.Hash(b))
}

func TestDistinctTermsGetDistinctPointers(t *testing.T) {
	h := New()
	a := h.Int(5)
	b := h.Int(6)
	require.NotEqual(t, a, b)
}

func TestSharingIsStructuralNotPositional(t *testing.T) {
	h := New()
	x := h.Int(1)
	left := h.List(x, h.Int(2))
	right := h.List(h.Int(1), h.Int(2))
	require.Equal(t, left, right, "two lists built from structurally-equal children must share one pointer")
}

func TestCrossHeapCopyRoundTripsHash(t *testing.T) {
	src := New()
	dst := New()
	term := src.Application(src.Builtin(1), src.List(src.Int(3), src.Int(2)))
	wantHash := src.Hash(term)

	copied := Copy(dst, src, term)
	require.Equal(t, wantHash, dst.Hash(copied))
}

func TestCrossHeapCopyPreservesSharing(t *testing.T) {
	src := New()
	shared := src.Int(42)
	term := src.List(shared, shared, shared)
	require.Len(t, src.Get(term).Children, 3)

	dst := New()
	copied := Copy(dst, src, term)
	children := dst.Get(copied).Children
	require.Equal(t, children[0], children[1])
	require.Equal(t, children[1], children[2])
}

func TestConditionCustomHashDeterminedByTriple(t *testing.T) {
	h := New()
	payload := h.Int(3)
	c1 := h.ConditionCustom("v", payload, h.Nil())
	c2 := h.ConditionCustom("v", payload, h.Nil())
	require.Equal(t, c1, c2)

	c3 := h.ConditionCustom("v", h.Int(4), h.Nil())
	require.NotEqual(t, c1, c3)
}
