package condition

import (
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/heap"
)

// ToSignalList builds the balanced-Tree heap representation of conds (spec
// §3.3): union of two signal lists this way is O(1) allocation at the
// arena level (one Tree node) and interning (via Heap.Alloc) gives content-
// addressed deduplication for free. An empty set encodes as NullPointer.
func ToSignalList(h *heap.Heap, conds []Condition) arena.Pointer {
	ptrs := make([]arena.Pointer, len(conds))
	for i, c := range conds {
		ptrs[i] = c.Ptr
	}
	return buildTree(h, ptrs)
}

func buildTree(h *heap.Heap, ptrs []arena.Pointer) arena.Pointer {
	switch len(ptrs) {
	case 0:
		return arena.NullPointer
	case 1:
		return ptrs[0]
	default:
		mid := len(ptrs) / 2
		left := buildTree(h, ptrs[:mid])
		right := buildTree(h, ptrs[mid:])
		return h.Tree(left, right, int64(len(ptrs)))
	}
}

// FromSignalList walks a SignalList term back into a flat slice of
// Conditions.
func FromSignalList(h *heap.Heap, p arena.Pointer) []Condition {
	var out []Condition
	walkSignalList(h, p, &out)
	return out
}

func walkSignalList(h *heap.Heap, p arena.Pointer, out *[]Condition) {
	if p == arena.NullPointer {
		return
	}
	n := h.Get(p)
	switch n.Kind {
	case heap.KindTree:
		walkSignalList(h, n.Children[0], out)
		walkSignalList(h, n.Children[1], out)
	case heap.KindCondition:
		*out = append(*out, Condition{Heap: h, Ptr: p})
	}
}

// UnionSignalLists combines two SignalList terms in O(1) allocation by
// wrapping them in a new Tree node, per spec §3.3.
func UnionSignalLists(h *heap.Heap, a, b arena.Pointer) arena.Pointer {
	if a == arena.NullPointer {
		return b
	}
	if b == arena.NullPointer {
		return a
	}
	lenA := signalListLen(h, a)
	lenB := signalListLen(h, b)
	return h.Tree(a, b, lenA+lenB)
}

func signalListLen(h *heap.Heap, p arena.Pointer) int64 {
	if p == arena.NullPointer {
		return 0
	}
	n := h.Get(p)
	if n.Kind == heap.KindTree {
		return n.Int
	}
	return 1
}
