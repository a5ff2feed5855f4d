package heap

import "github.com/reflexrun/reflex/internal/arena"

// Copy deep-copies the term at srcPtr from src into dst, preserving sharing
// via memoization keyed by source pointer (spec §4.B "cross-heap
// serialization"). Because both heaps intern by structural hash, a term
// that already exists in dst with identical structure is reused rather than
// duplicated — this is also how host/worker term transfer (spec §4.G) is
// implemented.
func Copy(dst, src *Heap, srcPtr arena.Pointer) arena.Pointer {
	memo := make(map[arena.Pointer]arena.Pointer)
	return copyRec(dst, src, srcPtr, memo)
}

func copyRec(dst, src *Heap, p arena.Pointer, memo map[arena.Pointer]arena.Pointer) arena.Pointer {
	if p == arena.NullPointer {
		return arena.NullPointer
	}
	if q, ok := memo[p]; ok {
		return q
	}
	n := src.Get(p)
	newChildren := make([]arena.Pointer, len(n.Children))
	for i, c := range n.Children {
		newChildren[i] = copyRec(dst, src, c, memo)
	}
	n.Children = newChildren
	q := dst.Alloc(n)
	memo[p] = q
	return q
}
