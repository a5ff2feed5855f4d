package heap

import "github.com/reflexrun/reflex/internal/arena"

// The fifteen iterator variants (spec §3.2). Each is a thin lazily-evaluated
// wrapper; the expression algebra (internal/expr) knows how to drive them,
// the heap only knows how to store their shape.

func (h *Heap) Empty() arena.Pointer { return h.Alloc(Node{Kind: KindEmpty}) }

func (h *Heap) Once(valuePtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindOnce, Children: []arena.Pointer{valuePtr}})
}

func (h *Heap) Range(start, end int64) arena.Pointer {
	return h.Alloc(Node{Kind: KindRange, Int: start, U32: uint32(end)})
}

func (h *Heap) Integers() arena.Pointer { return h.Alloc(Node{Kind: KindIntegers}) }

func (h *Heap) Repeat(valuePtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindRepeat, Children: []arena.Pointer{valuePtr}})
}

func (h *Heap) IterMap(sourcePtr, fnPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindMap, Children: []arena.Pointer{sourcePtr, fnPtr}})
}

func (h *Heap) IterFilter(sourcePtr, predicatePtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindFilter, Children: []arena.Pointer{sourcePtr, predicatePtr}})
}

func (h *Heap) Flatten(sourcePtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindFlatten, Children: []arena.Pointer{sourcePtr}})
}

func (h *Heap) IterEvaluate(sourcePtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindEvaluate, Children: []arena.Pointer{sourcePtr}})
}

func (h *Heap) Intersperse(sourcePtr, separatorPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindIntersperse, Children: []arena.Pointer{sourcePtr, separatorPtr}})
}

func (h *Heap) Skip(sourcePtr arena.Pointer, count int64) arena.Pointer {
	return h.Alloc(Node{Kind: KindSkip, Int: count, Children: []arena.Pointer{sourcePtr}})
}

func (h *Heap) Take(sourcePtr arena.Pointer, count int64) arena.Pointer {
	return h.Alloc(Node{Kind: KindTake, Int: count, Children: []arena.Pointer{sourcePtr}})
}

func (h *Heap) Zip(sources ...arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindZip, Children: sources})
}

func (h *Heap) HashmapKeys(hashmapPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindHashmapKeys, Children: []arena.Pointer{hashmapPtr}})
}

func (h *Heap) HashmapValues(hashmapPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindHashmapValues, Children: []arena.Pointer{hashmapPtr}})
}
