package heap

import (
	"fmt"
	"sync"

	"github.com/reflexrun/reflex/internal/arena"
)

// Heap owns one arena.Arena and interns every allocated Node by structural
// hash, so that Alloc is really get-or-allocate: two structurally equal
// terms always share one Pointer. That is spec §3.2's content-addressing
// contract realized directly, rather than merely computed as a side value.
//
// A Heap belongs to exactly one worker (spec §3.6); the mutex exists only
// to let the owning actor's goroutine and a short-lived helper goroutine
// (e.g. a cross-heap copy run from another actor under explicit handoff)
// serialize access, not to offer general concurrent-heap semantics.
type Heap struct {
	mu       sync.Mutex
	arena    *arena.Arena
	interned map[uint64]arena.Pointer
	hashes   map[arena.Pointer]uint64
}

// New creates an empty Heap.
func New() *Heap {
	return &Heap{
		arena:    arena.New(0),
		interned: make(map[uint64]arena.Pointer),
		hashes:   make(map[arena.Pointer]uint64),
	}
}

// Hash returns the structural hash of the term at p. Panics if p was not
// allocated by this heap (programmer error, spec §7).
func (h *Heap) Hash(p arena.Pointer) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	hv, ok := h.hashes[p]
	if !ok {
		panic(fmt.Sprintf("heap: pointer %d was never allocated by this heap", p))
	}
	return hv
}

// Alloc interns n: if a structurally identical term was already allocated,
// its existing Pointer is returned; otherwise n is serialized to the arena
// and a fresh Pointer is recorded.
func (h *Heap) Alloc(n Node) arena.Pointer {
	h.mu.Lock()
	defer h.mu.Unlock()
	hv := structuralHash(n, h.childHashesLocked(n.Children))
	if p, ok := h.interned[hv]; ok {
		return p
	}
	p := h.arena.Allocate(n.encode())
	h.interned[hv] = p
	h.hashes[p] = hv
	return p
}

func (h *Heap) childHashesLocked(children []arena.Pointer) []uint64 {
	out := make([]uint64, len(children))
	for i, c := range children {
		hv, ok := h.hashes[c]
		if !ok {
			panic(fmt.Sprintf("heap: child pointer %d not allocated before parent", c))
		}
		out[i] = hv
	}
	return out
}

// Get decodes the term at p.
func (h *Heap) Get(p arena.Pointer) Node {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.getLocked(p)
}

func (h *Heap) getLocked(p arena.Pointer) Node {
	header, err := h.arena.Bytes(p, 32)
	if err != nil {
		panic(err)
	}
	strLen := int(le32(header[28:32]))
	rest, err := h.arena.Bytes(arena.Pointer(int(p)+32), strLen+4)
	if err != nil {
		panic(err)
	}
	childCount := int(le32(rest[strLen : strLen+4]))
	total := encodedLenFromHeader(strLen, childCount)
	full, err := h.arena.Bytes(p, total)
	if err != nil {
		panic(err)
	}
	return decodeNode(full)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Kind is a convenience accessor avoiding a full decode when only the
// discriminant is needed.
func (h *Heap) Kind(p arena.Pointer) Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, err := h.arena.Bytes(p, 1)
	if err != nil {
		panic(err)
	}
	return Kind(b[0])
}

// Len reports the number of distinct (interned) terms ever allocated.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.interned)
}
