package bytecode

import "github.com/reflexrun/reflex/internal/arena"

// ConstantTable is the module-global table of interned sub-terms (spec
// §4.E "Interning"): closed, hash-stable, cheap-to-reconstruct sub-terms
// are emitted once as Const(HeapPointer, id) rather than re-allocated at
// every call site referencing them.
type ConstantTable struct {
	byHash map[uint64]uint32
	values []arena.Pointer
}

func newConstantTable() *ConstantTable {
	return &ConstantTable{byHash: make(map[uint64]uint32)}
}

// Intern registers p (identified by its structural hash) and returns its
// stable constant id, reusing an existing entry when p was already
// interned.
func (t *ConstantTable) intern(hash uint64, p arena.Pointer) uint32 {
	if id, ok := t.byHash[hash]; ok {
		return id
	}
	id := uint32(len(t.values))
	t.values = append(t.values, p)
	t.byHash[hash] = id
	return id
}

// Get resolves a constant id back to its heap pointer.
func (t *ConstantTable) Get(id uint32) arena.Pointer {
	return t.values[id]
}

// Len reports how many distinct constants have been interned.
func (t *ConstantTable) Len() int { return len(t.values) }
