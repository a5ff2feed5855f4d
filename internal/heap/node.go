package heap

import (
	"encoding/binary"
	"math"

	"github.com/reflexrun/reflex/internal/arena"
)

// Node is the in-memory view of a term: a single closed Go struct covering
// every variant's payload shape (spec §3.2). Only the fields relevant to
// Kind are meaningful; the rest are zero. This mirrors the original's
// tagged-union-with-fixed-layout-per-variant design without requiring a
// bespoke byte layout per Kind, while Heap still serializes every Node to
// the arena so that pointer identity is the only handle callers ever keep.
type Node struct {
	Kind     Kind
	CondKind ConditionKind // Condition only
	Bool     bool          // Boolean only
	Int      int64         // Int, Tree.Length, Range start, Skip/Take counts
	Float    float64       // Float only
	Str      string        // String, Condition.EffectType
	U32      uint32        // Symbol/Builtin/Compiled id, Variable depth, Lambda arity, Range end
	U32b     uint32        // second scalar slot (Compiled arity)
	Children []arena.Pointer
}

// PointerSlots returns the ordered child-pointer slots of n. This is the
// basis for tree walks, substitution, GC root enumeration and
// serialization (spec §3.2's "ordered sequence of child pointer slots").
func (n Node) PointerSlots() []arena.Pointer {
	return n.Children
}

// encoded layout (variable length, word-aligned by the arena):
//
//	[0]    Kind
//	[1]    CondKind
//	[2]    Bool (0/1)
//	[3]    padding
//	[4:12]  Int (int64 LE)
//	[12:20] Float bits (uint64 LE)
//	[20:24] U32
//	[24:28] U32b
//	[28:32] len(Str)
//	[32:32+len(Str)] Str bytes
//	[…:…+4] len(Children)
//	[…] Children, 4 bytes each (LE uint32 offsets)
func (n Node) encode() []byte {
	strBytes := []byte(n.Str)
	size := 32 + len(strBytes) + 4 + 4*len(n.Children)
	buf := make([]byte, size)
	buf[0] = byte(n.Kind)
	buf[1] = byte(n.CondKind)
	if n.Bool {
		buf[2] = 1
	}
	binary.LittleEndian.PutUint64(buf[4:12], uint64(n.Int))
	binary.LittleEndian.PutUint64(buf[12:20], math.Float64bits(n.Float))
	binary.LittleEndian.PutUint32(buf[20:24], n.U32)
	binary.LittleEndian.PutUint32(buf[24:28], n.U32b)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(len(strBytes)))
	off := 32
	copy(buf[off:off+len(strBytes)], strBytes)
	off += len(strBytes)
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(n.Children)))
	off += 4
	for _, c := range n.Children {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(c))
		off += 4
	}
	return buf
}

func decodeNode(buf []byte) Node {
	n := Node{
		Kind:     Kind(buf[0]),
		CondKind: ConditionKind(buf[1]),
		Bool:     buf[2] != 0,
		Int:      int64(binary.LittleEndian.Uint64(buf[4:12])),
		Float:    math.Float64frombits(binary.LittleEndian.Uint64(buf[12:20])),
		U32:      binary.LittleEndian.Uint32(buf[20:24]),
		U32b:     binary.LittleEndian.Uint32(buf[24:28]),
	}
	strLen := int(binary.LittleEndian.Uint32(buf[28:32]))
	off := 32
	n.Str = string(buf[off : off+strLen])
	off += strLen
	childCount := int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	if childCount > 0 {
		n.Children = make([]arena.Pointer, childCount)
		for i := 0; i < childCount; i++ {
			n.Children[i] = arena.Pointer(binary.LittleEndian.Uint32(buf[off : off+4]))
			off += 4
		}
	}
	return n
}

// encodedLenFromHeader computes the byte length encode() would produce, without
// allocating, so Heap can size the arena.Bytes read.
func encodedLenFromHeader(strLen, childCount int) int {
	return 32 + strLen + 4 + 4*childCount
}
