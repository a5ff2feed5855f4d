package heap

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// structuralHash computes spec §3.2's "discriminant byte followed by field
// hashes" rule: a term's hash is (discriminant, child_hashes, scalar
// payload). childHashes are the already-computed hashes of n.Children,
// looked up by the caller (Heap.Alloc) before the child subtree can itself
// be interned — this is what makes hash(t) depend only on t's structure,
// never on allocation order, satisfying spec §8.1's first invariant.
func structuralHash(n Node, childHashes []uint64) uint64 {
	h := fnv.New64a()
	h.Write([]byte{byte(n.Kind), byte(n.CondKind)})
	var buf [8]byte
	if n.Bool {
		buf[0] = 1
	} else {
		buf[0] = 0
	}
	h.Write(buf[:1])
	binary.LittleEndian.PutUint64(buf[:], uint64(n.Int))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(n.Float))
	h.Write(buf[:])
	binary.LittleEndian.PutUint32(buf[:4], n.U32)
	h.Write(buf[:4])
	binary.LittleEndian.PutUint32(buf[:4], n.U32b)
	h.Write(buf[:4])
	h.Write([]byte(n.Str))
	for _, ch := range childHashes {
		binary.LittleEndian.PutUint64(buf[:], ch)
		h.Write(buf[:])
	}
	return h.Sum64()
}
