package expr

import (
	"sort"

	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/heap"
)

// HoistFreeVariables extracts a Lambda's captured (free) variables into
// leading parameters of a new, closed Lambda, returning that lambda
// alongside the Variable terms (in the Lambda's original enclosing scope)
// that must be supplied as the first arguments of a Partial replacing it at
// its original site, so that every capture becomes an explicit argument.
// The bytecode compiler does not call it; its lambda lifting
// (registerFunction) lifts Lambda bodies without this rewrite.
func HoistFreeVariables(h *heap.Heap, lambdaPtr arena.Pointer) (closed arena.Pointer, capturedArgs []arena.Pointer) {
	n := h.Get(lambdaPtr)
	arity := n.U32
	body := n.Children[0]

	captured := FreeVariableCounts(h, lambdaPtr)
	sorted := make([]uint32, 0, len(captured))
	for k := range captured {
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	pos := make(map[uint32]int, len(sorted))
	for i, outerIdx := range sorted {
		pos[outerIdx] = i
	}
	m := uint32(len(sorted))

	// Own parameters (relative index < arity) keep their index unchanged;
	// captures take the m slots above arity, in reverse sorted order, so
	// that supplying capturedArgs (ascending by outer index) as the
	// leading arguments of Apply(closed, capturedArgs++originalArgs...)
	// lines up with Apply/normalizePartial's own "first arg binds the
	// highest index" convention.
	var remap func(p arena.Pointer, localCutoff uint32) arena.Pointer
	remap = func(p arena.Pointer, localCutoff uint32) arena.Pointer {
		nd := h.Get(p)
		switch nd.Kind {
		case heap.KindVariable:
			d := nd.U32
			if d < localCutoff {
				return p
			}
			rel := d - localCutoff
			if rel < arity {
				return h.Variable(localCutoff + rel)
			}
			outerIdx := rel - arity
			j := uint32(pos[outerIdx])
			return h.Variable(localCutoff + arity + (m - 1 - j))
		case heap.KindLambda:
			return h.Lambda(nd.U32, remap(nd.Children[0], localCutoff+nd.U32))
		case heap.KindLet:
			return h.Let(remap(nd.Children[0], localCutoff), remap(nd.Children[1], localCutoff+1))
		default:
			if len(nd.Children) == 0 {
				return p
			}
			newChildren := make([]arena.Pointer, len(nd.Children))
			for i, c := range nd.Children {
				newChildren[i] = remap(c, localCutoff)
			}
			nd2 := nd
			nd2.Children = newChildren
			return h.Alloc(nd2)
		}
	}

	newBody := remap(body, 0)
	closed = h.Lambda(arity+m, newBody)

	capturedArgs = make([]arena.Pointer, len(sorted))
	for i, outerIdx := range sorted {
		capturedArgs[i] = h.Variable(outerIdx)
	}
	return closed, capturedArgs
}
