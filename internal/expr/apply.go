package expr

import (
	"fmt"

	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/heap"
)

// Arity reports the number of arguments t still expects before it is fully
// applied, or false if t is not an applicable term (spec §3.5 "arity").
func Arity(h *heap.Heap, p arena.Pointer) (int, bool) {
	n := h.Get(p)
	switch n.Kind {
	case heap.KindLambda:
		return int(n.U32), true
	case heap.KindBuiltin:
		spec := LookupBuiltin(n.U32)
		if spec == nil {
			return 0, false
		}
		return spec.RequiredArity + spec.OptionalArity, true
	case heap.KindCompiled:
		return int(n.U32b), true
	case heap.KindPartial:
		target := n.Children[0]
		total, ok := Arity(h, target)
		if !ok {
			return 0, false
		}
		applied := len(h.ListItems(n.Children[1]))
		remaining := total - applied
		if remaining < 0 {
			remaining = 0
		}
		return remaining, true
	case heap.KindConstructor:
		return len(h.ListItems(n.Children[0])), true
	default:
		return 0, false
	}
}

// Apply combines target with args, producing a Partial when args is fewer
// than target's arity, and an Application when it meets or exceeds it
// (spec §3.5 "apply"). A target with unknown arity (e.g. a Variable not yet
// resolved to a closure) always yields an Application, deferring the
// decision to evaluation time.
func Apply(h *heap.Heap, target arena.Pointer, args []arena.Pointer) arena.Pointer {
	if len(args) == 0 {
		return target
	}
	arity, ok := Arity(h, target)
	if ok && len(args) < arity {
		return h.Partial(target, h.List(args...))
	}
	return h.Application(target, h.List(args...))
}

// errArityMismatch signals a fully-applied term whose arity does not match
// its argument count — a structural error the evaluator turns into a
// ConditionError.
var errArityMismatch = fmt.Errorf("expr: arity mismatch")
