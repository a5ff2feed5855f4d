package expr

import (
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/heap"
)

// SubstituteStatic renumbers/replaces De Bruijn indices under p (spec §3.5
// "substitute_static(σ)"). replace maps a parameter index (relative to p's
// own scope) to its replacement term; shiftBase is the number of leading
// parameters being eliminated (e.g. the Lambda arity consumed by a
// β-reduction), so that any index at or above it — one that was not itself
// replaced — is renumbered down by shiftBase to account for those removed
// bindings. A replacement term's own free variables are shifted deeper by
// however many binders have been entered since p's root, preserving
// capture-avoidance.
func SubstituteStatic(h *heap.Heap, p arena.Pointer, replace map[uint32]arena.Pointer, shiftBase uint32) arena.Pointer {
	return substStaticRec(h, p, replace, shiftBase, 0)
}

func substStaticRec(h *heap.Heap, p arena.Pointer, replace map[uint32]arena.Pointer, shiftBase, cutoff uint32) arena.Pointer {
	n := h.Get(p)
	switch n.Kind {
	case heap.KindVariable:
		d := n.U32
		if d < cutoff {
			return p // bound by a binder entered during this walk
		}
		idx := d - cutoff
		if repl, ok := replace[idx]; ok {
			return ShiftFreeVariables(h, repl, cutoff, 0)
		}
		if idx >= shiftBase {
			return h.Variable(d - shiftBase)
		}
		return p
	case heap.KindLambda:
		return h.Lambda(n.U32, substStaticRec(h, n.Children[0], replace, shiftBase, cutoff+n.U32))
	case heap.KindLet:
		newInit := substStaticRec(h, n.Children[0], replace, shiftBase, cutoff)
		newBody := substStaticRec(h, n.Children[1], replace, shiftBase, cutoff+1)
		return h.Let(newInit, newBody)
	default:
		if len(n.Children) == 0 {
			return p
		}
		newChildren := make([]arena.Pointer, len(n.Children))
		changed := false
		for i, c := range n.Children {
			nc := substStaticRec(h, c, replace, shiftBase, cutoff)
			newChildren[i] = nc
			changed = changed || nc != c
		}
		if !changed {
			return p
		}
		n2 := n
		n2.Children = newChildren
		return h.Alloc(n2)
	}
}

// ShiftFreeVariables adds amount to every Variable index free at or above
// cutoff under p, i.e. re-homes a term being inserted `amount` binders
// deeper than where it was built.
func ShiftFreeVariables(h *heap.Heap, p arena.Pointer, amount, cutoff uint32) arena.Pointer {
	if amount == 0 {
		return p
	}
	n := h.Get(p)
	switch n.Kind {
	case heap.KindVariable:
		if n.U32 >= cutoff {
			return h.Variable(n.U32 + amount)
		}
		return p
	case heap.KindLambda:
		return h.Lambda(n.U32, ShiftFreeVariables(h, n.Children[0], amount, cutoff+n.U32))
	case heap.KindLet:
		return h.Let(
			ShiftFreeVariables(h, n.Children[0], amount, cutoff),
			ShiftFreeVariables(h, n.Children[1], amount, cutoff+1),
		)
	default:
		if len(n.Children) == 0 {
			return p
		}
		newChildren := make([]arena.Pointer, len(n.Children))
		changed := false
		for i, c := range n.Children {
			nc := ShiftFreeVariables(h, c, amount, cutoff)
			newChildren[i] = nc
			changed = changed || nc != c
		}
		if !changed {
			return p
		}
		n2 := n
		n2.Children = newChildren
		return h.Alloc(n2)
	}
}

// State is a state snapshot: condition hash -> bound value term, consulted
// by SubstituteDynamic and Evaluate to resolve Effect leaves (spec §3.4).
type State map[uint64]arena.Pointer

// SubstituteDynamic replaces every reachable Effect(c) leaf whose condition
// is bound in state with its binding. When deep is false, only Strict
// argument positions are descended into (matching DynamicDependencies).
func SubstituteDynamic(h *heap.Heap, p arena.Pointer, deep bool, state State) arena.Pointer {
	n := h.Get(p)
	switch n.Kind {
	case heap.KindEffect:
		if v, ok := state[h.Hash(n.Children[0])]; ok {
			return v
		}
		return p
	case heap.KindApplication, heap.KindPartial:
		newTarget := SubstituteDynamic(h, n.Children[0], deep, state)
		spec := builtinSpecOf(h, newTarget)
		args := h.ListItems(n.Children[1])
		newArgs := make([]arena.Pointer, len(args))
		for i, a := range args {
			strict := spec == nil || argStrictness(spec, i) == StrictArg
			if strict || deep {
				newArgs[i] = SubstituteDynamic(h, a, deep, state)
			} else {
				newArgs[i] = a
			}
		}
		if n.Kind == heap.KindApplication {
			return h.Application(newTarget, h.List(newArgs...))
		}
		return h.Partial(newTarget, h.List(newArgs...))
	default:
		if len(n.Children) == 0 {
			return p
		}
		newChildren := make([]arena.Pointer, len(n.Children))
		for i, c := range n.Children {
			newChildren[i] = SubstituteDynamic(h, c, deep, state)
		}
		n2 := n
		n2.Children = newChildren
		return h.Alloc(n2)
	}
}
