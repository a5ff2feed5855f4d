package expr

import (
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/heap"
)

// Normalize reduces t to the system's static normal form (spec §4.C): it
// flattens nested Partial applications, β-reduces a Partial whose target is
// a Lambda by inlining as many leading arguments as are capture-depth-safe
// to inline, constant-folds Application of a Total Builtin over already-
// reduced atomic arguments, and inlines a Let whose initializer has
// normalized to a static, atomic term. It never consults a state snapshot — Effect leaves
// are left untouched — so it is safe to call at compile time as well as
// before every Evaluate pass.
func Normalize(h *heap.Heap, p arena.Pointer) arena.Pointer {
	n := h.Get(p)
	switch n.Kind {
	case heap.KindLet:
		init := Normalize(h, n.Children[0])
		if IsStatic(h, init) && IsAtomic(h, init) {
			inlined := SubstituteStatic(h, n.Children[1], map[uint32]arena.Pointer{0: init}, 1)
			return Normalize(h, inlined)
		}
		return h.Let(init, Normalize(h, n.Children[1]))

	case heap.KindApplication:
		return normalizeApplication(h, n.Children[0], h.ListItems(n.Children[1]))

	case heap.KindPartial:
		return normalizePartial(h, n.Children[0], h.ListItems(n.Children[1]))

	default:
		if len(n.Children) == 0 {
			return p
		}
		newChildren := make([]arena.Pointer, len(n.Children))
		changed := false
		for i, c := range n.Children {
			nc := Normalize(h, c)
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

func normalizeApplication(h *heap.Heap, targetPtr arena.Pointer, rawArgs []arena.Pointer) arena.Pointer {
	target := Normalize(h, targetPtr)
	args := make([]arena.Pointer, len(rawArgs))
	for i, a := range rawArgs {
		args[i] = Normalize(h, a)
	}

	targetNode := h.Get(target)
	if targetNode.Kind == heap.KindLambda || targetNode.Kind == heap.KindPartial {
		return normalizePartial(h, target, args)
	}

	if targetNode.Kind == heap.KindBuiltin {
		if spec := LookupBuiltin(targetNode.U32); spec != nil && spec.Total && spec.Func != nil && allAtomicValues(h, args) {
			result, err := spec.Func(h, args)
			if err == nil {
				return result
			}
		}
	}

	return h.Application(target, h.List(args...))
}

func allAtomicValues(h *heap.Heap, args []arena.Pointer) bool {
	for _, a := range args {
		n := h.Get(a)
		switch n.Kind {
		case heap.KindNil, heap.KindBoolean, heap.KindInt, heap.KindFloat, heap.KindString, heap.KindSymbol:
		default:
			return false
		}
	}
	return true
}

// normalizePartial implements the flatten + β-reduce-under-Partial algorithm
// of spec §8.2 scenario 8: Partial(Lambda(3, v2-(v1+v0)), [3,4,5]) reduces,
// via full substitution and constant folding of its body, to Lambda(0,
// Int(-6)) — a fully-applied redex still wrapped in a zero-arity Lambda so
// that "value produced by reducing a Partial" is always uniformly callable.
//
// Argument-to-parameter binding follows reflex-lang's own convention
// (original_source/reflex-lang/src/term/partial.rs
// normalize_partial_lambda_application): the first supplied argument binds
// the lambda's *highest* remaining De Bruijn index, the last supplied
// argument binds index 0. Concretely, args[i] replaces Variable(arity-1-i).
// This is why Lambda(3, Subtract(Variable(2), Add(Variable(1),
// Variable(0)))) applied to [3,4,5] computes 3-(4+5) = -6, not 5-(4+3).
//
// Only a leading run of arguments is ever inlined: like the original, an
// argument is only safe to inline while its own capture depth does not
// exceed the target's, but unlike the original (which partitions the whole
// candidate slice, potentially inlining non-contiguous positions) this
// normalizer stops at the first unsafe argument and leaves it and everything
// after it in a residual Partial. This is strictly conservative — it only
// ever inlines a subset of what the original would — and is sufficient for
// every case exercised here, since non-contiguous partition only matters
// for arguments that are themselves open terms (spec open question,
// recorded in DESIGN.md).
func normalizePartial(h *heap.Heap, targetPtr arena.Pointer, rawArgs []arena.Pointer) arena.Pointer {
	target := Normalize(h, targetPtr)
	args := make([]arena.Pointer, len(rawArgs))
	for i, a := range rawArgs {
		args[i] = Normalize(h, a)
	}

	// Flatten Partial(Partial(t, a), b) into Partial(t, a++b).
	for {
		tn := h.Get(target)
		if tn.Kind != heap.KindPartial {
			break
		}
		inner := h.ListItems(tn.Children[1])
		args = append(append([]arena.Pointer{}, inner...), args...)
		target = tn.Children[0]
	}

	targetNode := h.Get(target)
	if targetNode.Kind != heap.KindLambda {
		return h.Partial(target, h.List(args...))
	}

	arity := targetNode.U32
	existingDepth := CaptureDepth(h, target)

	nInline := len(args)
	if int(arity) < nInline {
		nInline = int(arity)
	}
	for i := 0; i < nInline; i++ {
		if CaptureDepth(h, args[i]) > existingDepth {
			nInline = i
			break
		}
	}

	if nInline == 0 {
		return h.Partial(target, h.List(args...))
	}

	replace := make(map[uint32]arena.Pointer, nInline)
	for i := 0; i < nInline; i++ {
		replace[uint32(int(arity)-1-i)] = args[i]
	}
	newBody := Normalize(h, SubstituteStatic(h, targetNode.Children[0], replace, 0))
	remainingArity := arity - uint32(nInline)
	reduced := h.Lambda(remainingArity, newBody)

	remaining := args[nInline:]
	if len(remaining) == 0 {
		return reduced
	}
	return normalizePartial(h, reduced, remaining)
}
