package expr

import (
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/heap"
)

// Size returns the node count of the term rooted at p (spec §3.5 "size").
func Size(h *heap.Heap, p arena.Pointer) int {
	if p == arena.NullPointer {
		return 0
	}
	n := h.Get(p)
	total := 1
	for _, c := range n.Children {
		total += Size(h, c)
	}
	return total
}

// FreeVariableCounts walks t counting, for each De Bruijn index free under
// t, how many Variable occurrences reference it. cutoff tracks how many
// binders have been entered since the top of the walk: Lambda(arity, _)
// introduces `arity` bindings for its body, Let(init, body) introduces one
// binding for its body only (init is evaluated in the unchanged outer
// scope) — spec §3.5 free_variables / §4.C substitution.
func FreeVariableCounts(h *heap.Heap, p arena.Pointer) map[uint32]int {
	return freeVarsRec(h, p, 0)
}

func freeVarsRec(h *heap.Heap, p arena.Pointer, cutoff uint32) map[uint32]int {
	if p == arena.NullPointer {
		return map[uint32]int{}
	}
	n := h.Get(p)
	switch n.Kind {
	case heap.KindVariable:
		if n.U32 >= cutoff {
			return map[uint32]int{n.U32 - cutoff: 1}
		}
		return map[uint32]int{}
	case heap.KindLambda:
		return freeVarsRec(h, n.Children[0], cutoff+n.U32)
	case heap.KindLet:
		out := freeVarsRec(h, n.Children[0], cutoff)
		mergeCounts(out, freeVarsRec(h, n.Children[1], cutoff+1))
		return out
	default:
		out := map[uint32]int{}
		for _, c := range n.Children {
			mergeCounts(out, freeVarsRec(h, c, cutoff))
		}
		return out
	}
}

func mergeCounts(dst, src map[uint32]int) {
	for k, v := range src {
		dst[k] += v
	}
}

// FreeVariables returns the set of free De Bruijn indices under t.
func FreeVariables(h *heap.Heap, p arena.Pointer) map[uint32]bool {
	counts := FreeVariableCounts(h, p)
	out := make(map[uint32]bool, len(counts))
	for k := range counts {
		out[k] = true
	}
	return out
}

// CaptureDepth is one plus the maximum De Bruijn index referenced by any
// sub-term (spec §3.5), or 0 if t references no free variable.
func CaptureDepth(h *heap.Heap, p arena.Pointer) uint32 {
	counts := FreeVariableCounts(h, p)
	var max uint32
	found := false
	for k := range counts {
		if !found || k > max {
			max, found = k, true
		}
	}
	if !found {
		return 0
	}
	return max + 1
}

// CountVariableUsages reports the occurrence count of free index i under t.
func CountVariableUsages(h *heap.Heap, p arena.Pointer, i uint32) int {
	return FreeVariableCounts(h, p)[i]
}

// IsAtomic reports whether t is a zero-arity leaf (spec §3.5, and the
// compiler's "internable" notion in §4.E).
func IsAtomic(h *heap.Heap, p arena.Pointer) bool {
	return len(h.Get(p).Children) == 0
}

// IsStatic reports whether t contains no Effect sub-term, i.e. it can be
// reduced without consulting any state snapshot.
func IsStatic(h *heap.Heap, p arena.Pointer) bool {
	return isStaticRec(h, p, make(map[arena.Pointer]bool))
}

func isStaticRec(h *heap.Heap, p arena.Pointer, memo map[arena.Pointer]bool) bool {
	if p == arena.NullPointer {
		return true
	}
	if v, ok := memo[p]; ok {
		return v
	}
	n := h.Get(p)
	if n.Kind == heap.KindEffect {
		memo[p] = false
		return false
	}
	for _, c := range n.Children {
		if !isStaticRec(h, c, memo) {
			memo[p] = false
			return false
		}
	}
	memo[p] = true
	return true
}

// IsComplex reports whether t requires reduction work (an unreduced
// redex) as opposed to being already in normal form.
func IsComplex(h *heap.Heap, p arena.Pointer) bool {
	switch h.Get(p).Kind {
	case heap.KindApplication, heap.KindPartial, heap.KindLet:
		return true
	default:
		return false
	}
}

// DynamicDependencies computes the set of Effect conditions reachable from
// t without consulting state (a static over-approximation used by the
// supervisor to decide whether re-evaluation is worth attempting before a
// full Evaluate — spec §3.5 "dynamic_dependencies(deep?)"). When deep is
// false, only Strict-argument positions of Application nodes are
// descended into; when true, Eager argument positions are also descended.
func DynamicDependencies(h *heap.Heap, p arena.Pointer, deep bool) []arena.Pointer {
	seen := make(map[arena.Pointer]bool)
	var out []arena.Pointer
	var walk func(arena.Pointer)
	walk = func(p arena.Pointer) {
		if p == arena.NullPointer || seen[p] {
			return
		}
		seen[p] = true
		n := h.Get(p)
		switch n.Kind {
		case heap.KindEffect:
			out = append(out, n.Children[0])
			return
		case heap.KindApplication, heap.KindPartial:
			walk(n.Children[0])
			spec := builtinSpecOf(h, n.Children[0])
			args := h.ListItems(n.Children[1])
			for i, a := range args {
				strict := spec == nil || argStrictness(spec, i) == StrictArg
				if strict || deep {
					walk(a)
				}
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(p)
	return out
}

func builtinSpecOf(h *heap.Heap, targetPtr arena.Pointer) *BuiltinSpec {
	n := h.Get(targetPtr)
	if n.Kind != heap.KindBuiltin {
		return nil
	}
	return LookupBuiltin(n.U32)
}

func argStrictness(spec *BuiltinSpec, i int) Strictness {
	if i < len(spec.ArgStrictness) {
		return spec.ArgStrictness[i]
	}
	if spec.Variadic && len(spec.ArgStrictness) > 0 {
		return spec.ArgStrictness[len(spec.ArgStrictness)-1]
	}
	return EagerArg
}
