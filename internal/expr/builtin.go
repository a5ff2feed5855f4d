// Package expr implements the pure expression algebra of spec §3.5/§4.C:
// size, capture depth, free variables, substitution, normalization,
// arity/apply, and a reference tree-walking evaluator used as the
// semantic ground truth the bytecode compiler (internal/bytecode) must
// agree with.
package expr

import (
	"fmt"

	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/heap"
)

// Strictness controls whether an Application argument contributes to the
// dependency set unconditionally (Strict) or only once actually read
// (Eager) — spec §4.C "declared per-builtin as Strict or Eager".
type Strictness int

const (
	EagerArg Strictness = iota
	StrictArg
)

// BuiltinFunc reduces a fully-evaluated argument list to a result. Control
// builtins (If/And/Or/IfError) that need access to unevaluated arguments are
// handled specially by Evaluate and leave Func nil. Get also has a nil Func
// but no case in Evaluate, so applying it yields an "unknown builtin" error
// signal.
type BuiltinFunc func(h *heap.Heap, args []arena.Pointer) (arena.Pointer, error)

// BuiltinSpec describes one entry of the closed builtin registry (spec
// §3.2 Builtin(id), §4.E CallRuntimeBuiltin).
type BuiltinSpec struct {
	ID            uint32
	Name          string
	RequiredArity int
	OptionalArity int
	Variadic      bool
	ArgStrictness []Strictness // length RequiredArity+OptionalArity; variadic args reuse the last entry
	Func          BuiltinFunc
	// Total declares the builtin as a pure total function eligible for
	// constant folding during Normalize (spec §4.C).
	Total bool
}

// Builtin IDs. Control-flow builtins (If/And/Or) are ordinary applicable
// terms like any other — the compiler special-cases them for lazy codegen,
// but at the term-graph level they are just Application(Builtin(id), args).
const (
	BuiltinAdd uint32 = iota
	BuiltinSub
	BuiltinMul
	BuiltinDiv
	BuiltinEq
	BuiltinNe
	BuiltinIf
	BuiltinAnd
	BuiltinOr
	BuiltinGet
	BuiltinIfError
)

var registry = map[uint32]*BuiltinSpec{
	BuiltinAdd: {ID: BuiltinAdd, Name: "add", RequiredArity: 2, ArgStrictness: []Strictness{StrictArg, StrictArg}, Total: true, Func: arith(func(a, b float64) float64 { return a + b }, func(a, b int64) int64 { return a + b })},
	BuiltinSub: {ID: BuiltinSub, Name: "subtract", RequiredArity: 2, ArgStrictness: []Strictness{StrictArg, StrictArg}, Total: true, Func: arith(func(a, b float64) float64 { return a - b }, func(a, b int64) int64 { return a - b })},
	BuiltinMul: {ID: BuiltinMul, Name: "multiply", RequiredArity: 2, ArgStrictness: []Strictness{StrictArg, StrictArg}, Total: true, Func: arith(func(a, b float64) float64 { return a * b }, func(a, b int64) int64 { return a * b })},
	BuiltinDiv: {ID: BuiltinDiv, Name: "divide", RequiredArity: 2, ArgStrictness: []Strictness{StrictArg, StrictArg}, Total: false, Func: divide},
	BuiltinEq:  {ID: BuiltinEq, Name: "equal", RequiredArity: 2, ArgStrictness: []Strictness{StrictArg, StrictArg}, Total: true, Func: equal},
	BuiltinNe:  {ID: BuiltinNe, Name: "not_equal", RequiredArity: 2, ArgStrictness: []Strictness{StrictArg, StrictArg}, Total: true, Func: notEqual},
	// If/And/Or: the condition is Strict (always a dependency of the
	// Application), the branches are Eager (only the taken one is).
	// Func is nil — Evaluate short-circuits these specially.
	BuiltinIf: {ID: BuiltinIf, Name: "if", RequiredArity: 3, ArgStrictness: []Strictness{StrictArg, EagerArg, EagerArg}},
	BuiltinAnd: {ID: BuiltinAnd, Name: "and", RequiredArity: 2, ArgStrictness: []Strictness{StrictArg, EagerArg}},
	BuiltinOr:  {ID: BuiltinOr, Name: "or", RequiredArity: 2, ArgStrictness: []Strictness{StrictArg, EagerArg}},
	BuiltinGet: {ID: BuiltinGet, Name: "get", RequiredArity: 2, ArgStrictness: []Strictness{StrictArg, EagerArg}},
	BuiltinIfError: {ID: BuiltinIfError, Name: "if_error", RequiredArity: 2, ArgStrictness: []Strictness{EagerArg, EagerArg}},
}

// LookupBuiltin returns the registered spec for id, or nil.
func LookupBuiltin(id uint32) *BuiltinSpec {
	return registry[id]
}

// BuiltinByName resolves a builtin's registered Name (e.g. "add",
// "if_error") back to its ID, for term-graph front ends that author
// builtins by name (cmd/reflexd's JSON query decoder).
func BuiltinByName(name string) (uint32, bool) {
	for id, spec := range registry {
		if spec.Name == name {
			return id, true
		}
	}
	return 0, false
}

func arith(f64 func(a, b float64) float64, i64 func(a, b int64) int64) BuiltinFunc {
	return func(h *heap.Heap, args []arena.Pointer) (arena.Pointer, error) {
		a, b := h.Get(args[0]), h.Get(args[1])
		if a.Kind == heap.KindInt && b.Kind == heap.KindInt {
			return h.Int(i64(a.Int, b.Int)), nil
		}
		af, aok := numeric(a)
		bf, bok := numeric(b)
		if !aok || !bok {
			return arena.NullPointer, fmt.Errorf("expr: non-numeric operand")
		}
		return h.Float(f64(af, bf)), nil
	}
}

func divide(h *heap.Heap, args []arena.Pointer) (arena.Pointer, error) {
	a, b := h.Get(args[0]), h.Get(args[1])
	af, aok := numeric(a)
	bf, bok := numeric(b)
	if !aok || !bok {
		return arena.NullPointer, fmt.Errorf("expr: non-numeric operand")
	}
	if bf == 0 {
		return arena.NullPointer, fmt.Errorf("expr: division by zero")
	}
	if a.Kind == heap.KindInt && b.Kind == heap.KindInt && a.Int%b.Int == 0 {
		return h.Int(a.Int / b.Int), nil
	}
	return h.Float(af / bf), nil
}

func numeric(n heap.Node) (float64, bool) {
	switch n.Kind {
	case heap.KindInt:
		return float64(n.Int), true
	case heap.KindFloat:
		return n.Float, true
	default:
		return 0, false
	}
}

func equal(h *heap.Heap, args []arena.Pointer) (arena.Pointer, error) {
	return h.Boolean(h.Hash(args[0]) == h.Hash(args[1])), nil
}

func notEqual(h *heap.Heap, args []arena.Pointer) (arena.Pointer, error) {
	return h.Boolean(h.Hash(args[0]) != h.Hash(args[1])), nil
}
