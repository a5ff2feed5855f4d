package wasmgen

import (
	"sort"

	"github.com/reflexrun/reflex/internal/heap"
)

// RuntimeModuleName is the import module name every runtime builtin is
// bound under, matching §4.F.1's "each source import of module '$'".
const RuntimeModuleName = "reflex_runtime"

// coreTermKinds are the term variants a compiled module needs a
// constructor builtin for; the iterator Kind variants (Range, Map, Zip,
// ...) are realized purely in the host evaluator (internal/expr) and never
// constructed from compiled WASM code, so they're excluded here.
var coreTermKinds = []heap.Kind{
	heap.KindNil, heap.KindBoolean, heap.KindInt, heap.KindFloat,
	heap.KindString, heap.KindSymbol, heap.KindVariable, heap.KindEffect,
	heap.KindLet, heap.KindLambda, heap.KindApplication, heap.KindPartial,
	heap.KindRecord, heap.KindConstructor, heap.KindList, heap.KindHashmap,
	heap.KindHashset, heap.KindSignal,
}

// RuntimeBuiltinSignatures lists every runtime builtin spec §4.F names by
// function name ("evaluate, apply, combineDependencies, combineSignals,
// isSignal, constructors for each term variant, accessors, getStateValue,
// initList/initHashmap/initString") alongside its WASM signature, all
// values represented as i32 handles into the arena (arena.Pointer is a
// uint32 offset, so this is a direct, lossless mapping — no boxing needed).
func RuntimeBuiltinSignatures() map[string]FuncType {
	sigs := map[string]FuncType{
		"evaluate":            {Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}},
		"apply":               {Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}},
		"combineDependencies": {Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}},
		"combineSignals":      {Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}},
		"isSignal":            {Params: []ValType{ValI32}, Results: []ValType{ValI32}},
		"getStateValue":       {Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}},
		"initList":            {Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}},
		"initHashmap":         {Params: []ValType{ValI32, ValI32, ValI32}, Results: []ValType{ValI32}},
		"initString":          {Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}},
		"accessKind":          {Params: []ValType{ValI32}, Results: []ValType{ValI32}},
		"accessChild":         {Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}},
	}
	for _, k := range coreTermKinds {
		sigs["construct"+k.String()] = constructorSignature(k)
	}
	return sigs
}

// constructorSignature returns a plausible arity for constructing a term
// of kind k: nullary kinds (Nil) take no arguments; single-field kinds
// (Boolean, Int, Variable, Effect, Signal, Symbol, String) take one i32
// payload handle; two-child kinds (Let, Lambda, Application, Partial,
// Record, Hashmap) take two.
func constructorSignature(k heap.Kind) FuncType {
	switch k {
	case heap.KindNil:
		return FuncType{Results: []ValType{ValI32}}
	case heap.KindLet, heap.KindLambda, heap.KindApplication, heap.KindPartial,
		heap.KindRecord, heap.KindHashmap:
		return FuncType{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}}
	default:
		return FuncType{Params: []ValType{ValI32}, Results: []ValType{ValI32}}
	}
}

// ImportRuntimeBuiltins registers every RuntimeBuiltinSignatures entry as
// a "reflex_runtime" import on m and returns the assigned function indices
// by name, so codegen.go can emit Call instructions against them.
func ImportRuntimeBuiltins(m *Module) map[string]uint32 {
	sigs := RuntimeBuiltinSignatures()
	indices := make(map[string]uint32, len(sigs))
	// Deterministic order keeps Encode's output stable across runs.
	names := make([]string, 0, len(sigs))
	for name := range sigs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		indices[name] = m.AddImportFunc(RuntimeModuleName, name, sigs[name])
	}
	return indices
}
