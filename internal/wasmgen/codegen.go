package wasmgen

import (
	"fmt"

	"github.com/reflexrun/reflex/internal/bytecode"
	"github.com/reflexrun/reflex/internal/expr"
)

// heapPointerFuncType is every compiled function's signature: N HeapPointer
// params (realized as i32 arena handles) and one HeapPointer result,
// matching internal/bytecode's Signature{Params: [HeapPointer]*, Results:
// [HeapPointer]}.
func heapPointerFuncType(n int) FuncType {
	params := make([]ValType, n)
	for i := range params {
		params[i] = ValI32
	}
	return FuncType{Params: params, Results: []ValType{ValI32}}
}

// Compile lowers a compiled internal/bytecode.Module onto a wasmgen.Module:
// one WASM function per lifted bytecode.Function (sharing is preserved —
// bytecode.Compiler already lambda-lifts by body hash), an "entry" export
// for the top-level query, a function table with one entry per lifted
// bytecode.Function, and the runtime-builtin import table. Stdlib functions
// get no table entry, and no element segment fills the table.
//
// CallDynamic/CallRuntimeBuiltin/CallStdlib/LoadStateValue/CollectSignals/
// BreakOnSignal all lower onto calls against the "reflex_runtime" imports;
// the real per-instruction "state_local ← …; combineDependencies(...)"
// bookkeeping spec §4.F.1 describes is the runtime builtins' own
// responsibility once template-linked in (ImportTemplateFunction), not
// something this lowering pass re-derives per call site.
func Compile(bm *bytecode.Module) (*Module, error) {
	m := NewModule(1) // one 64 KiB page to start; grows at runtime like the arena it backs
	builtins := ImportRuntimeBuiltins(m)

	g := &codegen{module: m, builtins: builtins, stdlib: make(map[uint32]uint32), bcFuncs: make(map[uint32]uint32)}

	// Import every stdlib builtin before any local function is added:
	// imports take the low function indices, so an import added while
	// lowering a body would shift the indices recorded in bcFuncs.
	for id := uint32(0); expr.LookupBuiltin(id) != nil; id++ {
		if _, err := g.stdlibFunc(id); err != nil {
			return nil, err
		}
	}

	// Register every lifted function first so mutually-referencing
	// CallCompiledFunction sites can resolve a target index regardless of
	// declaration order.
	for _, fn := range bm.Functions {
		idx := m.AddFunction(Function{Name: fmt.Sprintf("fn%d", fn.ID)}, heapPointerFuncType(len(fn.Sig.Params)))
		g.bcFuncs[fn.ID] = idx
	}
	for i, fn := range bm.Functions {
		body, err := g.lowerFunctionBody(fn.Body.Code, len(fn.Sig.Params))
		if err != nil {
			return nil, fmt.Errorf("wasmgen: function %d: %w", fn.ID, err)
		}
		idx := g.bcFuncs[fn.ID]
		m.Functions[idx-uint32(m.importFuncCount())].Body = body
		m.Functions[idx-uint32(m.importFuncCount())].Locals = makeLocals(g.maxLocal(len(fn.Sig.Params)))
		_ = i
	}

	entryBody, err := g.lowerFunctionBody(bm.Entry.Code, 0)
	if err != nil {
		return nil, fmt.Errorf("wasmgen: entry block: %w", err)
	}
	entryIdx := m.AddFunction(Function{Name: "entry", Body: entryBody, Locals: makeLocals(g.maxLocal(0))}, heapPointerFuncType(0))
	m.AddExport("entry", ImportFunc, entryIdx)
	m.AddExport("memory", ImportMemory, 0)

	m.TableSize = uint32(len(bm.Functions))
	return m, nil
}

func makeLocals(n int) []ValType {
	out := make([]ValType, n)
	for i := range out {
		out[i] = ValI32
	}
	return out
}

type codegen struct {
	module   *Module
	builtins map[string]uint32
	stdlib   map[uint32]uint32 // expr builtin id -> imported wasm func index, registered by Compile before any local function
	bcFuncs  map[uint32]uint32 // bytecode.Function.ID -> wasm func index
	peakLocal int
}

func (g *codegen) maxLocal(params int) int {
	if g.peakLocal < params {
		return params
	}
	return g.peakLocal
}

func (g *codegen) stdlibFunc(id uint32) (uint32, error) {
	if idx, ok := g.stdlib[id]; ok {
		return idx, nil
	}
	spec := expr.LookupBuiltin(id)
	if spec == nil {
		return 0, fmt.Errorf("unknown stdlib builtin id %d", id)
	}
	n := spec.RequiredArity + spec.OptionalArity
	idx := g.module.AddImportFunc(RuntimeModuleName, "stdlib_"+spec.Name, heapPointerFuncType(n))
	g.stdlib[id] = idx
	return idx, nil
}

// lowerFunctionBody translates one flat []bytecode.Instruction into a
// []Instr, tracking a local-slot environment exactly the way
// internal/bytecode's Exec tracks its runtime env — a stack of
// already-allocated local indices plus the scope-size markers
// DeclareVariable/ScopeEnd push and pop, so GetScopeValue(offset)
// resolves to the same slot Exec would read at offset env[len-1-offset].
// paramCount pre-seeds the environment with the function's own WASM
// params (locals 0..paramCount-1), matching bytecode.registerFunction's
// Bind-in-declaration-order convention.
func (g *codegen) lowerFunctionBody(code []bytecode.Instruction, paramCount int) ([]Instr, error) {
	fg := &funcGen{codegen: g, nextLocal: uint32(paramCount)}
	for i := 0; i < paramCount; i++ {
		fg.localStack = append(fg.localStack, uint32(i))
	}
	out, err := fg.lower(code)
	if err != nil {
		return nil, err
	}
	if fg.nextLocal > uint32(g.peakLocal) {
		g.peakLocal = int(fg.nextLocal)
	}
	return out, nil
}

type funcGen struct {
	*codegen
	localStack []uint32
	scopeSizes []int
	nextLocal  uint32
}

func (fg *funcGen) lower(code []bytecode.Instruction) ([]Instr, error) {
	var out []Instr
	for _, ins := range code {
		lowered, err := fg.lowerOne(ins)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered...)
	}
	return out, nil
}

func (fg *funcGen) lowerOne(ins bytecode.Instruction) ([]Instr, error) {
	switch ins.Op {
	case bytecode.OpConst:
		return []Instr{{Op: OpI32Const, Imm: []uint64{uint64(ins.Const.Pointer)}}}, nil

	case bytecode.OpGetScopeValue:
		idx := len(fg.localStack) - 1 - ins.N
		if idx < 0 || idx >= len(fg.localStack) {
			return nil, fmt.Errorf("scope offset %d out of range", ins.N)
		}
		return []Instr{{Op: OpLocalGet, Imm: []uint64{uint64(fg.localStack[idx])}}}, nil

	case bytecode.OpDeclareVariable:
		slot := fg.nextLocal
		fg.nextLocal++
		fg.localStack = append(fg.localStack, slot)
		fg.scopeSizes = append(fg.scopeSizes, 1)
		return []Instr{{Op: OpLocalSet, Imm: []uint64{uint64(slot)}}}, nil

	case bytecode.OpScopeEnd:
		if len(fg.scopeSizes) == 0 {
			return nil, fmt.Errorf("ScopeEnd with no open scope")
		}
		n := fg.scopeSizes[len(fg.scopeSizes)-1]
		fg.scopeSizes = fg.scopeSizes[:len(fg.scopeSizes)-1]
		fg.localStack = fg.localStack[:len(fg.localStack)-n]
		return nil, nil

	case bytecode.OpDrop:
		return []Instr{{Op: OpDrop}}, nil

	case bytecode.OpNullPointer:
		return []Instr{{Op: OpI32Const, Imm: []uint64{0}}}, nil

	case bytecode.OpLoadStateValue:
		idx, ok := fg.builtins["getStateValue"]
		if !ok {
			return nil, fmt.Errorf("missing getStateValue import")
		}
		return []Instr{{Op: OpCall, Imm: []uint64{uint64(idx)}}}, nil

	case bytecode.OpCollectSignals, bytecode.OpBreakOnSignal:
		// Realized entirely inside the runtime-builtin templates this
		// module imports (they inspect/replace the top of the real WASM
		// operand stack the same way internal/bytecode.Exec's pending/
		// pendingN fields do) — no additional instructions needed at the
		// call site itself.
		return nil, nil

	case bytecode.OpIf:
		condTrue, err := fg.lower(ins.Cons.Code)
		if err != nil {
			return nil, err
		}
		condFalse, err := fg.lower(ins.Alt.Code)
		if err != nil {
			return nil, err
		}
		return []Instr{{
			Op:        OpIf,
			BlockType: []ValType{ValI32},
			Then:      condTrue,
			Else:      condFalse,
		}}, nil

	case bytecode.OpCallStdlib:
		idx, err := fg.stdlibFunc(ins.ID)
		if err != nil {
			return nil, err
		}
		return []Instr{{Op: OpCall, Imm: []uint64{uint64(idx)}}}, nil

	case bytecode.OpCallRuntimeBuiltin:
		name, err := runtimeBuiltinName(ins.ID)
		if err != nil {
			return nil, err
		}
		idx, ok := fg.builtins[name]
		if !ok {
			return nil, fmt.Errorf("missing runtime builtin import %q", name)
		}
		return []Instr{{Op: OpCall, Imm: []uint64{uint64(idx)}}}, nil

	case bytecode.OpCallCompiledFunction:
		idx, ok := fg.bcFuncs[ins.ID]
		if !ok {
			return nil, fmt.Errorf("call to unregistered compiled function %d", ins.ID)
		}
		return []Instr{{Op: OpCall, Imm: []uint64{uint64(idx)}}}, nil

	case bytecode.OpCallDynamic, bytecode.OpApply, bytecode.OpEvaluate:
		name := map[bytecode.Op]string{
			bytecode.OpCallDynamic: "apply",
			bytecode.OpApply:       "apply",
			bytecode.OpEvaluate:    "evaluate",
		}[ins.Op]
		idx, ok := fg.builtins[name]
		if !ok {
			return nil, fmt.Errorf("missing runtime builtin import %q", name)
		}
		return []Instr{{Op: OpCall, Imm: []uint64{uint64(idx)}}}, nil

	case bytecode.OpEq, bytecode.OpNe:
		ops := []Instr{{Op: OpI32Eq}}
		if ins.Op == bytecode.OpNe {
			ops = append(ops, Instr{Op: OpI32Eqz})
		}
		return ops, nil

	default:
		return nil, fmt.Errorf("wasmgen: codegen does not lower op %d", ins.Op)
	}
}

func runtimeBuiltinName(id uint32) (string, error) {
	switch id {
	case bytecode.RuntimeBuiltinMakeRecord:
		return "constructRecord", nil
	case bytecode.RuntimeBuiltinMakeList:
		return "initList", nil
	case bytecode.RuntimeBuiltinCombineSignals:
		return "combineSignals", nil
	case bytecode.RuntimeBuiltinIsSignal:
		return "isSignal", nil
	default:
		return "", fmt.Errorf("unknown runtime builtin id %d", id)
	}
}
