package wasmgen

import "fmt"

// Bindings resolves every capability a template function's imports name
// (spec §4.F.1 step 1: "building substitution maps for functions, tables,
// memories, globals, types, and locals ... each source import of module
// '$' names a required capability in the destination") to a concrete index
// already present in the destination module.
type Bindings struct {
	Funcs    map[string]uint32 // "module.name" -> dest function index
	Tables   map[string]uint32
	Memories map[string]uint32
	Globals  map[string]uint32
}

func importKey(imp Import) string { return imp.Module + "." + imp.Name }

// ImportTemplateFunction rewrites src's function srcFn (by name) onto dest:
// every reference the template body makes to one of src's own imports is
// resolved through bindings and rewritten to the corresponding destination
// index; the rewritten function is appended to dest and its new function
// index returned. This realizes §4.F.1's template-import mechanism, which
// lets the runtime ship as a WASM template (e.g. a precompiled "evaluate"
// or "apply") whose imports are concretely bound per user module rather
// than re-emitted from scratch for every compiled query.
func ImportTemplateFunction(dest, src *Module, srcFn string, bindings Bindings) (uint32, error) {
	var tmpl *Function
	for i := range src.Functions {
		if src.Functions[i].Name == srcFn {
			tmpl = &src.Functions[i]
			break
		}
	}
	if tmpl == nil {
		return 0, fmt.Errorf("wasmgen: template function %q not found in source module", srcFn)
	}

	funcSubst := make(map[uint64]uint64, len(src.Imports))
	for i, imp := range src.Imports {
		if imp.Kind != ImportFunc {
			continue
		}
		destIdx, ok := bindings.Funcs[importKey(imp)]
		if !ok {
			return 0, fmt.Errorf("wasmgen: no binding for template import %s.%s", imp.Module, imp.Name)
		}
		funcSubst[uint64(i)] = uint64(destIdx)
	}

	rewritten, err := rewriteInstrs(tmpl.Body, funcSubst)
	if err != nil {
		return 0, fmt.Errorf("wasmgen: linking template %q: %w", srcFn, err)
	}

	sig := src.Types[tmpl.TypeIndex]
	idx := dest.AddFunction(Function{Name: srcFn, Locals: tmpl.Locals, Body: rewritten}, sig)
	return idx, nil
}

// rewriteInstrs applies funcSubst to every Call target in code, recursing
// into Block/Loop/If bodies (§4.F.1 step 3), and rejects BrTable/DataDrop
// (§4.F.1: "Unsupported instruction kinds (branch tables, data drop) are
// rejected").
func rewriteInstrs(code []Instr, funcSubst map[uint64]uint64) ([]Instr, error) {
	out := make([]Instr, len(code))
	for i, ins := range code {
		rewritten, err := rewriteInstr(ins, funcSubst)
		if err != nil {
			return nil, err
		}
		out[i] = rewritten
	}
	return out, nil
}

func rewriteInstr(ins Instr, funcSubst map[uint64]uint64) (Instr, error) {
	switch ins.Op {
	case OpBrTable:
		return Instr{}, fmt.Errorf("branch tables are not supported by the template linker")
	case OpDataDrop:
		return Instr{}, fmt.Errorf("data.drop is not supported by the template linker")
	case OpCall:
		srcIdx := ins.Imm[0]
		destIdx, ok := funcSubst[srcIdx]
		if !ok {
			return Instr{}, fmt.Errorf("call to unbound function index %d (template functions may only call their own imports)", srcIdx)
		}
		return Instr{Op: OpCall, Imm: []uint64{destIdx}}, nil
	case OpBlock, OpLoop:
		then, err := rewriteInstrs(ins.Then, funcSubst)
		if err != nil {
			return Instr{}, err
		}
		return Instr{Op: ins.Op, BlockType: ins.BlockType, Then: then}, nil
	case OpIf:
		then, err := rewriteInstrs(ins.Then, funcSubst)
		if err != nil {
			return Instr{}, err
		}
		els, err := rewriteInstrs(ins.Else, funcSubst)
		if err != nil {
			return Instr{}, err
		}
		return Instr{Op: OpIf, BlockType: ins.BlockType, Then: then, Else: els}, nil
	default:
		return ins, nil
	}
}
