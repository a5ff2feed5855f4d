package wasmgen

// ValType is a WASM value type.
type ValType byte

const (
	ValI32 ValType = 0x7f
	ValI64 ValType = 0x7e
	ValF32 ValType = 0x7d
	ValF64 ValType = 0x7c
	ValFuncRef ValType = 0x70
)

// FuncType is a WASM function signature.
type FuncType struct {
	Params, Results []ValType
}

func (a FuncType) equal(b FuncType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}

// Op is one of the small set of real WASM opcodes this package emits or
// rewrites. Reflex's bytecode IR (internal/bytecode) is a higher-level
// stack machine compiled down onto this instruction set by codegen.go.
type Op byte

const (
	OpUnreachable Op = iota
	OpNop
	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpBrTable
	OpReturn
	OpCall
	OpCallIndirect
	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet
	OpI32Const
	OpI64Const
	OpI32Eq
	OpI32Eqz
	OpDrop
	OpSelect
	OpDataDrop // present only so the §4.F.1 linker has something concrete to reject
)

// Instr is one structured instruction. Imm holds the opcode's scalar
// immediates (local/function/global/type indices, br depths, constants);
// Then/Else hold the nested instruction sequences of Block/Loop/If, so the
// §4.F.1 link-editor can recurse into them the way spec 4.F.1 step 3
// requires ("recursively rewriting nested instruction sequences").
type Instr struct {
	Op      Op
	Imm     []uint64
	BlockType []ValType // result type of Block/Loop/If, when non-empty
	Then    []Instr
	Else    []Instr
}

// ImportKind distinguishes what an Import binds.
type ImportKind byte

const (
	ImportFunc ImportKind = iota
	ImportTable
	ImportMemory
	ImportGlobal
)

// Import is one entry of the import section — spec §4.F.1's "each source
// import of module '$' names a required capability in the destination".
type Import struct {
	Module, Name string
	Kind         ImportKind
	TypeIndex    uint32 // ImportFunc
}

// Function is one locally-defined function.
type Function struct {
	Name      string // not encoded; used by codegen/linker for lookups and the export section
	TypeIndex uint32
	Locals    []ValType
	Body      []Instr
}

// Export is one export-section entry.
type Export struct {
	Name  string
	Kind  ImportKind
	Index uint32
}

// Module is the in-memory representation of the single WASM module spec
// §4.F describes, before binary encoding (encode.go) or template-import
// linking (linker.go).
type Module struct {
	Types     []FuncType
	Imports   []Import
	Functions []Function
	TableSize uint32 // function-table size; Compile sets one entry per lifted bytecode function (stdlib functions get none)
	MemoryMin uint32 // pages (64 KiB each)
	Exports   []Export
}

// NewModule returns an empty module with memoryPages of linear memory and no
// exports; Compile adds the "memory" export.
func NewModule(memoryPages uint32) *Module {
	return &Module{MemoryMin: memoryPages}
}

// addType interns t, returning its index (func types are deduplicated by
// structural equality, matching how WASM toolchains share identical
// signatures across many functions).
func (m *Module) addType(t FuncType) uint32 {
	for i, existing := range m.Types {
		if existing.equal(t) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, t)
	return uint32(len(m.Types) - 1)
}

// AddImportFunc registers a function import and returns its function-index
// (imported functions occupy the low function-index space, before any
// locally defined function per the WASM module spec).
func (m *Module) AddImportFunc(module, name string, sig FuncType) uint32 {
	idx := m.addType(sig)
	m.Imports = append(m.Imports, Import{Module: module, Name: name, Kind: ImportFunc, TypeIndex: idx})
	return uint32(m.importFuncCount() - 1)
}

func (m *Module) importFuncCount() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == ImportFunc {
			n++
		}
	}
	return n
}

// AddFunction appends a locally defined function and returns its function
// index (offset past every imported function).
func (m *Module) AddFunction(fn Function, sig FuncType) uint32 {
	fn.TypeIndex = m.addType(sig)
	m.Functions = append(m.Functions, fn)
	return uint32(m.importFuncCount() + len(m.Functions) - 1)
}

// AddExport records an export-section entry.
func (m *Module) AddExport(name string, kind ImportKind, index uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Index: index})
}

// FunctionByName looks up a locally defined function by its codegen-time
// name (used by the linker to resolve bindings by symbolic name).
func (m *Module) FunctionByName(name string) (uint32, bool) {
	for i, fn := range m.Functions {
		if fn.Name == name {
			return uint32(m.importFuncCount() + i), true
		}
	}
	return 0, false
}
