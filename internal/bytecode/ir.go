// Package bytecode implements the typed stack-machine IR and compiler of
// spec §4.E: terms compile to a CompiledBlock of Instructions, which both
// the WebAssembly codegen (internal/wasmgen) and this package's own Exec
// reference interpreter execute. Exec exists so the compiler's output can
// be exercised and checked against internal/expr.Evaluate without needing
// a WebAssembly host.
package bytecode

import "fmt"

// ValueType is one of the stack machine's closed set of operand types
// (spec §4.E "IR").
type ValueType int

const (
	I32 ValueType = iota
	U32
	I64
	U64
	F32
	F64
	HeapPointer
	FunctionPointer
)

func (t ValueType) String() string {
	switch t {
	case I32:
		return "i32"
	case U32:
		return "u32"
	case I64:
		return "i64"
	case U64:
		return "u64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case HeapPointer:
		return "heap_ptr"
	case FunctionPointer:
		return "fn_ptr"
	default:
		return "unknown"
	}
}

// Signature is a compiled function's parameter and result shape.
type Signature struct {
	Params  []ValueType
	Results []ValueType
}

// Op identifies an Instruction's opcode.
type Op int

const (
	OpConst Op = iota
	OpDuplicate
	OpDrop
	OpScopeStart
	OpScopeEnd
	OpGetScopeValue
	OpBlock
	OpBreak
	OpConditionalBreak
	OpIf
	OpSelect
	OpEq
	OpNe
	OpReadHeapValue
	OpWriteHeapValue
	OpNullPointer
	OpDeclareVariable
	OpLoadStateValue
	OpCallRuntimeBuiltin
	OpCallStdlib
	OpCallCompiledFunction
	OpCallDynamic
	OpEvaluate
	OpApply
	OpCollectSignals
	OpBreakOnSignal
)

// Const is the union of literal values Const(v) can push; exactly one field
// is meaningful, selected by Type.
type Const struct {
	Type    ValueType
	I64     int64
	F64     float64
	Pointer uint32 // HeapPointer / FunctionPointer payload
}

// Instruction is one IR opcode plus its operands (spec §4.E instruction
// table). Not every field is used by every Op; Block/If carry nested
// CompiledBlocks for their arms.
type Instruction struct {
	Op Op

	Type  ValueType   // Duplicate/Drop/ScopeStart/ScopeEnd/GetScopeValue/Eq/Ne/ReadHeapValue/WriteHeapValue/DeclareVariable/CollectSignals
	Const Const       // OpConst
	N     int         // GetScopeValue offset, Break depth, CollectSignals/BreakOnSignal count
	Sig   Signature   // Block/If/CallDynamic signature
	Body  CompiledBlock // Block body
	Cons  CompiledBlock // If consequent
	Alt   CompiledBlock // If alternate

	ID     uint32 // CallRuntimeBuiltin/CallStdlib/CallCompiledFunction id
	Retain bool   // CollectSignals(n, retain?)
}

// CompiledBlock is a typed sequence of instructions with a declared entry
// and exit stack shape (spec §4.E "Compiler").
type CompiledBlock struct {
	Entry []ValueType
	Exit  []ValueType
	Code  []Instruction
}

func (b CompiledBlock) String() string {
	return fmt.Sprintf("block(entry=%v exit=%v len=%d)", b.Entry, b.Exit, len(b.Code))
}
