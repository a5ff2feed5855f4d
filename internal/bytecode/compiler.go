package bytecode

import (
	"fmt"

	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/expr"
	"github.com/reflexrun/reflex/internal/heap"
)

// Function is a top-level compiled function a Lambda has been lifted to
// (spec §4.E "Lambda is lifted to a top-level compiled function keyed by
// the hash of its body; multiple occurrences of the same lambda share one
// function body").
type Function struct {
	ID   uint32
	Sig  Signature
	Body CompiledBlock
}

// Module is the output of compiling one query: the entry block plus every
// top-level function it (transitively) calls, and the constant table both
// reference.
type Module struct {
	Entry     CompiledBlock
	Functions []*Function
	Constants *ConstantTable
}

// Compiler holds the state threaded through one compilation: the heap
// terms are read from, the active CompilerOptions, the lambda-lifting
// function table (keyed by body hash, per spec §4.E), and the constant
// table.
type Compiler struct {
	h          *heap.Heap
	opts       CompilerOptions
	functions  map[uint64]*Function
	order      []*Function
	nextFuncID uint32
	consts     *ConstantTable
}

// NewCompiler constructs a Compiler over h with the given options.
func NewCompiler(h *heap.Heap, opts CompilerOptions) *Compiler {
	return &Compiler{
		h:         h,
		opts:      opts,
		functions: make(map[uint64]*Function),
		consts:    newConstantTable(),
	}
}

// Compile compiles p (already-normalized, see internal/expr.Normalize) into
// a Module.
func (c *Compiler) Compile(p arena.Pointer) (*Module, error) {
	stack := NewCompilerStack()
	code, err := c.compileTerm(p, stack)
	if err != nil {
		return nil, err
	}
	entry := CompiledBlock{Exit: []ValueType{HeapPointer}, Code: code}
	return &Module{Entry: entry, Functions: c.order, Constants: c.consts}, nil
}

func (c *Compiler) intern(p arena.Pointer) uint32 {
	return c.consts.intern(c.h.Hash(p), p)
}

// registerFunction lifts lambdaPtr to a top-level Function, reusing an
// existing entry when its body hash has already been compiled.
func (c *Compiler) registerFunction(lambdaPtr arena.Pointer) (*Function, error) {
	n := c.h.Get(lambdaPtr)
	bodyHash := c.h.Hash(n.Children[0])
	if fn, ok := c.functions[bodyHash]; ok {
		return fn, nil
	}
	fn := &Function{
		ID:  c.nextFuncID,
		Sig: Signature{Params: paramTypes(int(n.U32)), Results: []ValueType{HeapPointer}},
	}
	c.nextFuncID++
	c.functions[bodyHash] = fn
	c.order = append(c.order, fn)

	stack := NewCompilerStack()
	stack.PushScope()
	for i := 0; i < int(n.U32); i++ {
		stack.Bind(HeapPointer, false)
		_ = i
	}
	code, err := c.compileTerm(n.Children[0], stack)
	if err != nil {
		return nil, err
	}
	fn.Body = CompiledBlock{Entry: fn.Sig.Params, Exit: []ValueType{HeapPointer}, Code: code}
	return fn, nil
}

func paramTypes(n int) []ValueType {
	out := make([]ValueType, n)
	for i := range out {
		out[i] = HeapPointer
	}
	return out
}

func (c *Compiler) compileTerm(p arena.Pointer, stack *CompilerStack) ([]Instruction, error) {
	n := c.h.Get(p)
	switch n.Kind {
	case heap.KindVariable:
		stack.Push(HeapPointer)
		return []Instruction{{Op: OpGetScopeValue, Type: HeapPointer, N: int(n.U32)}}, nil

	case heap.KindEffect:
		id := c.intern(n.Children[0])
		stack.Push(HeapPointer)
		return []Instruction{
			{Op: OpConst, Const: Const{Type: HeapPointer, Pointer: id}},
			{Op: OpLoadStateValue},
		}, nil

	case heap.KindLet:
		return c.compileLet(n, stack)

	case heap.KindApplication:
		return c.compileApplication(n, stack)

	case heap.KindRecord:
		return c.compileRecord(n, stack)

	case heap.KindList:
		return c.compileList(n, stack)

	default:
		id := c.intern(p)
		stack.Push(HeapPointer)
		return []Instruction{{Op: OpConst, Const: Const{Type: HeapPointer, Pointer: id}}}, nil
	}
}

func (c *Compiler) compileLet(n heap.Node, stack *CompilerStack) ([]Instruction, error) {
	initCode, err := c.compileTerm(n.Children[0], stack)
	if err != nil {
		return nil, err
	}
	var out []Instruction
	out = append(out, initCode...)

	if c.opts.LazyVariableInitializers == Strict {
		if err := stack.Expect(HeapPointer); err != nil {
			return nil, err
		}
		stack.Push(HeapPointer)
		out = append(out, Instruction{Op: OpCollectSignals, N: 1, Retain: true})
		out = append(out, Instruction{Op: OpBreakOnSignal, N: 0})
	}

	if err := stack.Expect(HeapPointer); err != nil {
		return nil, err
	}
	stack.PushScope()
	stack.Bind(HeapPointer, false)
	out = append(out, Instruction{Op: OpDeclareVariable, Type: HeapPointer})

	bodyCode, err := c.compileTerm(n.Children[1], stack)
	if err != nil {
		return nil, err
	}
	out = append(out, bodyCode...)
	stack.PopScope()
	out = append(out, Instruction{Op: OpScopeEnd, Type: HeapPointer})
	return out, nil
}

func (c *Compiler) compileApplication(n heap.Node, stack *CompilerStack) ([]Instruction, error) {
	targetPtr := n.Children[0]
	argPtrs := c.h.ListItems(n.Children[1])
	targetNode := c.h.Get(targetPtr)

	if targetNode.Kind == heap.KindBuiltin {
		switch targetNode.U32 {
		case expr.BuiltinIf:
			return c.compileIf(argPtrs, stack)
		case expr.BuiltinAnd:
			return c.compileShortCircuit(argPtrs, stack, true)
		case expr.BuiltinOr:
			return c.compileShortCircuit(argPtrs, stack, false)
		default:
			return c.compileCallStdlib(targetNode.U32, argPtrs, stack)
		}
	}

	if targetNode.Kind == heap.KindLambda && int(targetNode.U32) == len(argPtrs) {
		fn, err := c.registerFunction(targetPtr)
		if err != nil {
			return nil, err
		}
		var out []Instruction
		for _, a := range argPtrs {
			code, err := c.compileTerm(a, stack)
			if err != nil {
				return nil, err
			}
			out = append(out, code...)
		}
		for range argPtrs {
			if err := stack.Expect(HeapPointer); err != nil {
				return nil, err
			}
		}
		stack.Push(HeapPointer)
		out = append(out, Instruction{Op: OpCallCompiledFunction, ID: fn.ID, Sig: fn.Sig})
		return out, nil
	}

	targetCode, err := c.compileTerm(targetPtr, stack)
	if err != nil {
		return nil, err
	}
	argsListCode, err := c.compileTerm(n.Children[1], stack)
	if err != nil {
		return nil, err
	}
	if err := stack.Expect(HeapPointer); err != nil { // args list
		return nil, err
	}
	if err := stack.Expect(HeapPointer); err != nil { // target
		return nil, err
	}
	stack.Push(HeapPointer)
	var out []Instruction
	out = append(out, targetCode...)
	out = append(out, argsListCode...)
	out = append(out, Instruction{Op: OpCallDynamic, Sig: Signature{
		Params:  []ValueType{HeapPointer, HeapPointer},
		Results: []ValueType{HeapPointer},
	}})
	return out, nil
}

func (c *Compiler) compileIf(args []arena.Pointer, stack *CompilerStack) ([]Instruction, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("bytecode: if requires 3 arguments, got %d", len(args))
	}
	condCode, err := c.compileTerm(args[0], stack)
	if err != nil {
		return nil, err
	}
	if err := stack.Expect(HeapPointer); err != nil {
		return nil, err
	}

	consStack := NewCompilerStack()
	consCode, err := c.compileTerm(args[1], consStack)
	if err != nil {
		return nil, err
	}
	altStack := NewCompilerStack()
	altCode, err := c.compileTerm(args[2], altStack)
	if err != nil {
		return nil, err
	}

	stack.Push(HeapPointer)
	var out []Instruction
	out = append(out, condCode...)
	out = append(out, Instruction{Op: OpCollectSignals, N: 1, Retain: true})
	out = append(out, Instruction{Op: OpBreakOnSignal, N: 0})
	out = append(out, Instruction{
		Op:   OpIf,
		Sig:  Signature{Results: []ValueType{HeapPointer}},
		Cons: CompiledBlock{Code: consCode, Exit: []ValueType{HeapPointer}},
		Alt:  CompiledBlock{Code: altCode, Exit: []ValueType{HeapPointer}},
	})
	return out, nil
}

// compileShortCircuit realizes And/Or as If(cond, second, false) / If(cond,
// true, second) — spec §4.E describes the same boolean-coercion-then-If
// shape; expressing it in terms of If keeps one evaluation rule (OpIf reads
// the top HeapPointer as a Boolean term) instead of two.
func (c *Compiler) compileShortCircuit(args []arena.Pointer, stack *CompilerStack, isAnd bool) ([]Instruction, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("bytecode: and/or require 2 arguments, got %d", len(args))
	}
	literal := c.h.Boolean(!isAnd)
	if isAnd {
		return c.compileIf([]arena.Pointer{args[0], args[1], literal}, stack)
	}
	return c.compileIf([]arena.Pointer{args[0], literal, args[1]}, stack)
}

func (c *Compiler) compileCallStdlib(id uint32, args []arena.Pointer, stack *CompilerStack) ([]Instruction, error) {
	spec := expr.LookupBuiltin(id)
	if spec == nil {
		return nil, fmt.Errorf("bytecode: unknown builtin id %d", id)
	}
	var out []Instruction
	for _, a := range args {
		code, err := c.compileTerm(a, stack)
		if err != nil {
			return nil, err
		}
		out = append(out, code...)
	}
	for range args {
		if err := stack.Expect(HeapPointer); err != nil {
			return nil, err
		}
	}
	stack.Push(HeapPointer)
	out = append(out, Instruction{Op: OpCallStdlib, ID: id})
	return out, nil
}

// compileRecord implements spec §4.E's Record strict-mode example: each
// value is emitted, and in Strict mode followed by CollectSignals+
// BreakOnSignal so any blocked field short-circuits the whole record
// before MakeRecord executes.
func (c *Compiler) compileRecord(n heap.Node, stack *CompilerStack) ([]Instruction, error) {
	mode := c.opts.LazyRecordValues
	if mode == Lazy {
		id := c.intern(c.h.Record(n.Children[0], n.Children[1]))
		stack.Push(HeapPointer)
		return []Instruction{{Op: OpConst, Const: Const{Type: HeapPointer, Pointer: id}}}, nil
	}

	values := c.h.ListItems(n.Children[1])
	var out []Instruction
	for i, v := range values {
		code, err := c.compileTerm(v, stack)
		if err != nil {
			return nil, err
		}
		out = append(out, code...)
		if mode == Strict {
			if err := stack.Expect(HeapPointer); err != nil {
				return nil, err
			}
			stack.Push(HeapPointer)
			out = append(out, Instruction{Op: OpCollectSignals, N: i + 1, Retain: true})
			out = append(out, Instruction{Op: OpBreakOnSignal, N: 0})
		}
	}
	for range values {
		if err := stack.Expect(HeapPointer); err != nil {
			return nil, err
		}
	}
	keysID := c.intern(n.Children[0])
	stack.Push(HeapPointer)
	out = append(out, Instruction{Op: OpConst, Const: Const{Type: HeapPointer, Pointer: keysID}})
	out = append(out, Instruction{Op: OpCallRuntimeBuiltin, ID: RuntimeBuiltinMakeRecord, N: len(values)})
	return out, nil
}

func (c *Compiler) compileList(n heap.Node, stack *CompilerStack) ([]Instruction, error) {
	mode := c.opts.LazyListItems
	if mode == Lazy {
		id := c.intern(c.h.List(n.Children...))
		stack.Push(HeapPointer)
		return []Instruction{{Op: OpConst, Const: Const{Type: HeapPointer, Pointer: id}}}, nil
	}

	var out []Instruction
	for i, v := range n.Children {
		code, err := c.compileTerm(v, stack)
		if err != nil {
			return nil, err
		}
		out = append(out, code...)
		if mode == Strict {
			if err := stack.Expect(HeapPointer); err != nil {
				return nil, err
			}
			stack.Push(HeapPointer)
			out = append(out, Instruction{Op: OpCollectSignals, N: i + 1, Retain: true})
			out = append(out, Instruction{Op: OpBreakOnSignal, N: 0})
		}
	}
	for range n.Children {
		if err := stack.Expect(HeapPointer); err != nil {
			return nil, err
		}
	}
	stack.Push(HeapPointer)
	out = append(out, Instruction{Op: OpCallRuntimeBuiltin, ID: RuntimeBuiltinMakeList, N: len(n.Children)})
	return out, nil
}
