package bytecode

import (
	"fmt"

	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/expr"
	"github.com/reflexrun/reflex/internal/heap"
)

// execCtx threads the pieces one Exec call needs through every nested
// instruction-list execution: the heap, the state snapshot, the module
// being run, the accumulated dependency set, the runtime operand stack, the
// flat lexical environment (ScopeStart/DeclareVariable bindings, most
// recent at the end — GetScopeValue(offset) reads env[len-1-offset],
// matching internal/expr's De Bruijn convention), and the signal pending
// from the most recent CollectSignals.
//
// This interpreter is a reference implementation executed directly against
// Go values rather than a real WebAssembly host (that's internal/wasmrun's
// job once the module is emitted via internal/wasmgen); its purpose is to
// let the compiler's output be checked for agreement with
// internal/expr.Evaluate without linking a WASM runtime.
type execCtx struct {
	h        *heap.Heap
	state    expr.State
	module   *Module
	deps     *condition.DependencySet
	stack    []arena.Pointer
	env      []arena.Pointer
	scopes   []int // count of env entries pushed per open ScopeStart/DeclareVariable/call frame
	pending  []condition.Condition
	pendingN int // how many stack values the pending signal's CollectSignals inspected
}

// Exec runs module's entry block against state, returning its result (a
// value, or a Signal term if blocked) and the full dependency set touched.
func Exec(h *heap.Heap, module *Module, state expr.State) (arena.Pointer, *condition.DependencySet, error) {
	ctx := &execCtx{h: h, state: state, module: module, deps: condition.NewDependencySet()}
	if err := ctx.run(module.Entry.Code); err != nil {
		return arena.NullPointer, nil, err
	}
	if len(ctx.stack) != 1 {
		return arena.NullPointer, nil, fmt.Errorf("bytecode: entry block left %d values on stack, want 1", len(ctx.stack))
	}
	return ctx.stack[0], ctx.deps, nil
}

func (ctx *execCtx) push(p arena.Pointer) { ctx.stack = append(ctx.stack, p) }

func (ctx *execCtx) pop() (arena.Pointer, error) {
	if len(ctx.stack) == 0 {
		return arena.NullPointer, fmt.Errorf("bytecode: pop from empty stack")
	}
	p := ctx.stack[len(ctx.stack)-1]
	ctx.stack = ctx.stack[:len(ctx.stack)-1]
	return p, nil
}

// run executes code linearly; a BreakOnSignal that fires truncates the
// remaining instructions (the enclosing fragment's result is simply
// whatever is left on top of the stack), which is why Let/Record/List/If
// concatenate their guarded sub-fragments directly into one flat slice
// rather than needing true nested-block unwinding.
func (ctx *execCtx) run(code []Instruction) error {
	for _, ins := range code {
		stop, err := ctx.exec(ins)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func (ctx *execCtx) exec(ins Instruction) (stop bool, err error) {
	switch ins.Op {
	case OpConst:
		ctx.push(ctx.module.Constants.Get(ins.Const.Pointer))
		return false, nil

	case OpDuplicate:
		v, err := ctx.pop()
		if err != nil {
			return false, err
		}
		ctx.push(v)
		ctx.push(v)
		return false, nil

	case OpDrop:
		_, err := ctx.pop()
		return false, err

	case OpGetScopeValue:
		idx := len(ctx.env) - 1 - ins.N
		if idx < 0 || idx >= len(ctx.env) {
			return false, fmt.Errorf("bytecode: scope offset %d out of range", ins.N)
		}
		ctx.push(ctx.env[idx])
		return false, nil

	case OpDeclareVariable:
		v, err := ctx.pop()
		if err != nil {
			return false, err
		}
		ctx.env = append(ctx.env, v)
		ctx.scopes = append(ctx.scopes, 1)
		return false, nil

	case OpScopeEnd:
		if len(ctx.scopes) == 0 {
			return false, fmt.Errorf("bytecode: ScopeEnd with no open scope")
		}
		n := ctx.scopes[len(ctx.scopes)-1]
		ctx.scopes = ctx.scopes[:len(ctx.scopes)-1]
		ctx.env = ctx.env[:len(ctx.env)-n]
		return false, nil

	case OpNullPointer:
		ctx.push(arena.NullPointer)
		return false, nil

	case OpEq, OpNe:
		b, err := ctx.pop()
		if err != nil {
			return false, err
		}
		a, err := ctx.pop()
		if err != nil {
			return false, err
		}
		eq := ctx.h.Hash(a) == ctx.h.Hash(b)
		if ins.Op == OpNe {
			eq = !eq
		}
		ctx.push(ctx.h.Boolean(eq))
		return false, nil

	case OpLoadStateValue:
		condPtr, err := ctx.pop()
		if err != nil {
			return false, err
		}
		cond := condition.Condition{Heap: ctx.h, Ptr: condPtr}
		ctx.deps.Add(cond)
		if v, ok := ctx.state[cond.Hash()]; ok {
			ctx.push(v)
		} else {
			ctx.push(ctx.h.Signal(condPtr))
		}
		return false, nil

	case OpCollectSignals:
		if ins.N > len(ctx.stack) {
			return false, fmt.Errorf("bytecode: CollectSignals(%d) exceeds stack depth %d", ins.N, len(ctx.stack))
		}
		var conds []condition.Condition
		for _, v := range ctx.stack[len(ctx.stack)-ins.N:] {
			n := ctx.h.Get(v)
			if n.Kind != heap.KindSignal {
				continue
			}
			for _, c := range n.Children {
				conds = append(conds, condition.Condition{Heap: ctx.h, Ptr: c})
			}
		}
		ctx.pending = conds
		ctx.pendingN = ins.N
		return false, nil

	case OpBreakOnSignal:
		if len(ctx.pending) == 0 {
			return false, nil
		}
		ptrs := make([]arena.Pointer, len(ctx.pending))
		for i, c := range ctx.pending {
			ptrs[i] = c.Ptr
		}
		// Discard the values CollectSignals inspected — this block is
		// short-circuiting in favor of propagating just the signal, so the
		// net stack effect of the whole guarded fragment stays a single
		// pushed value, matching every other compiled term.
		ctx.stack = ctx.stack[:len(ctx.stack)-ctx.pendingN]
		signal := ctx.h.Signal(ptrs...)
		ctx.pending = nil
		ctx.pendingN = 0
		ctx.push(signal)
		return true, nil

	case OpIf:
		cond, err := ctx.pop()
		if err != nil {
			return false, err
		}
		n := ctx.h.Get(cond)
		if n.Kind != heap.KindBoolean {
			return false, fmt.Errorf("bytecode: If condition is not a boolean term")
		}
		if n.Bool {
			return false, ctx.run(ins.Cons.Code)
		}
		return false, ctx.run(ins.Alt.Code)

	case OpCallStdlib:
		return false, ctx.callStdlib(ins.ID)

	case OpCallRuntimeBuiltin:
		return false, ctx.callRuntimeBuiltin(ins.ID, ins.N)

	case OpCallCompiledFunction:
		return false, ctx.callCompiledFunction(ins.ID, len(ins.Sig.Params))

	case OpCallDynamic, OpApply, OpEvaluate:
		return false, ctx.callDynamic()

	default:
		return false, fmt.Errorf("bytecode: unsupported instruction op %d", ins.Op)
	}
}

func (ctx *execCtx) callStdlib(id uint32) error {
	spec := expr.LookupBuiltin(id)
	if spec == nil || spec.Func == nil {
		return fmt.Errorf("bytecode: CallStdlib references unresolvable builtin %d", id)
	}
	n := spec.RequiredArity + spec.OptionalArity
	if n > len(ctx.stack) {
		return fmt.Errorf("bytecode: CallStdlib(%d) needs %d args, stack has %d", id, n, len(ctx.stack))
	}
	args := make([]arena.Pointer, n)
	copy(args, ctx.stack[len(ctx.stack)-n:])
	ctx.stack = ctx.stack[:len(ctx.stack)-n]

	for _, a := range args {
		if ctx.h.Get(a).Kind == heap.KindSignal {
			ctx.push(a)
			return nil
		}
	}
	result, err := spec.Func(ctx.h, args)
	if err != nil {
		ctx.push(ctx.h.Signal(condition.Err(ctx.h, ctx.h.String(err.Error())).Ptr))
		return nil
	}
	ctx.push(result)
	return nil
}

func (ctx *execCtx) callRuntimeBuiltin(id uint32, n int) error {
	switch id {
	case RuntimeBuiltinMakeRecord:
		if n+1 > len(ctx.stack) {
			return fmt.Errorf("bytecode: MakeRecord needs %d values plus keys", n)
		}
		keys, err := ctx.pop()
		if err != nil {
			return err
		}
		values := make([]arena.Pointer, n)
		copy(values, ctx.stack[len(ctx.stack)-n:])
		ctx.stack = ctx.stack[:len(ctx.stack)-n]
		ctx.push(ctx.h.Record(keys, ctx.h.List(values...)))
		return nil
	case RuntimeBuiltinMakeList:
		if n > len(ctx.stack) {
			return fmt.Errorf("bytecode: MakeList needs %d values", n)
		}
		values := make([]arena.Pointer, n)
		copy(values, ctx.stack[len(ctx.stack)-n:])
		ctx.stack = ctx.stack[:len(ctx.stack)-n]
		ctx.push(ctx.h.List(values...))
		return nil
	default:
		return fmt.Errorf("bytecode: unsupported runtime builtin id %d", id)
	}
}

func (ctx *execCtx) callCompiledFunction(id uint32, arity int) error {
	var fn *Function
	for _, f := range ctx.module.Functions {
		if f.ID == id {
			fn = f
			break
		}
	}
	if fn == nil {
		return fmt.Errorf("bytecode: CallCompiledFunction references unknown function %d", id)
	}
	if arity > len(ctx.stack) {
		return fmt.Errorf("bytecode: CallCompiledFunction(%d) needs %d args, stack has %d", id, arity, len(ctx.stack))
	}
	args := make([]arena.Pointer, arity)
	copy(args, ctx.stack[len(ctx.stack)-arity:])
	ctx.stack = ctx.stack[:len(ctx.stack)-arity]

	ctx.env = append(ctx.env, args...)
	ctx.scopes = append(ctx.scopes, arity)
	defer func() {
		ctx.scopes = ctx.scopes[:len(ctx.scopes)-1]
		ctx.env = ctx.env[:len(ctx.env)-arity]
	}()
	return ctx.run(fn.Body.Code)
}

// callDynamic handles CallDynamic/Apply/Evaluate by delegating to
// internal/expr's reference semantics: it constructs the corresponding
// Application term and evaluates it with expr.Evaluate, merging the
// resulting dependency set into this Exec call's. This is the one place
// the reference VM leans on the tree-walking evaluator rather than
// reimplementing dynamic dispatch a second time — legitimate because
// CallDynamic only arises when the compiler could not statically resolve
// the callee (e.g. applying a Variable), which is exactly the case
// expr.Evaluate is the ground truth for.
func (ctx *execCtx) callDynamic() error {
	argsList, err := ctx.pop()
	if err != nil {
		return err
	}
	target, err := ctx.pop()
	if err != nil {
		return err
	}
	app := ctx.h.Application(target, argsList)
	result, deps := expr.Evaluate(ctx.h, app, ctx.state)
	for _, c := range deps.Conditions() {
		ctx.deps.Add(c)
	}
	ctx.push(result)
	return nil
}
