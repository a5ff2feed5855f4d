package expr

import (
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/heap"
)

// Evaluate is the reference tree-walking evaluator (spec §3.4/§4.C,
// §8.2 scenarios 1-4). It reduces p against a state snapshot, returning the
// resulting value (or a Signal term if blocked on one or more unresolved
// Effect conditions) plus the full set of conditions the evaluation
// touched — both resolved and unresolved — which the supervisor consults
// to decide when to re-evaluate. internal/bytecode's stack-machine VM must
// agree with this function on every well-formed term.
func Evaluate(h *heap.Heap, p arena.Pointer, state State) (arena.Pointer, *condition.DependencySet) {
	deps := condition.NewDependencySet()
	result := evalRec(h, p, state, deps)
	return result, deps
}

func evalRec(h *heap.Heap, p arena.Pointer, state State, deps *condition.DependencySet) arena.Pointer {
	n := h.Get(p)
	switch n.Kind {
	case heap.KindEffect:
		cond := condition.Condition{Heap: h, Ptr: n.Children[0]}
		deps.Add(cond)
		if v, ok := state[h.Hash(n.Children[0])]; ok {
			return v
		}
		return h.Signal(cond.Ptr)

	case heap.KindLet:
		initVal := evalRec(h, n.Children[0], state, deps)
		if _, blocked := asSignal(h, initVal); blocked {
			return initVal
		}
		newBody := SubstituteStatic(h, n.Children[1], map[uint32]arena.Pointer{0: initVal}, 1)
		return evalRec(h, newBody, state, deps)

	case heap.KindApplication:
		return evalApplication(h, n.Children[0], h.ListItems(n.Children[1]), state, deps)

	default:
		return p
	}
}

func asSignal(h *heap.Heap, p arena.Pointer) ([]condition.Condition, bool) {
	n := h.Get(p)
	if n.Kind != heap.KindSignal {
		return nil, false
	}
	conds := make([]condition.Condition, len(n.Children))
	for i, c := range n.Children {
		conds[i] = condition.Condition{Heap: h, Ptr: c}
	}
	return conds, true
}

func signalFrom(h *heap.Heap, conds []condition.Condition) arena.Pointer {
	ptrs := make([]arena.Pointer, len(conds))
	for i, c := range conds {
		ptrs[i] = c.Ptr
	}
	return h.Signal(ptrs...)
}

func errorSignal(h *heap.Heap, message string) arena.Pointer {
	return h.Signal(condition.Err(h, h.String(message)).Ptr)
}

func evalApplication(h *heap.Heap, targetPtr arena.Pointer, args []arena.Pointer, state State, deps *condition.DependencySet) arena.Pointer {
	target := evalRec(h, targetPtr, state, deps)
	if _, blocked := asSignal(h, target); blocked {
		return target
	}
	targetNode := h.Get(target)

	switch targetNode.Kind {
	case heap.KindBuiltin:
		return evalBuiltinApplication(h, targetNode.U32, args, state, deps)
	case heap.KindLambda:
		arity := int(targetNode.U32)
		if len(args) != arity {
			return errorSignal(h, "expr: lambda arity mismatch")
		}
		evaledArgs, blockedConds := evalArgsStrict(h, args, state, deps)
		if len(blockedConds) > 0 {
			return signalFrom(h, blockedConds)
		}
		// args[i] binds Variable(arity-1-i), matching normalizePartial's
		// convention (reflex-lang's partial.rs: "num_args - index - 1").
		replace := make(map[uint32]arena.Pointer, arity)
		for i, v := range evaledArgs {
			replace[uint32(arity-1-i)] = v
		}
		newBody := SubstituteStatic(h, targetNode.Children[0], replace, 0)
		return evalRec(h, newBody, state, deps)
	case heap.KindCompiled, heap.KindConstructor, heap.KindPartial:
		// Compiled-function and constructor invocation is realized by the
		// bytecode VM (internal/bytecode); the tree-walking reference
		// evaluator treats an Application of these as already in normal
		// form, matching Partial's own value status.
		return h.Application(target, h.List(args...))
	default:
		return errorSignal(h, "expr: applying a non-applicable term")
	}
}

func evalArgsStrict(h *heap.Heap, args []arena.Pointer, state State, deps *condition.DependencySet) ([]arena.Pointer, []condition.Condition) {
	evaled := make([]arena.Pointer, len(args))
	var blocked []condition.Condition
	for i, a := range args {
		v := evalRec(h, a, state, deps)
		evaled[i] = v
		if conds, ok := asSignal(h, v); ok {
			blocked = append(blocked, conds...)
		}
	}
	return evaled, blocked
}

func evalBuiltinApplication(h *heap.Heap, id uint32, args []arena.Pointer, state State, deps *condition.DependencySet) arena.Pointer {
	switch id {
	case BuiltinIf:
		condVal := evalRec(h, args[0], state, deps)
		if conds, blocked := asSignal(h, condVal); blocked {
			return signalFrom(h, conds)
		}
		condNode := h.Get(condVal)
		if condNode.Kind != heap.KindBoolean {
			return errorSignal(h, "expr: if condition is not a boolean")
		}
		if condNode.Bool {
			return evalRec(h, args[1], state, deps)
		}
		return evalRec(h, args[2], state, deps)

	case BuiltinAnd:
		condVal := evalRec(h, args[0], state, deps)
		if conds, blocked := asSignal(h, condVal); blocked {
			return signalFrom(h, conds)
		}
		condNode := h.Get(condVal)
		if condNode.Kind != heap.KindBoolean {
			return errorSignal(h, "expr: and operand is not a boolean")
		}
		if !condNode.Bool {
			return h.Boolean(false)
		}
		return evalRec(h, args[1], state, deps)

	case BuiltinOr:
		condVal := evalRec(h, args[0], state, deps)
		if conds, blocked := asSignal(h, condVal); blocked {
			return signalFrom(h, conds)
		}
		condNode := h.Get(condVal)
		if condNode.Kind != heap.KindBoolean {
			return errorSignal(h, "expr: or operand is not a boolean")
		}
		if condNode.Bool {
			return h.Boolean(true)
		}
		return evalRec(h, args[1], state, deps)

	case BuiltinIfError:
		v := evalRec(h, args[0], state, deps)
		if conds, blocked := asSignal(h, v); blocked {
			hasError := false
			for _, c := range conds {
				if c.Kind() == heap.ConditionError {
					hasError = true
					break
				}
			}
			if hasError {
				return evalRec(h, args[1], state, deps)
			}
			return signalFrom(h, conds)
		}
		return v

	default:
		spec := LookupBuiltin(id)
		if spec == nil || spec.Func == nil {
			return errorSignal(h, "expr: unknown builtin")
		}
		evaledArgs, blocked := evalArgsStrict(h, args, state, deps)
		if len(blocked) > 0 {
			return signalFrom(h, blocked)
		}
		result, err := spec.Func(h, evaledArgs)
		if err != nil {
			return errorSignal(h, err.Error())
		}
		return result
	}
}
