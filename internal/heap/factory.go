package heap

import "github.com/reflexrun/reflex/internal/arena"

// The factory functions below are the only way terms are ever created
// (spec §3.6: "never mutated in place, never explicitly freed"). Each
// wraps Heap.Alloc with the right Kind/field shape for one variant.

func (h *Heap) Nil() arena.Pointer { return h.Alloc(Node{Kind: KindNil}) }

func (h *Heap) Boolean(b bool) arena.Pointer {
	return h.Alloc(Node{Kind: KindBoolean, Bool: b})
}

func (h *Heap) Int(v int64) arena.Pointer {
	return h.Alloc(Node{Kind: KindInt, Int: v})
}

func (h *Heap) Float(v float64) arena.Pointer {
	return h.Alloc(Node{Kind: KindFloat, Float: v})
}

func (h *Heap) String(s string) arena.Pointer {
	return h.Alloc(Node{Kind: KindString, Str: s})
}

func (h *Heap) Symbol(id uint32) arena.Pointer {
	return h.Alloc(Node{Kind: KindSymbol, U32: id})
}

// Variable constructs a De Bruijn-indexed variable reference at the given
// capture depth.
func (h *Heap) Variable(depth uint32) arena.Pointer {
	return h.Alloc(Node{Kind: KindVariable, U32: depth})
}

// Effect constructs a leaf that resolves to the binding of conditionPtr in
// the current state snapshot, or a Signal if unbound (spec §3.4).
func (h *Heap) Effect(conditionPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindEffect, Children: []arena.Pointer{conditionPtr}})
}

func (h *Heap) Let(initPtr, bodyPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindLet, Children: []arena.Pointer{initPtr, bodyPtr}})
}

func (h *Heap) Lambda(arity uint32, bodyPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindLambda, U32: arity, Children: []arena.Pointer{bodyPtr}})
}

func (h *Heap) Application(targetPtr, argsListPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindApplication, Children: []arena.Pointer{targetPtr, argsListPtr}})
}

func (h *Heap) Partial(targetPtr, argsListPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindPartial, Children: []arena.Pointer{targetPtr, argsListPtr}})
}

func (h *Heap) Builtin(id uint32) arena.Pointer {
	return h.Alloc(Node{Kind: KindBuiltin, U32: id})
}

func (h *Heap) Compiled(id uint32, arity uint32) arena.Pointer {
	return h.Alloc(Node{Kind: KindCompiled, U32: id, U32b: arity})
}

func (h *Heap) Record(keysListPtr, valuesListPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindRecord, Children: []arena.Pointer{keysListPtr, valuesListPtr}})
}

func (h *Heap) Constructor(keysListPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindConstructor, Children: []arena.Pointer{keysListPtr}})
}

// List constructs a contiguous sequence of term pointers (spec §3.3).
func (h *Heap) List(items ...arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindList, Children: items})
}

func (h *Heap) Hashmap(keysListPtr, valuesListPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindHashmap, Children: []arena.Pointer{keysListPtr, valuesListPtr}})
}

func (h *Heap) Hashset(items ...arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindHashset, Children: items})
}

// Signal constructs a term collecting unresolved effect conditions
// encountered during evaluation (spec §3.4, §4.D).
func (h *Heap) Signal(conditions ...arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindSignal, Children: conditions})
}

// Tree constructs a balanced binary node backing SignalList union (spec
// §3.3).
func (h *Heap) Tree(left, right arena.Pointer, length int64) arena.Pointer {
	return h.Alloc(Node{Kind: KindTree, Int: length, Children: []arena.Pointer{left, right}})
}

func (h *Heap) ConditionPending() arena.Pointer {
	return h.Alloc(Node{Kind: KindCondition, CondKind: ConditionPending})
}

func (h *Heap) ConditionError(payloadPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindCondition, CondKind: ConditionError, Children: []arena.Pointer{payloadPtr}})
}

// ConditionCustom constructs an opaque effect request. Its hash (and thus
// identity) is determined by (effectType, payload, token) — two
// syntactically identical requests intern to the same Pointer (spec §3.4).
func (h *Heap) ConditionCustom(effectType string, payloadPtr, tokenPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{
		Kind: KindCondition, CondKind: ConditionCustom, Str: effectType,
		Children: []arena.Pointer{payloadPtr, tokenPtr},
	})
}

func (h *Heap) Pointer(targetPtr arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindPointer, Children: []arena.Pointer{targetPtr}})
}

func (h *Heap) Cell(fields ...arena.Pointer) arena.Pointer {
	return h.Alloc(Node{Kind: KindCell, Children: fields})
}

// ListItems decodes a List/Hashset term's children back out.
func (h *Heap) ListItems(p arena.Pointer) []arena.Pointer {
	return h.Get(p).Children
}
