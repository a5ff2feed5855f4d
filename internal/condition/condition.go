// Package condition implements Conditions, dependency sets and signal lists
// (spec §3.4, §4.D): the identifiers of side effects, and the set algebra
// used to track which of them justified a given evaluation result.
package condition

import (
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/heap"
)

// Condition is a handle to a Condition term living in a particular Heap.
// Its identity is the term's structural hash: two Conditions naming the
// same (effectType, payload, token) triple are indistinguishable.
type Condition struct {
	Heap *heap.Heap
	Ptr  arena.Pointer
}

// Kind reports which of Pending/Error/Custom c is.
func (c Condition) Kind() heap.ConditionKind {
	return c.Heap.Get(c.Ptr).CondKind
}

// Hash is c's identity.
func (c Condition) Hash() uint64 {
	return c.Heap.Hash(c.Ptr)
}

// EffectType returns the Custom condition's effect-type tag (spec §6.2),
// or "" for Pending/Error.
func (c Condition) EffectType() string {
	return c.Heap.Get(c.Ptr).Str
}

// Payload returns the Error condition's failure payload, or the Custom
// condition's request payload.
func (c Condition) Payload() arena.Pointer {
	children := c.Heap.Get(c.Ptr).Children
	if len(children) == 0 {
		return arena.NullPointer
	}
	return children[0]
}

// Token returns the Custom condition's opaque correlation token.
func (c Condition) Token() arena.Pointer {
	children := c.Heap.Get(c.Ptr).Children
	if len(children) < 2 {
		return arena.NullPointer
	}
	return children[1]
}

// IsUnresolvedEffect reports whether evaluation must block on c: true for
// Pending and Custom, false for Error (a terminal result, not a blocker —
// spec §4.D).
func (c Condition) IsUnresolvedEffect() bool {
	switch c.Kind() {
	case heap.ConditionPending, heap.ConditionCustom:
		return true
	default:
		return false
	}
}

// Pending constructs the Pending condition in h.
func Pending(h *heap.Heap) Condition {
	return Condition{Heap: h, Ptr: h.ConditionPending()}
}

// Err constructs an Error condition carrying payload.
func Err(h *heap.Heap, payload arena.Pointer) Condition {
	return Condition{Heap: h, Ptr: h.ConditionError(payload)}
}

// Custom constructs an opaque Custom effect request.
func Custom(h *heap.Heap, effectType string, payload, token arena.Pointer) Condition {
	return Condition{Heap: h, Ptr: h.ConditionCustom(effectType, payload, token)}
}
