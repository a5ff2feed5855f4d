package handlers

import (
	"fmt"

	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/heap"
)

// decodeString reads a KindString term, erroring on any other shape — the
// handlers' payload tuples are spec-fixed (§6.2's table), so a mismatch is
// always the caller's fault, not an internal invariant violation.
func decodeString(h *heap.Heap, p arena.Pointer) (string, error) {
	if h.Kind(p) != heap.KindString {
		return "", fmt.Errorf("handlers: expected String, got %s", h.Kind(p))
	}
	return h.Get(p).Str, nil
}

// decodeRecord reads a KindRecord term's keys/values as parallel string
// slices, used to decode the fetch handler's headers record.
func decodeRecord(h *heap.Heap, p arena.Pointer) (keys []string, values []arena.Pointer, err error) {
	if h.Kind(p) != heap.KindRecord {
		return nil, nil, fmt.Errorf("handlers: expected Record, got %s", h.Kind(p))
	}
	children := h.Get(p).Children
	keyItems := h.ListItems(children[0])
	valueItems := h.ListItems(children[1])
	keys = make([]string, len(keyItems))
	for i, k := range keyItems {
		s, err := decodeString(h, k)
		if err != nil {
			return nil, nil, err
		}
		keys[i] = s
	}
	return keys, valueItems, nil
}

// emitError builds a single-condition Error signal Emission for cond,
// carrying msg as the Error payload.
func emitError(cond condition.Condition, msg string) Emission {
	h := cond.Heap
	errCond := condition.Err(h, h.String(msg))
	return Emission{Condition: cond, Value: h.Signal(errCond.Ptr), ValueHeap: h}
}

// emitPending builds the Pending-signal Emission every handler sends as a
// subscribed effect's initial value (spec §4.I.1 and friends).
func emitPending(cond condition.Condition) Emission {
	h := cond.Heap
	pending := condition.Pending(h)
	return Emission{Condition: cond, Value: h.Signal(pending.Ptr), ValueHeap: h}
}
