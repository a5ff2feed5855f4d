package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/reflexrun/reflex/internal/actorbus"
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/heap"
)

// variableEntry is a process-wide "key-hash -> {value, subscribers}" slot
// (spec §4.I.4).
type variableEntry struct {
	value       arena.Pointer
	valueHeap   *heap.Heap
	subscribers map[uint64]condition.Condition // keyed by subscribing effect's hash
}

// VariableHandler implements spec §4.I.4's
// "reflex::variable::{get,set,increment,decrement}" handlers, all backed
// by one process-wide key-hash map.
type VariableHandler struct {
	mu sync.Mutex

	inbox *actorbus.Mailbox[Message]
	out   *actorbus.Mailbox[Message]

	vars map[uint64]*variableEntry
}

func NewVariableHandler(out *actorbus.Mailbox[Message]) *VariableHandler {
	return &VariableHandler{
		inbox: actorbus.NewMailbox[Message](32),
		out:   out,
		vars:  make(map[uint64]*variableEntry),
	}
}

func (v *VariableHandler) Inbox() *actorbus.Mailbox[Message] { return v.inbox }

func (v *VariableHandler) Run(ctx context.Context) error {
	for {
		select {
		case msg, ok := <-v.inbox.Receive():
			if !ok {
				return nil
			}
			v.handle(msg)
		case <-ctx.Done():
			return nil
		}
	}
}

func (v *VariableHandler) handle(msg Message) {
	switch msg.Type {
	case EffectSubscribe:
		for _, cond := range msg.Effects {
			v.subscribe(cond)
		}
	case EffectUnsubscribe:
		for _, cond := range msg.Effects {
			v.unsubscribe(cond)
		}
	}
}

func (v *VariableHandler) subscribe(cond condition.Condition) {
	switch cond.EffectType() {
	case "reflex::variable::get":
		v.get(cond)
	case "reflex::variable::set":
		v.set(cond)
	case "reflex::variable::increment":
		v.delta(cond, 1)
	case "reflex::variable::decrement":
		v.delta(cond, -1)
	}
}

func (v *VariableHandler) keyHash(h *heap.Heap, keyPtr arena.Pointer) uint64 { return h.Hash(keyPtr) }

func (v *VariableHandler) get(cond condition.Condition) {
	h := cond.Heap
	items := h.ListItems(cond.Payload())
	if len(items) != 2 {
		v.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::variable::get", Batch: []Emission{
			emitError(cond, "Invalid reflex::variable::get payload: expected (key, initial)"),
		}})
		return
	}
	keyHash := v.keyHash(h, items[0])

	v.mu.Lock()
	entry, ok := v.vars[keyHash]
	if !ok {
		entry = &variableEntry{value: items[1], valueHeap: h, subscribers: make(map[uint64]condition.Condition)}
		v.vars[keyHash] = entry
	}
	entry.subscribers[cond.Hash()] = cond
	value, valueHeap := entry.value, entry.valueHeap
	v.mu.Unlock()

	v.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::variable::get", Batch: []Emission{
		{Condition: cond, Value: value, ValueHeap: valueHeap},
	}})
}

func (v *VariableHandler) set(cond condition.Condition) {
	h := cond.Heap
	items := h.ListItems(cond.Payload())
	if len(items) != 2 {
		v.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::variable::set", Batch: []Emission{
			emitError(cond, "Invalid reflex::variable::set payload: expected (key, value)"),
		}})
		return
	}
	keyHash := v.keyHash(h, items[0])

	v.mu.Lock()
	entry, ok := v.vars[keyHash]
	if !ok {
		entry = &variableEntry{subscribers: make(map[uint64]condition.Condition)}
		v.vars[keyHash] = entry
	}
	entry.value = items[1]
	entry.valueHeap = h
	entry.subscribers[cond.Hash()] = cond
	subs := make([]condition.Condition, 0, len(entry.subscribers))
	for _, s := range entry.subscribers {
		subs = append(subs, s)
	}
	v.mu.Unlock()

	batch := make([]Emission, len(subs))
	for i, s := range subs {
		batch[i] = Emission{Condition: s, Value: items[1], ValueHeap: h}
	}
	v.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::variable::set", Batch: batch})
}

func (v *VariableHandler) delta(cond condition.Condition, by int64) {
	h := cond.Heap
	items := h.ListItems(cond.Payload())
	if len(items) != 1 {
		v.out.TrySend(Message{Type: EffectEmit, EffectType: cond.EffectType(), Batch: []Emission{
			emitError(cond, fmt.Sprintf("Invalid %s payload: expected (key)", cond.EffectType())),
		}})
		return
	}
	keyHash := v.keyHash(h, items[0])

	v.mu.Lock()
	entry, ok := v.vars[keyHash]
	v.mu.Unlock()
	if !ok {
		v.out.TrySend(Message{Type: EffectEmit, EffectType: cond.EffectType(), Batch: []Emission{
			emitError(cond, "Unable to increment/decrement undeclared variable"),
		}})
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	entry.subscribers[cond.Hash()] = cond

	cur := entry.valueHeap
	var newValue arena.Pointer
	switch cur.Kind(entry.value) {
	case heap.KindSignal:
		newValue = entry.value // short-circuit on signals
	case heap.KindInt:
		newValue = cur.Int(cur.Get(entry.value).Int + by)
	case heap.KindFloat:
		newValue = cur.Float(cur.Get(entry.value).Float + float64(by))
	default:
		verb := "increment"
		if by < 0 {
			verb = "decrement"
		}
		msg := fmt.Sprintf("Unable to %s non-numeric value: %s", verb, describeValue(cur, entry.value))
		errEmission := emitError(cond, msg)
		v.out.TrySend(Message{Type: EffectEmit, EffectType: cond.EffectType(), Batch: []Emission{errEmission}})
		return
	}
	entry.value = newValue

	subs := make([]condition.Condition, 0, len(entry.subscribers))
	for _, s := range entry.subscribers {
		subs = append(subs, s)
	}
	batch := make([]Emission, len(subs))
	for i, s := range subs {
		batch[i] = Emission{Condition: s, Value: newValue, ValueHeap: cur}
	}
	v.out.TrySend(Message{Type: EffectEmit, EffectType: cond.EffectType(), Batch: batch})
}

// describeValue renders a term the way spec §8.3's example 7 expects a
// non-numeric increment target to read: a quoted string for String, the
// kind name otherwise.
func describeValue(h *heap.Heap, p arena.Pointer) string {
	if h.Kind(p) == heap.KindString {
		return fmt.Sprintf("%q", h.Get(p).Str)
	}
	return h.Kind(p).String()
}

func (v *VariableHandler) unsubscribe(cond condition.Condition) {
	h := cond.Heap
	items := h.ListItems(cond.Payload())
	if len(items) == 0 {
		return
	}
	keyHash := v.keyHash(h, items[0])

	v.mu.Lock()
	defer v.mu.Unlock()
	entry, ok := v.vars[keyHash]
	if !ok {
		return
	}
	delete(entry.subscribers, cond.Hash())
	if len(entry.subscribers) == 0 {
		delete(v.vars, keyHash)
	}
}
