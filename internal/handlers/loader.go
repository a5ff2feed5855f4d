package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/reflexrun/reflex/internal/actorbus"
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/metrics"
)

// loaderBatchEffectType tags the synthesized evaluate effect a loader
// group forwards to the main pid (spec §4.I.2's
// "evaluate(ResolveDeep(Application(loader, List(keys))), mode=Standalone,
// invalidation=Exact)"). Simplification (see DESIGN.md): one combined
// batch is synthesized per EffectSubscribe call rather than incrementally
// folding new keys into an already-active batch across separate calls.
const loaderBatchEffectType = "reflex::loader::batch"

type loaderGroup struct {
	name          string
	subscriptions []condition.Condition // order matches the synthesized key list
	batch         condition.Condition
}

// LoaderHandler implements spec §4.I.2's "reflex::loader" DataLoader-style
// batching handler.
type LoaderHandler struct {
	mu sync.Mutex

	inbox   *actorbus.Mailbox[Message]
	out     *actorbus.Mailbox[Message]
	metrics *metrics.Registry

	groups map[uint64]*loaderGroup // keyed by batch condition hash
}

func NewLoaderHandler(out *actorbus.Mailbox[Message], reg *metrics.Registry) *LoaderHandler {
	return &LoaderHandler{
		inbox:   actorbus.NewMailbox[Message](32),
		out:     out,
		metrics: reg,
		groups:  make(map[uint64]*loaderGroup),
	}
}

func (l *LoaderHandler) Inbox() *actorbus.Mailbox[Message] { return l.inbox }

func (l *LoaderHandler) Run(ctx context.Context) error {
	for {
		select {
		case msg, ok := <-l.inbox.Receive():
			if !ok {
				return nil
			}
			l.handle(msg)
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *LoaderHandler) handle(msg Message) {
	switch {
	case msg.Type == EffectSubscribe && msg.EffectType != loaderBatchEffectType:
		l.subscribe(msg.Effects)
	case msg.Type == EffectUnsubscribe && msg.EffectType != loaderBatchEffectType:
		l.unsubscribe(msg.Effects)
	case msg.Type == EffectEmit && msg.EffectType == loaderBatchEffectType:
		for _, e := range msg.Batch {
			l.batchResult(e)
		}
	}
}

func (l *LoaderHandler) subscribe(effects []condition.Condition) {
	byName := make(map[string][]condition.Condition)
	for _, cond := range effects {
		h := cond.Heap
		items := h.ListItems(cond.Payload())
		if len(items) != 3 {
			l.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::loader", Batch: []Emission{
				emitError(cond, "Invalid reflex::loader payload: expected 3 elements"),
			}})
			continue
		}
		name, err := decodeString(h, items[0])
		if err != nil {
			l.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::loader", Batch: []Emission{emitError(cond, err.Error())}})
			continue
		}
		byName[name] = append(byName[name], cond)
	}

	for name, conds := range byName {
		h := conds[0].Heap
		loaderFn := h.ListItems(conds[0].Payload())[1]
		keys := make([]arena.Pointer, len(conds))
		for i, c := range conds {
			keys[i] = h.ListItems(c.Payload())[2]
		}
		l.metrics.LoaderEntityCount.WithLabelValues(name).Add(float64(len(conds)))

		// batch query = Application(loader, [List(keys)]) — the loader
		// applied to the full key list (spec §4.I.2's create_load_batch_effect,
		// original_source/reflex-handlers/src/actor/loader.rs:337-356), not
		// the raw key list itself, so a worker evaluating the batch actually
		// invokes the loader instead of echoing its keys back.
		batchPayload := h.Application(loaderFn, h.List(h.List(keys...)))
		batch := condition.Custom(h, loaderBatchEffectType, batchPayload, h.Nil())

		l.mu.Lock()
		l.groups[batch.Hash()] = &loaderGroup{name: name, subscriptions: conds, batch: batch}
		l.mu.Unlock()

		emissions := make([]Emission, len(conds))
		for i, c := range conds {
			emissions[i] = emitPending(c)
		}
		l.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::loader", Batch: emissions})
		l.out.TrySend(Message{Type: EffectSubscribe, EffectType: loaderBatchEffectType, Effects: []condition.Condition{batch}})
	}
}

func (l *LoaderHandler) batchResult(e Emission) {
	l.mu.Lock()
	group, ok := l.groups[e.Condition.Hash()]
	l.mu.Unlock()
	if !ok {
		return
	}
	h := e.ValueHeap

	if h.Kind(e.Value) == heap.KindSignal {
		out := make([]Emission, len(group.subscriptions))
		for i, sub := range group.subscriptions {
			out[i] = propagateLoaderSignal(sub, group.name, e.Value, h)
		}
		l.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::loader", Batch: out})
		return
	}

	if h.Kind(e.Value) != heap.KindList {
		l.emitErrorToAll(group, fmt.Sprintf("Invalid %s loader result: expected a list", group.name))
		return
	}
	items := h.ListItems(e.Value)
	if len(items) != len(group.subscriptions) {
		l.emitErrorToAll(group, fmt.Sprintf("Invalid %s loader result: Expected %d values, received %d", group.name, len(group.subscriptions), len(items)))
		return
	}

	out := make([]Emission, len(group.subscriptions))
	for i, sub := range group.subscriptions {
		out[i] = Emission{Condition: sub, Value: items[i], ValueHeap: h}
	}
	l.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::loader", Batch: out})
}

func (l *LoaderHandler) emitErrorToAll(group *loaderGroup, msg string) {
	out := make([]Emission, len(group.subscriptions))
	for i, sub := range group.subscriptions {
		out[i] = emitError(sub, msg)
	}
	l.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::loader", Batch: out})
}

// propagateLoaderSignal re-emits a batch-level signal to one subscriber,
// prefixing Error payloads with "$name loader error: " per spec §4.I.2.
// A Signal term's children are the unresolved conditions themselves (see
// internal/bytecode/exec.go's OpBreakOnSignal and internal/expr/evaluate.go
// for the same convention), not a SignalList tree, so this walks
// h.Get(signalPtr).Children directly rather than FromSignalList.
func propagateLoaderSignal(sub condition.Condition, name string, signalPtr arena.Pointer, h *heap.Heap) Emission {
	children := h.Get(signalPtr).Children
	prefixed := make([]arena.Pointer, len(children))
	for i, p := range children {
		c := condition.Condition{Heap: h, Ptr: p}
		if c.Kind() == heap.ConditionError {
			msg, _ := decodeString(h, c.Payload())
			prefixed[i] = condition.Err(h, h.String(fmt.Sprintf("%s loader error: %s", name, msg))).Ptr
		} else {
			prefixed[i] = p
		}
	}
	return Emission{Condition: sub, Value: h.Signal(prefixed...), ValueHeap: h}
}

func (l *LoaderHandler) unsubscribe(effects []condition.Condition) {
	for _, cond := range effects {
		l.mu.Lock()
		var emptyBatch *loaderGroup
		for hash, group := range l.groups {
			for i, sub := range group.subscriptions {
				if sub.Hash() == cond.Hash() {
					group.subscriptions = append(group.subscriptions[:i], group.subscriptions[i+1:]...)
					l.metrics.LoaderEntityCount.WithLabelValues(group.name).Dec()
					if len(group.subscriptions) == 0 {
						delete(l.groups, hash)
						emptyBatch = group
					}
					break
				}
			}
		}
		l.mu.Unlock()
		if emptyBatch != nil {
			l.out.TrySend(Message{Type: EffectUnsubscribe, EffectType: loaderBatchEffectType, Effects: []condition.Condition{emptyBatch.batch}})
		}
	}
}
