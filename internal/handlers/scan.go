package handlers

import (
	"context"
	"sync"

	"github.com/reflexrun/reflex/internal/actorbus"
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/expr"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/metrics"
)

const (
	scanSourceEffectType = "reflex::scan::source"
	scanStateEffectType  = "reflex::scan::state"
)

// scanEntry is the per-subscription state spec §4.I.3 describes:
// "{source_value, state_value = seed, ...}" plus the two synthesized
// condition identities the reducer recomputation keys on, the iteratee
// the reducer step applies, and the subject condition results are
// forwarded back to. heap is the subscribing effect's own heap, the
// home of target/iteratee for as long as the subscription lives.
type scanEntry struct {
	subject      condition.Condition
	sourceEffect condition.Condition
	stateEffect  condition.Condition

	heap     *heap.Heap
	iteratee arena.Pointer

	sourceValue arena.Pointer
	sourceHeap  *heap.Heap
	stateValue  arena.Pointer
	stateHeap   *heap.Heap
}

// ScanHandler implements spec §4.I.3's "reflex::scan" streaming-fold
// handler.
//
// Open question (spec §9c): the state slot is rebound to Pending *after*
// emitting a result, so an interleaving where a new source value arrives
// between the result emission and the rebind could in principle race the
// reducer against a stale state_value. The spec explicitly says not to
// guess a fix here; this handler reproduces the documented ordering
// (record state_value, emit, then rebind to Pending) verbatim rather than
// inventing a synchronization scheme the spec doesn't describe.
type ScanHandler struct {
	mu sync.Mutex

	inbox   *actorbus.Mailbox[Message]
	out     *actorbus.Mailbox[Message]
	metrics *metrics.Registry

	bySubject map[uint64]*scanEntry // keyed by the original reflex::scan effect's hash
	bySource  map[uint64]*scanEntry // keyed by synthesized source effect hash
	byState   map[uint64]*scanEntry // keyed by synthesized state effect hash
}

func NewScanHandler(out *actorbus.Mailbox[Message], reg *metrics.Registry) *ScanHandler {
	return &ScanHandler{
		inbox:     actorbus.NewMailbox[Message](32),
		out:       out,
		metrics:   reg,
		bySubject: make(map[uint64]*scanEntry),
		bySource:  make(map[uint64]*scanEntry),
		byState:   make(map[uint64]*scanEntry),
	}
}

func (s *ScanHandler) Inbox() *actorbus.Mailbox[Message] { return s.inbox }

func (s *ScanHandler) Run(ctx context.Context) error {
	for {
		select {
		case msg, ok := <-s.inbox.Receive():
			if !ok {
				return nil
			}
			s.handle(msg)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *ScanHandler) handle(msg Message) {
	switch {
	case msg.Type == EffectSubscribe && msg.EffectType == "reflex::scan":
		for _, cond := range msg.Effects {
			s.subscribe(cond)
		}
	case msg.Type == EffectUnsubscribe && msg.EffectType == "reflex::scan":
		for _, cond := range msg.Effects {
			s.unsubscribe(cond)
		}
	case msg.Type == EffectEmit && msg.EffectType == scanSourceEffectType:
		for _, e := range msg.Batch {
			s.onSourceEmission(e)
		}
	case msg.Type == EffectEmit && msg.EffectType == scanStateEffectType:
		for _, e := range msg.Batch {
			s.onStateEmission(e)
		}
	}
}

func (s *ScanHandler) subscribe(cond condition.Condition) {
	h := cond.Heap
	items := h.ListItems(cond.Payload())
	if len(items) != 3 {
		s.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::scan", Batch: []Emission{
			emitError(cond, "Invalid reflex::scan payload: expected (target, seed, iteratee)"),
		}})
		return
	}
	target, seed, iteratee := items[0], items[1], items[2]

	// Both synthesized effects carry the full (target, seed, iteratee)
	// payload as their query, mirroring source_value_effect/
	// state_value_effect in original_source/reflex-handlers/src/actor/
	// scan.rs:440-470 — sourceEffect is keyed on it to fetch the source
	// stream, stateEffect to identify the reducer's running state slot.
	query := h.List(target, seed, iteratee)
	sourceEffect := condition.Custom(h, scanSourceEffectType, query, h.Nil())
	stateEffect := condition.Custom(h, scanStateEffectType, query, h.Nil())

	entry := &scanEntry{
		subject:      cond,
		sourceEffect: sourceEffect,
		stateEffect:  stateEffect,
		heap:         h,
		iteratee:     iteratee,
		stateValue:   seed,
		stateHeap:    h,
	}

	s.mu.Lock()
	s.bySubject[cond.Hash()] = entry
	s.bySource[sourceEffect.Hash()] = entry
	s.byState[stateEffect.Hash()] = entry
	s.mu.Unlock()

	s.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::scan", Batch: []Emission{emitPending(cond)}})
	s.out.TrySend(Message{Type: EffectSubscribe, EffectType: scanSourceEffectType, Effects: []condition.Condition{sourceEffect}})
}

// onSourceEmission implements "On source_effect emission: record
// source_value, synthesize result_effect = Apply(iteratee,
// List(state_value, source_value)), evaluate it, and emit the folded
// value as the new state_value" (spec §4.I.3,
// original_source/reflex-handlers/src/actor/scan.rs:512-527).
func (s *ScanHandler) onSourceEmission(e Emission) {
	s.mu.Lock()
	entry, ok := s.bySource[e.Condition.Hash()]
	if ok {
		entry.sourceValue = e.Value
		entry.sourceHeap = e.ValueHeap
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.metrics.ScanIterationCount.WithLabelValues("scan").Inc()

	resultValue, resultHeap := s.reduce(entry)

	s.out.TrySend(Message{Type: EffectEmit, EffectType: scanStateEffectType, Batch: []Emission{
		{Condition: entry.stateEffect, Value: resultValue, ValueHeap: resultHeap},
	}})
	s.out.TrySend(Message{Type: EffectSubscribe, EffectType: scanStateEffectType, Effects: []condition.Condition{entry.stateEffect}})
}

// reduce builds result_effect's query — Apply(iteratee, List(state_value,
// source_value)) — on a scratch heap populated via heap.Copy from each
// term's home heap (iteratee/target on the subscribing effect's heap,
// source_value/state_value on whichever heap last produced them), then
// evaluates it with the tree-walking reference evaluator. This is the
// Go-native stand-in for the original's subscribed "evaluate effect":
// this codebase's expr package has no ResolveDeep/Apply/CollectList
// builtins and no generic evaluate-effect-type consumer for a handler to
// delegate to, so the fold is computed directly against expr.Evaluate,
// which every other term-reduction path (internal/bytecode's VM included)
// is already required to agree with.
func (s *ScanHandler) reduce(entry *scanEntry) (arena.Pointer, *heap.Heap) {
	dst := heap.New()
	iteratee := heap.Copy(dst, entry.heap, entry.iteratee)
	stateValue := heap.Copy(dst, entry.stateHeap, entry.stateValue)
	sourceValue := heap.Copy(dst, entry.sourceHeap, entry.sourceValue)

	app := expr.Apply(dst, iteratee, []arena.Pointer{stateValue, sourceValue})
	result, _ := expr.Evaluate(dst, app, nil)
	return result, dst
}

// onStateEmission implements "On result_effect emission: record the new
// state_value, emit the new overall scan result to subscribers, then
// rebind state_value_effect to Pending".
func (s *ScanHandler) onStateEmission(e Emission) {
	s.mu.Lock()
	entry, ok := s.byState[e.Condition.Hash()]
	if ok {
		entry.stateValue = e.Value
		entry.stateHeap = e.ValueHeap
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.metrics.ScanResultCount.WithLabelValues("scan").Inc()
	s.metrics.ScanStateSize.WithLabelValues("scan").Set(float64(e.ValueHeap.Len()))

	s.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::scan", Batch: []Emission{
		{Condition: entry.subject, Value: e.Value, ValueHeap: e.ValueHeap},
	}})

	// Rebind state_value_effect to Pending, gating the reducer until the
	// next source value arrives — deliberately performed after emission,
	// matching the spec's own documented (and flagged as possibly racy,
	// see §9c) ordering.
	s.out.TrySend(Message{Type: EffectEmit, EffectType: scanStateEffectType, Batch: []Emission{emitPending(entry.stateEffect)}})
}

func (s *ScanHandler) unsubscribe(cond condition.Condition) {
	s.mu.Lock()
	entry, ok := s.bySubject[cond.Hash()]
	if ok {
		delete(s.bySubject, cond.Hash())
		delete(s.bySource, entry.sourceEffect.Hash())
		delete(s.byState, entry.stateEffect.Hash())
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.out.TrySend(Message{Type: EffectUnsubscribe, EffectType: scanSourceEffectType, Effects: []condition.Condition{entry.sourceEffect}})
	s.out.TrySend(Message{Type: EffectUnsubscribe, EffectType: scanStateEffectType, Effects: []condition.Condition{entry.stateEffect}})
}
