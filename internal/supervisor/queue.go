package supervisor

import "github.com/reflexrun/reflex/internal/wasmrun"

// updateQueue buffers EvaluateUpdate batches arriving while a worker is
// Working, per the query's chosen InvalidationStrategy (spec §4.H).
type updateQueue interface {
	// Push enqueues one batch, recording its stateIndex.
	Push(stateIndex *uint64, updates []wasmrun.Update)
	// Empty reports whether no batch is pending.
	Empty() bool
	// PopBatch removes and returns the next batch to send, per the
	// strategy's delivery-order rule.
	PopBatch() (stateIndex *uint64, updates []wasmrun.Update, ok bool)
}

// combineQueue implements CombineUpdateBatches: repeated writes to the
// same condition overwrite, and PopBatch returns everything accumulated
// since the last pop as one batch.
type combineQueue struct {
	stateIndex *uint64
	byHash     map[uint64]wasmrun.Update
	order      []uint64
}

func newCombineQueue() *combineQueue {
	return &combineQueue{byHash: make(map[uint64]wasmrun.Update)}
}

func (q *combineQueue) Push(stateIndex *uint64, updates []wasmrun.Update) {
	q.stateIndex = stateIndex
	for _, u := range updates {
		hash := u.Condition.Hash()
		if _, exists := q.byHash[hash]; !exists {
			q.order = append(q.order, hash)
		}
		q.byHash[hash] = u
	}
}

func (q *combineQueue) Empty() bool { return len(q.order) == 0 && q.stateIndex == nil }

func (q *combineQueue) PopBatch() (*uint64, []wasmrun.Update, bool) {
	if q.Empty() {
		return nil, nil, false
	}
	batch := make([]wasmrun.Update, 0, len(q.order))
	for _, hash := range q.order {
		batch = append(batch, q.byHash[hash])
	}
	stateIndex := q.stateIndex
	q.byHash = make(map[uint64]wasmrun.Update)
	q.order = nil
	q.stateIndex = nil
	return stateIndex, batch, true
}

// exactQueue implements Exact: every batch is preserved verbatim and
// delivered in the order it was received.
type exactQueue struct {
	batches []exactBatch
}

type exactBatch struct {
	stateIndex *uint64
	updates    []wasmrun.Update
}

func newExactQueue() *exactQueue { return &exactQueue{} }

func (q *exactQueue) Push(stateIndex *uint64, updates []wasmrun.Update) {
	q.batches = append(q.batches, exactBatch{stateIndex: stateIndex, updates: updates})
}

func (q *exactQueue) Empty() bool { return len(q.batches) == 0 }

func (q *exactQueue) PopBatch() (*uint64, []wasmrun.Update, bool) {
	if q.Empty() {
		return nil, nil, false
	}
	b := q.batches[0]
	q.batches = q.batches[1:]
	return b.stateIndex, b.updates, true
}

func newQueue(strategy InvalidationStrategy) updateQueue {
	if strategy == Exact {
		return newExactQueue()
	}
	return newCombineQueue()
}
