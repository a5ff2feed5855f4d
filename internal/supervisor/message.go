// Package supervisor implements the interpreter supervisor actor spec
// §4.H describes, built on internal/actorbus (component J) and
// golang.org/x/sync/errgroup — it owns one internal/wasmrun.Worker per
// live query, batches state updates according to the query's chosen
// InvalidationStrategy, and schedules GC the way spec §4.H's
// BytecodeInterpreterResult handler describes.
package supervisor

import (
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/wasmrun"
)

// InvalidationStrategy selects how a worker's pending state updates are
// queued while it's Working (spec §4.H).
type InvalidationStrategy int

const (
	// CombineUpdateBatches coalesces pending updates: only the last
	// value for a given condition survives, key order is irrelevant.
	CombineUpdateBatches InvalidationStrategy = iota
	// Exact preserves every batch boundary and delivers batches in FIFO
	// order, never merging them.
	Exact
)

// MessageType tags a Message's payload the way spec §6.1 names each
// actor-bus message.
type MessageType int

const (
	EvaluateStart MessageType = iota
	EvaluateUpdate
	EvaluateStop
	BytecodeInterpreterResult
	BytecodeInterpreterGcComplete
	// EvaluateResult is the only outbound message type the supervisor
	// itself emits, forwarded to the configured result mailbox.
	EvaluateResult
)

// Message is the supervisor's single actor-bus envelope type; only the
// fields relevant to Type are populated.
type Message struct {
	Type MessageType
	Key  string

	// EvaluateStart fields.
	Label                string
	Query                arena.Pointer
	QueryHeap            *heap.Heap
	InvalidationStrategy InvalidationStrategy

	// EvaluateUpdate / BytecodeInterpreterResult fields.
	StateIndex *uint64
	Updates    []wasmrun.Update

	// BytecodeInterpreterResult / EvaluateResult fields.
	Result wasmrun.Result

	// BytecodeInterpreterGcComplete fields.
	Statistics wasmrun.Statistics
}
