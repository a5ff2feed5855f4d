// Package handlers implements the four effect-handler actors spec §4.I
// names — fetch, loader, scan, variable — each subscribing to
// EffectSubscribe batches tagged with its own effect_type string,
// emitting EffectEmit batches back to the main actor, and tearing down
// cleanly on EffectUnsubscribe. Grounded on internal/actorbus
// (component J) for the mailbox/goroutine shape, and on the teacher's
// github.com/google/uuid usage for per-effect operation identifiers.
package handlers

import (
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/heap"
)

// MessageType tags a Message's payload per spec §6.1's handler messages,
// plus each handler's own internal completion messages (spec §4.I.1's
// FetchHandlerFetchComplete/FetchHandlerConnectionError and similar).
type MessageType int

const (
	EffectSubscribe MessageType = iota
	EffectUnsubscribe
	EffectEmit
	fetchComplete
	fetchConnectionError
)

// Emission is one (condition, value) pair an EffectEmit batch carries.
type Emission struct {
	Condition condition.Condition
	Value     arena.Pointer
	ValueHeap *heap.Heap
}

// Message is the handlers package's single actor-bus envelope. Only the
// fields relevant to Type are populated.
type Message struct {
	Type       MessageType
	EffectType string

	// EffectSubscribe / EffectUnsubscribe fields.
	Effects []condition.Condition

	// EffectEmit fields.
	Batch []Emission

	// internal fetch completion fields.
	operationID string
	status      int
	body        []byte
	errMessage  string
}
