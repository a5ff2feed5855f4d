package supervisor

import (
	"context"

	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/actorbus"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/wasmrun"
)

// workerTask is the actor goroutine that owns one wasmrun.Worker,
// processing workerCommands from its mailbox serially and posting
// BytecodeInterpreterResult/BytecodeInterpreterGcComplete messages back
// onto the supervisor's inbox — spec §4.G/§4.H's worker inbox/outbox
// split onto two goroutines joined by mailboxes, grounded on the
// teacher's errgroup-fan-out shape (internal/actorbus.Group.Spawn).
type workerTask struct {
	key       string
	worker    *wasmrun.Worker
	mailbox   *actorbus.Mailbox[workerCommand]
	query     arena.Pointer
	queryHeap *heap.Heap
	out       *actorbus.Mailbox[Message]
}

func (t *workerTask) run(ctx context.Context) {
	for {
		select {
		case cmd, ok := <-t.mailbox.Receive():
			if !ok {
				return
			}
			if t.handle(ctx, cmd) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// handle processes one command, returning true if the task should stop.
func (t *workerTask) handle(ctx context.Context, cmd workerCommand) bool {
	switch cmd.kind {
	case cmdInit:
		_ = t.worker.Init(ctx, t.query, t.queryHeap)
	case cmdEvaluate:
		result, _ := t.worker.Evaluate(ctx, cmd.stateIndex, cmd.updates)
		t.out.TrySend(Message{
			Type:       BytecodeInterpreterResult,
			Key:        t.key,
			StateIndex: cmd.stateIndex,
			Result:     result,
		})
	case cmdGc:
		stats := t.worker.Gc(ctx)
		t.out.TrySend(Message{
			Type:       BytecodeInterpreterGcComplete,
			Key:        t.key,
			Statistics: stats,
		})
	case cmdStop:
		return true
	}
	return false
}
