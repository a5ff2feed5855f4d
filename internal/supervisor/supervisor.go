package supervisor

import (
	"context"

	"github.com/google/uuid"
	"github.com/reflexrun/reflex/internal/actorbus"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/metrics"
	"github.com/reflexrun/reflex/internal/wasmrun"
)

// MaxUpdatesWithoutGC is spec §4.H's MAX_UPDATES_WITHOUT_GC constant: a
// worker is GC'd once it has absorbed this many resolved-but-not-GC'd
// Evaluate rounds even while its queue keeps refilling.
const MaxUpdatesWithoutGC = 3

type workerStatus int

const (
	statusIdle workerStatus = iota
	statusWorking
)

type workerCommandKind int

const (
	cmdInit workerCommandKind = iota
	cmdEvaluate
	cmdGc
	cmdStop
)

type workerCommand struct {
	kind       workerCommandKind
	stateIndex *uint64
	updates    []wasmrun.Update
}

type workerRecord struct {
	pid            actorbus.PID
	label          string
	stateIndex     *uint64
	invalidation   InvalidationStrategy
	status         workerStatus
	queue          updateQueue
	updatesSinceGC int
	mailbox        *actorbus.Mailbox[workerCommand]
}

// Supervisor implements spec §4.H: one workerRecord per live query key,
// a Worker actor goroutine per record (spawned under Group, grounded on
// the teacher's errgroup fan-out pattern), and per-label-group quantile
// metrics aggregation.
type Supervisor struct {
	engine  wasmrun.Engine
	metrics *metrics.Registry
	group   *actorbus.Group

	inbox      *actorbus.Mailbox[Message]
	resultSink *actorbus.Mailbox[Message]
	hostHeap   *heap.Heap

	workers     map[string]*workerRecord
	labelGroups map[string]*labelGroup
}

// NewSupervisor constructs a Supervisor. resultSink receives every
// outbound EvaluateResult (spec §4.H: "forward ... to the main pid").
// group supervises every worker actor goroutine this Supervisor spawns.
// The Supervisor owns a single host heap shared by every worker it
// spawns — spec §5's "the host heap is owned by the main loop actor and
// accessed only there" — so every Result a worker returns is already
// expressed against this one heap.
func NewSupervisor(engine wasmrun.Engine, reg *metrics.Registry, resultSink *actorbus.Mailbox[Message], group *actorbus.Group) *Supervisor {
	return &Supervisor{
		engine:      engine,
		metrics:     reg,
		group:       group,
		inbox:       actorbus.NewMailbox[Message](32),
		resultSink:  resultSink,
		hostHeap:    heap.New(),
		workers:     make(map[string]*workerRecord),
		labelGroups: make(map[string]*labelGroup),
	}
}

// HostHeap exposes the shared heap EvaluateResult values are expressed
// against, for callers that need to read or further project a result.
func (s *Supervisor) HostHeap() *heap.Heap { return s.hostHeap }

// Inbox is the mailbox external actors (handlers, a CLI frontend) send
// EvaluateStart/EvaluateUpdate/EvaluateStop/BytecodeInterpreterResult/
// BytecodeInterpreterGcComplete messages to.
func (s *Supervisor) Inbox() *actorbus.Mailbox[Message] { return s.inbox }

// Run drains the inbox until it's closed or ctx is done, dispatching
// each message through Handle. Intended to be spawned once via
// group.Spawn(s.Run).
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		select {
		case msg, ok := <-s.inbox.Receive():
			if !ok {
				return nil
			}
			s.Handle(ctx, msg)
		case <-ctx.Done():
			return nil
		}
	}
}

// Handle processes one Message synchronously; exported so tests can
// drive the state machine deterministically without racing a live Run
// goroutine.
func (s *Supervisor) Handle(ctx context.Context, msg Message) {
	switch msg.Type {
	case EvaluateStart:
		s.handleEvaluateStart(ctx, msg)
	case EvaluateUpdate:
		s.handleEvaluateUpdate(ctx, msg)
	case EvaluateStop:
		s.handleEvaluateStop(msg)
	case BytecodeInterpreterResult:
		s.handleResult(msg)
	case BytecodeInterpreterGcComplete:
		s.handleGcComplete(msg)
	}
}

func (s *Supervisor) handleEvaluateStart(ctx context.Context, msg Message) {
	if _, exists := s.workers[msg.Key]; exists {
		return
	}

	pid := actorbus.PID(uuid.NewString())
	rec := &workerRecord{
		pid:          pid,
		label:        msg.Label,
		invalidation: msg.InvalidationStrategy,
		status:       statusWorking,
		queue:        newQueue(msg.InvalidationStrategy),
		mailbox:      actorbus.NewMailbox[workerCommand](8),
	}
	s.workers[msg.Key] = rec
	s.labelGroupFor(msg.Label).setDependencyCount(pid, 0, s.metrics, msg.Label)

	worker := wasmrun.NewWorker(s.engine, s.metrics, msg.Label, string(pid), s.hostHeap)
	task := &workerTask{
		key:       msg.Key,
		worker:    worker,
		mailbox:   rec.mailbox,
		query:     msg.Query,
		queryHeap: msg.QueryHeap,
		out:       s.inbox,
	}
	s.group.Spawn(func(taskCtx context.Context) error {
		task.run(taskCtx)
		return nil
	})

	rec.mailbox.TrySend(workerCommand{kind: cmdInit})
	rec.mailbox.TrySend(workerCommand{kind: cmdEvaluate})
}

func (s *Supervisor) handleEvaluateUpdate(ctx context.Context, msg Message) {
	rec, ok := s.workers[msg.Key]
	if !ok {
		return
	}
	rec.stateIndex = msg.StateIndex

	if rec.status == statusWorking {
		rec.queue.Push(msg.StateIndex, msg.Updates)
		return
	}

	rec.status = statusWorking
	rec.queue.Push(msg.StateIndex, msg.Updates)
	stateIndex, updates, _ := rec.queue.PopBatch()
	rec.mailbox.TrySend(workerCommand{kind: cmdEvaluate, stateIndex: stateIndex, updates: updates})
}

func (s *Supervisor) handleEvaluateStop(msg Message) {
	rec, ok := s.workers[msg.Key]
	if !ok {
		return
	}
	s.metrics.ResetWorker(rec.label, string(rec.pid))
	rec.mailbox.TrySend(workerCommand{kind: cmdStop})
	delete(s.workers, msg.Key)

	lg := s.labelGroupFor(rec.label)
	lg.remove(rec.pid)
	if lg.empty() {
		delete(s.labelGroups, rec.label)
		s.metrics.ResetLabelGroup(rec.label, quantileLabels())
	} else {
		lg.publish(s.metrics, rec.label)
	}
}

func (s *Supervisor) handleResult(msg Message) {
	rec, ok := s.workers[msg.Key]
	if !ok {
		return
	}

	s.labelGroupFor(rec.label).setDependencyCount(rec.pid, msg.Result.Statistics.DependencyCount, s.metrics, rec.label)

	if !rec.queue.Empty() {
		stateIndex, updates, _ := rec.queue.PopBatch()
		rec.mailbox.TrySend(workerCommand{kind: cmdEvaluate, stateIndex: stateIndex, updates: updates})
	} else {
		rec.status = statusIdle
	}

	resolved := s.isResolved(msg.Result)
	if resolved && (rec.queue.Empty() || rec.updatesSinceGC >= MaxUpdatesWithoutGC) {
		rec.updatesSinceGC = 0
		rec.mailbox.TrySend(workerCommand{kind: cmdGc, stateIndex: msg.StateIndex})
	} else {
		rec.updatesSinceGC++
	}

	s.resultSink.TrySend(Message{
		Type:       EvaluateResult,
		Key:        msg.Key,
		StateIndex: msg.StateIndex,
		Result:     msg.Result,
	})
}

func (s *Supervisor) handleGcComplete(msg Message) {
	rec, ok := s.workers[msg.Key]
	if !ok {
		return
	}
	s.labelGroupFor(rec.label).publish(s.metrics, rec.label)
}

func (s *Supervisor) labelGroupFor(label string) *labelGroup {
	lg, ok := s.labelGroups[label]
	if !ok {
		lg = newLabelGroup()
		s.labelGroups[label] = lg
	}
	return lg
}

// isResolved reports whether a worker's result carries no unresolved
// effect conditions (Pending/Custom) — an Error condition is terminal,
// not a blocker, per spec §4.D. result.Value is already expressed
// against the supervisor's shared host heap (see NewWorker's doc). A
// Signal term's children are the conditions themselves (the same
// convention internal/bytecode.Exec's OpBreakOnSignal and
// internal/expr.Evaluate use), not a SignalList tree, so this walks
// Children directly instead of condition.FromSignalList.
func (s *Supervisor) isResolved(result wasmrun.Result) bool {
	if s.hostHeap.Kind(result.Value) != heap.KindSignal {
		return true
	}
	for _, p := range s.hostHeap.Get(result.Value).Children {
		c := condition.Condition{Heap: s.hostHeap, Ptr: p}
		if c.IsUnresolvedEffect() {
			return false
		}
	}
	return true
}
