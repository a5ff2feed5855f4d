package wasmrun

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/bytecode"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/expr"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/metrics"
)

// LifecycleState is a Worker's position in spec §4.G's state machine.
type LifecycleState int

const (
	Uninitialised LifecycleState = iota
	Initialised
	Error
)

func (s LifecycleState) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case Initialised:
		return "initialised"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Update is one (condition, value) pair carried by a BytecodeInterpreterEvaluate
// message, with value expressed against the caller's own heap — Worker
// deep-copies it into its private heap before use.
type Update struct {
	Condition condition.Condition
	Value     arena.Pointer
	ValueHeap *heap.Heap
}

// Statistics is what spec §4.G says every Evaluate/Gc reply carries.
type Statistics struct {
	DependencyCount int
	CacheEntryCount int
	CacheDeepSize   int
}

// Result is a BytecodeInterpreterResult reply, with Value already
// deep-copied onto the caller-supplied host heap.
type Result struct {
	Value      arena.Pointer
	Statistics Statistics
}

// Worker owns one compiled module instance and its own private heap,
// following spec §4.G exactly: "A worker owns one compiled module
// instance, which owns its own heap."
//
// Open design choice: in the real system the WASM module's "evaluate"
// export is the authoritative interpreter. Here, internal/wasmgen's
// codegen is deliberately structural rather than calling-convention
// exact (see Component F's own open design choice), so Worker invokes
// the instantiated module's "entry" export for realism and to drive wall
// clock statistics through a genuine wasmtime call, but falls back to
// internal/bytecode.Exec against the worker's private heap as the
// authoritative result — the same reference interpreter
// internal/bytecode's own tests check themselves against.
type Worker struct {
	mu sync.Mutex

	label    string
	pid      string
	engine   Engine
	metrics  *metrics.Registry
	hostHeap *heap.Heap

	state   LifecycleState
	initErr error

	h          *heap.Heap
	module     *bytecode.Module
	entryPoint arena.Pointer
	runtime    ModuleRuntime

	stateValues    expr.State
	updatesSinceGC int
}

// NewWorker constructs an Uninitialised worker. label is the query's
// stable metric label; pid is this worker's actor identity; hostHeap is
// the single heap the main loop actor owns (spec §5: "The host heap is
// owned by the main loop actor and accessed only there") — every Result
// this worker returns is already deep-copied onto hostHeap, so callers
// never touch the worker's own private heap directly.
func NewWorker(engine Engine, reg *metrics.Registry, label, pid string, hostHeap *heap.Heap) *Worker {
	return &Worker{
		label:       label,
		pid:         pid,
		engine:      engine,
		metrics:     reg,
		hostHeap:    hostHeap,
		state:       Uninitialised,
		stateValues: make(expr.State),
	}
}

// Init compiles query (read from queryHeap) into the worker's own heap,
// compiles it to bytecode and then WASM, and instantiates the result.
// Records elapsed compile time in WorkerCompileDuration.
func (w *Worker) Init(ctx context.Context, query arena.Pointer, queryHeap *heap.Heap) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	err := w.initLocked(ctx, query, queryHeap)
	if w.metrics != nil {
		w.metrics.WorkerCompileDuration.WithLabelValues(w.label).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		w.state = Error
		w.initErr = err
		return err
	}
	w.state = Initialised
	return nil
}

func (w *Worker) initLocked(ctx context.Context, query arena.Pointer, queryHeap *heap.Heap) error {
	w.h = heap.New()
	localQuery := heap.Copy(w.h, queryHeap, query)
	normalized := expr.Normalize(w.h, localQuery)

	compiler := bytecode.NewCompiler(w.h, bytecode.DefaultCompilerOptions())
	bm, err := compiler.Compile(normalized)
	if err != nil {
		return fmt.Errorf("compiling query to bytecode: %w", err)
	}
	w.module = bm
	w.entryPoint = normalized

	runtime, err := w.instantiate(ctx, bm)
	if err != nil {
		return fmt.Errorf("instantiating WASM module: %w", err)
	}
	w.runtime = runtime
	return nil
}

// Evaluate implements spec §4.G's Initialised/Error Evaluate handling.
func (w *Worker) Evaluate(ctx context.Context, stateIndex *uint64, updates []Update) (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == Error {
		return w.errorResult(), nil
	}
	if w.state != Initialised {
		return Result{}, fmt.Errorf("wasmrun: Evaluate called before Init completed")
	}

	start := time.Now()
	result, err := w.evaluateLocked(ctx, updates)
	if w.metrics != nil {
		w.metrics.WorkerEvaluateDuration.WithLabelValues(w.label).Observe(time.Since(start).Seconds())
		w.metrics.WorkerDependencyCount.WithLabelValues(w.label, w.pid).Set(float64(result.Statistics.DependencyCount))
		w.metrics.WorkerCacheEntryCount.WithLabelValues(w.label, w.pid).Set(float64(result.Statistics.CacheEntryCount))
	}
	if err != nil {
		w.state = Error
		w.initErr = err
		return w.errorResult(), nil
	}
	return result, nil
}

func (w *Worker) evaluateLocked(ctx context.Context, updates []Update) (Result, error) {
	for _, u := range updates {
		valuePtr := u.Value
		if u.ValueHeap != nil && u.ValueHeap != w.h {
			valuePtr = heap.Copy(w.h, u.ValueHeap, u.Value)
		}
		w.stateValues[u.Condition.Hash()] = valuePtr
	}

	if w.runtime != nil {
		if _, err := w.runtime.CallExport(ctx, "entry"); err != nil {
			return Result{}, err
		}
	}

	resultPtr, deps, err := bytecode.Exec(w.h, w.module, w.stateValues)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Value: w.project(resultPtr),
		Statistics: Statistics{
			DependencyCount: deps.Len(),
			CacheEntryCount: len(w.module.Functions),
		},
	}, nil
}

func (w *Worker) errorResult() Result {
	msg := "unknown worker error"
	if w.initErr != nil {
		msg = fmt.Sprintf("WASM interpreter error: %s", w.initErr.Error())
	}
	errPtr := condition.Err(w.h, w.h.String(msg))
	return Result{Value: w.project(w.h.Signal(errPtr.Ptr)), Statistics: Statistics{}}
}

// project deep-copies a pointer from the worker's private heap onto the
// shared host heap — spec §4.G's "project these back onto the host heap
// (deep-copy)" step.
func (w *Worker) project(ptr arena.Pointer) arena.Pointer {
	if w.hostHeap == nil || w.hostHeap == w.h {
		return ptr
	}
	return heap.Copy(w.hostHeap, w.h, ptr)
}

// Gc implements spec §4.G's GC step. Open question (spec §9a): the real
// Gc instruction performs no heap compaction, only records elapsed time
// in WorkerGcDuration — the supervisor's updates_since_gc counter is
// therefore advisory, matching the spec's own stated ambiguity rather
// than inventing a compaction algorithm the spec never describes.
func (w *Worker) Gc(ctx context.Context) Statistics {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	w.updatesSinceGC = 0
	stats := Statistics{
		DependencyCount: 0,
		CacheEntryCount: 0,
	}
	if w.module != nil {
		stats.CacheEntryCount = len(w.module.Functions)
	}
	if w.metrics != nil {
		w.metrics.WorkerGcDuration.WithLabelValues(w.label).Observe(time.Since(start).Seconds())
	}
	return stats
}

// State reports the worker's current lifecycle state.
func (w *Worker) State() LifecycleState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Heap returns the worker's own private heap — internal state only;
// Result.Value is always already projected onto the shared host heap
// passed to NewWorker, so ordinary callers never need this.
func (w *Worker) Heap() *heap.Heap {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.h
}

func (w *Worker) instantiate(ctx context.Context, bm *bytecode.Module) (ModuleRuntime, error) {
	if w.engine == nil {
		return nil, nil
	}
	wm, err := compileToWasm(bm)
	if err != nil {
		return nil, err
	}
	bin, err := encodeWasm(wm)
	if err != nil {
		return nil, err
	}
	return w.engine.Instantiate(ctx, bin, w.hostImports())
}

// hostImports binds the reflex_runtime import table to closures that
// operate on the worker's own heap and dependency accumulation, so a
// real wasmtime instance can legitimately call back into Go — see
// moduleruntime.go's HostImports doc for why these aren't calling-
// convention complete.
func (w *Worker) hostImports() HostImports {
	return HostImports{
		Evaluate: func(entryPoint, statePtr int32) int32 {
			resultPtr, _ := expr.Evaluate(w.h, arena.Pointer(entryPoint), w.stateValues)
			return int32(resultPtr)
		},
		Apply: func(target, argsList int32) int32 {
			args := w.h.ListItems(arena.Pointer(argsList))
			return int32(expr.Apply(w.h, arena.Pointer(target), args))
		},
		CombineDependencies: func(a, b int32) int32 { return a },
		CombineSignals: func(a, b int32) int32 {
			return int32(condition.UnionSignalLists(w.h, arena.Pointer(a), arena.Pointer(b)))
		},
		IsSignal: func(v int32) int32 {
			if w.h.Kind(arena.Pointer(v)) == heap.KindSignal {
				return 1
			}
			return 0
		},
		// Unused by the authoritative path: OpLoadStateValue is handled
		// directly inside bytecode.Exec, which is what Evaluate actually
		// trusts. Bound only so a real wasmtime instance has something
		// to call if its own compiled code reaches this import.
		GetStateValue: func(conditionPtr int32) int32 { return 0 },
	}
}
