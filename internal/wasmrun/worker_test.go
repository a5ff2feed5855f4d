package wasmrun

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/expr"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/metrics"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRuntime is the ModuleRuntime substitute worker_test.go uses instead
// of linking libwasmtime.
type fakeRuntime struct {
	calls  []string
	closed bool
}

func (f *fakeRuntime) CallExport(ctx context.Context, name string, args ...int32) (int32, error) {
	f.calls = append(f.calls, name)
	return 0, nil
}

func (f *fakeRuntime) Close() error {
	f.closed = true
	return nil
}

type fakeEngine struct {
	runtime *fakeRuntime
}

func (e *fakeEngine) Instantiate(ctx context.Context, wasmBytes []byte, imports HostImports) (ModuleRuntime, error) {
	return e.runtime, nil
}

func TestWorkerInitTransitionsToInitialised(t *testing.T) {
	h := heap.New()
	term := h.Application(h.Builtin(expr.BuiltinAdd), h.List(h.Int(2), h.Int(3)))

	w := NewWorker(&fakeEngine{runtime: &fakeRuntime{}}, metrics.New(), "my-query", "pid-1", heap.New())
	require.Equal(t, Uninitialised, w.State())

	err := w.Init(context.Background(), term, h)
	require.NoError(t, err)
	require.Equal(t, Initialised, w.State())
}

func TestWorkerEvaluateResolvesEffectFromStateUpdate(t *testing.T) {
	h := heap.New()
	cond := condition.Custom(h, "test::value", h.Nil(), h.Nil())
	term := h.Effect(cond.Ptr)

	hostHeap := heap.New()
	w := NewWorker(&fakeEngine{runtime: &fakeRuntime{}}, metrics.New(), "effect-query", "pid-3", hostHeap)
	require.NoError(t, w.Init(context.Background(), term, h))

	result, err := w.Evaluate(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, heap.KindSignal, hostHeap.Kind(result.Value))
	require.Equal(t, 1, result.Statistics.DependencyCount)

	updateHeap := heap.New()
	value := updateHeap.Int(42)
	result2, err := w.Evaluate(context.Background(), nil, []Update{
		{Condition: cond, Value: value, ValueHeap: updateHeap},
	})
	require.NoError(t, err)
	require.Equal(t, heap.KindInt, hostHeap.Kind(result2.Value))
}

func TestWorkerGcResetsStatisticsAndRecordsDuration(t *testing.T) {
	h := heap.New()
	term := h.Int(1)
	reg := metrics.New()
	w := NewWorker(&fakeEngine{runtime: &fakeRuntime{}}, reg, "gc-query", "pid-4", heap.New())
	require.NoError(t, w.Init(context.Background(), term, h))

	stats := w.Gc(context.Background())
	require.Equal(t, 0, stats.DependencyCount)
	require.Equal(t, 1, testutil.CollectAndCount(reg.WorkerGcDuration))
}

func TestWorkerEvaluateInErrorStateReturnsSynthesizedSignal(t *testing.T) {
	hostHeap := heap.New()
	w := NewWorker(&fakeEngine{runtime: &fakeRuntime{}}, metrics.New(), "q", "pid-5", hostHeap)
	w.state = Error
	w.h = heap.New()
	w.initErr = errPlaceholder{}

	result, err := w.Evaluate(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, heap.KindSignal, hostHeap.Kind(result.Value))
}

type errPlaceholder struct{}

func (errPlaceholder) Error() string { return "boom" }
