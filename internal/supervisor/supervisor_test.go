package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/reflexrun/reflex/internal/actorbus"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/expr"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/metrics"
	"github.com/reflexrun/reflex/internal/wasmrun"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRuntime/fakeEngine stand in for wasmrun's unexported test fakes,
// which can't be reused across package boundaries.
type fakeRuntime struct{}

func (fakeRuntime) CallExport(ctx context.Context, name string, args ...int32) (int32, error) {
	return 0, nil
}

func (fakeRuntime) Close() error { return nil }

type fakeEngine struct{}

func (fakeEngine) Instantiate(ctx context.Context, wasmBytes []byte, imports wasmrun.HostImports) (wasmrun.ModuleRuntime, error) {
	return fakeRuntime{}, nil
}

func TestSupervisorEvaluateStartForwardsResolvedResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, groupCtx := actorbus.NewGroup(ctx)
	resultSink := actorbus.NewMailbox[Message](4)
	sup := NewSupervisor(fakeEngine{}, metrics.New(), resultSink, group)

	group.Spawn(func(taskCtx context.Context) error {
		return sup.Run(taskCtx)
	})

	queryHeap := heap.New()
	query := queryHeap.Application(queryHeap.Builtin(expr.BuiltinAdd), queryHeap.List(queryHeap.Int(1), queryHeap.Int(2)))

	err := sup.Inbox().Send(groupCtx, Message{
		Type:      EvaluateStart,
		Key:       "query-1",
		Label:     "sum",
		Query:     query,
		QueryHeap: queryHeap,
	})
	require.NoError(t, err)

	select {
	case msg := <-resultSink.Receive():
		require.Equal(t, EvaluateResult, msg.Type)
		require.Equal(t, "query-1", msg.Key)
		require.Equal(t, heap.KindInt, sup.HostHeap().Kind(msg.Result.Value))
		require.Equal(t, int64(3), sup.HostHeap().Get(msg.Result.Value).Int)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for EvaluateResult")
	}

	err = sup.Inbox().Send(groupCtx, Message{Type: EvaluateStop, Key: "query-1"})
	require.NoError(t, err)

	cancel()
	_ = group.Wait()
}

func TestSupervisorHandleEvaluateStartIgnoresDuplicateKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group, groupCtx := actorbus.NewGroup(ctx)
	resultSink := actorbus.NewMailbox[Message](4)
	sup := NewSupervisor(fakeEngine{}, metrics.New(), resultSink, group)

	h := heap.New()
	q := h.Int(1)

	sup.Handle(groupCtx, Message{Type: EvaluateStart, Key: "dup", Label: "l", Query: q, QueryHeap: h})
	require.Len(t, sup.workers, 1)

	sup.Handle(groupCtx, Message{Type: EvaluateStart, Key: "dup", Label: "l", Query: q, QueryHeap: h})
	require.Len(t, sup.workers, 1)

	cancel()
	_ = group.Wait()
}

func TestCombineQueueOverwritesRepeatedCondition(t *testing.T) {
	q := newCombineQueue()
	require.True(t, q.Empty())

	idx := uint64(1)
	q.Push(&idx, nil)
	require.False(t, q.Empty())

	_, _, ok := q.PopBatch()
	require.True(t, ok)
	require.True(t, q.Empty())

	h := heap.New()
	cond := condition.Custom(h, "v", h.Nil(), h.Nil())
	q.Push(&idx, []wasmrun.Update{{Condition: cond, Value: h.Int(1), ValueHeap: h}})
	q.Push(&idx, []wasmrun.Update{{Condition: cond, Value: h.Int(2), ValueHeap: h}})
	_, batch, ok := q.PopBatch()
	require.True(t, ok)
	require.Len(t, batch, 1)
	require.Equal(t, h.Int(2), batch[0].Value)
}

func TestExactQueuePreservesBatchBoundaries(t *testing.T) {
	q := newExactQueue()
	idxA, idxB := uint64(1), uint64(2)
	q.Push(&idxA, nil)
	q.Push(&idxB, nil)

	gotA, _, ok := q.PopBatch()
	require.True(t, ok)
	require.Equal(t, &idxA, gotA)

	gotB, _, ok := q.PopBatch()
	require.True(t, ok)
	require.Equal(t, &idxB, gotB)

	require.True(t, q.Empty())
}
