package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reflexrun/reflex/internal/actorbus"
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

func recvOrTimeout(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a message")
		return Message{}
	}
}

func TestFetchHandlerSubscribeEmitsPendingThenResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group, groupCtx := actorbus.NewGroup(ctx)
	out := actorbus.NewMailbox[Message](8)
	fh := NewFetchHandler(out, metrics.New(), group)

	group.Spawn(func(taskCtx context.Context) error { return fh.Run(taskCtx) })

	h := heap.New()
	payload := h.List(h.String(srv.URL), h.String(http.MethodGet), h.Record(h.List(), h.List()), h.Nil())
	cond := condition.Custom(h, "reflex::fetch", payload, h.Nil())

	require.NoError(t, fh.Inbox().Send(groupCtx, Message{Type: EffectSubscribe, Effects: []condition.Condition{cond}}))

	pending := recvOrTimeout(t, out.Receive())
	require.Equal(t, heap.KindSignal, pending.Batch[0].ValueHeap.Kind(pending.Batch[0].Value))

	result := recvOrTimeout(t, out.Receive())
	require.Equal(t, heap.KindList, result.Batch[0].ValueHeap.Kind(result.Batch[0].Value))
	items := result.Batch[0].ValueHeap.ListItems(result.Batch[0].Value)
	require.Equal(t, int64(http.StatusOK), result.Batch[0].ValueHeap.Get(items[0]).Int)
	require.Equal(t, "hello", result.Batch[0].ValueHeap.Get(items[1]).Str)

	cancel()
	_ = group.Wait()
}

func TestVariableHandlerGetSetIncrement(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := actorbus.NewMailbox[Message](8)
	vh := NewVariableHandler(out)

	group, groupCtx := actorbus.NewGroup(ctx)
	group.Spawn(func(taskCtx context.Context) error { return vh.Run(taskCtx) })

	h := heap.New()
	key := h.String("counter")
	getCond := condition.Custom(h, "reflex::variable::get", h.List(key, h.Int(0)), h.Nil())
	require.NoError(t, vh.Inbox().Send(groupCtx, Message{Type: EffectSubscribe, Effects: []condition.Condition{getCond}}))

	got := recvOrTimeout(t, out.Receive())
	require.Equal(t, int64(0), got.Batch[0].ValueHeap.Get(got.Batch[0].Value).Int)

	incCond := condition.Custom(h, "reflex::variable::increment", h.List(key), h.Nil())
	require.NoError(t, vh.Inbox().Send(groupCtx, Message{Type: EffectSubscribe, Effects: []condition.Condition{incCond}}))

	incremented := recvOrTimeout(t, out.Receive())
	require.Equal(t, int64(1), incremented.Batch[0].ValueHeap.Get(incremented.Batch[0].Value).Int)

	cancel()
	_ = group.Wait()
}

func TestVariableHandlerIncrementNonNumericEmitsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := actorbus.NewMailbox[Message](8)
	vh := NewVariableHandler(out)
	group, groupCtx := actorbus.NewGroup(ctx)
	group.Spawn(func(taskCtx context.Context) error { return vh.Run(taskCtx) })

	h := heap.New()
	key := h.String("name")
	getCond := condition.Custom(h, "reflex::variable::get", h.List(key, h.String("a")), h.Nil())
	require.NoError(t, vh.Inbox().Send(groupCtx, Message{Type: EffectSubscribe, Effects: []condition.Condition{getCond}}))
	recvOrTimeout(t, out.Receive())

	incCond := condition.Custom(h, "reflex::variable::increment", h.List(key), h.Nil())
	require.NoError(t, vh.Inbox().Send(groupCtx, Message{Type: EffectSubscribe, Effects: []condition.Condition{incCond}}))

	errMsg := recvOrTimeout(t, out.Receive())
	require.Equal(t, heap.KindSignal, errMsg.Batch[0].ValueHeap.Kind(errMsg.Batch[0].Value))

	cancel()
	_ = group.Wait()
}

func TestLoaderHandlerBatchesConcurrentGets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := actorbus.NewMailbox[Message](8)
	lh := NewLoaderHandler(out, metrics.New())
	group, groupCtx := actorbus.NewGroup(ctx)
	group.Spawn(func(taskCtx context.Context) error { return lh.Run(taskCtx) })

	h := heap.New()
	loaderFn := h.Lambda(1, h.Variable(0))
	cond1 := condition.Custom(h, "reflex::loader", h.List(h.String("users"), loaderFn, h.Int(1)), h.Nil())
	cond2 := condition.Custom(h, "reflex::loader", h.List(h.String("users"), loaderFn, h.Int(2)), h.Nil())

	require.NoError(t, lh.Inbox().Send(groupCtx, Message{Type: EffectSubscribe, Effects: []condition.Condition{cond1, cond2}}))

	pendingMsg := recvOrTimeout(t, out.Receive())
	require.Equal(t, "reflex::loader", pendingMsg.EffectType)
	require.Len(t, pendingMsg.Batch, 2)

	forwarded := recvOrTimeout(t, out.Receive())
	require.Equal(t, EffectSubscribe, forwarded.Type)
	require.Equal(t, loaderBatchEffectType, forwarded.EffectType)
	batchCond := forwarded.Effects[0]

	require.NoError(t, lh.Inbox().Send(groupCtx, Message{
		Type:       EffectEmit,
		EffectType: loaderBatchEffectType,
		Batch: []Emission{
			{Condition: batchCond, Value: h.List(h.String("alice"), h.String("bob")), ValueHeap: h},
		},
	}))

	results := recvOrTimeout(t, out.Receive())
	require.Equal(t, "reflex::loader", results.EffectType)
	require.Len(t, results.Batch, 2)

	cancel()
	_ = group.Wait()
}

func TestScanHandlerSubscribeForwardsSourceSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := actorbus.NewMailbox[Message](8)
	sh := NewScanHandler(out, metrics.New())
	group, groupCtx := actorbus.NewGroup(ctx)
	group.Spawn(func(taskCtx context.Context) error { return sh.Run(taskCtx) })

	h := heap.New()
	target := h.Lambda(0, h.Int(0))
	iteratee := h.Lambda(2, h.Variable(1))
	cond := condition.Custom(h, "reflex::scan", h.List(target, h.Int(0), iteratee), h.Nil())

	require.NoError(t, sh.Inbox().Send(groupCtx, Message{Type: EffectSubscribe, EffectType: "reflex::scan", Effects: []condition.Condition{cond}}))

	pending := recvOrTimeout(t, out.Receive())
	require.Equal(t, "reflex::scan", pending.EffectType)

	forwarded := recvOrTimeout(t, out.Receive())
	require.Equal(t, scanSourceEffectType, forwarded.EffectType)
	require.Equal(t, EffectSubscribe, forwarded.Type)

	cancel()
	_ = group.Wait()
}

// TestScanHandlerFoldsSourceEmissionsIntoCumulativeState drives
// scan(range(0..3), seed=0, sum) through three source values, asserting
// the cumulative results spec §8.2 scenario 6 names: 0, 1, 3.
func TestScanHandlerFoldsSourceEmissionsIntoCumulativeState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := actorbus.NewMailbox[Message](16)
	sh := NewScanHandler(out, metrics.New())
	group, groupCtx := actorbus.NewGroup(ctx)
	group.Spawn(func(taskCtx context.Context) error { return sh.Run(taskCtx) })

	h := heap.New()
	target := h.Lambda(0, h.Int(0))
	addID, ok := expr.BuiltinByName("add")
	require.True(t, ok)
	// iteratee(state, source) = add(state, source); Apply binds args
	// [state, source] to Variable(1), Variable(0) respectively (arity 2,
	// index = arity-1-i — see internal/expr/evaluate.go's evalApplication).
	iteratee := h.Lambda(2, h.Application(h.Builtin(addID), h.List(h.Variable(1), h.Variable(0))))
	cond := condition.Custom(h, "reflex::scan", h.List(target, h.Int(0), iteratee), h.Nil())

	require.NoError(t, sh.Inbox().Send(groupCtx, Message{Type: EffectSubscribe, EffectType: "reflex::scan", Effects: []condition.Condition{cond}}))

	recvOrTimeout(t, out.Receive()) // Pending
	sourceSub := recvOrTimeout(t, out.Receive())
	require.Equal(t, scanSourceEffectType, sourceSub.EffectType)
	sourceEffect := sourceSub.Effects[0]

	cases := []struct {
		source   int64
		expected int64
	}{
		{source: 0, expected: 0},
		{source: 1, expected: 1},
		{source: 2, expected: 3},
	}

	for _, tc := range cases {
		require.NoError(t, sh.Inbox().Send(groupCtx, Message{
			Type:       EffectEmit,
			EffectType: scanSourceEffectType,
			Batch:      []Emission{{Condition: sourceEffect, Value: h.Int(tc.source), ValueHeap: h}},
		}))

		stateEmit := recvOrTimeout(t, out.Receive())
		require.Equal(t, scanStateEffectType, stateEmit.EffectType)
		require.Equal(t, tc.expected, stateEmit.Batch[0].ValueHeap.Get(stateEmit.Batch[0].Value).Int)

		stateSub := recvOrTimeout(t, out.Receive())
		require.Equal(t, EffectSubscribe, stateSub.Type)
		require.Equal(t, scanStateEffectType, stateSub.EffectType)

		// Feed the folded state value back in, as the supervisor would once
		// the synthesized state effect resolves.
		require.NoError(t, sh.Inbox().Send(groupCtx, Message{
			Type:       EffectEmit,
			EffectType: scanStateEffectType,
			Batch:      stateEmit.Batch,
		}))

		result := recvOrTimeout(t, out.Receive())
		require.Equal(t, "reflex::scan", result.EffectType)
		require.Equal(t, tc.expected, result.Batch[0].ValueHeap.Get(result.Batch[0].Value).Int)

		rebind := recvOrTimeout(t, out.Receive())
		require.Equal(t, scanStateEffectType, rebind.EffectType)
		require.Equal(t, heap.KindSignal, rebind.Batch[0].ValueHeap.Kind(rebind.Batch[0].Value))
	}

	cancel()
	_ = group.Wait()
}
