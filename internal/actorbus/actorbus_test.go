package actorbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMailboxSendReceive(t *testing.T) {
	mb := NewMailbox[int](1)
	ctx := context.Background()
	require.NoError(t, mb.Send(ctx, 42))
	require.Equal(t, 42, <-mb.Receive())
	mb.Close()
}

func TestMailboxSendRespectsContextCancellation(t *testing.T) {
	mb := NewMailbox[int](0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := mb.Send(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	mb.Close()
}

func TestMailboxTrySendReportsFullMailbox(t *testing.T) {
	mb := NewMailbox[int](1)
	require.True(t, mb.TrySend(1))
	require.False(t, mb.TrySend(2))
	<-mb.Receive()
	mb.Close()
}

func TestBusRoutesMessagesByPID(t *testing.T) {
	bus := NewBus[string]()
	mb := bus.Register(PID("worker-1"), 1)

	ctx := context.Background()
	require.NoError(t, bus.Send(ctx, PID("worker-1"), "hello"))
	require.Equal(t, "hello", <-mb.Receive())

	err := bus.Send(ctx, PID("missing"), "x")
	require.Error(t, err)

	bus.Unregister(PID("worker-1"))
	_, ok := bus.Lookup(PID("worker-1"))
	require.False(t, ok)
}

func TestGroupSpawnFatalErrorCancelsContext(t *testing.T) {
	g, egCtx := NewGroup(context.Background())
	boom := errors.New("boom")

	g.Spawn(func(ctx context.Context) error {
		return boom
	})
	g.Spawn(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
			return errors.New("sibling should have observed cancellation")
		}
	})

	errs := g.Wait()
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], boom)
	require.ErrorIs(t, egCtx.Err(), context.Canceled)
}

func TestGroupSpawnTolerantAccumulatesWithoutCancelling(t *testing.T) {
	g, _ := NewGroup(context.Background())
	first := errors.New("first")
	second := errors.New("second")

	g.SpawnTolerant(func(ctx context.Context) error { return first })
	g.SpawnTolerant(func(ctx context.Context) error { return second })
	g.SpawnTolerant(func(ctx context.Context) error { return nil })

	errs := g.Wait()
	require.Len(t, errs, 2)
}
