// Package actorbus provides the generic actor plumbing spec §5 describes
// ("one goroutine per worker/handler/supervisor actor, each owning an
// unbuffered-or-bounded mailbox"): a channel-backed Mailbox, a Bus that
// routes messages by actor PID, and a supervised-lifetime Group built on
// golang.org/x/sync/errgroup the way the teacher's
// internal/campaign/intelligence_gatherer.go fans out and joins
// concurrent sub-tasks.
package actorbus

import (
	"context"
	"fmt"
	"sync"
)

// PID identifies one actor's mailbox on a Bus.
type PID string

// Mailbox is one actor's inbound message queue.
type Mailbox[M any] struct {
	ch chan M
}

// NewMailbox returns a mailbox buffered to capacity (0 means unbuffered,
// i.e. synchronous hand-off between sender and receiver).
func NewMailbox[M any](capacity int) *Mailbox[M] {
	return &Mailbox[M]{ch: make(chan M, capacity)}
}

// Send enqueues msg, blocking until there's room or ctx is done.
func (m *Mailbox[M]) Send(ctx context.Context, msg M) error {
	select {
	case m.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues msg without blocking, reporting false if the mailbox is
// full.
func (m *Mailbox[M]) TrySend(msg M) bool {
	select {
	case m.ch <- msg:
		return true
	default:
		return false
	}
}

// Receive is the channel actors range over to drain their mailbox; Close
// closes it once the actor's goroutine has exited, so callers still
// holding a reference don't send into a channel nobody reads.
func (m *Mailbox[M]) Receive() <-chan M { return m.ch }

func (m *Mailbox[M]) Close() { close(m.ch) }

// Bus is a process-wide registry of named mailboxes used by actors that
// need to address one another by PID (the supervisor addressing workers,
// handlers addressing the supervisor's main mailbox, etc.) — spec §6.1's
// message shapes are always sent through one of these.
type Bus[M any] struct {
	mu        sync.RWMutex
	mailboxes map[PID]*Mailbox[M]
}

// NewBus returns an empty registry.
func NewBus[M any]() *Bus[M] {
	return &Bus[M]{mailboxes: make(map[PID]*Mailbox[M])}
}

// Register creates and registers a mailbox for pid, replacing any
// previous one under the same PID.
func (b *Bus[M]) Register(pid PID, capacity int) *Mailbox[M] {
	mb := NewMailbox[M](capacity)
	b.mu.Lock()
	b.mailboxes[pid] = mb
	b.mu.Unlock()
	return mb
}

// Unregister removes and closes pid's mailbox.
func (b *Bus[M]) Unregister(pid PID) {
	b.mu.Lock()
	mb, ok := b.mailboxes[pid]
	delete(b.mailboxes, pid)
	b.mu.Unlock()
	if ok {
		mb.Close()
	}
}

// Send routes msg to pid's mailbox, failing if no actor is registered
// under that PID.
func (b *Bus[M]) Send(ctx context.Context, pid PID, msg M) error {
	b.mu.RLock()
	mb, ok := b.mailboxes[pid]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("actorbus: no actor registered for pid %q", pid)
	}
	return mb.Send(ctx, msg)
}

// Lookup returns pid's mailbox, if any — used when an actor wants to hold
// onto a direct reference (e.g. the supervisor caching each worker's
// mailbox) rather than paying a map lookup per send.
func (b *Bus[M]) Lookup(pid PID) (*Mailbox[M], bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	mb, ok := b.mailboxes[pid]
	return mb, ok
}
