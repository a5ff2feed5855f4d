package actorbus

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group supervises the lifetime of a set of concurrently running actors,
// grounded on the teacher's internal/campaign/intelligence_gatherer.go
// Gather pattern: an errgroup.Group joined to a context, multiple
// eg.Go(...) fan-outs, and a mutex-guarded accumulator for errors that
// shouldn't abort the other actors.
type Group struct {
	eg  *errgroup.Group
	ctx context.Context

	mu   sync.Mutex
	errs []error
}

// NewGroup wraps ctx in an errgroup.WithContext the way Gather does,
// returning both the Group and its derived context for actors that need
// to observe cancellation triggered by a sibling's fatal error.
func NewGroup(ctx context.Context) (*Group, context.Context) {
	eg, egCtx := errgroup.WithContext(ctx)
	return &Group{eg: eg, ctx: egCtx}, egCtx
}

// Spawn runs fn in its own goroutine under the group, the same shape as
// Gather's `eg.Go(func() error { g.gatherXxx(...); return nil })` calls:
// fn's own error is fatal to the whole group and will be returned from
// Wait.
func (g *Group) Spawn(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		return fn(g.ctx)
	})
}

// SpawnTolerant runs fn in its own goroutine, but — mirroring Gather's
// addError closure — records a non-fatal error instead of cancelling
// sibling actors, so one handler's failure doesn't tear down the whole
// supervisor.
func (g *Group) SpawnTolerant(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if err := fn(g.ctx); err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
		return nil
	})
}

// Wait blocks until every spawned actor has returned, then returns the
// first fatal error from Spawn (if any) followed by every tolerated error
// recorded via SpawnTolerant.
func (g *Group) Wait() []error {
	fatal := g.eg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	if fatal == nil {
		return g.errs
	}
	return append([]error{fatal}, g.errs...)
}
