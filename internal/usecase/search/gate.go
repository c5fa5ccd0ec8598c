package search

import (
	"context"
	"sync"
)

// gate bounds in-flight queries. Callers past the bound queue in arrival
// order and are released as slots free up: FIFO backpressure, not rejection.
type gate struct {
	mu      sync.Mutex
	limit   int
	active  int
	waiters []chan struct{}
}

func newGate(limit int) *gate {
	if limit < 1 {
		limit = 1
	}
	return &gate{limit: limit}
}

func (g *gate) acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.active < g.limit {
		g.active++
		g.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	g.waiters = append(g.waiters, ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		for i, w := range g.waiters {
			if w == ready {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				g.mu.Unlock()
				return ctx.Err() //nolint:wrapcheck // deadline propagation
			}
		}
		g.mu.Unlock()
		// The slot was granted between Done and lock; pass it on.
		g.release()
		return ctx.Err() //nolint:wrapcheck // deadline propagation
	}
}

func (g *gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.waiters) > 0 {
		// Hand the slot to the oldest waiter; active count is unchanged.
		ready := g.waiters[0]
		g.waiters = g.waiters[1:]
		close(ready)
		return
	}
	g.active--
}
