package cfscan

import (
	"context"
	"sync"
)

// gate is a pause/resume signal: open lets waiters through immediately,
// closed blocks them until reopened. Modeled on the private-llm proxy's
// openGate/closeGate helpers, which use a channel's closed-ness itself
// as the signal rather than a bool behind a mutex, so Wait can select
// on it alongside ctx.Done().
type gate struct {
	mu sync.Mutex
	ch chan struct{}
}

func newGate(open bool) *gate {
	ch := make(chan struct{})
	if open {
		close(ch)
	}
	return &gate{ch: ch}
}

// Wait blocks until the gate is open or ctx is done.
func (g *gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open releases any current and future waiters until Close is called.
func (g *gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
	default:
		close(g.ch)
	}
}

// Close blocks future waiters until Open is called again.
func (g *gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		g.ch = make(chan struct{})
	default:
	}
}
