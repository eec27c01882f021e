package session

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// gateCapacity bounds the number of concurrent sync holders. A transaction
// acquires the full capacity, which excludes every sync.
const gateCapacity = 1 << 16

const (
	gateOpen int32 = iota
	gateClosing
	gateHeld
)

// Gate suspends synchronization while an exclusive transaction is in flight.
//
// Syncs hold the gate in shared mode via TryEnter/Leave; a transaction holds
// it exclusively via Close/Open. A waiting transaction blocks new TryEnter
// calls, so syncs cannot starve it.
type Gate struct {
	sem   *semaphore.Weighted
	state atomic.Int32
}

// NewGate creates an open gate.
func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(gateCapacity)}
}

// IsOpen reports whether no transaction holds or is acquiring the gate.
func (g *Gate) IsOpen() bool {
	return g.state.Load() == gateOpen
}

// TryEnter takes a shared hold for one sync attempt. It returns false
// without blocking when the gate is closed; the caller must skip its sync.
// A successful TryEnter must be paired with Leave.
func (g *Gate) TryEnter() bool {
	if g.state.Load() != gateOpen {
		return false
	}
	return g.sem.TryAcquire(1)
}

// Leave releases a hold taken by TryEnter.
func (g *Gate) Leave() {
	g.sem.Release(1)
}

// Close takes the gate exclusively, waiting for in-flight syncs to leave.
// It returns ErrGateClosed if another transaction already holds the gate,
// and ctx.Err() if ctx ends first (the gate is then left open).
func (g *Gate) Close(ctx context.Context) error {
	if !g.state.CompareAndSwap(gateOpen, gateClosing) {
		return ErrGateClosed
	}
	if err := g.sem.Acquire(ctx, gateCapacity); err != nil {
		g.state.Store(gateOpen)
		return err
	}
	g.state.Store(gateHeld)
	return nil
}

// Open releases the exclusive hold taken by Close. It returns
// ErrGateNotClosed unless a Close has completed and not yet been matched,
// which includes a Close still waiting for syncs to leave.
func (g *Gate) Open() error {
	if !g.state.CompareAndSwap(gateHeld, gateOpen) {
		return ErrGateNotClosed
	}
	g.sem.Release(gateCapacity)
	return nil
}
