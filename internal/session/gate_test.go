package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_CloseOpen(t *testing.T) {
	g := NewGate()
	ctx := context.Background()

	require.NoError(t, g.Close(ctx))
	assert.False(t, g.IsOpen())
	assert.False(t, g.TryEnter(), "syncs must be refused while closed")

	require.NoError(t, g.Open())
	assert.True(t, g.IsOpen())
	assert.True(t, g.TryEnter())
	g.Leave()
}

func TestGate_NonReentrant(t *testing.T) {
	g := NewGate()
	ctx := context.Background()

	require.NoError(t, g.Close(ctx))
	assert.ErrorIs(t, g.Close(ctx), ErrGateClosed)
	require.NoError(t, g.Open())
	assert.ErrorIs(t, g.Open(), ErrGateNotClosed)
}

func TestGate_CloseWaitsForInFlightSync(t *testing.T) {
	g := NewGate()
	require.True(t, g.TryEnter())

	closed := make(chan struct{})
	go func() {
		_ = g.Close(context.Background())
		close(closed)
	}()

	// The transaction announces itself immediately, so new syncs back off.
	require.Eventually(t, func() bool { return !g.IsOpen() }, time.Second, time.Millisecond)
	assert.False(t, g.TryEnter())

	select {
	case <-closed:
		t.Fatal("Close returned while a sync still held the gate")
	case <-time.After(20 * time.Millisecond):
	}

	g.Leave()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the sync left")
	}
	require.NoError(t, g.Open())
}

func TestGate_OpenWithoutCompletedClose(t *testing.T) {
	g := NewGate()
	require.True(t, g.TryEnter())

	closed := make(chan error, 1)
	go func() { closed <- g.Close(context.Background()) }()
	require.Eventually(t, func() bool { return !g.IsOpen() }, time.Second, time.Millisecond)

	// Close is still waiting for the sync; there is nothing to release yet.
	assert.NotPanics(t, func() {
		assert.ErrorIs(t, g.Open(), ErrGateNotClosed)
	})

	g.Leave()
	require.NoError(t, <-closed)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- g.Open()
		}()
	}
	wg.Wait()
	close(errs)

	var opened, rejected int
	for err := range errs {
		if err == nil {
			opened++
		} else {
			assert.ErrorIs(t, err, ErrGateNotClosed)
			rejected++
		}
	}
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, rejected)
	assert.True(t, g.TryEnter())
	g.Leave()
}

func TestGate_CloseHonoursContext(t *testing.T) {
	g := NewGate()
	require.True(t, g.TryEnter())
	defer g.Leave()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, g.IsOpen(), "a failed Close must leave the gate open")
}

func TestGate_ConcurrentSyncsShareTheGate(t *testing.T) {
	g := NewGate()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryEnter() {
				time.Sleep(time.Millisecond)
				g.Leave()
			}
		}()
	}
	wg.Wait()

	require.NoError(t, g.Close(context.Background()))
	require.NoError(t, g.Open())
}
