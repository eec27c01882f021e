package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDebouncer_BurstCollapsesToOneCall(t *testing.T) {
	clock := NewManualClock(epoch)
	var calls atomic.Int32

	d := New(200*time.Millisecond, func() { calls.Add(1) }, WithClock(clock))

	for i := 0; i < 10; i++ {
		d.Call()
		clock.Advance(50 * time.Millisecond)
	}
	assert.Equal(t, int32(0), calls.Load(), "no call may fire inside the burst")
	assert.True(t, d.IsPending())

	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.IsPending())
	assert.Equal(t, 0, clock.Pending())
}

func TestDebouncer_QuietWindowIsMeasuredFromLastCall(t *testing.T) {
	clock := NewManualClock(epoch)
	var calls atomic.Int32

	d := New(100*time.Millisecond, func() { calls.Add(1) }, WithClock(clock))

	d.Call()
	clock.Advance(99 * time.Millisecond)
	d.Call()
	clock.Advance(99 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	clock.Advance(time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_SpacedCalls(t *testing.T) {
	clock := NewManualClock(epoch)
	var calls atomic.Int32

	d := New(100*time.Millisecond, func() { calls.Add(1) }, WithClock(clock))

	for i := 0; i < 3; i++ {
		d.Call()
		clock.Advance(150 * time.Millisecond)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestDebouncer_Cancel(t *testing.T) {
	clock := NewManualClock(epoch)
	var calls atomic.Int32

	d := New(100*time.Millisecond, func() { calls.Add(1) }, WithClock(clock))

	d.Call()
	d.Cancel()
	clock.Advance(time.Second)

	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, d.IsPending())
}

func TestDebouncer_Flush(t *testing.T) {
	clock := NewManualClock(epoch)
	var calls atomic.Int32

	d := New(100*time.Millisecond, func() { calls.Add(1) }, WithClock(clock))

	d.Flush()
	assert.Equal(t, int32(0), calls.Load(), "flush without a pending call is a no-op")

	d.Call()
	d.Flush()
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(time.Second)
	assert.Equal(t, int32(1), calls.Load(), "the flushed timer must not fire again")
}

func TestDebouncer_SystemClock(t *testing.T) {
	var calls atomic.Int32

	d := New(20*time.Millisecond, func() { calls.Add(1) })
	for i := 0; i < 5; i++ {
		d.Call()
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
