package schedule

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicksFireAndStop(t *testing.T) {
	var ticks atomic.Int32
	loop := NewLoop(func() { ticks.Add(1) }, func() {})

	loop.Start(CadenceNormal)
	defer loop.Stop()

	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)

	loop.Stop()
	assert.False(t, loop.Running())
	settled := ticks.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), settled+1, "ticks kept firing after Stop")
}

func TestTicksNeverOverlap(t *testing.T) {
	var inFlight atomic.Int32
	var overlapped atomic.Bool

	loop := NewLoop(func() {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}, func() {})

	loop.Start(CadenceNormal)
	time.Sleep(2500 * time.Millisecond)
	loop.Stop()

	assert.False(t, overlapped.Load())
}

func TestStartIsIdempotentReplacesArming(t *testing.T) {
	var ticks atomic.Int32
	loop := NewLoop(func() { ticks.Add(1) }, func() {})

	// Arming repeatedly must replace, not stack: tick rate stays ~1/s.
	loop.Start(CadenceNormal)
	loop.Start(CadenceNormal)
	loop.Start(CadenceNormal)
	defer loop.Stop()

	time.Sleep(2200 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), int32(3))
}

func TestStopFromWithinTick(t *testing.T) {
	var loop *Loop
	var once sync.Once
	done := make(chan struct{})

	loop = NewLoop(func() {
		once.Do(func() {
			loop.Stop()
			close(done)
		})
	}, func() {})

	loop.Start(CadenceNormal)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tick never fired")
	}
	assert.False(t, loop.Running())
}

func TestRescheduleKeepsTicking(t *testing.T) {
	var ticks atomic.Int32
	loop := NewLoop(func() { ticks.Add(1) }, func() {})

	loop.Start(CadenceNormal)
	defer loop.Stop()

	loop.Reschedule(CadencePowerSaving)
	assert.True(t, loop.Running())
	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestRescheduleOnStoppedLoopStaysStopped(t *testing.T) {
	loop := NewLoop(func() {}, func() {})
	loop.Reschedule(CadencePowerSaving)
	assert.False(t, loop.Running())
}

func TestParseCadence(t *testing.T) {
	p, ok := ParseCadence("power_saving")
	assert.True(t, ok)
	assert.Equal(t, CadencePowerSaving, p)

	p, ok = ParseCadence("bogus")
	assert.False(t, ok)
	assert.Equal(t, CadenceNormal, p)
}
