// Package schedule drives periodic re-evaluation of the timer on a fixed
// one-second cadence, with a slower independent sync cadence layered on top.
package schedule

import (
	"sync"
	"time"
)

// CadencePolicy selects how tightly ticks align to wall-clock seconds.
type CadencePolicy string

const (
	// CadenceNormal uses a plain periodic ticker.
	CadenceNormal CadencePolicy = "normal"
	// CadencePowerSaving re-aligns each tick to the next wall-clock second
	// boundary. When the display only refreshes once per second, alignment
	// has to be tighter, not looser, or visible seconds appear to stutter.
	CadencePowerSaving CadencePolicy = "power_saving"
)

// ParseCadence maps a wire value to a policy, defaulting to normal.
func ParseCadence(raw string) (CadencePolicy, bool) {
	switch CadencePolicy(raw) {
	case CadenceNormal:
		return CadenceNormal, true
	case CadencePowerSaving:
		return CadencePowerSaving, true
	}
	return CadenceNormal, false
}

const (
	tickPeriod = time.Second
	// syncPeriod is fixed and independent of the display cadence.
	syncPeriod = 60 * time.Second
)

// Loop is the run-loop scheduler. Callbacks are invoked sequentially from a
// single goroutine, so a tick can never overlap another tick or a sync.
// Arming an armed loop replaces the previous arming rather than stacking.
type Loop struct {
	onTick func()
	onSync func()

	mu      sync.Mutex
	policy  CadencePolicy
	stopCh  chan struct{}
	running bool
}

// NewLoop creates a stopped loop. onTick fires every second while armed;
// onSync fires roughly once a minute, independent of tick handling.
func NewLoop(onTick, onSync func()) *Loop {
	return &Loop{onTick: onTick, onSync: onSync}
}

// Start arms the loop with the given policy. Idempotent: a running loop is
// torn down and re-armed.
func (l *Loop) Start(policy CadencePolicy) {
	l.mu.Lock()
	if l.running {
		close(l.stopCh)
	}
	l.policy = policy
	l.stopCh = make(chan struct{})
	l.running = true
	stop := l.stopCh
	l.mu.Unlock()

	go l.run(policy, stop)
}

// Stop disarms the loop. Safe to call from within a tick callback; any
// tick already in flight finishes first.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	close(l.stopCh)
	l.running = false
}

// Reschedule re-arms a running loop under a new policy. The caller's run
// reference is untouched: only the trigger cadence changes. A stopped loop
// stays stopped.
func (l *Loop) Reschedule(policy CadencePolicy) {
	l.mu.Lock()
	if !l.running {
		l.policy = policy
		l.mu.Unlock()
		return
	}
	close(l.stopCh)
	l.policy = policy
	l.stopCh = make(chan struct{})
	stop := l.stopCh
	l.mu.Unlock()

	go l.run(policy, stop)
}

// Running reports whether the loop is armed.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run(policy CadencePolicy, stop <-chan struct{}) {
	lastSync := time.Now()

	fire := func() {
		l.onTick()
		if time.Since(lastSync) >= syncPeriod {
			lastSync = time.Now()
			l.onSync()
		}
	}

	if policy == CadencePowerSaving {
		for {
			timer := time.NewTimer(untilNextSecond(time.Now()))
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
				fire()
			}
		}
	}

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			fire()
		}
	}
}

func untilNextSecond(now time.Time) time.Duration {
	next := now.Truncate(time.Second).Add(time.Second)
	d := next.Sub(now)
	if d <= 0 {
		d = time.Second
	}
	return d
}
