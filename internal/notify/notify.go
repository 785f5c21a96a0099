// Package notify delivers advisory phase-end alerts. Alerts are
// best-effort: the timer proceeds as if delivery succeeded, and a missing
// notification permission or daemon simply means nothing is shown.
package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// Alert is the payload shown when a phase ends.
type Alert struct {
	Title            string
	NextPhaseName    string
	NextPhaseSeconds int
}

// Alerter schedules at most a handful of pending alerts and can cancel
// them all. Injected into the timer core so tests can observe scheduling
// without a desktop session.
type Alerter interface {
	// ScheduleAfter arranges for alert to fire once after d.
	ScheduleAfter(d time.Duration, alert Alert)
	// CancelAll drops every pending alert.
	CancelAll()
}

// Desktop delivers alerts as desktop notifications.
type Desktop struct {
	appName string

	mu      sync.Mutex
	pending []*time.Timer
}

// NewDesktop returns an Alerter that fires desktop notifications under the
// given application name.
func NewDesktop(appName string) *Desktop {
	return &Desktop{appName: appName}
}

func (d *Desktop) ScheduleAfter(wait time.Duration, alert Alert) {
	if wait < 0 {
		wait = 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(wait, func() {
		d.fire(alert)
		d.forget(timer)
	})
	d.pending = append(d.pending, timer)
}

func (d *Desktop) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, timer := range d.pending {
		timer.Stop()
	}
	d.pending = nil
}

func (d *Desktop) fire(alert Alert) {
	body := fmt.Sprintf("Next up: %s (%d min)", alert.NextPhaseName, alert.NextPhaseSeconds/60)
	if err := beeep.Notify(alert.Title, body, ""); err != nil {
		// Expected on headless systems; the timer does not care.
		log.Printf("notify: %v", err)
	}
}

func (d *Desktop) forget(timer *time.Timer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, t := range d.pending {
		if t == timer {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			return
		}
	}
}
