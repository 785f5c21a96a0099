// Package timeline computes elapsed and remaining time for a timer run.
// It is pure wall-clock arithmetic: every evaluation derives its result from
// the run's reference instant, so a delayed or skipped evaluation (process
// suspension, device sleep) self-corrects instead of drifting.
package timeline

import (
	"math"
	"time"

	"pomodoro/daemon/internal/model"
)

// Reading is the result of evaluating a run at an instant.
type Reading struct {
	// Seconds is remaining time for countdown runs, elapsed time for
	// count-up runs.
	Seconds int
	// CrossedBoundary is true exactly once per run: the first evaluation
	// at which a countdown reaches zero. Count-up runs never cross a
	// boundary here; their end is externally triggered.
	CrossedBoundary bool
}

// Evaluator tracks edge-trigger state for a single run. Create a fresh
// Evaluator per run; reusing one across runs would suppress the boundary
// of the second run.
type Evaluator struct {
	boundaryFired bool
}

// NewEvaluator returns an evaluator for a new run.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate computes the reading for run at now and consumes the boundary
// edge if the countdown has expired. Only the tick handler may call this;
// read paths use Seconds so observing state never eats the edge that
// drives the phase transition.
func (e *Evaluator) Evaluate(run *model.TimerRun, now time.Time) Reading {
	seconds, expired := compute(run, now)
	if expired {
		return Reading{Seconds: seconds, CrossedBoundary: e.fireOnce()}
	}
	return Reading{Seconds: seconds}
}

// Seconds computes the reading for run at now with no side effects:
// remaining time for countdown runs, elapsed time for count-up runs.
func Seconds(run *model.TimerRun, now time.Time) int {
	seconds, _ := compute(run, now)
	return seconds
}

func compute(run *model.TimerRun, now time.Time) (seconds int, expired bool) {
	if run == nil {
		return 0, false
	}

	switch run.Mode {
	case model.RunCountUp:
		elapsed := int(math.Floor(now.Sub(run.ReferenceInstant).Seconds()))
		if elapsed < 0 {
			elapsed = 0
		}
		return elapsed, false
	default:
		// A non-positive budget is treated as already expired, never an
		// error.
		if run.TotalSeconds <= 0 {
			return 0, true
		}

		left := float64(run.TotalSeconds) - now.Sub(run.ReferenceInstant).Seconds()
		remaining := int(math.Ceil(left))
		if remaining < 0 {
			remaining = 0
		}
		if remaining > run.TotalSeconds {
			remaining = run.TotalSeconds
		}
		return remaining, remaining == 0
	}
}

func (e *Evaluator) fireOnce() bool {
	if e.boundaryFired {
		return false
	}
	e.boundaryFired = true
	return true
}
