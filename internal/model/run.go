package model

import "time"

// RunMode selects how a TimerRun interprets time.
type RunMode string

const (
	// RunCountdown counts down from TotalSeconds to zero.
	RunCountdown RunMode = "countdown"
	// RunCountUp counts elapsed time upward without bound (flow).
	RunCountUp RunMode = "count_up"
)

// TimerRun is the ephemeral record of an in-progress run. It is never
// persisted: a run that does not survive the process is recreated, not
// resumed, so paused intervals can never accumulate drift. Elapsed and
// remaining time are always recomputed from ReferenceInstant rather than
// carried forward.
type TimerRun struct {
	Mode             RunMode
	ReferenceInstant time.Time
	// TotalSeconds is the countdown budget. Ignored in count-up mode.
	TotalSeconds int
	Running      bool
}
