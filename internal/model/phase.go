package model

// Phase names. These are wire values: they appear in the snapshot file, the
// key-value store and API responses, so they must stay stable.
const (
	PhaseWork       = "work"
	PhaseShortBreak = "short_break"
	PhaseLongBreak  = "long_break"
)

// Per-phase completion statuses.
const (
	StatusNotStarted      = "not_started"
	StatusCurrent         = "current"
	StatusNormalCompleted = "completed"
	StatusSkipped         = "skipped"
)

const (
	DefaultWorkSeconds       = 25 * 60
	DefaultShortBreakSeconds = 5 * 60
	DefaultLongBreakSeconds  = 15 * 60
)

// Phase is one named timed segment of the cycle. Immutable once loaded,
// except AdjustedSeconds which records actual elapsed time when the phase
// ends other than by natural countdown expiry (flow exit).
type Phase struct {
	Name            string `json:"name"`
	DurationSeconds int    `json:"duration"`
	AdjustedSeconds *int   `json:"adjustedDuration,omitempty"`
}

// IsWork reports whether the phase is a work segment.
func (p Phase) IsWork() bool {
	return p.Name == PhaseWork
}

// ValidPhaseName reports whether name is one of the known phase names.
func ValidPhaseName(name string) bool {
	switch name {
	case PhaseWork, PhaseShortBreak, PhaseLongBreak:
		return true
	}
	return false
}

// DefaultCycle returns the hardcoded 4-phase cycle used when no cycle
// configuration is available or the configured one is malformed.
func DefaultCycle() []Phase {
	return []Phase{
		{Name: PhaseWork, DurationSeconds: DefaultWorkSeconds},
		{Name: PhaseShortBreak, DurationSeconds: DefaultShortBreakSeconds},
		{Name: PhaseWork, DurationSeconds: DefaultWorkSeconds},
		{Name: PhaseLongBreak, DurationSeconds: DefaultLongBreakSeconds},
	}
}
