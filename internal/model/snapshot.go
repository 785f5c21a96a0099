package model

import "time"

// Display modes published for external surfaces.
const (
	DisplayFlow      = "flow"
	DisplayCountdown = "countdown"
	DisplayPaused    = "paused"
	DisplayIdle      = "idle"
)

// Phase types published for external surfaces. Unlike phase names these
// include an explicit unknown value so readers never have to guess.
const (
	PhaseTypeWork       = "work"
	PhaseTypeShortBreak = "shortBreak"
	PhaseTypeLongBreak  = "longBreak"
	PhaseTypeUnknown    = "unknown"
)

// Snapshot is the externally published, versioned projection of timer and
// phase state. It is written wholesale to the shared snapshot file and served
// verbatim by the read-only snapshot endpoint; readers treat it as
// eventually consistent and must tolerate staleness.
type Snapshot struct {
	Version                  int        `json:"version"`
	CurrentPhaseIndex        int        `json:"currentPhaseIndex"`
	RemainingTime            int        `json:"remainingTime"`
	TimerRunning             bool       `json:"timerRunning"`
	CurrentPhaseName         string     `json:"currentPhaseName"`
	LastUpdateTime           time.Time  `json:"lastUpdateTime"`
	TotalTime                int        `json:"totalTime"`
	Phases                   []Phase    `json:"phases"`
	CompletedCycles          int        `json:"completedCycles"`
	PhaseCompletionStatus    []string   `json:"phaseCompletionStatus"`
	HasSkippedInCurrentCycle bool       `json:"hasSkippedInCurrentCycle"`
	IsCurrentPhaseWorkPhase  bool       `json:"isCurrentPhaseWorkPhase"`
	IsInFlowCountUp          bool       `json:"isInFlowCountUp"`
	FlowElapsedTime          int        `json:"flowElapsedTime"`
	DisplayMode              string     `json:"displayMode"`
	CurrentPhaseType         string     `json:"currentPhaseType"`
	PhaseEndDate             *time.Time `json:"phaseEndDate,omitempty"`
	FlowStartDate            *time.Time `json:"flowStartDate,omitempty"`
}

// PhaseTypeOf maps a phase name to its published phase type.
func PhaseTypeOf(name string) string {
	switch name {
	case PhaseWork:
		return PhaseTypeWork
	case PhaseShortBreak:
		return PhaseTypeShortBreak
	case PhaseLongBreak:
		return PhaseTypeLongBreak
	default:
		return PhaseTypeUnknown
	}
}
