package model

import "time"

// Session outcomes.
const (
	OutcomeRunning   = "running"
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeCancelled = "cancelled"
	OutcomeFlow      = "flow"
)

// PhaseSession is one historical phase run: a countdown that completed,
// was skipped or cancelled, or a flow session that was explicitly ended.
type PhaseSession struct {
	ID             string     `json:"id"`
	PhaseName      string     `json:"phaseName"`
	PlannedSeconds int        `json:"plannedSeconds"`
	ActualSeconds  int        `json:"actualSeconds"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	Outcome        string     `json:"outcome"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// User is the single local account allowed to drive the timer API.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
