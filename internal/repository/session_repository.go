package repository

import (
	"context"
	"database/sql"
	"fmt"

	"pomodoro/daemon/internal/model"
)

// SessionRepository records historical phase runs.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Insert(ctx context.Context, session *model.PhaseSession) error {
	var endedAt interface{}
	if session.EndedAt != nil {
		endedAt = formatTime(*session.EndedAt)
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO phase_sessions (
			id, phase_name, planned_seconds, actual_seconds,
			started_at, ended_at, outcome, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.PhaseName,
		session.PlannedSeconds,
		session.ActualSeconds,
		formatTime(session.StartedAt),
		endedAt,
		session.Outcome,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Finish closes a running session with its final outcome and actual
// duration. Finishing an already-finished or unknown session is a no-op.
func (r *SessionRepository) Finish(ctx context.Context, id string, actualSeconds int, outcome string, endedAt, updatedAt string) error {
	if actualSeconds < 0 {
		actualSeconds = 0
	}
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE phase_sessions
		 SET actual_seconds = ?, outcome = ?, ended_at = ?, updated_at = ?
		 WHERE id = ? AND outcome = ?`,
		actualSeconds, outcome, endedAt, updatedAt, id, model.OutcomeRunning,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

func (r *SessionRepository) List(ctx context.Context, limit int) ([]model.PhaseSession, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, phase_name, planned_seconds, actual_seconds,
		        started_at, ended_at, outcome, created_at, updated_at
		 FROM phase_sessions
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.PhaseSession, 0, limit)
	for rows.Next() {
		var session model.PhaseSession
		var startedAt, createdAt, updatedAt string
		var endedAt sql.NullString

		if err := rows.Scan(
			&session.ID,
			&session.PhaseName,
			&session.PlannedSeconds,
			&session.ActualSeconds,
			&startedAt,
			&endedAt,
			&session.Outcome,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		if session.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse session started_at: %w", err)
		}
		if endedAt.Valid {
			t, err := parseTime(endedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse session ended_at: %w", err)
			}
			session.EndedAt = &t
		}
		if session.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse session created_at: %w", err)
		}
		if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parse session updated_at: %w", err)
		}

		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}
