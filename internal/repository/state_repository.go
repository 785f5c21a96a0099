package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"pomodoro/daemon/internal/sequence"
)

// Keys of the persisted timer state. The store is a plain key-value table;
// display surfaces and future schema changes only ever see these names.
const (
	keyCurrentPhaseIndex        = "currentPhaseIndex"
	keyCompletedCycles          = "completedCycles"
	keyHasSkippedInCurrentCycle = "hasSkippedInCurrentCycle"
	keyPhaseCompletionStatus    = "phaseCompletionStatus"
	keyCurrentPhaseName         = "currentPhaseName"
)

// PersistedState is the durable slice of the sequence machine. The phase
// definitions themselves come from configuration, not from the store.
type PersistedState struct {
	CurrentIndex             int
	CompletedCycles          int
	HasSkippedInCurrentCycle bool
	Statuses                 []string
	CurrentPhaseName         string
}

// StateRepository persists sequence state as key-value rows, written
// wholesale in one transaction after every mutation.
type StateRepository struct {
	db *sql.DB
}

func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Save upserts all state keys atomically.
func (r *StateRepository) Save(ctx context.Context, st sequence.State) error {
	statuses, err := json.Marshal(st.Statuses)
	if err != nil {
		return fmt.Errorf("encode statuses: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state tx: %w", err)
	}
	defer tx.Rollback()

	pairs := [][2]string{
		{keyCurrentPhaseIndex, strconv.Itoa(st.CurrentIndex)},
		{keyCompletedCycles, strconv.Itoa(st.CompletedCycles)},
		{keyHasSkippedInCurrentCycle, strconv.FormatBool(st.HasSkippedInCurrentCycle)},
		{keyPhaseCompletionStatus, string(statuses)},
		{keyCurrentPhaseName, st.Phases[st.CurrentIndex].Name},
	}
	for _, pair := range pairs {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO timer_state (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			pair[0], pair[1],
		); err != nil {
			return fmt.Errorf("save state key %s: %w", pair[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state tx: %w", err)
	}
	return nil
}

// Load reads the persisted state. ErrNotFound means a fresh database;
// any decode failure is reported so the caller can fall back to a fresh
// machine.
func (r *StateRepository) Load(ctx context.Context) (*PersistedState, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM timer_state`)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state rows: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}

	st := &PersistedState{CurrentPhaseName: values[keyCurrentPhaseName]}

	if st.CurrentIndex, err = strconv.Atoi(values[keyCurrentPhaseIndex]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", keyCurrentPhaseIndex, err)
	}
	if st.CompletedCycles, err = strconv.Atoi(values[keyCompletedCycles]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", keyCompletedCycles, err)
	}
	if st.HasSkippedInCurrentCycle, err = strconv.ParseBool(values[keyHasSkippedInCurrentCycle]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", keyHasSkippedInCurrentCycle, err)
	}
	if err := json.Unmarshal([]byte(values[keyPhaseCompletionStatus]), &st.Statuses); err != nil {
		return nil, fmt.Errorf("decode %s: %w", keyPhaseCompletionStatus, err)
	}

	return st, nil
}
