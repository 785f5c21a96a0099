package repository

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a row or key does not exist.
var ErrNotFound = errors.New("not found")

// parseTime accepts the two timestamp encodings that may appear in the
// database (older rows were written without sub-second precision).
func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
