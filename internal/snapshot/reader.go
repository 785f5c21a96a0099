package snapshot

import (
	"os"

	"github.com/goccy/go-json"

	"pomodoro/daemon/internal/model"
)

// Read loads the published snapshot from path. A missing, unreadable or
// corrupt file reports ok=false; readers fall back to a placeholder,
// they never error.
func Read(path string) (model.Snapshot, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Snapshot{}, false
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, false
	}
	if len(snap.Phases) == 0 || snap.CurrentPhaseIndex < 0 || snap.CurrentPhaseIndex >= len(snap.Phases) {
		return model.Snapshot{}, false
	}
	return snap, true
}
