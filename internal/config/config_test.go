package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pomodoro/daemon/internal/model"
)

func writeCycle(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cycle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCycleValid(t *testing.T) {
	path := writeCycle(t, `
cycle:
  - name: work
    duration: 3000
  - name: long_break
    duration: 600
`)
	phases := LoadCycle(path)
	require.Len(t, phases, 2)
	assert.Equal(t, model.PhaseWork, phases[0].Name)
	assert.Equal(t, 3000, phases[0].DurationSeconds)
	assert.Equal(t, model.PhaseLongBreak, phases[1].Name)
}

func TestLoadCycleFallsBackToDefault(t *testing.T) {
	cases := map[string]string{
		"malformed yaml": "cycle: [unterminated",
		"unknown phase":  "cycle:\n  - name: nap\n    duration: 60\n",
		"empty cycle":    "cycle: []\n",
		"no cycle key":   "other: 1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			phases := LoadCycle(writeCycle(t, content))
			assert.Equal(t, model.DefaultCycle(), phases)
		})
	}
}

func TestLoadCycleMissingFile(t *testing.T) {
	phases := LoadCycle(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, model.DefaultCycle(), phases)
}

func TestLoadCycleKeepsNonPositiveDurations(t *testing.T) {
	// The timeline treats a zero budget as instantly expired; config must
	// not silently repair it.
	path := writeCycle(t, "cycle:\n  - name: work\n    duration: 0\n")
	phases := LoadCycle(path)
	require.Len(t, phases, 1)
	assert.Equal(t, 0, phases[0].DurationSeconds)
}
