package snapshot

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pomodoro/daemon/internal/model"
	"pomodoro/daemon/internal/sequence"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) RequestRefresh() { r.calls.Add(1) }

func testState() sequence.State {
	return sequence.New([]model.Phase{
		{Name: model.PhaseWork, DurationSeconds: 1500},
		{Name: model.PhaseShortBreak, DurationSeconds: 300},
		{Name: model.PhaseWork, DurationSeconds: 1500},
		{Name: model.PhaseLongBreak, DurationSeconds: 900},
	}).State()
}

func testInput(seconds int, run *model.TimerRun) Input {
	return Input{
		Seq:     testState(),
		Run:     run,
		Seconds: seconds,
		Now:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Version: 1,
	}
}

func runningCountdown(ref time.Time, total int) *model.TimerRun {
	return &model.TimerRun{Mode: model.RunCountdown, ReferenceInstant: ref, TotalSeconds: total, Running: true}
}

func TestBuildCountdownMode(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	snap := Build(testInput(1400, runningCountdown(now.Add(-100*time.Second), 1500)))

	assert.Equal(t, model.DisplayCountdown, snap.DisplayMode)
	assert.True(t, snap.TimerRunning)
	assert.Equal(t, 1400, snap.RemainingTime)
	assert.Equal(t, model.PhaseTypeWork, snap.CurrentPhaseType)
	assert.True(t, snap.IsCurrentPhaseWorkPhase)
	require.NotNil(t, snap.PhaseEndDate)
	assert.Equal(t, now.Add(1400*time.Second), *snap.PhaseEndDate)
	assert.Nil(t, snap.FlowStartDate)
}

func TestBuildFlowMode(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ref := now.Add(-200 * time.Second)
	run := &model.TimerRun{Mode: model.RunCountUp, ReferenceInstant: ref, Running: true}

	snap := Build(testInput(200, run))

	assert.Equal(t, model.DisplayFlow, snap.DisplayMode)
	assert.True(t, snap.IsInFlowCountUp)
	assert.Equal(t, 200, snap.FlowElapsedTime)
	assert.Equal(t, 0, snap.RemainingTime)
	require.NotNil(t, snap.FlowStartDate)
	assert.Equal(t, ref, *snap.FlowStartDate)
	assert.Nil(t, snap.PhaseEndDate)
}

func TestBuildPausedAndIdleModes(t *testing.T) {
	snap := Build(testInput(900, nil))
	assert.Equal(t, model.DisplayPaused, snap.DisplayMode)
	assert.False(t, snap.TimerRunning)
	assert.Nil(t, snap.PhaseEndDate)

	snap = Build(testInput(0, nil))
	assert.Equal(t, model.DisplayIdle, snap.DisplayMode)
}

func TestSnapshotRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	original := Build(testInput(1234, runningCountdown(now.Add(-266*time.Second), 1500)))

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded model.Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestPublishWritesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "snapshot.json")
	pub := NewPublisher(path, nil, 0)

	snap := Build(testInput(1500, nil))
	pub.Publish(snap)

	got, ok := Read(path)
	require.True(t, ok)
	assert.Equal(t, snap, got)

	last, ok := pub.Last()
	require.True(t, ok)
	assert.Equal(t, snap, last)
}

func TestRefreshThreshold(t *testing.T) {
	refresher := &countingRefresher{}
	pub := NewPublisher(filepath.Join(t.TempDir(), "snapshot.json"), refresher, 0)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := testInput(1500, runningCountdown(now, 1500))

	pub.Publish(Build(base))
	require.Equal(t, int32(1), refresher.calls.Load(), "first publish always refreshes")

	// 10s of countdown progress: below threshold, no refresh.
	in := base
	in.Seconds = 1490
	pub.Publish(Build(in))
	assert.Equal(t, int32(1), refresher.calls.Load())

	// 65s since the previous publish: refresh.
	in.Seconds = 1490 - 65
	pub.Publish(Build(in))
	assert.Equal(t, int32(2), refresher.calls.Load())
}

func TestStructuralChangesAlwaysRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mutations := []func(*Input){
		func(in *Input) { // running flag flips
			in.Run = nil
		},
		func(in *Input) { // phase transition
			m := sequence.New(in.Seq.Phases)
			m.Advance(false)
			in.Seq = m.State()
		},
		func(in *Input) { // skip recorded
			m := sequence.New(in.Seq.Phases)
			m.Advance(true)
			in.Seq = m.State()
		},
	}

	for _, mutate := range mutations {
		refresher := &countingRefresher{}
		pub := NewPublisher(filepath.Join(t.TempDir(), "snapshot.json"), refresher, 0)

		base := testInput(1500, runningCountdown(now, 1500))
		pub.Publish(Build(base))
		require.Equal(t, int32(1), refresher.calls.Load())

		in := base
		mutate(&in)
		pub.Publish(Build(in))
		assert.Equal(t, int32(2), refresher.calls.Load())
	}
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	// A directory where the file should be makes the rename fail.
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.MkdirAll(path, 0o755))

	pub := NewPublisher(path, nil, 0)
	assert.NotPanics(t, func() { pub.Publish(Build(testInput(1500, nil))) })
}

func TestReadFallsBackOnBadData(t *testing.T) {
	dir := t.TempDir()

	_, ok := Read(filepath.Join(dir, "missing.json"))
	assert.False(t, ok)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))
	_, ok = Read(corrupt)
	assert.False(t, ok)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("{}"), 0o644))
	_, ok = Read(empty)
	assert.False(t, ok, "snapshot without phases is placeholder territory")
}
