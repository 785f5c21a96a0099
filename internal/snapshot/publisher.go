// Package snapshot builds and publishes the cross-process projection of
// timer state. The snapshot file is replaced wholesale via rename so a
// concurrent reader can never observe a torn write.
package snapshot

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"pomodoro/daemon/internal/model"
	"pomodoro/daemon/internal/sequence"
)

// DefaultRefreshDeltaSeconds is the time drift that alone justifies asking
// displays to refresh. Refresh requests hit an external rate-limited
// budget, so steady countdown progress is only pushed once a minute; any
// structural change pushes immediately.
const DefaultRefreshDeltaSeconds = 60

// Refresher is the downstream "please repaint the displays" side effect.
type Refresher interface {
	RequestRefresh()
}

// Input is everything needed to project a snapshot.
type Input struct {
	Seq     sequence.State
	Run     *model.TimerRun // nil when no run is active
	Seconds int             // remaining (countdown/paused) or elapsed (flow)
	Now     time.Time
	Version int
}

// Build derives the published projection. The display mode is computed
// here, in one place: flow when a count-up run is live, countdown when a
// countdown run is live, paused when stopped mid-phase, else idle.
func Build(in Input) model.Snapshot {
	phase := in.Seq.Phases[in.Seq.CurrentIndex]
	running := in.Run != nil && in.Run.Running
	inFlow := running && in.Run.Mode == model.RunCountUp

	mode := model.DisplayIdle
	switch {
	case inFlow:
		mode = model.DisplayFlow
	case running:
		mode = model.DisplayCountdown
	case in.Seconds > 0:
		mode = model.DisplayPaused
	}

	snap := model.Snapshot{
		Version:                  in.Version,
		CurrentPhaseIndex:        in.Seq.CurrentIndex,
		TimerRunning:             running,
		CurrentPhaseName:         phase.Name,
		LastUpdateTime:           in.Now,
		TotalTime:                phase.DurationSeconds,
		Phases:                   in.Seq.Phases,
		CompletedCycles:          in.Seq.CompletedCycles,
		PhaseCompletionStatus:    in.Seq.Statuses,
		HasSkippedInCurrentCycle: in.Seq.HasSkippedInCurrentCycle,
		IsCurrentPhaseWorkPhase:  phase.IsWork(),
		DisplayMode:              mode,
		CurrentPhaseType:         model.PhaseTypeOf(phase.Name),
	}

	if inFlow {
		snap.IsInFlowCountUp = true
		snap.FlowElapsedTime = in.Seconds
		start := in.Run.ReferenceInstant
		snap.FlowStartDate = &start
	} else {
		snap.RemainingTime = in.Seconds
		if running {
			end := in.Now.Add(time.Duration(in.Seconds) * time.Second)
			snap.PhaseEndDate = &end
		}
	}

	return snap
}

// Publisher writes snapshots to the shared store and decides when the
// change is meaningful enough to spend a display refresh on.
type Publisher struct {
	path         string
	refresher    Refresher
	refreshDelta int

	mu   sync.Mutex
	last *model.Snapshot
}

// NewPublisher publishes to path. refresher may be nil; refreshDelta <= 0
// selects the default minute threshold.
func NewPublisher(path string, refresher Refresher, refreshDelta int) *Publisher {
	if refreshDelta <= 0 {
		refreshDelta = DefaultRefreshDeltaSeconds
	}
	return &Publisher{path: path, refresher: refresher, refreshDelta: refreshDelta}
}

// Publish writes snap wholesale and triggers a display refresh if it
// differs meaningfully from the last published snapshot. Write failures
// are logged and swallowed: the core keeps running in memory and the next
// successful publish heals the external view.
func (p *Publisher) Publish(snap model.Snapshot) {
	p.mu.Lock()
	meaningful := p.meaningfulChange(snap)
	copied := snap
	p.last = &copied
	p.mu.Unlock()

	if err := writeAtomic(p.path, snap); err != nil {
		log.Printf("snapshot: publish failed: %v", err)
	}

	if meaningful && p.refresher != nil {
		p.refresher.RequestRefresh()
	}
}

// Last returns the most recently published snapshot, if any.
func (p *Publisher) Last() (model.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return model.Snapshot{}, false
	}
	return *p.last, true
}

func (p *Publisher) meaningfulChange(snap model.Snapshot) bool {
	last := p.last
	if last == nil {
		return true
	}
	if snap.CurrentPhaseIndex != last.CurrentPhaseIndex ||
		snap.TimerRunning != last.TimerRunning ||
		snap.DisplayMode != last.DisplayMode ||
		snap.CompletedCycles != last.CompletedCycles ||
		snap.HasSkippedInCurrentCycle != last.HasSkippedInCurrentCycle {
		return true
	}
	if len(snap.PhaseCompletionStatus) != len(last.PhaseCompletionStatus) {
		return true
	}
	for i, s := range snap.PhaseCompletionStatus {
		if s != last.PhaseCompletionStatus[i] {
			return true
		}
	}
	if secondsDelta(snap, *last) >= p.refreshDelta {
		return true
	}
	return false
}

func secondsDelta(a, b model.Snapshot) int {
	av, bv := a.RemainingTime, b.RemainingTime
	if a.IsInFlowCountUp {
		av, bv = a.FlowElapsedTime, b.FlowElapsedTime
	}
	d := av - bv
	if d < 0 {
		d = -d
	}
	return d
}

// writeAtomic writes the snapshot next to its destination and renames it
// into place. rename(2) within a directory is atomic, so readers see
// either the old file or the new one, never a prefix.
func writeAtomic(path string, snap model.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
