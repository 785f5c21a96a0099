// Package sequence implements the ordered phase cycle state machine: which
// phase is current, how phases complete or get skipped, and when a full
// cycle earns credit. It contains no timing logic.
package sequence

import (
	"fmt"

	"pomodoro/daemon/internal/model"
)

// State is an immutable view of the machine, safe to hand to persistence
// and snapshot building.
type State struct {
	Phases                   []model.Phase
	CurrentIndex             int
	Statuses                 []string
	CompletedCycles          int
	HasSkippedInCurrentCycle bool
}

// Machine is the phase cycle state machine. Not safe for concurrent use;
// the coordinator serializes all access.
type Machine struct {
	phases          []model.Phase
	current         int
	statuses        []string
	completedCycles int
	skippedInCycle  bool
}

// New builds a machine over the given cycle. An empty cycle falls back to
// the default 4-phase cycle rather than failing.
func New(phases []model.Phase) *Machine {
	if len(phases) == 0 {
		phases = model.DefaultCycle()
	}
	m := &Machine{
		phases:   append([]model.Phase(nil), phases...),
		statuses: make([]string, len(phases)),
	}
	m.markFresh(0)
	return m
}

func (m *Machine) markFresh(current int) {
	for i := range m.statuses {
		m.statuses[i] = model.StatusNotStarted
	}
	m.current = current
	m.statuses[current] = model.StatusCurrent
}

// Advance completes the current phase and moves to the next one. A skipped
// phase voids cycle credit for the whole cycle: completedCycles increments
// only when the index wraps to zero with no skip recorded anywhere in the
// finished cycle.
func (m *Machine) Advance(skipped bool) {
	if skipped {
		m.statuses[m.current] = model.StatusSkipped
		m.skippedInCycle = true
	} else {
		m.statuses[m.current] = model.StatusNormalCompleted
	}

	next := (m.current + 1) % len(m.phases)
	if next == 0 {
		if !m.skippedInCycle {
			m.completedCycles++
		}
		m.skippedInCycle = false
		m.markFresh(0)
		return
	}

	m.current = next
	m.statuses[next] = model.StatusCurrent
}

// Reset forces the cycle back to phase zero with fresh statuses. The
// historical completed-cycle count deliberately survives resets.
func (m *Machine) Reset() {
	m.skippedInCycle = false
	m.markFresh(0)
}

// Jump moves the current phase to index without granting or voiding cycle
// credit. Completion statuses of the other phases are preserved; the
// previous current phase drops back to not-started since it neither
// completed nor was skipped.
func (m *Machine) Jump(index int) error {
	if index < 0 || index >= len(m.phases) {
		return fmt.Errorf("phase index %d out of range [0,%d)", index, len(m.phases))
	}
	if m.statuses[m.current] == model.StatusCurrent {
		m.statuses[m.current] = model.StatusNotStarted
	}
	m.current = index
	m.statuses[index] = model.StatusCurrent
	return nil
}

// SetAdjustedDuration records the actual elapsed seconds for the current
// phase when it ends other than by natural countdown expiry.
func (m *Machine) SetAdjustedDuration(seconds int) {
	m.phases[m.current].AdjustedSeconds = &seconds
}

// IsWorkPhase reports whether the current phase is a work segment.
func (m *Machine) IsWorkPhase() bool {
	return m.phases[m.current].IsWork()
}

// CurrentIndex returns the index of the current phase.
func (m *Machine) CurrentIndex() int {
	return m.current
}

// CurrentPhase returns the current phase definition.
func (m *Machine) CurrentPhase() model.Phase {
	return m.phases[m.current]
}

// State returns a copied view of the machine.
func (m *Machine) State() State {
	return State{
		Phases:                   append([]model.Phase(nil), m.phases...),
		CurrentIndex:             m.current,
		Statuses:                 append([]string(nil), m.statuses...),
		CompletedCycles:          m.completedCycles,
		HasSkippedInCurrentCycle: m.skippedInCycle,
	}
}

// Restore rehydrates the machine from persisted values. The persisted shape
// must agree with the configured cycle; on any mismatch the caller should
// discard it and start fresh.
func (m *Machine) Restore(index int, statuses []string, completedCycles int, skippedInCycle bool) error {
	if index < 0 || index >= len(m.phases) {
		return fmt.Errorf("persisted index %d out of range", index)
	}
	if len(statuses) != len(m.phases) {
		return fmt.Errorf("persisted statuses length %d, cycle has %d phases", len(statuses), len(m.phases))
	}
	if completedCycles < 0 {
		return fmt.Errorf("persisted cycle count %d is negative", completedCycles)
	}
	currents := 0
	for i, s := range statuses {
		switch s {
		case model.StatusNotStarted, model.StatusNormalCompleted, model.StatusSkipped:
		case model.StatusCurrent:
			currents++
			if i != index {
				return fmt.Errorf("current status at %d but persisted index is %d", i, index)
			}
		default:
			return fmt.Errorf("unknown phase status %q", s)
		}
	}
	if currents != 1 {
		return fmt.Errorf("expected exactly one current phase, found %d", currents)
	}

	m.current = index
	copy(m.statuses, statuses)
	m.completedCycles = completedCycles
	m.skippedInCycle = skippedInCycle
	return nil
}
