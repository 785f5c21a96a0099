package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"pomodoro/daemon/internal/model"
)

var (
	workStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	breakStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	clockStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	flowStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
)

// renderSnapshot draws one status view from a published snapshot. The
// snapshot may be stale; age beyond a minute is called out rather than
// hidden.
func renderSnapshot(snap model.Snapshot, now time.Time) string {
	var b strings.Builder

	b.WriteString(renderPhaseLine(snap))
	b.WriteString("\n")
	b.WriteString(renderClockLine(snap, now))
	b.WriteString("\n")
	b.WriteString(renderCycleLine(snap))

	if age := now.Sub(snap.LastUpdateTime); age > time.Minute {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("(snapshot is %s old)", age.Round(time.Second))))
	}
	b.WriteString("\n")
	return b.String()
}

// renderPlaceholder is what displays show when no snapshot exists yet.
func renderPlaceholder() string {
	return dimStyle.Render("--:--  no timer state published yet") + "\n"
}

func renderPhaseLine(snap model.Snapshot) string {
	style := breakStyle
	if snap.IsCurrentPhaseWorkPhase {
		style = workStyle
	}
	label := phaseTitle(snap.CurrentPhaseName)
	if snap.IsInFlowCountUp {
		return flowStyle.Render(label + " (flow)")
	}
	return style.Render(label)
}

func renderClockLine(snap model.Snapshot, now time.Time) string {
	switch snap.DisplayMode {
	case model.DisplayFlow:
		elapsed := snap.FlowElapsedTime
		if snap.FlowStartDate != nil {
			elapsed = int(now.Sub(*snap.FlowStartDate).Seconds())
			if elapsed < 0 {
				elapsed = 0
			}
		}
		return clockStyle.Render(formatClock(elapsed)) + dimStyle.Render(" elapsed")
	case model.DisplayCountdown:
		remaining := snap.RemainingTime
		if snap.PhaseEndDate != nil {
			remaining = int(snap.PhaseEndDate.Sub(now).Seconds())
			if remaining < 0 {
				remaining = 0
			}
		}
		return clockStyle.Render(formatClock(remaining)) + dimStyle.Render(" remaining")
	case model.DisplayPaused:
		return clockStyle.Render(formatClock(snap.RemainingTime)) + dimStyle.Render(" paused")
	default:
		return dimStyle.Render("idle")
	}
}

func renderCycleLine(snap model.Snapshot) string {
	marks := make([]string, 0, len(snap.PhaseCompletionStatus))
	for _, status := range snap.PhaseCompletionStatus {
		marks = append(marks, statusMark(status))
	}
	line := strings.Join(marks, " ")
	line += dimStyle.Render(fmt.Sprintf("  cycles: %d", snap.CompletedCycles))
	if snap.HasSkippedInCurrentCycle {
		line += dimStyle.Render(" (skipped)")
	}
	return line
}

func statusMark(status string) string {
	switch status {
	case model.StatusNormalCompleted:
		return "✓"
	case model.StatusSkipped:
		return "✗"
	case model.StatusCurrent:
		return "●"
	default:
		return "○"
	}
}

func phaseTitle(name string) string {
	switch name {
	case model.PhaseWork:
		return "Work"
	case model.PhaseShortBreak:
		return "Short break"
	case model.PhaseLongBreak:
		return "Long break"
	default:
		return name
	}
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
