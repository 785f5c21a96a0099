package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pomodoro/daemon/internal/model"
	"pomodoro/daemon/internal/timer"
)

func newTriggerCommands() []*cobra.Command {
	simple := []struct {
		use   string
		short string
		path  string
	}{
		{"start", "Start or resume the current phase", "/api/timer/start"},
		{"pause", "Pause the running phase", "/api/timer/pause"},
		{"toggle", "Start if paused, pause if running", "/api/timer/toggle"},
		{"skip", "Skip the current phase (voids cycle credit)", "/api/timer/skip"},
		{"resume", "Send the external resume signal (idempotent)", "/api/timer/resume-signal"},
	}

	commands := make([]*cobra.Command, 0, len(simple)+4)
	for _, def := range simple {
		path := def.path
		commands = append(commands, &cobra.Command{
			Use:   def.use,
			Short: def.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTrigger(cmd, path, nil)
			},
		})
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Reset the current phase or the whole cycle",
	}
	reset.AddCommand(
		&cobra.Command{
			Use:   "phase",
			Short: "Restore the current phase to its full duration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTrigger(cmd, "/api/timer/phase/reset", nil)
			},
		},
		&cobra.Command{
			Use:   "cycle",
			Short: "Restart the cycle at the first phase",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTrigger(cmd, "/api/timer/cycle/reset", nil)
			},
		},
	)

	flow := &cobra.Command{
		Use:   "flow",
		Short: "Enter or exit open-ended flow mode on a work phase",
	}
	flow.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Switch the current work phase to count-up flow",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTrigger(cmd, "/api/timer/flow/start", nil)
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "End the flow session and advance the cycle",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTrigger(cmd, "/api/timer/flow/stop", nil)
			},
		},
	)

	phase := &cobra.Command{
		Use:   "phase <index>",
		Short: "Jump to the phase at index and start it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("phase index must be an integer")
			}
			return runTrigger(cmd, fmt.Sprintf("/api/timer/phase/%d/start", index), nil)
		},
	}

	cadence := &cobra.Command{
		Use:   "cadence <normal|power_saving>",
		Short: "Report the display cadence to the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(cmd, "/api/timer/cadence", map[string]string{"cadence": args[0]})
		},
	}

	return append(commands, reset, flow, phase, cadence)
}

func runTrigger(cmd *cobra.Command, path string, body interface{}) error {
	view, err := newClient().trigger(path, body)
	if err != nil {
		return err
	}
	printView(cmd, view)
	return nil
}

func printView(cmd *cobra.Command, view *timer.StateView) {
	label := phaseTitle(view.CurrentPhaseName)
	switch view.DisplayMode {
	case model.DisplayFlow:
		cmd.Printf("%s  %s elapsed (flow)\n", label, formatClock(view.FlowElapsedSeconds))
	case model.DisplayCountdown:
		cmd.Printf("%s  %s remaining\n", label, formatClock(view.RemainingSeconds))
	case model.DisplayPaused:
		cmd.Printf("%s  %s paused\n", label, formatClock(view.RemainingSeconds))
	default:
		cmd.Printf("%s  idle\n", label)
	}
}

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent phase sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := newClient().history(limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				cmd.Println("no sessions recorded")
				return nil
			}
			for _, s := range sessions {
				cmd.Printf(
					"%s  %-11s  %-9s  planned %s  actual %s\n",
					s.StartedAt.Local().Format(time.DateTime),
					phaseTitle(s.PhaseName),
					s.Outcome,
					formatClock(s.PlannedSeconds),
					formatClock(s.ActualSeconds),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list")
	return cmd
}
