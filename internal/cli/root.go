// Package cli implements pomoctl, the terminal client for the timer
// daemon. Triggers go over the HTTP API; status rendering prefers the
// published snapshot file so it works even while the daemon is down.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	serverURL    string
	tokenPath    string
	snapshotPath string
)

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pomoctl-token"
	}
	return filepath.Join(home, ".config", "pomoctl", "token")
}

// NewRootCommand assembles the pomoctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pomoctl",
		Short:         "Control and observe the pomodoro daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&serverURL, "server", envOr("POMODORO_SERVER", "http://localhost:7313"), "daemon base URL")
	root.PersistentFlags().StringVar(&tokenPath, "token-file", defaultTokenPath(), "file holding the auth token")
	root.PersistentFlags().StringVar(&snapshotPath, "snapshot", envOr("SNAPSHOT_PATH", "./data/snapshot.json"), "published snapshot file")

	root.AddCommand(
		newLoginCommand(),
		newStatusCommand(),
		newWatchCommand(),
		newHistoryCommand(),
	)
	root.AddCommand(newTriggerCommands()...)
	return root
}

// Execute runs pomoctl and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		os.Stderr.WriteString("pomoctl: " + err.Error() + "\n")
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
