package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"pomodoro/daemon/internal/snapshot"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current timer state from the published snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			printStatus(cmd)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command) {
	snap, ok := snapshot.Read(snapshotPath)
	if !ok {
		cmd.Print(renderPlaceholder())
		return
	}
	cmd.Print(renderSnapshot(snap, time.Now()))
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Continuously re-render the status as the snapshot changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			// Watch the directory: the publisher replaces the file via
			// rename, which would silently drop a watch on the file itself.
			dir := filepath.Dir(snapshotPath)
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			// A one-second repaint keeps the clock moving between publishes.
			repaint := time.NewTicker(time.Second)
			defer repaint.Stop()

			printStatus(cmd)
			for {
				select {
				case <-stop:
					return nil
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					return fmt.Errorf("watch: %w", err)
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != filepath.Clean(snapshotPath) {
						continue
					}
					if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
						continue
					}
					redraw(cmd)
				case <-repaint.C:
					redraw(cmd)
				}
			}
		},
	}
}

func redraw(cmd *cobra.Command) {
	// Clear screen and home the cursor before repainting.
	cmd.Print("\033[2J\033[H")
	printStatus(cmd)
}
