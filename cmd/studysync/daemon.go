package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studentpro/studysync/internal/daemon"
	"github.com/studentpro/studysync/internal/logging"
	"github.com/studentpro/studysync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon (foreground)",
	Long: `Keep local and cloud state in sync continuously.

The daemon pulls on startup, watches the local document for writes from other
processes (the desktop app shares it), uploads changes after a quiet period
when automatic mode is on, and re-pulls on an interval.

Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp(cmd.Context(), true)
		if err != nil {
			fatalf("%v", err)
		}
		defer app.close()

		logger := logging.New("[daemon] ")
		if app.cfg.LogFile != "" {
			logger = logging.NewRotating(app.cfg.LogFile, "[daemon] ")
		}

		d, err := daemon.New(app.engine, app.cfg.StorePath(), &daemon.Config{
			PullInterval:     app.cfg.Daemon.PullInterval,
			DebounceInterval: app.cfg.Daemon.Debounce,
			Logger:           logger,
		})
		if err != nil {
			fatalf("failed to create daemon: %v", err)
		}

		fmt.Printf("%s Starting sync daemon...\n", ui.RenderAccent("🚀"))
		fmt.Printf("   Store: %s\n", app.cfg.StorePath())
		fmt.Printf("   Pull interval: %v\n", app.cfg.Daemon.PullInterval)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			fatalf("daemon stopped with error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
