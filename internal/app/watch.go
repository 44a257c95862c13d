package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptops/agentpulse/internal/config"
	"github.com/promptops/agentpulse/internal/output"
	"github.com/promptops/agentpulse/internal/store"
	"github.com/promptops/agentpulse/internal/track"
	"github.com/promptops/agentpulse/internal/watch"
)

var (
	watchFlagInterval string
	watchFlagQuiet    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a transcript directory and persist sessions live",
	Long: `Poll the logs directory for new or growing transcripts and persist a
session snapshot after every change. Sessions still open when the watch is
stopped have their unfinished activities marked failed before the final
flush.

Examples:
  agentpulse watch                 # run in foreground (ctrl-c to stop)
  agentpulse watch --interval 10s  # poll less often
  agentpulse watch --quiet         # suppress per-session output`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchFlagInterval, "interval", "", "Poll interval as duration string (default from config)")
	watchCmd.Flags().BoolVar(&watchFlagQuiet, "quiet", false, "Suppress per-session terminal output")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := newLogger()

	interval := cfg.WatchInterval
	if watchFlagInterval != "" {
		interval, err = time.ParseDuration(watchFlagInterval)
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", watchFlagInterval, err)
		}
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tracker := track.New(db, log)
	w := watch.New(cfg.LogsDir, interval, db, tracker, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if !watchFlagQuiet {
		fmt.Printf("agentpulse watching %s (every %s)\n", cfg.LogsDir, interval)
	}

	go func() {
		for ev := range w.Events() {
			if watchFlagQuiet {
				continue
			}
			state := output.StyleMuted.Render("ended")
			if ev.Live {
				state = output.StyleSuccess.Render("live")
			}
			fmt.Printf("[%s] %s %s  %d tasks  %s\n",
				time.Now().Format("15:04:05"),
				state,
				truncateID(ev.SessionID),
				ev.Tasks,
				output.StyleMuted.Render(ev.Source))
		}
	}()

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		if !watchFlagQuiet {
			fmt.Println("\nStopped.")
		}
		return nil
	}
	return err
}
