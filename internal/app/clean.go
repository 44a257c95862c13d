package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promptops/agentpulse/internal/config"
	"github.com/promptops/agentpulse/internal/store"
)

var cleanFlagRetention int

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Purge ended sessions older than the retention window",
	Long: `Delete sessions whose end time falls outside the retention window,
along with their activities. Sessions that never ended are kept regardless
of age.

Examples:
  agentpulse clean                      # use retention_days from config
  agentpulse clean --retention-days 30  # override the window`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().IntVar(&cleanFlagRetention, "retention-days", 0, "Retention window in days (default from config)")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := newLogger()

	retention := cfg.RetentionDays
	if cleanFlagRetention > 0 {
		retention = cleanFlagRetention
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	removed, err := db.CleanOldData(retention)
	if err != nil {
		return err
	}

	log.Info().Int("sessions", removed).Int("retention_days", retention).Msg("clean complete")
	fmt.Printf("Removed %d sessions older than %d days.\n", removed, retention)
	return nil
}
