package app

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/promptops/agentpulse/internal/analyzer"
	"github.com/promptops/agentpulse/internal/config"
	"github.com/promptops/agentpulse/internal/output"
	"github.com/promptops/agentpulse/internal/session"
	"github.com/promptops/agentpulse/internal/store"
)

var (
	sessionsFlagDays   int
	sessionsFlagTypes  []string
	sessionsFlagIngest bool
	sessionsFlagLimit  int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Ingest transcripts and report per-agent-type performance",
	Long: `Reconstruct sessions from transcript logs, persist them, and report
aggregate performance per agent type.

Examples:
  agentpulse sessions                      # last 30 days from the database
  agentpulse sessions --ingest             # re-scan the logs directory first
  agentpulse sessions --days 7             # narrow the window
  agentpulse sessions --type qa-engineer   # filter to one agent type
  agentpulse sessions --json               # machine-readable report`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsFlagDays, "days", 30, "Number of days to look back")
	sessionsCmd.Flags().StringSliceVar(&sessionsFlagTypes, "type", nil, "Filter to these agent types (repeatable)")
	sessionsCmd.Flags().BoolVar(&sessionsFlagIngest, "ingest", false, "Scan the logs directory for transcripts before reporting")
	sessionsCmd.Flags().IntVar(&sessionsFlagLimit, "limit", 15, "Maximum sessions to list")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := newLogger()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if sessionsFlagIngest {
		n, err := ingestDir(cfg.LogsDir, db, log)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", cfg.LogsDir, err)
		}
		log.Info().Int("sessions", n).Str("dir", cfg.LogsDir).Msg("ingest complete")
	}

	filter := store.Filter{
		From:       time.Now().AddDate(0, 0, -sessionsFlagDays),
		AgentTypes: sessionsFlagTypes,
	}
	sessions, err := db.GetSessions(filter)
	if err != nil {
		return err
	}

	report := analyzer.Analyze(sessions)

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Report   analyzer.Report   `json:"report"`
			Sessions []session.Session `json:"sessions"`
		}{report, sessions})
	}

	renderReport(report)
	renderSessionList(sessions)
	return nil
}

// ingestDir walks dir for .jsonl transcripts, reconstructs each one as a
// finished session, and persists it. Undecodable files are skipped.
func ingestDir(dir string, db *store.DB, log zerolog.Logger) (int, error) {
	dec := session.NewDecoder(log)
	count := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}

		events, decErr := dec.DecodeFile(path)
		if decErr != nil {
			log.Warn().Err(decErr).Str("path", path).Msg("skipping transcript")
			return nil
		}
		if len(events) == 0 {
			return nil
		}

		sess := session.Reconstruct(path, events, false)
		if saveErr := db.SaveSession(sess); saveErr != nil {
			return saveErr
		}
		count++
		return nil
	})
	return count, err
}

func renderReport(r analyzer.Report) {
	fmt.Println(output.Section("Performance"))
	fmt.Println()

	label := func(l, v string) {
		fmt.Printf(" %s  %s\n", output.StyleMuted.Render(fmt.Sprintf("%-22s", l)), output.StyleBold.Render(v))
	}
	label("Sessions", fmt.Sprintf("%d", r.TotalSessions))
	label("Tasks", fmt.Sprintf("%d", r.TotalTasks))
	label("Success rate", fmt.Sprintf("%.0f%%", r.SuccessRate*100))
	label("Avg session duration", formatDuration(int64(r.AvgSessionDurationSeconds)))
	label("Busiest agent type", agentLabel(r.BusiestAgentType))
	fmt.Printf(" %s  %s\n", output.StyleMuted.Render(fmt.Sprintf("%-22s", "Activity trend")), output.Trend(r.ActivityTrend))

	if len(r.ByType) == 0 {
		return
	}

	fmt.Println(output.Section("By Agent Type"))
	fmt.Println()

	types := make([]string, 0, len(r.ByType))
	for t := range r.ByType {
		types = append(types, t)
	}
	sort.Strings(types)

	tbl := output.NewTable("Type", "Tasks", "Success", "Avg Duration", "Efficiency", "Tokens In/Out")
	for _, t := range types {
		s := r.ByType[t]
		tbl.AddRow(
			agentLabel(t),
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.0f%%", s.SuccessRate*100),
			formatDuration(int64(s.AvgDurationSeconds)),
			fmt.Sprintf("%.0f", s.Efficiency),
			fmt.Sprintf("%d/%d", s.InputTokens, s.OutputTokens),
		)
	}
	tbl.Print()
}

func renderSessionList(sessions []session.Session) {
	if len(sessions) == 0 {
		fmt.Println()
		fmt.Println(" No sessions found matching filters.")
		return
	}

	fmt.Println(output.Section("Sessions"))
	fmt.Println()

	// Most recent first for display.
	rows := append([]session.Session(nil), sessions...)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].StartTime.After(rows[j].StartTime)
	})
	if sessionsFlagLimit > 0 && len(rows) > sessionsFlagLimit {
		rows = rows[:sessionsFlagLimit]
	}

	tbl := output.NewTable("Started", "Session", "Dir", "State", "Tasks", "Completed", "Duration")
	for _, s := range rows {
		state := string(session.StatusInProgress)
		dur := ""
		if s.Ended() {
			state = string(session.StatusCompleted)
			dur = formatDuration(s.DurationSeconds)
		}
		tbl.AddRow(
			s.StartTime.Format("Jan 02 15:04"),
			truncateID(s.ID),
			filepath.Base(s.WorkingDir),
			output.Status(state),
			fmt.Sprintf("%d", s.TotalTasks),
			fmt.Sprintf("%d", s.CompletedTasks),
			dur,
		)
	}
	tbl.Print()
}

// agentLabel prefers the display hint for known agent types and falls back
// to the raw identifier.
func agentLabel(agentType string) string {
	if info, ok := session.LookupAgentType(agentType); ok {
		return info.Label
	}
	return agentType
}

func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
