package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptops/agentpulse/internal/config"
	"github.com/promptops/agentpulse/internal/github"
	"github.com/promptops/agentpulse/internal/gitmetrics"
	"github.com/promptops/agentpulse/internal/output"
)

var (
	repoFlagOwner string
	repoFlagRepo  string
	repoFlagDays  int
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Analyze a GitHub repository's metrics, trends, and health",
	Long: `Fetch a repository's commits, pull requests, and issues, then compute
aggregate metrics, trend indicators, a weighted health score, and
recommendations.

A GitHub token is read from the config file or the GITHUB_TOKEN environment
variable. Unauthenticated requests work for public repositories but hit the
rate limit quickly.

Examples:
  agentpulse repo --owner golang --repo go
  agentpulse repo --owner golang --repo go --days 90
  agentpulse repo --owner golang --repo go --json`,
	RunE: runRepo,
}

func init() {
	repoCmd.Flags().StringVar(&repoFlagOwner, "owner", "", "Repository owner (required)")
	repoCmd.Flags().StringVar(&repoFlagRepo, "repo", "", "Repository name (required)")
	repoCmd.Flags().IntVar(&repoFlagDays, "days", 0, "Analysis window in days (default from config)")
	_ = repoCmd.MarkFlagRequired("owner")
	_ = repoCmd.MarkFlagRequired("repo")
	rootCmd.AddCommand(repoCmd)
}

func runRepo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := newLogger()

	ghCfg := cfg.GitHub
	ghCfg.Owner = repoFlagOwner
	ghCfg.Repo = repoFlagRepo

	client, err := github.NewClient(ghCfg, log)
	if err != nil {
		return err
	}

	analysis := cfg.Analysis
	if repoFlagDays > 0 {
		analysis.TimeRangeDays = repoFlagDays
	}

	engine := gitmetrics.NewEngine(client, analysis, log)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	result, err := engine.Analyze(ctx)
	if err != nil {
		return err
	}

	if client.NearLimit() {
		rate := client.Rate()
		log.Warn().
			Int("remaining", rate.Remaining).
			Time("reset", rate.Reset).
			Msg("approaching GitHub rate limit")
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	renderAnalysis(result)
	return nil
}

func renderAnalysis(a *gitmetrics.ProjectAnalysis) {
	fmt.Println(output.Section(fmt.Sprintf("Repository: %s", a.Repository)))
	fmt.Println()

	label := func(l, v string) {
		fmt.Printf(" %s  %s\n", output.StyleMuted.Render(fmt.Sprintf("%-22s", l)), v)
	}
	label("Window", fmt.Sprintf("%s to %s",
		a.RangeStart.Format("2006-01-02"), a.RangeEnd.Format("2006-01-02")))
	label("Health score", output.Score(a.HealthScore))
	label("Digest", output.StyleMuted.Render(a.Digest[:16]))

	m := a.Metrics
	fmt.Println(output.Section("Metrics"))
	fmt.Println()
	label("Commits", fmt.Sprintf("%d (%.1f/day)", m.Commits.Total, m.Commits.AvgPerDay))
	label("Pull requests", fmt.Sprintf("%d open / %d merged / %d total",
		m.PullRequests.Open, m.PullRequests.Merged, m.PullRequests.Total))
	if m.PullRequests.Merged > 0 {
		label("Avg merge time", fmt.Sprintf("%.1fh", m.PullRequests.AvgMergeHours))
	}
	label("Issues", fmt.Sprintf("%d open / %d closed", m.Issues.Open, m.Issues.Closed))
	label("Contributors", fmt.Sprintf("%d (%d active last 30d)",
		m.Contributors.Total, m.Contributors.ActiveLast30))
	label("Lines", fmt.Sprintf("+%d / -%d", m.Code.Additions, m.Code.Deletions))

	t := a.Trends
	fmt.Println(output.Section("Trends"))
	fmt.Println()
	label("Activity", output.Trend(t.Activity))
	label("Velocity", output.Trend(t.Velocity))
	label("Issue resolution", output.Trend(t.IssueResolution))
	label("Engagement", output.Trend(t.Engagement))

	if len(t.Weekly) > 0 {
		fmt.Println(output.Section("Weekly Activity"))
		fmt.Println()
		tbl := output.NewTable("Week", "Commits", "Merged PRs", "Closed Issues")
		for _, w := range t.Weekly {
			tbl.AddRow(
				w.WeekStart.Format("2006-01-02"),
				fmt.Sprintf("%d", w.Commits),
				fmt.Sprintf("%d", w.MergedPRs),
				fmt.Sprintf("%d", w.ClosedIssues),
			)
		}
		tbl.Print()
	}

	fmt.Println(output.Section("Recommendations"))
	fmt.Println()
	for _, rec := range a.Recommendations {
		fmt.Printf(" • %s\n", rec)
	}
	fmt.Println()
}
