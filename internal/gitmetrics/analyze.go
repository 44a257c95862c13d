package gitmetrics

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/promptops/agentpulse/internal/errs"
)

// Engine runs repository analyses against a Source. One Engine performs
// sequential, single-pass runs; concurrent runs need separate Engines.
type Engine struct {
	src Source
	cfg AnalysisConfig
	log zerolog.Logger

	// now is the clock; overridable in tests for reproducible runs.
	now func() time.Time
}

// NewEngine returns an Engine for src with the given configuration. Numeric
// config values outside their valid ranges are clamped here, not rejected.
func NewEngine(src Source, cfg AnalysisConfig, log zerolog.Logger) *Engine {
	return &Engine{
		src: src,
		cfg: cfg.normalize(),
		log: log,
		now: time.Now,
	}
}

// Analyze runs the full pipeline: fetch repository, commits, pull requests,
// and issues, then aggregate, classify trends, score, and fingerprint. Any
// fetch failure aborts the whole run with its stage attached; no partial
// result is produced.
func (e *Engine) Analyze(ctx context.Context) (*ProjectAnalysis, error) {
	until := e.now().UTC()
	since := until.AddDate(0, 0, -e.cfg.TimeRangeDays)

	repo, err := e.src.Repository(ctx)
	if err != nil {
		return nil, &errs.FetchError{Stage: "repository", Err: err}
	}

	commits, err := e.src.Commits(ctx, since, until)
	if err != nil {
		return nil, &errs.FetchError{Stage: "commits", Err: err}
	}
	commits = filterCommits(commits, e.cfg)

	prs, err := e.src.PullRequests(ctx)
	if err != nil {
		return nil, &errs.FetchError{Stage: "pulls", Err: err}
	}

	issues, err := e.src.Issues(ctx)
	if err != nil {
		return nil, &errs.FetchError{Stage: "issues", Err: err}
	}

	e.log.Debug().
		Str("repository", repo.ID).
		Int("commits", len(commits)).
		Int("pulls", len(prs)).
		Int("issues", len(issues)).
		Msg("aggregating repository data")

	metrics := computeMetrics(commits, prs, issues, e.cfg.TimeRangeDays, until)
	trends := computeTrends(commits, prs, issues, since, until)
	score := healthScore(metrics, e.cfg.Weights)

	return &ProjectAnalysis{
		Repository:      repo.ID,
		AnalyzedAt:      until,
		RangeStart:      since,
		RangeEnd:        until,
		Metrics:         metrics,
		Trends:          trends,
		HealthScore:     score,
		Recommendations: recommendations(score, metrics, trends),
		Digest:          integrityDigest(len(commits), len(prs), len(issues), repo.ID, until),
	}, nil
}
