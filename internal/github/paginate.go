package github

import (
	"context"
	"errors"
	"time"

	gh "github.com/google/go-github/v60/github"

	"github.com/promptops/agentpulse/internal/errs"
)

// maxPages is the hard ceiling on page calls per collection. Hitting it is
// not an error: the collected items are returned with a warning, which
// bounds memory and request volume against a misbehaving or enormous
// source.
const maxPages = 100

// RateState is the rate-limit state captured from the most recent response.
type RateState struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// collectPages calls fetch from page 1 upward, appending results until an
// empty page or the page ceiling. Transient failures (network, 5xx) retry
// immediately up to the client's attempt budget; 4xx client errors never
// retry. Rate-limit exhaustion surfaces as *errs.RateLimitError right away;
// the collector never sleeps on the caller's behalf.
func collectPages[T any](ctx context.Context, c *Client, fetch func(ctx context.Context, page int) ([]T, *gh.Response, error)) ([]T, error) {
	var all []T

	for page := 1; ; page++ {
		if page > maxPages {
			c.log.Warn().Int("pages", maxPages).
				Msg("page ceiling reached; returning partial collection")
			return all, nil
		}

		items, err := fetchPage(ctx, c, page, fetch)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return all, nil
		}
		all = append(all, items...)
	}
}

// fetchPage fetches one page with the retry policy applied.
func fetchPage[T any](ctx context.Context, c *Client, page int, fetch func(ctx context.Context, page int) ([]T, *gh.Response, error)) ([]T, error) {
	attempts := c.attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, resp, err := fetch(ctx, page)
		if resp != nil {
			c.setRate(resp.Rate)
		}
		if err == nil {
			return items, nil
		}

		if rle := asRateLimit(err, resp); rle != nil {
			return nil, rle
		}
		if !retryable(resp) {
			return nil, err
		}

		lastErr = err
		c.log.Debug().Int("page", page).Int("attempt", attempt).Err(err).
			Msg("transient fetch failure; retrying")
	}
	return nil, lastErr
}

// asRateLimit converts rate-limit exhaustion into the taxonomy error.
func asRateLimit(err error, resp *gh.Response) *errs.RateLimitError {
	var rl *gh.RateLimitError
	if errors.As(err, &rl) {
		return &errs.RateLimitError{
			Limit:     rl.Rate.Limit,
			Remaining: rl.Rate.Remaining,
			Reset:     rl.Rate.Reset.Time,
		}
	}
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		out := &errs.RateLimitError{}
		if abuse.RetryAfter != nil {
			out.Reset = time.Now().Add(*abuse.RetryAfter)
		}
		return out
	}
	if resp != nil && (resp.StatusCode == 403 || resp.StatusCode == 429) && resp.Rate.Remaining == 0 {
		return &errs.RateLimitError{
			Limit:     resp.Rate.Limit,
			Remaining: resp.Rate.Remaining,
			Reset:     resp.Rate.Reset.Time,
		}
	}
	return nil
}

// retryable reports whether the failure is transient: network-level errors
// and 5xx responses retry, 4xx client errors do not.
func retryable(resp *gh.Response) bool {
	if resp == nil {
		// No response at all means the request never completed.
		return true
	}
	if resp.StatusCode >= 500 {
		return true
	}
	if resp.StatusCode >= 400 {
		return false
	}
	return true
}
