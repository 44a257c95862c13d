package github

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	gh "github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptops/agentpulse/internal/errs"
)

func testClient(attempts int) *Client {
	return &Client{attempts: attempts, log: zerolog.Nop()}
}

func ghResponse(status int, remaining int) *gh.Response {
	return &gh.Response{
		Response: &http.Response{StatusCode: status},
		Rate: gh.Rate{
			Limit:     5000,
			Remaining: remaining,
			Reset:     gh.Timestamp{Time: time.Date(2026, 2, 20, 11, 0, 0, 0, time.UTC)},
		},
	}
}

func TestCollectPagesStopsOnEmptyPage(t *testing.T) {
	c := testClient(1)

	calls := 0
	items, err := collectPages(context.Background(), c, func(ctx context.Context, page int) ([]int, *gh.Response, error) {
		calls++
		if page > 3 {
			return nil, ghResponse(200, 4000), nil
		}
		return []int{page}, ghResponse(200, 4000), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, items)
	assert.Equal(t, 4, calls)
}

func TestCollectPagesCeilingReturnsPartial(t *testing.T) {
	c := testClient(1)

	calls := 0
	items, err := collectPages(context.Background(), c, func(ctx context.Context, page int) ([]string, *gh.Response, error) {
		calls++
		return []string{"item"}, ghResponse(200, 4000), nil
	})
	require.NoError(t, err)
	assert.Equal(t, maxPages, calls, "exactly maxPages calls, then stop")
	assert.Len(t, items, maxPages)
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	c := testClient(3)

	calls := 0
	_, err := fetchPage(context.Background(), c, 1, func(ctx context.Context, page int) ([]int, *gh.Response, error) {
		calls++
		return nil, ghResponse(500, 4000), errors.New("upstream blew up")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "5xx retries up to the attempt budget")
}

func TestFetchPageRecoversMidRetry(t *testing.T) {
	c := testClient(3)

	calls := 0
	items, err := fetchPage(context.Background(), c, 1, func(ctx context.Context, page int) ([]int, *gh.Response, error) {
		calls++
		if calls < 3 {
			return nil, ghResponse(503, 4000), errors.New("flaky")
		}
		return []int{42}, ghResponse(200, 4000), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{42}, items)
	assert.Equal(t, 3, calls)
}

func TestFetchPageNeverRetriesClientErrors(t *testing.T) {
	c := testClient(3)

	calls := 0
	_, err := fetchPage(context.Background(), c, 1, func(ctx context.Context, page int) ([]int, *gh.Response, error) {
		calls++
		return nil, ghResponse(404, 4000), errors.New("not found")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx must not retry")
}

func TestFetchPageRetriesMissingResponse(t *testing.T) {
	c := testClient(2)

	calls := 0
	_, err := fetchPage(context.Background(), c, 1, func(ctx context.Context, page int) ([]int, *gh.Response, error) {
		calls++
		return nil, nil, errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls, "network-level failures retry")
}

func TestFetchPageRateLimitSurfacesImmediately(t *testing.T) {
	c := testClient(3)

	calls := 0
	_, err := fetchPage(context.Background(), c, 1, func(ctx context.Context, page int) ([]int, *gh.Response, error) {
		calls++
		return nil, ghResponse(403, 0), errors.New("rate limited")
	})
	assert.Equal(t, 1, calls, "exhausted budget must not retry")

	var rle *errs.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 5000, rle.Limit)
	assert.Equal(t, 0, rle.Remaining)
}

func TestFetchPageHonorsContextCancellation(t *testing.T) {
	c := testClient(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := fetchPage(ctx, c, 1, func(ctx context.Context, page int) ([]int, *gh.Response, error) {
		calls++
		return []int{1}, nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRateStateCapture(t *testing.T) {
	c := testClient(1)

	_, err := fetchPage(context.Background(), c, 1, func(ctx context.Context, page int) ([]int, *gh.Response, error) {
		return []int{1}, ghResponse(200, 7), nil
	})
	require.NoError(t, err)

	rate := c.Rate()
	assert.Equal(t, 5000, rate.Limit)
	assert.Equal(t, 7, rate.Remaining)
	assert.False(t, rate.Reset.IsZero())
}

func TestNearLimit(t *testing.T) {
	c := testClient(1)
	c.rateLimitBuffer = 10

	assert.False(t, c.NearLimit(), "no rate state yet")

	c.setRate(gh.Rate{Limit: 5000, Remaining: 50})
	assert.False(t, c.NearLimit())

	c.setRate(gh.Rate{Limit: 5000, Remaining: 10})
	assert.True(t, c.NearLimit())
}

func TestAsRateLimitTypedErrors(t *testing.T) {
	typed := &gh.RateLimitError{Rate: gh.Rate{Limit: 60, Remaining: 0}}
	rle := asRateLimit(typed, nil)
	require.NotNil(t, rle)
	assert.Equal(t, 60, rle.Limit)

	retryAfter := 30 * time.Second
	abuse := &gh.AbuseRateLimitError{RetryAfter: &retryAfter}
	rle = asRateLimit(abuse, nil)
	require.NotNil(t, rle)
	assert.False(t, rle.Reset.IsZero())

	assert.Nil(t, asRateLimit(errors.New("plain"), ghResponse(500, 100)))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Repo: "widgets"}, zerolog.Nop())
	var ce *errs.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "owner", ce.Field)

	_, err = NewClient(Config{Owner: "acme"}, zerolog.Nop())
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "repo", ce.Field)

	c, err := NewClient(Config{Owner: "acme", Repo: "widgets"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, c.attempts)
	assert.Equal(t, defaultStatsCap, c.statsCap)
}
