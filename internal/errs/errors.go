// Package errs defines the structured error types shared across agentpulse.
package errs

import (
	"fmt"
	"time"
)

// MaxUserMessage caps the length of error text surfaced through the CLI.
const MaxUserMessage = 500

// NotFoundError reports an update against an unknown session or activity id.
type NotFoundError struct {
	Kind string // "session" or "activity"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// StorageError reports a persistence-medium failure. The operation that hit
// it is aborted; there is no partial-write recovery.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// FetchError reports a repository data-source failure after retries were
// exhausted. Stage identifies which fetch failed (repository, commits,
// pulls, issues).
type FetchError struct {
	Stage string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RateLimitError reports rate-limit exhaustion. It is never retried
// internally; retrying before Reset cannot succeed.
type RateLimitError struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exhausted (%d/%d), resets at %s",
		e.Remaining, e.Limit, e.Reset.UTC().Format(time.RFC3339))
}

// ConfigError reports a required configuration value that is missing or
// unusable. Out-of-range numeric values are clamped, not reported.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Truncate caps a message at max characters for CLI display, appending an
// ellipsis when it was cut. max <= 0 uses MaxUserMessage.
func Truncate(msg string, max int) string {
	if max <= 0 {
		max = MaxUserMessage
	}
	if len(msg) <= max {
		return msg
	}
	return msg[:max] + "..."
}
