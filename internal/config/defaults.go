// Package config provides configuration loading and defaults for agentpulse.
package config

import "time"

// DefaultLogsDir is the default directory of session transcripts.
const DefaultLogsDir = "~/.claude/projects"

// DefaultConfigDir is the default location for agentpulse configuration.
const DefaultConfigDir = "~/.config/agentpulse"

// DefaultDBName is the filename for the SQLite database.
const DefaultDBName = "agentpulse.db"

// DefaultRetentionDays is how long ended sessions are kept before clean
// removes them.
const DefaultRetentionDays = 90

// DefaultWatchInterval is how often the watch command rescans the logs
// directory.
const DefaultWatchInterval = 2 * time.Second
