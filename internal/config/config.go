package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/promptops/agentpulse/internal/github"
	"github.com/promptops/agentpulse/internal/gitmetrics"
)

// Config is the top-level agentpulse configuration.
type Config struct {
	LogsDir       string                    `mapstructure:"logs_dir"`
	DBPath        string                    `mapstructure:"db_path"`
	RetentionDays int                       `mapstructure:"retention_days"`
	WatchInterval time.Duration             `mapstructure:"watch_interval"`
	GitHub        github.Config             `mapstructure:"github"`
	Analysis      gitmetrics.AnalysisConfig `mapstructure:"analysis"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied. The GitHub token can be
// supplied via the GITHUB_TOKEN environment variable instead of the file.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	defaults := gitmetrics.DefaultConfig()

	// Set defaults.
	v.SetDefault("logs_dir", DefaultLogsDir)
	v.SetDefault("db_path", filepath.Join(DefaultConfigDir, DefaultDBName))
	v.SetDefault("retention_days", DefaultRetentionDays)
	v.SetDefault("watch_interval", DefaultWatchInterval)
	v.SetDefault("github.timeout", 30*time.Second)
	v.SetDefault("github.retry_attempts", 3)
	v.SetDefault("github.rate_limit_buffer", 10)
	v.SetDefault("analysis.time_range_days", defaults.TimeRangeDays)
	v.SetDefault("analysis.include_weekends", defaults.IncludeWeekends)
	v.SetDefault("analysis.exclude_merge_commits", defaults.ExcludeMergeCommits)
	v.SetDefault("analysis.min_commit_message_length", defaults.MinCommitMessageLength)
	v.SetDefault("analysis.weights.activity", defaults.Weights.Activity)
	v.SetDefault("analysis.weights.code_quality", defaults.Weights.CodeQuality)
	v.SetDefault("analysis.weights.collaboration", defaults.Weights.Collaboration)
	v.SetDefault("analysis.weights.issue_management", defaults.Weights.IssueManagement)

	v.SetEnvPrefix("AGENTPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("github.token", "GITHUB_TOKEN")

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		configDir := expandPath(DefaultConfigDir)
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Expand paths.
	cfg.LogsDir = expandPath(cfg.LogsDir)
	cfg.DBPath = expandPath(cfg.DBPath)

	return &cfg, nil
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
