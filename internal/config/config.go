// Package config loads and saves the orchestrator's TOML configuration,
// grounded on the teacher's own config loader: defaults first, then an
// optional file overlaid on top via go-toml/v2.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Board         BoardConfig         `toml:"board"`
	Queue         QueueConfig         `toml:"queue"`
	Agent         AgentConfig         `toml:"agent"`
	Review        ReviewConfig        `toml:"review"`
	Watchdog      WatchdogConfig      `toml:"watchdog"`
	Recovery      RecoveryConfig      `toml:"recovery"`
	Notifications NotificationsConfig `toml:"notifications"`
	Misc          MiscConfig          `toml:"misc"`
}

// BoardConfig locates the task board on disk.
type BoardConfig struct {
	Root           string `toml:"root"`
	DebounceMillis int    `toml:"debounce_millis"`
}

// QueueConfig governs scheduling order and batching.
type QueueConfig struct {
	Ordering       string `toml:"ordering"` // "alphabetical" | "priority_then_alphabetical"
	MaxTasksPerRun int    `toml:"max_tasks_per_run"`
	CronExpr       string `toml:"cron_expr"` // optional periodic trigger, robfig/cron/v3 syntax
}

// AgentConfig configures the external agent subprocess.
type AgentConfig struct {
	BinaryPath       string `toml:"binary_path"`
	Model            string `toml:"model"`
	FullAccess       bool   `toml:"full_access"`
	TimeoutSecs      int    `toml:"timeout_secs"`
	GracePeriodSecs  int    `toml:"grace_period_secs"`
	RequireTestsMade bool   `toml:"require_tests_created"`
	RequireTestsRun  bool   `toml:"require_tests_run"`
	RequireCommit    bool   `toml:"require_commit"`
}

// ReviewConfig configures the optional stronger-model review pass. Tasks
// and Epics are gated independently: a board that wants every task
// double-checked but doesn't care about an Epic-level rollup (or vice
// versa) can enable just one.
type ReviewConfig struct {
	ReviewTasks bool   `toml:"review_tasks"`
	ReviewEpics bool   `toml:"review_epics"`
	Model       string `toml:"model"`
}

// WatchdogConfig configures stuck-task detection.
type WatchdogConfig struct {
	IntervalSecs int `toml:"interval_secs"`
	MaxWarnings  int `toml:"max_warnings"`
}

// RecoveryConfig bounds auto-recovery retries.
type RecoveryConfig struct {
	MaxRetriesPerTask int `toml:"max_retries_per_task"`
	MaxRetriesPerEpic int `toml:"max_retries_per_epic"`
}

// NotificationsConfig configures outbound alerts.
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// MiscConfig holds settings that don't fit elsewhere.
type MiscConfig struct {
	RunStorePath           string `toml:"run_store_path"`
	MaxConsecutiveSameTask int    `toml:"max_consecutive_same_task"`
	GlobalMaxConsecutive   int    `toml:"global_max_consecutive"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Board: BoardConfig{
			Root:           "plans",
			DebounceMillis: 500,
		},
		Queue: QueueConfig{
			Ordering:       "priority_then_alphabetical",
			MaxTasksPerRun: 10,
		},
		Agent: AgentConfig{
			BinaryPath:      "agent",
			Model:           "",
			FullAccess:      false,
			TimeoutSecs:     1800,
			GracePeriodSecs: 15,
			RequireCommit:   true,
		},
		Review: ReviewConfig{
			ReviewTasks: false,
			ReviewEpics: false,
		},
		Watchdog: WatchdogConfig{
			IntervalSecs: 60,
			MaxWarnings:  5,
		},
		Recovery: RecoveryConfig{
			MaxRetriesPerTask: 2,
			MaxRetriesPerEpic: 3,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
		Misc: MiscConfig{
			RunStorePath:           filepath.Join(home, ".taskctl", "runs.json"),
			MaxConsecutiveSameTask: 3,
			GlobalMaxConsecutive:   10,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.Board.Root = ExpandPath(cfg.Board.Root)
	cfg.Misc.RunStorePath = ExpandPath(cfg.Misc.RunStorePath)

	return cfg, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskctl", "config.toml")
}

// LocalConfigName is the name of the local, project-level config file.
const LocalConfigName = ".taskctl.toml"

// FindLocalConfig searches for a local config file in the current directory
// and parent directories up to the filesystem root. Returns the path if
// found, empty string otherwise.
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, LocalConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// LoadWithLocalFallback loads config with the following precedence:
// 1. Explicit path (if provided)
// 2. Local config (.taskctl.toml in current or parent directories)
// 3. Global config (~/.config/taskctl/config.toml)
func LoadWithLocalFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	if localPath := FindLocalConfig(); localPath != "" {
		return Load(localPath)
	}

	return Load(DefaultConfigPath())
}

// Save writes the configuration to a TOML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
