package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.Queue.MaxTasksPerRun != 10 {
		t.Errorf("MaxTasksPerRun = %d, want 10", cfg.Queue.MaxTasksPerRun)
	}
	if cfg.Queue.Ordering != "priority_then_alphabetical" {
		t.Errorf("Ordering = %q, want priority_then_alphabetical", cfg.Queue.Ordering)
	}
	if cfg.Agent.TimeoutSecs != 1800 {
		t.Errorf("Agent.TimeoutSecs = %d, want 1800", cfg.Agent.TimeoutSecs)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
[board]
root = "/test/plans"

[queue]
max_tasks_per_run = 5

[agent]
timeout_secs = 900
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Board.Root != "/test/plans" {
		t.Errorf("Board.Root = %q, want /test/plans", cfg.Board.Root)
	}
	if cfg.Queue.MaxTasksPerRun != 5 {
		t.Errorf("MaxTasksPerRun = %d, want 5", cfg.Queue.MaxTasksPerRun)
	}
	if cfg.Agent.TimeoutSecs != 900 {
		t.Errorf("Agent.TimeoutSecs = %d, want 900", cfg.Agent.TimeoutSecs)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWatchdogAndRecoveryDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Watchdog.MaxWarnings != 5 {
		t.Errorf("Watchdog.MaxWarnings = %d, want 5", cfg.Watchdog.MaxWarnings)
	}
	if cfg.Recovery.MaxRetriesPerTask != 2 {
		t.Errorf("Recovery.MaxRetriesPerTask = %d, want 2", cfg.Recovery.MaxRetriesPerTask)
	}
	if cfg.Misc.GlobalMaxConsecutive != 10 {
		t.Errorf("Misc.GlobalMaxConsecutive = %d, want 10", cfg.Misc.GlobalMaxConsecutive)
	}
}
