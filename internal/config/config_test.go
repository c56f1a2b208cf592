package config

import (
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "config.json")
}

func TestLoadWritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Claude.Binary != "claude" {
		t.Errorf("expected default binary claude, got %q", cfg.Claude.Binary)
	}
	if cfg.Claude.TimeoutSeconds != 300 {
		t.Errorf("expected default timeout 300, got %d", cfg.Claude.TimeoutSeconds)
	}
	if !cfg.AutoSave {
		t.Error("expected auto_save enabled by default")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected defaults written to disk: %v", err)
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := &Config{
		DataDir:  "/tmp/test-data",
		LogLevel: "debug",
		AutoSave: false,
	}
	original.Claude.Binary = "/opt/bin/claude"
	original.Claude.AllowedTools = []string{"Read", "Bash"}
	original.Claude.MaxTurns = 12
	original.Claude.TimeoutSeconds = 60
	original.Context.MaxTokens = 100000
	original.Context.WarnRatio = 0.9

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Claude.Binary != "/opt/bin/claude" {
		t.Errorf("expected binary preserved, got %q", loaded.Claude.Binary)
	}
	if loaded.Claude.MaxTurns != 12 {
		t.Errorf("expected max_turns 12, got %d", loaded.Claude.MaxTurns)
	}
	if len(loaded.Claude.AllowedTools) != 2 {
		t.Errorf("expected 2 allowed tools, got %v", loaded.Claude.AllowedTools)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("CHATCLAW_CLAUDE_BINARY", "/custom/claude")
	t.Setenv("CHATCLAW_ALLOWED_TOOLS", "Read, Write ,Bash")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Claude.Binary != "/custom/claude" {
		t.Errorf("expected env override, got %q", cfg.Claude.Binary)
	}
	want := []string{"Read", "Write", "Bash"}
	if len(cfg.Claude.AllowedTools) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Claude.AllowedTools)
	}
	for i := range want {
		if cfg.Claude.AllowedTools[i] != want[i] {
			t.Errorf("tool %d: expected %q, got %q", i, want[i], cfg.Claude.AllowedTools[i])
		}
	}
}
