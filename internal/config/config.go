package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	AutoSave bool   `json:"auto_save"`
	Claude   struct {
		Binary             string   `json:"binary"`
		Model              string   `json:"model"`
		AllowedTools       []string `json:"allowed_tools"`
		MaxTurns           int      `json:"max_turns"`
		TimeoutSeconds     int      `json:"timeout_seconds"`
		SystemPrompt       string   `json:"system_prompt"`
		AppendSystemPrompt string   `json:"append_system_prompt"`
		AddDirs            []string `json:"add_dirs"`
	} `json:"claude"`
	Context struct {
		MaxTokens int     `json:"max_tokens"`
		WarnRatio float64 `json:"warn_ratio"`
	} `json:"context"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".chatclaw"),
		LogLevel: "info",
		AutoSave: true,
	}
	cfg.Claude.Binary = "claude"
	cfg.Claude.AllowedTools = []string{"Read", "Grep", "Glob"}
	cfg.Claude.MaxTurns = 25
	cfg.Claude.TimeoutSeconds = 300
	cfg.Context.MaxTokens = 200000
	cfg.Context.WarnRatio = 0.8

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if binary := os.Getenv("CHATCLAW_CLAUDE_BINARY"); binary != "" {
		cfg.Claude.Binary = binary
	}
	if dataDir := os.Getenv("CHATCLAW_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if tools := os.Getenv("CHATCLAW_ALLOWED_TOOLS"); tools != "" {
		cfg.Claude.AllowedTools = splitList(tools)
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

// Save writes the config to the given path atomically.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
