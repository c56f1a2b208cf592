package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/chatclaw/internal/agent"
	"github.com/user/chatclaw/internal/chat"
	"github.com/user/chatclaw/internal/config"
	"github.com/user/chatclaw/internal/state"
	"github.com/user/chatclaw/internal/tokens"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "chatclaw",
	Short: "Chat with the Claude CLI, with durable sessions",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(loadConfig())
	},
}

func init() {
	defaultConfig := filepath.Join(os.Getenv("HOME"), ".chatclaw", "config.json")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildCoordinator wires the store, runner, and token counter from config.
func buildCoordinator(cfg *config.Config) (*chat.Coordinator, *state.Store, error) {
	store := state.NewStore(cfg.DataDir, cfg.AutoSave)
	if err := store.Load(); err != nil {
		return nil, nil, fmt.Errorf("load session store: %w", err)
	}

	runner := agent.NewRunner(cfg.Claude.Binary, time.Duration(cfg.Claude.TimeoutSeconds)*time.Second)

	counter, err := tokens.NewCounter(cfg.Context.MaxTokens, cfg.Context.WarnRatio)
	if err != nil {
		slog.Warn("token estimates disabled", "error", err)
		counter = nil
	}

	coord := chat.New(runner, store, counter, chat.RunDefaults{
		Model:              cfg.Claude.Model,
		AllowedTools:       cfg.Claude.AllowedTools,
		MaxTurns:           cfg.Claude.MaxTurns,
		SystemPrompt:       cfg.Claude.SystemPrompt,
		AppendSystemPrompt: cfg.Claude.AppendSystemPrompt,
		AddDirs:            cfg.Claude.AddDirs,
	})
	return coord, store, nil
}
