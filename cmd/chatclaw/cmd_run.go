package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/chatclaw/internal/stream"
	"github.com/user/chatclaw/internal/types"
)

var runSessionID string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runSessionID, "session", "", "session id to continue (default: new session)")
}

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Run a single prompt and stream the agent's output",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		coord, store, err := buildCoordinator(cfg)
		if err != nil {
			return err
		}

		sess, err := resolveSession(store, runSessionID, "run")
		if err != nil {
			return err
		}
		sessionID := sess.ID

		cancel := coord.Subscribe(func(ev stream.Event) { printEvent(os.Stdout, ev) })
		defer cancel()

		prompt := strings.Join(args, " ")
		if err := coord.SendMessage(cmd.Context(), sessionID, prompt); err != nil {
			return err
		}

		sess, _ = store.Get(sessionID)
		if last := lastAssistant(sess); last != nil && last.Error != "" {
			return fmt.Errorf("run failed: %s", last.Error)
		}
		fmt.Fprintf(os.Stderr, "session: %s\n", sessionID)
		return nil
	},
}

func printEvent(w *os.File, ev stream.Event) {
	switch ev.Kind {
	case stream.EventText, stream.EventResult:
		fmt.Fprintln(w, ev.Text)
	case stream.EventThinking:
		fmt.Fprintf(w, "[thinking] %s\n", ev.Text)
	case stream.EventToolCall:
		fmt.Fprintf(w, "[tool] %s %s\n", ev.Tool.Name, ev.Tool.Input)
	case stream.EventToolResult:
		status := "ok"
		if ev.Tool.IsError {
			status = "error"
		}
		fmt.Fprintf(w, "[tool %s] %s\n", status, ev.Tool.Name)
	}
}

func lastAssistant(sess *types.Session) *types.ChatMessage {
	if sess == nil {
		return nil
	}
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == types.RoleAssistant {
			return &sess.Messages[i]
		}
	}
	return nil
}
