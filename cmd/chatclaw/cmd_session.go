package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/chatclaw/internal/state"
	"github.com/user/chatclaw/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionDeleteCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		list := store.List()
		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMESSAGES\tUPDATED")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				s.ID,
				s.Name,
				len(s.Messages),
				time.UnixMilli(s.UpdatedAt).Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session's transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		sess, ok := store.Get(types.SessionID(args[0]))
		if !ok {
			return fmt.Errorf("session not found: %s", args[0])
		}

		fmt.Fprintf(os.Stdout, "Session %s (%s)\n", sess.ID, sess.Name)
		if sess.ClaudeSessionID != "" {
			fmt.Fprintf(os.Stdout, "Claude session: %s\n", sess.ClaudeSessionID)
		}
		for _, m := range sess.Messages {
			ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
			fmt.Fprintf(os.Stdout, "\n[%s] %s:\n%s\n", ts, m.Role, m.Content)
			for _, tc := range m.ToolCalls {
				status := ""
				if tc.IsError {
					status = " (error)"
				}
				fmt.Fprintf(os.Stdout, "  tool %s%s\n", tc.Name, status)
			}
			if m.Error != "" {
				fmt.Fprintf(os.Stdout, "  error: %s\n", m.Error)
			}
		}
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		if err := store.Delete(types.SessionID(args[0])); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Session %s deleted.\n", args[0])
		return nil
	},
}

// resolveSession picks the session a command operates on: an explicit id if
// given, otherwise the active session, otherwise a fresh one. The chosen
// session becomes active so the next invocation continues it.
func resolveSession(store *state.Store, flagID, name string) (*types.Session, error) {
	if flagID != "" {
		sess, ok := store.Get(types.SessionID(flagID))
		if !ok {
			return nil, fmt.Errorf("session not found: %s", flagID)
		}
		if err := store.SetActive(sess.ID); err != nil {
			return nil, err
		}
		return sess, nil
	}
	if sess, ok := store.GetActive(); ok {
		return sess, nil
	}
	sess, err := store.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := store.SetActive(sess.ID); err != nil {
		return nil, err
	}
	return sess, nil
}

func openStore() (*state.Store, error) {
	cfg := loadConfig()
	store := state.NewStore(cfg.DataDir, cfg.AutoSave)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return store, nil
}
