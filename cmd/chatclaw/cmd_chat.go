package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/chatclaw/internal/stream"
)

var chatSessionID string

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "session id to continue (default: new session)")
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		coord, store, err := buildCoordinator(cfg)
		if err != nil {
			return err
		}

		sess, err := resolveSession(store, chatSessionID, "chat")
		if err != nil {
			return err
		}
		sessionID := sess.ID
		if len(sess.Messages) > 0 {
			fmt.Fprintf(os.Stdout, "Continuing session %s (%d messages)\n", sess.ID, len(sess.Messages))
		} else {
			fmt.Fprintf(os.Stdout, "Started session %s\n", sess.ID)
		}
		fmt.Println("Type a message and press enter. /abort stops the current run, /quit exits.")

		cancel := coord.Subscribe(func(ev stream.Event) { printEvent(os.Stdout, ev) })
		defer cancel()

		// Turns run in the background so stdin stays responsive. Input
		// typed mid-run is queued and picked up when the run finishes.
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Fprint(os.Stdout, "> ")
			if !scanner.Scan() {
				coord.Abort()
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			switch line {
			case "/quit", "/exit":
				coord.Abort()
				return nil
			case "/abort":
				if coord.IsRunning() {
					coord.Abort()
					fmt.Println("Run aborted.")
				} else {
					fmt.Println("No run in progress.")
				}
				continue
			}

			if coord.IsRunning() {
				fmt.Println("(queued for when the current run finishes)")
			}
			go func(text string) {
				if err := coord.SendMessage(cmd.Context(), sessionID, text); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
			}(line)
		}
	},
}
