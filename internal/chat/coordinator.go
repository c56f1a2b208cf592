// Package chat coordinates the session store, the agent runner, and the
// follow-up input queue into a single conversational surface for the UI.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/chatclaw/internal/agent"
	"github.com/user/chatclaw/internal/state"
	"github.com/user/chatclaw/internal/stream"
	"github.com/user/chatclaw/internal/tokens"
	"github.com/user/chatclaw/internal/types"
)

// RunDefaults is the per-run configuration applied to every request.
type RunDefaults struct {
	Model              string
	AllowedTools       []string
	MaxTurns           int
	SystemPrompt       string
	AppendSystemPrompt string
	AddDirs            []string
}

// Coordinator drives one conversation turn at a time through a single Runner.
// Input that arrives while a run is in flight is queued and resubmitted as a
// fresh run resuming the same external session, preserving continuity from
// the user's perspective.
type Coordinator struct {
	runner   *agent.Runner
	store    *state.Store
	counter  *tokens.Counter
	queue    agent.InputQueue
	defaults RunDefaults

	// mu guards active and orders queue access against it. While active,
	// exactly one SendMessage owns the turn loop; every other sender's text
	// goes through the queue, and the owner's final empty Take and the
	// active=false transition are one critical section, so an offered
	// message is either drained by the owner or finds the loop free.
	mu     sync.Mutex
	active bool
}

// New creates a Coordinator. counter may be nil to disable token estimates.
func New(runner *agent.Runner, store *state.Store, counter *tokens.Counter, defaults RunDefaults) *Coordinator {
	return &Coordinator{
		runner:   runner,
		store:    store,
		counter:  counter,
		defaults: defaults,
	}
}

// IsRunning reports whether a run is currently in flight.
func (c *Coordinator) IsRunning() bool {
	return c.runner.IsRunning()
}

// Abort forcibly terminates the current run, if any.
func (c *Coordinator) Abort() {
	c.runner.Abort()
}

// Subscribe forwards live semantic events to the UI.
func (c *Coordinator) Subscribe(fn func(stream.Event)) func() {
	return c.runner.Subscribe(fn)
}

// SubscribePartial forwards the latest accumulated text to the UI.
func (c *Coordinator) SubscribePartial(fn func(string)) func() {
	return c.runner.SubscribePartial(fn)
}

// QueueInput holds a follow-up message while a turn loop is in flight. It is
// accepted only when one is active; otherwise the caller should start a run
// immediately instead.
func (c *Coordinator) QueueInput(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return false
	}
	c.queue.Offer(text)
	return true
}

// TakeQueuedInput atomically returns and clears the pending follow-up.
func (c *Coordinator) TakeQueuedInput() (string, bool) {
	return c.queue.Take()
}

// SendMessage runs one conversation turn against the given session, then
// drains any input queued during the run by relaunching with the session's
// external id. If a run is already in flight the message is queued instead.
func (c *Coordinator) SendMessage(ctx context.Context, id types.SessionID, text string) error {
	c.mu.Lock()
	if c.active {
		c.queue.Offer(text)
		c.mu.Unlock()
		slog.Debug("input queued while run in flight", "session_id", string(id))
		return nil
	}
	c.active = true
	c.mu.Unlock()

	for {
		err := c.runTurn(ctx, id, text)

		c.mu.Lock()
		if err != nil {
			c.active = false
			c.mu.Unlock()
			return err
		}
		next, ok := c.queue.Take()
		if !ok {
			c.active = false
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		text = next
	}
}

// runTurn persists the user message, executes one run, and persists the
// resulting assistant turn.
func (c *Coordinator) runTurn(ctx context.Context, id types.SessionID, text string) error {
	sess, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", state.ErrSessionNotFound, id)
	}

	if c.counter != nil {
		estimate := c.counter.EstimateSession(sess, text)
		if c.counter.NearLimit(estimate) {
			slog.Warn("session approaching context limit", "session_id", string(id), "estimated_tokens", estimate)
		} else {
			slog.Debug("run token estimate", "session_id", string(id), "estimated_tokens", estimate)
		}
	}

	if err := c.store.AppendMessage(id, types.NewChatMessage(types.RoleUser, text)); err != nil {
		return err
	}

	out, err := c.runner.Execute(ctx, agent.Request{
		Prompt:             text,
		ResumeSessionID:    sess.ClaudeSessionID,
		Model:              c.defaults.Model,
		AllowedTools:       c.defaults.AllowedTools,
		MaxTurns:           c.defaults.MaxTurns,
		SystemPrompt:       c.defaults.SystemPrompt,
		AppendSystemPrompt: c.defaults.AppendSystemPrompt,
		AddDirs:            c.defaults.AddDirs,
	})
	if err != nil {
		return fmt.Errorf("execute run: %w", err)
	}

	if err := c.store.SetClaudeSessionID(id, out.ClaudeSessionID); err != nil {
		return err
	}
	return c.store.AppendMessage(id, assistantMessage(out))
}

// assistantMessage folds a run outcome into a transcript message, carrying
// completed tool invocations and any failure detail.
func assistantMessage(out *agent.Outcome) types.ChatMessage {
	msg := types.NewChatMessage(types.RoleAssistant, out.FinalText)
	for _, ev := range out.Events {
		if ev.Kind == stream.EventToolResult && ev.Tool != nil {
			msg.ToolCalls = append(msg.ToolCalls, types.ToolCallRecord{
				ID:      ev.Tool.ID,
				Name:    ev.Tool.Name,
				Input:   ev.Tool.Input,
				Output:  ev.Tool.Output,
				IsError: ev.Tool.IsError,
			})
		}
	}
	if !out.Success {
		msg.Error = out.ErrorDetail
		if IsContextLimitError(out.ErrorDetail) {
			msg.Content = ContextLimitAdvice
		}
	}
	return msg
}
