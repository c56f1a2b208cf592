package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/chatclaw/internal/agent"
	"github.com/user/chatclaw/internal/state"
	"github.com/user/chatclaw/internal/types"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mock-agent.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	store := state.NewStore(t.TempDir(), true)
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestSendMessagePersistsTurn(t *testing.T) {
	script := writeScript(t, `
echo '{"type":"system","subtype":"init","session_id":"ext-1"}'
echo '{"type":"result","subtype":"success","result":"the answer"}'`)
	store := newTestStore(t)
	coord := New(agent.NewRunner(script, 10*time.Second), store, nil, RunDefaults{})

	sess, err := store.Create("chat")
	if err != nil {
		t.Fatal(err)
	}
	if err := coord.SendMessage(context.Background(), sess.ID, "question"); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Get(sess.ID)
	if len(got.Messages) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != types.RoleUser || got.Messages[0].Content != "question" {
		t.Errorf("unexpected user message: %+v", got.Messages[0])
	}
	if got.Messages[1].Role != types.RoleAssistant || got.Messages[1].Content != "the answer" {
		t.Errorf("unexpected assistant message: %+v", got.Messages[1])
	}
	if got.ClaudeSessionID != "ext-1" {
		t.Errorf("expected external session id adopted, got %q", got.ClaudeSessionID)
	}
}

func TestSendMessageRecordsToolCalls(t *testing.T) {
	script := writeScript(t, `
echo '{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"Read","input":{"file_path":"a.md"}}]}}'
echo '{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t1","content":"contents"}]}}'
echo '{"type":"result","subtype":"success","result":"read it"}'`)
	store := newTestStore(t)
	coord := New(agent.NewRunner(script, 10*time.Second), store, nil, RunDefaults{})

	sess, _ := store.Create("chat")
	if err := coord.SendMessage(context.Background(), sess.ID, "read a.md"); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Get(sess.ID)
	assistant := got.Messages[1]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call recorded, got %d", len(assistant.ToolCalls))
	}
	tc := assistant.ToolCalls[0]
	if tc.Name != "Read" || tc.Output != "contents" || tc.IsError {
		t.Errorf("unexpected tool call record: %+v", tc)
	}
}

func TestSendMessageFailureInline(t *testing.T) {
	script := writeScript(t, `
echo 'agent exploded' >&2
exit 1`)
	store := newTestStore(t)
	coord := New(agent.NewRunner(script, 10*time.Second), store, nil, RunDefaults{})

	sess, _ := store.Create("chat")
	if err := coord.SendMessage(context.Background(), sess.ID, "question"); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Get(sess.ID)
	assistant := got.Messages[1]
	if assistant.Error == "" || !strings.Contains(assistant.Error, "agent exploded") {
		t.Errorf("expected inline error detail, got %q", assistant.Error)
	}
}

func TestSendMessageContextLimitAdvice(t *testing.T) {
	script := writeScript(t, `
echo 'Error: prompt is too long: 210000 tokens > 200000 maximum' >&2
exit 1`)
	store := newTestStore(t)
	coord := New(agent.NewRunner(script, 10*time.Second), store, nil, RunDefaults{})

	sess, _ := store.Create("chat")
	if err := coord.SendMessage(context.Background(), sess.ID, "question"); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Get(sess.ID)
	assistant := got.Messages[1]
	if assistant.Content != ContextLimitAdvice {
		t.Errorf("expected context-limit advice, got %q", assistant.Content)
	}
	if assistant.Error == "" {
		t.Error("expected diagnostic preserved on the message")
	}
}

// A message sent while a run is in flight is queued, and once the run
// concludes it is resubmitted as a new run resuming the external session id.
func TestSendMessageQueuesFollowUpAndResumes(t *testing.T) {
	script := writeScript(t, `
echo '{"type":"system","subtype":"init","session_id":"ext-9"}'
sleep 1
printf '{"type":"result","subtype":"success","result":"args: %s"}\n' "$*"`)
	store := newTestStore(t)
	coord := New(agent.NewRunner(script, 10*time.Second), store, nil, RunDefaults{})

	sess, _ := store.Create("chat")
	done := make(chan error, 1)
	go func() {
		done <- coord.SendMessage(context.Background(), sess.ID, "first")
	}()

	waitRunning(t, coord)
	if !coord.QueueInput("second") {
		t.Fatal("expected follow-up accepted while running")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("send did not complete")
	}

	got, _ := store.Get(sess.ID)
	if len(got.Messages) != 4 {
		t.Fatalf("expected two full turns, got %d messages", len(got.Messages))
	}
	second := got.Messages[3]
	if !strings.Contains(second.Content, "--resume ext-9") {
		t.Errorf("expected queued follow-up to resume ext-9, got %q", second.Content)
	}
	if !strings.Contains(second.Content, "second") {
		t.Errorf("expected queued prompt forwarded, got %q", second.Content)
	}
}

// However concurrent sends interleave, once every call has returned the queue
// must be empty: offered text is either drained by the loop owner or starts a
// fresh turn loop, never stranded until the next send.
func TestConcurrentSendersLeaveNothingQueued(t *testing.T) {
	script := writeScript(t, `echo '{"type":"result","subtype":"success","result":"ok"}'`)
	store := newTestStore(t)
	coord := New(agent.NewRunner(script, 10*time.Second), store, nil, RunDefaults{})

	sess, _ := store.Create("chat")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := coord.SendMessage(context.Background(), sess.ID, fmt.Sprintf("m%d", n)); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if _, ok := coord.TakeQueuedInput(); ok {
		t.Error("expected queue empty once all sends returned")
	}
	got, _ := store.Get(sess.ID)
	if len(got.Messages) < 2 || len(got.Messages)%2 != 0 {
		t.Errorf("expected whole user+assistant turns, got %d messages", len(got.Messages))
	}
}

func TestQueueInputRejectedWhenIdle(t *testing.T) {
	script := writeScript(t, `echo '{"type":"result","subtype":"success","result":"x"}'`)
	coord := New(agent.NewRunner(script, 10*time.Second), newTestStore(t), nil, RunDefaults{})

	if coord.QueueInput("text") {
		t.Error("expected queue rejected while idle")
	}
	if _, ok := coord.TakeQueuedInput(); ok {
		t.Error("expected nothing queued")
	}
}

func TestIsContextLimitError(t *testing.T) {
	cases := []struct {
		detail string
		want   bool
	}{
		{"Error: prompt is too long", true},
		{"context_length_exceeded", true},
		{"Conversation is too long, please start a new one", true},
		{"exit status 1", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsContextLimitError(tc.detail); got != tc.want {
			t.Errorf("IsContextLimitError(%q) = %v, want %v", tc.detail, got, tc.want)
		}
	}
}

func waitRunning(t *testing.T, c *Coordinator) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !c.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("run never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
