package types

import (
	"encoding/json"
	"testing"
)

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		if !r.Valid() {
			t.Errorf("expected %q to be valid", r)
		}
	}
	for _, r := range []Role{"", "tool", "USER", "bot"} {
		if r.Valid() {
			t.Errorf("expected %q to be invalid", r)
		}
	}
}

func TestNewChatMessage(t *testing.T) {
	msg := NewChatMessage(RoleUser, "hello")
	if msg.ID == "" {
		t.Error("expected non-empty message ID")
	}
	if msg.Role != RoleUser {
		t.Errorf("expected role user, got %s", msg.Role)
	}
	if msg.Timestamp <= 0 {
		t.Errorf("expected positive timestamp, got %d", msg.Timestamp)
	}
}

func TestSessionJSONShape(t *testing.T) {
	sess := Session{
		ID:              "s1",
		Name:            "Chat",
		ClaudeSessionID: "ext-1",
		Messages:        []ChatMessage{NewChatMessage(RoleUser, "hi")},
		Context:         []string{},
		CreatedAt:       1700000000000,
		UpdatedAt:       1700000000001,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "name", "claudeSessionId", "messages", "context", "createdAt", "updatedAt"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in serialized session", key)
		}
	}
}
