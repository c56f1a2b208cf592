// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a chat message. The set is closed; session
// records containing any other value fail validation at load time.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ToolCallRecord preserves a tool invocation and its result on a persisted
// message, correlated by the agent's call id.
type ToolCallRecord struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input,omitempty"`
	Output  string          `json:"output,omitempty"`
	IsError bool            `json:"isError,omitempty"`
}

// ChatMessage is one turn in a session transcript. Timestamps are Unix
// milliseconds to match the on-disk record format.
type ChatMessage struct {
	ID          MessageID        `json:"id"`
	Role        Role             `json:"role"`
	Content     string           `json:"content"`
	Timestamp   int64            `json:"timestamp"`
	ToolCalls   []ToolCallRecord `json:"toolCalls,omitempty"`
	IsStreaming bool             `json:"isStreaming,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Session is a durable conversation transcript. ClaudeSessionID is the
// external agent's own resumable identifier; once set it is only ever
// overwritten by a newer run's id, never cleared.
type Session struct {
	ID              SessionID     `json:"id"`
	Name            string        `json:"name"`
	ClaudeSessionID string        `json:"claudeSessionId,omitempty"`
	Messages        []ChatMessage `json:"messages"`
	Context         []string      `json:"context"`
	CreatedAt       int64         `json:"createdAt"`
	UpdatedAt       int64         `json:"updatedAt"`
	NotePath        string        `json:"notePath,omitempty"`
}

// NowMillis returns the current time as Unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewChatMessage creates a message with a fresh id and current timestamp.
func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: NowMillis(),
	}
}
