// Package stream normalizes the agent CLI's line-delimited stream-json output
// into a small closed set of semantic events. The wire format interleaves
// assistant narration, tool invocation, and tool completion inside generic
// assistant/user message envelopes; this package flattens that nesting so the
// rest of the system can switch on event kinds without protocol knowledge.
package stream

import (
	"encoding/json"
	"unicode"
)

// EventKind identifies the kind of semantic event.
type EventKind string

const (
	// EventInit is the session bootstrap signal (system record, init subtype).
	EventInit EventKind = "init"

	// EventText is assistant text output.
	EventText EventKind = "text"

	// EventThinking is an assistant thinking trace.
	EventThinking EventKind = "thinking"

	// EventToolCall indicates the agent is invoking a tool.
	EventToolCall EventKind = "tool_call"

	// EventToolResult carries the output of a completed tool invocation.
	EventToolResult EventKind = "tool_result"

	// EventResult is the final result text at turn completion.
	EventResult EventKind = "result"
)

// Event is one normalized unit of agent output. Records with unrecognized
// discriminators produce a bare Event whose Kind is the discriminator itself.
type Event struct {
	Kind      EventKind `json:"kind"`
	Text      string    `json:"text,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Tool      *ToolCall `json:"tool,omitempty"`
}

// ToolCall describes a tool invocation or its result. On EventToolResult,
// Name and Input are recovered from the correlator entry registered by the
// matching EventToolCall; both are empty when no entry matched.
type ToolCall struct {
	ID      string          `json:"id"`
	Name    string          `json:"name,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Output  string          `json:"output,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
}

// sanitizeKind converts an unknown discriminator to an EventKind. Values that
// are too long or contain control characters collapse to "unknown" to keep
// the kind space bounded against hostile input.
func sanitizeKind(typeStr string) EventKind {
	const maxKindLen = 64
	if len(typeStr) > maxKindLen {
		return EventKind("unknown")
	}
	for _, r := range typeStr {
		if unicode.IsControl(r) {
			return EventKind("unknown")
		}
	}
	return EventKind(typeStr)
}
