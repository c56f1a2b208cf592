package stream

import (
	"encoding/json"
	"strings"
)

// Parser turns single lines of stream-json output into semantic events.
// It is stateful: tool_use blocks register entries in an internal correlator
// so a later tool_result can be enriched with the originating call's name and
// input. A Parser instance belongs to one runner; call Reset at the start of
// each run so call ids from a previous run cannot collide.
//
// Parse never fails the caller: blank and malformed lines yield no events.
// A single corrupt line must not abort an in-progress run.
type Parser struct {
	pending map[string]pendingTool
}

type pendingTool struct {
	name  string
	input json.RawMessage
}

// NewParser creates a Parser with an empty correlator.
func NewParser() *Parser {
	return &Parser{pending: make(map[string]pendingTool)}
}

// Reset clears the tool-call correlator.
func (p *Parser) Reset() {
	p.pending = make(map[string]pendingTool)
}

// Parse parses one line of agent output into zero or more events.
func (p *Parser) Parse(line string) []Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil
	}

	typeStr, ok := raw["type"].(string)
	if !ok || typeStr == "" {
		return nil
	}
	sessionID := getString(raw, "session_id")

	switch typeStr {
	case "assistant":
		return p.parseAssistant(raw, sessionID)
	case "user":
		return p.parseUser(raw, sessionID)
	case "result":
		if text := getString(raw, "result"); text != "" {
			return []Event{{Kind: EventResult, Text: text, SessionID: sessionID}}
		}
		return nil
	case "system":
		if getString(raw, "subtype") == "init" {
			return []Event{{Kind: EventInit, SessionID: sessionID}}
		}
		return []Event{{Kind: EventKind("system"), SessionID: sessionID}}
	case "tool_use":
		// Standalone tool_use record, not nested under an assistant envelope.
		return []Event{p.registerToolUse(raw, sessionID)}
	default:
		return []Event{{Kind: sanitizeKind(typeStr), SessionID: sessionID}}
	}
}

// parseAssistant flattens an assistant record's content blocks. If no block
// maps to a known event, a bare assistant event is emitted so the caller
// always sees at least one event per assistant record.
func (p *Parser) parseAssistant(raw map[string]any, sessionID string) []Event {
	var events []Event
	for _, block := range contentBlocks(raw) {
		switch getString(block, "type") {
		case "thinking":
			events = append(events, Event{Kind: EventThinking, Text: getString(block, "thinking"), SessionID: sessionID})
		case "text":
			events = append(events, Event{Kind: EventText, Text: getString(block, "text"), SessionID: sessionID})
		case "tool_use":
			events = append(events, p.registerToolUse(block, sessionID))
		}
	}
	if len(events) == 0 {
		events = append(events, Event{Kind: EventKind("assistant"), SessionID: sessionID})
	}
	return events
}

// parseUser extracts tool_result blocks from a user record. User records
// without them are the caller's own prior turns echoed back; they produce no
// events.
func (p *Parser) parseUser(raw map[string]any, sessionID string) []Event {
	var events []Event
	for _, block := range contentBlocks(raw) {
		if getString(block, "type") != "tool_result" {
			continue
		}
		callID := getString(block, "tool_use_id")
		entry := p.pending[callID]
		delete(p.pending, callID)

		isError, _ := block["is_error"].(bool)
		events = append(events, Event{
			Kind:      EventToolResult,
			SessionID: sessionID,
			Tool: &ToolCall{
				ID:      callID,
				Name:    entry.name,
				Input:   entry.input,
				Output:  resultContent(block["content"]),
				IsError: isError,
			},
		})
	}
	return events
}

// registerToolUse records the call in the correlator and returns the
// tool-call event. Entries are insert-once: a duplicate call id keeps the
// original registration.
func (p *Parser) registerToolUse(block map[string]any, sessionID string) Event {
	callID := getString(block, "id")
	name := getString(block, "name")
	var input json.RawMessage
	if in, ok := block["input"]; ok {
		if data, err := json.Marshal(in); err == nil {
			input = data
		}
	}
	if callID != "" {
		if _, exists := p.pending[callID]; !exists {
			p.pending[callID] = pendingTool{name: name, input: input}
		}
	}
	return Event{
		Kind:      EventToolCall,
		SessionID: sessionID,
		Tool:      &ToolCall{ID: callID, Name: name, Input: input},
	}
}

// contentBlocks returns the message.content block maps of a record, or nil.
func contentBlocks(raw map[string]any) []map[string]any {
	message, ok := raw["message"].(map[string]any)
	if !ok {
		return nil
	}
	arr, ok := message["content"].([]any)
	if !ok {
		return nil
	}
	blocks := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if block, ok := item.(map[string]any); ok {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// resultContent renders a tool_result content field as text. The wire format
// delivers either a plain string or a list of text blocks.
func resultContent(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var b strings.Builder
		for _, item := range c {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			b.WriteString(getString(block, "text"))
		}
		return b.String()
	}
	return ""
}

// getString safely extracts a string field from a map.
func getString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
