package chat

import "strings"

// ContextLimitAdvice is shown in place of assistant text when a run fails
// because the conversation no longer fits the model's context window.
// Resuming a too-long session will not succeed; the user should start a new
// session instead of retrying.
const ContextLimitAdvice = "This conversation has reached the model's context limit. Start a new session to continue."

// contextLimitPhrases are known fragments of the agent's diagnostics when the
// conversation exceeds the context window.
var contextLimitPhrases = []string{
	"context limit",
	"context window",
	"context_length_exceeded",
	"prompt is too long",
	"conversation is too long",
	"input length and max_tokens exceed",
}

// IsContextLimitError reports whether a run's diagnostic text indicates a
// context-limit failure.
func IsContextLimitError(detail string) bool {
	lower := strings.ToLower(detail)
	for _, phrase := range contextLimitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
