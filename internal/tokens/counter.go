// Package tokens estimates context-window usage for a session transcript so
// the caller can warn before the agent hits its hard context limit.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/chatclaw/internal/types"
)

// Counter estimates token counts for transcript text. The agent's own
// tokenizer is not public; cl100k_base is close enough for budget warnings.
type Counter struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	warnRatio float64
}

// NewCounter creates a Counter against a context window of maxTokens.
// warnRatio is the usage share (0..1) above which NearLimit reports true.
func NewCounter(maxTokens int, warnRatio float64) (*Counter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get tokenizer: %w", err)
	}
	return &Counter{
		tokenizer: enc,
		maxTokens: maxTokens,
		warnRatio: warnRatio,
	}, nil
}

// Count returns the token count for a string.
func (c *Counter) Count(text string) int {
	return len(c.tokenizer.Encode(text, nil, nil))
}

// EstimateSession estimates the tokens a run will carry: the transcript so
// far plus the next prompt, including persisted tool payloads.
func (c *Counter) EstimateSession(sess *types.Session, prompt string) int {
	total := c.Count(prompt)
	if sess == nil {
		return total
	}
	for _, msg := range sess.Messages {
		total += c.Count(msg.Content)
		for _, tc := range msg.ToolCalls {
			total += c.Count(tc.Name)
			total += c.Count(string(tc.Input))
			total += c.Count(tc.Output)
		}
	}
	return total
}

// NearLimit reports whether the estimate crosses the warning share of the
// context window.
func (c *Counter) NearLimit(estimate int) bool {
	if c.maxTokens <= 0 {
		return false
	}
	return float64(estimate) >= float64(c.maxTokens)*c.warnRatio
}
