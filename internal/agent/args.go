package agent

import (
	"strconv"
	"strings"
)

// Request describes one run of the external agent. It is a value type and is
// not mutated after submission.
type Request struct {
	// Prompt is the user's message for this run.
	Prompt string

	// ResumeSessionID, when non-empty, resumes the agent's own prior
	// conversational state via --resume.
	ResumeSessionID string

	// Model selects the agent's model; empty uses the agent's default.
	Model string

	// AllowedTools is the ordered tool allowlist, comma-joined on the wire.
	AllowedTools []string

	// MaxTurns caps agentic turns; zero or negative omits the flag.
	MaxTurns int

	// SystemPrompt replaces the agent's system prompt. AppendSystemPrompt
	// extends it instead; at most one of the two is emitted, and
	// SystemPrompt wins when both are set.
	SystemPrompt       string
	AppendSystemPrompt string

	// AddDirs are extra directories the agent may access.
	AddDirs []string
}

// buildArgs translates a Request into CLI arguments. The output mode is
// always streaming line-delimited JSON, and -p forces one-shot batch
// behavior. The prompt is the last positional argument.
func buildArgs(req Request) []string {
	args := []string{"-p", "--verbose", "--output-format", "stream-json"}

	if req.ResumeSessionID != "" {
		args = append(args, "--resume", req.ResumeSessionID)
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.MaxTurns))
	}
	switch {
	case req.SystemPrompt != "":
		args = append(args, "--system-prompt", req.SystemPrompt)
	case req.AppendSystemPrompt != "":
		args = append(args, "--append-system-prompt", req.AppendSystemPrompt)
	}
	for _, dir := range req.AddDirs {
		args = append(args, "--add-dir", dir)
	}

	args = append(args, req.Prompt)
	return args
}
