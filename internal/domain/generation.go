package domain

import "context"

// Chat message roles as sent to the generation provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single message in a generation request.
type ChatMessage struct {
	Role    string
	Content string
}

// GenerationRequest is a provider-level generation call.
type GenerationRequest struct {
	Messages    []ChatMessage
	Temperature float32
	MaxTokens   int
}

// Generator is the raw generation provider contract. The orchestrator wraps it;
// pipeline code never calls a Generator directly.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationOutput, error)
}

// GenerationOutput is a successful provider response.
type GenerationOutput struct {
	Text             string
	Model            string
	LatencyMs        int64
	PromptTokens     int
	CompletionTokens int
}

// GenerationResult is the orchestrator-level result. Success is false whenever
// the provider timed out, errored, or no worker slot was available; Text then
// holds the deterministic fallback. Never accompanied by an error.
type GenerationResult struct {
	Text      string
	Model     string
	Success   bool
	LatencyMs int64
	Err       error // diagnostic only, not surfaced to callers
}
