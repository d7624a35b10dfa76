// Package llm provides the chat-completion abstraction used by the agent
// steps and the LLM-backed judge, with providers for the Anthropic and
// OpenAI APIs and a process-wide call quota limiter.
package llm

import "context"

// Request is a single chat completion request. All agent interactions are
// single-turn: a system prompt establishing the role plus one user prompt.
type Request struct {
	// System is the role-establishing system prompt. May be empty.
	System string
	// Prompt is the user message.
	Prompt string
	// MaxTokens caps the response length. Zero means the provider default.
	MaxTokens int
	// Temperature controls sampling. Zero means the provider default.
	Temperature float64
}

// ChatClient produces a text completion for a request. Implementations must
// be safe for concurrent use.
type ChatClient interface {
	// Complete returns the full text of the model's response.
	Complete(ctx context.Context, req Request) (string, error)
	// Provider returns the provider name, e.g. "anthropic" or "openai".
	Provider() string
}
