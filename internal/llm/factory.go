package llm

import "fmt"

// FactoryConfig holds the parameters needed to create a ChatClient.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("openai" or "anthropic").
	Provider string
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
}

// NewChatClient creates a ChatClient based on the configuration. Supports
// "openai" and "anthropic" providers. Returns an error for unsupported or
// empty provider values.
func NewChatClient(cfg FactoryConfig) (ChatClient, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg.OpenAI), nil
	case "anthropic":
		return NewAnthropicClient(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
