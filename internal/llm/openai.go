package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig holds the parameters needed to create an OpenAI client.
// This is defined in the llm package to avoid importing the config package.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4o").
	Model string
	// BaseURL overrides the API base URL. Empty means the production API.
	BaseURL string
	// MaxRetries controls how many times the SDK retries transient errors.
	MaxRetries int
}

// OpenAIClient implements ChatClient using the official OpenAI SDK.
// It is safe for concurrent use.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a chat client backed by the OpenAI Chat Completions API.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client, model: cfg.Model}
}

// Complete sends a single-turn chat request and returns the first choice's text.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", c.mapError(err)
	}
	if len(completion.Choices) == 0 {
		return "", &APIError{Provider: "openai", Message: "empty choices in response"}
	}
	return completion.Choices[0].Message.Content, nil
}

// Provider returns "openai".
func (c *OpenAIClient) Provider() string {
	return "openai"
}

func (c *OpenAIClient) mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   "openai",
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
		}
	}
	return &APIError{Provider: "openai", Message: err.Error()}
}
