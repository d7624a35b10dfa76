package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultAnthropicMaxTokens caps the Messages API response when the request
// does not set its own limit.
const defaultAnthropicMaxTokens = 4096

// AnthropicConfig holds the parameters needed to create an Anthropic client.
// This is defined in the llm package to avoid importing the config package.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key.
	APIKey string
	// Model is the model identifier (e.g., "claude-sonnet-4-20250514").
	Model string
	// BaseURL overrides the API base URL. Empty means the production API.
	BaseURL string
	// MaxRetries controls how many times the SDK retries transient errors.
	MaxRetries int
}

// AnthropicClient implements ChatClient using the official Anthropic SDK.
// It is safe for concurrent use.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a chat client backed by the Anthropic Messages API.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{client: &client, model: cfg.Model}
}

// Complete sends a single-turn chat request and returns the concatenated
// text blocks of the response.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", c.mapError(err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Provider returns "anthropic".
func (c *AnthropicClient) Provider() string {
	return "anthropic"
}

func (c *AnthropicClient) mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   "anthropic",
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
		}
	}
	return &APIError{Provider: "anthropic", Message: err.Error()}
}
