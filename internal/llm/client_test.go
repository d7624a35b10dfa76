package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_test",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [
				{"type": "text", "text": "The literature "},
				{"type": "text", "text": "converges."}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-sonnet-4-20250514",
		BaseURL: server.URL,
	})

	got, err := client.Complete(context.Background(), Request{
		System:      "You are a research planner.",
		Prompt:      "Plan a review.",
		MaxTokens:   256,
		Temperature: 0.3,
	})

	require.NoError(t, err)
	assert.Equal(t, "The literature converges.", got)
	assert.Equal(t, "anthropic", client.Provider())
}

func TestAnthropicClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{APIKey: "bad", Model: "m", BaseURL: server.URL})

	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "anthropic", apiErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, apiErr.IsTransient())
}

func TestOpenAIClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-test",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [
				{"index": 0, "message": {"role": "assistant", "content": "Draft text."}, "finish_reason": "stop"}
			],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: server.URL})

	got, err := client.Complete(context.Background(), Request{Prompt: "Write."})

	require.NoError(t, err)
	assert.Equal(t, "Draft text.", got)
	assert.Equal(t, "openai", client.Provider())
}

func TestAPIErrorTransience(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 429}).IsTransient())
	assert.True(t, (&APIError{StatusCode: 503}).IsTransient())
	assert.True(t, (&APIError{}).IsTransient(), "network errors carry no status")
	assert.False(t, (&APIError{StatusCode: 400}).IsTransient())
}

func TestNewChatClient(t *testing.T) {
	anthropicClient, err := NewChatClient(FactoryConfig{Provider: "anthropic"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", anthropicClient.Provider())

	openaiClient, err := NewChatClient(FactoryConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "openai", openaiClient.Provider())

	_, err = NewChatClient(FactoryConfig{Provider: "cohere"})
	assert.Error(t, err)

	_, err = NewChatClient(FactoryConfig{})
	assert.Error(t, err)
}
