// Package openai implements the completion contract against the OpenAI
// chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kotoba-ai/kotoba/pkg/llm"
	"github.com/kotoba-ai/kotoba/pkg/resilience"
)

type Completer struct {
	client *openai.Client

	mu    sync.RWMutex
	model string
}

func NewCompleter(apiKey, model, baseURL string) *Completer {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Completer{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *Completer) Name() string { return "openai" }

func (c *Completer) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Completer) SetModel(model string) {
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

func (c *Completer) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.Model(),
		Messages: msgs,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", resilience.RateLimitError{Provider: "openai", Message: apiErr.Message}
		}
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ llm.Completer = (*Completer)(nil)
