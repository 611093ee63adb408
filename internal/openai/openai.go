// Package openai adapts the OpenAI chat completions API to the summarizer's text generator.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const systemPrompt = "You are a careful assistant that summarizes and translates user-provided notes. " +
	"Only use facts that appear in the provided text."

// Client generates text with an OpenAI chat model
type Client struct {
	client sdk.Client
	model  string
}

// NewClient creates a new OpenAI client. An empty baseURL selects the public endpoint.
func NewClient(apiKey, model, baseURL string) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(60 * time.Second),
		option.WithMaxRetries(2),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		client: sdk.NewClient(opts...),
		model:  model,
	}
}

// Name identifies the backend in logs and health output
func (c *Client) Name() string {
	return "openai/" + c.model
}

// Generate sends a single prompt and returns the first choice
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(systemPrompt),
			sdk.UserMessage(prompt),
		},
		Temperature: sdk.Float(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
