// Package anthropic adapts the anthropic-sdk-go client to the
// llmgateway.CompletionProvider contract. Anthropic has no first-party
// embeddings endpoint, so Embed delegates to a configured fallback
// provider (typically the OpenAI driver) — mirrors the teacher's pattern
// of mixing model vendors for chat vs. embeddings.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type EmbedFallback interface {
	Embed(ctx context.Context, texts []string, model string) ([][]float32, error)
}

type Client struct {
	client   anthropic.Client
	embedder EmbedFallback
}

func New(apiKey string, embedder EmbedFallback) *Client {
	return &Client{client: anthropic.NewClient(option.WithAPIKey(apiKey)), embedder: embedder}
}

func (c *Client) Complete(ctx context.Context, systemPrompt, prompt, model string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: complete: %w", err)
	}
	var out string
	for _, block := range resp.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}

func (c *Client) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("anthropic: embed: no embedding fallback configured")
	}
	return c.embedder.Embed(ctx, texts, model)
}
