// Package genai answers free-form lead messages that no flow or pending
// action claims, using the OpenAI chat API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// systemPrompt frames the assistant as the sales line's fallback voice.
const systemPrompt = `Eres el asistente de ventas de una desarrolladora inmobiliaria mexicana en WhatsApp.
Responde en español, breve y amable. Si preguntan por precios, ubicaciones o créditos,
invita a compartir su nombre y agendar una visita. Nunca inventes precios ni promociones.`

// Generator produces a free-form reply to a lead message.
type Generator interface {
	GenerateReply(ctx context.Context, userMessage string) (string, error)
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// Option configures the client.
type Option func(*Client)

// WithModel overrides the default chat model.
func WithModel(model openai.ChatModel) Option {
	return func(c *Client) { c.model = model }
}

// NewClient builds a client from the OPENAI_API_KEY environment
// variable.
func NewClient(opts ...Option) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	c := &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GenerateReply produces an assistant reply to a lead message.
func (c *Client) GenerateReply(ctx context.Context, userMessage string) (string, error) {
	slog.Debug("GenAI GenerateReply invoked", "message_length", len(userMessage))
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
	})
	if err != nil {
		slog.Error("GenAI GenerateReply failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
