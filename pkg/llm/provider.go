package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

// Usage is the token accounting reported by the backend, zero when unknown
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

type Completion struct {
	Content string
	Usage   Usage
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Complete sends a chat history and returns the reply with token usage
	Complete(ctx context.Context, history []Message, options ...Option) (*Completion, error)

	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// ChatVia implements Chat on top of Complete
func ChatVia(ctx context.Context, p interface {
	Complete(context.Context, []Message, ...Option) (*Completion, error)
}, history []Message, options ...Option) (string, error) {
	c, err := p.Complete(ctx, history, options...)
	if err != nil {
		return "", err
	}
	return c.Content, nil
}
