package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// StreamChunk is one increment of a streamed completion. The final chunk has
// Done set; FinishReason is only meaningful on that chunk.
type StreamChunk struct {
	Text         string
	Done         bool
	FinishReason string
	Err          error
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature       float64
	MaxTokens         int
	Model             string // Override default model
	SystemInstruction string
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithSystemInstruction(instruction string) Option {
	return func(o *Options) {
		o.SystemInstruction = instruction
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the full response.
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// ChatStream sends a chat history and emits the response incrementally.
	// The channel is closed after the Done chunk (or an Err chunk).
	ChatStream(ctx context.Context, history []Message, options ...Option) (<-chan StreamChunk, error)
}
