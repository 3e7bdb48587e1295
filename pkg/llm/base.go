// Package llm provides the chat-completion provider interface used by the
// consolidation engine, along with message types, call options, and the
// transient/permanent error classification shared by every retry layer.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider defines the interface for chat-completion clients.
//
// Implementations retry transient failures internally up to their
// configured budget; callers that need more layer their own policy on top
// of IsTransient.
type Provider interface {
	// Chat issues a blocking chat completion.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - messages: Conversation messages (system, user, assistant)
	//   - opts: Optional generation parameters
	//
	// Returns the full assistant message content and any error.
	Chat(ctx context.Context, messages []Message, opts ...CallOption) (string, error)

	// ChatStream issues a streaming chat completion and returns the
	// concatenated content once the stream ends.
	//
	// The context is checked between chunks, so cancellation interrupts a
	// long generation promptly; the resulting error classifies as
	// transient.
	ChatStream(ctx context.Context, messages []Message, opts ...CallOption) (string, error)

	// Close closes the provider and releases resources.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message role: "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message content text.
	Content string `json:"content"`
}

// CallOptions contains per-call generation parameters.
type CallOptions struct {
	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0). Higher = more diverse.
	TopP float64
}

// CallOption is a function type for configuring call options.
type CallOption func(*CallOptions)

// WithTemperature sets the temperature for the call.
//
// Example:
//
//	text, _ := client.Chat(ctx, msgs, llm.WithTemperature(0.7))
func WithTemperature(temp float64) CallOption {
	return func(opts *CallOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens in the response.
//
// Example:
//
//	text, _ := client.Chat(ctx, msgs, llm.WithMaxTokens(100))
func WithMaxTokens(max int) CallOption {
	return func(opts *CallOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the top-p (nucleus sampling) parameter.
func WithTopP(topP float64) CallOption {
	return func(opts *CallOptions) {
		opts.TopP = topP
	}
}

// ApplyCallOptions applies a slice of CallOption functions to create
// CallOptions.
//
// This is a helper function used internally by provider implementations.
// Default values: Temperature=0.2, MaxTokens=1000, TopP=1.0. The low
// default temperature suits the engine's judgement prompts, which want
// stable answers over varied ones.
func ApplyCallOptions(opts []CallOption) *CallOptions {
	options := &CallOptions{
		Temperature: 0.2,
		MaxTokens:   1000,
		TopP:        1.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
