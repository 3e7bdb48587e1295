// Package openai implements llm.Provider against any OpenAI-compatible
// chat-completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/driftlab/graphmem/pkg/llm"
)

const (
	defaultModel      = openai.GPT3Dot5Turbo
	defaultMaxRetries = 2
	defaultTimeout    = 30 * time.Second

	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 8 * time.Second
)

// Client is a chat-completion client for OpenAI-compatible endpoints.
// It implements the llm.Provider interface with internal retry: transient
// failures are re-attempted with exponential backoff up to MaxRetries
// additional attempts, permanent failures return immediately.
type Client struct {
	client     *openai.Client
	model      string
	maxRetries int
	timeout    time.Duration
}

// Config is the configuration for the client.
// APIKey: API key (required by most endpoints)
// Model: Model name, defaults to gpt-3.5-turbo
// BaseURL: Endpoint base URL; any OpenAI-compatible server works
// (self-hosted gateways, Ollama, DeepSeek, Qwen, ...)
// MaxRetries: Additional attempts after the first, defaults to 2
// Timeout: Per-attempt timeout, defaults to 30s
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int
	Timeout    time.Duration
}

// NewClient creates a new chat-completion client.
//
// Args:
//   - cfg: Configuration containing APIKey, Model, BaseURL and retry limits
//
// Returns:
//   - *Client: Client instance
//   - error: Returns an error if the configuration is invalid
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("llm openai: nil config")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	} else if cfg.MaxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		maxRetries: maxRetries,
		timeout:    timeout,
	}, nil
}

// Chat issues a blocking chat completion.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - messages: Conversation messages (system, user, assistant)
//   - opts: Optional generation parameters (temperature, max_tokens, top_p)
//
// Returns:
//   - string: Full assistant message content
//   - error: The last attempt's error once the retry budget is spent
func (c *Client) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (string, error) {
	req := c.buildRequest(messages, llm.ApplyCallOptions(opts), false)
	return c.withRetry(ctx, func(attemptCtx context.Context) (string, error) {
		resp, err := c.client.CreateChatCompletion(attemptCtx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("llm chat failed: no choices returned")
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// ChatStream issues a streaming chat completion and returns the
// concatenated content once the stream ends.
//
// The context is checked between chunks; cancellation mid-stream returns
// promptly with the context error, which classifies as transient.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - messages: Conversation messages
//   - opts: Optional generation parameters
//
// Returns:
//   - string: Concatenation of all streamed content deltas
//   - error: The last attempt's error once the retry budget is spent
func (c *Client) ChatStream(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (string, error) {
	req := c.buildRequest(messages, llm.ApplyCallOptions(opts), true)
	return c.withRetry(ctx, func(attemptCtx context.Context) (string, error) {
		stream, err := c.client.CreateChatCompletionStream(attemptCtx, req)
		if err != nil {
			return "", err
		}
		defer stream.Close()

		var sb strings.Builder
		for {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
			}

			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return sb.String(), nil
			}
			if err != nil {
				return "", err
			}
			if len(resp.Choices) > 0 {
				sb.WriteString(resp.Choices[0].Delta.Content)
			}
		}
	})
}

// Close closes the client connection.
// The underlying SDK client does not require explicit closing; this method
// is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}

func (c *Client) buildRequest(messages []llm.Message, options *llm.CallOptions, stream bool) openai.ChatCompletionRequest {
	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stream:      stream,
	}
}

// withRetry runs one attempt plus up to maxRetries re-attempts, backing
// off exponentially between them. Only transient errors are retried, and
// never once the caller's context is done.
func (c *Client) withRetry(ctx context.Context, attempt func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			if err := sleepWithContext(ctx, backoffDelay(i-1)); err != nil {
				return "", fmt.Errorf("llm retry aborted: %w", err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		content, err := attempt(attemptCtx)
		cancel()
		if err == nil {
			return content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if !llm.IsTransient(err) {
			break
		}
	}
	return "", lastErr
}

func backoffDelay(retry int) time.Duration {
	d := baseBackoff << uint(retry)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
