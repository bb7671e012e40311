// Package llm talks to an OpenAI-compatible chat-completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mpilhlt/docinator/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// ErrLLM is matched by every error returned from Client.Complete.
var ErrLLM = errors.New("language model request failed")

const (
	// SystemPrompt restricts the model to the supplied document.
	SystemPrompt = "You are a helpful assistant who will always answer the question with only the data provided"
	// Temperature is kept low so answers stay close to the document.
	Temperature float32 = 0.1

	DefaultTimeout = 2 * time.Minute
)

// Completer is satisfied by *Client and by test doubles.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client is safe for concurrent use. It is built once from the loaded
// configuration and shared by all requests.
type Client struct {
	api     *openai.Client
	model   string
	apiKey  string
	timeout time.Duration
	log     *slog.Logger
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout    time.Duration
	httpClient *http.Client
	log        *slog.Logger
}

// WithTimeout bounds every Complete call. Zero or less keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHTTPClient replaces the transport, mostly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.log = l }
}

// New creates a client for cfg, which must have passed config.Load.
func New(cfg *config.LLMConfig, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", ErrLLM)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := clientOptions{timeout: DefaultTimeout, log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if o.httpClient != nil {
		apiCfg.HTTPClient = o.httpClient
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		timeout: o.timeout,
		log:     o.log,
	}, nil
}

// Complete sends the system instruction and prompt as a two-message
// conversation and returns the content of the first choice as produced.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: Temperature,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w (%w)", err, ctxErr)
		}
		return "", c.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{msg: "response contains no choices"}
	}

	c.log.DebugContext(ctx, "Chat completion finished",
		"model", resp.Model,
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
		"finishReason", resp.Choices[0].FinishReason,
		"durationMs", time.Since(start).Milliseconds())

	return resp.Choices[0].Message.Content, nil
}

// wrap turns a client error into an *Error whose message has the API key
// removed, since some providers echo it back in authentication failures.
func (c *Client) wrap(err error) error {
	e := &Error{cause: err, msg: err.Error()}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		e.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		e.StatusCode = reqErr.HTTPStatusCode
	}
	if c.apiKey != "" {
		e.msg = strings.ReplaceAll(e.msg, c.apiKey, "[redacted]")
	}
	return e
}

// Error is returned by Complete. StatusCode is the upstream HTTP status,
// zero when no response was received.
type Error struct {
	StatusCode int
	msg        string
	cause      error
}

func (e *Error) Error() string {
	return ErrLLM.Error() + ": " + e.msg
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrLLM}
	}
	return []error{ErrLLM, e.cause}
}

// StatusCode reports the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
