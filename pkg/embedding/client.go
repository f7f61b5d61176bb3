package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"

	// DefaultCompletionModel is the chat model used for answer synthesis.
	DefaultCompletionModel = "gpt-4o-mini"

	retryBackoffBase = 500 * time.Millisecond
)

// ClientConfig configures the external service client.
type ClientConfig struct {
	APIKey            string
	Model             string
	CompletionModel   string
	RequestTimeout    time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// Client wraps the OpenAI API for both embedding and completion requests.
// Every call runs under a bounded timeout, is throttled by a shared rate
// limiter, and retries transient failures a fixed number of times with
// linear backoff before surfacing a ServiceError.
type Client struct {
	api             *openai.Client
	model           string
	completionModel string
	timeout         time.Duration
	maxRetries      int
	limiter         *rate.Limiter
}

// NewClient builds a Client. A missing API key yields a ServiceError of
// kind FailureUnconfigured so callers can distinguish "not set up" from
// "broken".
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &ServiceError{
			Kind: FailureUnconfigured,
			Op:   "client",
			Err:  errors.New("no API key supplied (set OPENAI_API_KEY)"),
		}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.CompletionModel == "" {
		cfg.CompletionModel = DefaultCompletionModel
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}

	return &Client{
		api:             openai.NewClient(cfg.APIKey),
		model:           cfg.Model,
		completionModel: cfg.CompletionModel,
		timeout:         cfg.RequestTimeout,
		maxRetries:      cfg.MaxRetries,
		limiter:         rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// Model returns the embedding model name.
func (c *Client) Model() string {
	return c.model
}

// Embed generates an embedding vector for text and returns it together
// with the token count the provider charged for it.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, int, error) {
	if text == "" {
		return nil, 0, fmt.Errorf("embed: empty input")
	}

	var vector []float32
	var tokens int

	err := c.withRetry(ctx, "embed", func(callCtx context.Context) error {
		resp, err := c.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.model),
			Input: []string{text},
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return errors.New("empty embedding response")
		}
		vector = make([]float32, len(resp.Data[0].Embedding))
		copy(vector, resp.Data[0].Embedding)
		tokens = resp.Usage.TotalTokens
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return vector, tokens, nil
}

// Complete sends a system+user prompt pair to the chat completion service
// and returns the answer text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	var answer string

	err := c.withRetry(ctx, "complete", func(callCtx context.Context) error {
		resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: c.completionModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty completion response")
		}
		answer = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// withRetry runs call under the rate limiter and request timeout,
// retrying rate-limit and transport failures up to maxRetries times.
// Authentication failures are never retried.
func (c *Client) withRetry(ctx context.Context, op string, call func(context.Context) error) error {
	var last *ServiceError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &ServiceError{Kind: FailureTransport, Op: op, Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * retryBackoffBase):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return &ServiceError{Kind: FailureTransport, Op: op, Err: err}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}

		last = classify(op, err)
		if last.Kind == FailureUnauthorized || last.Kind == FailureUnconfigured {
			return last
		}
	}

	return last
}

// classify maps an API error onto the failure taxonomy.
func classify(op string, err error) *ServiceError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &ServiceError{Kind: FailureUnauthorized, Op: op, Err: err}
		case http.StatusTooManyRequests:
			return &ServiceError{Kind: FailureRateLimited, Op: op, Err: err}
		}
	}
	return &ServiceError{Kind: FailureTransport, Op: op, Err: err}
}
