// Package llm provides rate-limited chat completion access shared by
// every store engine.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidConfig indicates invalid client configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyResponse indicates the model returned no usable text
	ErrEmptyResponse = errors.New("empty model response")

	// ErrRateLimited indicates the API kept rejecting with 429 through
	// all retries. Terminal; callers degrade, they do not retry further.
	ErrRateLimited = errors.New("rate limited")
)

const (
	// DefaultTimeout bounds a single completion attempt.
	DefaultTimeout = 30 * time.Second

	defaultRPS         = 5.0
	defaultBurst       = 10
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
)

// Config holds configuration for the completion client.
type Config struct {
	// BaseURL is the chat completion API base URL. Empty means the
	// SDK default (the OpenAI API).
	BaseURL string

	// APIKey authenticates the API (optional for local servers).
	APIKey string

	// RPS caps outgoing requests per second across all stores.
	RPS float64

	// Burst is the token bucket depth.
	Burst int

	// MaxRetries is how many times a failed attempt is repeated.
	MaxRetries int

	// Timeout is the per-attempt ceiling. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client is a shared chat completion client. One instance serves every
// store; the limiter keeps the platform inside the provider quota no
// matter how many tenants are loaded.
type Client struct {
	api         openai.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	timeout     time.Duration
	logger      *zap.Logger
}

// NewClient creates a completion client from the configuration.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	// openai-go requires a key header, use placeholder for servers
	// that do not check one.
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	// SDK retries are disabled so the backoff policy here is the only
	// one in play.
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		api:         openai.NewClient(opts...),
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries:  maxRetries,
		baseBackoff: defaultBaseBackoff,
		timeout:     timeout,
		logger:      logger,
	}
}

// Complete sends a system+user prompt pair to the given model and
// returns the generated text.
//
// The call waits on the shared rate limiter first, then retries
// transient failures (429, 5xx, transport errors) with exponential
// backoff. Client-side errors (4xx other than 429) and context
// cancellation are returned immediately.
func (c *Client) Complete(ctx context.Context, model, system, user string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("%w: model required", ErrInvalidConfig)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying completion",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.doComplete(ctx, params)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}

	if isRateLimit(lastErr) {
		return "", fmt.Errorf("%w: %v", ErrRateLimited, lastErr)
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doComplete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// isRetryable reports whether an attempt error is worth repeating.
func isRetryable(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500
	}
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}
	// Transport failures and per-attempt timeouts are transient.
	return true
}

func isRateLimit(err error) bool {
	var apierr *openai.Error
	return errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests
}
