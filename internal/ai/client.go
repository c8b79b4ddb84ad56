// Package ai wraps the Anthropic API for line fixing and rule checking, with
// retries, a circuit breaker, a concurrency limit, and a request-rate limit.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// ModelSonnet is used for rule checking, which needs the whole document in view
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is enough for rewriting a single line
	ModelHaiku = "claude-3-5-haiku-20241022"

	defaultMaxTokens = 4096
)

// GetDefaultModel returns the default model, checking HYPERLINT_MODEL first
func GetDefaultModel() string {
	if model := os.Getenv("HYPERLINT_MODEL"); model != "" {
		return model
	}
	return ModelSonnet
}

// CallOptions tunes one completion
type CallOptions struct {
	Operation   string  // label for logs
	Model       string  // default: the client's model
	MaxTokens   int     // default: 4096
	Temperature float64 // 0 leaves the API default
	System      string
}

// Completer produces text for a prompt. Client is the production
// implementation; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CallOptions) (string, error)
}

// Client calls the Anthropic messages API
type Client struct {
	client         *anthropic.Client
	model          string
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted
	limiter        *rate.Limiter
	logger         *slog.Logger
}

// Config holds client configuration
type Config struct {
	APIKey            string      // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model             string      // Model to use (default: GetDefaultModel())
	Retry             RetryConfig // Retry configuration (uses defaults if not specified)
	RequestsPerMinute int         // 0 = unlimited
	Logger            *slog.Logger
}

// NewClient creates a new AI client
func NewClient(cfg *Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	c := &Client{
		client: &client,
		model:  model,
		retry:  retry,
		logger: logger,
	}
	c.configureLimits(cfg.RequestsPerMinute)
	return c, nil
}

func (c *Client) configureLimits(requestsPerMinute int) {
	if c.retry.CircuitBreakerEnabled {
		c.circuitBreaker = NewCircuitBreaker(c.retry.FailureThreshold, c.retry.SuccessThreshold, c.retry.OpenTimeout)
		c.circuitBreaker.logger = c.logger
	}
	if c.retry.MaxConcurrentCalls > 0 {
		c.concurrencySem = semaphore.NewWeighted(int64(c.retry.MaxConcurrentCalls))
	}
	if requestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	c.logger.Debug("AI client initialized", "model", c.model,
		"max_concurrent", c.retry.MaxConcurrentCalls, "requests_per_minute", requestsPerMinute)
}

// Model returns the default model
func (c *Client) Model() string { return c.model }

// HealthCheck fails fast while the circuit breaker is open and its timeout
// has not passed
func (c *Client) HealthCheck(context.Context) error {
	if c.circuitBreaker == nil {
		return nil
	}
	if c.circuitBreaker.Blocking() {
		_, failures, _ := c.circuitBreaker.GetMetrics()
		return fmt.Errorf("AI client unavailable: %w (failures=%d, retry in %v)",
			ErrCircuitOpen, failures, c.retry.OpenTimeout)
	}
	return nil
}

// Complete sends prompt as a single user message and returns the text blocks
// of the response concatenated.
func (c *Client) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	startTime := time.Now()

	model := opts.Model
	if model == "" {
		model = c.model
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	operation := opts.Operation
	if operation == "" {
		operation = "completion"
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.System}}
	}

	var response *anthropic.Message
	err := c.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, params)
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	c.logger.Debug("AI call finished", "operation", operation, "model", model,
		"input_tokens", response.Usage.InputTokens, "output_tokens", response.Usage.OutputTokens,
		"duration", time.Since(startTime))
	return sb.String(), nil
}
