// Package completion wraps the LLM chat-completion vendor. Every call ends in
// a reply string: vendor failures degrade to canned fallbacks and are never
// returned as errors.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sony/gobreaker"

	"concierge/pkg/config"
)

const defaultAPIKeyEnv = "OPENAI_API_KEY"

// ErrEmptyResponse marks a 2xx vendor reply without usable text.
var ErrEmptyResponse = errors.New("completion returned no text")

// Request is one completion. Topic picks the rate-limit fallback; when empty
// it is inferred from User.
type Request struct {
	System string
	User   string
	Topic  Topic
}

// Usage is the vendor's token accounting for one call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Result is always safe to send to the guest.
type Result struct {
	Text     string
	Fallback bool
	Category Category
	Topic    Topic
	Model    string
	Usage    Usage
	Duration time.Duration
}

// Outcome labels the result for metrics and logs.
func (r Result) Outcome() string {
	if r.Category == CategoryNone {
		return "ok"
	}

	return string(r.Category)
}

// Completer is what the flows depend on.
type Completer interface {
	Complete(ctx context.Context, req Request) Result
}

type Client struct {
	sdk            osdk.Client
	model          string
	available      bool
	requestTimeout time.Duration
	breaker        *gobreaker.CircuitBreaker
	log            *slog.Logger
}

// New builds the vendor client. A missing API key is not an error: the
// client is created in degraded mode and answers with fallbacks.
func New(cfg config.CompletionConfig) (*Client, error) {
	model, err := normalizeModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	log := slog.Default().With("component", "completion.client")

	apiKey := resolveAPIKey(cfg)
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(cfg.Organization); organization != "" {
		opts = append(opts, option.WithOrganization(organization))
	}
	if project := strings.TrimSpace(cfg.Project); project != "" {
		opts = append(opts, option.WithProject(project))
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}

	if apiKey == "" {
		log.Warn("No LLM API key configured; open questions will get fallback replies", "api_key_env", apiKeyEnvName(cfg))
	}

	return &Client{
		sdk:            osdk.NewClient(opts...),
		model:          model,
		available:      apiKey != "",
		requestTimeout: requestTimeout,
		breaker:        newBreaker("llm-vendor"),
		log:            log,
	}, nil
}

// Complete sends one system+user exchange and returns the first choice or a
// fallback.
func (c *Client) Complete(ctx context.Context, req Request) Result {
	topic := req.Topic
	if topic == "" {
		topic = TopicFor(req.User)
	}

	result := Result{Topic: topic, Model: c.model}
	if !c.available {
		return c.fallback(result, CategoryUnavailable)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	startedAt := time.Now()
	c.log.Debug("completion request started", "model", c.model, "topic", topic, "prompt_length", len(req.User))

	out, err := c.breaker.Execute(func() (any, error) {
		return c.send(ctx, req)
	})
	result.Duration = time.Since(startedAt)
	if err != nil {
		category := categorize(err)
		c.log.Warn("completion failed", "category", category, "duration_ms", result.Duration.Milliseconds(), "error", err)
		return c.fallback(result, category)
	}

	completion := out.(*osdk.ChatCompletion)
	result.Text = strings.TrimSpace(completion.Choices[0].Message.Content)
	result.Usage = Usage{
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
		TotalTokens:      completion.Usage.TotalTokens,
	}
	c.log.Debug("completion request completed", "duration_ms", result.Duration.Milliseconds(), "response_length", len(result.Text))

	return result
}

func (c *Client) send(ctx context.Context, req Request) (*osdk.ChatCompletion, error) {
	messages := make([]osdk.ChatCompletionMessageParamUnion, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, osdk.SystemMessage(system))
	}
	messages = append(messages, osdk.UserMessage(req.User))

	completion, err := c.sdk.Chat.Completions.New(ctx, osdk.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}, option.WithJSONSet("stream", false))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	return completion, nil
}

func (c *Client) fallback(result Result, category Category) Result {
	result.Text = Fallback(result.Topic, category)
	result.Fallback = true
	result.Category = category
	return result
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

func categorize(err error) Category {
	if isRateLimited(err) {
		return CategoryRateLimited
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return CategoryUnavailable
	}

	return CategoryFailed
}

func isRateLimited(err error) bool {
	var apiErr *osdk.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// newBreaker opens after a burst of vendor failures so guests get the
// fallback immediately instead of waiting on a dead endpoint. Rate-limit
// responses do not count as failures.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isRateLimited(err)
		},
	})
}

func apiKeyEnvName(cfg config.CompletionConfig) string {
	if name := strings.TrimSpace(cfg.APIKeyEnv); name != "" {
		return name
	}

	return defaultAPIKeyEnv
}

func resolveAPIKey(cfg config.CompletionConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv(defaultAPIKeyEnv))
}

func normalizeModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("completion model is required")
	}

	providerID, modelID, found := strings.Cut(model, "/")
	if !found {
		return model, nil
	}

	providerID = strings.TrimSpace(providerID)
	modelID = strings.TrimSpace(modelID)
	if providerID == "" || modelID == "" {
		return "", errors.New("completion model is invalid")
	}
	if providerID != "openai" {
		return "", fmt.Errorf("model provider %q is not supported", providerID)
	}

	return modelID, nil
}
