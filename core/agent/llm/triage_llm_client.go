// Package llm is the chat-completion client behind primary classification.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"complaint_triage/pkg/httputil"
	"complaint_triage/pkg/logger"
	"complaint_triage/pkg/metrics"
	"complaint_triage/pkg/resilience"
)

const DefaultModel = "gpt-4o-mini"

// Usage counter names.
const (
	MetricRequests         = "llm.requests"
	MetricErrors           = "llm.errors"
	MetricPromptTokens     = "llm.prompt_tokens"
	MetricCompletionTokens = "llm.completion_tokens"
	MetricLatency          = "llm.latency"
)

// ErrEmptyResponse is returned when the service answers without a choice.
var ErrEmptyResponse = errors.New("llm returned no choices")

type ClientConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint (proxies, compatible servers).
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Breaker     resilience.BreakerConfig
}

// Client wraps go-openai with a circuit breaker and usage accounting.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	breaker     *gobreaker.CircuitBreaker
	metrics     *metrics.Registry
}

// NewClientWithConfig creates a client. reg may be nil.
func NewClientWithConfig(cfg ClientConfig, reg *metrics.Registry, log *logger.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.HTTPClient = httputil.NewClient(httputil.LLMClientConfig())
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}
	// 분류는 결정적으로
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}
	bc := cfg.Breaker
	if bc.Name == "" {
		bc = resilience.DefaultBreakerConfig("llm")
	}
	if reg == nil {
		reg = metrics.NewRegistry(0)
	}

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		breaker:     resilience.NewBreaker(bc, log),
		metrics:     reg,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// CompleteWithSystem sends a system and a user message and returns the first
// choice's text. Calls are rejected with resilience.ErrOpen while the
// breaker is open.
func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.metrics.Inc(MetricRequests)
	start := time.Now()
	defer func() { c.metrics.Observe(MetricLatency, time.Since(start)) }()

	content, err := resilience.Call(c.breaker, func() (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userPrompt,
				},
			},
		})
		if err != nil {
			return "", err
		}
		c.trackUsage(resp.Usage)

		if len(resp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		c.metrics.Inc(MetricErrors)
		return "", fmt.Errorf("chat completion (%s): %w", c.model, err)
	}
	return content, nil
}

func (c *Client) trackUsage(u openai.Usage) {
	c.metrics.Add(MetricPromptTokens, int64(u.PromptTokens))
	c.metrics.Add(MetricCompletionTokens, int64(u.CompletionTokens))
}
