// Package llm wraps the chat-completion transport behind a bounded-concurrency,
// retried, timeout-guarded Gateway. Every provider failure is classified once,
// at this boundary, into the closed Kind set.
package llm

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/decisionflow/ai/prompt"
)

// Gateway is the text-completion interface agents call. Implementations
// enforce admission control, per-call timeouts, and the shared retry policy.
type Gateway interface {
	// Complete sends a single-prompt completion request and returns the
	// response text. Empty completions are rejected without retry.
	Complete(ctx context.Context, promptText string, opts ...CallOption) (string, error)

	// CompleteWithPromptTemplate renders the named agent's template with the
	// supplied variables and completes it. Fails with a not-found error when
	// no template exists for the agent under the configured bundle version.
	CompleteWithPromptTemplate(ctx context.Context, agentName string, vars map[string]string, opts ...CallOption) (string, error)
}

// CallOption overrides a per-call generation parameter.
type CallOption func(*callOptions)

type callOptions struct {
	temperature *float32
	maxTokens   *int
	timeout     *time.Duration
}

// WithTemperature overrides the configured temperature for one call.
func WithTemperature(t float32) CallOption {
	return func(o *callOptions) { o.temperature = &t }
}

// WithMaxTokens overrides the configured max tokens for one call.
func WithMaxTokens(n int) CallOption {
	return func(o *callOptions) { o.maxTokens = &n }
}

// WithTimeout overrides the configured per-call timeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = &d }
}

// Config represents gateway configuration.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 2000
	Temperature float32 // default: 0.0 for deterministic output
	Timeout     time.Duration
	// MaxConcurrent bounds simultaneous outbound calls process-wide.
	MaxConcurrent int64
	Retry         RetryConfig
}

// chatCompleter is the slice of the openai client the gateway depends on.
// Tests substitute it to exercise retry and classification paths.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type gateway struct {
	client      chatCompleter
	prompts     *prompt.Loader
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	retry       RetryConfig
	sem         *semaphore.Weighted
	stats       Recorder
}

// Recorder receives gateway call outcomes for metrics export. A nil-safe
// no-op is used when metrics are disabled.
type Recorder interface {
	ObserveLLMCall(outcome string, duration time.Duration)
	ObserveLLMRetryExhausted()
}

type nopRecorder struct{}

func (nopRecorder) ObserveLLMCall(string, time.Duration) {}
func (nopRecorder) ObserveLLMRetryExhausted()            {}

// NewGateway creates a Gateway backed by an OpenAI-compatible endpoint.
func NewGateway(cfg Config, prompts *prompt.Loader, stats Recorder) Gateway {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	return newGateway(openai.NewClientWithConfig(clientConfig), cfg, prompts, stats)
}

func newGateway(client chatCompleter, cfg Config, prompts *prompt.Loader, stats Recorder) *gateway {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if stats == nil {
		stats = nopRecorder{}
	}

	return &gateway{
		client:      client,
		prompts:     prompts,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		retry:       cfg.Retry,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrent),
		stats:       stats,
	}
}

func (g *gateway) Complete(ctx context.Context, promptText string, opts ...CallOption) (string, error) {
	var options callOptions
	for _, opt := range opts {
		opt(&options)
	}

	temperature := g.temperature
	if options.temperature != nil {
		temperature = *options.temperature
	}
	maxTokens := g.maxTokens
	if options.maxTokens != nil {
		maxTokens = *options.maxTokens
	}
	timeout := g.timeout
	if options.timeout != nil {
		timeout = *options.timeout
	}

	callID := shortuuid.New()
	startTime := time.Now()

	slog.Debug("llm: completion request",
		"call_id", callID,
		"model", g.model,
		"prompt_length", len(promptText),
		"max_tokens", maxTokens,
	)

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: promptText},
		},
	}

	resp, err := RetryWithBackoff(ctx, g.retry, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		// The admission semaphore is held per attempt so backoff sleeps do
		// not occupy a concurrency slot.
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return openai.ChatCompletionResponse{}, err
		}
		defer g.sem.Release(1)

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return g.client.CreateChatCompletion(callCtx, req)
	})
	if err != nil {
		classified := Classify(err)
		g.stats.ObserveLLMCall(classified.Kind.String(), time.Since(startTime))
		if classified.Retryable {
			g.stats.ObserveLLMRetryExhausted()
		}
		slog.Error("llm: completion request failed",
			"call_id", callID,
			"kind", classified.Kind.String(),
			"error", classified,
		)
		return "", classified
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		g.stats.ObserveLLMCall("empty", time.Since(startTime))
		slog.Warn("llm: empty completion", "call_id", callID, "model", g.model)
		return "", &Error{Kind: KindUnknown, Retryable: false, Message: "empty response from LLM"}
	}

	g.stats.ObserveLLMCall("ok", time.Since(startTime))
	slog.Debug("llm: completion response received",
		"call_id", callID,
		"content_length", len(resp.Choices[0].Message.Content),
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return resp.Choices[0].Message.Content, nil
}

func (g *gateway) CompleteWithPromptTemplate(ctx context.Context, agentName string, vars map[string]string, opts ...CallOption) (string, error) {
	rendered, err := g.prompts.Render(agentName, vars)
	if err != nil {
		return "", err
	}
	return g.Complete(ctx, rendered, opts...)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
