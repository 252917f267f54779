package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fin-advisor/pkg/config"

	"github.com/Role1776/gigago"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrModelUnavailable covers every failed or timed out generation call.
var ErrModelUnavailable = errors.New("model unavailable")

var errEmptyCompletion = errors.New("model returned no choices")

// gigaChatTemperature is fixed, LLM_TEMPERATURE applies to the other providers.
const gigaChatTemperature = 0.3

const (
	ProviderGigaChat  = "gigachat"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var defaultModels = map[string]string{
	ProviderGigaChat:  "GigaChat",
	ProviderOpenAI:    "gpt-4",
	ProviderAnthropic: "claude-3-5-haiku-latest",
}

// Generator turns a composed prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GigaChatGenerator struct {
	client *gigago.Client
	model  *gigago.GenerativeModel
}

func NewGigaChatGenerator(cfg *config.LLMConfig, logger *zap.Logger) (*GigaChatGenerator, error) {
	ctx := context.Background()

	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.GigaChat.Scope),
	}
	if cfg.GigaChat.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.GigaChat.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	model := client.GenerativeModel(modelName(cfg))
	model.Temperature = gigaChatTemperature

	return &GigaChatGenerator{client: client, model: model}, nil
}

func (g *GigaChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []gigago.Message{
		{Role: gigago.RoleUser, Content: prompt},
	}

	resp, err := g.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("gigachat generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *GigaChatGenerator) Close() error {
	g.client.Close()
	return nil
}

// OpenAIGenerator talks to any OpenAI-compatible chat endpoint.
type OpenAIGenerator struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

func NewOpenAIGenerator(cfg *config.LLMConfig) (*OpenAIGenerator, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.OpenAI.APIKey, "Bearer ")),
		openai.WithModel(modelName(cfg)),
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return &OpenAIGenerator{llm: llm, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	callOpts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if g.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(g.maxTokens))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, callOpts...)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	return text, nil
}

type AnthropicGenerator struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewAnthropicGenerator(cfg *config.LLMConfig) *AnthropicGenerator {
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicGenerator{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.Anthropic.APIKey)),
		model:       modelName(cfg),
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.maxTokens,
		Temperature: anthropic.Float(g.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// LimitedGenerator bounds an inner Generator by a request rate and a per-call timeout.
// Every failure it returns wraps ErrModelUnavailable.
type LimitedGenerator struct {
	inner   Generator
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// NewLimitedGenerator disables rate limiting when perSecond <= 0 and the timeout when timeout <= 0.
func NewLimitedGenerator(inner Generator, perSecond float64, burst int, timeout time.Duration, logger *zap.Logger) *LimitedGenerator {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &LimitedGenerator{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		logger:  logger,
	}
}

func (g *LimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		g.logger.Warn("Model rate limit wait aborted", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	start := time.Now()
	text, err := g.inner.Generate(ctx, prompt)
	if err != nil {
		g.logger.Error("Model call failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	g.logger.Debug("Model call finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_length", len(text)),
	)
	return text, nil
}

// Close releases the inner generator when it holds a connection.
func (g *LimitedGenerator) Close() error {
	if c, ok := g.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewGenerator builds the provider selected by cfg.Provider wrapped in a LimitedGenerator.
func NewGenerator(cfg *config.LLMConfig, logger *zap.Logger) (*LimitedGenerator, error) {
	var (
		inner Generator
		err   error
	)

	switch strings.ToLower(cfg.Provider) {
	case ProviderGigaChat, "":
		inner, err = NewGigaChatGenerator(cfg, logger)
	case ProviderOpenAI:
		inner, err = NewOpenAIGenerator(cfg)
	case ProviderAnthropic:
		inner = NewAnthropicGenerator(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Generative model configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", modelName(cfg)),
	)
	return NewLimitedGenerator(inner, cfg.RateLimit, cfg.Burst, cfg.Timeout, logger), nil
}

func modelName(cfg *config.LLMConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	if name, ok := defaultModels[strings.ToLower(cfg.Provider)]; ok {
		return name
	}
	return defaultModels[ProviderGigaChat]
}
