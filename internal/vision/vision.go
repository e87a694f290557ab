// Package vision describes images in text so they can be embedded and
// searched like any other chunk.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/dshills/mgrep/internal/retry"
	"github.com/dshills/mgrep/pkg/types"
)

// DefaultPrompt asks for a technical description of the image
const DefaultPrompt = `Describe this image in detail. Focus on:
- What type of content it shows (code, diagram, UI, screenshot, etc.)
- Key elements and their purpose
- Any text, code, or technical information visible
- Overall context and what it represents

Be specific and technical in your description.`

// Defaults for the chat completion request
const (
	DefaultBaseURL     = "https://api.featherless.ai/v1"
	DefaultModel       = "google/gemma-3-27b-it"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.3
)

// ErrEmptyDescription is returned when the model answers with no text
var ErrEmptyDescription = errors.New("vision model returned no description")

// Describer produces a text description of an image
type Describer interface {
	Describe(ctx context.Context, image []byte, prompt string) (string, error)
}

// chatCompleter is the subset of *openai.Client used here
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures an OpenAI-compatible vision endpoint
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	MaxTokens         int
	Temperature       float32
	RequestsPerSecond float64
	Image             ImageOptions
	Retry             retry.Config
}

// Client describes images through a chat completion API that accepts
// image_url content parts.
type Client struct {
	completer   chatCompleter
	model       string
	maxTokens   int
	temperature float32
	image       ImageOptions
	retry       retry.Config
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// New creates a vision Client. An empty API key yields
// types.ErrCapabilityNotConfigured; use FromConfig to fall back to Disabled.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &types.CapabilityError{Capability: "vision"}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = DefaultBaseURL
	}

	return newClient(openai.NewClientWithConfig(clientCfg), cfg, logger), nil
}

func newClient(completer chatCompleter, cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		completer:   completer,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		image:       cfg.Image.withDefaults(),
		retry:       cfg.Retry,
		logger:      logger.With("component", "vision", "model", cfg.Model),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// FromConfig returns a Client, or Disabled when no API key is configured.
func FromConfig(cfg Config, logger *slog.Logger) (Describer, error) {
	c, err := New(cfg, logger)
	if errors.Is(err, types.ErrCapabilityNotConfigured) {
		return Disabled(), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Describe optimizes the image, sends it with prompt (DefaultPrompt when
// empty), and returns the trimmed description. Rate-limit and overload
// responses are retried; everything else fails immediately.
func (c *Client) Describe(ctx context.Context, image []byte, prompt string) (string, error) {
	optimized, err := Optimize(image, c.image)
	if err != nil {
		return "", err
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(optimized),
						},
					},
				},
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	attempt := 0
	description, err := retry.Do(ctx, c.retry, func(ctx context.Context) (string, error) {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		resp, err := c.completer.CreateChatCompletion(ctx, req)
		if err != nil {
			classified := retry.FromOpenAI(err)
			c.logger.Warn("image description failed",
				"attempt", attempt,
				"max_attempts", c.retry.MaxAttempts,
				"kind", retry.Classify(classified).String(),
				"error", err)
			return "", classified
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyDescription
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe image: %w", err)
	}

	c.logger.Debug("generated image description", "chars", len(description))
	return description, nil
}

// disabled is the Describer used when no vision endpoint is configured
type disabled struct{}

// Disabled returns a Describer that always fails with
// types.ErrCapabilityNotConfigured.
func Disabled() Describer {
	return disabled{}
}

func (disabled) Describe(context.Context, []byte, string) (string, error) {
	return "", &types.CapabilityError{Capability: "vision"}
}

// IsConfigured reports whether d can describe images.
func IsConfigured(d Describer) bool {
	if d == nil {
		return false
	}
	_, off := d.(disabled)
	return !off
}
