// Package llm wraps chat completion behind a small client so callers and
// tests never depend on a concrete provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// Common errors.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrEmptyPrompt      = errors.New("empty prompt")
	ErrGenerationFailed = errors.New("generation failed")
)

// Config holds configuration for the chat model.
type Config struct {
	// BaseURL is the OpenAI-compatible endpoint. Empty uses the provider
	// default.
	BaseURL string `koanf:"base_url"`

	// Model is the chat model name.
	// Default: "gpt-3.5-turbo"
	Model string `koanf:"model"`

	// APIKey authenticates against the endpoint.
	APIKey string `koanf:"api_key"`

	// Temperature controls sampling randomness.
	// Default: 0.7
	Temperature float64 `koanf:"temperature"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-3.5-turbo"
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be in [0, 2]", ErrInvalidConfig)
	}
	return nil
}

// ConfigFromEnv builds a Config from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		BaseURL: os.Getenv("LLM_BASE_URL"),
		Model:   os.Getenv("LLM_MODEL"),
		APIKey:  os.Getenv("OPENAI_API_KEY"),
	}
	cfg.ApplyDefaults()
	return cfg
}

// Client generates a completion for a system/user prompt pair.
type Client struct {
	model       *openai.LLM
	temperature float64
	logger      *zap.Logger
}

// New creates a chat client against an OpenAI-compatible endpoint.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	} else {
		// Local OpenAI-compatible servers accept any token.
		opts = append(opts, openai.WithToken("placeholder"))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chat model: %w", err)
	}

	logger.Info("llm client initialized",
		zap.String("model", cfg.Model),
		zap.String("base_url", cfg.BaseURL),
	)

	return &Client{model: model, temperature: cfg.Temperature, logger: logger}, nil
}

// Generate returns the completion for the given system and user prompts.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	resp, err := c.model.GenerateContent(ctx, buildMessages(system, prompt), llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrGenerationFailed)
	}
	return resp.Choices[0].Content, nil
}

// buildMessages assembles the chat payload, omitting the system message
// when there is none.
func buildMessages(system, prompt string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 2)
	if system != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, prompt))
	return messages
}
