package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ModelConfig selects and configures the chat model.
type ModelConfig struct {
	Provider string // ollama, openai or anthropic
	Model    string
	BaseURL  string
	APIKey   string
}

// NewModel creates the chat model named by config.Provider.
func NewModel(config ModelConfig) (llms.Model, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}

	switch config.Provider {
	case "ollama":
		if config.Model == "" {
			config.Model = "llama3.1"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		llm, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		return llm, nil

	case "openai":
		if config.APIKey == "" {
			return nil, errors.New("openai provider needs an api key")
		}
		opts := []openai.Option{openai.WithToken(config.APIKey)}
		if config.Model != "" {
			opts = append(opts, openai.WithModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		return llm, nil

	case "anthropic":
		if config.APIKey == "" {
			return nil, errors.New("anthropic provider needs an api key")
		}
		opts := []anthropic.Option{anthropic.WithToken(config.APIKey)}
		if config.Model != "" {
			opts = append(opts, anthropic.WithModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
		}
		llm, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		return llm, nil
	}

	return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
}

// CheckConnection sends a minimal prompt to confirm the model is reachable.
func CheckConnection(ctx context.Context, model llms.Model) error {
	_, err := model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "ping"),
	}, llms.WithMaxTokens(1))
	if err != nil {
		return fmt.Errorf("llm connection check failed: %w", err)
	}
	return nil
}
