package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		}
	case "openai", "anthropic":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: fmt.Sprintf("api key is required for provider %s", c.LLM.Provider),
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.MaxToolRounds < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tool_rounds",
			Message: "max_tool_rounds must be positive",
		})
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	// Validate Embedding config
	switch c.Embedding.Provider {
	case "ollama", "hash":
	case "openai":
		if c.Embedding.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "embedding.api_key",
				Message: "api key is required for provider openai",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.Embedding.Provider),
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Search.MaxResults < 1 {
		errors = append(errors, ValidationError{
			Field:   "search.max_results",
			Message: "max_results must be positive",
		})
	}

	if c.Session.MaxHistory < 0 {
		errors = append(errors, ValidationError{
			Field:   "session.max_history",
			Message: "max_history must not be negative",
		})
	}

	if c.Ingest.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "ingest.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	// Validate extensions format
	for _, ext := range c.Ingest.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			errors = append(errors, ValidationError{
				Field:   "ingest.allowed_extensions",
				Message: fmt.Sprintf("invalid extension format: %s", ext),
			})
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown log format: %s", c.Logging.Format),
		})
	}

	return errors
}
