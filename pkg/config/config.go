package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider      string  `yaml:"provider"`
		BaseURL       string  `yaml:"base_url"`
		APIKey        string  `yaml:"api_key"`
		Model         string  `yaml:"model"`
		MaxTokens     int     `yaml:"max_tokens"`
		Temperature   float64 `yaml:"temperature"`
		MaxToolRounds int     `yaml:"max_tool_rounds"`
	} `yaml:"llm"`

	Embedding struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		Model     string `yaml:"model"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"embedding"`

	Database struct {
		URL          string `yaml:"url"`
		CatalogTable string `yaml:"catalog_table"`
		ContentTable string `yaml:"content_table"`
		VectorDim    int    `yaml:"vector_dim"`
		BatchSize    int    `yaml:"batch_size"`
	} `yaml:"database"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Search struct {
		MaxResults int `yaml:"max_results"`
	} `yaml:"search"`

	Session struct {
		MaxHistory int `yaml:"max_history"`
	} `yaml:"session"`

	Ingest struct {
		DocsPath          string   `yaml:"docs_path"`
		RateLimit         float64  `yaml:"rate_limit"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
		IgnorePatterns    []string `yaml:"ignore_patterns"`
	} `yaml:"ingest"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/courserag/config.yaml"),
			"/etc/courserag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(config)
	applyDefaults(config)

	return config, nil
}

// newConfig presets the fields where zero is a meaningful setting, so an
// explicit 0 in the file survives applyDefaults.
func newConfig() *Config {
	config := &Config{}
	config.Processor.ChunkOverlap = 100
	config.Session.MaxHistory = 2
	return config
}

func getDefaultConfig() (*Config, error) {
	config := newConfig()
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = defaultModel(config.LLM.Provider)
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 800
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxToolRounds == 0 {
		config.LLM.MaxToolRounds = 1
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "ollama"
	}
	if config.Embedding.Model == "" {
		switch config.Embedding.Provider {
		case "openai":
			config.Embedding.Model = "text-embedding-3-small"
		case "ollama":
			config.Embedding.Model = "nomic-embed-text:latest"
		}
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == "ollama" {
		config.Embedding.BaseURL = config.LLM.BaseURL
		if config.Embedding.BaseURL == "" {
			config.Embedding.BaseURL = "http://localhost:11434"
		}
	}
	if config.Embedding.Dimension == 0 {
		config.Embedding.Dimension = 768
	}

	if config.Database.CatalogTable == "" {
		config.Database.CatalogTable = "course_catalog"
	}
	if config.Database.ContentTable == "" {
		config.Database.ContentTable = "course_content"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = config.Embedding.Dimension
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 800
	}

	if config.Search.MaxResults == 0 {
		config.Search.MaxResults = 5
	}

	if config.Ingest.DocsPath == "" {
		config.Ingest.DocsPath = "../docs"
	}
	if len(config.Ingest.AllowedExtensions) == 0 {
		config.Ingest.AllowedExtensions = []string{".txt"}
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8000"
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-3-5-haiku-latest"
	case "openai":
		return "gpt-4o-mini"
	default:
		return "llama3.1"
	}
}

func mergeWithEnv(config *Config) {
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = strings.ToLower(provider)
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.LLM.Provider == "" || config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
		if config.Embedding.BaseURL == "" && (config.Embedding.Provider == "" || config.Embedding.Provider == "ollama") {
			config.Embedding.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if config.LLM.APIKey == "" {
		switch config.LLM.Provider {
		case "anthropic":
			config.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			config.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if config.Embedding.APIKey == "" && config.Embedding.Provider == "openai" {
		config.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if rounds := os.Getenv("MAX_TOOL_ROUNDS"); rounds != "" {
		if n, err := strconv.Atoi(rounds); err == nil {
			config.LLM.MaxToolRounds = n
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
}
