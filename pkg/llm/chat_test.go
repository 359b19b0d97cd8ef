package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/courserag/pkg/llm"
)

func TestNewModel(t *testing.T) {
	tests := []struct {
		name    string
		config  llm.ModelConfig
		wantErr string
	}{
		{name: "ollama defaults", config: llm.ModelConfig{}},
		{name: "ollama explicit", config: llm.ModelConfig{Provider: "ollama", Model: "mistral", BaseURL: "http://localhost:1234"}},
		{name: "openai", config: llm.ModelConfig{Provider: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"}},
		{name: "anthropic", config: llm.ModelConfig{Provider: "anthropic", APIKey: "key", Model: "claude-3-5-haiku-latest"}},
		{name: "openai without key", config: llm.ModelConfig{Provider: "openai"}, wantErr: "api key"},
		{name: "anthropic without key", config: llm.ModelConfig{Provider: "anthropic"}, wantErr: "api key"},
		{name: "unknown provider", config: llm.ModelConfig{Provider: "palm"}, wantErr: "unknown llm provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := llm.NewModel(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, model)
		})
	}
}
