package providers

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/apibrowse/llm"
)

// Config selects and configures exactly one chat adapter.
type Config struct {
	// Provider is "openai" or "ollama".
	Provider string `json:"provider" yaml:"provider"`

	OpenAI OpenAIConfig `json:"openai" yaml:"openai"`
	Ollama OllamaConfig `json:"ollama" yaml:"ollama"`
}

// New builds the configured llm.Provider.
func New(cfg Config, logger *zap.Logger) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(cfg.OpenAI, logger), nil
	case "ollama":
		return NewOllamaProvider(cfg.Ollama, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
