package embedding

import "fmt"

// FactoryConfig selects and configures exactly one embedding provider.
type FactoryConfig struct {
	// Provider is "openai" or "ollama".
	Provider string `json:"provider" yaml:"provider"`

	OpenAI OpenAIConfig `json:"openai" yaml:"openai"`
	Ollama OllamaConfig `json:"ollama" yaml:"ollama"`
}

// New builds the configured embedding Provider.
func New(cfg FactoryConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(cfg.OpenAI), nil
	case "ollama":
		return NewOllamaProvider(cfg.Ollama), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
