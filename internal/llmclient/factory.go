package llmclient

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/api/schemas"
	"github.com/buildsight/rca-cli/internal/config"
)

// NewClient builds the tiered LLM client for the configured provider.
func NewClient(cfg config.LLMConfig, httpClient *http.Client, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		fast, err := NewGeminiClient(cfg.Fast, cfg.APIKey, httpClient, logger)
		if err != nil {
			return nil, fmt.Errorf("fast tier: %w", err)
		}
		powerful, err := NewGeminiClient(cfg.Powerful, cfg.APIKey, httpClient, logger)
		if err != nil {
			return nil, fmt.Errorf("powerful tier: %w", err)
		}
		return NewRouter(logger, fast, powerful)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider: %q. Supported: [%s]",
			cfg.Provider, config.ProviderGemini)
	}
}
