package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dshills/lexcite/internal/config"
	"github.com/dshills/lexcite/internal/fetch"
)

// Environment variables holding provider API keys
const (
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// New creates an embedder from the embedder section of the config
func New(cfg config.EmbedderConfig) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	opts := fetch.Options{
		Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		Retry:   DefaultRetryPolicy(),
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderJina:
		return NewAPIProvider(ProviderJina,
			orDefault(cfg.BaseURL, DefaultJinaURL),
			apiKey(cfg.APIKeyEnv, EnvJinaAPIKey),
			orDefault(cfg.Model, DefaultJinaModel),
			JinaDimension, opts, cache)
	case ProviderOpenAI:
		return NewAPIProvider(ProviderOpenAI,
			orDefault(cfg.BaseURL, DefaultOpenAIURL),
			apiKey(cfg.APIKeyEnv, EnvOpenAIAPIKey),
			orDefault(cfg.Model, DefaultOpenAIModel),
			OpenAIDimension, opts, cache)
	case ProviderTEI:
		return NewTEIProvider(
			orDefault(cfg.BaseURL, DefaultTEIURL),
			orDefault(cfg.Model, DefaultTEIModel),
			TEIDimension, opts, cache), nil
	case ProviderLocal, "":
		return NewLocalProvider(LocalDimension, cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// apiKey reads the key from the configured variable, then the provider default
func apiKey(configured, fallback string) string {
	if configured != "" {
		if v := os.Getenv(configured); v != "" {
			return v
		}
	}
	return os.Getenv(fallback)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
