package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexcite/internal/config"
)

func TestNew(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	tests := []struct {
		name      string
		cfg       config.EmbedderConfig
		env       map[string]string
		provider  string
		model     string
		dimension int
		wantErr   error
	}{
		{
			name:      "local by default",
			cfg:       config.EmbedderConfig{},
			provider:  ProviderLocal,
			model:     DefaultLocalModel,
			dimension: LocalDimension,
		},
		{
			name:      "tei defaults",
			cfg:       config.EmbedderConfig{Provider: "TEI"},
			provider:  ProviderTEI,
			model:     DefaultTEIModel,
			dimension: TEIDimension,
		},
		{
			name:      "jina with default key variable",
			cfg:       config.EmbedderConfig{Provider: ProviderJina},
			env:       map[string]string{EnvJinaAPIKey: "jina-key"},
			provider:  ProviderJina,
			model:     DefaultJinaModel,
			dimension: JinaDimension,
		},
		{
			name:      "openai with configured key variable and model",
			cfg:       config.EmbedderConfig{Provider: ProviderOpenAI, APIKeyEnv: "MY_KEY", Model: "text-embedding-3-large"},
			env:       map[string]string{"MY_KEY": "openai-key"},
			provider:  ProviderOpenAI,
			model:     "text-embedding-3-large",
			dimension: OpenAIDimension,
		},
		{
			name:    "jina without key",
			cfg:     config.EmbedderConfig{Provider: ProviderJina},
			wantErr: ErrNoProviderEnabled,
		},
		{
			name:    "unknown provider",
			cfg:     config.EmbedderConfig{Provider: "word2vec"},
			wantErr: ErrUnsupportedModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			emb, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer emb.Close()
			assert.Equal(t, tt.provider, emb.Provider())
			assert.Equal(t, tt.model, emb.Model())
			assert.Equal(t, tt.dimension, emb.Dimension())
		})
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, MaxRetries, p.Attempts)
	assert.Equal(t, "exponential", p.Backoff)
}
