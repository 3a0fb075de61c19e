package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 512, cfg.Transform.ChunkTokens)
	assert.Equal(t, 1, cfg.Transform.ActMinCitations)
	assert.Equal(t, 25, cfg.Transform.BatchSize)
	assert.Equal(t, 60, cfg.Concurrency.QuestionSearch)
	assert.Equal(t, 10, cfg.Concurrency.Acts)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, "fixed", cfg.Retry.Backoff)
	assert.Equal(t, []string{"Zmiana ", "Zm.: "}, cfg.Transform.StaleTitlePrefixes)
	assert.Equal(t, filepath.Join("data", "lexcite.db"), cfg.Storage.SQLitePath)
	assert.Nil(t, cfg.Partition())
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexcite.yaml")
	content := `
data_dir: /var/lib/lexcite
domains:
  - label: cywilne
    concept_id: 12
transform:
  chunk_tokens: 256
  act_min_citations: 100
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/lexcite", cfg.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/lexcite", "lexcite.db"), cfg.Storage.SQLitePath)
	assert.Equal(t, 256, cfg.Transform.ChunkTokens)
	assert.Equal(t, 100, cfg.Transform.ActMinCitations)
	assert.Equal(t, "ACTUAL", cfg.Transform.KeepValidity)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "acts", cfg.VectorStore.Qdrant.ActsCollection)
	assert.Equal(t, "questions", cfg.VectorStore.Qdrant.QuestionsCollection)
	require.Len(t, cfg.Partition(), 1)
	assert.Equal(t, "12", cfg.Partition().Name())
	assert.NoError(t, cfg.Validate())
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transform: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LEXCITE_DATA_DIR", "/tmp/lexcite-env")
	t.Setenv("LEXCITE_QUESTION_URL", "https://portal.example/question")
	t.Setenv("LEXCITE_ACT_MIN_CITATIONS", "5")
	t.Setenv("LEXCITE_MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/lexcite-env", cfg.DataDir)
	assert.Equal(t, "https://portal.example/question", cfg.Portal.QuestionURL)
	assert.Equal(t, 5, cfg.Transform.ActMinCitations)
	require.NotNil(t, cfg.Storage.Mongo)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "lexcite", cfg.Storage.Mongo.Database)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"zero budget", func(c *AppConfig) { c.Transform.ChunkTokens = -1 }},
		{"zero threshold", func(c *AppConfig) { c.Transform.ActMinCitations = 0 }},
		{"unknown backoff", func(c *AppConfig) { c.Retry.Backoff = "jitter" }},
		{"mongo without uri", func(c *AppConfig) { c.Storage.Type = "mongo" }},
		{"qdrant without url", func(c *AppConfig) { c.VectorStore.Type = "qdrant" }},
		{"unknown store", func(c *AppConfig) { c.Storage.Type = "postgres" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			applyConfigDefaults(cfg)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidatePortal(t *testing.T) {
	cfg := defaultConfig()
	assert.Error(t, cfg.ValidatePortal())

	cfg.Portal.QuestionURL = "u"
	cfg.Portal.QuestionActsURL = "u"
	cfg.Portal.QuestionKeywordsURL = "u"
	cfg.Portal.QuestionSearchURL = "u"
	cfg.Portal.ActURL = "u"
	cfg.Portal.ActKeywordsURL = "u"
	cfg.Portal.UnitsURL = "u"
	cfg.Portal.KeywordURL = "u"
	assert.NoError(t, cfg.ValidatePortal())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Transform.ActMinCitations = 42

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Transform.ActMinCitations)
}
