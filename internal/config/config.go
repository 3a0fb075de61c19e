// Package config loads lexcite configuration from YAML, .env and the
// process environment.
//
// Lookup order for the file is ./lexcite.yaml, then
// ~/.config/lexcite/config.yaml. A missing file yields defaults. Values from
// LEXCITE_* environment variables override the file, and a .env file in the
// working directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/lexcite/pkg/types"
)

// PayloadConfig holds upstream JSON request templates. Per-request fields
// (nro, pointInTime, startFrom, hitsPp, ...) are set on top of them.
type PayloadConfig struct {
	Question         string `yaml:"question"`
	QuestionActs     string `yaml:"question_acts"`
	QuestionKeywords string `yaml:"question_keywords"`
	QuestionSearch   string `yaml:"question_search"`
	ActKeywords      string `yaml:"act_keywords"`
	Keyword          string `yaml:"keyword"`
}

// PortalConfig describes the upstream legal portal endpoints.
type PortalConfig struct {
	QuestionURL         string        `yaml:"question_url"`
	QuestionActsURL     string        `yaml:"question_acts_url"`
	QuestionKeywordsURL string        `yaml:"question_keywords_url"`
	QuestionSearchURL   string        `yaml:"question_search_url"`
	ActURL              string        `yaml:"act_url"`
	ActContentURL       string        `yaml:"act_content_url"`
	ActKeywordsURL      string        `yaml:"act_keywords_url"`
	UnitsURL            string        `yaml:"units_url"`
	KeywordURL          string        `yaml:"keyword_url"`
	Payloads            PayloadConfig `yaml:"payloads"`
	SessionFile         string        `yaml:"session_file"`
	TimeoutSecs         int           `yaml:"timeout_secs"`
	RequestsPerSecond   float64       `yaml:"requests_per_second"`
	Burst               int           `yaml:"burst"`
	InsecureSkipVerify  bool          `yaml:"insecure_skip_verify"`
	PageSize            int           `yaml:"page_size"`
}

// ConcurrencyConfig caps in-flight requests per extraction call site.
type ConcurrencyConfig struct {
	QuestionSearch int `yaml:"question_search"`
	Questions      int `yaml:"questions"`
	Acts           int `yaml:"acts"`
	Keywords       int `yaml:"keywords"`
	Probes         int `yaml:"probes"`
}

// RetryConfig configures retry of transient upstream failures.
type RetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Backoff  string `yaml:"backoff"` // fixed or exponential
	BaseSecs int    `yaml:"base_secs"`
	MaxSecs  int    `yaml:"max_secs"`
}

// TransformConfig configures question pruning, act selection and chunking.
type TransformConfig struct {
	ChunkTokens               int      `yaml:"chunk_tokens"`
	Tokenizer                 string   `yaml:"tokenizer"` // estimate, words or a tiktoken encoding name
	ActMinCitations           int      `yaml:"act_min_citations"`
	KeepValidity              string   `yaml:"keep_validity"`
	StaleTitlePrefixes        []string `yaml:"stale_title_prefixes"`
	SyntheticCitationPrefixes []string `yaml:"synthetic_citation_prefixes"`
	BatchSize                 int      `yaml:"batch_size"`
}

// MongoConfig contains connection details for the MongoDB document store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// StorageConfig selects the document store.
type StorageConfig struct {
	Type       string       `yaml:"type"` // sqlite or mongo
	SQLitePath string       `yaml:"sqlite_path"`
	Mongo      *MongoConfig `yaml:"mongo,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL                 string `yaml:"url"`
	APIKey              string `yaml:"api_key"`
	ActsCollection      string `yaml:"acts_collection"`
	QuestionsCollection string `yaml:"questions_collection"`
	TimeoutSecs         int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects the vector store.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"` // sqlite or qdrant
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider    string `yaml:"provider"` // jina, openai, tei or local
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	CacheSize   int    `yaml:"cache_size"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DataDir     string            `yaml:"data_dir"`
	Domains     []types.Domain    `yaml:"domains"`
	Portal      PortalConfig      `yaml:"portal"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Retry       RetryConfig       `yaml:"retry"`
	Transform   TransformConfig   `yaml:"transform"`
	Storage     StorageConfig     `yaml:"storage"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
}

// Partition returns the configured domain partition, nil for the whole corpus.
func (c *AppConfig) Partition() types.Partition {
	if len(c.Domains) == 0 {
		return nil
	}
	return types.Partition(c.Domains)
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	// A missing .env is normal
	_ = godotenv.Load()

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./lexcite.yaml first, then ~/.config/lexcite/config.yaml.
// If neither exists, defaults are returned without writing anything.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "lexcite.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks settings that have no usable default.
func (c *AppConfig) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Transform.ChunkTokens <= 0 {
		return errors.New("transform.chunk_tokens must be positive")
	}
	if c.Transform.ActMinCitations < 1 {
		return errors.New("transform.act_min_citations must be at least 1")
	}
	switch c.Retry.Backoff {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("retry.backoff must be fixed or exponential, got %q", c.Retry.Backoff)
	}
	switch c.Storage.Type {
	case "sqlite":
	case "mongo":
		if c.Storage.Mongo == nil || c.Storage.Mongo.URI == "" {
			return errors.New("storage.mongo.uri is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	switch c.VectorStore.Type {
	case "sqlite":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return errors.New("vector_store.qdrant.url is required for the qdrant store")
		}
	default:
		return fmt.Errorf("unknown vector store type %q", c.VectorStore.Type)
	}
	return nil
}

// ValidatePortal checks that the endpoints needed for extraction are set.
func (c *AppConfig) ValidatePortal() error {
	required := map[string]string{
		"portal.question_url":          c.Portal.QuestionURL,
		"portal.question_acts_url":     c.Portal.QuestionActsURL,
		"portal.question_keywords_url": c.Portal.QuestionKeywordsURL,
		"portal.question_search_url":   c.Portal.QuestionSearchURL,
		"portal.act_url":               c.Portal.ActURL,
		"portal.act_keywords_url":      c.Portal.ActKeywordsURL,
		"portal.units_url":             c.Portal.UnitsURL,
		"portal.keyword_url":           c.Portal.KeywordURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required for extraction", name)
		}
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lexcite", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		DataDir: "data",
		Portal: PortalConfig{
			SessionFile:       "session.json",
			TimeoutSecs:       25,
			RequestsPerSecond: 20,
			Burst:             10,
			PageSize:          25,
		},
		Concurrency: ConcurrencyConfig{
			QuestionSearch: 60,
			Questions:      25,
			Acts:           10,
			Keywords:       10,
			Probes:         25,
		},
		Retry: RetryConfig{Attempts: 3, Backoff: "fixed", BaseSecs: 2, MaxSecs: 60},
		Transform: TransformConfig{
			ChunkTokens:               512,
			Tokenizer:                 "estimate",
			ActMinCitations:           1,
			KeepValidity:              "ACTUAL",
			StaleTitlePrefixes:        []string{"Zmiana ", "Zm.: "},
			SyntheticCitationPrefixes: []string{"all", "ks", "dz", "roz", "tyt"},
			BatchSize:                 25,
		},
		Storage:     StorageConfig{Type: "sqlite"},
		VectorStore: VectorStoreConfig{Type: "sqlite"},
		Embedder:    EmbedderConfig{Provider: "local", CacheSize: 10000, BatchSize: 100, TimeoutSecs: 30},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.Portal.TimeoutSecs == 0 {
		cfg.Portal.TimeoutSecs = def.Portal.TimeoutSecs
	}
	if cfg.Portal.PageSize == 0 {
		cfg.Portal.PageSize = def.Portal.PageSize
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = def.Retry.Attempts
	}
	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = def.Retry.Backoff
	}
	if cfg.Transform.ChunkTokens == 0 {
		cfg.Transform.ChunkTokens = def.Transform.ChunkTokens
	}
	if cfg.Transform.ActMinCitations == 0 {
		cfg.Transform.ActMinCitations = def.Transform.ActMinCitations
	}
	if cfg.Transform.BatchSize == 0 {
		cfg.Transform.BatchSize = def.Transform.BatchSize
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = def.Storage.Type
	}
	if cfg.Storage.Type == "sqlite" && cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.DataDir, "lexcite.db")
	}
	if cfg.Storage.Type == "mongo" && cfg.Storage.Mongo != nil && cfg.Storage.Mongo.Database == "" {
		cfg.Storage.Mongo.Database = "lexcite"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.ActsCollection == "" {
			cfg.VectorStore.Qdrant.ActsCollection = "acts"
		}
		if cfg.VectorStore.Qdrant.QuestionsCollection == "" {
			cfg.VectorStore.Qdrant.QuestionsCollection = "questions"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = def.Embedder.Provider
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = def.Embedder.BatchSize
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = def.Embedder.TimeoutSecs
	}
}

// applyEnv overlays LEXCITE_* environment variables.
func applyEnv(cfg *AppConfig) {
	strs := map[string]*string{
		"LEXCITE_DATA_DIR":              &cfg.DataDir,
		"LEXCITE_SESSION_FILE":          &cfg.Portal.SessionFile,
		"LEXCITE_QUESTION_URL":          &cfg.Portal.QuestionURL,
		"LEXCITE_QUESTION_ACTS_URL":     &cfg.Portal.QuestionActsURL,
		"LEXCITE_QUESTION_KEYWORDS_URL": &cfg.Portal.QuestionKeywordsURL,
		"LEXCITE_QUESTION_SEARCH_URL":   &cfg.Portal.QuestionSearchURL,
		"LEXCITE_ACT_URL":               &cfg.Portal.ActURL,
		"LEXCITE_ACT_CONTENT_URL":       &cfg.Portal.ActContentURL,
		"LEXCITE_ACT_KEYWORDS_URL":      &cfg.Portal.ActKeywordsURL,
		"LEXCITE_UNITS_URL":             &cfg.Portal.UnitsURL,
		"LEXCITE_KEYWORD_URL":           &cfg.Portal.KeywordURL,
		"LEXCITE_QUESTION_PAYLOAD":      &cfg.Portal.Payloads.Question,
		"LEXCITE_QUESTION_ACTS_PAYLOAD": &cfg.Portal.Payloads.QuestionActs,
		"LEXCITE_QUESTION_KW_PAYLOAD":   &cfg.Portal.Payloads.QuestionKeywords,
		"LEXCITE_SEARCH_PAYLOAD":        &cfg.Portal.Payloads.QuestionSearch,
		"LEXCITE_ACT_KEYWORDS_PAYLOAD":  &cfg.Portal.Payloads.ActKeywords,
		"LEXCITE_KEYWORD_PAYLOAD":       &cfg.Portal.Payloads.Keyword,
		"LEXCITE_EMBEDDING_PROVIDER":    &cfg.Embedder.Provider,
		"LEXCITE_EMBEDDING_MODEL":       &cfg.Embedder.Model,
		"LEXCITE_EMBEDDING_URL":         &cfg.Embedder.BaseURL,
	}
	for env, field := range strs {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*field = v
		}
	}
	if v := os.Getenv("LEXCITE_ACT_MIN_CITATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Transform.ActMinCitations = n
		}
	}
	if v := os.Getenv("LEXCITE_MONGO_URI"); v != "" {
		if cfg.Storage.Mongo == nil {
			cfg.Storage.Mongo = &MongoConfig{Database: "lexcite"}
		}
		cfg.Storage.Mongo.URI = v
	}
	if v := os.Getenv("LEXCITE_QDRANT_API_KEY"); v != "" && cfg.VectorStore.Qdrant != nil {
		cfg.VectorStore.Qdrant.APIKey = v
	}
}
