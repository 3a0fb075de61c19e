package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dshills/lexcite/internal/config"
	"github.com/dshills/lexcite/internal/embedder"
	"github.com/dshills/lexcite/internal/fetch"
	"github.com/dshills/lexcite/internal/index"
	"github.com/dshills/lexcite/internal/indexer"
	"github.com/dshills/lexcite/internal/loader"
	"github.com/dshills/lexcite/internal/logger"
	"github.com/dshills/lexcite/internal/mongostore"
	"github.com/dshills/lexcite/internal/portal"
	"github.com/dshills/lexcite/internal/storage"
	"github.com/dshills/lexcite/internal/validate"
	"github.com/dshills/lexcite/internal/vectorstore/qdrant"
)

// app holds the wired dependencies of one command invocation
type app struct {
	cfg       *config.AppConfig
	catalog   *index.Catalog
	docs      storage.Store
	vectors   storage.VectorStore
	ownsVecs  bool // false when vectors shares the document store handle
	indexer   *indexer.Indexer
	validator *validate.Validator
}

// loadConfig reads the config named by --config, or the default lookup
func loadConfig() (*config.AppConfig, error) {
	if dataDir != "" {
		if err := os.Setenv("LEXCITE_DATA_DIR", dataDir); err != nil {
			return nil, err
		}
	}

	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if configPath != "" {
		path = configPath
		cfg, err = config.Load(configPath)
	} else {
		cfg, path, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("Using config %s", path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// needsPortal reports whether any stage talks to the portal
func needsPortal(stages []indexer.Stage) bool {
	for _, s := range stages {
		switch s {
		case indexer.StageExtractQuestions, indexer.StageTransformQuestions,
			indexer.StageExtractActs, indexer.StageExtractKeywords:
			return true
		}
	}
	return false
}

// retryPolicy converts the retry section into a fetch policy
func retryPolicy(cfg config.RetryConfig) fetch.RetryPolicy {
	return fetch.RetryPolicy{
		Attempts: cfg.Attempts,
		Backoff:  cfg.Backoff,
		Base:     time.Duration(cfg.BaseSecs) * time.Second,
		Max:      time.Duration(cfg.MaxSecs) * time.Second,
	}
}

// newPortal builds the portal client. A missing session is only an error
// when strict is set.
func newPortal(cfg *config.AppConfig, strict bool) (*portal.Client, error) {
	if strict {
		if err := cfg.ValidatePortal(); err != nil {
			return nil, err
		}
	}

	opts := fetch.Options{
		Timeout:            time.Duration(cfg.Portal.TimeoutSecs) * time.Second,
		RequestsPerSecond:  cfg.Portal.RequestsPerSecond,
		Burst:              cfg.Portal.Burst,
		InsecureSkipVerify: cfg.Portal.InsecureSkipVerify,
		Retry:              retryPolicy(cfg.Retry),
	}
	session, err := portal.LoadSession(cfg.Portal.SessionFile)
	switch {
	case err == nil:
		opts.Session = session
	case errors.Is(err, portal.ErrNoSession) && !strict:
		logger.Debug("No portal session: %v", err)
	default:
		return nil, err
	}
	return portal.NewClient(fetch.New(opts), cfg)
}

// openDocumentStore opens the configured document store
func openDocumentStore(ctx context.Context, cfg *config.AppConfig) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "mongo":
		return mongostore.Connect(ctx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database)
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		return storage.NewSQLiteStorage(cfg.Storage.SQLitePath)
	}
}

// openVectorStore opens the configured vector store. The SQLite document
// store doubles as the vector store when both are sqlite.
func openVectorStore(cfg *config.AppConfig, docs storage.Store) (storage.VectorStore, bool, error) {
	if cfg.VectorStore.Type == "qdrant" {
		q := cfg.VectorStore.Qdrant
		store, err := qdrant.New(qdrant.Config{
			URL:                 q.URL,
			APIKey:              q.APIKey,
			ActsCollection:      q.ActsCollection,
			QuestionsCollection: q.QuestionsCollection,
			Timeout:             time.Duration(q.TimeoutSecs) * time.Second,
		})
		return store, true, err
	}
	if db, ok := docs.(*storage.SQLiteStorage); ok {
		return db, false, nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("failed to create data dir: %w", err)
	}
	db, err := storage.NewSQLiteStorage(cfg.Storage.SQLitePath)
	return db, true, err
}

// openApp wires config, stores and pipeline for the given stages
func openApp(ctx context.Context, stages []indexer.Stage) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	p, err := newPortal(cfg, needsPortal(stages))
	if err != nil {
		return nil, fmt.Errorf("failed to create portal client: %w", err)
	}
	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	docs, err := openDocumentStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	vectors, ownVectors, err := openVectorStore(cfg, docs)
	if err != nil {
		_ = docs.Close()
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	a := &app{
		cfg:      cfg,
		catalog:  index.NewCatalog(cfg.DataDir),
		docs:     docs,
		vectors:  vectors,
		ownsVecs: ownVectors,
	}

	ld := loader.New(docs, vectors, emb, loader.Options{
		StoreBatch: cfg.Transform.BatchSize,
		EmbedBatch: cfg.Embedder.BatchSize,
	})
	a.indexer, err = indexer.New(a.catalog, p, ld, indexer.ConfigFrom(cfg))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.validator = validate.New(a.catalog, docs, vectors)
	return a, nil
}

// Close releases the stores
func (a *app) Close() {
	if a.ownsVecs {
		if err := a.vectors.Close(); err != nil {
			logger.Warn("Failed to close vector store: %v", err)
		}
	}
	if err := a.docs.Close(); err != nil {
		logger.Warn("Failed to close document store: %v", err)
	}
}
