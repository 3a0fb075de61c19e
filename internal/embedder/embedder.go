package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be blank")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedding is the vector of one chunk or question title
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Key       string // CacheKey(Model, text)
}

// EmbeddingRequest asks for the vector of a single text
type EmbeddingRequest struct {
	Text string
}

// Validate rejects blank text
func (r EmbeddingRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// BatchEmbeddingRequest asks for the vectors of up to MaxBatchSize texts
type BatchEmbeddingRequest struct {
	Texts []string
}

// Validate rejects empty, oversized and blank-text batches
func (r BatchEmbeddingRequest) Validate() error {
	switch {
	case len(r.Texts) == 0:
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	case len(r.Texts) > MaxBatchSize:
		return fmt.Errorf("%w: %d texts, max %d", ErrBatchTooLarge, len(r.Texts), MaxBatchSize)
	}
	for i, text := range r.Texts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: text %d is blank", ErrInvalidInput, i)
		}
	}
	return nil
}

// BatchEmbeddingResponse holds one embedding per requested text, in order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder turns chunk texts and question titles into vectors.
// Every vector of one embedder has Dimension() elements.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)
	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// CacheKey identifies the embedding of text under model. Keys differ per
// model so a shared cache never serves vectors of another model.
func CacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// CacheStats reports cache occupancy and effectiveness
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Cache is an LRU of embeddings keyed by CacheKey. Safe for concurrent use.
type Cache struct {
	lru    *lru.Cache[string, *Embedding]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache holding at most size embeddings
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := lru.New[string, *Embedding](size)
	if err != nil {
		l, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{lru: l}
}

// Get returns a copy of the cached embedding
func (c *Cache) Get(key string) (*Embedding, bool) {
	emb, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	out := *emb
	out.Vector = append([]float32(nil), emb.Vector...)
	return &out, true
}

// Add stores emb under emb.Key
func (c *Cache) Add(emb *Embedding) {
	c.lru.Add(emb.Key, emb)
}

// Stats returns the current counters
func (c *Cache) Stats() CacheStats {
	return CacheStats{Entries: c.lru.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// EmbedAll embeds texts in batches of batchSize and returns the vectors in
// input order
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := e.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts[start:end]})
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(resp.Embeddings), end-start)
		}
		for _, emb := range resp.Embeddings {
			vectors = append(vectors, emb.Vector)
		}
	}
	return vectors, nil
}

// generateCached returns embeddings for texts, sending only cache misses to
// call. Fresh results are cached.
func generateCached(ctx context.Context, cache *Cache, texts []string, provider, model string,
	call func(ctx context.Context, texts []string) ([][]float32, error)) ([]*Embedding, error) {
	embeddings := make([]*Embedding, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if cache != nil {
			if emb, ok := cache.Get(CacheKey(model, text)); ok {
				embeddings[i] = emb
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return embeddings, nil
	}

	vectors, err := call(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(vectors), len(missing))
	}

	for j, vec := range vectors {
		i := missingIdx[j]
		emb := &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  provider,
			Model:     model,
			Key:       CacheKey(model, texts[i]),
		}
		if cache != nil {
			cache.Add(emb)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
