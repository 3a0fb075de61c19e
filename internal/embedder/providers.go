package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/dshills/lexcite/internal/fetch"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderTEI    = "tei"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultTEIModel    = "sdadas/mmlw-retrieval-roberta-large"
	DefaultLocalModel  = "local-hash"

	// Default endpoints
	DefaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	DefaultOpenAIURL = "https://api.openai.com/v1/embeddings"
	DefaultTEIURL    = "http://localhost:8080"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	TEIDimension    = 1024
	LocalDimension  = 1024

	// Batch limits
	DefaultBatchSize = 100
	MaxBatchSize     = 100

	DefaultCacheSize = 10000
)

// bearer authenticates requests with an API key
type bearer string

func (b bearer) Apply(req *http.Request) {
	if b != "" {
		req.Header.Set("Authorization", "Bearer "+string(b))
	}
}

// APIProvider implements Embedder for OpenAI-compatible /embeddings APIs.
// Jina and OpenAI share this client.
type APIProvider struct {
	name      string
	url       string
	model     string
	dimension int
	fetcher   *fetch.Fetcher
	cache     *Cache
}

// NewAPIProvider creates an OpenAI-compatible embedder
func NewAPIProvider(name, url, apiKey, model string, dimension int, opts fetch.Options, cache *Cache) (*APIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key for %s", ErrNoProviderEnabled, name)
	}
	opts.Session = bearer(apiKey)
	return &APIProvider{
		name:      name,
		url:       url,
		model:     model,
		dimension: dimension,
		fetcher:   fetch.New(opts),
		cache:     cache,
	}, nil
}

func (p *APIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (p *APIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	embeddings, err := generateCached(ctx, p.cache, req.Texts, p.name, p.model, p.callAPI)
	if err != nil {
		return nil, err
	}
	return &BatchEmbeddingResponse{Embeddings: embeddings, Provider: p.name, Model: p.model}, nil
}

func (p *APIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]any{
		"input": texts,
		"model": p.model,
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := p.fetcher.PostJSON(ctx, p.url, reqBody, &apiResp); err != nil {
		return nil, err
	}

	// Results may come back out of order
	sort.SliceStable(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})
	vectors := make([][]float32, len(apiResp.Data))
	for i, data := range apiResp.Data {
		if p.dimension > 0 && len(data.Embedding) != p.dimension {
			return nil, fmt.Errorf("%w: %s returned %d, expected %d", ErrDimensionMismatch, p.name, len(data.Embedding), p.dimension)
		}
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

func (p *APIProvider) Dimension() int {
	return p.dimension
}

func (p *APIProvider) Provider() string {
	return p.name
}

func (p *APIProvider) Model() string {
	return p.model
}

func (p *APIProvider) Close() error {
	return p.fetcher.Close()
}

// TEIProvider implements Embedder for a text-embeddings-inference server
type TEIProvider struct {
	url       string
	model     string
	dimension int
	fetcher   *fetch.Fetcher
	cache     *Cache
}

// NewTEIProvider creates an embedder for the TEI server at baseURL
func NewTEIProvider(baseURL, model string, dimension int, opts fetch.Options, cache *Cache) *TEIProvider {
	return &TEIProvider{
		url:       strings.TrimRight(baseURL, "/") + "/embed",
		model:     model,
		dimension: dimension,
		fetcher:   fetch.New(opts),
		cache:     cache,
	}
}

func (t *TEIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := t.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (t *TEIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	embeddings, err := generateCached(ctx, t.cache, req.Texts, ProviderTEI, t.model, t.callAPI)
	if err != nil {
		return nil, err
	}
	return &BatchEmbeddingResponse{Embeddings: embeddings, Provider: ProviderTEI, Model: t.model}, nil
}

func (t *TEIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]any{
		"inputs":    texts,
		"normalize": true,
		"truncate":  true,
	}
	var vectors [][]float32
	if err := t.fetcher.PostJSON(ctx, t.url, reqBody, &vectors); err != nil {
		return nil, err
	}
	for _, v := range vectors {
		if t.dimension > 0 && len(v) != t.dimension {
			return nil, fmt.Errorf("%w: tei returned %d, expected %d", ErrDimensionMismatch, len(v), t.dimension)
		}
	}
	return vectors, nil
}

func (t *TEIProvider) Dimension() int {
	return t.dimension
}

func (t *TEIProvider) Provider() string {
	return ProviderTEI
}

func (t *TEIProvider) Model() string {
	return t.model
}

func (t *TEIProvider) Close() error {
	return t.fetcher.Close()
}

// LocalProvider derives deterministic unit vectors from a text hash. It
// needs no network and is meant for tests and dry runs.
type LocalProvider struct {
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a local embedder. A non-positive dimension
// means LocalDimension.
func NewLocalProvider(dimension int, cache *Cache) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension, cache: cache}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := l.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	embeddings, err := generateCached(ctx, l.cache, req.Texts, ProviderLocal, DefaultLocalModel, l.hashVectors)
	if err != nil {
		return nil, err
	}
	return &BatchEmbeddingResponse{Embeddings: embeddings, Provider: ProviderLocal, Model: DefaultLocalModel}, nil
}

func (l *LocalProvider) hashVectors(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashVector(text, l.dimension)
	}
	return vectors, nil
}

// hashVector expands SHA-256(counter || text) into dimension values in [-1, 1]
func hashVector(text string, dimension int) []float32 {
	vector := make([]float32, dimension)
	var counter [4]byte
	for block := 0; block*8 < dimension; block++ {
		binary.LittleEndian.PutUint32(counter[:], uint32(block))
		sum := sha256.Sum256(append(counter[:], text...))
		for j := 0; j < 8 && block*8+j < dimension; j++ {
			u := binary.LittleEndian.Uint32(sum[j*4:])
			vector[block*8+j] = float32(u)/float32(math.MaxUint32)*2 - 1
		}
	}
	return NormalizeVector(vector)
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return DefaultLocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
