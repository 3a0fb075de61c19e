package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexcite/internal/fetch"
)

func fastRetry() fetch.Options {
	return fetch.Options{
		Timeout: 5 * time.Second,
		Retry:   fetch.RetryPolicy{Attempts: 3, Backoff: fetch.BackoffFixed, Base: time.Millisecond},
	}
}

// openAIServer answers /embeddings requests with vectors of dim, listed in
// reverse index order. status, when set, is returned for the first failures
// calls.
func openAIServer(t *testing.T, dim int, failures int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			w.WriteHeader(status)
			return
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[0] = float32(len(req.Input[i]))
			data = append(data, map[string]any{"index": i, "embedding": vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "data": data})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestAPIProvider(t *testing.T) {
	server, calls := openAIServer(t, JinaDimension, 0, 0)
	provider, err := NewAPIProvider(ProviderJina, server.URL, "test-key", DefaultJinaModel, JinaDimension, fastRetry(), NewCache(10))
	require.NoError(t, err)
	defer provider.Close()

	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "bbb"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, ProviderJina, resp.Provider)
	// results are put back in input order
	assert.Equal(t, float32(1), resp.Embeddings[0].Vector[0])
	assert.Equal(t, float32(3), resp.Embeddings[1].Vector[0])
	assert.Equal(t, CacheKey(DefaultJinaModel, "bbb"), resp.Embeddings[1].Key)
	assert.Equal(t, int32(1), calls.Load())

	// fully cached batches make no request
	single, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "bbb"})
	require.NoError(t, err)
	assert.Equal(t, float32(3), single.Vector[0])
	assert.Equal(t, int32(1), calls.Load())
}

func TestAPIProviderRequiresKey(t *testing.T) {
	_, err := NewAPIProvider(ProviderOpenAI, "http://unused", "", DefaultOpenAIModel, OpenAIDimension, fastRetry(), nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestAPIProviderRetry(t *testing.T) {
	t.Run("retries transient errors", func(t *testing.T) {
		server, calls := openAIServer(t, 4, 2, http.StatusServiceUnavailable)
		provider, err := NewAPIProvider(ProviderOpenAI, server.URL, "test-key", DefaultOpenAIModel, 4, fastRetry(), nil)
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "text"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		server, calls := openAIServer(t, 4, 5, http.StatusBadRequest)
		provider, err := NewAPIProvider(ProviderOpenAI, server.URL, "test-key", DefaultOpenAIModel, 4, fastRetry(), nil)
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "text"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		server, calls := openAIServer(t, 4, 10, http.StatusInternalServerError)
		provider, err := NewAPIProvider(ProviderOpenAI, server.URL, "test-key", DefaultOpenAIModel, 4, fastRetry(), nil)
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "text"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestAPIProviderDimensionMismatch(t *testing.T) {
	server, _ := openAIServer(t, 8, 0, 0)
	provider, err := NewAPIProvider(ProviderJina, server.URL, "test-key", DefaultJinaModel, JinaDimension, fastRetry(), nil)
	require.NoError(t, err)

	_, err = provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "text"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestTEIProvider(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		inputs := got["inputs"].([]any)
		out := make([][]float32, len(inputs))
		for i := range inputs {
			out[i] = []float32{float32(i), 1, 0}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	provider := NewTEIProvider(server.URL+"/", DefaultTEIModel, 3, fastRetry(), nil)
	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x", "y"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{1, 1, 0}, resp.Embeddings[1].Vector)
	assert.Equal(t, ProviderTEI, resp.Provider)
	assert.Equal(t, true, got["normalize"])
	assert.Equal(t, DefaultTEIModel, provider.Model())
	assert.NoError(t, provider.Close())
}

func TestContextCancellation(t *testing.T) {
	server, _ := openAIServer(t, 4, 100, http.StatusServiceUnavailable)
	opts := fetch.Options{Retry: fetch.RetryPolicy{Attempts: 5, Backoff: fetch.BackoffFixed, Base: time.Second}}
	provider, err := NewAPIProvider(ProviderOpenAI, server.URL, "test-key", DefaultOpenAIModel, 4, opts, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "text"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
