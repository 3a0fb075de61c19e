package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	key := CacheKey(DefaultJinaModel, "art. 86 ust. 1")
	assert.Len(t, key, 64)
	assert.Equal(t, key, CacheKey(DefaultJinaModel, "art. 86 ust. 1"))
	assert.NotEqual(t, key, CacheKey(DefaultOpenAIModel, "art. 86 ust. 1"), "keys are scoped by model")
	assert.NotEqual(t, CacheKey("ab", "c"), CacheKey("a", "bc"))
}

func TestEmbeddingRequestValidate(t *testing.T) {
	assert.NoError(t, EmbeddingRequest{Text: "art. 1"}.Validate())
	assert.ErrorIs(t, EmbeddingRequest{}.Validate(), ErrEmptyText)
	assert.ErrorIs(t, EmbeddingRequest{Text: " \n\t"}.Validate(), ErrEmptyText)
}

func TestBatchEmbeddingRequestValidate(t *testing.T) {
	tooMany := make([]string, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = "text"
	}

	tests := []struct {
		name    string
		texts   []string
		wantErr error
	}{
		{"valid batch", []string{"text1", "text2", "text3"}, nil},
		{"empty batch", []string{}, ErrInvalidInput},
		{"contains empty text", []string{"text1", "", "text3"}, ErrInvalidInput},
		{"contains blank text", []string{"text1", "   "}, ErrInvalidInput},
		{"too large", tooMany, ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := BatchEmbeddingRequest{Texts: tt.texts}.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("get returns a copy", func(t *testing.T) {
		cache := NewCache(3)

		_, ok := cache.Get("missing")
		assert.False(t, ok)

		cache.Add(&Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Provider: ProviderTEI, Key: "k1"})

		got, ok := cache.Get("k1")
		require.True(t, ok)
		assert.Equal(t, "k1", got.Key)

		got.Vector[0] = 99
		again, _ := cache.Get("k1")
		assert.Equal(t, float32(1), again.Vector[0])

		assert.Equal(t, CacheStats{Entries: 1, Hits: 2, Misses: 1}, cache.Stats())
	})

	t.Run("eviction on capacity", func(t *testing.T) {
		cache := NewCache(2)
		cache.Add(&Embedding{Key: "k1"})
		cache.Add(&Embedding{Key: "k2"})
		cache.Add(&Embedding{Key: "k3"})

		assert.Equal(t, 2, cache.Stats().Entries)
		_, ok := cache.Get("k1")
		assert.False(t, ok, "least recently used entry is evicted")
		_, ok = cache.Get("k3")
		assert.True(t, ok)
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewCache(100)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					key := CacheKey(DefaultLocalModel, fmt.Sprintf("text-%d-%d", id, j))
					cache.Add(&Embedding{Vector: []float32{float32(id), float32(j)}, Dimension: 2, Key: key})
					cache.Get(key)
				}
			}(i)
		}
		wg.Wait()

		stats := cache.Stats()
		assert.Equal(t, 100, stats.Entries)
		assert.Equal(t, int64(1000), stats.Hits+stats.Misses)
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	provider := NewLocalProvider(0, NewCache(10))
	assert.Equal(t, LocalDimension, provider.Dimension())
	assert.Equal(t, ProviderLocal, provider.Provider())
	assert.Equal(t, DefaultLocalModel, provider.Model())

	first, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "art. 86 ust. 1"})
	require.NoError(t, err)
	assert.Len(t, first.Vector, LocalDimension)
	assert.InDelta(t, 1.0, squaredNorm(first.Vector), 1e-4)

	again, err := NewLocalProvider(0, nil).GenerateEmbedding(ctx, EmbeddingRequest{Text: "art. 86 ust. 1"})
	require.NoError(t, err)
	assert.Equal(t, first.Vector, again.Vector, "vectors are deterministic")

	other, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "art. 87"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Vector, other.Vector)

	_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)

	assert.NoError(t, provider.Close())
}

func TestLocalProviderOddDimension(t *testing.T) {
	provider := NewLocalProvider(13, nil)
	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Len(t, resp.Embeddings[1].Vector, 13)
}

// countingEmbedder records batch sizes
type countingEmbedder struct {
	*LocalProvider
	batches []int
	failAt  int
}

func (c *countingEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	c.batches = append(c.batches, len(req.Texts))
	if c.failAt > 0 && len(c.batches) == c.failAt {
		return nil, errors.New("boom")
	}
	return c.LocalProvider.GenerateBatch(ctx, req)
}

func TestEmbedAll(t *testing.T) {
	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	e := &countingEmbedder{LocalProvider: NewLocalProvider(8, nil)}
	vectors, err := EmbedAll(context.Background(), e, texts, 0)
	require.NoError(t, err)
	assert.Len(t, vectors, 250)
	assert.Equal(t, []int{100, 100, 50}, e.batches)
	assert.Equal(t, hashVector("text 249", 8), vectors[249])

	e = &countingEmbedder{LocalProvider: NewLocalProvider(8, nil)}
	_, err = EmbedAll(context.Background(), e, texts[:10], 4)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 2}, e.batches)

	e = &countingEmbedder{LocalProvider: NewLocalProvider(8, nil), failAt: 2}
	_, err = EmbedAll(context.Background(), e, texts, 100)
	assert.Error(t, err)
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
		want  []float32
	}{
		{"unit vector", []float32{1, 0, 0}, []float32{1, 0, 0}},
		{"3-4-5 triangle", []float32{3, 4}, []float32{0.6, 0.8}},
		{"zero vector", []float32{0, 0, 0}, []float32{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.input)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-6)
			}
		})
	}
}

func squaredNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}
