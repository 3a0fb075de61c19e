// Package embedder generates vector embeddings for act chunks and question
// titles.
//
// # Basic Usage
//
//	emb, err := embedder.New(cfg.Embedder)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	vectors, err := embedder.EmbedAll(ctx, emb, texts, embedder.DefaultBatchSize)
//
// # Providers
//
// jina and openai:
//   - OpenAI-compatible POST /embeddings with a bearer key
//   - Keys come from embedder.api_key_env, then JINA_API_KEY or OPENAI_API_KEY
//
// tei:
//   - A self-hosted text-embeddings-inference server (POST /embed)
//   - Default model sdadas/mmlw-retrieval-roberta-large, 1024 dimensions
//
// local:
//   - Deterministic unit vectors derived from SHA-256 of the text
//   - No network; used by tests and dry runs
//
// # Batching and Caching
//
// A batch holds at most MaxBatchSize texts. EmbedAll splits larger inputs.
// Every provider consults an LRU cache keyed by CacheKey(model, text) and
// only sends cache misses upstream. Cache.Stats reports hits and misses.
//
// # Error Handling
//
// Requests go through fetch.Fetcher, so timeouts, 429 and 5xx responses are
// retried with DefaultRetryPolicy. Other failures wrap ErrProviderFailed:
//
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // leave the batch for the next run
//	}
package embedder
