// Package loader writes transformed acts, keywords and questions to the
// retrieval stores.
//
// # Basic Usage
//
//	l := loader.New(docs, vectors, emb, loader.Options{})
//	receipts, stats, err := l.LoadActs(ctx, documents)
//	if err != nil {
//	    return err
//	}
//	loaded.Commit(receipts, partition)
//
// # Reconciliation
//
// After each upsert batch every document is read back by key. Only
// documents that read back produce a receipt, so anything else stays
// pending in the loaded index and is retried on the next run.
//
// # Embedding
//
// Act vectors are embedded by their chunk text. Questions are embedded by
// title. Pruned questions are neither stored nor embedded; they receive a
// receipt marked Skipped.
package loader
