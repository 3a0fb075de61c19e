// Package indexer coordinates the end-to-end pipeline that turns portal
// questions, acts and keywords into a retrieval index.
//
// # Basic Usage
//
//	catalog := index.NewCatalog(cfg.DataDir)
//	ld := loader.New(docs, vectors, emb, loader.Options{})
//	idx, err := indexer.New(catalog, portalClient, ld, indexer.ConfigFrom(cfg))
//
//	stats, err := idx.Run(ctx, nil) // every stage
//	fmt.Printf("Run %s finished in %v\n", stats.RunID, stats.Duration)
//
// # Pipeline
//
// Each entity moves through not-yet-fetched, fetched, transformed and
// loaded. Stages run in a fixed order:
//
//  1. extract-questions: page through the question search, fetch new questions
//  2. transform-questions: drop unusable citations, prune questions
//  3. select-acts: acts cited by at least act_min_citations questions
//  4. extract-acts: fetch selected acts not yet extracted
//  5. derive-keywords: keywords of kept questions and extracted acts
//  6. extract-keywords: fetch keyword relation listings
//  7. transform-keywords: restrict relations to extracted acts, back-fill
//  8. transform-acts: build trees, propagate keywords, chunk
//  9. load: write questions, keywords and acts to the retrieval stores
//
// # Incremental Runs
//
// Every stage computes its input as the known keys minus the keys its
// own index already holds:
//
//	missing, _ := catalog.RawActs().FindMissing(selected, partition)
//
// A run interrupted at any point resumes where it stopped. Failed fetches
// and loads are not indexed and are picked up on the next run.
//
// # Concurrency
//
// Fetches within a batch run under a per-entity semaphore via fetch.Gather.
// Workers return values only. After each barrier the coordinating
// goroutine writes the data file and then the index file:
//
//	res := fetch.Gather(ctx, sem, batch, portal.Act)
//	rawActs.Commit(res.Values(), partition)
//
// An IndexLock rejects a second Run while one is active (ErrRunInProgress).
//
// # Error Handling
//
// Run returns an error only when an index cannot be read or written, or
// the context is canceled. Item failures are counted per stage and kept
// in Statistics.ErrorMessages:
//
//	stats, err := idx.Run(ctx, []indexer.Stage{indexer.StageLoad})
//	if st, ok := stats.Stage(indexer.StageLoad); ok && st.Failed > 0 {
//	    for _, msg := range stats.ErrorMessages {
//	        log.Println(msg)
//	    }
//	}
//
// A stage with nothing pending is a no-op success.
package indexer
