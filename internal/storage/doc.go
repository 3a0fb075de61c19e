// Package storage provides persistence for the retrieval index.
//
// The storage layer manages:
//   - Leaf acts (per-act citation tables)
//   - Act vectors (embeddable chunks keyed by act nro and reconstruct id)
//   - Keywords with their act relations
//   - Questions, including pruned ones
//   - Embeddings for the acts and questions collections
//
// # Interfaces
//
// Store is the document store. VectorStore holds embeddings. SQLiteStorage
// implements both; mongostore and qdrant provide network-backed versions.
//
// # Database Schema
//
// Tables:
//   - leaf_acts: act metadata and the reconstruct table as JSON
//   - act_vectors: chunks, UNIQUE(act_nro, reconstruct_id)
//   - keywords: UNIQUE(concept_id, instance_of_type)
//   - questions: question payloads keyed by nro
//   - vector_collections: collection names and their dimension
//   - embeddings: little-endian float32 blobs, UNIQUE(collection, point_key)
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("data/lexcite.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.UpsertLeafActs(ctx, []types.LeafAct{leaf}); err != nil {
//	    return err
//	}
//	got, err := db.GetLeafAct(ctx, leaf.Nro)
//	if errors.Is(err, storage.ErrNotFound) {
//	    // not loaded yet
//	}
//
// Every Upsert call writes its batch in one transaction. Writing the same
// document twice leaves one row.
//
// # Build Tags
//
// CGO Build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (default, purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
