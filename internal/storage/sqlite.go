package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dshills/lexcite/pkg/types"
)

// SQLiteStorage implements Store and VectorStore using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

var (
	_ Store       = (*SQLiteStorage)(nil)
	_ VectorStore = (*SQLiteStorage)(nil)
)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// withTx runs fn in a transaction, committing only if fn succeeds
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Leaf act operations

func (s *SQLiteStorage) upsertLeafActWithQuerier(ctx context.Context, q querier, act *types.LeafAct) error {
	reconstruct, err := json.Marshal(act.Reconstruct)
	if err != nil {
		return fmt.Errorf("failed to encode reconstruct table for act %d: %w", act.Nro, err)
	}
	query := `
		INSERT INTO leaf_acts (nro, title, act_law_type, cite_link, reconstruct, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(nro) DO UPDATE SET
			title = excluded.title,
			act_law_type = excluded.act_law_type,
			cite_link = excluded.cite_link,
			reconstruct = excluded.reconstruct,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	if _, err := q.ExecContext(ctx, query,
		act.Nro, act.Title, act.ActLawType, act.CiteLink, string(reconstruct), now, now); err != nil {
		return fmt.Errorf("failed to upsert leaf act %d: %w", act.Nro, err)
	}
	return nil
}

// UpsertLeafActs stores acts in one transaction
func (s *SQLiteStorage) UpsertLeafActs(ctx context.Context, acts []types.LeafAct) error {
	return s.withTx(ctx, func(q querier) error {
		for i := range acts {
			if err := s.upsertLeafActWithQuerier(ctx, q, &acts[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) GetLeafAct(ctx context.Context, nro int) (*types.LeafAct, error) {
	query := `
		SELECT nro, title, act_law_type, cite_link, reconstruct
		FROM leaf_acts WHERE nro = ?
	`
	var act types.LeafAct
	var reconstruct string
	err := s.querier().QueryRowContext(ctx, query, nro).Scan(
		&act.Nro, &act.Title, &act.ActLawType, &act.CiteLink, &reconstruct)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leaf act %d: %w", nro, err)
	}
	if err := json.Unmarshal([]byte(reconstruct), &act.Reconstruct); err != nil {
		return nil, fmt.Errorf("failed to decode reconstruct table for act %d: %w", nro, err)
	}
	return &act, nil
}

// Act vector operations

func (s *SQLiteStorage) upsertActVectorWithQuerier(ctx context.Context, q querier, v *types.ActVector) error {
	nodeIDs, err := json.Marshal(nonNilStrings(v.NodeIDs))
	if err != nil {
		return fmt.Errorf("failed to encode node ids for %s: %w", v.Key(), err)
	}
	keywords, err := json.Marshal(nonNilKeywords(v.Keywords))
	if err != nil {
		return fmt.Errorf("failed to encode keywords for %s: %w", v.Key(), err)
	}

	// chunk_id and total_chunks stay NULL for unsplit subtrees
	var chunkID, totalChunks interface{}
	if v.ChunkID != nil {
		chunkID = *v.ChunkID
	}
	if v.TotalChunks != nil {
		totalChunks = *v.TotalChunks
	}

	query := `
		INSERT INTO act_vectors (
			act_nro, reconstruct_id, parent_id, text,
			parent_tokens, text_tokens, parentless_tokens,
			chunk_id, total_chunks, node_ids, keywords, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(act_nro, reconstruct_id) DO UPDATE SET
			parent_id = excluded.parent_id,
			text = excluded.text,
			parent_tokens = excluded.parent_tokens,
			text_tokens = excluded.text_tokens,
			parentless_tokens = excluded.parentless_tokens,
			chunk_id = excluded.chunk_id,
			total_chunks = excluded.total_chunks,
			node_ids = excluded.node_ids,
			keywords = excluded.keywords,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	if _, err := q.ExecContext(ctx, query,
		v.ActNro, v.ReconstructID, v.ParentID, v.Text,
		v.ParentTokens, v.TextTokens, v.ParentlessTokens,
		chunkID, totalChunks, string(nodeIDs), string(keywords), now, now); err != nil {
		return fmt.Errorf("failed to upsert act vector %s: %w", v.Key(), err)
	}
	return nil
}

// UpsertActVectors stores vectors in one transaction
func (s *SQLiteStorage) UpsertActVectors(ctx context.Context, vectors []types.ActVector) error {
	return s.withTx(ctx, func(q querier) error {
		for i := range vectors {
			if err := s.upsertActVectorWithQuerier(ctx, q, &vectors[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) GetActVector(ctx context.Context, actNro int, reconstructID string) (*types.ActVector, error) {
	query := `
		SELECT act_nro, reconstruct_id, parent_id, text,
			parent_tokens, text_tokens, parentless_tokens,
			chunk_id, total_chunks, node_ids, keywords
		FROM act_vectors WHERE act_nro = ? AND reconstruct_id = ?
	`
	var v types.ActVector
	var chunkID, totalChunks sql.NullInt64
	var nodeIDs, keywords string
	err := s.querier().QueryRowContext(ctx, query, actNro, reconstructID).Scan(
		&v.ActNro, &v.ReconstructID, &v.ParentID, &v.Text,
		&v.ParentTokens, &v.TextTokens, &v.ParentlessTokens,
		&chunkID, &totalChunks, &nodeIDs, &keywords)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get act vector %d/%s: %w", actNro, reconstructID, err)
	}

	if chunkID.Valid {
		v.ChunkID = types.IntPtr(int(chunkID.Int64))
	}
	if totalChunks.Valid {
		v.TotalChunks = types.IntPtr(int(totalChunks.Int64))
	}
	if err := json.Unmarshal([]byte(nodeIDs), &v.NodeIDs); err != nil {
		return nil, fmt.Errorf("failed to decode node ids for %s: %w", v.Key(), err)
	}
	if err := json.Unmarshal([]byte(keywords), &v.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords for %s: %w", v.Key(), err)
	}
	return &v, nil
}

// Keyword operations

func (s *SQLiteStorage) upsertKeywordWithQuerier(ctx context.Context, q querier, kw *types.Keyword) error {
	relations := kw.ActRelations
	if relations == nil {
		relations = []types.ActRelation{}
	}
	encoded, err := json.Marshal(relations)
	if err != nil {
		return fmt.Errorf("failed to encode relations for keyword %s: %w", kw.Ref().Key(), err)
	}
	query := `
		INSERT INTO keywords (concept_id, instance_of_type, label, act_relations, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(concept_id, instance_of_type) DO UPDATE SET
			label = excluded.label,
			act_relations = excluded.act_relations,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	if _, err := q.ExecContext(ctx, query,
		kw.ConceptID, kw.InstanceOfType, kw.Label, string(encoded), now, now); err != nil {
		return fmt.Errorf("failed to upsert keyword %s: %w", kw.Ref().Key(), err)
	}
	return nil
}

// UpsertKeywords stores keywords in one transaction
func (s *SQLiteStorage) UpsertKeywords(ctx context.Context, keywords []types.Keyword) error {
	return s.withTx(ctx, func(q querier) error {
		for i := range keywords {
			if err := s.upsertKeywordWithQuerier(ctx, q, &keywords[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) GetKeyword(ctx context.Context, ref types.KeywordRef) (*types.Keyword, error) {
	query := `
		SELECT concept_id, instance_of_type, label, act_relations
		FROM keywords WHERE concept_id = ? AND instance_of_type = ?
	`
	var kw types.Keyword
	var relations string
	err := s.querier().QueryRowContext(ctx, query, ref.ConceptID, ref.InstanceOfType).Scan(
		&kw.ConceptID, &kw.InstanceOfType, &kw.Label, &relations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get keyword %s: %w", ref.Key(), err)
	}
	if err := json.Unmarshal([]byte(relations), &kw.ActRelations); err != nil {
		return nil, fmt.Errorf("failed to decode relations for keyword %s: %w", ref.Key(), err)
	}
	return &kw, nil
}

// Question operations

func (s *SQLiteStorage) upsertQuestionWithQuerier(ctx context.Context, q querier, question *types.Question) error {
	payload, err := json.Marshal(question)
	if err != nil {
		return fmt.Errorf("failed to encode question %d: %w", question.Nro, err)
	}
	query := `
		INSERT INTO questions (nro, title, pruned, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(nro) DO UPDATE SET
			title = excluded.title,
			pruned = excluded.pruned,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	if _, err := q.ExecContext(ctx, query,
		question.Nro, question.Title, question.Pruned, string(payload), now, now); err != nil {
		return fmt.Errorf("failed to upsert question %d: %w", question.Nro, err)
	}
	return nil
}

// UpsertQuestions stores questions in one transaction
func (s *SQLiteStorage) UpsertQuestions(ctx context.Context, questions []types.Question) error {
	return s.withTx(ctx, func(q querier) error {
		for i := range questions {
			if err := s.upsertQuestionWithQuerier(ctx, q, &questions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) GetQuestion(ctx context.Context, nro int) (*types.Question, error) {
	var payload string
	err := s.querier().QueryRowContext(ctx, "SELECT payload FROM questions WHERE nro = ?", nro).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question %d: %w", nro, err)
	}
	var question types.Question
	if err := json.Unmarshal([]byte(payload), &question); err != nil {
		return nil, fmt.Errorf("failed to decode question %d: %w", nro, err)
	}
	return &question, nil
}

// Counts returns the number of stored documents per table
func (s *SQLiteStorage) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	tables := []struct {
		name string
		dest *int
	}{
		{"leaf_acts", &counts.LeafActs},
		{"act_vectors", &counts.ActVectors},
		{"keywords", &counts.Keywords},
		{"questions", &counts.Questions},
	}
	for _, t := range tables {
		if err := s.countRows(ctx, "SELECT COUNT(*) FROM "+t.name, t.dest); err != nil {
			return Counts{}, fmt.Errorf("failed to count %s: %w", t.name, err)
		}
	}
	return counts, nil
}

func (s *SQLiteStorage) countRows(ctx context.Context, query string, dest *int, args ...interface{}) error {
	return s.querier().QueryRowContext(ctx, query, args...).Scan(dest)
}

// Vector operations

// EnsureCollections registers the acts and questions collections. An
// existing collection with another dimension is an error.
func (s *SQLiteStorage) EnsureCollections(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	return s.withTx(ctx, func(q querier) error {
		for _, name := range []string{ActsCollection, QuestionsCollection} {
			var existing int
			err := q.QueryRowContext(ctx, "SELECT dimension FROM vector_collections WHERE name = ?", name).Scan(&existing)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				if _, err := q.ExecContext(ctx,
					"INSERT INTO vector_collections (name, dimension) VALUES (?, ?)", name, dimension); err != nil {
					return fmt.Errorf("failed to create collection %s: %w", name, err)
				}
			case err != nil:
				return fmt.Errorf("failed to read collection %s: %w", name, err)
			case existing != dimension:
				return fmt.Errorf("%w: collection %s has %d, requested %d", ErrDimensionMismatch, name, existing, dimension)
			}
		}
		return nil
	})
}

// UpsertActEmbeddings stores one point per act vector key
func (s *SQLiteStorage) UpsertActEmbeddings(ctx context.Context, vectors []types.ActVector, embeddings [][]float32) error {
	keys := make([]string, len(vectors))
	for i := range vectors {
		keys[i] = vectors[i].Key()
	}
	return s.upsertPoints(ctx, ActsCollection, keys, embeddings)
}

// UpsertQuestionEmbeddings stores one point per question nro
func (s *SQLiteStorage) UpsertQuestionEmbeddings(ctx context.Context, questions []types.Question, embeddings [][]float32) error {
	keys := make([]string, len(questions))
	for i := range questions {
		keys[i] = strconv.Itoa(questions[i].Nro)
	}
	return s.upsertPoints(ctx, QuestionsCollection, keys, embeddings)
}

func (s *SQLiteStorage) upsertPoints(ctx context.Context, collection string, keys []string, embeddings [][]float32) error {
	if len(keys) != len(embeddings) {
		return ErrLengthMismatch
	}
	if len(keys) == 0 {
		return nil
	}
	return s.withTx(ctx, func(q querier) error {
		var dimension int
		err := q.QueryRowContext(ctx, "SELECT dimension FROM vector_collections WHERE name = ?", collection).Scan(&dimension)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("collection %s does not exist", collection)
		}
		if err != nil {
			return fmt.Errorf("failed to read collection %s: %w", collection, err)
		}
		if err := CheckEmbeddings(len(keys), embeddings, dimension); err != nil {
			return fmt.Errorf("failed to upsert %s points: %w", collection, err)
		}

		query := `
			INSERT INTO embeddings (collection, point_key, vector, dimension, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(collection, point_key) DO UPDATE SET
				vector = excluded.vector,
				dimension = excluded.dimension,
				updated_at = excluded.updated_at
		`
		now := time.Now()
		for i, key := range keys {
			if _, err := q.ExecContext(ctx, query,
				collection, key, serializeVector(embeddings[i]), len(embeddings[i]), now, now); err != nil {
				return fmt.Errorf("failed to upsert point %s/%s: %w", collection, key, err)
			}
		}
		return nil
	})
}

// GetEmbedding returns the stored vector for key in collection
func (s *SQLiteStorage) GetEmbedding(ctx context.Context, collection, key string) ([]float32, error) {
	var blob []byte
	err := s.querier().QueryRowContext(ctx,
		"SELECT vector FROM embeddings WHERE collection = ? AND point_key = ?", collection, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding %s/%s: %w", collection, key, err)
	}
	return deserializeVector(blob), nil
}

// VectorCounts returns the number of points per collection
func (s *SQLiteStorage) VectorCounts(ctx context.Context) (VectorCounts, error) {
	var counts VectorCounts
	query := "SELECT COUNT(*) FROM embeddings WHERE collection = ?"
	if err := s.countRows(ctx, query, &counts.Acts, ActsCollection); err != nil {
		return VectorCounts{}, fmt.Errorf("failed to count %s points: %w", ActsCollection, err)
	}
	if err := s.countRows(ctx, query, &counts.Questions, QuestionsCollection); err != nil {
		return VectorCounts{}, fmt.Errorf("failed to count %s points: %w", QuestionsCollection, err)
	}
	return counts, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilKeywords(k []types.KeywordRef) []types.KeywordRef {
	if k == nil {
		return []types.KeywordRef{}
	}
	return k
}
