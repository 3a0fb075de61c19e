package storage

import (
	"context"
	"errors"

	"github.com/dshills/lexcite/pkg/types"
)

var (
	// ErrNotFound is returned when a requested document doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch is returned when an embedding doesn't match the collection
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrLengthMismatch is returned when documents and embeddings differ in count
	ErrLengthMismatch = errors.New("documents and embeddings differ in length")
)

// Collection names shared by every vector store
const (
	ActsCollection      = "acts"
	QuestionsCollection = "questions"
)

// Store is the document store of the retrieval index.
// Upserts are idempotent on each document's natural key.
type Store interface {
	// Leaf acts, keyed by act nro
	UpsertLeafActs(ctx context.Context, acts []types.LeafAct) error
	GetLeafAct(ctx context.Context, nro int) (*types.LeafAct, error)

	// Act chunks, keyed by (act_nro, reconstruct_id)
	UpsertActVectors(ctx context.Context, vectors []types.ActVector) error
	GetActVector(ctx context.Context, actNro int, reconstructID string) (*types.ActVector, error)

	// Keywords, keyed by (conceptId, instanceOfType)
	UpsertKeywords(ctx context.Context, keywords []types.Keyword) error
	GetKeyword(ctx context.Context, ref types.KeywordRef) (*types.Keyword, error)

	// Questions, keyed by nro
	UpsertQuestions(ctx context.Context, questions []types.Question) error
	GetQuestion(ctx context.Context, nro int) (*types.Question, error)

	// Counts returns the number of stored documents per kind
	Counts(ctx context.Context) (Counts, error)

	Close() error
}

// VectorStore holds embeddings for act chunks and question titles
type VectorStore interface {
	// EnsureCollections creates the acts and questions collections if needed
	EnsureCollections(ctx context.Context, dimension int) error

	// UpsertActEmbeddings stores embeddings[i] for vectors[i]
	UpsertActEmbeddings(ctx context.Context, vectors []types.ActVector, embeddings [][]float32) error

	// UpsertQuestionEmbeddings stores embeddings[i] for questions[i]
	UpsertQuestionEmbeddings(ctx context.Context, questions []types.Question, embeddings [][]float32) error

	// VectorCounts returns the number of points per collection
	VectorCounts(ctx context.Context) (VectorCounts, error)

	Close() error
}

// Counts contains document store totals
type Counts struct {
	LeafActs   int `json:"leaf_acts"`
	ActVectors int `json:"act_vectors"`
	Keywords   int `json:"keywords"`
	Questions  int `json:"questions"`
}

// VectorCounts contains vector store totals
type VectorCounts struct {
	Acts      int `json:"acts"`
	Questions int `json:"questions"`
}

// CheckEmbeddings validates a batch of embeddings against the expected
// document count and dimension. A dimension of zero skips the size check.
func CheckEmbeddings(documents int, embeddings [][]float32, dimension int) error {
	if documents != len(embeddings) {
		return ErrLengthMismatch
	}
	if dimension <= 0 {
		return nil
	}
	for _, emb := range embeddings {
		if len(emb) != dimension {
			return ErrDimensionMismatch
		}
	}
	return nil
}
