package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexcite/internal/embedder"
	"github.com/dshills/lexcite/internal/storage"
	"github.com/dshills/lexcite/pkg/types"
)

const testDimension = 8

func setupLoader(t *testing.T) (*Loader, *storage.SQLiteStorage) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, db, embedder.NewLocalProvider(testDimension, nil), Options{StoreBatch: 2}), db
}

func actDoc(nro int, rids ...string) types.ActDocument {
	doc := types.ActDocument{
		LeafAct: types.LeafAct{
			Nro:         nro,
			Title:       "Act",
			Reconstruct: map[string]types.ArticleDetail{},
		},
		Vectors: []types.ActVector{},
	}
	for _, rid := range rids {
		doc.LeafAct.Reconstruct[rid] = types.ArticleDetail{CiteID: rid, Text: "text of " + rid}
		doc.Vectors = append(doc.Vectors, types.ActVector{
			ActNro:        nro,
			ParentID:      rid,
			ReconstructID: rid,
			Text:          "text of " + rid,
			NodeIDs:       []string{rid},
			Keywords:      []types.KeywordRef{},
		})
	}
	return doc
}

func TestLoadActs(t *testing.T) {
	l, db := setupLoader(t)
	ctx := context.Background()

	docs := []types.ActDocument{
		actDoc(1, "art(1)", "art(2)"),
		actDoc(2, "art(1)"),
		actDoc(3), // parse failure: leaf act only
	}
	receipts, stats, err := l.LoadActs(ctx, docs)
	require.NoError(t, err)

	require.Len(t, receipts, 3)
	assert.Equal(t, 1, receipts[0].Nro)
	assert.Equal(t, 2, receipts[0].Vectors)
	assert.Equal(t, 0, receipts[2].Vectors)
	assert.Equal(t, 3, stats.ActsLoaded)
	assert.Equal(t, 3, stats.VectorsLoaded)
	assert.Empty(t, stats.Failed)

	counts, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.LeafActs)
	assert.Equal(t, 3, counts.ActVectors)

	vc, err := db.VectorCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, vc.Acts)

	emb, err := db.GetEmbedding(ctx, storage.ActsCollection, "1/art(2)")
	require.NoError(t, err)
	assert.Len(t, emb, testDimension)
}

func TestLoadActsIsIdempotent(t *testing.T) {
	l, db := setupLoader(t)
	ctx := context.Background()
	docs := []types.ActDocument{actDoc(1, "art(1)")}

	_, _, err := l.LoadActs(ctx, docs)
	require.NoError(t, err)
	_, _, err = l.LoadActs(ctx, docs)
	require.NoError(t, err)

	counts, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.ActVectors)
	vc, err := db.VectorCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, vc.Acts)
}

func TestLoadActsEmpty(t *testing.T) {
	l, _ := setupLoader(t)

	receipts, stats, err := l.LoadActs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, receipts)
	assert.Equal(t, 0, stats.ActsLoaded)
}

// lossyStore drops one act vector on read-back
type lossyStore struct {
	*storage.SQLiteStorage
	lost string
}

func (s *lossyStore) GetActVector(ctx context.Context, actNro int, reconstructID string) (*types.ActVector, error) {
	v := types.ActVector{ActNro: actNro, ReconstructID: reconstructID}
	if v.Key() == s.lost {
		return nil, storage.ErrNotFound
	}
	return s.SQLiteStorage.GetActVector(ctx, actNro, reconstructID)
}

func TestLoadActsReconciliationFailure(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := &lossyStore{SQLiteStorage: db, lost: "2/art(1)"}
	l := New(store, db, embedder.NewLocalProvider(testDimension, nil), Options{})

	receipts, stats, err := l.LoadActs(context.Background(), []types.ActDocument{
		actDoc(1, "art(1)"),
		actDoc(2, "art(1)"),
	})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, 1, receipts[0].Nro)
	assert.Equal(t, []string{"act/2"}, stats.Failed)
}

// failingEmbedder fails every batch
type failingEmbedder struct {
	*embedder.LocalProvider
}

func (failingEmbedder) GenerateBatch(context.Context, embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, embedder.ErrProviderFailed
}

func TestLoadActsEmbeddingFailureLeavesBatchPending(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	emb := failingEmbedder{embedder.NewLocalProvider(testDimension, nil)}
	l := New(db, db, emb, Options{StoreBatch: 1})

	receipts, stats, err := l.LoadActs(context.Background(), []types.ActDocument{
		actDoc(1, "art(1)"),
		actDoc(2), // no vectors, nothing to embed
	})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, 2, receipts[0].Nro)
	assert.Equal(t, []string{"act/1"}, stats.Failed)
}

func TestLoadActsRequiresVectorStore(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	l := New(db, nil, nil, Options{})
	_, _, err = l.LoadActs(context.Background(), []types.ActDocument{actDoc(1, "art(1)")})
	assert.Error(t, err)
}

func TestLoadKeywords(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// Keywords need no embedder
	l := New(db, nil, nil, Options{StoreBatch: 1})
	keywords := []types.Keyword{
		{Label: "vat", ConceptID: 5, InstanceOfType: 2, ActRelations: []types.ActRelation{}},
		{Label: "cit", ConceptID: 6, InstanceOfType: 2, ActRelations: []types.ActRelation{}},
	}
	receipts, stats, err := l.LoadKeywords(context.Background(), keywords)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "5_2", receipts[0].Ref.Key())
	assert.Equal(t, 2, stats.KeywordsLoaded)

	counts, err := db.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Keywords)
}

func TestLoadQuestions(t *testing.T) {
	l, db := setupLoader(t)
	ctx := context.Background()

	questions := []types.Question{
		{Nro: 1, Title: "Czy trzeba zapłacić VAT?", RelatedActs: []types.RelatedAct{}, Keywords: []types.KeywordRef{}},
		{Nro: 2, Title: "Zmiana ustawy", Pruned: true, PruneReason: "no acts"},
		{Nro: 3, Question: "Treść bez tytułu", RelatedActs: []types.RelatedAct{}, Keywords: []types.KeywordRef{}},
	}
	receipts, stats, err := l.LoadQuestions(ctx, questions)
	require.NoError(t, err)

	require.Len(t, receipts, 3)
	assert.Equal(t, 2, receipts[0].Nro)
	assert.True(t, receipts[0].Skipped)
	assert.Equal(t, 2, stats.QuestionsLoaded)
	assert.Equal(t, 1, stats.QuestionsSkipped)

	_, err = db.GetQuestion(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	vc, err := db.VectorCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, vc.Questions)
}

func TestLoadQuestionsAllPruned(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// No embedder or vector store is touched when nothing is live
	l := New(db, nil, nil, Options{})
	receipts, stats, err := l.LoadQuestions(context.Background(), []types.Question{{Nro: 9, Pruned: true}})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.True(t, receipts[0].Skipped)
	assert.Equal(t, 1, stats.QuestionsSkipped)
}

func TestLoadStopsOnCancel(t *testing.T) {
	l, _ := setupLoader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := l.LoadKeywords(ctx, []types.Keyword{{Label: "x", ConceptID: 1, InstanceOfType: 1}})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestQuestionText(t *testing.T) {
	assert.Equal(t, "T", questionText(&types.Question{Title: "T", Question: "Q"}))
	assert.Equal(t, "Q", questionText(&types.Question{Question: "Q"}))
	assert.Equal(t, "question 4", questionText(&types.Question{Nro: 4}))
}
