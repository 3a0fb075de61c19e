package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexcite/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func sampleLeafAct() types.LeafAct {
	return types.LeafAct{
		Nro:        17,
		Title:      "Ustawa o podatku",
		ActLawType: "ustawa",
		CiteLink:   "https://example.test/act/17",
		Reconstruct: map[string]types.ArticleDetail{
			"art(1)":   {CiteID: "art(1)", Text: "T1 T2"},
			"art(2)#1": {CiteID: "art(2)", Text: "first half"},
		},
	}
}

func sampleVector(rid string, chunk *int) types.ActVector {
	v := types.ActVector{
		ActNro:           17,
		ParentID:         "art(1)",
		ReconstructID:    rid,
		Text:             "T1 T2",
		ParentTokens:     1,
		TextTokens:       2,
		ParentlessTokens: 1,
		NodeIDs:          []string{"art(1)", "art(1)ust(1)"},
		Keywords:         []types.KeywordRef{{Label: "vat", ConceptID: 5, InstanceOfType: 2}},
	}
	if chunk != nil {
		v.ChunkID = chunk
		v.TotalChunks = types.IntPtr(2)
	}
	return v
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)

	counts, err := storage.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, storage.db))

	version, err := schemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}

func TestRollbackMigration(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, storage.db))
	version, err := schemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version.String())

	// Re-applying restores the vector tables
	require.NoError(t, ApplyMigrations(ctx, storage.db))
	require.NoError(t, storage.EnsureCollections(ctx, 3))
}

func TestLeafActRoundTrip(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	act := sampleLeafAct()
	require.NoError(t, storage.UpsertLeafActs(ctx, []types.LeafAct{act}))

	got, err := storage.GetLeafAct(ctx, act.Nro)
	require.NoError(t, err)
	assert.Equal(t, act, *got)

	// Upsert replaces in place
	act.Title = "Ustawa o podatku (t.j.)"
	require.NoError(t, storage.UpsertLeafActs(ctx, []types.LeafAct{act}))
	got, err = storage.GetLeafAct(ctx, act.Nro)
	require.NoError(t, err)
	assert.Equal(t, "Ustawa o podatku (t.j.)", got.Title)

	counts, err := storage.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.LeafActs)
}

func TestGetLeafActNotFound(t *testing.T) {
	storage := setupTestDB(t)

	_, err := storage.GetLeafAct(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActVectorRoundTrip(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	whole := sampleVector("art(1)", nil)
	piece := sampleVector("art(2)#1", types.IntPtr(1))
	piece.ParentID = "art(2)"
	require.NoError(t, storage.UpsertActVectors(ctx, []types.ActVector{whole, piece}))

	got, err := storage.GetActVector(ctx, 17, "art(1)")
	require.NoError(t, err)
	assert.Equal(t, whole, *got)
	assert.Nil(t, got.ChunkID)
	assert.Nil(t, got.TotalChunks)

	got, err = storage.GetActVector(ctx, 17, "art(2)#1")
	require.NoError(t, err)
	require.NotNil(t, got.ChunkID)
	assert.Equal(t, 1, *got.ChunkID)
	assert.Equal(t, 2, *got.TotalChunks)

	_, err = storage.GetActVector(ctx, 17, "art(9)")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActVectorUniqueKey(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	v := sampleVector("art(1)", nil)
	require.NoError(t, storage.UpsertActVectors(ctx, []types.ActVector{v}))
	v.Text = "T1 T2 T3"
	require.NoError(t, storage.UpsertActVectors(ctx, []types.ActVector{v}))

	counts, err := storage.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.ActVectors)

	got, err := storage.GetActVector(ctx, 17, "art(1)")
	require.NoError(t, err)
	assert.Equal(t, "T1 T2 T3", got.Text)
}

func TestActVectorEmptyLists(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	v := sampleVector("art(3)", nil)
	v.NodeIDs = nil
	v.Keywords = nil
	require.NoError(t, storage.UpsertActVectors(ctx, []types.ActVector{v}))

	got, err := storage.GetActVector(ctx, 17, "art(3)")
	require.NoError(t, err)
	assert.Empty(t, got.NodeIDs)
	assert.Empty(t, got.Keywords)
}

func TestKeywordRoundTrip(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	kw := types.Keyword{
		Label:          "podatek od towarów",
		ConceptID:      5,
		InstanceOfType: 2,
		ActRelations: []types.ActRelation{{
			Title: "Ustawa o podatku", Nro: 17, LawType: "ustawa", Validity: "ACTUAL",
			RelationData: types.RelationData{Units: []types.Unit{{Nro: 17, ID: "art(1)", Name: "Art. 1"}}},
		}},
	}
	require.NoError(t, storage.UpsertKeywords(ctx, []types.Keyword{kw}))

	got, err := storage.GetKeyword(ctx, types.KeywordRef{ConceptID: 5, InstanceOfType: 2})
	require.NoError(t, err)
	assert.Equal(t, kw, *got)

	// Same identity, new label: still one row
	kw.Label = "VAT"
	require.NoError(t, storage.UpsertKeywords(ctx, []types.Keyword{kw}))
	counts, err := storage.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Keywords)

	_, err = storage.GetKeyword(ctx, types.KeywordRef{ConceptID: 5, InstanceOfType: 3})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeywordNilRelations(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.UpsertKeywords(ctx, []types.Keyword{{Label: "x", ConceptID: 1, InstanceOfType: 1}}))
	got, err := storage.GetKeyword(ctx, types.KeywordRef{ConceptID: 1, InstanceOfType: 1})
	require.NoError(t, err)
	assert.NotNil(t, got.ActRelations)
	assert.Empty(t, got.ActRelations)
}

func TestQuestionRoundTrip(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	q := types.Question{
		Nro:      101,
		Title:    "Czy trzeba zapłacić VAT?",
		Question: "pytanie",
		Answer:   "odpowiedź",
		RelatedActs: []types.RelatedAct{{
			Nro: 17, Title: "Ustawa o podatku", Validity: "ACTUAL",
			RelationData: []types.CitationData{{Nro: 17, ID: "art(1)", Name: "Art. 1"}},
		}},
		Keywords: []types.KeywordRef{{Label: "vat", ConceptID: 5, InstanceOfType: 2}},
	}
	pruned := types.Question{
		Nro: 102, Title: "Zmiana ustawy", RelatedActs: []types.RelatedAct{}, Keywords: []types.KeywordRef{},
		Pruned: true, PruneReason: "no keywords",
	}
	require.NoError(t, storage.UpsertQuestions(ctx, []types.Question{q, pruned}))

	got, err := storage.GetQuestion(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, q, *got)

	got, err = storage.GetQuestion(ctx, 102)
	require.NoError(t, err)
	assert.True(t, got.Pruned)
	assert.Equal(t, "no keywords", got.PruneReason)

	_, err = storage.GetQuestion(ctx, 103)
	assert.ErrorIs(t, err, ErrNotFound)

	counts, err := storage.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Questions)
}

func TestUpsertBatchIsAtomic(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	ctxCanceled, cancel := context.WithCancel(ctx)
	cancel()
	err := storage.UpsertLeafActs(ctxCanceled, []types.LeafAct{sampleLeafAct()})
	assert.Error(t, err)

	counts, err := storage.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.LeafActs)
}

func TestEnsureCollections(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.EnsureCollections(ctx, 4))
	// Idempotent for the same dimension
	require.NoError(t, storage.EnsureCollections(ctx, 4))

	err := storage.EnsureCollections(ctx, 8)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	assert.Error(t, storage.EnsureCollections(ctx, 0))
}

func TestUpsertActEmbeddings(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, storage.EnsureCollections(ctx, 3))

	vectors := []types.ActVector{sampleVector("art(1)", nil), sampleVector("art(2)", nil)}
	embeddings := [][]float32{{0.1, 0.2, 0.3}, {-1, 0, 1}}
	require.NoError(t, storage.UpsertActEmbeddings(ctx, vectors, embeddings))
	// Re-upserting the same keys does not add points
	require.NoError(t, storage.UpsertActEmbeddings(ctx, vectors, embeddings))

	got, err := storage.GetEmbedding(ctx, ActsCollection, "17/art(2)")
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 0, 1}, got)

	counts, err := storage.VectorCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, VectorCounts{Acts: 2, Questions: 0}, counts)
}

func TestUpsertEmbeddingsValidation(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	questions := []types.Question{{Nro: 1, Title: "a"}}

	// Collection missing
	err := storage.UpsertQuestionEmbeddings(ctx, questions, [][]float32{{1, 2}})
	assert.Error(t, err)

	require.NoError(t, storage.EnsureCollections(ctx, 2))

	err = storage.UpsertQuestionEmbeddings(ctx, questions, [][]float32{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = storage.UpsertQuestionEmbeddings(ctx, questions, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	require.NoError(t, storage.UpsertQuestionEmbeddings(ctx, questions, [][]float32{{1, 2}}))
	got, err := storage.GetEmbedding(ctx, QuestionsCollection, "1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got)

	_, err = storage.GetEmbedding(ctx, QuestionsCollection, "2")
	assert.ErrorIs(t, err, ErrNotFound)

	// Empty batches are a no-op
	require.NoError(t, storage.UpsertQuestionEmbeddings(ctx, nil, nil))
}

func TestSerializeVector(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{"empty", []float32{}},
		{"single", []float32{1.5}},
		{"mixed", []float32{0, -0.25, 3.75, 1e-7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := serializeVector(tt.vector)
			assert.Len(t, blob, len(tt.vector)*4)
			assert.Equal(t, tt.vector, deserializeVector(blob))
		})
	}
}

func TestCheckEmbeddings(t *testing.T) {
	assert.NoError(t, CheckEmbeddings(1, [][]float32{{1, 2}}, 2))
	assert.NoError(t, CheckEmbeddings(1, [][]float32{{1, 2}}, 0))
	assert.ErrorIs(t, CheckEmbeddings(2, [][]float32{{1, 2}}, 2), ErrLengthMismatch)
	assert.ErrorIs(t, CheckEmbeddings(1, [][]float32{{1}}, 2), ErrDimensionMismatch)
}
