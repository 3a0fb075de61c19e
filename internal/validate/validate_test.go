package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexcite/internal/index"
	"github.com/dshills/lexcite/internal/storage"
	"github.com/dshills/lexcite/pkg/types"
)

var (
	vat = types.KeywordRef{Label: "vat", ConceptID: 5, InstanceOfType: 2}
	cit = types.KeywordRef{Label: "cit", ConceptID: 6, InstanceOfType: 2}
)

func relation(nro int, unitIDs ...string) types.ActRelation {
	rel := types.ActRelation{Nro: nro, Validity: "ACTUAL"}
	for _, id := range unitIDs {
		rel.RelationData.Units = append(rel.RelationData.Units, types.Unit{Nro: nro, ID: id})
	}
	return rel
}

func keyword(ref types.KeywordRef, rels ...types.ActRelation) types.Keyword {
	if rels == nil {
		rels = []types.ActRelation{}
	}
	return types.Keyword{Label: ref.Label, ConceptID: ref.ConceptID, InstanceOfType: ref.InstanceOfType, ActRelations: rels}
}

func TestValidateEmptyDataDir(t *testing.T) {
	v := New(index.NewCatalog(t.TempDir()), nil, nil)

	report, err := v.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "all", report.Partition)
	assert.Len(t, report.Indexes, 9)
	assert.Empty(t, report.Inconsistent)
	assert.Nil(t, report.Stores)
	assert.True(t, report.OK())
}

func TestValidateFindsProblems(t *testing.T) {
	catalog := index.NewCatalog(t.TempDir())

	_, err := catalog.RawActs().Commit([]types.RawAct{
		{Nro: 1, Keywords: []types.KeywordRef{vat, cit}},
		{Nro: 2, Keywords: []types.KeywordRef{vat}},
	}, nil)
	require.NoError(t, err)

	// vat lists act 1 only and carries an artefact unit; cit lists nothing
	_, err = catalog.RawKeywords().Commit([]types.Keyword{
		keyword(vat, relation(1, "art(1)", "all(art(2))")),
		keyword(cit),
	}, nil)
	require.NoError(t, err)

	// After back-fill act 2 is covered
	_, err = catalog.TransformedKeywords().Commit([]types.Keyword{
		keyword(vat, relation(1, "art(1)"), relation(2)),
	}, nil)
	require.NoError(t, err)

	_, err = catalog.TransformedActs().Commit([]types.ActDocument{
		{LeafAct: types.LeafAct{Nro: 1}, Vectors: []types.ActVector{}},
		{LeafAct: types.LeafAct{Nro: 2}, Vectors: []types.ActVector{}, CoverageGaps: []string{"art(3)"}, Review: true},
	}, nil)
	require.NoError(t, err)

	_, err = catalog.TransformedQuestions().Commit([]types.Question{
		{Nro: 10, RelatedActs: []types.RelatedAct{{Nro: 1}, {Nro: 2}}, Keywords: []types.KeywordRef{vat, {ConceptID: 9, InstanceOfType: 9}}},
		{Nro: 11, Pruned: true, RelatedActs: []types.RelatedAct{{Nro: 3}}},
	}, nil)
	require.NoError(t, err)

	// Index entry without data
	require.NoError(t, catalog.LoadedActs().UpdateIndex([]int{1}, nil))

	report, err := New(catalog, nil, nil).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"loaded_acts"}, report.Inconsistent)
	require.Len(t, report.ReviewActs, 1)
	assert.Equal(t, 2, report.ReviewActs[0].Nro)
	assert.Equal(t, []string{"art(3)"}, report.ReviewActs[0].CoverageGaps)

	assert.Equal(t, []Artefact{{Keyword: "5_2", ActNro: 1, UnitID: "all(art(2))"}}, report.Artefacts)
	assert.Equal(t, []RelationGap{{ActNro: 2, Keyword: "5_2"}}, report.RawGaps)
	assert.Empty(t, report.Gaps)

	assert.Equal(t, 2, report.Coverage.CitedActs)
	assert.Equal(t, 2, report.Coverage.CitedKeywords)
	assert.Equal(t, 2, report.Coverage.TransformedActs)
	assert.Equal(t, []string{"9_9"}, report.Coverage.MissingKeywords)

	assert.False(t, report.OK())
}

func TestRelationGapsIgnoreUnextractedKeywords(t *testing.T) {
	acts := []types.RawAct{{Nro: 1, Keywords: []types.KeywordRef{vat}}}
	assert.Empty(t, RelationGaps(acts, nil))
	assert.Empty(t, RelationGaps(acts, []types.Keyword{keyword(vat)}))
	assert.Len(t, RelationGaps(acts, []types.Keyword{keyword(vat, relation(7))}), 1)
}

func TestStoreMismatches(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	require.NoError(t, db.EnsureCollections(ctx, 2))
	vectors := []types.ActVector{{ActNro: 1, ReconstructID: "art(1)", ParentID: "art(1)", Text: "x"}}
	require.NoError(t, db.UpsertActVectors(ctx, vectors))
	require.NoError(t, db.UpsertQuestions(ctx, []types.Question{{Nro: 1, Title: "q"}}))
	require.NoError(t, db.UpsertQuestionEmbeddings(ctx, []types.Question{{Nro: 1}}, [][]float32{{1, 0}}))

	report, err := New(index.NewCatalog(t.TempDir()), db, db).Run(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, report.Stores)
	assert.Equal(t, 1, report.Stores.Documents.ActVectors)
	assert.Equal(t, 0, report.Stores.Vectors.Acts)
	assert.Equal(t, []string{"act vectors: 1 documents, 0 points"}, report.Stores.Mismatches)
	assert.False(t, report.OK())

	require.NoError(t, db.UpsertActEmbeddings(ctx, vectors, [][]float32{{0, 1}}))
	report, err = New(index.NewCatalog(t.TempDir()), db, db).Run(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Stores.Mismatches)
	assert.True(t, report.OK())
}
