package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexcite/pkg/types"
)

var vat = types.KeywordRef{Label: "VAT", ConceptID: 1, InstanceOfType: 2}

// art(1) -> art(1)ust(1), art(1)ust(2); art(2); art(3)
func sampleTree() *types.TreeAct {
	parent := "art(1)"
	return &types.TreeAct{
		Nro:   7,
		Units: []string{"art(1)", "art(1)ust(1)", "art(1)ust(2)", "art(2)", "art(3)"},
		Elements: map[string]*types.Element{
			"art(1)":       {Children: []string{"art(1)ust(1)", "art(1)ust(2)"}},
			"art(1)ust(1)": {Children: []string{}, Parent: &parent},
			"art(1)ust(2)": {Children: []string{}, Parent: &parent},
			"art(2)":       {Children: []string{}},
			"art(3)":       {Children: []string{}},
		},
	}
}

func tagged(doc *types.TreeAct) []string {
	var ids []string
	for _, id := range doc.Units {
		if doc.Elements[id].HasKeyword(vat) {
			ids = append(ids, id)
		}
	}
	return ids
}

func relation(ids ...string) types.ActRelation {
	rel := types.ActRelation{Nro: 7}
	for _, id := range ids {
		rel.RelationData.Units = append(rel.RelationData.Units, types.Unit{ID: id})
	}
	return rel
}

func TestPropagateWholeDocument(t *testing.T) {
	doc := sampleTree()
	errs := Propagate(doc, vat, relation())
	assert.Empty(t, errs)
	assert.Equal(t, doc.Units, tagged(doc))
}

func TestPropagateSingleUnitCascades(t *testing.T) {
	doc := sampleTree()
	errs := Propagate(doc, vat, relation("art(1)"))
	assert.Empty(t, errs)
	assert.Equal(t, []string{"art(1)", "art(1)ust(1)", "art(1)ust(2)"}, tagged(doc))
}

func TestPropagateRange(t *testing.T) {
	doc := sampleTree()
	errs := Propagate(doc, vat, relation("art(1)ust(2)-art(2)"))
	assert.Empty(t, errs)
	assert.Equal(t, []string{"art(1)ust(2)", "art(2)"}, tagged(doc))
}

func TestPropagateStructuralErrors(t *testing.T) {
	t.Run("range with unknown left", func(t *testing.T) {
		doc := sampleTree()
		errs := Propagate(doc, vat, relation("art(9)-art(2)"))
		require.Len(t, errs, 1)
		var se *StructuralError
		require.ErrorAs(t, errs[0], &se)
		assert.Equal(t, "art(9)", se.UnitID)
		assert.Empty(t, tagged(doc))
	})

	t.Run("unknown unit", func(t *testing.T) {
		doc := sampleTree()
		errs := Propagate(doc, vat, relation("art(9)", "art(2)"))
		require.Len(t, errs, 1)
		var se *StructuralError
		require.ErrorAs(t, errs[0], &se)
		assert.Equal(t, 7, se.ActNro)
		assert.Equal(t, "1_2", se.Keyword)
		// the valid unit is still tagged
		assert.Equal(t, []string{"art(2)"}, tagged(doc))
	})
}

func TestPropagateCycleTerminates(t *testing.T) {
	doc := sampleTree()
	// art(1)ust(2) points back at its own parent
	doc.Elements["art(1)ust(2)"].Children = []string{"art(1)"}

	errs := Propagate(doc, vat, relation("art(1)"))
	require.Len(t, errs, 1)
	var ce *CycleError
	require.ErrorAs(t, errs[0], &ce)
	assert.Equal(t, "art(1)", ce.UnitID)
	assert.Equal(t, []string{"art(1)", "art(1)ust(1)", "art(1)ust(2)"}, tagged(doc))

	t.Run("whole document with a parent cycle", func(t *testing.T) {
		a, b := "a(1)", "b(1)"
		doc := &types.TreeAct{
			Nro:   7,
			Units: []string{"a(1)", "b(1)", "c(1)"},
			Elements: map[string]*types.Element{
				"a(1)": {Children: []string{"b(1)"}, Parent: &b},
				"b(1)": {Children: []string{"a(1)"}, Parent: &a},
				"c(1)": {Children: []string{}},
			},
		}

		errs := Propagate(doc, vat, relation())
		require.NotEmpty(t, errs)
		var ce *CycleError
		require.ErrorAs(t, errs[0], &ce)
		assert.Equal(t, "a(1)", ce.UnitID)
		assert.Equal(t, doc.Units, tagged(doc))
	})
}

func TestPropagateIsIdempotent(t *testing.T) {
	doc := sampleTree()
	Propagate(doc, vat, relation())
	Propagate(doc, types.KeywordRef{Label: "VAT renamed", ConceptID: 1, InstanceOfType: 2}, relation("art(1)"))

	for _, id := range doc.Units {
		assert.Len(t, doc.Elements[id].Keywords, 1, id)
	}
}

func TestApply(t *testing.T) {
	doc := sampleTree()
	other := types.KeywordRef{Label: "CIT", ConceptID: 3, InstanceOfType: 2}
	missing := types.KeywordRef{Label: "gone", ConceptID: 4, InstanceOfType: 2}
	doc.Keywords = []types.KeywordRef{vat, other, missing}

	store := map[string]types.Keyword{
		vat.Key(): {Label: "VAT", ConceptID: 1, InstanceOfType: 2, ActRelations: []types.ActRelation{relation("art(2)")}},
		// relation to a different act only
		other.Key(): {Label: "CIT", ConceptID: 3, InstanceOfType: 2, ActRelations: []types.ActRelation{{Nro: 99}}},
	}
	lookup := func(ref types.KeywordRef) (types.Keyword, bool) {
		kw, ok := store[ref.Key()]
		return kw, ok
	}

	errs := Apply(doc, lookup)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"art(2)"}, tagged(doc))
	for _, id := range doc.Units {
		assert.False(t, doc.Elements[id].HasKeyword(other), id)
	}
}
