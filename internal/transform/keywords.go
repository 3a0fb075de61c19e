package transform

import (
	"sort"

	"github.com/dshills/lexcite/pkg/types"
)

// ValidityActual is the validity of back-filled relations
const ValidityActual = "ACTUAL"

// Keyword keeps every upstream relation of kw, first one per act, then
// back-fills a whole-document relation for every extracted act that
// declares kw but has no relation for it. Relations to acts not yet
// extracted are kept so a later run scopes those acts as upstream does.
func Keyword(kw types.Keyword, acts map[int]*types.RawAct) types.Keyword {
	relations := make([]types.ActRelation, 0, len(kw.ActRelations))
	related := make(map[int]bool, len(kw.ActRelations))
	for _, rel := range kw.ActRelations {
		if related[rel.Nro] {
			continue
		}
		related[rel.Nro] = true
		relations = append(relations, rel)
	}

	nros := make([]int, 0, len(acts))
	for nro := range acts {
		nros = append(nros, nro)
	}
	sort.Ints(nros)
	for _, nro := range nros {
		if related[nro] || !declares(acts[nro], kw.Ref()) {
			continue
		}
		relations = append(relations, WholeDocumentRelation(acts[nro]))
	}

	kw.ActRelations = relations
	return kw
}

// WholeDocumentRelation is the relation back-filled for an act that
// declares a keyword the keyword search does not link to it
func WholeDocumentRelation(act *types.RawAct) types.ActRelation {
	return types.ActRelation{
		Title:        act.Title,
		Nro:          act.Nro,
		LawType:      act.ActLawType,
		Validity:     ValidityActual,
		RelationData: types.RelationData{},
	}
}

func declares(act *types.RawAct, ref types.KeywordRef) bool {
	for _, k := range act.Keywords {
		if k.Same(ref) {
			return true
		}
	}
	return false
}
