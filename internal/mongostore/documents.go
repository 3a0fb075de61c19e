package mongostore

import (
	"github.com/dshills/lexcite/pkg/types"
)

// Top-level documents carry explicit field names because filters and
// indexes refer to them. Nested values use the driver's default lowercase
// names.

type leafActDoc struct {
	Nro         int                            `bson:"nro"`
	Title       string                         `bson:"title"`
	ActLawType  string                         `bson:"act_law_type"`
	CiteLink    string                         `bson:"cite_link"`
	Reconstruct map[string]types.ArticleDetail `bson:"reconstruct"`
}

func newLeafActDoc(a *types.LeafAct) leafActDoc {
	return leafActDoc{
		Nro:         a.Nro,
		Title:       a.Title,
		ActLawType:  a.ActLawType,
		CiteLink:    a.CiteLink,
		Reconstruct: a.Reconstruct,
	}
}

func (d leafActDoc) toLeafAct() types.LeafAct {
	reconstruct := d.Reconstruct
	if reconstruct == nil {
		reconstruct = map[string]types.ArticleDetail{}
	}
	return types.LeafAct{
		Nro:         d.Nro,
		Title:       d.Title,
		ActLawType:  d.ActLawType,
		CiteLink:    d.CiteLink,
		Reconstruct: reconstruct,
	}
}

type actVectorDoc struct {
	ActNro           int                `bson:"act_nro"`
	ParentID         string             `bson:"parent_id"`
	ReconstructID    string             `bson:"reconstruct_id"`
	Text             string             `bson:"text"`
	ParentTokens     int                `bson:"parent_tokens"`
	TextTokens       int                `bson:"text_tokens"`
	ParentlessTokens int                `bson:"parentless_tokens"`
	ChunkID          *int               `bson:"chunk_id"`
	TotalChunks      *int               `bson:"total_chunks"`
	NodeIDs          []string           `bson:"node_ids"`
	Keywords         []types.KeywordRef `bson:"keywords"`
}

func newActVectorDoc(v *types.ActVector) actVectorDoc {
	return actVectorDoc{
		ActNro:           v.ActNro,
		ParentID:         v.ParentID,
		ReconstructID:    v.ReconstructID,
		Text:             v.Text,
		ParentTokens:     v.ParentTokens,
		TextTokens:       v.TextTokens,
		ParentlessTokens: v.ParentlessTokens,
		ChunkID:          v.ChunkID,
		TotalChunks:      v.TotalChunks,
		NodeIDs:          v.NodeIDs,
		Keywords:         v.Keywords,
	}
}

func (d actVectorDoc) toActVector() types.ActVector {
	nodeIDs := d.NodeIDs
	if nodeIDs == nil {
		nodeIDs = []string{}
	}
	keywords := d.Keywords
	if keywords == nil {
		keywords = []types.KeywordRef{}
	}
	return types.ActVector{
		ActNro:           d.ActNro,
		ParentID:         d.ParentID,
		ReconstructID:    d.ReconstructID,
		Text:             d.Text,
		ParentTokens:     d.ParentTokens,
		TextTokens:       d.TextTokens,
		ParentlessTokens: d.ParentlessTokens,
		ChunkID:          d.ChunkID,
		TotalChunks:      d.TotalChunks,
		NodeIDs:          nodeIDs,
		Keywords:         keywords,
	}
}

type keywordDoc struct {
	Label          string              `bson:"label"`
	ConceptID      int                 `bson:"concept_id"`
	InstanceOfType int                 `bson:"instance_of_type"`
	ActRelations   []types.ActRelation `bson:"act_relations"`
}

func newKeywordDoc(k *types.Keyword) keywordDoc {
	return keywordDoc{
		Label:          k.Label,
		ConceptID:      k.ConceptID,
		InstanceOfType: k.InstanceOfType,
		ActRelations:   k.ActRelations,
	}
}

func (d keywordDoc) toKeyword() types.Keyword {
	relations := d.ActRelations
	if relations == nil {
		relations = []types.ActRelation{}
	}
	return types.Keyword{
		Label:          d.Label,
		ConceptID:      d.ConceptID,
		InstanceOfType: d.InstanceOfType,
		ActRelations:   relations,
	}
}

type questionDoc struct {
	Nro           int                `bson:"nro"`
	Title         string             `bson:"title"`
	Question      string             `bson:"question"`
	Answer        string             `bson:"answer"`
	Justification string             `bson:"justification"`
	RelatedActs   []types.RelatedAct `bson:"related_acts"`
	Keywords      []types.KeywordRef `bson:"keywords"`
	Pruned        bool               `bson:"pruned"`
	PruneReason   string             `bson:"prune_reason,omitempty"`
}

func newQuestionDoc(q *types.Question) questionDoc {
	return questionDoc{
		Nro:           q.Nro,
		Title:         q.Title,
		Question:      q.Question,
		Answer:        q.Answer,
		Justification: q.Justification,
		RelatedActs:   q.RelatedActs,
		Keywords:      q.Keywords,
		Pruned:        q.Pruned,
		PruneReason:   q.PruneReason,
	}
}

func (d questionDoc) toQuestion() types.Question {
	acts := d.RelatedActs
	if acts == nil {
		acts = []types.RelatedAct{}
	}
	for i := range acts {
		if acts[i].RelationData == nil {
			acts[i].RelationData = []types.CitationData{}
		}
	}
	keywords := d.Keywords
	if keywords == nil {
		keywords = []types.KeywordRef{}
	}
	return types.Question{
		Nro:           d.Nro,
		Title:         d.Title,
		Question:      d.Question,
		Answer:        d.Answer,
		Justification: d.Justification,
		RelatedActs:   acts,
		Keywords:      keywords,
		Pruned:        d.Pruned,
		PruneReason:   d.PruneReason,
	}
}
