package transform

import (
	"github.com/dshills/lexcite/internal/chunker"
	"github.com/dshills/lexcite/internal/keywords"
	"github.com/dshills/lexcite/internal/logger"
	"github.com/dshills/lexcite/internal/parser"
	"github.com/dshills/lexcite/pkg/types"
)

// Acts turns raw acts into chunked act documents
type Acts struct {
	parser  *parser.Parser
	chunker *chunker.Chunker
}

// NewActs creates an act transformer
func NewActs(p *parser.Parser, c *chunker.Chunker) *Acts {
	if p == nil {
		p = parser.New()
	}
	if c == nil {
		c = chunker.New(nil, chunker.DefaultBudget)
	}
	return &Acts{parser: p, chunker: c}
}

// Transform builds the tree of raw, applies its keywords, chunks it and
// checks coverage. A document that cannot be built is still returned,
// flagged for review and without vectors.
func (a *Acts) Transform(raw *types.RawAct, lookup keywords.Lookup) types.ActDocument {
	doc := types.ActDocument{
		LeafAct: types.LeafAct{
			Nro:         raw.Nro,
			Title:       raw.Title,
			ActLawType:  raw.ActLawType,
			CiteLink:    raw.CiteLink,
			Reconstruct: map[string]types.ArticleDetail{},
		},
		Vectors: []types.ActVector{},
	}

	tree, err := a.parser.ParseAct(raw)
	if err != nil {
		logger.Warn("Act %d: %v", raw.Nro, err)
		doc.StructuralErrors = []string{err.Error()}
		doc.Review = true
		return doc
	}
	doc.LeafAct.Title = tree.Title

	for _, err := range keywords.Apply(tree, withBackfill(raw, lookup)) {
		tree.AddStructuralError(err)
	}

	reconstruct, vectors, report := a.chunker.Chunk(tree)
	for _, err := range report.Errors {
		tree.AddStructuralError(err)
	}
	if len(report.Oversized) > 0 {
		logger.Debug("Act %d: %d pieces over the token budget", raw.Nro, len(report.Oversized))
	}

	doc.LeafAct.Reconstruct = reconstruct
	doc.Vectors = vectors
	doc.StructuralErrors = tree.StructuralErrors
	doc.CoverageGaps = chunker.CheckCoverage(tree, vectors)
	doc.Review = len(doc.StructuralErrors) > 0 || len(doc.CoverageGaps) > 0
	if doc.Review {
		logger.Warn("Act %d flagged for review: %d structural errors, %d uncovered units",
			raw.Nro, len(doc.StructuralErrors), len(doc.CoverageGaps))
	}
	return doc
}

// withBackfill wraps lookup so a keyword declared by raw that upstream
// never links to raw still covers the whole document
func withBackfill(raw *types.RawAct, lookup keywords.Lookup) keywords.Lookup {
	return func(ref types.KeywordRef) (types.Keyword, bool) {
		kw, ok := lookup(ref)
		if !ok {
			return kw, false
		}
		if _, related := kw.Relation(raw.Nro); !related {
			kw.ActRelations = append(append([]types.ActRelation{}, kw.ActRelations...), WholeDocumentRelation(raw))
		}
		return kw, true
	}
}
