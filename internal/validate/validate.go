// Package validate inspects the index files and retrieval stores and
// reports inconsistencies. Nothing it finds is fatal; the report is for
// operator review.
package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/lexcite/internal/index"
	"github.com/dshills/lexcite/internal/logger"
	"github.com/dshills/lexcite/internal/storage"
	"github.com/dshills/lexcite/pkg/types"
)

// ArtefactPrefix marks keyword units the upstream API emits as range
// expressions instead of unit IDs
const ArtefactPrefix = "all("

// Report is the outcome of a validation run
type Report struct {
	Partition    string               `json:"partition"`
	Indexes      []*index.Consistency `json:"indexes"`
	Inconsistent []string             `json:"inconsistent,omitempty"`
	ReviewActs   []ReviewAct          `json:"review_acts,omitempty"`
	Artefacts    []Artefact           `json:"artefacts,omitempty"`
	RawGaps      []RelationGap        `json:"raw_gaps,omitempty"`
	Gaps         []RelationGap        `json:"gaps,omitempty"`
	Coverage     Coverage             `json:"coverage"`
	Stores       *StoreReport         `json:"stores,omitempty"`
}

// ReviewAct is a transformed act flagged for manual review
type ReviewAct struct {
	Nro              int      `json:"nro"`
	StructuralErrors []string `json:"structural_errors,omitempty"`
	CoverageGaps     []string `json:"coverage_gaps,omitempty"`
}

// Artefact is a keyword unit whose ID is an upstream artefact
type Artefact struct {
	Keyword string `json:"keyword"`
	ActNro  int    `json:"act_nro"`
	UnitID  string `json:"unit_id"`
}

// RelationGap is an act declaring a keyword whose listing omits the act
type RelationGap struct {
	ActNro  int    `json:"act_nro"`
	Keyword string `json:"keyword"`
}

// Coverage compares what transformed questions cite with what was extracted
type Coverage struct {
	CitedActs         int      `json:"cited_acts"`
	CitedKeywords     int      `json:"cited_keywords"`
	TransformedActs   int      `json:"transformed_acts"`
	ExtractedKeywords int      `json:"extracted_keywords"`
	MissingKeywords   []string `json:"missing_keywords,omitempty"`
}

// StoreReport compares document and vector store counts
type StoreReport struct {
	Documents  storage.Counts       `json:"documents"`
	Vectors    storage.VectorCounts `json:"vectors"`
	Mismatches []string             `json:"mismatches,omitempty"`
}

// OK reports whether nothing needs attention
func (r *Report) OK() bool {
	storesOK := r.Stores == nil || len(r.Stores.Mismatches) == 0
	return len(r.Inconsistent) == 0 && len(r.ReviewActs) == 0 && len(r.Artefacts) == 0 &&
		len(r.Gaps) == 0 && storesOK
}

// Validator checks one data directory and, optionally, the stores
type Validator struct {
	catalog *index.Catalog
	docs    storage.Store
	vectors storage.VectorStore
}

// New creates a validator. docs and vectors may be nil to skip store checks.
func New(catalog *index.Catalog, docs storage.Store, vectors storage.VectorStore) *Validator {
	return &Validator{catalog: catalog, docs: docs, vectors: vectors}
}

// Run validates partition p. Missing files count as empty.
func (v *Validator) Run(ctx context.Context, p types.Partition) (*Report, error) {
	report := &Report{Partition: p.Name()}

	for _, tracker := range v.catalog.Trackers() {
		c, err := tracker.Validate(p)
		if err != nil {
			return nil, fmt.Errorf("failed to validate %s: %w", tracker.Name(), err)
		}
		report.Indexes = append(report.Indexes, c)
		if !c.OK() {
			report.Inconsistent = append(report.Inconsistent, c.Name)
			logger.Warn("%s inconsistent: %d index-only, %d data-only keys", c.Name, len(c.IndexOnly), len(c.DataOnly))
		}
	}

	docs, err := v.catalog.TransformedActs().List(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read transformed acts: %w", err)
	}
	for _, doc := range docs {
		if doc.Review {
			report.ReviewActs = append(report.ReviewActs, ReviewAct{
				Nro:              doc.LeafAct.Nro,
				StructuralErrors: doc.StructuralErrors,
				CoverageGaps:     doc.CoverageGaps,
			})
		}
	}

	rawActs, err := v.catalog.RawActs().List(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw acts: %w", err)
	}
	rawKeywords, err := v.catalog.RawKeywords().List(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw keywords: %w", err)
	}
	transformedKeywords, err := v.catalog.TransformedKeywords().List(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read transformed keywords: %w", err)
	}
	questions, err := v.catalog.TransformedQuestions().List(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read transformed questions: %w", err)
	}

	report.Artefacts = FindArtefacts(rawKeywords)
	report.RawGaps = RelationGaps(rawActs, rawKeywords)
	report.Gaps = RelationGaps(rawActs, transformedKeywords)
	report.Coverage = CheckCoverage(questions, len(docs), rawKeywords)

	if v.docs != nil && v.vectors != nil {
		stores, err := v.checkStores(ctx)
		if err != nil {
			return nil, err
		}
		report.Stores = stores
	}

	logger.Info("validation: %d inconsistent indexes, %d acts for review, %d artefacts, %d relation gaps",
		len(report.Inconsistent), len(report.ReviewActs), len(report.Artefacts), len(report.Gaps))
	return report, nil
}

// FindArtefacts lists keyword units whose ID starts with ArtefactPrefix
func FindArtefacts(keywords []types.Keyword) []Artefact {
	var out []Artefact
	for _, kw := range keywords {
		for _, rel := range kw.ActRelations {
			for _, unit := range rel.RelationData.Units {
				if strings.HasPrefix(unit.ID, ArtefactPrefix) {
					out = append(out, Artefact{Keyword: kw.Ref().Key(), ActNro: rel.Nro, UnitID: unit.ID})
				}
			}
		}
	}
	return out
}

// RelationGaps lists acts that declare a keyword whose relation listing
// omits them. Keywords that were not extracted, or list no relations at
// all, are not reported.
func RelationGaps(acts []types.RawAct, keywords []types.Keyword) []RelationGap {
	byRef := make(map[types.KeywordRef]types.Keyword, len(keywords))
	for _, kw := range keywords {
		byRef[kw.Ref().Identity()] = kw
	}

	var gaps []RelationGap
	for _, act := range acts {
		for _, ref := range act.Keywords {
			kw, ok := byRef[ref.Identity()]
			if !ok || len(kw.ActRelations) == 0 {
				continue
			}
			if _, found := kw.Relation(act.Nro); !found {
				gaps = append(gaps, RelationGap{ActNro: act.Nro, Keyword: ref.Key()})
			}
		}
	}
	return gaps
}

// CheckCoverage counts the acts and keywords cited by live questions and
// lists cited keywords that were never extracted
func CheckCoverage(questions []types.Question, transformedActs int, extracted []types.Keyword) Coverage {
	acts := make(map[int]bool)
	cited := make(map[types.KeywordRef]bool)
	for i := range questions {
		if questions[i].Pruned {
			continue
		}
		for _, nro := range questions[i].ActNros() {
			acts[nro] = true
		}
		for _, ref := range questions[i].Keywords {
			cited[ref.Identity()] = true
		}
	}

	have := make(map[types.KeywordRef]bool, len(extracted))
	for _, kw := range extracted {
		have[kw.Ref().Identity()] = true
	}

	coverage := Coverage{
		CitedActs:         len(acts),
		CitedKeywords:     len(cited),
		TransformedActs:   transformedActs,
		ExtractedKeywords: len(extracted),
	}
	for ref := range cited {
		if !have[ref] {
			coverage.MissingKeywords = append(coverage.MissingKeywords, ref.Key())
		}
	}
	sort.Strings(coverage.MissingKeywords)
	return coverage
}

// checkStores flags vector counts that differ from document counts
func (v *Validator) checkStores(ctx context.Context) (*StoreReport, error) {
	docs, err := v.docs.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	vectors, err := v.vectors.VectorCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}

	report := &StoreReport{Documents: docs, Vectors: vectors}
	if docs.ActVectors != vectors.Acts {
		report.Mismatches = append(report.Mismatches,
			fmt.Sprintf("act vectors: %d documents, %d points", docs.ActVectors, vectors.Acts))
	}
	if docs.Questions != vectors.Questions {
		report.Mismatches = append(report.Mismatches,
			fmt.Sprintf("questions: %d documents, %d points", docs.Questions, vectors.Questions))
	}
	return report, nil
}
