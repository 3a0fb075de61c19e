package transform

import (
	"context"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/lexcite/internal/citation"
	"github.com/dshills/lexcite/internal/config"
	"github.com/dshills/lexcite/internal/fetch"
	"github.com/dshills/lexcite/internal/index"
	"github.com/dshills/lexcite/internal/logger"
	"github.com/dshills/lexcite/pkg/types"
)

// Prune reasons recorded on questions that are never loaded
const (
	ReasonNoKeywords = "no keywords"
	ReasonNoActs     = "no related acts"
)

// probeCacheSize bounds the memo of unit probe results
const probeCacheSize = 50000

// Prober reports whether the portal exposes a unit list for an act
type Prober interface {
	UnitsAvailable(ctx context.Context, nro int) (bool, error)
}

// Questions filters raw questions down to the citations worth indexing
type Questions struct {
	rules  config.TransformConfig
	prober Prober
	sem    *semaphore.Weighted
	probes *lru.Cache[int, bool]
}

// NewQuestions creates a question transformer. concurrency caps probes in
// flight; zero means unbounded.
func NewQuestions(rules config.TransformConfig, prober Prober, concurrency int) (*Questions, error) {
	probes, err := lru.New[int, bool](probeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe cache: %w", err)
	}
	if rules.BatchSize <= 0 {
		rules.BatchSize = index.DefaultBatchSize
	}
	var sem *semaphore.Weighted
	if concurrency > 0 {
		sem = semaphore.NewWeighted(int64(concurrency))
	}
	return &Questions{rules: rules, prober: prober, sem: sem, probes: probes}, nil
}

// QuestionResult is the outcome of one Transform call
type QuestionResult struct {
	Questions []types.Question
	// Deferred lists questions citing an act whose probe failed this run
	Deferred []int
}

// Transform filters every question. Questions that cite an act whose probe
// failed are deferred so the next run transforms them again.
func (q *Questions) Transform(ctx context.Context, questions []types.Question) QuestionResult {
	candidates := make([]int, 0)
	seen := make(map[int]bool)
	for i := range questions {
		for _, act := range q.staticFilter(questions[i].RelatedActs) {
			if seen[act.Nro] || q.probes.Contains(act.Nro) {
				continue
			}
			seen[act.Nro] = true
			candidates = append(candidates, act.Nro)
		}
	}
	failed := q.probe(ctx, candidates)

	result := QuestionResult{Questions: make([]types.Question, 0, len(questions))}
	for _, question := range questions {
		if citesAny(question, failed) {
			result.Deferred = append(result.Deferred, question.Nro)
			continue
		}
		result.Questions = append(result.Questions, q.Filter(question, q.parsable))
	}
	if len(result.Deferred) > 0 {
		logger.Warn("Deferred %d questions with unresolved act probes", len(result.Deferred))
	}
	return result
}

// probe resolves unknown acts in batches and returns the acts whose probe
// failed. Successful results are memoised.
func (q *Questions) probe(ctx context.Context, nros []int) map[int]bool {
	failed := make(map[int]bool)
	for _, batch := range index.Batches(nros, q.rules.BatchSize) {
		results := fetch.Gather(ctx, q.sem, batch, q.prober.UnitsAvailable)
		for nro, ok := range results.OK {
			q.probes.Add(nro, ok)
		}
		for nro := range results.Failed {
			failed[nro] = true
		}
	}
	return failed
}

func (q *Questions) parsable(nro int) bool {
	ok, found := q.probes.Get(nro)
	return found && ok
}

// staticFilter applies the validity and stale title rules
func (q *Questions) staticFilter(acts []types.RelatedAct) []types.RelatedAct {
	kept := make([]types.RelatedAct, 0, len(acts))
	for _, act := range acts {
		if q.rules.KeepValidity != "" && act.Validity != q.rules.KeepValidity {
			continue
		}
		if types.HasTitlePrefix(act.Title, q.rules.StaleTitlePrefixes) {
			continue
		}
		kept = append(kept, act)
	}
	return kept
}

// Filter applies every question rule using parsable as the act probe
func (q *Questions) Filter(question types.Question, parsable func(nro int) bool) types.Question {
	acts := make([]types.RelatedAct, 0)
	for _, act := range q.staticFilter(question.RelatedActs) {
		if !parsable(act.Nro) {
			continue
		}
		units := make([]types.CitationData, 0, len(act.RelationData))
		for _, unit := range act.RelationData {
			if citation.IsSynthetic(unit.ID, q.rules.SyntheticCitationPrefixes) {
				continue
			}
			units = append(units, unit)
		}
		act.RelationData = units
		acts = append(acts, act)
	}

	question.RelatedActs = acts
	if question.Keywords == nil {
		question.Keywords = []types.KeywordRef{}
	}
	question.Pruned = false
	question.PruneReason = ""
	switch {
	case len(question.Keywords) == 0:
		question.Pruned, question.PruneReason = true, ReasonNoKeywords
	case len(question.RelatedActs) == 0:
		question.Pruned, question.PruneReason = true, ReasonNoActs
	}
	return question
}

func citesAny(q types.Question, nros map[int]bool) bool {
	if len(nros) == 0 {
		return false
	}
	for _, act := range q.RelatedActs {
		if nros[act.Nro] {
			return true
		}
	}
	return false
}

// SelectActs returns, in ascending order, the acts cited by at least
// minCitations kept questions. A question citing an act twice counts once.
func SelectActs(questions []types.Question, minCitations int) []int {
	if minCitations < 1 {
		minCitations = 1
	}
	counts := make(map[int]int)
	for i := range questions {
		if questions[i].Pruned {
			continue
		}
		for _, nro := range questions[i].ActNros() {
			counts[nro]++
		}
	}

	selected := make([]int, 0, len(counts))
	for nro, n := range counts {
		if n >= minCitations {
			selected = append(selected, nro)
		}
	}
	sort.Ints(selected)
	return selected
}

// KeywordsNeeded returns the keywords of kept questions followed by those
// declared by acts, deduplicated by identity in order of first appearance.
func KeywordsNeeded(questions []types.Question, acts []types.RawAct) []types.KeywordRef {
	needed := make([]types.KeywordRef, 0)
	seen := make(map[types.KeywordRef]bool)
	add := func(kw types.KeywordRef) {
		if !seen[kw.Identity()] {
			seen[kw.Identity()] = true
			needed = append(needed, kw)
		}
	}
	for i := range questions {
		if questions[i].Pruned {
			continue
		}
		for _, kw := range questions[i].Keywords {
			add(kw)
		}
	}
	for i := range acts {
		for _, kw := range acts[i].Keywords {
			add(kw)
		}
	}
	return needed
}
