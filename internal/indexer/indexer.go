package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/lexcite/internal/chunker"
	"github.com/dshills/lexcite/internal/config"
	"github.com/dshills/lexcite/internal/fetch"
	"github.com/dshills/lexcite/internal/index"
	"github.com/dshills/lexcite/internal/loader"
	"github.com/dshills/lexcite/internal/logger"
	"github.com/dshills/lexcite/internal/parser"
	"github.com/dshills/lexcite/internal/portal"
	"github.com/dshills/lexcite/internal/transform"
	"github.com/dshills/lexcite/pkg/types"
)

// ErrNoLoader is returned by the load stage when no loader was configured
var ErrNoLoader = errors.New("no loader configured")

// Portal is the upstream source of questions, acts and keywords
type Portal interface {
	transform.Prober
	AllQuestionNros(ctx context.Context) ([]int, error)
	Question(ctx context.Context, nro int) (types.Question, error)
	Act(ctx context.Context, nro int) (types.RawAct, error)
	Keyword(ctx context.Context, ref types.KeywordRef) (types.Keyword, error)
}

// Loader writes transformed entities to the retrieval stores
type Loader interface {
	LoadActs(ctx context.Context, docs []types.ActDocument) ([]index.ActReceipt, *loader.Statistics, error)
	LoadKeywords(ctx context.Context, keywords []types.Keyword) ([]index.KeywordReceipt, *loader.Statistics, error)
	LoadQuestions(ctx context.Context, questions []types.Question) ([]index.QuestionReceipt, *loader.Statistics, error)
}

// Indexer coordinates the pipeline: extract -> transform -> load, per entity.
// Workers only fetch; every index file is written here, after each barrier.
type Indexer struct {
	catalog   *index.Catalog
	portal    Portal
	loader    Loader
	questions *transform.Questions
	acts      *transform.Acts

	partition    types.Partition
	batchSize    int
	minCitations int

	questionSem *semaphore.Weighted
	actSem      *semaphore.Weighted
	keywordSem  *semaphore.Weighted

	lock  IndexLock
	runID func() string
}

// Config contains configuration for the indexer
type Config struct {
	Partition   types.Partition
	BatchSize   int // keys per fetch barrier (default: 25)
	Concurrency config.ConcurrencyConfig
	Transform   config.TransformConfig
}

// ConfigFrom derives the indexer configuration from the application config
func ConfigFrom(cfg *config.AppConfig) *Config {
	return &Config{
		Partition:   cfg.Partition(),
		BatchSize:   cfg.Transform.BatchSize,
		Concurrency: cfg.Concurrency,
		Transform:   cfg.Transform,
	}
}

// StageStats contains counts for one stage of a run
type StageStats struct {
	Stage     Stage         `json:"stage"`
	Pending   int           `json:"pending"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Deferred  int           `json:"deferred,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Statistics contains statistics about one pipeline run
type Statistics struct {
	RunID         string        `json:"run_id"`
	Partition     string        `json:"partition"`
	Stages        []StageStats  `json:"stages"`
	Duration      time.Duration `json:"duration"`
	ErrorMessages []string      `json:"error_messages,omitempty"`
}

// Stage returns the counts recorded for s, if it ran
func (s *Statistics) Stage(stage Stage) (StageStats, bool) {
	for _, st := range s.Stages {
		if st.Stage == stage {
			return st, true
		}
	}
	return StageStats{}, false
}

// New creates a new Indexer. ld may be nil when the load stage is not run.
func New(catalog *index.Catalog, p Portal, ld Loader, cfg *Config) (*Indexer, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = index.DefaultBatchSize
	}

	questions, err := transform.NewQuestions(cfg.Transform, p, cfg.Concurrency.Probes)
	if err != nil {
		return nil, err
	}
	tokenizer, err := chunker.NewTokenizer(cfg.Transform.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	budget := cfg.Transform.ChunkTokens
	if budget <= 0 {
		budget = chunker.DefaultBudget
	}

	return &Indexer{
		catalog:      catalog,
		portal:       p,
		loader:       ld,
		questions:    questions,
		acts:         transform.NewActs(parser.New(), chunker.New(tokenizer, budget)),
		partition:    cfg.Partition,
		batchSize:    cfg.BatchSize,
		minCitations: cfg.Transform.ActMinCitations,
		questionSem:  weighted(cfg.Concurrency.Questions),
		actSem:       weighted(cfg.Concurrency.Acts),
		keywordSem:   weighted(cfg.Concurrency.Keywords),
		runID:        uuid.NewString,
	}, nil
}

func weighted(n int) *semaphore.Weighted {
	return semaphore.NewWeighted(int64(max(n, 1)))
}

// Partition returns the partition the indexer works on
func (idx *Indexer) Partition() types.Partition {
	return idx.partition
}

// Running reports whether a run is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// Status returns the consistency of every index in pipeline order
func (idx *Indexer) Status() ([]*index.Consistency, error) {
	trackers := idx.catalog.Trackers()
	out := make([]*index.Consistency, 0, len(trackers))
	for _, t := range trackers {
		c, err := t.Validate(idx.partition)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", t.Name(), err)
		}
		out = append(out, c)
	}
	return out, nil
}

// run carries state derived by one stage for the stages after it
type run struct {
	stats     *Statistics
	questions []types.Question // transformed questions
	acts      []int            // selected act nros
	keywords  []types.KeywordRef
	selected  bool
	derived   bool
}

func (r *run) note(format string, args ...any) {
	r.stats.ErrorMessages = append(r.stats.ErrorMessages, fmt.Sprintf(format, args...))
}

// Run executes stages in pipeline order. No stages means all of them.
// Item failures are recorded and left pending; index read or write
// failures stop the run.
func (idx *Indexer) Run(ctx context.Context, stages []Stage) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer idx.lock.Release()

	want := make(map[Stage]bool, len(stages))
	for _, s := range stages {
		want[s] = true
	}

	startTime := time.Now()
	r := &run{stats: &Statistics{
		RunID:     idx.runID(),
		Partition: idx.partition.Name(),
		Stages:    make([]StageStats, 0, len(AllStages)),
	}}
	logger.Info("Run %s on partition %s", r.stats.RunID, r.stats.Partition)

	for _, stage := range AllStages {
		if len(want) > 0 && !want[stage] {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.stats.Duration = time.Since(startTime)
			return r.stats, err
		}

		logger.Section(string(stage))
		st := StageStats{Stage: stage}
		stageStart := time.Now()
		err := idx.runStage(ctx, r, stage, &st)
		st.Duration = time.Since(stageStart)
		r.stats.Stages = append(r.stats.Stages, st)
		if err != nil {
			r.note("%s: %v", stage, err)
			r.stats.Duration = time.Since(startTime)
			return r.stats, fmt.Errorf("stage %s failed: %w", stage, err)
		}
		logger.Info("%s: %d pending, %d processed, %d failed", stage, st.Pending, st.Processed, st.Failed)
	}

	r.stats.Duration = time.Since(startTime)
	return r.stats, nil
}

func (idx *Indexer) runStage(ctx context.Context, r *run, stage Stage, st *StageStats) error {
	switch stage {
	case StageExtractQuestions:
		return idx.extractQuestions(ctx, r, st)
	case StageTransformQuestions:
		return idx.transformQuestions(ctx, r, st)
	case StageSelectActs:
		return idx.selectActs(r, st)
	case StageExtractActs:
		return idx.extractActs(ctx, r, st)
	case StageDeriveKeywords:
		return idx.deriveKeywords(r, st)
	case StageExtractKeywords:
		return idx.extractKeywords(ctx, r, st)
	case StageTransformKeywords:
		return idx.transformKeywords(r, st)
	case StageTransformActs:
		return idx.transformActs(r, st)
	case StageLoad:
		return idx.load(ctx, r, st)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

// recordFailures counts failed fetches and keeps their messages in key order
func recordFailures[K comparable, V any](r *run, st *StageStats, entity string, res *fetch.Results[K, V]) {
	messages := make([]string, 0, len(res.Failed))
	for key, err := range res.Failed {
		messages = append(messages, fmt.Sprintf("%s %v: %v", entity, key, err))
	}
	sort.Strings(messages)
	st.Failed += len(messages)
	r.stats.ErrorMessages = append(r.stats.ErrorMessages, messages...)
}

func (idx *Indexer) extractQuestions(ctx context.Context, r *run, st *StageStats) error {
	nros, err := idx.portal.AllQuestionNros(ctx)
	if err != nil {
		if !errors.Is(err, portal.ErrIncomplete) {
			return fmt.Errorf("failed to list questions: %w", err)
		}
		// Continue with the pages that arrived; the rest are found next run
		r.note("%v", err)
	}

	rawQuestions := idx.catalog.RawQuestions()
	batches, err := rawQuestions.FindMissingBatches(nros, idx.batchSize, idx.partition)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		st.Pending += len(batch)
		res := fetch.Gather(ctx, idx.questionSem, batch, idx.portal.Question)
		recordFailures(r, st, "question", res)
		if _, err := rawQuestions.Commit(res.Values(), idx.partition); err != nil {
			return fmt.Errorf("failed to commit questions: %w", err)
		}
		st.Processed += len(res.OK)
	}
	return nil
}

func (idx *Indexer) transformQuestions(ctx context.Context, r *run, st *StageStats) error {
	raw, err := idx.catalog.RawQuestions().List(idx.partition)
	if err != nil {
		return err
	}
	byNro := make(map[int]types.Question, len(raw))
	nros := make([]int, 0, len(raw))
	for _, q := range raw {
		byNro[q.Nro] = q
		nros = append(nros, q.Nro)
	}

	transformed := idx.catalog.TransformedQuestions()
	missing, err := transformed.FindMissing(nros, idx.partition)
	if err != nil {
		return err
	}
	st.Pending = len(missing)

	for _, batch := range index.Batches(missing, idx.batchSize) {
		questions := make([]types.Question, 0, len(batch))
		for _, nro := range batch {
			questions = append(questions, byNro[nro])
		}
		result := idx.questions.Transform(ctx, questions)
		if _, err := transformed.Commit(result.Questions, idx.partition); err != nil {
			return fmt.Errorf("failed to commit transformed questions: %w", err)
		}
		st.Processed += len(result.Questions)
		st.Deferred += len(result.Deferred)
	}
	r.selected, r.derived = false, false
	return nil
}

func (idx *Indexer) selectActs(r *run, st *StageStats) error {
	questions, err := idx.catalog.TransformedQuestions().List(idx.partition)
	if err != nil {
		return err
	}
	r.questions = questions
	r.acts = transform.SelectActs(questions, idx.minCitations)
	r.selected = true

	st.Pending = len(questions)
	st.Processed = len(r.acts)
	logger.Info("Selected %d acts cited by at least %d questions", len(r.acts), max(idx.minCitations, 1))
	return nil
}

func (idx *Indexer) extractActs(ctx context.Context, r *run, st *StageStats) error {
	if !r.selected {
		if err := idx.selectActs(r, &StageStats{}); err != nil {
			return err
		}
	}

	rawActs := idx.catalog.RawActs()
	batches, err := rawActs.FindMissingBatches(r.acts, idx.batchSize, idx.partition)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		st.Pending += len(batch)
		res := fetch.Gather(ctx, idx.actSem, batch, idx.portal.Act)
		recordFailures(r, st, "act", res)
		if _, err := rawActs.Commit(res.Values(), idx.partition); err != nil {
			return fmt.Errorf("failed to commit acts: %w", err)
		}
		st.Processed += len(res.OK)
	}
	r.derived = false
	return nil
}

func (idx *Indexer) deriveKeywords(r *run, st *StageStats) error {
	if !r.selected {
		if err := idx.selectActs(r, &StageStats{}); err != nil {
			return err
		}
	}
	acts, err := idx.catalog.RawActs().List(idx.partition)
	if err != nil {
		return err
	}
	r.keywords = transform.KeywordsNeeded(r.questions, acts)
	r.derived = true

	st.Pending = len(acts)
	st.Processed = len(r.keywords)
	return nil
}

func (idx *Indexer) extractKeywords(ctx context.Context, r *run, st *StageStats) error {
	if !r.derived {
		if err := idx.deriveKeywords(r, &StageStats{}); err != nil {
			return err
		}
	}

	rawKeywords := idx.catalog.RawKeywords()
	batches, err := rawKeywords.FindMissingBatches(r.keywords, idx.batchSize, idx.partition)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		st.Pending += len(batch)
		res := fetch.Gather(ctx, idx.keywordSem, batch, idx.portal.Keyword)
		recordFailures(r, st, "keyword", res)
		if _, err := rawKeywords.Commit(res.Values(), idx.partition); err != nil {
			return fmt.Errorf("failed to commit keywords: %w", err)
		}
		st.Processed += len(res.OK)
	}
	return nil
}

// rawActsByNro reads every extracted act
func (idx *Indexer) rawActsByNro() ([]types.RawAct, map[int]*types.RawAct, error) {
	acts, err := idx.catalog.RawActs().List(idx.partition)
	if err != nil {
		return nil, nil, err
	}
	byNro := make(map[int]*types.RawAct, len(acts))
	for i := range acts {
		byNro[acts[i].Nro] = &acts[i]
	}
	return acts, byNro, nil
}

func (idx *Indexer) transformKeywords(r *run, st *StageStats) error {
	raw, err := idx.catalog.RawKeywords().List(idx.partition)
	if err != nil {
		return err
	}
	_, acts, err := idx.rawActsByNro()
	if err != nil {
		return err
	}

	byKey := make(map[types.KeywordRef]types.Keyword, len(raw))
	refs := make([]types.KeywordRef, 0, len(raw))
	for _, kw := range raw {
		byKey[kw.Ref().Identity()] = kw
		refs = append(refs, kw.Ref())
	}

	transformed := idx.catalog.TransformedKeywords()
	missing, err := transformed.FindMissing(refs, idx.partition)
	if err != nil {
		return err
	}
	st.Pending = len(missing)

	for _, batch := range index.Batches(missing, idx.batchSize) {
		out := make([]types.Keyword, 0, len(batch))
		for _, ref := range batch {
			out = append(out, transform.Keyword(byKey[ref.Identity()], acts))
		}
		if _, err := transformed.Commit(out, idx.partition); err != nil {
			return fmt.Errorf("failed to commit transformed keywords: %w", err)
		}
		st.Processed += len(out)
	}
	return nil
}

func (idx *Indexer) transformActs(r *run, st *StageStats) error {
	acts, byNro, err := idx.rawActsByNro()
	if err != nil {
		return err
	}
	keywords, err := idx.catalog.TransformedKeywords().List(idx.partition)
	if err != nil {
		return err
	}
	byRef := make(map[types.KeywordRef]types.Keyword, len(keywords))
	for _, kw := range keywords {
		byRef[kw.Ref().Identity()] = kw
	}
	lookup := func(ref types.KeywordRef) (types.Keyword, bool) {
		kw, ok := byRef[ref.Identity()]
		return kw, ok
	}

	nros := make([]int, 0, len(acts))
	for i := range acts {
		nros = append(nros, acts[i].Nro)
	}
	transformed := idx.catalog.TransformedActs()
	missing, err := transformed.FindMissing(nros, idx.partition)
	if err != nil {
		return err
	}
	st.Pending = len(missing)

	for _, batch := range index.Batches(missing, idx.batchSize) {
		docs := make([]types.ActDocument, 0, len(batch))
		for _, nro := range batch {
			if ref, ok := untransformed(byNro[nro], lookup); !ok {
				logger.Debug("Act %d deferred: keyword %s not transformed", nro, ref.Key())
				st.Deferred++
				continue
			}
			doc := idx.acts.Transform(byNro[nro], lookup)
			if doc.Review {
				r.note("act %d flagged for review", nro)
			}
			docs = append(docs, doc)
		}
		if _, err := transformed.Commit(docs, idx.partition); err != nil {
			return fmt.Errorf("failed to commit transformed acts: %w", err)
		}
		st.Processed += len(docs)
	}
	return nil
}

// untransformed returns the first keyword act declares that lookup lacks.
// Transformed keywords are never rewritten, so such an act waits for a
// later run instead of losing the keyword.
func untransformed(act *types.RawAct, lookup func(types.KeywordRef) (types.Keyword, bool)) (types.KeywordRef, bool) {
	for _, ref := range act.Keywords {
		if _, ok := lookup(ref); !ok {
			return ref, false
		}
	}
	return types.KeywordRef{}, true
}

func (idx *Indexer) load(ctx context.Context, r *run, st *StageStats) error {
	if idx.loader == nil {
		return ErrNoLoader
	}
	if err := idx.loadQuestions(ctx, r, st); err != nil {
		return err
	}
	if err := idx.loadKeywords(ctx, r, st); err != nil {
		return err
	}
	return idx.loadActs(ctx, r, st)
}

func noteLoadFailures(r *run, st *StageStats, stats *loader.Statistics) {
	if stats == nil {
		return
	}
	st.Failed += len(stats.Failed)
	for _, key := range stats.Failed {
		r.note("failed to load %s", key)
	}
}

func (idx *Indexer) loadQuestions(ctx context.Context, r *run, st *StageStats) error {
	questions, err := idx.catalog.TransformedQuestions().List(idx.partition)
	if err != nil {
		return err
	}
	byNro := make(map[int]types.Question, len(questions))
	nros := make([]int, 0, len(questions))
	for _, q := range questions {
		byNro[q.Nro] = q
		nros = append(nros, q.Nro)
	}

	loaded := idx.catalog.LoadedQuestions()
	batches, err := loaded.FindMissingBatches(nros, idx.batchSize, idx.partition)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		st.Pending += len(batch)
		in := make([]types.Question, 0, len(batch))
		for _, nro := range batch {
			in = append(in, byNro[nro])
		}
		receipts, stats, err := idx.loader.LoadQuestions(ctx, in)
		if err != nil {
			return fmt.Errorf("failed to load questions: %w", err)
		}
		noteLoadFailures(r, st, stats)
		if _, err := loaded.Commit(receipts, idx.partition); err != nil {
			return fmt.Errorf("failed to commit loaded questions: %w", err)
		}
		st.Processed += len(receipts)
	}
	return nil
}

func (idx *Indexer) loadKeywords(ctx context.Context, r *run, st *StageStats) error {
	keywords, err := idx.catalog.TransformedKeywords().List(idx.partition)
	if err != nil {
		return err
	}
	byRef := make(map[types.KeywordRef]types.Keyword, len(keywords))
	refs := make([]types.KeywordRef, 0, len(keywords))
	for _, kw := range keywords {
		byRef[kw.Ref().Identity()] = kw
		refs = append(refs, kw.Ref())
	}

	loaded := idx.catalog.LoadedKeywords()
	batches, err := loaded.FindMissingBatches(refs, idx.batchSize, idx.partition)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		st.Pending += len(batch)
		in := make([]types.Keyword, 0, len(batch))
		for _, ref := range batch {
			in = append(in, byRef[ref.Identity()])
		}
		receipts, stats, err := idx.loader.LoadKeywords(ctx, in)
		if err != nil {
			return fmt.Errorf("failed to load keywords: %w", err)
		}
		noteLoadFailures(r, st, stats)
		if _, err := loaded.Commit(receipts, idx.partition); err != nil {
			return fmt.Errorf("failed to commit loaded keywords: %w", err)
		}
		st.Processed += len(receipts)
	}
	return nil
}

func (idx *Indexer) loadActs(ctx context.Context, r *run, st *StageStats) error {
	docs, err := idx.catalog.TransformedActs().List(idx.partition)
	if err != nil {
		return err
	}
	byNro := make(map[int]types.ActDocument, len(docs))
	nros := make([]int, 0, len(docs))
	for _, doc := range docs {
		byNro[doc.LeafAct.Nro] = doc
		nros = append(nros, doc.LeafAct.Nro)
	}

	loaded := idx.catalog.LoadedActs()
	batches, err := loaded.FindMissingBatches(nros, idx.batchSize, idx.partition)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		st.Pending += len(batch)
		in := make([]types.ActDocument, 0, len(batch))
		for _, nro := range batch {
			in = append(in, byNro[nro])
		}
		receipts, stats, err := idx.loader.LoadActs(ctx, in)
		if err != nil {
			return fmt.Errorf("failed to load acts: %w", err)
		}
		noteLoadFailures(r, st, stats)
		if _, err := loaded.Commit(receipts, idx.partition); err != nil {
			return fmt.Errorf("failed to commit loaded acts: %w", err)
		}
		st.Processed += len(receipts)
	}
	return nil
}
