package loader

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dshills/lexcite/internal/embedder"
	"github.com/dshills/lexcite/internal/index"
	"github.com/dshills/lexcite/internal/logger"
	"github.com/dshills/lexcite/internal/storage"
	"github.com/dshills/lexcite/pkg/types"
)

// Defaults
const (
	DefaultStoreBatch = index.DefaultBatchSize
	DefaultEmbedBatch = embedder.DefaultBatchSize
)

// Options configures batch sizes
type Options struct {
	StoreBatch int // documents per upsert batch
	EmbedBatch int // texts per embedding request
}

// Loader writes transformed documents to the retrieval stores and
// reconciles every batch with get-by-key
type Loader struct {
	docs       storage.Store
	vectors    storage.VectorStore
	embedder   embedder.Embedder
	storeBatch int
	embedBatch int
	ready      bool
	now        func() time.Time
}

// Statistics tracks load metrics
type Statistics struct {
	ActsLoaded       int
	VectorsLoaded    int
	KeywordsLoaded   int
	QuestionsLoaded  int
	QuestionsSkipped int
	Failed           []string // keys left for the next run
	Duration         time.Duration
}

// New creates a loader. vectors and emb may be nil when only keywords are loaded.
func New(docs storage.Store, vectors storage.VectorStore, emb embedder.Embedder, opts Options) *Loader {
	if opts.StoreBatch <= 0 {
		opts.StoreBatch = DefaultStoreBatch
	}
	if opts.EmbedBatch <= 0 || opts.EmbedBatch > embedder.MaxBatchSize {
		opts.EmbedBatch = DefaultEmbedBatch
	}
	return &Loader{
		docs:       docs,
		vectors:    vectors,
		embedder:   emb,
		storeBatch: opts.StoreBatch,
		embedBatch: opts.EmbedBatch,
		now:        time.Now,
	}
}

// ensureCollections creates vector collections once per loader
func (l *Loader) ensureCollections(ctx context.Context) error {
	if l.ready {
		return nil
	}
	if l.vectors == nil || l.embedder == nil {
		return errors.New("vector store and embedder are required")
	}
	if err := l.vectors.EnsureCollections(ctx, l.embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure vector collections: %w", err)
	}
	l.ready = true
	return nil
}

// LoadActs loads leaf acts, their vectors and embeddings. It returns a
// receipt for every act that reconciled. A batch that fails is logged and
// left for the next run.
func (l *Loader) LoadActs(ctx context.Context, docs []types.ActDocument) ([]index.ActReceipt, *Statistics, error) {
	start := l.now()
	stats := &Statistics{}
	receipts := make([]index.ActReceipt, 0, len(docs))
	if len(docs) == 0 {
		return receipts, stats, nil
	}
	if err := l.ensureCollections(ctx); err != nil {
		return nil, nil, err
	}

	for _, batch := range index.Batches(docs, l.storeBatch) {
		if err := ctx.Err(); err != nil {
			return receipts, stats, err
		}
		loaded, err := l.loadActBatch(ctx, batch)
		if err != nil {
			logger.Warn("act batch of %d failed: %v", len(batch), err)
			for i := range batch {
				stats.Failed = append(stats.Failed, fmt.Sprintf("act/%d", batch[i].LeafAct.Nro))
			}
			continue
		}
		for _, r := range loaded.receipts {
			stats.ActsLoaded++
			stats.VectorsLoaded += r.Vectors
			receipts = append(receipts, r)
		}
		stats.Failed = append(stats.Failed, loaded.failed...)
	}

	stats.Duration = l.now().Sub(start)
	logger.Info("loaded %d acts (%d vectors), %d failed", stats.ActsLoaded, stats.VectorsLoaded, len(stats.Failed))
	return receipts, stats, nil
}

type actBatchResult struct {
	receipts []index.ActReceipt
	failed   []string
}

func (l *Loader) loadActBatch(ctx context.Context, batch []types.ActDocument) (*actBatchResult, error) {
	leaves := make([]types.LeafAct, len(batch))
	var vectors []types.ActVector
	for i := range batch {
		leaves[i] = batch[i].LeafAct
		vectors = append(vectors, batch[i].Vectors...)
	}

	if err := l.docs.UpsertLeafActs(ctx, leaves); err != nil {
		return nil, err
	}
	if len(vectors) > 0 {
		texts := make([]string, len(vectors))
		for i := range vectors {
			texts[i] = vectors[i].Text
		}
		embeddings, err := embedder.EmbedAll(ctx, l.embedder, texts, l.embedBatch)
		if err != nil {
			return nil, err
		}
		if err := l.docs.UpsertActVectors(ctx, vectors); err != nil {
			return nil, err
		}
		if err := l.vectors.UpsertActEmbeddings(ctx, vectors, embeddings); err != nil {
			return nil, err
		}
	}

	result := &actBatchResult{}
	now := l.now()
	for i := range batch {
		if key, err := l.reconcileAct(ctx, &batch[i]); err != nil {
			logger.Warn("act %d did not reconcile at %s: %v", batch[i].LeafAct.Nro, key, err)
			result.failed = append(result.failed, fmt.Sprintf("act/%d", batch[i].LeafAct.Nro))
			continue
		}
		result.receipts = append(result.receipts, index.ActReceipt{
			Nro:      batch[i].LeafAct.Nro,
			LoadedAt: now,
			Vectors:  len(batch[i].Vectors),
		})
	}
	return result, nil
}

// reconcileAct reads back the leaf act and every vector. It returns the
// first key that could not be read.
func (l *Loader) reconcileAct(ctx context.Context, doc *types.ActDocument) (string, error) {
	if _, err := l.docs.GetLeafAct(ctx, doc.LeafAct.Nro); err != nil {
		return strconv.Itoa(doc.LeafAct.Nro), err
	}
	for i := range doc.Vectors {
		v := &doc.Vectors[i]
		if _, err := l.docs.GetActVector(ctx, v.ActNro, v.ReconstructID); err != nil {
			return v.Key(), err
		}
	}
	return "", nil
}

// LoadKeywords upserts keywords and returns receipts for those that reconciled
func (l *Loader) LoadKeywords(ctx context.Context, keywords []types.Keyword) ([]index.KeywordReceipt, *Statistics, error) {
	start := l.now()
	stats := &Statistics{}
	receipts := make([]index.KeywordReceipt, 0, len(keywords))

	for _, batch := range index.Batches(keywords, l.storeBatch) {
		if err := ctx.Err(); err != nil {
			return receipts, stats, err
		}
		if err := l.docs.UpsertKeywords(ctx, batch); err != nil {
			logger.Warn("keyword batch of %d failed: %v", len(batch), err)
			for i := range batch {
				stats.Failed = append(stats.Failed, "keyword/"+batch[i].Ref().Key())
			}
			continue
		}
		now := l.now()
		for i := range batch {
			ref := batch[i].Ref()
			if _, err := l.docs.GetKeyword(ctx, ref); err != nil {
				logger.Warn("keyword %s did not reconcile: %v", ref.Key(), err)
				stats.Failed = append(stats.Failed, "keyword/"+ref.Key())
				continue
			}
			stats.KeywordsLoaded++
			receipts = append(receipts, index.KeywordReceipt{Ref: ref, LoadedAt: now})
		}
	}

	stats.Duration = l.now().Sub(start)
	logger.Info("loaded %d keywords, %d failed", stats.KeywordsLoaded, len(stats.Failed))
	return receipts, stats, nil
}

// LoadQuestions stores questions and embeds their titles. Pruned questions
// are not written; they get a skipped receipt so they are not revisited.
func (l *Loader) LoadQuestions(ctx context.Context, questions []types.Question) ([]index.QuestionReceipt, *Statistics, error) {
	start := l.now()
	stats := &Statistics{}
	receipts := make([]index.QuestionReceipt, 0, len(questions))

	live := make([]types.Question, 0, len(questions))
	for i := range questions {
		if questions[i].Pruned {
			stats.QuestionsSkipped++
			receipts = append(receipts, index.QuestionReceipt{Nro: questions[i].Nro, LoadedAt: l.now(), Skipped: true})
			continue
		}
		live = append(live, questions[i])
	}
	if len(live) == 0 {
		stats.Duration = l.now().Sub(start)
		return receipts, stats, nil
	}
	if err := l.ensureCollections(ctx); err != nil {
		return nil, nil, err
	}

	for _, batch := range index.Batches(live, l.storeBatch) {
		if err := ctx.Err(); err != nil {
			return receipts, stats, err
		}
		if err := l.loadQuestionBatch(ctx, batch); err != nil {
			logger.Warn("question batch of %d failed: %v", len(batch), err)
			for i := range batch {
				stats.Failed = append(stats.Failed, fmt.Sprintf("question/%d", batch[i].Nro))
			}
			continue
		}
		now := l.now()
		for i := range batch {
			if _, err := l.docs.GetQuestion(ctx, batch[i].Nro); err != nil {
				logger.Warn("question %d did not reconcile: %v", batch[i].Nro, err)
				stats.Failed = append(stats.Failed, fmt.Sprintf("question/%d", batch[i].Nro))
				continue
			}
			stats.QuestionsLoaded++
			receipts = append(receipts, index.QuestionReceipt{Nro: batch[i].Nro, LoadedAt: now})
		}
	}

	stats.Duration = l.now().Sub(start)
	logger.Info("loaded %d questions, skipped %d pruned, %d failed",
		stats.QuestionsLoaded, stats.QuestionsSkipped, len(stats.Failed))
	return receipts, stats, nil
}

func (l *Loader) loadQuestionBatch(ctx context.Context, batch []types.Question) error {
	titles := make([]string, len(batch))
	for i := range batch {
		titles[i] = questionText(&batch[i])
	}
	embeddings, err := embedder.EmbedAll(ctx, l.embedder, titles, l.embedBatch)
	if err != nil {
		return err
	}
	if err := l.docs.UpsertQuestions(ctx, batch); err != nil {
		return err
	}
	return l.vectors.UpsertQuestionEmbeddings(ctx, batch, embeddings)
}

// questionText is the embedded text of a question: its title, or the
// question body when the title is blank
func questionText(q *types.Question) string {
	if q.Title != "" {
		return q.Title
	}
	if q.Question != "" {
		return q.Question
	}
	return fmt.Sprintf("question %d", q.Nro)
}
