// Package mongostore implements storage.Store on MongoDB.
//
// Each document kind lives in its own collection with a unique index on its
// natural key. Upserts are unordered bulk replaces, so a batch that is
// written twice leaves one document per key.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dshills/lexcite/internal/storage"
	"github.com/dshills/lexcite/pkg/types"
)

// Collection names
const (
	LeafActsCollection   = "leaf_acts"
	ActVectorsCollection = "act_vectors"
	KeywordsCollection   = "keywords"
	QuestionsCollection  = "questions"

	DefaultDatabase = "lexcite"
	connectTimeout  = 10 * time.Second
)

// Store is a MongoDB-backed document store
type Store struct {
	client     *mongo.Client
	leafActs   *mongo.Collection
	actVectors *mongo.Collection
	keywords   *mongo.Collection
	questions  *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// Connect opens a client, verifies it with a ping and ensures the unique
// indexes exist
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri cannot be empty")
	}
	if database == "" {
		database = DefaultDatabase
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:     client,
		leafActs:   db.Collection(LeafActsCollection),
		actVectors: db.Collection(ActVectorsCollection),
		keywords:   db.Collection(KeywordsCollection),
		questions:  db.Collection(QuestionsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll *mongo.Collection
		keys bson.D
	}{
		{s.leafActs, bson.D{{Key: "nro", Value: 1}}},
		{s.actVectors, bson.D{{Key: "act_nro", Value: 1}, {Key: "reconstruct_id", Value: 1}}},
		{s.keywords, bson.D{{Key: "concept_id", Value: 1}, {Key: "instance_of_type", Value: 1}}},
		{s.questions, bson.D{{Key: "nro", Value: 1}}},
	}
	for _, idx := range indexes {
		model := mongo.IndexModel{Keys: idx.keys, Options: options.Index().SetUnique(true)}
		if _, err := idx.coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// upsertAll replaces or inserts each document by its filter
func upsertAll(ctx context.Context, coll *mongo.Collection, filters []bson.D, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(docs))
	for i := range docs {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(filters[i]).
			SetReplacement(docs[i]).
			SetUpsert(true)
	}
	if _, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", coll.Name(), err)
	}
	return nil
}

// findOne decodes the single document matching filter into out
func findOne(ctx context.Context, coll *mongo.Collection, filter bson.D, out any) error {
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read from %s: %w", coll.Name(), err)
	}
	return nil
}

func (s *Store) UpsertLeafActs(ctx context.Context, acts []types.LeafAct) error {
	filters := make([]bson.D, len(acts))
	docs := make([]any, len(acts))
	for i := range acts {
		filters[i] = leafActFilter(acts[i].Nro)
		docs[i] = newLeafActDoc(&acts[i])
	}
	return upsertAll(ctx, s.leafActs, filters, docs)
}

func (s *Store) GetLeafAct(ctx context.Context, nro int) (*types.LeafAct, error) {
	var doc leafActDoc
	if err := findOne(ctx, s.leafActs, leafActFilter(nro), &doc); err != nil {
		return nil, err
	}
	act := doc.toLeafAct()
	return &act, nil
}

func (s *Store) UpsertActVectors(ctx context.Context, vectors []types.ActVector) error {
	filters := make([]bson.D, len(vectors))
	docs := make([]any, len(vectors))
	for i := range vectors {
		filters[i] = actVectorFilter(vectors[i].ActNro, vectors[i].ReconstructID)
		docs[i] = newActVectorDoc(&vectors[i])
	}
	return upsertAll(ctx, s.actVectors, filters, docs)
}

func (s *Store) GetActVector(ctx context.Context, actNro int, reconstructID string) (*types.ActVector, error) {
	var doc actVectorDoc
	if err := findOne(ctx, s.actVectors, actVectorFilter(actNro, reconstructID), &doc); err != nil {
		return nil, err
	}
	v := doc.toActVector()
	return &v, nil
}

func (s *Store) UpsertKeywords(ctx context.Context, keywords []types.Keyword) error {
	filters := make([]bson.D, len(keywords))
	docs := make([]any, len(keywords))
	for i := range keywords {
		filters[i] = keywordFilter(keywords[i].Ref())
		docs[i] = newKeywordDoc(&keywords[i])
	}
	return upsertAll(ctx, s.keywords, filters, docs)
}

func (s *Store) GetKeyword(ctx context.Context, ref types.KeywordRef) (*types.Keyword, error) {
	var doc keywordDoc
	if err := findOne(ctx, s.keywords, keywordFilter(ref), &doc); err != nil {
		return nil, err
	}
	kw := doc.toKeyword()
	return &kw, nil
}

func (s *Store) UpsertQuestions(ctx context.Context, questions []types.Question) error {
	filters := make([]bson.D, len(questions))
	docs := make([]any, len(questions))
	for i := range questions {
		filters[i] = questionFilter(questions[i].Nro)
		docs[i] = newQuestionDoc(&questions[i])
	}
	return upsertAll(ctx, s.questions, filters, docs)
}

func (s *Store) GetQuestion(ctx context.Context, nro int) (*types.Question, error) {
	var doc questionDoc
	if err := findOne(ctx, s.questions, questionFilter(nro), &doc); err != nil {
		return nil, err
	}
	q := doc.toQuestion()
	return &q, nil
}

// Counts returns the number of documents per collection
func (s *Store) Counts(ctx context.Context) (storage.Counts, error) {
	var counts storage.Counts
	colls := []struct {
		coll *mongo.Collection
		dest *int
	}{
		{s.leafActs, &counts.LeafActs},
		{s.actVectors, &counts.ActVectors},
		{s.keywords, &counts.Keywords},
		{s.questions, &counts.Questions},
	}
	for _, c := range colls {
		n, err := c.coll.CountDocuments(ctx, bson.D{})
		if err != nil {
			return storage.Counts{}, fmt.Errorf("failed to count %s: %w", c.coll.Name(), err)
		}
		*c.dest = int(n)
	}
	return counts, nil
}

func leafActFilter(nro int) bson.D {
	return bson.D{{Key: "nro", Value: nro}}
}

func actVectorFilter(actNro int, reconstructID string) bson.D {
	return bson.D{{Key: "act_nro", Value: actNro}, {Key: "reconstruct_id", Value: reconstructID}}
}

func keywordFilter(ref types.KeywordRef) bson.D {
	return bson.D{{Key: "concept_id", Value: ref.ConceptID}, {Key: "instance_of_type", Value: ref.InstanceOfType}}
}

func questionFilter(nro int) bson.D {
	return bson.D{{Key: "nro", Value: nro}}
}
