// Package qdrant implements storage.VectorStore over the Qdrant REST API.
//
// Point IDs are UUIDv5 values derived from each document's natural key, so
// re-upserting a chunk or question overwrites its point.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/lexcite/internal/fetch"
	"github.com/dshills/lexcite/internal/storage"
	"github.com/dshills/lexcite/pkg/types"
)

// DefaultTimeout bounds a single Qdrant request
const DefaultTimeout = 15 * time.Second

// pointNamespace scopes the UUIDv5 point IDs
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("lexcite/points"))

// Config contains connection details
type Config struct {
	URL                 string
	APIKey              string
	ActsCollection      string
	QuestionsCollection string
	Timeout             time.Duration
	Client              *http.Client // Optional, for tests
}

// Store is a minimal REST client to Qdrant.
// It uses cosine distance and creates collections if missing.
type Store struct {
	url       string
	acts      string
	questions string
	fetcher   *fetch.Fetcher
}

var _ storage.VectorStore = (*Store)(nil)

// apiKey authenticates requests with Qdrant's api-key header
type apiKey string

func (k apiKey) Apply(req *http.Request) {
	if k != "" {
		req.Header.Set("api-key", string(k))
	}
}

// New creates a Qdrant store. Collections default to "acts" and "questions".
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url cannot be empty")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	acts := cfg.ActsCollection
	if acts == "" {
		acts = storage.ActsCollection
	}
	questions := cfg.QuestionsCollection
	if questions == "" {
		questions = storage.QuestionsCollection
	}
	return &Store{
		url:       strings.TrimRight(cfg.URL, "/"),
		acts:      acts,
		questions: questions,
		fetcher: fetch.New(fetch.Options{
			Timeout: timeout,
			Session: apiKey(cfg.APIKey),
			Client:  cfg.Client,
			Retry:   fetch.ExponentialRetryPolicy(3),
		}),
	}, nil
}

// PointID returns the deterministic point ID for a document key
func PointID(key string) string {
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}

// ActPointID returns the point ID for an act vector
func ActPointID(v *types.ActVector) string {
	return PointID(v.Key())
}

// QuestionPointID returns the point ID for a question
func QuestionPointID(nro int) string {
	return PointID("question/" + strconv.Itoa(nro))
}

func (s *Store) collectionURL(name string, parts ...string) string {
	u := s.url + "/collections/" + url.PathEscape(name)
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// EnsureCollections creates both collections if missing. An existing
// collection with another dimension is an error.
func (s *Store) EnsureCollections(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	for _, name := range []string{s.acts, s.questions} {
		var info collectionInfo
		err := s.fetcher.GetJSON(ctx, s.collectionURL(name), &info)
		switch {
		case fetch.IsNotFound(err):
			body := map[string]any{
				"vectors": map[string]any{
					"size":     dimension,
					"distance": "Cosine",
				},
			}
			var out map[string]any
			if err := s.fetcher.PutJSON(ctx, s.collectionURL(name), body, &out); err != nil {
				return fmt.Errorf("failed to create collection %s: %w", name, err)
			}
		case err != nil:
			return fmt.Errorf("failed to read collection %s: %w", name, err)
		case info.Result.Config.Params.Vectors.Size != dimension:
			return fmt.Errorf("%w: collection %s has %d, requested %d",
				storage.ErrDimensionMismatch, name, info.Result.Config.Params.Vectors.Size, dimension)
		}
	}
	return nil
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// UpsertActEmbeddings writes one point per act vector
func (s *Store) UpsertActEmbeddings(ctx context.Context, vectors []types.ActVector, embeddings [][]float32) error {
	if err := storage.CheckEmbeddings(len(vectors), embeddings, 0); err != nil {
		return err
	}
	points := make([]point, len(vectors))
	for i := range vectors {
		v := &vectors[i]
		points[i] = point{
			ID:     ActPointID(v),
			Vector: embeddings[i],
			Payload: map[string]any{
				"act_nro":        v.ActNro,
				"reconstruct_id": v.ReconstructID,
				"parent_id":      v.ParentID,
				"text":           v.Text,
				"keywords":       keywordKeys(v.Keywords),
			},
		}
	}
	return s.upsertPoints(ctx, s.acts, points)
}

// UpsertQuestionEmbeddings writes one point per question
func (s *Store) UpsertQuestionEmbeddings(ctx context.Context, questions []types.Question, embeddings [][]float32) error {
	if err := storage.CheckEmbeddings(len(questions), embeddings, 0); err != nil {
		return err
	}
	points := make([]point, len(questions))
	for i := range questions {
		q := &questions[i]
		points[i] = point{
			ID:     QuestionPointID(q.Nro),
			Vector: embeddings[i],
			Payload: map[string]any{
				"nro":      q.Nro,
				"title":    q.Title,
				"acts":     q.ActNros(),
				"keywords": keywordKeys(q.Keywords),
			},
		}
	}
	return s.upsertPoints(ctx, s.questions, points)
}

func (s *Store) upsertPoints(ctx context.Context, collection string, points []point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	var out map[string]any
	if err := s.fetcher.PutJSON(ctx, s.collectionURL(collection, "points")+"?wait=true", body, &out); err != nil {
		return fmt.Errorf("failed to upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

// VectorCounts returns exact point counts per collection
func (s *Store) VectorCounts(ctx context.Context) (storage.VectorCounts, error) {
	acts, err := s.count(ctx, s.acts)
	if err != nil {
		return storage.VectorCounts{}, err
	}
	questions, err := s.count(ctx, s.questions)
	if err != nil {
		return storage.VectorCounts{}, err
	}
	return storage.VectorCounts{Acts: acts, Questions: questions}, nil
}

func (s *Store) count(ctx context.Context, collection string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.fetcher.PostJSON(ctx, s.collectionURL(collection, "points", "count"), map[string]any{"exact": true}, &resp)
	if fetch.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return resp.Result.Count, nil
}

// Close releases idle connections
func (s *Store) Close() error {
	return s.fetcher.Close()
}

func keywordKeys(refs []types.KeywordRef) []string {
	keys := make([]string, len(refs))
	for i, r := range refs {
		keys[i] = r.Key()
	}
	return keys
}
