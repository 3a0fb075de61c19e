package index

import (
	"strconv"
	"time"

	"github.com/dshills/lexcite/pkg/types"
)

// Entity names used in index file names
const (
	EntityQuestions = "questions"
	EntityActs      = "acts"
	EntityKeywords  = "keywords"
)

// ActReceipt records that an act was written to the retrieval stores
type ActReceipt struct {
	Nro      int       `json:"nro"`
	LoadedAt time.Time `json:"loaded_at"`
	Vectors  int       `json:"vectors"`
}

// QuestionReceipt records that a question was written to the retrieval stores
type QuestionReceipt struct {
	Nro      int       `json:"nro"`
	LoadedAt time.Time `json:"loaded_at"`
	Skipped  bool      `json:"skipped,omitempty"`
}

// KeywordReceipt records that a keyword was written to the retrieval stores
type KeywordReceipt struct {
	Ref      types.KeywordRef `json:"ref"`
	LoadedAt time.Time        `json:"loaded_at"`
}

// Catalog constructs every stage index under one data directory
type Catalog struct {
	Dir string
}

// NewCatalog returns a catalog rooted at dir
func NewCatalog(dir string) *Catalog {
	return &Catalog{Dir: dir}
}

func intCodec[V any](keyOf func(V) int) Codec[int, V] {
	return Codec[int, V]{
		KeyOf:  keyOf,
		String: strconv.Itoa,
		Less:   func(a, b int) bool { return a < b },
	}
}

func keywordCodec[V any](keyOf func(V) types.KeywordRef) Codec[types.KeywordRef, V] {
	return Codec[types.KeywordRef, V]{
		KeyOf:  keyOf,
		String: types.KeywordRef.Key,
		Less: func(a, b types.KeywordRef) bool {
			if a.ConceptID != b.ConceptID {
				return a.ConceptID < b.ConceptID
			}
			return a.InstanceOfType < b.InstanceOfType
		},
	}
}

// RawQuestions tracks fetched questions
func (c *Catalog) RawQuestions() *FileIndex[int, types.Question] {
	return New(c.Dir, EntityQuestions, StageRaw, intCodec(func(q types.Question) int { return q.Nro }))
}

// TransformedQuestions tracks parsed and pruned questions
func (c *Catalog) TransformedQuestions() *FileIndex[int, types.Question] {
	return New(c.Dir, EntityQuestions, StageTransformed, intCodec(func(q types.Question) int { return q.Nro }))
}

// LoadedQuestions tracks questions written to the retrieval stores
func (c *Catalog) LoadedQuestions() *FileIndex[int, QuestionReceipt] {
	return New(c.Dir, EntityQuestions, StageLoaded, intCodec(func(r QuestionReceipt) int { return r.Nro }))
}

// RawActs tracks fetched acts
func (c *Catalog) RawActs() *FileIndex[int, types.RawAct] {
	return New(c.Dir, EntityActs, StageRaw, intCodec(func(a types.RawAct) int { return a.Nro }))
}

// TransformedActs tracks chunked acts
func (c *Catalog) TransformedActs() *FileIndex[int, types.ActDocument] {
	return New(c.Dir, EntityActs, StageTransformed, intCodec(func(d types.ActDocument) int { return d.LeafAct.Nro }))
}

// LoadedActs tracks acts written to the retrieval stores
func (c *Catalog) LoadedActs() *FileIndex[int, ActReceipt] {
	return New(c.Dir, EntityActs, StageLoaded, intCodec(func(r ActReceipt) int { return r.Nro }))
}

// RawKeywords tracks fetched keywords
func (c *Catalog) RawKeywords() *FileIndex[types.KeywordRef, types.Keyword] {
	return New(c.Dir, EntityKeywords, StageRaw, keywordCodec(func(k types.Keyword) types.KeywordRef { return k.Ref() }))
}

// TransformedKeywords tracks keywords with filtered and back-filled relations
func (c *Catalog) TransformedKeywords() *FileIndex[types.KeywordRef, types.Keyword] {
	return New(c.Dir, EntityKeywords, StageTransformed, keywordCodec(func(k types.Keyword) types.KeywordRef { return k.Ref() }))
}

// LoadedKeywords tracks keywords written to the retrieval stores
func (c *Catalog) LoadedKeywords() *FileIndex[types.KeywordRef, KeywordReceipt] {
	return New(c.Dir, EntityKeywords, StageLoaded, keywordCodec(func(r KeywordReceipt) types.KeywordRef { return r.Ref }))
}

// Trackers returns every index in pipeline order
func (c *Catalog) Trackers() []Tracker {
	return []Tracker{
		c.RawQuestions(),
		c.TransformedQuestions(),
		c.LoadedQuestions(),
		c.RawActs(),
		c.TransformedActs(),
		c.LoadedActs(),
		c.RawKeywords(),
		c.TransformedKeywords(),
		c.LoadedKeywords(),
	}
}
