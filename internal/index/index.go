package index

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/dshills/lexcite/internal/logger"
	"github.com/dshills/lexcite/pkg/types"
)

// Stage names the pipeline step an index tracks
type Stage string

const (
	StageRaw         Stage = "raw"
	StageTransformed Stage = "transformed"
	StageLoaded      Stage = "loaded"
)

// DateLayout is the format of the data file's last_update field
const DateLayout = "2006-01-02"

// DefaultBatchSize is the group size used for downstream fetch scheduling
const DefaultBatchSize = 25

// Index tracks which items of one entity type completed one stage
type Index[K comparable, V any] interface {
	FilenameIndex(p types.Partition) string
	FilenameData(p types.Partition) string
	FindMissing(candidates []K, p types.Partition) ([]K, error)
	UpdateIndex(keys []K, p types.Partition) error
	UpdateData(records []V, p types.Partition) ([]K, error)
	Validate(p types.Partition) (*Consistency, error)
}

// Tracker is the key-type independent view used by status and validation
type Tracker interface {
	Name() string
	Count(p types.Partition) (int, error)
	Validate(p types.Partition) (*Consistency, error)
}

// Codec describes how an entity's keys are derived, printed and ordered
type Codec[K comparable, V any] struct {
	KeyOf  func(V) K
	String func(K) string
	Less   func(a, b K) bool
}

// Consistency is the result of comparing an index file with its data file
type Consistency struct {
	Name       string   `json:"name"`
	Partition  string   `json:"partition"`
	IndexCount int      `json:"index_count"`
	DataCount  int      `json:"data_count"`
	IndexOnly  []string `json:"index_only,omitempty"`
	DataOnly   []string `json:"data_only,omitempty"`
}

// OK reports whether the index key set equals the data key set
func (c *Consistency) OK() bool {
	return len(c.IndexOnly) == 0 && len(c.DataOnly) == 0
}

// FileIndex is an Index backed by a JSON index file and a JSON data file
type FileIndex[K comparable, V any] struct {
	dir    string
	entity string
	stage  Stage
	codec  Codec[K, V]
	now    func() time.Time
}

// New creates a file-backed index for entity at stage, rooted at dir
func New[K comparable, V any](dir, entity string, stage Stage, codec Codec[K, V]) *FileIndex[K, V] {
	return &FileIndex[K, V]{
		dir:    dir,
		entity: entity,
		stage:  stage,
		codec:  codec,
		now:    time.Now,
	}
}

// Name returns "<stage>_<entity>"
func (x *FileIndex[K, V]) Name() string {
	return fmt.Sprintf("%s_%s", x.stage, x.entity)
}

// FilenameIndex returns the index file name for partition p
func (x *FileIndex[K, V]) FilenameIndex(p types.Partition) string {
	return fmt.Sprintf("%s_%s_%s_index.json", p.Name(), x.stage, x.entity)
}

// FilenameData returns the data file name for partition p
func (x *FileIndex[K, V]) FilenameData(p types.Partition) string {
	return fmt.Sprintf("%s_%s_%s_data.json", p.Name(), x.stage, x.entity)
}

func (x *FileIndex[K, V]) indexPath(p types.Partition) string {
	return filepath.Join(x.dir, x.FilenameIndex(p))
}

func (x *FileIndex[K, V]) dataPath(p types.Partition) string {
	return filepath.Join(x.dir, x.FilenameData(p))
}

// Keys returns the indexed keys. A missing index file yields no keys.
func (x *FileIndex[K, V]) Keys(p types.Partition) ([]K, error) {
	path := x.indexPath(p)
	data, ok, err := readFile(path)
	if err != nil || !ok {
		return []K{}, err
	}
	keys := make([]K, 0)
	if err := decodeJSON(path, data, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Count returns the number of indexed keys
func (x *FileIndex[K, V]) Count(p types.Partition) (int, error) {
	keys, err := x.Keys(p)
	return len(keys), err
}

func (x *FileIndex[K, V]) keySet(keys []K) map[string]K {
	set := make(map[string]K, len(keys))
	for _, k := range keys {
		set[x.codec.String(k)] = k
	}
	return set
}

// FindMissing returns the candidates not yet indexed, in candidate order
// and without duplicates. All candidates are missing when no index exists.
func (x *FileIndex[K, V]) FindMissing(candidates []K, p types.Partition) ([]K, error) {
	indexed, err := x.Keys(p)
	if err != nil {
		return nil, err
	}
	done := x.keySet(indexed)

	missing := make([]K, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, k := range candidates {
		s := x.codec.String(k)
		if _, ok := done[s]; ok || seen[s] {
			continue
		}
		seen[s] = true
		missing = append(missing, k)
	}
	return missing, nil
}

// FindMissingBatches groups the missing candidates into batches of size
func (x *FileIndex[K, V]) FindMissingBatches(candidates []K, size int, p types.Partition) ([][]K, error) {
	missing, err := x.FindMissing(candidates, p)
	if err != nil {
		return nil, err
	}
	return Batches(missing, size), nil
}

// UpdateIndex merges keys into the index file. The result is sorted so
// repeated updates with the same keys leave identical content.
func (x *FileIndex[K, V]) UpdateIndex(keys []K, p types.Partition) error {
	if len(keys) == 0 {
		return nil
	}
	existing, err := x.Keys(p)
	if err != nil {
		return err
	}
	merged := x.keySet(existing)
	before := len(merged)
	for _, k := range keys {
		s := x.codec.String(k)
		if _, ok := merged[s]; !ok {
			merged[s] = k
		}
	}
	if len(merged) == before && len(existing) == before {
		return nil
	}

	out := make([]K, 0, len(merged))
	for _, k := range merged {
		out = append(out, k)
	}
	x.sortKeys(out)
	return writeJSONAtomic(x.indexPath(p), out)
}

func (x *FileIndex[K, V]) sortKeys(keys []K) {
	sort.Slice(keys, func(i, j int) bool {
		if x.codec.Less != nil {
			return x.codec.Less(keys[i], keys[j])
		}
		return x.codec.String(keys[i]) < x.codec.String(keys[j])
	})
}

// readData loads the entity map. found is false when the data file is absent.
func (x *FileIndex[K, V]) readData(p types.Partition) (map[string]V, string, bool, error) {
	path := x.dataPath(p)
	data, ok, err := readFile(path)
	if err != nil || !ok {
		return map[string]V{}, "", false, err
	}

	var envelope map[string]json.RawMessage
	if err := decodeJSON(path, data, &envelope); err != nil {
		return nil, "", true, err
	}

	var lastUpdate string
	if raw, ok := envelope["last_update"]; ok {
		if err := decodeJSON(path, raw, &lastUpdate); err != nil {
			return nil, "", true, err
		}
	}

	records := make(map[string]V)
	if raw, ok := envelope[x.entity]; ok && string(raw) != "null" {
		if err := decodeJSON(path, raw, &records); err != nil {
			return nil, "", true, err
		}
	}
	return records, lastUpdate, true, nil
}

// UpdateData inserts records whose keys are not yet in the data file and
// returns the inserted keys. Existing entries are never overwritten.
func (x *FileIndex[K, V]) UpdateData(records []V, p types.Partition) ([]K, error) {
	if len(records) == 0 {
		return []K{}, nil
	}
	stored, _, _, err := x.readData(p)
	if err != nil {
		return nil, err
	}

	inserted := make([]K, 0, len(records))
	skipped := 0
	for _, rec := range records {
		k := x.codec.KeyOf(rec)
		s := x.codec.String(k)
		if _, exists := stored[s]; exists {
			skipped++
			logger.Debug("%s: key %s already stored, skipping", x.Name(), s)
			continue
		}
		stored[s] = rec
		inserted = append(inserted, k)
	}
	if skipped > 0 {
		logger.Info("%s: skipped %d existing records", x.Name(), skipped)
	}
	if len(inserted) == 0 {
		return inserted, nil
	}

	envelope := map[string]any{
		"last_update": x.now().Format(DateLayout),
		x.entity:      stored,
	}
	if err := writeJSONAtomic(x.dataPath(p), envelope); err != nil {
		return nil, err
	}
	return inserted, nil
}

// Commit stores records and then indexes all of their keys. Writing data
// first means a crash in between only causes a harmless refetch.
func (x *FileIndex[K, V]) Commit(records []V, p types.Partition) ([]K, error) {
	inserted, err := x.UpdateData(records, p)
	if err != nil {
		return nil, err
	}
	keys := make([]K, len(records))
	for i, rec := range records {
		keys[i] = x.codec.KeyOf(rec)
	}
	if err := x.UpdateIndex(keys, p); err != nil {
		return inserted, err
	}
	return inserted, nil
}

// Records returns the data file contents. A missing data file is an error.
func (x *FileIndex[K, V]) Records(p types.Partition) (map[string]V, error) {
	records, _, found, err := x.readData(p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &FileAccessError{Op: "read", Path: x.dataPath(p), Err: errNoDataFile}
	}
	return records, nil
}

// List returns the stored records ordered by key. A missing data file
// yields an empty list.
func (x *FileIndex[K, V]) List(p types.Partition) ([]V, error) {
	records, _, _, err := x.readData(p)
	if err != nil {
		return nil, err
	}
	keys := make([]K, 0, len(records))
	for _, rec := range records {
		keys = append(keys, x.codec.KeyOf(rec))
	}
	x.sortKeys(keys)

	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, records[x.codec.String(k)])
	}
	return out, nil
}

// Get returns the record stored under key
func (x *FileIndex[K, V]) Get(key K, p types.Partition) (V, error) {
	var zero V
	records, err := x.Records(p)
	if err != nil {
		return zero, err
	}
	rec, ok := records[x.codec.String(key)]
	if !ok {
		return zero, fmt.Errorf("%w: %s in %s", ErrKeyNotFound, x.codec.String(key), x.Name())
	}
	return rec, nil
}

// LastUpdate returns the data file's last_update date, empty when absent
func (x *FileIndex[K, V]) LastUpdate(p types.Partition) (string, error) {
	_, lastUpdate, _, err := x.readData(p)
	return lastUpdate, err
}

// Validate compares the index key set with the data key set. Missing files
// count as empty sets.
func (x *FileIndex[K, V]) Validate(p types.Partition) (*Consistency, error) {
	keys, err := x.Keys(p)
	if err != nil {
		return nil, err
	}
	records, _, _, err := x.readData(p)
	if err != nil {
		return nil, err
	}

	indexed := x.keySet(keys)
	report := &Consistency{
		Name:       x.Name(),
		Partition:  p.Name(),
		IndexCount: len(indexed),
		DataCount:  len(records),
	}
	for s := range indexed {
		if _, ok := records[s]; !ok {
			report.IndexOnly = append(report.IndexOnly, s)
		}
	}
	for s := range records {
		if _, ok := indexed[s]; !ok {
			report.DataOnly = append(report.DataOnly, s)
		}
	}
	sort.Strings(report.IndexOnly)
	sort.Strings(report.DataOnly)
	return report, nil
}

// Batches splits keys into consecutive groups of at most size
func Batches[K any](keys []K, size int) [][]K {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]K, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		batches = append(batches, keys[start:end])
	}
	return batches
}
