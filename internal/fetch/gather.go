package fetch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/lexcite/internal/logger"
)

// Results holds the outcome of a Gather call
type Results[K comparable, V any] struct {
	OK     map[K]V
	Failed map[K]error
	order  []K
}

// Values returns the successful values in input key order
func (r *Results[K, V]) Values() []V {
	out := make([]V, 0, len(r.OK))
	for _, k := range r.order {
		if v, ok := r.OK[k]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Keys returns the successful keys in input order
func (r *Results[K, V]) Keys() []K {
	out := make([]K, 0, len(r.OK))
	for _, k := range r.order {
		if _, ok := r.OK[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

type outcome[V any] struct {
	value V
	err   error
}

// Gather runs fn once per distinct key with at most sem's weight in flight,
// then waits for every call. Failures are recorded, never propagated to
// siblings. A nil sem runs everything at once.
func Gather[K comparable, V any](ctx context.Context, sem *semaphore.Weighted, keys []K, fn func(context.Context, K) (V, error)) *Results[K, V] {
	unique := make([]K, 0, len(keys))
	seen := make(map[K]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			unique = append(unique, k)
		}
	}

	outcomes := make([]outcome[V], len(unique))
	var g errgroup.Group
	for i, key := range unique {
		g.Go(func() error {
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					outcomes[i].err = err
					return nil
				}
				defer sem.Release(1)
			}
			v, err := fn(ctx, key)
			outcomes[i] = outcome[V]{value: v, err: err}
			return nil
		})
	}
	_ = g.Wait()

	results := &Results[K, V]{
		OK:     make(map[K]V, len(unique)),
		Failed: make(map[K]error),
		order:  unique,
	}
	for i, key := range unique {
		if err := outcomes[i].err; err != nil {
			results.Failed[key] = err
			logger.Warn("fetch %v failed: %v", key, err)
			continue
		}
		results.OK[key] = outcomes[i].value
	}
	return results
}

// Page is one slice of a paginated listing
type Page struct {
	Index int
	Start int
	Size  int
}

func (p Page) String() string {
	return fmt.Sprintf("page %d (start %d, size %d)", p.Index, p.Start, p.Size)
}

// Pages splits total items into pages of pageSize. The last page holds the
// remainder.
func Pages(total, pageSize int) []Page {
	if total <= 0 || pageSize <= 0 {
		return []Page{}
	}
	n := (total + pageSize - 1) / pageSize
	pages := make([]Page, n)
	for i := range pages {
		start := i * pageSize
		size := pageSize
		if start+size > total {
			size = total - start
		}
		pages[i] = Page{Index: i, Start: start, Size: size}
	}
	return pages
}

// PageResults is the merged outcome of Paginate
type PageResults[K comparable, V any] struct {
	Items  []V
	Failed []Page
}

// Paginate fetches all pages of a listing with total items under sem and
// merges them in page order. When two pages return the same key the first
// one wins. Failed pages are skipped and reported.
func Paginate[K comparable, V any](
	ctx context.Context,
	total, pageSize int,
	sem *semaphore.Weighted,
	fetchPage func(context.Context, Page) ([]V, error),
	keyOf func(V) K,
) *PageResults[K, V] {
	pages := Pages(total, pageSize)
	results := Gather(ctx, sem, pages, fetchPage)

	merged := &PageResults[K, V]{Items: make([]V, 0, total), Failed: []Page{}}
	seen := make(map[K]bool, total)
	for _, page := range pages {
		items, ok := results.OK[page]
		if !ok {
			merged.Failed = append(merged.Failed, page)
			continue
		}
		for _, item := range items {
			k := keyOf(item)
			if seen[k] {
				continue
			}
			seen[k] = true
			merged.Items = append(merged.Items, item)
		}
	}
	return merged
}
