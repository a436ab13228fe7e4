// Package listing composes search results or a category's threads with tag
// filtering and ordering.
package listing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"studydeck/models"
	"studydeck/search"
)

// ThreadLister returns the non-deleted threads of a category with their
// tags loaded.
type ThreadLister interface {
	ThreadsInCategory(ctx context.Context, categoryID int64) ([]models.Thread, error)
}

// Request describes one listing. Query and Tags are optional.
type Request struct {
	CategoryID int64
	Query      string
	Tags       []string
	Sort       models.SortKey
}

// Pipeline is read-only and safe for concurrent use.
type Pipeline struct {
	threads ThreadLister
	search  *search.Engine
}

func NewPipeline(threads ThreadLister, engine *search.Engine) *Pipeline {
	return &Pipeline{threads: threads, search: engine}
}

// ParseTags splits a comma separated filter value, dropping blanks.
func ParseTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// List validates the request and returns a sequence that evaluates on first
// use. Soft-deleted threads never appear. When Tags is non-empty a thread
// must carry at least one of them.
func (p *Pipeline) List(ctx context.Context, req Request) (*Sequence, error) {
	if !req.Sort.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidOrderKey, req.Sort)
	}
	if req.CategoryID <= 0 {
		return nil, fmt.Errorf("%w: category %d", models.ErrInvalidFilter, req.CategoryID)
	}

	return newSequence(func() ([]int64, error) {
		return p.evaluate(ctx, req)
	}), nil
}

func (p *Pipeline) evaluate(ctx context.Context, req Request) ([]int64, error) {
	threads, err := p.threads.ThreadsInCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list category %d: %w", req.CategoryID, err)
	}

	if search.HasTerms(req.Query) {
		hits, err := p.search.Search(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		matched := make(map[int64]struct{}, len(hits))
		for _, h := range hits {
			matched[h.ThreadID] = struct{}{}
		}
		threads = filter(threads, func(t models.Thread) bool {
			_, ok := matched[t.ID]
			return ok
		})
	}

	if len(req.Tags) > 0 {
		wanted := make(map[string]struct{}, len(req.Tags))
		for _, tag := range req.Tags {
			wanted[tag] = struct{}{}
		}
		threads = filter(threads, func(t models.Thread) bool {
			for _, tag := range t.Tags {
				if _, ok := wanted[tag]; ok {
					return true
				}
			}
			return false
		})
	}

	threads = filter(threads, func(t models.Thread) bool { return !t.IsDeleted })
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortThreads(threads, req.Sort)
	ids := make([]int64, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}
	return ids, nil
}

func filter(threads []models.Thread, keep func(models.Thread) bool) []models.Thread {
	out := threads[:0]
	for _, t := range threads {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// sortThreads orders newest first, or by upvotes with newest first among
// equal counts. Thread ID is the final tie-breaker so the order is total.
func sortThreads(threads []models.Thread, key models.SortKey) {
	newer := func(a, b models.Thread) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}
	sort.SliceStable(threads, func(i, j int) bool {
		a, b := threads[i], threads[j]
		if key == models.SortMostUpvoted && a.UpvoteCount != b.UpvoteCount {
			return a.UpvoteCount > b.UpvoteCount
		}
		return newer(a, b)
	})
}
