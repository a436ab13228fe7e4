// Package search ranks threads against a free-text query using trigram
// overlap.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"studydeck/trigram"
)

// DefaultMinScore is the fewest matching shingle occurrences a thread needs
// to be returned.
const DefaultMinScore = 2

// ShingleSource resolves shingles to per-thread match counts. Both the
// in-memory trigram.Index and the SQLite store implement it.
type ShingleSource interface {
	FindByShingles(ctx context.Context, shingles []string) (map[int64]int, error)
}

// Hit is a thread that matched a query.
type Hit struct {
	ThreadID int64
	Score    int
}

// Engine is read-only and safe for concurrent use.
type Engine struct {
	source   ShingleSource
	minScore int
}

func NewEngine(source ShingleSource, minScore int) *Engine {
	if minScore < 1 {
		minScore = DefaultMinScore
	}
	return &Engine{source: source, minScore: minScore}
}

// HasTerms reports whether the trimmed query produces at least one shingle.
// Callers use it to decide between a ranked search and the unranked category
// listing.
func HasTerms(query string) bool {
	return len(queryShingles(query)) > 0
}

func queryShingles(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	return trigram.Shingles(query)
}

// Search returns the threads scoring at least the minimum, best first.
// Equal scores are ordered by thread ID descending; IDs are assigned in
// creation order, so newer threads come first. A blank query returns no hits
// and no error.
func (e *Engine) Search(ctx context.Context, query string) ([]Hit, error) {
	shingles := queryShingles(query)
	if len(shingles) == 0 {
		return nil, nil
	}

	scores, err := e.source.FindByShingles(ctx, shingles)
	if err != nil {
		return nil, fmt.Errorf("failed to look up query shingles: %w", err)
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		if score < e.minScore {
			continue
		}
		hits = append(hits, Hit{ThreadID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ThreadID > hits[j].ThreadID
	})
	return hits, nil
}
