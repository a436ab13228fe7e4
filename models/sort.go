package models

import (
	"fmt"
	"strings"
)

// SortKey is the ordering applied to a thread or reply listing.
type SortKey string

const (
	SortNewest      SortKey = "NEWEST"
	SortMostUpvoted SortKey = "MOST_UPVOTED"
)

// ParseSortKey accepts the canonical names as well as the legacy URL values
// "-created_at" and "-upvote_count". Ascending variants are rejected.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "newest", "-created_at":
		return SortNewest, nil
	case "most_upvoted", "-upvote_count":
		return SortMostUpvoted, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrderKey, s)
}

// Valid reports whether k is one of the recognized keys.
func (k SortKey) Valid() bool {
	return k == SortNewest || k == SortMostUpvoted
}
