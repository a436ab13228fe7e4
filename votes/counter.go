// Package votes maintains exactly-once-per-voter upvote counts.
package votes

import (
	"context"
	"fmt"

	"studydeck/models"
	"studydeck/utils"
)

// Store flips a voter in the target's voter set and returns the new count.
// Implementations must apply the flip and the count update atomically.
type Store interface {
	ToggleVote(ctx context.Context, target models.Target, voterID int64) (int, error)
}

// Counter serializes toggles per target in-process on top of the store's
// own transaction, so toggles on one target never race even when the store
// is shared by several goroutines.
type Counter struct {
	store Store
	locks *utils.KeyedMutex
}

func NewCounter(store Store) *Counter {
	return &Counter{store: store, locks: utils.NewKeyedMutex()}
}

// ToggleUpvote adds voterID to the target's voters if absent and removes it
// otherwise. Each call flips state; two calls by one voter cancel out.
func (c *Counter) ToggleUpvote(ctx context.Context, target models.Target, voterID int64) (int, error) {
	if !target.Valid() {
		return 0, fmt.Errorf("%w: %v", models.ErrInvalidTarget, target)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	unlock := c.locks.Lock(target.Key())
	defer unlock()

	count, err := c.store.ToggleVote(ctx, target, voterID)
	if err != nil {
		return 0, fmt.Errorf("failed to toggle upvote on %s: %w", target, err)
	}
	return count, nil
}
