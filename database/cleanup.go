package database

import (
	"context"
	"fmt"

	"studydeck/utils"
)

// PurgeOrphanShingles deletes shingle rows whose thread no longer exists.
// Hard-deleting a thread outside the index leaves such rows behind.
func (d *DB) PurgeOrphanShingles(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM thread_trigrams WHERE thread_id NOT IN (SELECT id FROM threads)`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge orphan shingles: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	utils.Info("Database", "PurgeOrphanShingles", fmt.Sprintf("removed %d orphan shingle rows", rowsAffected))
	return rowsAffected, nil
}
