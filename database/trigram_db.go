package database

import (
	"context"
	"database/sql"
	"fmt"
)

// ReplaceShingles swaps every shingle row of a thread in one transaction.
func (d *DB) ReplaceShingles(ctx context.Context, threadID int64, shingles []string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM thread_trigrams WHERE thread_id = ?`, threadID); err != nil {
			return fmt.Errorf("failed to clear shingles of thread %d: %w", threadID, err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO thread_trigrams (thread_id, value) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement for saving shingles: %w", err)
		}
		defer stmt.Close()
		for _, sh := range shingles {
			if _, err := stmt.ExecContext(ctx, threadID, sh); err != nil {
				return fmt.Errorf("failed to insert shingle for thread %d: %w", threadID, err)
			}
		}
		return nil
	})
}

// DeleteShingles removes every shingle row of a thread.
func (d *DB) DeleteShingles(ctx context.Context, threadID int64) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM thread_trigrams WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete shingles of thread %d: %w", threadID, err)
	}
	return nil
}

// FindByShingles counts, per thread, the shingle rows whose value is in the
// given set. Repeated rows of one thread each count.
func (d *DB) FindByShingles(ctx context.Context, shingles []string) (map[int64]int, error) {
	scores := make(map[int64]int)
	if len(shingles) == 0 {
		return scores, nil
	}
	seen := make(map[string]struct{}, len(shingles))
	args := make([]any, 0, len(shingles))
	for _, sh := range shingles {
		if _, ok := seen[sh]; ok {
			continue
		}
		seen[sh] = struct{}{}
		args = append(args, sh)
	}

	query := fmt.Sprintf(`SELECT thread_id, COUNT(*) FROM thread_trigrams
        WHERE value IN (%s) GROUP BY thread_id`, placeholders(len(args)))
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shingles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan shingle count: %w", err)
		}
		scores[id] = n
	}
	return scores, rows.Err()
}

// LoadShingles streams the stored rows grouped by thread, in insertion order.
func (d *DB) LoadShingles(ctx context.Context, fn func(threadID int64, shingles []string) error) error {
	rows, err := d.db.QueryContext(ctx, `SELECT thread_id, value FROM thread_trigrams ORDER BY thread_id, rowid`)
	if err != nil {
		return fmt.Errorf("failed to query shingles: %w", err)
	}

	// Collect first: fn may write to the index, and the pool holds one
	// connection.
	grouped := make(map[int64][]string)
	var order []int64
	for rows.Next() {
		var id int64
		var sh string
		if err := rows.Scan(&id, &sh); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan shingle: %w", err)
		}
		if _, ok := grouped[id]; !ok {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], sh)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(id, grouped[id]); err != nil {
			return err
		}
	}
	return nil
}
