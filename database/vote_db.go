package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studydeck/models"
)

func voteTable(target models.Target) string {
	if target.Kind() == models.KindReply {
		return "replies"
	}
	return "threads"
}

// ToggleVote flips voterID's membership in the target's voter set and
// stores the new set size as upvote_count, all in one transaction.
func (d *DB) ToggleVote(ctx context.Context, target models.Target, voterID int64) (int, error) {
	if !target.Valid() {
		return 0, fmt.Errorf("%w: %v", models.ErrInvalidTarget, target)
	}
	table := voteTable(target)
	kind, id := string(target.Kind()), target.ID()

	var count int
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, table), id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrNotFound, target)
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", target, err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM votes WHERE target_kind = ? AND target_id = ? AND voter_id = ?`, kind, id, voterID)
		if err != nil {
			return fmt.Errorf("failed to remove vote on %s: %w", target, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO votes (target_kind, target_id, voter_id) VALUES (?, ?, ?)`, kind, id, voterID); err != nil {
				return fmt.Errorf("failed to add vote on %s: %w", target, err)
			}
		}

		_, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET upvote_count =
            (SELECT COUNT(*) FROM votes WHERE target_kind = ? AND target_id = ?) WHERE id = ?`, table), kind, id, id)
		if err != nil {
			return fmt.Errorf("failed to update upvote count of %s: %w", target, err)
		}
		return tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT upvote_count FROM %s WHERE id = ?`, table), id).Scan(&count)
	})
	return count, err
}

// Voters returns the voter ids recorded for a target.
func (d *DB) Voters(ctx context.Context, target models.Target) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT voter_id FROM votes WHERE target_kind = ? AND target_id = ? ORDER BY voter_id`,
		string(target.Kind()), target.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to query voters of %s: %w", target, err)
	}
	defer rows.Close()

	var voters []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		voters = append(voters, v)
	}
	return voters, rows.Err()
}
