package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studydeck/models"
)

const replyColumns = `id, thread_id, author_id, raw_content, content, created_at, upvote_count, is_deleted`

func scanReply(row rowScanner) (models.Reply, error) {
	var r models.Reply
	var created int64
	err := row.Scan(&r.ID, &r.ThreadID, &r.AuthorID, &r.RawContent, &r.Content, &created, &r.UpvoteCount, &r.IsDeleted)
	if err != nil {
		return r, err
	}
	r.CreatedAt = fromUnixNano(created)
	return r, nil
}

// CreateReply saves a reply unless the parent thread is locked or deleted.
// The check and the insert share one transaction, so a lock committed
// before this call always wins.
func (d *DB) CreateReply(ctx context.Context, nr models.NewReply) (models.Reply, error) {
	var r models.Reply
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var locked, deleted bool
		err := tx.QueryRowContext(ctx, `SELECT is_locked, is_deleted FROM threads WHERE id = ?`, nr.ThreadID).Scan(&locked, &deleted)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && deleted) {
			return fmt.Errorf("%w: thread %d", models.ErrNotFound, nr.ThreadID)
		}
		if err != nil {
			return fmt.Errorf("failed to read thread %d: %w", nr.ThreadID, err)
		}
		if locked {
			return fmt.Errorf("%w: thread %d", models.ErrThreadLocked, nr.ThreadID)
		}

		res, err := tx.ExecContext(ctx, `
            INSERT INTO replies (thread_id, author_id, raw_content, content, created_at)
            VALUES (?, ?, ?, ?, ?);`,
			nr.ThreadID, nr.AuthorID, nr.RawContent, nr.Content, unixNano(nr.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert reply: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		r, err = scanReply(tx.QueryRowContext(ctx, `SELECT `+replyColumns+` FROM replies WHERE id = ?`, id))
		return err
	})
	return r, err
}

// GetReply returns one reply, deleted or not.
func (d *DB) GetReply(ctx context.Context, id int64) (models.Reply, error) {
	r, err := scanReply(d.db.QueryRowContext(ctx, `SELECT `+replyColumns+` FROM replies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: reply %d", models.ErrNotFound, id)
	}
	if err != nil {
		return r, fmt.Errorf("failed to query reply %d: %w", id, err)
	}
	return r, nil
}

// UpdateReply rewrites the body of a reply.
func (d *DB) UpdateReply(ctx context.Context, id int64, rawContent, content string) (models.Reply, error) {
	var r models.Reply
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE replies SET raw_content = ?, content = ? WHERE id = ?`, rawContent, content, id)
		if err != nil {
			return fmt.Errorf("failed to update reply %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: reply %d", models.ErrNotFound, id)
		}
		r, err = scanReply(tx.QueryRowContext(ctx, `SELECT `+replyColumns+` FROM replies WHERE id = ?`, id))
		return err
	})
	return r, err
}

// ListReplies returns the live replies of a thread in the requested order.
func (d *DB) ListReplies(ctx context.Context, threadID int64, sort models.SortKey) ([]models.Reply, error) {
	order := "created_at DESC, id DESC"
	switch sort {
	case models.SortNewest:
	case models.SortMostUpvoted:
		order = "upvote_count DESC, created_at DESC, id DESC"
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidOrderKey, sort)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+replyColumns+` FROM replies WHERE thread_id = ? AND is_deleted = FALSE ORDER BY `+order, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query replies of thread %d: %w", threadID, err)
	}
	defer rows.Close()

	var replies []models.Reply
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}
		replies = append(replies, r)
	}
	return replies, rows.Err()
}
