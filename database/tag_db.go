package database

import (
	"context"
	"database/sql"
	"fmt"

	"studydeck/models"
)

// CreateTags inserts tags, silently skipping names that already exist.
// It returns how many were actually created.
func (d *DB) CreateTags(ctx context.Context, tags []models.Tag) (int, error) {
	created := 0
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO tags (name, color) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement for saving tags: %w", err)
		}
		defer stmt.Close()

		for _, tag := range tags {
			res, err := stmt.ExecContext(ctx, tag.Name, tag.Color)
			if err != nil {
				return fmt.Errorf("failed to insert tag %s: %w", tag.Name, err)
			}
			n, _ := res.RowsAffected()
			created += int(n)
		}
		return nil
	})
	return created, err
}

// PopularTags returns the tags carried by at least one thread, most used first.
func (d *DB) PopularTags(ctx context.Context) ([]models.TagUsage, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT t.id, t.name, t.color, COUNT(tt.thread_id) AS threads
        FROM tags t JOIN thread_tags tt ON tt.tag_id = t.id
        GROUP BY t.id
        HAVING threads >= 1
        ORDER BY threads DESC, t.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular tags: %w", err)
	}
	defer rows.Close()

	var usage []models.TagUsage
	for rows.Next() {
		var u models.TagUsage
		if err := rows.Scan(&u.ID, &u.Name, &u.Color, &u.Threads); err != nil {
			return nil, fmt.Errorf("failed to scan tag usage: %w", err)
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// setThreadTags links a thread to the named tags. Names without a tag row
// are ignored.
func setThreadTags(ctx context.Context, tx *sql.Tx, threadID int64, names []string) error {
	if len(names) == 0 {
		return nil
	}
	args := make([]any, 0, len(names)+1)
	args = append(args, threadID)
	for _, n := range names {
		args = append(args, n)
	}
	query := fmt.Sprintf(`INSERT OR IGNORE INTO thread_tags (thread_id, tag_id)
        SELECT ?, id FROM tags WHERE name IN (%s)`, placeholders(len(names)))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to tag thread %d: %w", threadID, err)
	}
	return nil
}

// threadTags loads tag names for the given threads, sorted by name.
func threadTags(ctx context.Context, tx *sql.Tx, threadIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(threadIDs))
	for i, id := range threadIDs {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT tt.thread_id, t.name FROM thread_tags tt
        JOIN tags t ON t.id = tt.tag_id
        WHERE tt.thread_id IN (%s)
        ORDER BY tt.thread_id, t.name`, placeholders(len(threadIDs)))
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}

// categoryTags loads tag names for every live thread of a category.
func categoryTags(ctx context.Context, tx *sql.Tx, categoryID int64) (map[int64][]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT tt.thread_id, t.name FROM thread_tags tt
        JOIN tags t ON t.id = tt.tag_id
        JOIN threads th ON th.id = tt.thread_id
        WHERE th.category_id = ? AND th.is_deleted = FALSE
        ORDER BY tt.thread_id, t.name`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags of category %d: %w", categoryID, err)
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}
