package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"studydeck/models"
)

const threadColumns = `id, category_id, title, raw_content, content, author_id, created_at, upvote_count, is_locked, is_deleted`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (models.Thread, error) {
	var t models.Thread
	var created int64
	err := row.Scan(&t.ID, &t.CategoryID, &t.Title, &t.RawContent, &t.Content,
		&t.AuthorID, &created, &t.UpvoteCount, &t.IsLocked, &t.IsDeleted)
	if err != nil {
		return t, err
	}
	t.CreatedAt = fromUnixNano(created)
	return t, nil
}

// CreateCategory inserts a category or returns the existing one with the same slug.
func (d *DB) CreateCategory(ctx context.Context, name, slug string) (models.Category, error) {
	c := models.Category{Name: name, Slug: slug}
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name, slug) VALUES (?, ?)`, name, slug); err != nil {
			return fmt.Errorf("failed to insert category %s: %w", slug, err)
		}
		return tx.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE slug = ?`, slug).Scan(&c.ID, &c.Name)
	})
	return c, err
}

// CreateThread saves a new thread together with its tag and course links.
// Unknown tag names are ignored.
func (d *DB) CreateThread(ctx context.Context, nt models.NewThread) (models.Thread, error) {
	var t models.Thread
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, nt.CategoryID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: category %d", models.ErrNotFound, nt.CategoryID)
		}
		if err != nil {
			return fmt.Errorf("failed to check category %d: %w", nt.CategoryID, err)
		}

		res, err := tx.ExecContext(ctx, `
            INSERT INTO threads (category_id, title, raw_content, content, author_id, created_at)
            VALUES (?, ?, ?, ?, ?, ?);`,
			nt.CategoryID, nt.Title, nt.RawContent, nt.Content, nt.AuthorID, unixNano(nt.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert thread: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := setThreadTags(ctx, tx, id, nt.Tags); err != nil {
			return err
		}
		if err := setThreadCourses(ctx, tx, id, nt.CourseIDs); err != nil {
			return err
		}
		t, err = getThreadTx(ctx, tx, id)
		return err
	})
	return t, err
}

// UpdateThread rewrites the editable fields of a thread.
func (d *DB) UpdateThread(ctx context.Context, id int64, title, rawContent, content string, tags []string) (models.Thread, error) {
	var t models.Thread
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE threads SET title = ?, raw_content = ?, content = ? WHERE id = ?`,
			title, rawContent, content, id)
		if err != nil {
			return fmt.Errorf("failed to update thread %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: thread %d", models.ErrNotFound, id)
		}
		if tags != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM thread_tags WHERE thread_id = ?`, id); err != nil {
				return err
			}
			if err := setThreadTags(ctx, tx, id, tags); err != nil {
				return err
			}
		}
		t, err = getThreadTx(ctx, tx, id)
		return err
	})
	return t, err
}

// GetThread returns one thread, deleted or not.
func (d *DB) GetThread(ctx context.Context, id int64) (models.Thread, error) {
	var t models.Thread
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		t, err = getThreadTx(ctx, tx, id)
		return err
	})
	return t, err
}

func getThreadTx(ctx context.Context, tx *sql.Tx, id int64) (models.Thread, error) {
	t, err := scanThread(tx.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: thread %d", models.ErrNotFound, id)
	}
	if err != nil {
		return t, fmt.Errorf("failed to query thread %d: %w", id, err)
	}
	tags, err := threadTags(ctx, tx, []int64{id})
	if err != nil {
		return t, err
	}
	t.Tags = tags[id]
	rows, err := tx.QueryContext(ctx, `SELECT course_id FROM thread_courses WHERE thread_id = ? ORDER BY course_id`, id)
	if err != nil {
		return t, fmt.Errorf("failed to query courses of thread %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var c int64
		if err := rows.Scan(&c); err != nil {
			return t, err
		}
		t.CourseIDs = append(t.CourseIDs, c)
	}
	return t, rows.Err()
}

// ThreadsInCategory returns every non-deleted thread of a category with its
// tags loaded. Order is unspecified; the listing pipeline sorts.
func (d *DB) ThreadsInCategory(ctx context.Context, categoryID int64) ([]models.Thread, error) {
	var threads []models.Thread
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+threadColumns+` FROM threads WHERE category_id = ? AND is_deleted = FALSE`, categoryID)
		if err != nil {
			return fmt.Errorf("failed to query threads of category %d: %w", categoryID, err)
		}
		for rows.Next() {
			t, err := scanThread(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan thread: %w", err)
			}
			threads = append(threads, t)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		tags, err := categoryTags(ctx, tx, categoryID)
		if err != nil {
			return err
		}
		for i := range threads {
			threads[i].Tags = tags[threads[i].ID]
		}
		return nil
	})
	return threads, err
}

// ThreadTitles maps every thread, deleted ones included, to its title.
func (d *DB) ThreadTitles(ctx context.Context) (map[int64]string, error) {
	titles := make(map[int64]string)
	rows, err := d.db.QueryContext(ctx, `SELECT id, title FROM threads`)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread titles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

// SetThreadLocked stores the lock flag and reports whether it changed.
func (d *DB) SetThreadLocked(ctx context.Context, id int64, locked bool) (bool, error) {
	return d.setFlag(ctx, "threads", "is_locked", id, locked)
}

// SetDeleted marks a thread or reply as soft-deleted and reports whether
// the flag changed.
func (d *DB) SetDeleted(ctx context.Context, target models.Target) (bool, error) {
	table := "threads"
	if target.Kind() == models.KindReply {
		table = "replies"
	}
	return d.setFlag(ctx, table, "is_deleted", target.ID(), true)
}

func (d *DB) setFlag(ctx context.Context, table, column string, id int64, value bool) (bool, error) {
	var changed bool
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var current bool
		err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, column, table), id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %d", models.ErrNotFound, strings.TrimSuffix(table, "s"), id)
		}
		if err != nil {
			return fmt.Errorf("failed to read %s of %s %d: %w", column, table, id, err)
		}
		if current == value {
			return nil
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, table, column), value, id); err != nil {
			return fmt.Errorf("failed to update %s of %s %d: %w", column, table, id, err)
		}
		changed = true
		return nil
	})
	return changed, err
}

// HardDeleteThread physically removes a thread and everything it owns
// except its shingle rows, which belong to the index.
func (d *DB) HardDeleteThread(ctx context.Context, id int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete thread %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: thread %d", models.ErrNotFound, id)
		}
		if _, err := tx.ExecContext(ctx, `
            DELETE FROM votes WHERE (target_kind = 'thread' AND target_id = ?)
               OR (target_kind = 'reply' AND target_id NOT IN (SELECT id FROM replies))`, id); err != nil {
			return fmt.Errorf("failed to delete votes of thread %d: %w", id, err)
		}
		return nil
	})
}

func setThreadCourses(ctx context.Context, tx *sql.Tx, threadID int64, courses []int64) error {
	for _, c := range courses {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO thread_courses (thread_id, course_id) VALUES (?, ?)`, threadID, c); err != nil {
			return fmt.Errorf("failed to tag course %d on thread %d: %w", c, threadID, err)
		}
	}
	return nil
}
