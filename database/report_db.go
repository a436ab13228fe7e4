package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studydeck/models"
)

const reportColumns = `id, reporter_id, COALESCE(thread_id, 0), COALESCE(reply_id, 0), reason, status, created_at`

func scanReport(row rowScanner) (models.Report, error) {
	var r models.Report
	var threadID, replyID, created int64
	var status string
	if err := row.Scan(&r.ID, &r.ReporterID, &threadID, &replyID, &r.Reason, &status, &created); err != nil {
		return r, err
	}
	target, err := models.TargetFromRefs(threadID, replyID)
	if err != nil {
		return r, fmt.Errorf("report %s: %w", r.ID, err)
	}
	r.Target = target
	r.Status = models.ReportStatus(status)
	r.CreatedAt = fromUnixNano(created)
	return r, nil
}

// InsertReportLimited stores a report unless its reporter already filed
// limit or more reports at or after since. The count and the insert run in
// the same IMMEDIATE transaction, so concurrent submissions cannot all pass
// the check.
func (d *DB) InsertReportLimited(ctx context.Context, report models.Report, since time.Time, limit int) error {
	threadID, replyID := report.Target.Refs()
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var recent int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM reports WHERE reporter_id = ? AND created_at >= ?`,
			report.ReporterID, unixNano(since)).Scan(&recent)
		if err != nil {
			return fmt.Errorf("failed to count recent reports of user %d: %w", report.ReporterID, err)
		}
		if recent >= limit {
			return fmt.Errorf("%w: user %d filed %d reports since %s", models.ErrRateLimited,
				report.ReporterID, recent, since.Format(time.RFC3339))
		}

		if err := targetExists(ctx, tx, report.Target); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
            INSERT INTO reports (id, reporter_id, thread_id, reply_id, reason, status, created_at)
            VALUES (?, ?, NULLIF(?, 0), NULLIF(?, 0), ?, ?, ?);`,
			report.ID, report.ReporterID, threadID, replyID, report.Reason, string(report.Status), unixNano(report.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert report %s: %w", report.ID, err)
		}
		return nil
	})
}

func targetExists(ctx context.Context, tx *sql.Tx, target models.Target) error {
	var exists int
	err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, voteTable(target)), target.ID()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", models.ErrNotFound, target)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", target, err)
	}
	return nil
}

// GetReport returns one report.
func (d *DB) GetReport(ctx context.Context, id string) (models.Report, error) {
	r, err := scanReport(d.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: report %s", models.ErrNotFound, id)
	}
	if err != nil {
		return r, fmt.Errorf("failed to query report %s: %w", id, err)
	}
	return r, nil
}

// ResolveReport moves a report from PENDING to RESOLVED. A report that is
// already resolved yields ErrInvalidTransition.
func (d *DB) ResolveReport(ctx context.Context, id string) (models.Report, error) {
	var r models.Report
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE reports SET status = ? WHERE id = ? AND status = ?`,
			string(models.ReportResolved), id, string(models.ReportPending))
		if err != nil {
			return fmt.Errorf("failed to resolve report %s: %w", id, err)
		}
		n, _ := res.RowsAffected()

		r, err = scanReport(tx.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: report %s", models.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to query report %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: report %s is already %s", models.ErrInvalidTransition, id, r.Status)
		}
		return nil
	})
	return r, err
}

// ListReports returns the moderation queue: pending reports first, newest
// first within each status.
func (d *DB) ListReports(ctx context.Context, limit, offset int) ([]models.Report, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports
        ORDER BY CASE status WHEN 'PENDING' THEN 0 ELSE 1 END, created_at DESC, id DESC
        LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
