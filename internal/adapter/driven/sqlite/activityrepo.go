package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
)

// createdAtFormat is fixed-width so created_at sorts lexically.
const createdAtFormat = "2006-01-02T15:04:05.000000000Z"

// Compile-time interface satisfaction check.
var _ driven.ActivityStore = (*ActivityRepo)(nil)

// ActivityRepo is the SQLite implementation of the ActivityStore port interface.
type ActivityRepo struct {
	db *DB
}

// NewActivityRepo creates a new ActivityRepo backed by the given DB.
func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// Create inserts entry. A zero CreatedAt is set to the current time.
func (r *ActivityRepo) Create(ctx context.Context, entry model.ActivityEntry) (model.ActivityEntry, error) {
	const query = `INSERT INTO activity (repo_id, title, summary, detail, detail_html, kind, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	result, err := r.db.Writer.ExecContext(ctx, query,
		entry.RepoID,
		entry.Title,
		entry.Summary,
		entry.Detail,
		entry.DetailHTML,
		string(entry.Kind),
		string(entry.Severity),
		entry.CreatedAt.Format(createdAtFormat),
	)
	if err != nil {
		return model.ActivityEntry{}, fmt.Errorf("create activity for %s: %w", entry.RepoID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.ActivityEntry{}, fmt.Errorf("get activity id: %w", err)
	}
	entry.ID = id

	return entry, nil
}

// ListRecent returns up to limit entries, newest first.
func (r *ActivityRepo) ListRecent(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	const query = `SELECT id, repo_id, title, summary, detail, detail_html, kind, severity, created_at
		FROM activity ORDER BY created_at DESC, id DESC LIMIT ?`

	return r.query(ctx, "list recent activity", query, normalizeLimit(limit))
}

// ListByRepo returns up to limit entries for repoID, newest first.
func (r *ActivityRepo) ListByRepo(ctx context.Context, repoID string, limit int) ([]model.ActivityEntry, error) {
	const query = `SELECT id, repo_id, title, summary, detail, detail_html, kind, severity, created_at
		FROM activity WHERE repo_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`

	return r.query(ctx, "list activity for "+repoID, query, repoID, normalizeLimit(limit))
}

// DeleteBefore removes entries created before cutoff and returns how many were removed.
func (r *ActivityRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM activity WHERE created_at < ?`

	result, err := r.db.Writer.ExecContext(ctx, query, cutoff.UTC().Format(createdAtFormat))
	if err != nil {
		return 0, fmt.Errorf("delete activity before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return rows, nil
}

func (r *ActivityRepo) query(ctx context.Context, action, query string, args ...any) ([]model.ActivityEntry, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	defer rows.Close()

	entries := []model.ActivityEntry{}
	for rows.Next() {
		var (
			e         model.ActivityEntry
			kind      string
			severity  string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.RepoID, &e.Title, &e.Summary, &e.Detail, &e.DetailHTML, &kind, &severity, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}

		e.Kind = model.ActivityKind(kind)
		e.Severity = model.Severity(severity)
		e.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for activity %d: %w", e.ID, err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}

	return entries, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}

// parseTime attempts to parse a time string in common SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		createdAtFormat,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
