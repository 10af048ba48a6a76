package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/loctrack/agent/internal/dbx"
	"github.com/loctrack/agent/internal/model"
)

// TimeEntryRepository persists TimeEntry rows. Tags are stored as a
// semicolon-joined string to match the wire format; callers always see
// them as a []string.
type TimeEntryRepository struct {
	db dbx.DBTX
}

func NewTimeEntryRepository(db dbx.DBTX) *TimeEntryRepository {
	return &TimeEntryRepository{db: db}
}

const timeEntryColumns = `local_id, remote_id, guid, workspace_id, project_id, task_id, description, tags,
	billable, start, stop, duration_in_seconds, created_with, ui_modified_at, server_deleted_at,
	local_deleted_at, validation_error`

func scanTimeEntry(row interface{ Scan(...any) error }) (*model.TimeEntry, error) {
	e := &model.TimeEntry{}
	var tags string
	if err := row.Scan(&e.LocalID, &e.RemoteID, &e.GUID, &e.WorkspaceID, &e.ProjectID, &e.TaskID,
		&e.Description, &tags, &e.Billable, &e.Start, &e.Stop, &e.DurationInSeconds, &e.CreatedWith,
		&e.UIModifiedAt, &e.ServerDeletedAt, &e.LocalDeletedAt, &e.ValidationError); err != nil {
		return nil, err
	}
	e.Tags = splitTags(tags)
	return e, nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, ";")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}

func (r *TimeEntryRepository) GetByGUID(ctx context.Context, guid string) (*model.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE guid = ?`, guid)
	e, err := scanTimeEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time entry by guid[%s]: %w", guid, err)
	}
	return e, nil
}

func (r *TimeEntryRepository) GetByRemoteID(ctx context.Context, remoteID int64) (*model.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE remote_id = ?`, remoteID)
	e, err := scanTimeEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time entry by remote id[%d]: %w", remoteID, err)
	}
	return e, nil
}

// GetRunning returns the single entry with a negative duration, or
// (nil, nil) if none is running.
func (r *TimeEntryRepository) GetRunning(ctx context.Context) (*model.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE duration_in_seconds < 0 AND local_deleted_at = 0 LIMIT 1`)
	e, err := scanTimeEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get running time entry: %w", err)
	}
	return e, nil
}

func (r *TimeEntryRepository) Insert(ctx context.Context, e *model.TimeEntry) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO time_entries (remote_id, guid, workspace_id, project_id, task_id, description, tags,
			billable, start, stop, duration_in_seconds, created_with, ui_modified_at, server_deleted_at,
			local_deleted_at, validation_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RemoteID, e.GUID, e.WorkspaceID, e.ProjectID, e.TaskID, e.Description, joinTags(e.Tags),
		e.Billable, e.Start, e.Stop, e.DurationInSeconds, e.CreatedWith, e.UIModifiedAt, e.ServerDeletedAt,
		e.LocalDeletedAt, e.ValidationError)
	if err != nil {
		return fmt.Errorf("insert time entry[%s]: %w", e.GUID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get inserted time entry id[%s]: %w", e.GUID, err)
	}
	e.LocalID = id
	return nil
}

func (r *TimeEntryRepository) Update(ctx context.Context, e *model.TimeEntry) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE time_entries SET remote_id = ?, guid = ?, workspace_id = ?, project_id = ?, task_id = ?,
			description = ?, tags = ?, billable = ?, start = ?, stop = ?, duration_in_seconds = ?,
			created_with = ?, ui_modified_at = ?, server_deleted_at = ?, local_deleted_at = ?, validation_error = ?
		WHERE local_id = ?
	`, e.RemoteID, e.GUID, e.WorkspaceID, e.ProjectID, e.TaskID, e.Description, joinTags(e.Tags),
		e.Billable, e.Start, e.Stop, e.DurationInSeconds, e.CreatedWith, e.UIModifiedAt, e.ServerDeletedAt,
		e.LocalDeletedAt, e.ValidationError, e.LocalID)
	if err != nil {
		return fmt.Errorf("update time entry[%d]: %w", e.LocalID, err)
	}
	return nil
}

// DeleteByLocalID purges a row outright. Used once a tombstoned entry's
// deletion is confirmed by the server.
func (r *TimeEntryRepository) DeleteByLocalID(ctx context.Context, localID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM time_entries WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("delete time entry[%d]: %w", localID, err)
	}
	return nil
}

// List returns every known time entry, used to rebuild the in-memory
// graph at startup.
func (r *TimeEntryRepository) List(ctx context.Context) ([]*model.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+timeEntryColumns+` FROM time_entries ORDER BY start DESC`)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	var out []*model.TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time entries: %w", err)
	}
	return out, nil
}

func (r *TimeEntryRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM time_entries`); err != nil {
		return fmt.Errorf("clear time entries: %w", err)
	}
	return nil
}
