package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loctrack/agent/internal/dbx"
	"github.com/loctrack/agent/internal/model"
)

// TaskRepository persists Task rows. Tasks carry no GUID: they are only
// ever pulled from the server, never created offline, so upserts key on
// remote id alone.
type TaskRepository struct {
	db dbx.DBTX
}

func NewTaskRepository(db dbx.DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `local_id, remote_id, workspace_id, project_id, name, active, ui_modified_at`

func scanTask(row interface{ Scan(...any) error }) (*model.Task, error) {
	t := &model.Task{}
	if err := row.Scan(&t.LocalID, &t.RemoteID, &t.WorkspaceID, &t.ProjectID, &t.Name, &t.Active, &t.UIModifiedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TaskRepository) GetByRemoteID(ctx context.Context, remoteID int64) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE remote_id = ?`, remoteID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task by remote id[%d]: %w", remoteID, err)
	}
	return t, nil
}

// Upsert inserts or refreshes a task by remote id, assigning LocalID.
func (r *TaskRepository) Upsert(ctx context.Context, t *model.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (remote_id, workspace_id, project_id, name, active, ui_modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(remote_id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			project_id = excluded.project_id,
			name = excluded.name,
			active = excluded.active,
			ui_modified_at = excluded.ui_modified_at
	`, t.RemoteID, t.WorkspaceID, t.ProjectID, t.Name, t.Active, t.UIModifiedAt)
	if err != nil {
		return fmt.Errorf("upsert task[%d]: %w", t.RemoteID, err)
	}
	got, err := r.GetByRemoteID(ctx, t.RemoteID)
	if err != nil {
		return err
	}
	t.LocalID = got.LocalID
	return nil
}

func (r *TaskRepository) List(ctx context.Context) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func (r *TaskRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	return nil
}
