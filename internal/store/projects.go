package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loctrack/agent/internal/dbx"
	"github.com/loctrack/agent/internal/model"
)

// ProjectRepository persists Project rows.
type ProjectRepository struct {
	db dbx.DBTX
}

func NewProjectRepository(db dbx.DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `local_id, remote_id, guid, workspace_id, client_id, name, color_code, active, billable, ui_modified_at`

func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	p := &model.Project{}
	if err := row.Scan(&p.LocalID, &p.RemoteID, &p.GUID, &p.WorkspaceID, &p.ClientID, &p.Name, &p.ColorCode, &p.Active, &p.Billable, &p.UIModifiedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepository) GetByGUID(ctx context.Context, guid string) (*model.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE guid = ?`, guid)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by guid[%s]: %w", guid, err)
	}
	return p, nil
}

func (r *ProjectRepository) GetByRemoteID(ctx context.Context, remoteID int64) (*model.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE remote_id = ?`, remoteID)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by remote id[%d]: %w", remoteID, err)
	}
	return p, nil
}

// GetByName returns the first project in workspaceID whose name matches
// exactly, or (nil, nil) if none.
func (r *ProjectRepository) GetByName(ctx context.Context, workspaceID int64, name string) (*model.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE workspace_id = ? AND name = ? LIMIT 1`, workspaceID, name)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by name[%s]: %w", name, err)
	}
	return p, nil
}

func (r *ProjectRepository) Insert(ctx context.Context, p *model.Project) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (remote_id, guid, workspace_id, client_id, name, color_code, active, billable, ui_modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.RemoteID, p.GUID, p.WorkspaceID, p.ClientID, p.Name, p.ColorCode, p.Active, p.Billable, p.UIModifiedAt)
	if err != nil {
		return fmt.Errorf("insert project[%s]: %w", p.GUID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get inserted project id[%s]: %w", p.GUID, err)
	}
	p.LocalID = id
	return nil
}

func (r *ProjectRepository) Update(ctx context.Context, p *model.Project) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET remote_id = ?, guid = ?, workspace_id = ?, client_id = ?, name = ?,
			color_code = ?, active = ?, billable = ?, ui_modified_at = ?
		WHERE local_id = ?
	`, p.RemoteID, p.GUID, p.WorkspaceID, p.ClientID, p.Name, p.ColorCode, p.Active, p.Billable, p.UIModifiedAt, p.LocalID)
	if err != nil {
		return fmt.Errorf("update project[%d]: %w", p.LocalID, err)
	}
	return nil
}

func (r *ProjectRepository) List(ctx context.Context) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

func (r *ProjectRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects`); err != nil {
		return fmt.Errorf("clear projects: %w", err)
	}
	return nil
}
