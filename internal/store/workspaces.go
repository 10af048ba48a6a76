package store

import (
	"context"
	"fmt"

	"github.com/loctrack/agent/internal/dbx"
	"github.com/loctrack/agent/internal/model"
)

// WorkspaceRepository persists workspaces. Workspaces are never created or
// edited locally, only pulled, so the only write is an upsert keyed by
// remote id.
type WorkspaceRepository struct {
	db dbx.DBTX
}

func NewWorkspaceRepository(db dbx.DBTX) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// Upsert inserts or refreshes a workspace by remote id, returning its
// local id.
func (r *WorkspaceRepository) Upsert(ctx context.Context, w *model.Workspace) (int64, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workspaces (remote_id, name, premium, admin, only_admins_may_create_projects)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(remote_id) DO UPDATE SET
			name = excluded.name,
			premium = excluded.premium,
			admin = excluded.admin,
			only_admins_may_create_projects = excluded.only_admins_may_create_projects
	`, w.RemoteID, w.Name, w.Premium, w.Admin, w.OnlyAdminsMayCreateProjects)
	if err != nil {
		return 0, fmt.Errorf("upsert workspace[%d]: %w", w.RemoteID, err)
	}

	var localID int64
	err = r.db.QueryRowContext(ctx, `SELECT local_id FROM workspaces WHERE remote_id = ?`, w.RemoteID).Scan(&localID)
	if err != nil {
		return 0, fmt.Errorf("read back workspace[%d]: %w", w.RemoteID, err)
	}
	return localID, nil
}

// List returns every known workspace, used to rebuild the in-memory graph
// at startup.
func (r *WorkspaceRepository) List(ctx context.Context) ([]*model.Workspace, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT local_id, remote_id, name, premium, admin, only_admins_may_create_projects FROM workspaces
	`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []*model.Workspace
	for rows.Next() {
		w := &model.Workspace{}
		if err := rows.Scan(&w.LocalID, &w.RemoteID, &w.Name, &w.Premium, &w.Admin, &w.OnlyAdminsMayCreateProjects); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return out, nil
}

// Clear deletes all workspaces (used by sign-out/wipe).
func (r *WorkspaceRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM workspaces`); err != nil {
		return fmt.Errorf("clear workspaces: %w", err)
	}
	return nil
}
