package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loctrack/agent/internal/dbx"
	"github.com/loctrack/agent/internal/model"
)

// TagRepository persists Tag rows.
type TagRepository struct {
	db dbx.DBTX
}

func NewTagRepository(db dbx.DBTX) *TagRepository {
	return &TagRepository{db: db}
}

const tagColumns = `local_id, remote_id, guid, workspace_id, name, ui_modified_at`

func scanTag(row interface{ Scan(...any) error }) (*model.Tag, error) {
	t := &model.Tag{}
	if err := row.Scan(&t.LocalID, &t.RemoteID, &t.GUID, &t.WorkspaceID, &t.Name, &t.UIModifiedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TagRepository) GetByGUID(ctx context.Context, guid string) (*model.Tag, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE guid = ?`, guid)
	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag by guid[%s]: %w", guid, err)
	}
	return t, nil
}

func (r *TagRepository) GetByRemoteID(ctx context.Context, remoteID int64) (*model.Tag, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE remote_id = ?`, remoteID)
	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag by remote id[%d]: %w", remoteID, err)
	}
	return t, nil
}

func (r *TagRepository) Insert(ctx context.Context, t *model.Tag) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tags (remote_id, guid, workspace_id, name, ui_modified_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.RemoteID, t.GUID, t.WorkspaceID, t.Name, t.UIModifiedAt)
	if err != nil {
		return fmt.Errorf("insert tag[%s]: %w", t.GUID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get inserted tag id[%s]: %w", t.GUID, err)
	}
	t.LocalID = id
	return nil
}

func (r *TagRepository) Update(ctx context.Context, t *model.Tag) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tags SET remote_id = ?, guid = ?, workspace_id = ?, name = ?, ui_modified_at = ?
		WHERE local_id = ?
	`, t.RemoteID, t.GUID, t.WorkspaceID, t.Name, t.UIModifiedAt, t.LocalID)
	if err != nil {
		return fmt.Errorf("update tag[%d]: %w", t.LocalID, err)
	}
	return nil
}

func (r *TagRepository) List(ctx context.Context) ([]*model.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tagColumns+` FROM tags`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []*model.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return out, nil
}

func (r *TagRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tags`); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	return nil
}
