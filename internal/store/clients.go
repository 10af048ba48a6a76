package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loctrack/agent/internal/dbx"
	"github.com/loctrack/agent/internal/model"
)

// ClientRepository persists Client rows. Clients carry a GUID, so the
// sync engine (not this repository) decides whether an incoming pull row
// should overwrite a dirty local row or vice versa; this type only does
// the mechanical read/write.
type ClientRepository struct {
	db dbx.DBTX
}

func NewClientRepository(db dbx.DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

func scanClient(row interface{ Scan(...any) error }) (*model.Client, error) {
	c := &model.Client{}
	if err := row.Scan(&c.LocalID, &c.RemoteID, &c.GUID, &c.WorkspaceID, &c.Name, &c.UIModifiedAt); err != nil {
		return nil, err
	}
	return c, nil
}

const clientColumns = `local_id, remote_id, guid, workspace_id, name, ui_modified_at`

// GetByGUID returns the client with the given GUID, or (nil, nil) if none.
func (r *ClientRepository) GetByGUID(ctx context.Context, guid string) (*model.Client, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE guid = ?`, guid)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client by guid[%s]: %w", guid, err)
	}
	return c, nil
}

// GetByRemoteID returns the client with the given remote id, or (nil, nil).
func (r *ClientRepository) GetByRemoteID(ctx context.Context, remoteID int64) (*model.Client, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE remote_id = ?`, remoteID)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client by remote id[%d]: %w", remoteID, err)
	}
	return c, nil
}

// Insert creates a new client row and assigns its LocalID.
func (r *ClientRepository) Insert(ctx context.Context, c *model.Client) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (remote_id, guid, workspace_id, name, ui_modified_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.RemoteID, c.GUID, c.WorkspaceID, c.Name, c.UIModifiedAt)
	if err != nil {
		return fmt.Errorf("insert client[%s]: %w", c.GUID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get inserted client id[%s]: %w", c.GUID, err)
	}
	c.LocalID = id
	return nil
}

// Update overwrites an existing client row by LocalID.
func (r *ClientRepository) Update(ctx context.Context, c *model.Client) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE clients SET remote_id = ?, guid = ?, workspace_id = ?, name = ?, ui_modified_at = ?
		WHERE local_id = ?
	`, c.RemoteID, c.GUID, c.WorkspaceID, c.Name, c.UIModifiedAt, c.LocalID)
	if err != nil {
		return fmt.Errorf("update client[%d]: %w", c.LocalID, err)
	}
	return nil
}

// List returns every known client.
func (r *ClientRepository) List(ctx context.Context) ([]*model.Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []*model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return out, nil
}

// Clear deletes all clients.
func (r *ClientRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM clients`); err != nil {
		return fmt.Errorf("clear clients: %w", err)
	}
	return nil
}
