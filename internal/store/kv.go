package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loctrack/agent/internal/dbx"
)

// KVRepository persists small scalar state that does not warrant its own
// table: the current user/session blob (including the sync cursor) and
// settings. Values are stored as opaque strings; callers own encoding.
type KVRepository struct {
	db dbx.DBTX
}

// NewKVRepository binds a KVRepository to db, which may be the Store's
// *sql.DB or a transaction handle from WithTx.
func NewKVRepository(db dbx.DBTX) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns the value for key, or ("", false) if unset.
func (r *KVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get kv[%s]: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key/value.
func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set kv[%s]: %w", key, err)
	}
	return nil
}

// Delete removes key, if present.
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete kv[%s]: %w", key, err)
	}
	return nil
}

// Known kv keys.
const (
	// KeyCurrentUser holds the JSON-encoded model.User for the signed-in
	// session: api token, identity fields, and the since cursor. A single
	// key rather than one per field, matching spec.md's single "session
	// row" that save(session)/load_current_user read and write as a unit.
	KeyCurrentUser = "current_user"
	KeySettings    = "settings"
)
