// Package store is the agent's durable persistence layer: a single SQLite
// file holding the entity tables (workspaces, clients, projects, tasks,
// tags, time entries) plus a small key/value table for the session,
// settings and sync cursor. Schema changes ship as goose migrations
// embedded in internal/store/migrations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/loctrack/agent/internal/dbx"
	"github.com/loctrack/agent/internal/filex"
	"github.com/loctrack/agent/internal/store/migrations"
)

// Store owns the database handle and exposes one repository per entity
// kind. WithTx lets a caller settle several tables atomically; its one
// user is WipeAccountData. The sync engine's pull merge and push-result
// handling write row by row through the repositories, outside any
// transaction.
type Store struct {
	db *sql.DB

	KV         *KVRepository
	Workspaces *WorkspaceRepository
	Clients    *ClientRepository
	Projects   *ProjectRepository
	Tasks      *TaskRepository
	Tags       *TagRepository
	TimeEntries *TimeEntryRepository
}

// Open opens (creating if necessary) the SQLite database at dsn and brings
// its schema up to date via goose. dsn is a plain filesystem path, or
// ":memory:" for tests.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn != ":memory:" {
		if _, err := filex.EnsureDir(filepath.Dir(dsn)); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite has no internal connection pool semantics worth sharing

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		db.Close()
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		db.Close()
		return nil, fmt.Errorf("integrity check failed: %s", result)
	}

	return &Store{
		db:          db,
		KV:          &KVRepository{db: db},
		Workspaces:  &WorkspaceRepository{db: db},
		Clients:     &ClientRepository{db: db},
		Projects:    &ProjectRepository{db: db},
		Tasks:       &TaskRepository{db: db},
		Tags:        &TagRepository{db: db},
		TimeEntries: &TimeEntryRepository{db: db},
	}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Callers compose several repository calls into
// one transaction by building repositories on tx with the
// New*Repository(tx) constructors.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// WipeAccountData deletes the persisted session row and every entity
// table row as one transaction, so a crash mid-wipe never leaves a
// cleared token next to a stale graph or vice versa. Used by
// Session.SignOutAndWipe to implement spec.md's atomic sign-out-and-wipe.
func (s *Store) WipeAccountData(ctx context.Context) error {
	return s.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := NewKVRepository(tx).Delete(ctx, KeyCurrentUser); err != nil {
			return err
		}
		clears := []func(context.Context) error{
			NewTimeEntryRepository(tx).Clear,
			NewTagRepository(tx).Clear,
			NewTaskRepository(tx).Clear,
			NewProjectRepository(tx).Clear,
			NewClientRepository(tx).Clear,
			NewWorkspaceRepository(tx).Clear,
		}
		for _, clear := range clears {
			if err := clear(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for callers that need it directly.
func (s *Store) DB() *sql.DB {
	return s.db
}
