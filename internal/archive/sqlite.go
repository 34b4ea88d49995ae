package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/chrissnell/wxrollup/internal/database"
	"github.com/chrissnell/wxrollup/pkg/migrate"
)

// SQLiteStore is an archive store in a local SQLite file.
type SQLiteStore struct {
	sqlStore
	db *sql.DB
}

// NewSQLiteStore opens the archive database at path and brings its schema up
// to date.
func NewSQLiteStore(ctx context.Context, path string, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := NewMigrator(db, migrate.SQLite, logger).MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate archive database %s: %w", path, err)
	}

	return &SQLiteStore{
		sqlStore: sqlStore{be: sqliteBackend{db: db}},
		db:       db,
	}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteBackend struct {
	db *sql.DB
}

func (b sqliteBackend) exec(ctx context.Context, query string, args ...any) error {
	_, err := b.db.ExecContext(ctx, query, args...)
	return err
}

func (b sqliteBackend) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.db.QueryContext(ctx, query, args...)
}

func (b sqliteBackend) isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
