package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chrissnell/wxrollup/internal/database"
	"github.com/chrissnell/wxrollup/pkg/migrate"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// PostgresStore is an archive store in PostgreSQL or TimescaleDB.
type PostgresStore struct {
	sqlStore
	db *gorm.DB
}

// NewPostgresStore connects to the archive database and brings its schema up
// to date.
func NewPostgresStore(ctx context.Context, connectionString string, zapLogger *zap.Logger) (*PostgresStore, error) {
	db, err := database.OpenPostgres(ctx, connectionString, zapLogger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unable to get archive database handle: %w", err)
	}

	if err := NewMigrator(sqlDB, migrate.Postgres, zapLogger.Sugar()).MigrateUp(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate archive database: %w", err)
	}

	return &PostgresStore{
		sqlStore: sqlStore{be: gormBackend{db: db}},
		db:       db,
	}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormBackend runs raw SQL through gorm, which rewrites ? placeholders for
// PostgreSQL.
type gormBackend struct {
	db *gorm.DB
}

func (b gormBackend) exec(ctx context.Context, query string, args ...any) error {
	return b.db.WithContext(ctx).Exec(query, args...).Error
}

func (b gormBackend) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.db.WithContext(ctx).Raw(query, args...).Rows()
}

func (b gormBackend) isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
