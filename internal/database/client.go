// Package database opens the SQL connections used by the archive and HILOW
// stores.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // SQLite driver
)

// OpenPostgres connects to a PostgreSQL or TimescaleDB server through gorm,
// sending gorm's own log output through zap.
func OpenPostgres(ctx context.Context, connectionString string, zapLogger *zap.Logger) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(zapLogger),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create a PostgreSQL connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unable to get underlying PostgreSQL handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("unable to reach PostgreSQL: %w", err)
	}

	return db, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file. Pragmas go
// in the DSN so that every pooled connection gets them.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open SQLite database %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to open SQLite database %s: %w", path, err)
	}

	return db, nil
}

// SetSynchronous switches SQLite's synchronous pragma, used to speed up bulk
// rebuilds. It only affects the connection that runs it, so callers pin the
// pool to a single connection.
func SetSynchronous(ctx context.Context, db *sql.DB, on bool) error {
	mode := "OFF"
	if on {
		mode = "NORMAL"
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = "+mode); err != nil {
		return fmt.Errorf("unable to set synchronous=%s: %w", mode, err)
	}
	return nil
}
