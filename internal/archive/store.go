// Package archive persists finalized archive records. The store is
// append-only and strictly time-ordered; every rollup is derived from it.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"

	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/types"
	"github.com/chrissnell/wxrollup/pkg/migrate"
)

//go:embed migrations
var migrationFS embed.FS

// NewMigrator returns the migrator for the archive schema in the given
// dialect.
func NewMigrator(db *sql.DB, dialect migrate.Dialect, logger *zap.SugaredLogger) *migrate.Migrator {
	dir := "migrations/sqlite"
	if dialect == migrate.Postgres {
		dir = "migrations/postgres"
	}
	return migrate.NewMigrator(db, migrate.NewFSProvider(migrationFS, dir, "archive_migrations", dialect), logger)
}

// Store is the read/write contract of the archive.
type Store interface {
	// Append stores rec. It fails with ErrDuplicateTimestamp if a record exists
	// at rec.DateTime and with ErrOutOfOrder if rec.DateTime is not newer than
	// the newest stored record.
	Append(ctx context.Context, rec types.ArchiveRecord) error

	// Newest returns the most recent record, or ErrNotFound.
	Newest(ctx context.Context) (types.ArchiveRecord, error)

	// NextAfter returns the first record strictly after t, or ErrNotFound.
	NextAfter(ctx context.Context, t int64) (types.ArchiveRecord, error)

	// Range yields the records with start <= DateTime <= end in ascending order.
	// Each call starts a fresh query.
	Range(ctx context.Context, start, end int64) iter.Seq2[types.ArchiveRecord, error]

	// Nearest returns the record closest to t within tolerance seconds, or
	// ErrNotFound.
	Nearest(ctx context.Context, t, tolerance int64) (types.ArchiveRecord, error)

	// Count returns the number of records matching a SQL filter on the archive
	// table. An empty filter counts every record.
	Count(ctx context.Context, where string, args ...any) (int, error)

	Close() error
}

// backend is the minimal SQL surface shared by the SQLite and PostgreSQL
// stores. Queries use ? placeholders.
type backend interface {
	exec(ctx context.Context, query string, args ...any) error
	query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	isUniqueViolation(err error) bool
}

var (
	columnList   = buildColumnList()
	placeholders = strings.TrimSuffix(strings.Repeat("?, ", int(types.ChannelCount)+3), ", ")
	selectPrefix = "SELECT " + columnList + " FROM archive"
)

func buildColumnList() string {
	cols := []string{`"dateTime"`, `"usUnits"`, `"interval"`}
	for _, c := range types.Channels() {
		cols = append(cols, `"`+c.String()+`"`)
	}
	return strings.Join(cols, ", ")
}

// sqlStore implements the store logic on top of a backend.
type sqlStore struct {
	be backend
}

func (s *sqlStore) Append(ctx context.Context, rec types.ArchiveRecord) error {
	newest, err := s.Newest(ctx)
	switch {
	case err == nil:
		if rec.DateTime == newest.DateTime {
			return fmt.Errorf("append record at %d: %w", rec.DateTime, wxerrors.ErrDuplicateTimestamp)
		}
		if rec.DateTime < newest.DateTime {
			exists, err := s.exists(ctx, rec.DateTime)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("append record at %d: %w", rec.DateTime, wxerrors.ErrDuplicateTimestamp)
			}
			return fmt.Errorf("append record at %d (newest %d): %w", rec.DateTime, newest.DateTime, wxerrors.ErrOutOfOrder)
		}
	case !wxerrors.IsNotFound(err):
		return err
	}

	args := make([]any, 0, int(types.ChannelCount)+3)
	args = append(args, rec.DateTime, rec.USUnits, rec.Interval)
	for _, v := range rec.Values {
		if types.Valid(v) {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}

	q := "INSERT INTO archive (" + columnList + ") VALUES (" + placeholders + ")"
	if err := s.be.exec(ctx, q, args...); err != nil {
		if s.be.isUniqueViolation(err) {
			return fmt.Errorf("append record at %d: %w", rec.DateTime, wxerrors.ErrDuplicateTimestamp)
		}
		return wxerrors.StoreIO("append archive record", err)
	}
	return nil
}

func (s *sqlStore) exists(ctx context.Context, t int64) (bool, error) {
	n, err := s.Count(ctx, `"dateTime" = ?`, t)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqlStore) Newest(ctx context.Context) (types.ArchiveRecord, error) {
	return s.one(ctx, "newest archive record",
		selectPrefix+` ORDER BY "dateTime" DESC LIMIT 1`)
}

func (s *sqlStore) NextAfter(ctx context.Context, t int64) (types.ArchiveRecord, error) {
	return s.one(ctx, "next archive record",
		selectPrefix+` WHERE "dateTime" > ? ORDER BY "dateTime" ASC LIMIT 1`, t)
}

func (s *sqlStore) Nearest(ctx context.Context, t, tolerance int64) (types.ArchiveRecord, error) {
	return s.one(ctx, "nearest archive record",
		selectPrefix+` WHERE "dateTime" >= ? AND "dateTime" <= ? ORDER BY ABS("dateTime" - ?) ASC, "dateTime" ASC LIMIT 1`,
		t-tolerance, t+tolerance, t)
}

func (s *sqlStore) Range(ctx context.Context, start, end int64) iter.Seq2[types.ArchiveRecord, error] {
	return func(yield func(types.ArchiveRecord, error) bool) {
		rows, err := s.be.query(ctx,
			selectPrefix+` WHERE "dateTime" >= ? AND "dateTime" <= ? ORDER BY "dateTime" ASC`, start, end)
		if err != nil {
			yield(types.ArchiveRecord{}, wxerrors.StoreIO("query archive range", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(types.ArchiveRecord{}, wxerrors.StoreIO("scan archive record", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(types.ArchiveRecord{}, wxerrors.StoreIO("iterate archive range", err))
		}
	}
}

func (s *sqlStore) Count(ctx context.Context, where string, args ...any) (int, error) {
	q := "SELECT COUNT(*) FROM archive"
	if where != "" {
		q += " WHERE " + where
	}

	rows, err := s.be.query(ctx, q, args...)
	if err != nil {
		return 0, wxerrors.StoreIO("count archive records", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, wxerrors.StoreIO("count archive records", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, wxerrors.StoreIO("count archive records", err)
	}
	return n, nil
}

func (s *sqlStore) one(ctx context.Context, op, q string, args ...any) (types.ArchiveRecord, error) {
	rows, err := s.be.query(ctx, q, args...)
	if err != nil {
		return types.ArchiveRecord{}, wxerrors.StoreIO(op, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return types.ArchiveRecord{}, wxerrors.StoreIO(op, err)
		}
		return types.ArchiveRecord{}, fmt.Errorf("%s: %w", op, wxerrors.ErrNotFound)
	}

	rec, err := scanRecord(rows)
	if err != nil {
		return types.ArchiveRecord{}, wxerrors.StoreIO(op, err)
	}
	return rec, nil
}

func scanRecord(rows *sql.Rows) (types.ArchiveRecord, error) {
	var (
		rec    types.ArchiveRecord
		units  int64
		ivl    int64
		values [types.ChannelCount]sql.NullFloat64
	)

	dest := make([]any, 0, int(types.ChannelCount)+3)
	dest = append(dest, &rec.DateTime, &units, &ivl)
	for i := range values {
		dest = append(dest, &values[i])
	}

	if err := rows.Scan(dest...); err != nil {
		return types.ArchiveRecord{}, err
	}

	rec.USUnits = int(units)
	rec.Interval = int(ivl)
	for i, v := range values {
		if v.Valid {
			rec.Values[i] = v.Float64
		} else {
			rec.Values[i] = types.NullValue
		}
	}
	return rec, nil
}
