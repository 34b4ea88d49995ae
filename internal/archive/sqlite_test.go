package archive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/types"
	"github.com/chrissnell/wxrollup/pkg/migrate"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "archive.sdb"), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("failed to open archive store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func record(t int64, outTemp float64) types.ArchiveRecord {
	rec := types.ArchiveRecord{DateTime: t, Interval: 5, USUnits: types.UnitsImperial}
	for i := range rec.Values {
		rec.Values[i] = types.NullValue
	}
	rec.Values[types.OutTemp] = outTemp
	return rec
}

func TestAppendIntegrity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Append(ctx, record(100, 70)); err != nil {
		t.Fatalf("first append failed: %v", err)
	}

	err := store.Append(ctx, record(100, 71))
	if !errors.Is(err, wxerrors.ErrDuplicateTimestamp) {
		t.Errorf("expected ErrDuplicateTimestamp, got %v", err)
	}

	err = store.Append(ctx, record(90, 72))
	if !errors.Is(err, wxerrors.ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder, got %v", err)
	}

	n, err := store.Count(ctx, "")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
}

func TestAppendRejectsEarlierDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, ts := range []int64{100, 400} {
		if err := store.Append(ctx, record(ts, 70)); err != nil {
			t.Fatalf("append %d failed: %v", ts, err)
		}
	}

	if err := store.Append(ctx, record(100, 70)); !errors.Is(err, wxerrors.ErrDuplicateTimestamp) {
		t.Errorf("expected ErrDuplicateTimestamp, got %v", err)
	}
}

func TestNullRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := record(600, 68.5)
	rec.Values[types.WindDir] = 0
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	got, err := store.Newest(ctx)
	if err != nil {
		t.Fatalf("Newest failed: %v", err)
	}
	if got != rec {
		t.Errorf("expected %+v, got %+v", rec, got)
	}
	if types.Valid(got.Values[types.Barometer]) {
		t.Errorf("expected barometer to read back missing, got %v", got.Values[types.Barometer])
	}
}

func TestReadQueries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Newest(ctx); !errors.Is(err, wxerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}

	for i, ts := range []int64{300, 600, 900, 1200} {
		if err := store.Append(ctx, record(ts, float64(60+i))); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	next, err := store.NextAfter(ctx, 600)
	if err != nil || next.DateTime != 900 {
		t.Errorf("expected next record at 900, got %d (%v)", next.DateTime, err)
	}
	if _, err := store.NextAfter(ctx, 1200); !errors.Is(err, wxerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound after newest, got %v", err)
	}

	near, err := store.Nearest(ctx, 880, 300)
	if err != nil || near.DateTime != 900 {
		t.Errorf("expected nearest record at 900, got %d (%v)", near.DateTime, err)
	}
	if _, err := store.Nearest(ctx, 5000, 300); !errors.Is(err, wxerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound outside tolerance, got %v", err)
	}

	n, err := store.Count(ctx, `"outTemp" >= ?`, 62)
	if err != nil || n != 2 {
		t.Errorf("expected 2 records with outTemp >= 62, got %d (%v)", n, err)
	}
}

func TestRangeIsRestartable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for ts := int64(300); ts <= 3000; ts += 300 {
		if err := store.Append(ctx, record(ts, 70)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	seq := store.Range(ctx, 600, 1500)

	var first []int64
	for rec, err := range seq {
		if err != nil {
			t.Fatalf("range failed: %v", err)
		}
		first = append(first, rec.DateTime)
		if len(first) == 2 {
			break
		}
	}

	var second []int64
	for rec, err := range seq {
		if err != nil {
			t.Fatalf("range failed: %v", err)
		}
		second = append(second, rec.DateTime)
	}

	if len(first) != 2 || first[0] != 600 {
		t.Errorf("expected early stop after [600 900], got %v", first)
	}
	expected := []int64{600, 900, 1200, 1500}
	if len(second) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, second)
	}
	for i := range expected {
		if second[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, second)
			break
		}
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.sdb")

	store, err := NewSQLiteStore(ctx, path, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := store.Append(ctx, record(300, 70)); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	store.Close()

	store, err = NewSQLiteStore(ctx, path, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	if _, err := store.Newest(ctx); err != nil {
		t.Errorf("expected record to survive reopen, got %v", err)
	}
}

func TestSchemaMigrations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	m := NewMigrator(store.db, migrate.SQLite, nil)

	if v, err := m.GetCurrentVersion(ctx); err != nil || v != 1 {
		t.Fatalf("expected schema version 1, got %d (%v)", v, err)
	}
	if pending, err := m.GetPendingMigrations(ctx); err != nil || len(pending) != 0 {
		t.Fatalf("expected no pending migrations, got %v (%v)", pending, err)
	}

	if err := m.MigrateDown(ctx, 0); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	if _, err := store.Count(ctx, ""); !wxerrors.IsStoreIO(err) {
		t.Errorf("expected a store I/O error without the archive table, got %v", err)
	}

	if err := m.MigrateTo(ctx, 1); err != nil {
		t.Fatalf("MigrateTo failed: %v", err)
	}
	if n, err := store.Count(ctx, ""); err != nil || n != 0 {
		t.Errorf("expected an empty archive after re-creating the schema, got %d (%v)", n, err)
	}
}

func TestPostgresUniqueViolation(t *testing.T) {
	be := gormBackend{}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"other constraint", &pgconn.PgError{Code: "23503"}, false},
		{"not a postgres error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := be.isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
