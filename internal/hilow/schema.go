package hilow

import (
	"context"
	"fmt"
	"strings"

	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/sensor"
)

const (
	metaTable    = "metadata"
	windTable    = "windDir"
	lastUpdate   = "lastUpdate"
	sensorFields = "bucketTime, low, timeLow, high, timeHigh, whenHigh, cumulative, samples"
)

var windFields = func() string {
	cols := []string{"bucketTime"}
	for i := 0; i < sensor.WindBins; i++ {
		cols = append(cols, fmt.Sprintf("bin%d", i))
	}
	return strings.Join(cols, ", ")
}()

func sensorTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		bucketTime INTEGER NOT NULL PRIMARY KEY,
		low REAL,
		timeLow INTEGER,
		high REAL,
		timeHigh INTEGER,
		whenHigh REAL,
		cumulative REAL,
		samples INTEGER
	)`, table)
}

func windTableDDL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %q (bucketTime INTEGER NOT NULL PRIMARY KEY", windTable)
	for i := 0; i < sensor.WindBins; i++ {
		fmt.Fprintf(&b, ", bin%d INTEGER NOT NULL DEFAULT 0", i)
	}
	b.WriteString(")")
	return b.String()
}

func metaTableDDL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (name TEXT NOT NULL PRIMARY KEY, value TEXT)`, metaTable)
}

// checkTable returns ErrSchemaMissing if table does not exist.
func (s *Store) checkTable(ctx context.Context, table string) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		return wxerrors.StoreIO("check table "+table, err)
	}
	if n == 0 {
		return fmt.Errorf("table %s: %w", table, wxerrors.ErrSchemaMissing)
	}
	return nil
}

// ensureTable creates table when missing and reports whether it did.
func (s *Store) ensureTable(ctx context.Context, table, ddl string) (bool, error) {
	err := s.checkTable(ctx, table)
	switch {
	case err == nil:
		return false, nil
	case !wxerrors.Is(err, wxerrors.ErrSchemaMissing):
		return false, err
	}

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return false, wxerrors.StoreIO("create table "+table, err)
	}
	s.logger.Infof("created HILOW table %s", table)
	return true, nil
}

// ensureSchema creates every missing collection and remembers which ones are
// new. A missing metadata table means the watermark is unknown, so every
// collection is rebuilt from scratch.
func (s *Store) ensureSchema(ctx context.Context) error {
	metaCreated, err := s.ensureTable(ctx, metaTable, metaTableDDL())
	if err != nil {
		return err
	}
	if metaCreated {
		if err := s.dropCollections(ctx); err != nil {
			return err
		}
		if err := s.setWatermark(ctx, s.db, 0); err != nil {
			return err
		}
	}

	for i, d := range sensor.Descriptors {
		created, err := s.ensureTable(ctx, d.Table, sensorTableDDL(d.Table))
		if err != nil {
			return err
		}
		s.fresh[i] = created
	}

	created, err := s.ensureTable(ctx, windTable, windTableDDL())
	if err != nil {
		return err
	}
	s.windFresh = created

	return nil
}

func (s *Store) dropCollections(ctx context.Context) error {
	tables := []string{windTable}
	for _, d := range sensor.Descriptors {
		tables = append(tables, d.Table)
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", table)); err != nil {
			return wxerrors.StoreIO("drop table "+table, err)
		}
	}
	return nil
}

// Fresh reports whether any collection was created by this Open.
func (s *Store) Fresh() bool {
	if s.windFresh {
		return true
	}
	for _, f := range s.fresh {
		if f {
			return true
		}
	}
	return false
}
