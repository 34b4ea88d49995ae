// Package hilow maintains the durable per-hour rollup buckets derived from the
// archive. Buckets are only ever produced by replaying archive records, so
// the whole store can be rebuilt from the archive alone.
package hilow

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/wxrollup/internal/archive"
	"github.com/chrissnell/wxrollup/internal/database"
	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/sensor"
	"github.com/chrissnell/wxrollup/internal/types"
)

// batchSize is the number of archive records folded per transaction during
// backfill and gap catch-up.
const batchSize = 500

// Store is the HILOW bucket store.
type Store struct {
	db        *sql.DB
	archive   archive.Store
	loc       *time.Location
	logger    *zap.SugaredLogger
	fresh     [sensor.TypeCount]bool
	windFresh bool
	watermark int64
}

// Open opens the HILOW database at path and creates any missing collections.
// Call Sync before using the store.
func Open(ctx context.Context, path string, arch archive.Store, loc *time.Location, logger *zap.SugaredLogger) (*Store, error) {
	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	// synchronous is a per-connection pragma.
	db.SetMaxOpenConns(1)

	if loc == nil {
		loc = time.Local
	}

	s := &Store{
		db:      db,
		archive: arch,
		loc:     loc,
		logger:  logger,
	}

	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.watermark, err = s.readWatermark(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Watermark returns the timestamp of the newest archive record folded.
func (s *Store) Watermark() int64 {
	return s.watermark
}

// Sync brings the buckets up to date with the archive: a full backfill when
// collections were just created, otherwise a catch-up over the records newer
// than the watermark.
func (s *Store) Sync(ctx context.Context, now time.Time) error {
	if s.Fresh() {
		return s.backfill(ctx, now)
	}
	return s.catchUp(ctx, now)
}

// Rebuild drops every collection and backfills them from the archive.
func (s *Store) Rebuild(ctx context.Context, now time.Time) error {
	if err := s.dropCollections(ctx); err != nil {
		return err
	}
	if err := s.setWatermark(ctx, s.db, 0); err != nil {
		return err
	}
	s.watermark = 0
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	return s.backfill(ctx, now)
}

func (s *Store) backfill(ctx context.Context, now time.Time) error {
	s.logger.Infof("HILOW: backfilling from archive (watermark %d)...", s.watermark)
	start := time.Now()

	if err := database.SetSynchronous(ctx, s.db, false); err != nil {
		return err
	}
	defer func() {
		if err := database.SetSynchronous(ctx, s.db, true); err != nil {
			s.logger.Warnf("HILOW: %v", err)
		}
	}()

	watermark := s.watermark
	include := func(rec types.ArchiveRecord) foldMask {
		var m foldMask
		newer := rec.DateTime > watermark
		for i := range m.sensors {
			m.sensors[i] = s.fresh[i] || newer
		}
		m.wind = s.windFresh || newer
		return m
	}

	n, err := s.replay(ctx, 0, now.Unix(), include)
	if err != nil {
		return err
	}

	s.fresh = [sensor.TypeCount]bool{}
	s.windFresh = false

	s.logger.Infof("HILOW: backfill folded %d archive records in %v", n, time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *Store) catchUp(ctx context.Context, now time.Time) error {
	newest, err := s.archive.Newest(ctx)
	if wxerrors.IsNotFound(err) {
		s.logger.Info("HILOW: archive is empty, database OK")
		return nil
	}
	if err != nil {
		return err
	}

	if s.watermark >= newest.DateTime {
		s.logger.Info("HILOW: database OK")
		return nil
	}

	s.logger.Infof("HILOW: catching up from %s to %s",
		time.Unix(s.watermark, 0).In(s.loc).Format(time.RFC3339),
		time.Unix(newest.DateTime, 0).In(s.loc).Format(time.RFC3339))

	end := newest.DateTime
	if now.Unix() > end {
		end = now.Unix()
	}

	n, err := s.replay(ctx, s.watermark+1, end, func(types.ArchiveRecord) foldMask {
		return allSensors
	})
	if err != nil {
		return err
	}

	s.logger.Infof("HILOW: caught up %d archive records", n)
	return nil
}

// replay folds archive records in [start, end] in batches, advancing the
// watermark after each committed batch. Per-record fold failures are logged
// and the replay continues; iteration or commit failures stop it.
func (s *Store) replay(ctx context.Context, start, end int64, include func(types.ArchiveRecord) foldMask) (int, error) {
	var (
		tx     *sql.Tx
		folded int
		last   int64
		err    error
	)

	commit := func() error {
		if tx == nil {
			return nil
		}
		if err := s.setWatermark(ctx, tx, last); err != nil {
			tx.Rollback()
			tx = nil
			return err
		}
		if err := tx.Commit(); err != nil {
			tx = nil
			return wxerrors.StoreIO("commit HILOW batch", err)
		}
		tx = nil
		s.watermark = last
		return nil
	}

	for rec, iterErr := range s.archive.Range(ctx, start, end) {
		if iterErr != nil {
			if tx != nil {
				tx.Rollback()
			}
			return folded, iterErr
		}

		if tx == nil {
			tx, err = s.db.BeginTx(ctx, nil)
			if err != nil {
				return folded, wxerrors.StoreIO("begin HILOW batch", err)
			}
		}

		if err := s.fold(ctx, tx, rec, include(rec)); err != nil {
			s.logger.Errorf("HILOW: record %d: %v", rec.DateTime, err)
		}
		folded++
		last = rec.DateTime

		if folded%batchSize == 0 {
			if err := commit(); err != nil {
				return folded, err
			}
		}
	}

	return folded, commit()
}

// FoldRecord folds one newly stored archive record into its buckets and
// advances the watermark. A failure on one sensor does not stop the others;
// all failures are returned together.
func (s *Store) FoldRecord(ctx context.Context, rec types.ArchiveRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wxerrors.StoreIO("begin HILOW fold", err)
	}
	defer tx.Rollback()

	foldErr := s.fold(ctx, tx, rec, allSensors)

	if rec.DateTime > s.watermark {
		if err := s.setWatermark(ctx, tx, rec.DateTime); err != nil {
			return multierr.Append(foldErr, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return multierr.Append(foldErr, wxerrors.StoreIO("commit HILOW fold", err))
	}
	if rec.DateTime > s.watermark {
		s.watermark = rec.DateTime
	}
	return foldErr
}

// BucketTime returns the hour bucket a record is filed under: the local hour
// containing the start of the record's interval.
func (s *Store) BucketTime(rec types.ArchiveRecord) int64 {
	return HourStart(time.Unix(rec.IntervalStart(), 0).In(s.loc)).Unix()
}

// HourStart returns the start of the wall-clock hour containing t, in t's
// location.
func HourStart(t time.Time) time.Time {
	return t.Add(-(time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())))
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) readWatermark(ctx context.Context) (int64, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM "`+metaTable+`" WHERE name = ?`, lastUpdate).Scan(&value)
	if err == sql.ErrNoRows {
		if err := s.setWatermark(ctx, s.db, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}
	if err != nil {
		return 0, wxerrors.StoreIO("read HILOW watermark", err)
	}

	wm, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, wxerrors.StoreIO("parse HILOW watermark", err)
	}
	return wm, nil
}

func (s *Store) setWatermark(ctx context.Context, db execQuerier, t int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO "`+metaTable+`" (name, value) VALUES (?, ?)`, lastUpdate, strconv.FormatInt(t, 10))
	if err != nil {
		return wxerrors.StoreIO("write HILOW watermark", err)
	}
	return nil
}
