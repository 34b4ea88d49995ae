package hilow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/sensor"
	"github.com/chrissnell/wxrollup/internal/types"
)

// foldMask selects the collections a record is folded into.
type foldMask struct {
	sensors [sensor.TypeCount]bool
	wind    bool
}

var allSensors = func() foldMask {
	var m foldMask
	for i := range m.sensors {
		m.sensors[i] = true
	}
	m.wind = true
	return m
}()

// fold applies rec to every selected collection using the same accumulator
// operations as the live sample path.
func (s *Store) fold(ctx context.Context, tx *sql.Tx, rec types.ArchiveRecord, mask foldMask) error {
	var errs error

	bucket := s.BucketTime(rec)
	at := rec.IntervalStart()

	for i, d := range sensor.Descriptors {
		if !mask.sensors[i] || !d.Accepts(rec.Values[d.Channel]) {
			continue
		}
		if err := s.foldSensor(ctx, tx, d, bucket, at, &rec.Values); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if mask.wind && types.Valid(rec.Values[types.WindDir]) {
		if err := s.foldWind(ctx, tx, bucket, rec.Values[types.WindDir]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (s *Store) foldSensor(ctx context.Context, tx *sql.Tx, d sensor.Descriptor, bucket, at int64, values *[types.ChannelCount]float64) error {
	acc, err := readBucket(ctx, tx, d.Table, bucket)
	if err != nil {
		return err
	}

	d.Fold(&acc, values, at)

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR REPLACE INTO %q (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, d.Table, sensorFields),
		bucket, acc.Low, acc.TimeLow, acc.High, acc.TimeHigh, acc.WhenHigh, acc.Cumulative, acc.Samples)
	if err != nil {
		return wxerrors.StoreIO("write "+d.Table+" bucket", err)
	}
	return nil
}

func readBucket(ctx context.Context, tx *sql.Tx, table string, bucket int64) (sensor.Accumulator, error) {
	acc := sensor.NewAccumulator()

	err := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT low, timeLow, high, timeHigh, whenHigh, cumulative, samples FROM %q WHERE bucketTime = ?`, table),
		bucket).Scan(&acc.Low, &acc.TimeLow, &acc.High, &acc.TimeHigh, &acc.WhenHigh, &acc.Cumulative, &acc.Samples)
	if errors.Is(err, sql.ErrNoRows) {
		return sensor.NewAccumulator(), nil
	}
	if err != nil {
		return acc, wxerrors.StoreIO("read "+table+" bucket", err)
	}
	return acc, nil
}

func (s *Store) foldWind(ctx context.Context, tx *sql.Tx, bucket int64, deg float64) error {
	var w sensor.WindDirection

	dest := make([]any, sensor.WindBins)
	for i := range w.Bins {
		dest[i] = &w.Bins[i]
	}

	err := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %q WHERE bucketTime = ?`, strings.TrimPrefix(windFields, "bucketTime, "), windTable),
		bucket).Scan(dest...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return wxerrors.StoreIO("read wind bucket", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		w.Reset()
	}

	w.AddValue(deg)

	args := make([]any, 0, sensor.WindBins+1)
	args = append(args, bucket)
	for _, c := range w.Bins {
		args = append(args, c)
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR REPLACE INTO %q (%s) VALUES (?%s)`, windTable, windFields, strings.Repeat(", ?", sensor.WindBins)),
		args...)
	if err != nil {
		return wxerrors.StoreIO("write wind bucket", err)
	}
	return nil
}
