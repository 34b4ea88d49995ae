package hilow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/sensor"
)

// GetHour folds the bucket for the local hour containing t into set and wind.
// It returns the number of buckets folded; 0 means no data, not an error.
func (s *Store) GetHour(ctx context.Context, t time.Time, set *sensor.Set, wind *sensor.WindDirection) (int, error) {
	start := HourStart(t.In(s.loc))
	return s.GetRange(ctx, start, start.Add(time.Hour), set, wind)
}

// GetDay folds the buckets for the local day containing t.
func (s *Store) GetDay(ctx context.Context, t time.Time, set *sensor.Set, wind *sensor.WindDirection) (int, error) {
	start := DayStart(t, s.loc)
	return s.GetRange(ctx, start, start.AddDate(0, 0, 1), set, wind)
}

// GetMonth folds the buckets for the local month containing t. With
// yearRainFlag set only the rain-season sensors are folded, for building the
// rain-season year, and the wind histogram is left alone.
func (s *Store) GetMonth(ctx context.Context, t time.Time, yearRainFlag bool, set *sensor.Set, wind *sensor.WindDirection) (int, error) {
	start := MonthStart(t, s.loc)
	end := start.AddDate(0, 1, 0)
	if yearRainFlag {
		return s.foldRange(ctx, start, end, sensor.IsRainSeason, set, nil)
	}
	return s.GetRange(ctx, start, end, set, wind)
}

// GetRange folds every bucket in [start, end).
func (s *Store) GetRange(ctx context.Context, start, end time.Time, set *sensor.Set, wind *sensor.WindDirection) (int, error) {
	return s.foldRange(ctx, start, end, func(sensor.Descriptor) bool { return true }, set, wind)
}

// foldRange folds the matching sensor collections and, if wind is not nil,
// the wind collection. A failing collection is logged and skipped; the
// returned error combines every failure.
func (s *Store) foldRange(ctx context.Context, start, end time.Time, match func(sensor.Descriptor) bool, set *sensor.Set, wind *sensor.WindDirection) (int, error) {
	var errs error
	buckets := make(map[int64]struct{})

	for i, d := range sensor.Descriptors {
		if !match(d) {
			continue
		}
		if err := s.foldSensorRange(ctx, d.Table, start.Unix(), end.Unix(), &set[i], buckets); err != nil {
			s.logger.Errorf("HILOW: %v", err)
			errs = multierr.Append(errs, err)
		}
	}

	if wind != nil {
		if err := s.foldWindRange(ctx, start.Unix(), end.Unix(), wind, buckets); err != nil {
			s.logger.Errorf("HILOW: %v", err)
			errs = multierr.Append(errs, err)
		}
	}

	return len(buckets), errs
}

func (s *Store) foldSensorRange(ctx context.Context, table string, start, end int64, into *sensor.Accumulator, buckets map[int64]struct{}) error {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %q WHERE bucketTime >= ? AND bucketTime < ? ORDER BY bucketTime`, sensorFields, table),
		start, end)
	if err != nil {
		return wxerrors.StoreIO("query "+table+" buckets", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bucket int64
		acc := sensor.NewAccumulator()
		if err := rows.Scan(&bucket, &acc.Low, &acc.TimeLow, &acc.High, &acc.TimeHigh, &acc.WhenHigh, &acc.Cumulative, &acc.Samples); err != nil {
			return wxerrors.StoreIO("scan "+table+" bucket", err)
		}
		acc.PropagateInto(into)
		buckets[bucket] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return wxerrors.StoreIO("iterate "+table+" buckets", err)
	}
	return nil
}

func (s *Store) foldWindRange(ctx context.Context, start, end int64, into *sensor.WindDirection, buckets map[int64]struct{}) error {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %q WHERE bucketTime >= ? AND bucketTime < ? ORDER BY bucketTime`, windFields, windTable),
		start, end)
	if err != nil {
		return wxerrors.StoreIO("query wind buckets", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bucket int64
			bins   [sensor.WindBins]int
		)
		dest := []any{&bucket}
		for i := range bins {
			dest = append(dest, &bins[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return wxerrors.StoreIO("scan wind bucket", err)
		}
		into.AddBins(bins)
		buckets[bucket] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return wxerrors.StoreIO("iterate wind buckets", err)
	}
	return nil
}

// DayStart returns local midnight of the day containing t.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// MonthStart returns local midnight of the first day of the month containing t.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// Dump returns a compact description of the non-empty buckets, for tools and
// tests that compare stores.
func (s *Store) Dump(ctx context.Context) (string, error) {
	var b strings.Builder

	for _, d := range sensor.Descriptors {
		rows, err := s.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT %s FROM %q ORDER BY bucketTime`, sensorFields, d.Table))
		if err != nil {
			return "", wxerrors.StoreIO("dump "+d.Table, err)
		}
		for rows.Next() {
			var bucket int64
			var acc sensor.Accumulator
			if err := rows.Scan(&bucket, &acc.Low, &acc.TimeLow, &acc.High, &acc.TimeHigh, &acc.WhenHigh, &acc.Cumulative, &acc.Samples); err != nil {
				rows.Close()
				return "", wxerrors.StoreIO("dump "+d.Table, err)
			}
			fmt.Fprintf(&b, "%s %d %v\n", d.Table, bucket, acc)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return "", wxerrors.StoreIO("dump "+d.Table, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %q ORDER BY bucketTime`, windFields, windTable))
	if err != nil {
		return "", wxerrors.StoreIO("dump wind", err)
	}
	defer rows.Close()
	for rows.Next() {
		var bucket int64
		var bins [sensor.WindBins]int
		dest := []any{&bucket}
		for i := range bins {
			dest = append(dest, &bins[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return "", wxerrors.StoreIO("dump wind", err)
		}
		fmt.Fprintf(&b, "%s %d %v\n", windTable, bucket, bins)
	}
	return b.String(), rows.Err()
}
