package hilow

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/wxrollup/internal/archive"
	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/sensor"
	"github.com/chrissnell/wxrollup/internal/types"
)

var testStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func testRecords(n int) []types.ArchiveRecord {
	recs := make([]types.ArchiveRecord, n)
	for i := range recs {
		rec := types.NewArchiveRecord(testStart.Add(time.Duration(i+1)*5*time.Minute), 5)
		rec.Values[types.OutTemp] = math.Round((50+10*math.Sin(float64(i)/20))*10) / 10
		rec.Values[types.InTemp] = 68
		rec.Values[types.OutHumidity] = float64(40 + i%30)
		rec.Values[types.Barometer] = 30.01
		rec.Values[types.WindSpeed] = float64(i % 12)
		rec.Values[types.WindGust] = float64(i%12 + 3)
		rec.Values[types.WindGustDir] = float64((i * 37) % 360)
		rec.Values[types.WindDir] = float64((i * 13) % 360)
		rec.Values[types.RainRate] = 0
		rec.Values[types.Rain] = 0
		if i%7 == 0 {
			rec.Values[types.Rain] = 0.01
			rec.Values[types.RainRate] = 0.12
		}
		recs[i] = rec
	}
	return recs
}

func newArchive(t *testing.T, recs []types.ArchiveRecord) *archive.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	store, err := archive.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "archive.sdb"), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	for _, rec := range recs {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	return store
}

func openHiLow(t *testing.T, path string, arch archive.Store) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, arch, time.UTC, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("failed to open HILOW store: %v", err)
	}
	return s
}

func dump(t *testing.T, s *Store) string {
	t.Helper()
	d, err := s.Dump(context.Background())
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	return d
}

func TestBackfillMatchesLiveFolding(t *testing.T) {
	ctx := context.Background()
	recs := testRecords(900)
	now := recs[len(recs)-1].Time()

	full := openHiLow(t, filepath.Join(t.TempDir(), "hilow.sdb"), newArchive(t, recs))
	defer full.Close()
	if !full.Fresh() {
		t.Fatal("expected a new store to be fresh")
	}
	if err := full.Sync(ctx, now); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	if full.Watermark() != recs[len(recs)-1].DateTime {
		t.Errorf("expected watermark %d, got %d", recs[len(recs)-1].DateTime, full.Watermark())
	}

	liveArchive := newArchive(t, nil)
	live := openHiLow(t, filepath.Join(t.TempDir(), "hilow.sdb"), liveArchive)
	defer live.Close()
	if err := live.Sync(ctx, testStart); err != nil {
		t.Fatalf("empty backfill failed: %v", err)
	}
	for _, rec := range recs {
		if err := liveArchive.Append(ctx, rec); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if err := live.FoldRecord(ctx, rec); err != nil {
			t.Fatalf("fold failed: %v", err)
		}
	}

	if dump(t, full) != dump(t, live) {
		t.Errorf("expected backfilled buckets to equal live-folded buckets")
	}
}

func TestGapCatchUp(t *testing.T) {
	ctx := context.Background()
	recs := testRecords(300)
	path := filepath.Join(t.TempDir(), "hilow.sdb")

	arch := newArchive(t, recs[:100])
	s := openHiLow(t, path, arch)
	if err := s.Sync(ctx, recs[99].Time()); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	s.Close()

	for _, rec := range recs[100:] {
		if err := arch.Append(ctx, rec); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	s = openHiLow(t, path, arch)
	defer s.Close()
	if s.Fresh() {
		t.Fatal("expected reopened store to be existing, not fresh")
	}
	if err := s.Sync(ctx, recs[299].Time()); err != nil {
		t.Fatalf("catch-up failed: %v", err)
	}
	if s.Watermark() != recs[299].DateTime {
		t.Errorf("expected watermark %d, got %d", recs[299].DateTime, s.Watermark())
	}

	// Watermark at newest: nothing to do.
	before := dump(t, s)
	if err := s.Sync(ctx, recs[299].Time()); err != nil {
		t.Fatalf("no-op sync failed: %v", err)
	}
	if dump(t, s) != before {
		t.Errorf("expected no-op sync to leave buckets unchanged")
	}

	reference := openHiLow(t, filepath.Join(t.TempDir(), "hilow.sdb"), arch)
	defer reference.Close()
	if err := reference.Sync(ctx, recs[299].Time()); err != nil {
		t.Fatalf("reference backfill failed: %v", err)
	}
	if dump(t, reference) != before {
		t.Errorf("expected catch-up result to equal a full backfill")
	}
}

func TestMissingCollectionIsRebuiltAlone(t *testing.T) {
	ctx := context.Background()
	recs := testRecords(200)
	path := filepath.Join(t.TempDir(), "hilow.sdb")
	arch := newArchive(t, recs)
	now := recs[len(recs)-1].Time()

	s := openHiLow(t, path, arch)
	if err := s.Sync(ctx, now); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	want := dump(t, s)
	if _, err := s.db.ExecContext(ctx, `DROP TABLE "outTemp"`); err != nil {
		t.Fatalf("drop failed: %v", err)
	}
	s.Close()

	s = openHiLow(t, path, arch)
	defer s.Close()
	if !s.Fresh() {
		t.Fatal("expected store with a missing collection to be fresh")
	}
	if err := s.Sync(ctx, now); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	if got := dump(t, s); got != want {
		t.Errorf("expected only the missing collection to be rebuilt")
	}
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	// 2024-03-01 00:05 .. 2024-03-02 00:00, 288 records.
	recs := testRecords(288)
	s := openHiLow(t, filepath.Join(t.TempDir(), "hilow.sdb"), newArchive(t, recs))
	defer s.Close()
	if err := s.Sync(ctx, recs[len(recs)-1].Time()); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}

	tests := []struct {
		name    string
		query   func(*sensor.Set, *sensor.WindDirection) (int, error)
		buckets int
		samples int
	}{
		{
			name: "hour",
			query: func(set *sensor.Set, w *sensor.WindDirection) (int, error) {
				return s.GetHour(ctx, testStart.Add(90*time.Minute), set, w)
			},
			buckets: 1,
			samples: 12,
		},
		{
			name: "day",
			query: func(set *sensor.Set, w *sensor.WindDirection) (int, error) {
				return s.GetDay(ctx, testStart.Add(12*time.Hour), set, w)
			},
			buckets: 24,
			samples: 288,
		},
		{
			name: "month",
			query: func(set *sensor.Set, w *sensor.WindDirection) (int, error) {
				return s.GetMonth(ctx, testStart.Add(5*24*time.Hour), false, set, w)
			},
			buckets: 24,
			samples: 288,
		},
		{
			name: "empty month",
			query: func(set *sensor.Set, w *sensor.WindDirection) (int, error) {
				return s.GetMonth(ctx, testStart.AddDate(0, 1, 0), false, set, w)
			},
			buckets: 0,
			samples: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := sensor.NewSet()
			var wind sensor.WindDirection

			n, err := tt.query(&set, &wind)
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if n != tt.buckets {
				t.Errorf("expected %d buckets, got %d", tt.buckets, n)
			}
			if got := set.Get(sensor.OutTemp).Samples; got != tt.samples {
				t.Errorf("expected %d outTemp samples, got %d", tt.samples, got)
			}
			if wind.Total() != tt.samples {
				t.Errorf("expected %d wind readings, got %d", tt.samples, wind.Total())
			}
		})
	}
}

func TestMonthRainSeasonFlag(t *testing.T) {
	ctx := context.Background()
	recs := testRecords(288)
	s := openHiLow(t, filepath.Join(t.TempDir(), "hilow.sdb"), newArchive(t, recs))
	defer s.Close()
	if err := s.Sync(ctx, recs[len(recs)-1].Time()); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}

	set := sensor.NewSet()
	var wind sensor.WindDirection
	if _, err := s.GetMonth(ctx, testStart, true, &set, &wind); err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if set.Get(sensor.OutTemp).Samples != 0 {
		t.Errorf("expected outTemp left out of the rain-season fold")
	}
	if wind.Total() != 0 {
		t.Errorf("expected wind left out of the rain-season fold")
	}

	var wantRain float64
	for _, rec := range recs {
		wantRain += rec.Values[types.Rain]
	}
	if got := set.Get(sensor.Rain).Cumulative; math.Abs(got-wantRain) > 1e-9 {
		t.Errorf("expected rain %v, got %v", wantRain, got)
	}
	if got := set.Get(sensor.RainRate).High; got != 0.12 {
		t.Errorf("expected rain rate high 0.12, got %v", got)
	}
}

func TestBucketTimeUsesIntervalStart(t *testing.T) {
	s := &Store{loc: time.FixedZone("UTC-7", -7*3600)}

	rec := types.NewArchiveRecord(time.Date(2024, 3, 1, 13, 0, 0, 0, s.loc), 5)
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, s.loc).Unix()
	if got := s.BucketTime(rec); got != want {
		t.Errorf("expected bucket %s, got %s", fmt.Sprint(want), fmt.Sprint(got))
	}
}

func TestFailingCollectionDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	recs := testRecords(200)
	arch := newArchive(t, recs)
	now := recs[len(recs)-1].Time()

	s := openHiLow(t, filepath.Join(t.TempDir(), "hilow.sdb"), arch)
	defer s.Close()
	if err := s.Sync(ctx, now); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `DROP TABLE "outTemp"`); err != nil {
		t.Fatalf("drop failed: %v", err)
	}

	set := sensor.NewSet()
	var wind sensor.WindDirection
	n, err := s.GetDay(ctx, testStart, &set, &wind)
	if !wxerrors.IsStoreIO(err) {
		t.Errorf("expected a store I/O error for the missing collection, got %v", err)
	}
	if n == 0 {
		t.Error("expected the remaining collections to report buckets")
	}
	if got := set[sensor.InTemp].Samples; got != len(recs) {
		t.Errorf("inTemp samples = %d, want %d", got, len(recs))
	}
	if got := set[sensor.OutTemp].Samples; got != 0 {
		t.Errorf("outTemp samples = %d, want 0", got)
	}
	if wind.Total() != len(recs) {
		t.Errorf("wind total = %d, want %d", wind.Total(), len(recs))
	}

	// A live fold still reaches every other collection and the watermark.
	next := types.NewArchiveRecord(testStart.Add(17*time.Hour+5*time.Minute), 5)
	next.Values[types.InTemp] = 70
	next.Values[types.OutTemp] = 55
	next.Values[types.WindDir] = 90
	if err := s.FoldRecord(ctx, next); !wxerrors.IsStoreIO(err) {
		t.Errorf("expected a store I/O error from the fold, got %v", err)
	}
	if s.Watermark() != next.DateTime {
		t.Errorf("watermark = %d, want %d", s.Watermark(), next.DateTime)
	}

	hour := sensor.NewSet()
	var hourWind sensor.WindDirection
	if _, err := s.GetHour(ctx, testStart.Add(17*time.Hour), &hour, &hourWind); !wxerrors.IsStoreIO(err) {
		t.Errorf("expected a store I/O error from the hour query, got %v", err)
	}
	if got := hour[sensor.InTemp]; got.Samples != 1 || got.High != 70 {
		t.Errorf("inTemp hour bucket = %+v, want one sample of 70", got)
	}
	if hourWind.Total() != 1 {
		t.Errorf("wind hour total = %d, want 1", hourWind.Total())
	}
}
