package rollup

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/wxrollup/internal/archive"
	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/hilow"
	"github.com/chrissnell/wxrollup/internal/sensor"
	"github.com/chrissnell/wxrollup/internal/types"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func newTestOrchestrator(cfg Config, arch archive.Store, buckets BucketStore) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return NewOrchestrator(cfg, arch, buckets, zap.NewNop().Sugar())
}

func sampleAt(t time.Time, set map[types.Channel]float64) types.Sample {
	s := types.NewSample(t)
	for c, v := range set {
		s.Set(c, v)
	}
	return s
}

// recordFor returns a record ending at end with the given values, and a
// sample carrying the same readings taken inside the interval.
func recordFor(end time.Time, set map[types.Channel]float64) (types.ArchiveRecord, types.Sample) {
	rec := types.NewArchiveRecord(end, 5)
	for c, v := range set {
		rec.Values[c] = v
	}
	rec.Values[types.Dewpoint] = types.CalculateDewpoint(rec.Values[types.OutTemp], rec.Values[types.OutHumidity])
	rec.Values[types.WindChill] = types.CalculateWindChill(rec.Values[types.OutTemp], rec.Values[types.WindSpeed])
	rec.Values[types.HeatIndex] = types.CalculateHeatIndex(rec.Values[types.OutTemp], rec.Values[types.OutHumidity])
	return rec, sampleAt(end.Add(-time.Minute), set)
}

func feed(t *testing.T, o *Orchestrator, end time.Time, set map[types.Channel]float64) types.ArchiveRecord {
	t.Helper()
	rec, sample := recordFor(end, set)
	o.RecordSample(sample)
	if err := o.OnNewRecord(context.Background(), rec); err != nil {
		t.Fatalf("OnNewRecord(%v) failed: %v", end, err)
	}
	return rec
}

func TestFinalizeIntervalWithoutSamples(t *testing.T) {
	o := newTestOrchestrator(Config{}, nil, nil)

	_, err := o.FinalizeInterval(time.Now(), nil)
	if !errors.Is(err, wxerrors.ErrNoSamplesThisInterval) {
		t.Fatalf("expected ErrNoSamplesThisInterval, got %v", err)
	}
}

func TestFinalizeIntervalBuildsRecord(t *testing.T) {
	o := newTestOrchestrator(Config{}, nil, nil)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	temps := []float64{70, 75, 68}
	dirs := []float64{10, 5, 355}
	for i := range temps {
		o.RecordSample(sampleAt(base.Add(time.Duration(i)*time.Minute), map[types.Channel]float64{
			types.OutTemp:     temps[i],
			types.OutHumidity: 50,
			types.WindSpeed:   4,
			types.WindGust:    float64(6 + i),
			types.WindGustDir: dirs[i],
			types.WindDir:     dirs[i],
			types.Rain:        0.01,
			types.Barometer:   30.00,
			types.ExtraTemp1:  float64(60 + i),
		}))
	}

	rec, err := o.FinalizeInterval(base.Add(5*time.Minute+30*time.Second), nil)
	if err != nil {
		t.Fatalf("FinalizeInterval failed: %v", err)
	}

	if rec.DateTime != base.Add(5*time.Minute).Unix() {
		t.Errorf("expected minute-truncated timestamp, got %d", rec.DateTime)
	}
	tests := []struct {
		name string
		ch   types.Channel
		want float64
	}{
		{"average temperature", types.OutTemp, 71},
		{"dominant direction", types.WindDir, 0},
		{"peak gust", types.WindGust, 8},
		{"gust direction", types.WindGustDir, 355},
		{"rain total", types.Rain, 0.03},
		{"passthrough", types.ExtraTemp1, 62},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.Values[tt.ch]; !almostEqual(got, tt.want) {
				t.Errorf("%s = %v, want %v", tt.ch, got, tt.want)
			}
		})
	}

	if want := types.CalculateDewpoint(71, 50); !almostEqual(rec.Values[types.Dewpoint], want) {
		t.Errorf("dewpoint = %v, want %v", rec.Values[types.Dewpoint], want)
	}
	if !types.Valid(rec.Values[types.Altimeter]) || !types.Valid(rec.Values[types.Pressure]) {
		t.Error("expected pressure and altimeter to be derived")
	}
	if types.Valid(rec.Values[types.UV]) {
		t.Errorf("expected UV to be missing, got %v", rec.Values[types.UV])
	}
}

func TestRecordSampleCalibration(t *testing.T) {
	o := newTestOrchestrator(Config{
		Calibration: map[types.Channel]Calibration{
			types.WindDir:     {Multiplier: 1, Offset: 20},
			types.OutHumidity: {Multiplier: 1.1},
			types.OutTemp:     {Offset: -2},
		},
	}, nil, nil)

	o.RecordSample(sampleAt(time.Now(), map[types.Channel]float64{
		types.WindDir:     350,
		types.OutHumidity: 95,
		types.OutTemp:     72,
	}))

	s, ok := o.LastSample()
	if !ok {
		t.Fatal("expected a sample")
	}
	if got := s.Values[types.WindDir]; !almostEqual(got, 10) {
		t.Errorf("wind direction = %v, want 10", got)
	}
	if got := s.Values[types.OutHumidity]; got != 100 {
		t.Errorf("humidity = %v, want capped at 100", got)
	}
	if got := s.Values[types.OutTemp]; !almostEqual(got, 70) {
		t.Errorf("temperature = %v, want 70", got)
	}
	if got, want := s.Values[types.Dewpoint], types.CalculateDewpoint(70, 100); !almostEqual(got, want) {
		t.Errorf("dewpoint = %v, want %v", got, want)
	}
}

func TestHourScenario(t *testing.T) {
	o := newTestOrchestrator(Config{}, nil, nil)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	for i, temp := range []float64{70, 75, 68} {
		feed(t, o, base.Add(time.Duration(i+1)*5*time.Minute), map[types.Channel]float64{types.OutTemp: temp})
	}

	hour := o.State().Sensors[Hour][sensor.OutTemp]
	if hour.High != 75 || hour.Low != 68 || hour.Samples != 3 {
		t.Errorf("hour = high %v low %v samples %d, want 75/68/3", hour.High, hour.Low, hour.Samples)
	}
	if avg, _ := hour.Average(); !almostEqual(avg, 71) {
		t.Errorf("hour average = %v, want 71", avg)
	}
	if n := o.State().Sensors[Interval].Samples(); n != 0 {
		t.Errorf("expected the interval to be cleared, got %d samples", n)
	}
}

func TestSelfReportedRecordReconciles(t *testing.T) {
	o := newTestOrchestrator(Config{}, nil, nil)
	end := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)

	o.RecordSample(sampleAt(end.Add(-2*time.Minute), map[types.Channel]float64{
		types.OutTemp: 75, types.Rain: 0.02, types.ET: 0.01,
		types.WindGust: 10, types.WindGustDir: 90,
	}))

	station := types.NewArchiveRecord(end, 5)
	station.Values[types.OutTemp] = 80
	station.Values[types.Rain] = 0.05
	station.Values[types.ET] = 0
	station.Values[types.WindGust] = 14
	station.Values[types.WindGustDir] = 180
	station.Values[types.RainRate] = 0.3

	rec, err := o.FinalizeInterval(end, &station)
	if err != nil {
		t.Fatalf("FinalizeInterval failed: %v", err)
	}
	if rec != station {
		t.Error("expected the station's record to be returned unchanged")
	}

	set := &o.State().Sensors[Interval]
	if got := set[sensor.OutTemp]; got.High != 80 || got.Low != 75 {
		t.Errorf("outTemp high/low = %v/%v, want 80/75", got.High, got.Low)
	}
	if got := set[sensor.WindGust]; got.High != 14 || got.WhenHigh != 180 {
		t.Errorf("gust = %v from %v, want 14 from 180", got.High, got.WhenHigh)
	}
	if got := set[sensor.RainRate].High; got != 0.3 {
		t.Errorf("rain rate high = %v, want 0.3", got)
	}
	if got := set[sensor.Rain].Cumulative; !almostEqual(got, 0.05) {
		t.Errorf("rain = %v, want raised to 0.05", got)
	}
	if got := set[sensor.ET].Cumulative; got != 0 {
		t.Errorf("ET = %v, want 0 when the station reports 0", got)
	}
}

func TestCarryIsNonNegative(t *testing.T) {
	tests := []struct {
		name       string
		sampled    float64
		recorded   float64
		wantCarry  float64
		wantPerDay float64
	}{
		{"interval counted more", 0.05, 0.03, 0.02, 0.03},
		{"record reports more", 0.03, 0.07, 0, 0.07},
		{"equal", 0.04, 0.04, 0, 0.04},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(Config{}, nil, nil)
			end := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)

			o.RecordSample(sampleAt(end.Add(-time.Minute), map[types.Channel]float64{types.Rain: tt.sampled}))
			rec := types.NewArchiveRecord(end, 5)
			rec.Values[types.Rain] = tt.recorded
			if err := o.OnNewRecord(context.Background(), rec); err != nil {
				t.Fatalf("OnNewRecord failed: %v", err)
			}

			st := o.State()
			if got := st.Carry[sensor.Rain]; got < 0 || !almostEqual(got, tt.wantCarry) {
				t.Errorf("carry = %v, want %v", got, tt.wantCarry)
			}
			if got := st.Sensors[Interval][sensor.Rain].Cumulative; !almostEqual(got, tt.wantCarry) {
				t.Errorf("next interval opens at %v, want %v", got, tt.wantCarry)
			}
			if got := st.Sensors[Day][sensor.Rain].Cumulative; !almostEqual(got, tt.wantPerDay) {
				t.Errorf("day rain = %v, want %v", got, tt.wantPerDay)
			}
		})
	}
}

func TestCascadeClearsOnBoundaries(t *testing.T) {
	o := newTestOrchestrator(Config{}, nil, nil)
	st := o.State()

	feed(t, o, time.Date(2024, 6, 30, 23, 55, 0, 0, time.UTC), map[types.Channel]float64{types.OutTemp: 60})
	feed(t, o, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), map[types.Channel]float64{types.OutTemp: 61})

	// The record ending at midnight covers 23:55-00:00 and stays in June.
	if got := st.Sensors[Day][sensor.OutTemp].Samples; got != 2 {
		t.Errorf("day samples before midnight = %d, want 2", got)
	}

	feed(t, o, time.Date(2024, 7, 1, 0, 5, 0, 0, time.UTC), map[types.Channel]float64{types.OutTemp: 62})

	tests := []struct {
		tf   Timeframe
		want int
	}{
		{Hour, 1},
		{Day, 1},
		{Month, 1},
		{Year, 3},
		{AllTime, 3},
	}
	for _, tt := range tests {
		t.Run(tt.tf.String(), func(t *testing.T) {
			if got := st.Sensors[tt.tf][sensor.OutTemp].Samples; got != tt.want {
				t.Errorf("%s samples = %d, want %d", tt.tf, got, tt.want)
			}
		})
	}
}

func TestRainSeasonBoundary(t *testing.T) {
	o := newTestOrchestrator(Config{RainSeasonStart: time.October}, nil, nil)
	st := o.State()

	feed(t, o, time.Date(2024, 9, 30, 12, 5, 0, 0, time.UTC), map[types.Channel]float64{
		types.OutTemp: 60, types.Rain: 0.5, types.RainRate: 1.0,
	})
	feed(t, o, time.Date(2024, 10, 1, 0, 10, 0, 0, time.UTC), map[types.Channel]float64{
		types.OutTemp: 55, types.Rain: 0.1, types.RainRate: 0.2,
	})

	year := &st.Sensors[Year]
	if got := year[sensor.Rain].Cumulative; !almostEqual(got, 0.1) {
		t.Errorf("season rain = %v, want 0.1 after the season reset", got)
	}
	if got := year[sensor.RainRate].High; got != 0.2 {
		t.Errorf("season rain rate high = %v, want 0.2", got)
	}
	if got := year[sensor.OutTemp].Samples; got != 2 {
		t.Errorf("calendar-year temperature samples = %d, want 2", got)
	}

	feed(t, o, time.Date(2025, 1, 1, 6, 5, 0, 0, time.UTC), map[types.Channel]float64{
		types.OutTemp: 30, types.Rain: 0.2,
	})
	if got := year[sensor.Rain].Cumulative; !almostEqual(got, 0.3) {
		t.Errorf("season rain = %v, want 0.3 across the calendar year", got)
	}
	if got := year[sensor.OutTemp].Samples; got != 1 {
		t.Errorf("calendar-year temperature samples = %d, want 1 after new year", got)
	}
	if got := st.Sensors[AllTime][sensor.Rain].Cumulative; !almostEqual(got, 0.8) {
		t.Errorf("all-time rain = %v, want 0.8", got)
	}
}

func TestTotalsIncludeOpenInterval(t *testing.T) {
	o := newTestOrchestrator(Config{}, nil, nil)
	end := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	feed(t, o, end, map[types.Channel]float64{types.Rain: 0.1, types.ET: 0.02})
	o.RecordSample(sampleAt(end.Add(time.Minute), map[types.Channel]float64{types.Rain: 0.05}))

	totals := o.Totals()
	if !almostEqual(totals.DayRain, 0.15) || !almostEqual(totals.MonthRain, 0.15) || !almostEqual(totals.YearRain, 0.15) {
		t.Errorf("rain totals = %+v, want 0.15 each", totals)
	}
	if !almostEqual(totals.DayET, 0.02) {
		t.Errorf("day ET = %v, want 0.02", totals.DayET)
	}
}

func newStores(t *testing.T) (*archive.SQLiteStore, *hilow.Store) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := zap.NewNop().Sugar()

	arch, err := archive.NewSQLiteStore(ctx, filepath.Join(dir, "archive.sdb"), logger)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	t.Cleanup(func() { arch.Close() })

	hl, err := hilow.Open(ctx, filepath.Join(dir, "hilow.sdb"), arch, time.UTC, logger)
	if err != nil {
		t.Fatalf("failed to open HILOW store: %v", err)
	}
	t.Cleanup(func() { hl.Close() })
	return arch, hl
}

func TestOnNewRecordRejectsDuplicate(t *testing.T) {
	arch, hl := newStores(t)
	o := newTestOrchestrator(Config{}, arch, hl)
	end := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)

	rec := feed(t, o, end, map[types.Channel]float64{types.OutTemp: 70})
	o.RecordSample(sampleAt(end.Add(time.Minute), map[types.Channel]float64{types.OutTemp: 71}))

	err := o.OnNewRecord(context.Background(), rec)
	if !errors.Is(err, wxerrors.ErrDuplicateTimestamp) {
		t.Fatalf("expected ErrDuplicateTimestamp, got %v", err)
	}
	if got := o.State().Sensors[Interval][sensor.OutTemp].Samples; got != 1 {
		t.Errorf("rejected record changed the interval: %d samples", got)
	}
	if got := o.State().Sensors[Hour][sensor.OutTemp].Samples; got != 1 {
		t.Errorf("rejected record changed the hour: %d samples", got)
	}
}

func TestInitMatchesLiveRollup(t *testing.T) {
	ctx := context.Background()
	arch, hl := newStores(t)
	live := newTestOrchestrator(Config{}, arch, hl)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var last time.Time
	for i := 1; i <= 601; i++ {
		last = start.Add(time.Duration(i) * 5 * time.Minute)
		values := map[types.Channel]float64{
			types.OutTemp:     math.Round((50+10*math.Sin(float64(i)/15))*10) / 10,
			types.OutHumidity: float64(40 + i%30),
			types.WindSpeed:   float64(i % 9),
			types.WindGust:    float64(i%9 + 2),
			types.WindGustDir: float64((i * 41) % 360),
			types.WindDir:     float64((i * 17) % 360),
			types.Rain:        0,
		}
		if i%11 == 0 {
			values[types.Rain] = 0.01
		}
		feed(t, live, last, values)
	}

	restarted := newTestOrchestrator(Config{}, arch, hl)
	if err := restarted.Init(ctx, last.Add(time.Minute)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for _, tf := range []Timeframe{Hour, Day, Week, Month, Year, AllTime} {
		t.Run(tf.String(), func(t *testing.T) {
			for _, typ := range []sensor.Type{sensor.OutTemp, sensor.WindGust, sensor.Rain} {
				a := live.State().Sensors[tf][typ]
				b := restarted.State().Sensors[tf][typ]
				if a.Samples != b.Samples || a.High != b.High || a.Low != b.Low || math.Abs(a.Cumulative-b.Cumulative) > 1e-6 {
					t.Errorf("%s %s: live %+v, restarted %+v", tf, typ, a, b)
				}
			}
			if live.State().Wind[tf] != restarted.State().Wind[tf] {
				t.Errorf("%s wind: live %v, restarted %v", tf, live.State().Wind[tf].Bins, restarted.State().Wind[tf].Bins)
			}
		})
	}
}

func TestComputeChanges(t *testing.T) {
	ctx := context.Background()
	arch, _ := newStores(t)
	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)

	past := types.NewArchiveRecord(now.Add(-time.Hour-2*time.Minute), 5)
	past.Values[types.OutTemp] = 60
	past.Values[types.OutHumidity] = 50
	past.Values[types.WindDir] = 350
	past.Values[types.Barometer] = 30.10
	if err := arch.Append(ctx, past); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	o := newTestOrchestrator(Config{}, arch, nil)
	o.RecordSample(sampleAt(now, map[types.Channel]float64{
		types.OutTemp:     65,
		types.OutHumidity: 50,
		types.WindDir:     10,
		types.Barometer:   30.00,
	}))

	changes := o.ComputeChanges(ctx, now)
	if !almostEqual(changes.Hour.OutTemp, 5) {
		t.Errorf("hour temperature change = %v, want 5", changes.Hour.OutTemp)
	}
	// Direction change is a plain signed difference; 350 -> 10 is -340.
	if !almostEqual(changes.Hour.WindDir, -340) {
		t.Errorf("hour direction change = %v, want -340", changes.Hour.WindDir)
	}
	if math.Abs(changes.Hour.Barometer+0.10) > 1e-6 {
		t.Errorf("hour barometer change = %v, want -0.10", changes.Hour.Barometer)
	}
	if changes.Hour.Dewpoint <= 0 {
		t.Errorf("expected a rising dewpoint, got %v", changes.Hour.Dewpoint)
	}
	if changes.Day != (Delta{}) || changes.Week != (Delta{}) {
		t.Errorf("expected zero deltas without comparison records, got %+v %+v", changes.Day, changes.Week)
	}
}
