package rollup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/wxrollup/internal/archive"
	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/sensor"
	"github.com/chrissnell/wxrollup/internal/types"
)

// BucketStore is the HILOW surface the orchestrator needs. *hilow.Store
// satisfies it.
type BucketStore interface {
	FoldRecord(ctx context.Context, rec types.ArchiveRecord) error
	GetHour(ctx context.Context, t time.Time, set *sensor.Set, wind *sensor.WindDirection) (int, error)
	GetDay(ctx context.Context, t time.Time, set *sensor.Set, wind *sensor.WindDirection) (int, error)
	GetMonth(ctx context.Context, t time.Time, yearRainFlag bool, set *sensor.Set, wind *sensor.WindDirection) (int, error)
	GetRange(ctx context.Context, start, end time.Time, set *sensor.Set, wind *sensor.WindDirection) (int, error)
}

// Config holds the settings that shape the rollup.
type Config struct {
	IntervalMinutes int
	Location        *time.Location
	RainSeasonStart time.Month
	ElevationFt     float64
	Calibration     map[types.Channel]Calibration

	StormTrigger float64
	StormIdle    time.Duration

	// Year-to-date amounts added to the year scope when PresetYear is the
	// current rain-season year.
	PresetYear int
	RainYTD    float64
	ETYTD      float64
}

// Orchestrator drives the rollup. It is not safe for concurrent use; a single
// goroutine feeds it samples, interval ticks and records.
type Orchestrator struct {
	cfg     Config
	state   *State
	archive archive.Store
	buckets BucketStore
	logger  *zap.SugaredLogger

	last       types.Sample
	haveSample bool
	lastRecord *types.ArchiveRecord

	storm   *Storm
	changes Changes

	lastOffset int
	haveOffset bool
}

// NewOrchestrator returns an orchestrator with an empty state. Call Init to
// load history before feeding it.
func NewOrchestrator(cfg Config, arch archive.Store, buckets BucketStore, logger *zap.SugaredLogger) *Orchestrator {
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = 5
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RainSeasonStart < time.January || cfg.RainSeasonStart > time.December {
		cfg.RainSeasonStart = time.January
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Orchestrator{
		cfg:     cfg,
		state:   NewState(),
		archive: arch,
		buckets: buckets,
		logger:  logger,
		storm:   NewStorm(cfg.StormTrigger, cfg.StormIdle),
	}
}

// State exposes the rollup state for readers on the owning goroutine.
func (o *Orchestrator) State() *State {
	return o.state
}

// LastSample returns the most recent calibrated sample.
func (o *Orchestrator) LastSample() (types.Sample, bool) {
	return o.last, o.haveSample
}

// RecordSample calibrates a sample and folds it into the open interval.
func (o *Orchestrator) RecordSample(sample types.Sample) {
	calibrate(&sample.Values, o.cfg.Calibration)

	o.state.Sensors[Interval].Fold(&sample.Values, sample.Timestamp.Unix())
	o.state.Wind[Interval].AddValue(sample.Values[types.WindDir])

	o.last = sample
	o.haveSample = true
}

// FinalizeInterval closes the open interval at at. With a record reported by
// the station itself the interval extremes are reconciled against it and the
// station's record is returned. Otherwise a record is built from the interval,
// failing with ErrNoSamplesThisInterval if nothing arrived.
func (o *Orchestrator) FinalizeInterval(at time.Time, selfReported *types.ArchiveRecord) (types.ArchiveRecord, error) {
	if selfReported != nil {
		rec := *selfReported
		o.reconcile(rec)
		return rec, nil
	}

	if o.state.Sensors[Interval].Samples() == 0 && o.state.Wind[Interval].Total() == 0 {
		return types.ArchiveRecord{}, wxerrors.ErrNoSamplesThisInterval
	}
	return o.buildRecord(at), nil
}

// reconcile folds a station-generated record's extremes and totals into the
// interval so the higher timeframes agree with the record.
func (o *Orchestrator) reconcile(rec types.ArchiveRecord) {
	set := &o.state.Sensors[Interval]
	at := rec.IntervalStart()

	for _, d := range sensor.Descriptors {
		v := rec.Get(d.Channel)
		if !d.Accepts(v) {
			continue
		}
		acc := &set[d.Type]

		switch {
		case d.Type == sensor.OutTemp:
			acc.UpdateHighValue(v, at)
			acc.UpdateLowValue(v, at)
		case d.HasWhen:
			acc.UpdateHighValueWhen(v, rec.Get(d.When), at)
		case d.Kind == sensor.Both:
			acc.UpdateHighValue(v, at)
		case d.Kind == sensor.Cumulative:
			if v == 0 || acc.Cumulative < v {
				acc.UpdateCumulative(v)
			}
		}
	}
}

// passthrough lists the channels a built record copies from the latest
// sample because no accumulator covers them.
var passthrough = func() []types.Channel {
	var covered [types.ChannelCount]bool
	for _, d := range sensor.Descriptors {
		covered[d.Channel] = true
		if d.HasWhen {
			covered[d.When] = true
		}
	}
	covered[types.WindDir] = true

	var out []types.Channel
	for _, c := range types.Channels() {
		if !covered[c] {
			out = append(out, c)
		}
	}
	return out
}()

func (o *Orchestrator) buildRecord(at time.Time) types.ArchiveRecord {
	rec := types.NewArchiveRecord(at, o.cfg.IntervalMinutes)
	set := &o.state.Sensors[Interval]

	for _, d := range sensor.Descriptors {
		acc := &set[d.Type]
		switch d.Reduce {
		case sensor.ReduceAverage:
			rec.Values[d.Channel] = acc.AverageOrNull()
		case sensor.ReduceHigh:
			rec.Values[d.Channel] = acc.HighOrNull()
		case sensor.ReduceCumulative:
			if acc.Samples > 0 || acc.Cumulative > 0 {
				rec.Values[d.Channel] = acc.Cumulative
			}
		}
	}

	speed, gust := rec.Values[types.WindSpeed], rec.Values[types.WindGust]
	if (types.Valid(speed) && speed > 0) || (types.Valid(gust) && gust > 0) {
		rec.Values[types.WindDir] = o.state.Wind[Interval].ComputeOrNull()
		if g := &set[sensor.WindGust]; g.Samples > 0 {
			rec.Values[types.WindGustDir] = g.WhenHigh
		}
	}

	if o.haveSample {
		for _, c := range passthrough {
			rec.Values[c] = o.last.Values[c]
		}
	}

	deriveValues(&rec.Values)
	derivePressures(&rec.Values, o.cfg.ElevationFt)
	return rec
}

// OnNewRecord stores a finalized record and rolls the interval into every
// higher timeframe. A record the archive rejects leaves the state untouched.
func (o *Orchestrator) OnNewRecord(ctx context.Context, rec types.ArchiveRecord) error {
	if o.archive != nil {
		if err := o.archive.Append(ctx, rec); err != nil {
			return err
		}
	}

	if o.buckets != nil {
		if err := o.buckets.FoldRecord(ctx, rec); err != nil {
			o.logger.Errorf("HILOW fold of record %d failed: %v", rec.DateTime, err)
		}
	}

	o.checkOffset(rec)

	carry := o.carry(rec)
	o.normalize(rec)
	o.cascade(ctx, rec)
	o.storm.Update(rec.Time(), rec.Get(types.RainRate), rec.Get(types.Rain))
	o.state.clearInterval(carry)

	r := rec
	o.lastRecord = &r
	o.changes = o.ComputeChanges(ctx, rec.Time())
	return nil
}

// carry returns, per cumulative sensor, how much the interval counted beyond
// what the record reports. The excess opens the next interval.
func (o *Orchestrator) carry(rec types.ArchiveRecord) [sensor.TypeCount]float64 {
	var carry [sensor.TypeCount]float64
	set := &o.state.Sensors[Interval]
	for i, d := range sensor.Descriptors {
		if !sensor.IsCumulative(d) {
			continue
		}
		v := rec.Get(d.Channel)
		if !types.Valid(v) {
			continue
		}
		if excess := set[i].Cumulative - v; excess > 0 {
			carry[i] = excess
		}
	}
	return carry
}

// normalize makes the interval totals equal the record's.
func (o *Orchestrator) normalize(rec types.ArchiveRecord) {
	set := &o.state.Sensors[Interval]
	for i, d := range sensor.Descriptors {
		if sensor.IsCumulative(d) {
			set[i].UpdateCumulative(rec.Get(d.Channel))
		}
	}
}

func (o *Orchestrator) checkOffset(rec types.ArchiveRecord) {
	_, offset := rec.Time().In(o.cfg.Location).Zone()
	if o.haveOffset && offset != o.lastOffset {
		o.logger.Infof("UTC offset changed from %ds to %ds at record %d (DST transition)",
			o.lastOffset, offset, rec.DateTime)
	}
	o.lastOffset = offset
	o.haveOffset = true
}

// Changes returns the trend deltas computed for the latest record.
func (o *Orchestrator) Changes() Changes {
	return o.changes
}

// Totals summarizes the running rain and ET totals.
type Totals struct {
	DayRain   float64
	MonthRain float64
	YearRain  float64
	DayET     float64
	MonthET   float64
	YearET    float64

	StormRain   float64
	StormStart  time.Time
	StormActive bool
}

// Totals reports the current totals including the open interval.
func (o *Orchestrator) Totals() Totals {
	st := o.state
	sum := func(tf Timeframe, t sensor.Type) float64 {
		return st.Sensors[tf][t].Cumulative + st.Sensors[Interval][t].Cumulative
	}

	var t Totals
	t.DayRain = sum(Day, sensor.Rain)
	t.MonthRain = sum(Month, sensor.Rain)
	t.YearRain = sum(Year, sensor.Rain)
	t.DayET = sum(Day, sensor.ET)
	t.MonthET = sum(Month, sensor.ET)
	t.YearET = sum(Year, sensor.ET)
	t.StormRain, t.StormStart, t.StormActive = o.storm.Rain()
	return t
}
