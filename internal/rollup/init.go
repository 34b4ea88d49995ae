package rollup

import (
	"context"
	"time"

	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/hilow"
	"github.com/chrissnell/wxrollup/internal/sensor"
	"github.com/chrissnell/wxrollup/internal/types"
)

// Init rebuilds every timeframe from the HILOW buckets as of now, then primes
// storm rain and trend deltas from the archive. Store failures are logged and
// leave the affected timeframe partial.
func (o *Orchestrator) Init(ctx context.Context, now time.Time) error {
	loc := o.cfg.Location
	now = now.In(loc)
	st := o.state
	st.Reset()
	o.storm.Reset()

	if o.buckets != nil {
		o.initAllTime(ctx, now)
		o.initYear(ctx, now)

		o.load("month", func() (int, error) {
			return o.buckets.GetMonth(ctx, now, false, &st.Sensors[Month], &st.Wind[Month])
		})

		day := hilow.DayStart(now, loc)
		o.load("week", func() (int, error) {
			return o.buckets.GetRange(ctx, day.AddDate(0, 0, -7), day.AddDate(0, 0, 1), &st.Sensors[Week], &st.Wind[Week])
		})
		o.load("day", func() (int, error) {
			return o.buckets.GetDay(ctx, now, &st.Sensors[Day], &st.Wind[Day])
		})
		o.load("hour", func() (int, error) {
			return o.buckets.GetHour(ctx, now, &st.Sensors[Hour], &st.Wind[Hour])
		})
	}

	if o.cfg.PresetYear != 0 && o.cfg.PresetYear == rainSeasonYear(now, o.cfg.RainSeasonStart) {
		st.Sensors[Year][sensor.Rain].AddCumulative(o.cfg.RainYTD)
		st.Sensors[Year][sensor.ET].AddCumulative(o.cfg.ETYTD)
		o.logger.Infof("applied %d YTD presets: rain %.2f, ET %.2f", o.cfg.PresetYear, o.cfg.RainYTD, o.cfg.ETYTD)
	}

	st.setMarks(marksFor(now, loc))

	if o.archive != nil {
		if err := o.primeStorm(ctx, now); err != nil {
			o.logger.Errorf("priming storm rain: %v", err)
		}
		if rec, err := o.archive.Newest(ctx); err == nil {
			o.lastRecord = &rec
		} else if !wxerrors.IsNotFound(err) {
			o.logger.Errorf("reading newest archive record: %v", err)
		}
		o.changes = o.ComputeChanges(ctx, now)
	}

	o.logger.Infof("rollup initialized: %d all-time samples", st.Sensors[AllTime].Samples())
	return ctx.Err()
}

func (o *Orchestrator) load(what string, get func() (int, error)) {
	n, err := get()
	if err != nil {
		o.logger.Errorf("loading %s from HILOW: %v", what, err)
		return
	}
	o.logger.Debugf("loaded %s from %d HILOW buckets", what, n)
}

// initAllTime folds every month from the first archive record to now.
func (o *Orchestrator) initAllTime(ctx context.Context, now time.Time) {
	if o.archive == nil {
		return
	}
	first, err := o.archive.NextAfter(ctx, 0)
	if err != nil {
		if !wxerrors.IsNotFound(err) {
			o.logger.Errorf("finding first archive record: %v", err)
		}
		return
	}

	st := o.state
	last := hilow.MonthStart(now, o.cfg.Location)
	for m := hilow.MonthStart(first.Time(), o.cfg.Location); !m.After(last); m = m.AddDate(0, 1, 0) {
		if ctx.Err() != nil {
			return
		}
		o.load("all-time "+m.Format("2006-01"), func() (int, error) {
			return o.buckets.GetMonth(ctx, m, false, &st.Sensors[AllTime], &st.Wind[AllTime])
		})
	}
}

// initYear folds the calendar year to date, then replaces the rain-season
// sensors with the rain season to date.
func (o *Orchestrator) initYear(ctx context.Context, now time.Time) {
	st := o.state
	loc := o.cfg.Location
	this := hilow.MonthStart(now, loc)

	for m := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc); !m.After(this); m = m.AddDate(0, 1, 0) {
		o.load("year "+m.Format("2006-01"), func() (int, error) {
			return o.buckets.GetMonth(ctx, m, false, &st.Sensors[Year], &st.Wind[Year])
		})
	}

	st.Sensors[Year].ResetWhere(sensor.IsRainSeason)
	season := time.Date(rainSeasonYear(now, o.cfg.RainSeasonStart), o.cfg.RainSeasonStart, 1, 0, 0, 0, 0, loc)
	for m := season; !m.After(this); m = m.AddDate(0, 1, 0) {
		o.load("rain season "+m.Format("2006-01"), func() (int, error) {
			return o.buckets.GetMonth(ctx, m, true, &st.Sensors[Year], nil)
		})
	}
}

// primeStorm replays the last week of archive records through the storm
// tracker.
func (o *Orchestrator) primeStorm(ctx context.Context, now time.Time) error {
	start := now.AddDate(0, 0, -7).Unix()
	var recs []types.ArchiveRecord
	for rec, err := range o.archive.Range(ctx, start, now.Unix()) {
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	for _, rec := range recs {
		o.storm.Update(rec.Time(), rec.Get(types.RainRate), rec.Get(types.Rain))
	}
	return nil
}
