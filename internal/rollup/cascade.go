package rollup

import (
	"context"
	"time"

	"github.com/chrissnell/wxrollup/internal/hilow"
	"github.com/chrissnell/wxrollup/internal/sensor"
	"github.com/chrissnell/wxrollup/internal/types"
)

// marks identifies the hour, day, month and year an instant falls in.
type marks struct {
	hour  int64
	day   int64
	month int
	year  int
}

func marksFor(t time.Time, loc *time.Location) marks {
	t = t.In(loc)
	return marks{
		hour:  hilow.HourStart(t).Unix(),
		day:   hilow.DayStart(t, loc).Unix(),
		month: t.Year()*12 + int(t.Month()) - 1,
		year:  t.Year(),
	}
}

func (st *State) setMarks(m marks) {
	st.CurrentHour = m.hour
	st.CurrentDay = m.day
	st.CurrentMonth = m.month
	st.CurrentYear = m.year
}

// cascade clears the timeframes whose boundary the record crossed, then adds
// the interval to every timeframe above it. Boundaries are evaluated at the
// start of the record's interval in local time.
func (o *Orchestrator) cascade(ctx context.Context, rec types.ArchiveRecord) {
	st := o.state
	t := time.Unix(rec.IntervalStart(), 0).In(o.cfg.Location)
	m := marksFor(t, o.cfg.Location)

	if m.hour != st.CurrentHour {
		st.clear(Hour)

		if m.day != st.CurrentDay {
			o.recomputeWeek(ctx, time.Unix(m.day, 0).In(o.cfg.Location))
			st.clear(Day)

			if m.month != st.CurrentMonth {
				st.clear(Month)

				if m.year != st.CurrentYear {
					st.Sensors[Year].ResetWhere(sensor.IsCalendarYear)
					st.Wind[Year].Reset()
				}
				if t.Month() == o.cfg.RainSeasonStart {
					st.Sensors[Year].ResetWhere(sensor.IsRainSeason)
				}
			}
		}
	}

	st.setMarks(m)
	st.propagateInterval()
}

// recomputeWeek rebuilds the week from the seven full days before dayStart.
func (o *Orchestrator) recomputeWeek(ctx context.Context, dayStart time.Time) {
	o.state.clear(Week)
	if o.buckets == nil {
		return
	}
	start := dayStart.AddDate(0, 0, -7)
	if _, err := o.buckets.GetRange(ctx, start, dayStart, &o.state.Sensors[Week], &o.state.Wind[Week]); err != nil {
		o.logger.Errorf("rebuilding week from HILOW: %v", err)
	}
}

// rainSeasonYear returns the year in which the rain season containing t
// began.
func rainSeasonYear(t time.Time, start time.Month) int {
	if t.Month() >= start {
		return t.Year()
	}
	return t.Year() - 1
}
