package rollup

import (
	"context"
	"time"

	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/types"
)

// Delta holds the change in the trend channels against an earlier record.
type Delta struct {
	OutTemp     float64
	WindSpeed   float64
	WindDir     float64
	OutHumidity float64
	Dewpoint    float64
	Barometer   float64
}

// Changes holds the deltas against one hour, one day and one week ago.
type Changes struct {
	Hour Delta
	Day  Delta
	Week Delta
}

// ComputeChanges compares the current conditions with the archive records
// nearest to an hour, a day and a week before now. A missing comparison
// record yields a zero delta.
func (o *Orchestrator) ComputeChanges(ctx context.Context, now time.Time) Changes {
	current, ok := o.currentValues()
	if !ok {
		return Changes{}
	}

	return Changes{
		Hour: o.deltaSince(ctx, current, now.Add(-time.Hour)),
		Day:  o.deltaSince(ctx, current, now.AddDate(0, 0, -1)),
		Week: o.deltaSince(ctx, current, now.AddDate(0, 0, -7)),
	}
}

func (o *Orchestrator) currentValues() (*[types.ChannelCount]float64, bool) {
	if o.haveSample {
		return &o.last.Values, true
	}
	if o.lastRecord != nil {
		return &o.lastRecord.Values, true
	}
	return nil, false
}

func (o *Orchestrator) deltaSince(ctx context.Context, current *[types.ChannelCount]float64, then time.Time) Delta {
	if o.archive == nil {
		return Delta{}
	}

	past, err := o.archive.Nearest(ctx, then.Unix(), int64(o.cfg.IntervalMinutes)*60)
	if err != nil {
		if !wxerrors.IsNotFound(err) {
			o.logger.Warnf("looking up archive record near %v: %v", then, err)
		}
		return Delta{}
	}
	return computeDelta(current, &past.Values)
}

func computeDelta(cur, past *[types.ChannelCount]float64) Delta {
	diff := func(a, b float64) float64 {
		if !types.Valid(a) || !types.Valid(b) {
			return 0
		}
		return a - b
	}

	d := Delta{
		OutTemp:     diff(cur[types.OutTemp], past[types.OutTemp]),
		WindSpeed:   diff(cur[types.WindSpeed], past[types.WindSpeed]),
		OutHumidity: diff(cur[types.OutHumidity], past[types.OutHumidity]),
		Barometer:   diff(cur[types.Barometer], past[types.Barometer]),
		WindDir:     diff(cur[types.WindDir], past[types.WindDir]),
		Dewpoint: diff(
			types.CalculateDewpoint(cur[types.OutTemp], cur[types.OutHumidity]),
			types.CalculateDewpoint(past[types.OutTemp], past[types.OutHumidity]),
		),
	}
	return d
}
