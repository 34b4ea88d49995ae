// Package sensor implements the running statistics kept per sensor and per
// timeframe, and the 16-bin wind direction histogram.
package sensor

import (
	"github.com/chrissnell/wxrollup/internal/types"
)

// Accumulator is a single sensor's running statistic over one window.
// With Samples == 0, Low, High and WhenHigh carry no data.
type Accumulator struct {
	Low        float64
	TimeLow    int64
	High       float64
	TimeHigh   int64
	WhenHigh   float64
	Cumulative float64
	Samples    int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() Accumulator {
	var a Accumulator
	a.Reset()
	return a
}

// Reset clears the accumulator.
func (a *Accumulator) Reset() {
	*a = Accumulator{
		Low:      types.NullValue,
		High:     types.NullValue,
		WhenHigh: types.NullValue,
	}
}

// Update folds one reading taken at time at. Missing readings are ignored.
func (a *Accumulator) Update(value float64, at int64) {
	a.update(value, types.NullValue, false, at)
}

// UpdateWhen folds one reading and records when alongside any new high,
// e.g. the wind direction at the moment of peak gust.
func (a *Accumulator) UpdateWhen(value, when float64, at int64) {
	a.update(value, when, true, at)
}

func (a *Accumulator) update(value, when float64, withWhen bool, at int64) {
	if !types.Valid(value) {
		return
	}

	a.Samples++
	a.Cumulative += value

	if a.Samples == 1 || value > a.High {
		a.High = value
		a.TimeHigh = at
		if withWhen {
			a.WhenHigh = when
		}
	}
	if a.Samples == 1 || value < a.Low {
		a.Low = value
		a.TimeLow = at
	}
}

// UpdateHighValue raises the high to value if it is higher, without counting
// a sample.
func (a *Accumulator) UpdateHighValue(value float64, at int64) {
	if !types.Valid(value) {
		return
	}
	if !types.Valid(a.High) || value > a.High {
		a.High = value
		a.TimeHigh = at
	}
}

// UpdateHighValueWhen is UpdateHighValue that also replaces WhenHigh when the
// high moves.
func (a *Accumulator) UpdateHighValueWhen(value, when float64, at int64) {
	if !types.Valid(value) {
		return
	}
	if !types.Valid(a.High) || value > a.High {
		a.High = value
		a.TimeHigh = at
		a.WhenHigh = when
	}
}

// UpdateLowValue lowers the low to value if it is lower, without counting a
// sample.
func (a *Accumulator) UpdateLowValue(value float64, at int64) {
	if !types.Valid(value) {
		return
	}
	if !types.Valid(a.Low) || value < a.Low {
		a.Low = value
		a.TimeLow = at
	}
}

// UpdateCumulative overwrites the running total.
func (a *Accumulator) UpdateCumulative(value float64) {
	if !types.Valid(value) {
		return
	}
	a.Cumulative = value
}

// AddCumulative adds to the running total without counting a sample.
func (a *Accumulator) AddCumulative(value float64) {
	if !types.Valid(value) {
		return
	}
	a.Cumulative += value
}

// PropagateInto merges a into parent. The merge is commutative and
// associative over high, low, cumulative and samples.
func (a *Accumulator) PropagateInto(parent *Accumulator) {
	if a.hasData() {
		if !parent.hasData() || a.High > parent.High {
			parent.High = a.High
			parent.TimeHigh = a.TimeHigh
			parent.WhenHigh = a.WhenHigh
		}
		if !parent.hasData() || a.Low < parent.Low {
			parent.Low = a.Low
			parent.TimeLow = a.TimeLow
		}
	}

	parent.Cumulative += a.Cumulative
	parent.Samples += a.Samples
}

func (a *Accumulator) hasData() bool {
	return a.Samples > 0
}

// Average returns the mean of all folded readings.
func (a *Accumulator) Average() (float64, bool) {
	if a.Samples == 0 {
		return 0, false
	}
	return a.Cumulative / float64(a.Samples), true
}

// AverageOrNull returns the mean, or NullValue for an empty accumulator.
func (a *Accumulator) AverageOrNull() float64 {
	avg, ok := a.Average()
	if !ok {
		return types.NullValue
	}
	return avg
}

// HighOrNull returns the high, or NullValue for an empty accumulator.
func (a *Accumulator) HighOrNull() float64 {
	if !a.hasData() {
		return types.NullValue
	}
	return a.High
}
