// Package rollup turns the sample stream and the archive into the live
// interval/hour/day/week/month/year/all-time statistics.
package rollup

import (
	"github.com/chrissnell/wxrollup/internal/sensor"
)

// Timeframe indexes the accumulator sets kept in State.
type Timeframe int

const (
	Interval Timeframe = iota
	Hour
	Day
	Week
	Month
	Year
	AllTime

	TimeframeCount
)

var timeframeNames = [TimeframeCount]string{"interval", "hour", "day", "week", "month", "year", "all"}

func (tf Timeframe) String() string {
	if tf < 0 || tf >= TimeframeCount {
		return "unknown"
	}
	return timeframeNames[tf]
}

// State is the complete in-memory rollup. It is owned by one Orchestrator
// and never shared between goroutines.
type State struct {
	Sensors [TimeframeCount]sensor.Set
	Wind    [TimeframeCount]sensor.WindDirection

	// Boundary markers: local hour start and day start (epoch seconds),
	// month as year*12+month-1, and calendar year.
	CurrentHour  int64
	CurrentDay   int64
	CurrentMonth int
	CurrentYear  int

	// Carry holds the cumulative amounts seeded into the next interval.
	Carry [sensor.TypeCount]float64
}

// NewState returns an empty rollup state.
func NewState() *State {
	st := &State{}
	st.Reset()
	return st
}

// Reset clears every timeframe and marker.
func (st *State) Reset() {
	for tf := range st.Sensors {
		st.Sensors[tf].Reset()
		st.Wind[tf].Reset()
	}
	st.CurrentHour, st.CurrentDay = 0, 0
	st.CurrentMonth, st.CurrentYear = 0, 0
	st.Carry = [sensor.TypeCount]float64{}
}

// clear resets one timeframe.
func (st *State) clear(tf Timeframe) {
	st.Sensors[tf].Reset()
	st.Wind[tf].Reset()
}

// clearInterval starts a new archive interval seeded with carry.
func (st *State) clearInterval(carry [sensor.TypeCount]float64) {
	st.clear(Interval)
	for i, d := range sensor.Descriptors {
		if sensor.IsCumulative(d) && carry[i] > 0 {
			st.Sensors[Interval][i].AddCumulative(carry[i])
		}
	}
	st.Carry = carry
}

// propagateInterval merges the interval snapshot into every higher timeframe.
// Each level receives the same snapshot; levels do not feed each other.
func (st *State) propagateInterval() {
	interval := &st.Sensors[Interval]
	wind := &st.Wind[Interval]
	for tf := Hour; tf < TimeframeCount; tf++ {
		interval.PropagateInto(&st.Sensors[tf])
		wind.PropagateInto(&st.Wind[tf])
	}
}
