package sensor

import (
	"github.com/chrissnell/wxrollup/internal/types"
)

// Type identifies one of the logical sensors tracked at every timeframe.
type Type int

const (
	InTemp Type = iota
	OutTemp
	InHumidity
	OutHumidity
	BaromPressure
	WindSpeed
	WindGust
	DewPoint
	Rain
	RainRate
	WindChill
	HeatIndex
	ET
	UV
	SolarRadiation
	Hail
	HailRate

	// TypeCount is the number of sensor types.
	TypeCount
)

// Kind says which statistics of a sensor are meaningful.
type Kind int

const (
	// Extremal sensors are tracked for high, low and average.
	Extremal Kind = iota
	// Cumulative sensors are running totals (rain, ET, hail).
	Cumulative
	// Both covers rates whose high matters and whose season follows the
	// cumulative sensors (rain rate, hail rate).
	Both
)

// Reduction selects the statistic written into a finalized archive record.
type Reduction int

const (
	ReduceAverage Reduction = iota
	ReduceHigh
	ReduceCumulative
)

// Descriptor describes how a sensor is fed and reduced.
type Descriptor struct {
	Type    Type
	Table   string
	Channel types.Channel
	// When is the auxiliary channel stored alongside a new high, if HasWhen.
	When    types.Channel
	HasWhen bool
	Kind    Kind
	Reduce  Reduction
	accept  func(float64) bool
}

// RainSeason reports whether the sensor's year scope follows the rain season
// instead of the calendar year.
func (d Descriptor) RainSeason() bool {
	return d.Kind != Extremal
}

// Accepts reports whether v is folded for this sensor.
func (d Descriptor) Accepts(v float64) bool {
	if !types.Valid(v) {
		return false
	}
	if d.accept == nil {
		return true
	}
	return d.accept(v)
}

// Fold applies the sensor's reading from values to acc.
func (d Descriptor) Fold(acc *Accumulator, values *[types.ChannelCount]float64, at int64) {
	v := values[d.Channel]
	if !d.Accepts(v) {
		return
	}
	if d.HasWhen {
		acc.UpdateWhen(v, values[d.When], at)
		return
	}
	acc.Update(v, at)
}

func openRange(lo, hi float64) func(float64) bool {
	return func(v float64) bool { return v > lo && v < hi }
}

func closedRange(lo, hi float64) func(float64) bool {
	return func(v float64) bool { return v >= lo && v <= hi }
}

func halfOpenRange(lo, hi float64) func(float64) bool {
	return func(v float64) bool { return v >= lo && v < hi }
}

// Descriptors lists every sensor type in Type order.
var Descriptors = [TypeCount]Descriptor{
	{Type: InTemp, Table: "inTemp", Channel: types.InTemp, Kind: Extremal, Reduce: ReduceAverage, accept: openRange(-500, 500)},
	{Type: OutTemp, Table: "outTemp", Channel: types.OutTemp, Kind: Extremal, Reduce: ReduceAverage},
	{Type: InHumidity, Table: "inHumidity", Channel: types.InHumidity, Kind: Extremal, Reduce: ReduceAverage, accept: closedRange(0, 100)},
	{Type: OutHumidity, Table: "outHumidity", Channel: types.OutHumidity, Kind: Extremal, Reduce: ReduceAverage},
	{Type: BaromPressure, Table: "baromPressure", Channel: types.Barometer, Kind: Extremal, Reduce: ReduceAverage},
	{Type: WindSpeed, Table: "windSpeed", Channel: types.WindSpeed, Kind: Extremal, Reduce: ReduceAverage},
	{Type: WindGust, Table: "windGust", Channel: types.WindGust, When: types.WindGustDir, HasWhen: true, Kind: Extremal, Reduce: ReduceHigh},
	{Type: DewPoint, Table: "dewPoint", Channel: types.Dewpoint, Kind: Extremal, Reduce: ReduceAverage},
	{Type: Rain, Table: "rain", Channel: types.Rain, Kind: Cumulative, Reduce: ReduceCumulative},
	{Type: RainRate, Table: "rainRate", Channel: types.RainRate, Kind: Both, Reduce: ReduceHigh},
	{Type: WindChill, Table: "windChill", Channel: types.WindChill, Kind: Extremal, Reduce: ReduceAverage},
	{Type: HeatIndex, Table: "heatIndex", Channel: types.HeatIndex, Kind: Extremal, Reduce: ReduceAverage},
	{Type: ET, Table: "ET", Channel: types.ET, Kind: Cumulative, Reduce: ReduceCumulative, accept: halfOpenRange(0, 100)},
	{Type: UV, Table: "UV", Channel: types.UV, Kind: Extremal, Reduce: ReduceAverage, accept: halfOpenRange(0, 100)},
	{Type: SolarRadiation, Table: "solarRadiation", Channel: types.Radiation, Kind: Extremal, Reduce: ReduceAverage, accept: halfOpenRange(0, 10000)},
	{Type: Hail, Table: "hail", Channel: types.Hail, Kind: Cumulative, Reduce: ReduceCumulative, accept: halfOpenRange(0, 100)},
	{Type: HailRate, Table: "hailRate", Channel: types.HailRate, Kind: Both, Reduce: ReduceHigh, accept: halfOpenRange(0, 100)},
}

// Descriptor returns the descriptor for t.
func (t Type) Descriptor() Descriptor {
	return Descriptors[t]
}

// String returns the sensor's table name.
func (t Type) String() string {
	if t < 0 || t >= TypeCount {
		return "unknown"
	}
	return Descriptors[t].Table
}
