package rollup

import (
	"math"

	"github.com/chrissnell/wxrollup/internal/types"
)

// Calibration is a linear correction applied to a raw reading.
type Calibration struct {
	Multiplier float64
	Offset     float64
}

func (c Calibration) apply(v float64) float64 {
	m := c.Multiplier
	if m == 0 {
		m = 1
	}
	return v*m + c.Offset
}

// calibrate corrects every valid channel in place, then recomputes the
// values derived from the corrected readings.
func calibrate(values *[types.ChannelCount]float64, cal map[types.Channel]Calibration) {
	for ch, c := range cal {
		if ch < 0 || ch >= types.ChannelCount || !types.Valid(values[ch]) {
			continue
		}
		values[ch] = c.apply(values[ch])
	}

	if types.Valid(values[types.WindDir]) {
		d := math.Mod(values[types.WindDir], 360)
		if d < 0 {
			d += 360
		}
		values[types.WindDir] = d
	}
	for _, ch := range []types.Channel{types.OutHumidity, types.InHumidity} {
		if values[ch] > 100 {
			values[ch] = 100
		}
	}

	deriveValues(values)
}

// deriveValues recomputes dewpoint, wind chill and heat index.
func deriveValues(values *[types.ChannelCount]float64) {
	temp := values[types.OutTemp]
	humidity := values[types.OutHumidity]
	values[types.Dewpoint] = types.CalculateDewpoint(temp, humidity)
	values[types.WindChill] = types.CalculateWindChill(temp, values[types.WindSpeed])
	values[types.HeatIndex] = types.CalculateHeatIndex(temp, humidity)
}

// derivePressures fills whichever of barometer and station pressure the
// station did not report from the other, then the altimeter setting.
func derivePressures(values *[types.ChannelCount]float64, elevationFt float64) {
	switch {
	case !types.Valid(values[types.Pressure]):
		values[types.Pressure] = types.StationPressureFromSeaLevel(values[types.Barometer], values[types.OutTemp], elevationFt)
	case !types.Valid(values[types.Barometer]):
		values[types.Barometer] = types.SeaLevelPressureFromStation(values[types.Pressure], values[types.OutTemp], elevationFt)
	}
	if !types.Valid(values[types.Altimeter]) {
		values[types.Altimeter] = types.AltimeterFromStation(values[types.Pressure], elevationFt)
	}
}
