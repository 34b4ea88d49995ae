package types

import (
	"math"
)

// finite rejects NaN and infinities produced by the derived-value formulas.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CalculateDewpoint returns the dewpoint in °F for a temperature in °F and
// relative humidity in percent.
func CalculateDewpoint(tempF, humidity float64) float64 {
	if !Valid(tempF) || !Valid(humidity) {
		return NullValue
	}

	tc := (5.0 / 9.0) * (tempF - 32.0)
	es := 6.11 * math.Pow(10.0, 7.5*(tc/(237.7+tc)))
	e := (humidity * es) / 100
	tdc := (-430.22 + 237.7*math.Log(e)) / (-math.Log(e) + 19.08)
	result := (9.0/5.0)*tdc + 32

	if !finite(result) {
		return NullValue
	}
	return result
}

// CalculateWindChill calculates wind chill temperature using the NWS formula.
// Returns the air temperature when wind chill doesn't apply.
func CalculateWindChill(tempF, windSpeedMph float64) float64 {
	if !Valid(tempF) || !Valid(windSpeedMph) {
		return NullValue
	}
	if tempF >= 50 || windSpeedMph <= 3 {
		return tempF
	}

	v := math.Pow(windSpeedMph, 0.16)
	result := 35.74 + 0.6215*tempF - 35.75*v + 0.4275*tempF*v
	if !finite(result) {
		return NullValue
	}
	return result
}

// CalculateHeatIndex calculates heat index using the NWS (Rothfusz) formula.
// Returns the air temperature below 75°F.
func CalculateHeatIndex(tempF, humidity float64) float64 {
	if !Valid(tempF) || !Valid(humidity) {
		return NullValue
	}
	if tempF < 75 {
		return tempF
	}

	const (
		c1 = -42.379
		c2 = 2.04901523
		c3 = 10.14333127
		c4 = -0.22475541
		c5 = -0.00683783
		c6 = -0.05481717
		c7 = 0.00122874
		c8 = 0.00085282
		c9 = -0.00000199
	)

	result := c1 + c2*tempF + c3*humidity + c4*tempF*humidity + c5*tempF*tempF +
		c6*humidity*humidity + c7*tempF*tempF*humidity + c8*tempF*humidity*humidity +
		c9*tempF*tempF*humidity*humidity
	if !finite(result) {
		return NullValue
	}
	return result
}

// pressureTerm is e^(-mgh/RT) for an elevation in feet and temperature in °F.
func pressureTerm(tempF, elevationFt float64) float64 {
	elevMeters := FeetToMeters(elevationFt)
	tempKelvin := FToC(tempF) + 273.15
	return math.Exp(-elevMeters / (tempKelvin * 29.263))
}

// StationPressureFromSeaLevel converts sea-level pressure to station pressure.
// Pressures are in inHg.
func StationPressureFromSeaLevel(slp, tempF, elevationFt float64) float64 {
	if !Valid(slp) || !Valid(tempF) {
		return NullValue
	}
	return slp * pressureTerm(tempF, elevationFt)
}

// SeaLevelPressureFromStation converts station pressure to sea-level pressure.
func SeaLevelPressureFromStation(sp, tempF, elevationFt float64) float64 {
	if !Valid(sp) || !Valid(tempF) {
		return NullValue
	}
	pt := pressureTerm(tempF, elevationFt)
	if pt == 0 {
		return 0
	}
	return sp / pt
}

// AltimeterFromStation computes the altimeter setting (inHg) from station
// pressure (inHg) and elevation (feet).
func AltimeterFromStation(sp, elevationFt float64) float64 {
	if !Valid(sp) {
		return NullValue
	}

	const magicExp = 0.190284
	elevMeters := FeetToMeters(elevationFt)
	stationMB := InHgToHPa(sp)

	constant := math.Pow(1013.25, magicExp) * 0.0065 / 288
	variable := elevMeters / math.Pow(stationMB-0.3, magicExp)
	term := math.Pow(1+constant*variable, 1/magicExp)

	return (stationMB - 0.3) * term * 0.0295299
}
