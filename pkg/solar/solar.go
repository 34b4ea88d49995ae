// Package solar estimates clear-sky irradiance for simulated stations.
package solar

import (
	"math"
	"time"
)

// solar constant, W/m²
const solarConstant = 1361.0

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// equationOfTime returns apparent minus mean solar time, in minutes.
func equationOfTime(t time.Time) float64 {
	jd := 2440587.5 + float64(t.Unix())/86400
	c := (jd - 2451545.0) / 36525 // Julian centuries since J2000.0

	l0 := math.Mod(280.46646+c*(36000.76983+c*0.0003032)+360, 360)
	m := math.Mod(357.52911+c*(35999.05029-c*0.0001537)+360, 360)
	e := 0.016708634 - c*(0.000042037+c*0.0000001267)
	eps := 23 + (26+(21.448-c*(46.815+c*(0.00059-c*0.001813)))/60)/60

	y := math.Pow(math.Tan(rad(eps)/2), 2)
	return 4 * (y*math.Sin(2*rad(l0)) -
		2*e*math.Sin(rad(m)) +
		4*e*y*math.Sin(rad(m))*math.Cos(2*rad(l0)) -
		0.5*y*y*math.Sin(4*rad(l0)) -
		1.25*e*e*math.Sin(2*rad(m))) * 180 / math.Pi
}

// Zenith returns the solar zenith angle in degrees at t for the given
// position.
func Zenith(t time.Time, latitude, longitude float64) float64 {
	t = t.UTC()
	n := float64(t.YearDay())
	decl := 23.45 * math.Sin(rad(360.0/365.0*(n-81)))

	minutes := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60
	trueSolar := minutes + 4*longitude + equationOfTime(t)
	hourAngle := trueSolar/4 - 180

	cosZ := math.Sin(rad(latitude))*math.Sin(rad(decl)) +
		math.Cos(rad(latitude))*math.Cos(rad(decl))*math.Cos(rad(hourAngle))
	return math.Acos(math.Max(-1, math.Min(1, cosZ))) * 180 / math.Pi
}

// ClearSkyGHI returns global horizontal irradiance in W/m² under a clear sky
// (Ineichen-Perez, Linke turbidity 2). altitude is in meters.
func ClearSkyGHI(t time.Time, latitude, longitude, altitude float64) float64 {
	z := Zenith(t, latitude, longitude)
	if z >= 90 {
		return 0
	}
	n := float64(t.UTC().YearDay())
	g0 := solarConstant * (1 + 0.033*math.Cos(rad(360*(n-3)/365)))

	const turbidity = 2.0
	airMass := 1 / (math.Cos(rad(z)) + 0.50572*math.Pow(96.07995-z, -1.6364))
	dni := g0 * 0.7 * math.Exp(-0.027*airMass*turbidity*math.Exp(-altitude/8000))
	diffuse := (0.1 + 0.05*math.Sin(math.Pi*(n-100)/365)) * g0 * math.Sin(rad(z))
	return dni*math.Cos(rad(z)) + diffuse
}
