package types

// UnitSystem selects how native imperial values are presented.
type UnitSystem string

const (
	Imperial UnitSystem = "imperial"
	Metric   UnitSystem = "metric"
)

// Conversion maps a native imperial value to its metric equivalent.
type Conversion func(float64) float64

func identity(v float64) float64 { return v }

// InHgToHPa converts inches of mercury to hectopascals.
func InHgToHPa(v float64) float64 { return v * 33.8639 }

// FToC converts Fahrenheit to Celsius.
func FToC(v float64) float64 { return (v - 32.0) * 5.0 / 9.0 }

// MPHToKPH converts miles per hour to kilometres per hour.
func MPHToKPH(v float64) float64 { return v * 1.609344 }

// InchesToMM converts inches to millimetres.
func InchesToMM(v float64) float64 { return v * 25.4 }

// FeetToMeters converts feet to metres.
func FeetToMeters(v float64) float64 { return v * 0.3048 }

var metricConversions = func() [ChannelCount]Conversion {
	var table [ChannelCount]Conversion
	for i := range table {
		table[i] = identity
	}
	for _, c := range []Channel{Barometer, Pressure, Altimeter} {
		table[c] = InHgToHPa
	}
	for _, c := range []Channel{
		InTemp, OutTemp, Dewpoint, WindChill, HeatIndex,
		ExtraTemp1, ExtraTemp2, ExtraTemp3,
		SoilTemp1, SoilTemp2, SoilTemp3, SoilTemp4,
		LeafTemp1, LeafTemp2, HeatingTemp,
	} {
		table[c] = FToC
	}
	for _, c := range []Channel{WindSpeed, WindGust} {
		table[c] = MPHToKPH
	}
	for _, c := range []Channel{RainRate, Rain, ET, Hail, HailRate} {
		table[c] = InchesToMM
	}
	return table
}()

// ConversionFor returns the conversion from native units to the given unit
// system for channel c.
func ConversionFor(c Channel, system UnitSystem) Conversion {
	if system != Metric || c < 0 || c >= ChannelCount {
		return identity
	}
	return metricConversions[c]
}

// ConvertForDisplay converts a native value for presentation. Missing
// readings stay missing.
func ConvertForDisplay(c Channel, v float64, system UnitSystem) float64 {
	if !Valid(v) {
		return v
	}
	return ConversionFor(c, system)(v)
}
