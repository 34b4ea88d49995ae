package types

// Channel identifies one of the fixed archive record columns.
type Channel int

const (
	Barometer Channel = iota
	Pressure
	Altimeter
	InTemp
	OutTemp
	InHumidity
	OutHumidity
	WindSpeed
	WindDir
	WindGust
	WindGustDir
	RainRate
	Rain
	Dewpoint
	WindChill
	HeatIndex
	RxCheckPercent
	ET
	Radiation
	UV
	ExtraTemp1
	ExtraTemp2
	ExtraTemp3
	SoilTemp1
	SoilTemp2
	SoilTemp3
	SoilTemp4
	LeafTemp1
	LeafTemp2
	ExtraHumid1
	ExtraHumid2
	SoilMoist1
	SoilMoist2
	SoilMoist3
	SoilMoist4
	LeafWet1
	LeafWet2
	TxBatteryStatus
	ConsBatteryVoltage
	Hail
	HailRate
	HeatingTemp
	HeatingVoltage
	SupplyVoltage
	ReferenceVoltage
	WindBatteryStatus
	RainBatteryStatus
	OutTempBatteryStatus
	InTempBatteryStatus

	// ChannelCount is the number of archive channels.
	ChannelCount
)

// channelNames are the archive column names, in Channel order.
var channelNames = [ChannelCount]string{
	"barometer",
	"pressure",
	"altimeter",
	"inTemp",
	"outTemp",
	"inHumidity",
	"outHumidity",
	"windSpeed",
	"windDir",
	"windGust",
	"windGustDir",
	"rainRate",
	"rain",
	"dewpoint",
	"windchill",
	"heatindex",
	"rxCheckPercent",
	"ET",
	"radiation",
	"UV",
	"extraTemp1",
	"extraTemp2",
	"extraTemp3",
	"soilTemp1",
	"soilTemp2",
	"soilTemp3",
	"soilTemp4",
	"leafTemp1",
	"leafTemp2",
	"extraHumid1",
	"extraHumid2",
	"soilMoist1",
	"soilMoist2",
	"soilMoist3",
	"soilMoist4",
	"leafWet1",
	"leafWet2",
	"txBatteryStatus",
	"consBatteryVoltage",
	"hail",
	"hailrate",
	"heatingTemp",
	"heatingVoltage",
	"supplyVoltage",
	"referenceVoltage",
	"windBatteryStatus",
	"rainBatteryStatus",
	"outTempBatteryStatus",
	"inTempBatteryStatus",
}

// String returns the archive column name for the channel.
func (c Channel) String() string {
	if c < 0 || c >= ChannelCount {
		return "unknown"
	}
	return channelNames[c]
}

// Channels returns every channel in column order.
func Channels() []Channel {
	chans := make([]Channel, ChannelCount)
	for i := range chans {
		chans[i] = Channel(i)
	}
	return chans
}

// ChannelByName looks a channel up by its archive column name.
func ChannelByName(name string) (Channel, bool) {
	for i, n := range channelNames {
		if n == name {
			return Channel(i), true
		}
	}
	return 0, false
}
