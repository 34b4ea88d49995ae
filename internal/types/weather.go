package types

import (
	"time"
)

// NullValue marks a missing reading. Every physically valid reading for every
// channel compares greater than it.
const NullValue = -100000.0

// Unit system flags stored with each archive record
const (
	UnitsMetric   = 0
	UnitsImperial = 1
)

// Valid reports whether v holds a reading.
func Valid(v float64) bool {
	return v > NullValue
}

// ArchiveRecord is a finalized, fixed-interval reading set. Values are always
// stored in the station's native (imperial) units.
type ArchiveRecord struct {
	DateTime int64 // epoch seconds, minute-granular
	Interval int   // minutes
	USUnits  int
	Values   [ChannelCount]float64
}

// NewArchiveRecord returns a record at t with every channel missing.
func NewArchiveRecord(t time.Time, intervalMinutes int) ArchiveRecord {
	rec := ArchiveRecord{
		DateTime: t.Truncate(time.Minute).Unix(),
		Interval: intervalMinutes,
		USUnits:  UnitsImperial,
	}
	for i := range rec.Values {
		rec.Values[i] = NullValue
	}
	return rec
}

// Time returns the record timestamp.
func (r ArchiveRecord) Time() time.Time {
	return time.Unix(r.DateTime, 0)
}

// IntervalStart returns the start of the interval the record covers, which is
// the instant its values are filed under.
func (r ArchiveRecord) IntervalStart() int64 {
	return r.DateTime - int64(r.Interval)*60
}

// Get returns the value for channel c.
func (r ArchiveRecord) Get(c Channel) float64 {
	return r.Values[c]
}

// Sample is a single LOOP reading delivered by a station. Rain, ET and Hail
// hold the amount accumulated since the previous sample.
type Sample struct {
	Timestamp time.Time
	Values    [ChannelCount]float64
}

// NewSample returns a sample at t with every channel missing.
func NewSample(t time.Time) Sample {
	s := Sample{Timestamp: t}
	for i := range s.Values {
		s.Values[i] = NullValue
	}
	return s
}

// Get returns the value for channel c.
func (s Sample) Get(c Channel) float64 {
	return s.Values[c]
}

// Set stores v for channel c.
func (s *Sample) Set(c Channel, v float64) {
	s.Values[c] = v
}
