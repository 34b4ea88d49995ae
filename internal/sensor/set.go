package sensor

import (
	"github.com/chrissnell/wxrollup/internal/types"
)

// Set holds one accumulator per sensor type for a single timeframe.
type Set [TypeCount]Accumulator

// NewSet returns a set of empty accumulators.
func NewSet() Set {
	var s Set
	s.Reset()
	return s
}

// Get returns the accumulator for t.
func (s *Set) Get(t Type) *Accumulator {
	return &s[t]
}

// Reset clears every accumulator.
func (s *Set) Reset() {
	for i := range s {
		s[i].Reset()
	}
}

// ResetWhere clears the accumulators whose descriptor matches.
func (s *Set) ResetWhere(match func(Descriptor) bool) {
	for i := range s {
		if match(Descriptors[i]) {
			s[i].Reset()
		}
	}
}

// Fold applies one reading set to every sensor.
func (s *Set) Fold(values *[types.ChannelCount]float64, at int64) {
	for i := range s {
		Descriptors[i].Fold(&s[i], values, at)
	}
}

// PropagateInto merges every accumulator into parent.
func (s *Set) PropagateInto(parent *Set) {
	for i := range s {
		s[i].PropagateInto(&parent[i])
	}
}

// PropagateWhere merges the accumulators whose descriptor matches.
func (s *Set) PropagateWhere(parent *Set, match func(Descriptor) bool) {
	for i := range s {
		if match(Descriptors[i]) {
			s[i].PropagateInto(&parent[i])
		}
	}
}

// Samples returns the total number of samples across every sensor.
func (s *Set) Samples() int {
	total := 0
	for i := range s {
		total += s[i].Samples
	}
	return total
}

// IsRainSeason matches the sensors whose year scope follows the rain season.
func IsRainSeason(d Descriptor) bool {
	return d.RainSeason()
}

// IsCalendarYear matches the sensors whose year scope is the calendar year.
func IsCalendarYear(d Descriptor) bool {
	return !d.RainSeason()
}

// IsCumulative matches the running-total sensors that carry over between
// archive intervals.
func IsCumulative(d Descriptor) bool {
	return d.Kind == Cumulative
}
