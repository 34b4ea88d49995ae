package rollup

import (
	"time"

	"github.com/chrissnell/wxrollup/internal/types"
)

// Storm tracks rain accumulated since the rain rate last crossed the storm
// trigger. A storm ends once no rain has fallen for the idle period.
type Storm struct {
	trigger float64
	idle    time.Duration

	active   bool
	start    time.Time
	rain     float64
	lastRain time.Time
}

// NewStorm returns a storm tracker. A zero trigger disables tracking; a
// zero idle period means 12 hours.
func NewStorm(trigger float64, idle time.Duration) *Storm {
	if idle <= 0 {
		idle = 12 * time.Hour
	}
	return &Storm{trigger: trigger, idle: idle}
}

// Update feeds one archive interval ending at at.
func (s *Storm) Update(at time.Time, rainRate, rain float64) {
	if s.trigger <= 0 {
		return
	}

	if !s.active && types.Valid(rainRate) && rainRate >= s.trigger {
		s.active = true
		s.start = at
		s.rain = 0
		s.lastRain = at
	}
	if !s.active {
		return
	}

	if types.Valid(rain) && rain > 0 {
		s.rain += rain
		s.lastRain = at
	}
	if at.Sub(s.lastRain) >= s.idle {
		s.active = false
		s.rain = 0
		s.start = time.Time{}
	}
}

// Rain returns the storm total, when the storm began and whether one is in
// progress.
func (s *Storm) Rain() (float64, time.Time, bool) {
	return s.rain, s.start, s.active
}

// Reset forgets any storm in progress.
func (s *Storm) Reset() {
	s.active = false
	s.rain = 0
	s.start = time.Time{}
	s.lastRain = time.Time{}
}
