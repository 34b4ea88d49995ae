package sensor

import (
	"math"

	"github.com/chrissnell/wxrollup/internal/types"
	"gonum.org/v1/gonum/floats"
)

// WindBins is the number of 22.5 degree compass bins.
const WindBins = 16

// WindBinWidth is the width of one compass bin in degrees.
const WindBinWidth = 360.0 / WindBins

// WindDirection is a circular histogram of wind direction. It is merged bin
// by bin; angles are never averaged.
type WindDirection struct {
	Bins [WindBins]int
}

// WindBin returns the compass bin whose center is nearest to deg.
func WindBin(deg float64) int {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return int(math.Floor((deg+WindBinWidth/2)/WindBinWidth)) % WindBins
}

// AddValue counts one direction reading. Missing readings are ignored.
func (w *WindDirection) AddValue(deg float64) {
	if !types.Valid(deg) {
		return
	}
	w.Bins[WindBin(deg)]++
}

// AddBins merges a persisted histogram.
func (w *WindDirection) AddBins(bins [WindBins]int) {
	for i := range w.Bins {
		w.Bins[i] += bins[i]
	}
}

// PropagateInto merges w into parent.
func (w *WindDirection) PropagateInto(parent *WindDirection) {
	parent.AddBins(w.Bins)
}

// Compute returns the center of the most populated bin, ties going to the
// lowest bin index. It returns false for an empty histogram.
func (w *WindDirection) Compute() (float64, bool) {
	if w.Total() == 0 {
		return 0, false
	}

	counts := make([]float64, WindBins)
	for i, c := range w.Bins {
		counts[i] = float64(c)
	}
	return float64(floats.MaxIdx(counts)) * WindBinWidth, true
}

// ComputeOrNull returns the dominant direction, or NullValue when empty.
func (w *WindDirection) ComputeOrNull() float64 {
	deg, ok := w.Compute()
	if !ok {
		return types.NullValue
	}
	return deg
}

// Total returns the number of readings counted.
func (w *WindDirection) Total() int {
	total := 0
	for _, c := range w.Bins {
		total += c
	}
	return total
}

// Reset zeroes every bin.
func (w *WindDirection) Reset() {
	w.Bins = [WindBins]int{}
}
