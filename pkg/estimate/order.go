package estimate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SortedSample is the ascending copy of a MeasurementSet. Ties keep their
// acquisition order, and every position remembers which reading it came from.
type SortedSample struct {
	values []float64
	source []int // acquisition index of each sorted position
}

// Sort derives the SortedSample of an accepted MeasurementSet
func Sort(set MeasurementSet) SortedSample {
	n := set.Len()
	source := make([]int, n)
	for i := range source {
		source[i] = i
	}
	sort.SliceStable(source, func(a, b int) bool {
		return set.readings[source[a]] < set.readings[source[b]]
	})

	values := make([]float64, n)
	for pos, idx := range source {
		values[pos] = set.readings[idx]
	}

	return SortedSample{values: values, source: source}
}

// Len returns the sample size
func (s SortedSample) Len() int { return len(s.values) }

// At returns the value at zero-indexed sorted position pos
func (s SortedSample) At(pos int) float64 { return s.values[pos] }

// Source returns the acquisition index of the value at sorted position pos
func (s SortedSample) Source(pos int) int { return s.source[pos] }

// Values returns a copy of the sorted values
func (s SortedSample) Values() []float64 {
	return append([]float64(nil), s.values...)
}

// Min returns the smallest value
func (s SortedSample) Min() float64 { return s.values[0] }

// Max returns the largest value
func (s SortedSample) Max() float64 { return s.values[len(s.values)-1] }

// Sum returns the sum of all values
func (s SortedSample) Sum() float64 { return floats.Sum(s.values) }

// Quantile returns the p-quantile by linear interpolation between the closest
// ranks: h = (n-1)p, result = x[floor(h)] + (h-floor(h))(x[ceil(h)]-x[floor(h)]).
// It panics on an empty sample or p outside [0, 1].
func (s SortedSample) Quantile(p float64) float64 {
	if len(s.values) == 0 {
		panic("estimate: quantile of empty sample")
	}
	if p < 0 || p > 1 || math.IsNaN(p) {
		panic(fmt.Sprintf("estimate: quantile probability %v outside [0, 1]", p))
	}

	h := float64(len(s.values)-1) * p
	lo := math.Floor(h)
	hi := math.Ceil(h)
	frac := h - lo

	xlo := s.values[int(lo)]
	if frac == 0 {
		return xlo
	}
	xhi := s.values[int(hi)]

	d := xhi - xlo
	if math.IsInf(d, 0) {
		// the gap overflows; interpolate as a weighted sum of the endpoints
		return (1-frac)*xlo + frac*xhi
	}
	return xlo + frac*d
}

// QuantileSet holds the quartiles of a SortedSample. Q1 <= Median <= Q3.
// LowConfidence marks samples too small for the quartiles to mean much.
type QuantileSet struct {
	Q1            float64 `json:"q1"`
	Median        float64 `json:"median"`
	Q3            float64 `json:"q3"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// quartileConfidenceFloor is the sample size below which quartiles are flagged
const quartileConfidenceFloor = 4

// Quantiles computes the quartiles of the sample
func (s SortedSample) Quantiles() QuantileSet {
	return QuantileSet{
		Q1:            s.Quantile(0.25),
		Median:        s.Quantile(0.5),
		Q3:            s.Quantile(0.75),
		LowConfidence: s.Len() < quartileConfidenceFloor,
	}
}
