package estimate

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Consistency grades how repeatable a set of readings is, judged by their
// spread. It says nothing about the pressure itself.
type Consistency string

const (
	ConsistencyExcellent Consistency = "excellent"
	ConsistencyGood      Consistency = "good"
	ConsistencyFair      Consistency = "fair"
	ConsistencyHigh      Consistency = "high_variability"
)

// Variability thresholds in mmHg, upper bounds inclusive
const (
	excellentVariability = 2.0
	goodVariability      = 4.0
	fairVariability      = 6.0
)

// Dispersion describes the spread of a sample. Variability and StdDev are
// nil when they cannot be represented as a float64.
type Dispersion struct {
	Min         float64     `json:"min"`
	Max         float64     `json:"max"`
	Variability *float64    `json:"variability,omitempty"`
	StdDev      *float64    `json:"std_dev,omitempty"` // sample (n-1) standard deviation, nil when n < 2
	Consistency Consistency `json:"consistency"`
}

// GradeConsistency maps a max-min spread onto a Consistency grade
func GradeConsistency(variability float64) Consistency {
	switch {
	case variability <= excellentVariability:
		return ConsistencyExcellent
	case variability <= goodVariability:
		return ConsistencyGood
	case variability <= fairVariability:
		return ConsistencyFair
	default:
		return ConsistencyHigh
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Describe computes the Dispersion of a sorted sample. A spread too wide to
// represent is graded high variability.
func Describe(s SortedSample) Dispersion {
	d := Dispersion{
		Min: s.Min(),
		Max: s.Max(),
	}

	variability := s.Max() - s.Min()
	d.Consistency = GradeConsistency(variability)
	if finite(variability) {
		d.Variability = &variability
	}

	if s.Len() >= 2 {
		if sd, ok := stdDev(s.values); ok {
			d.StdDev = &sd
		}
	}

	return d
}

// stdDev is stat.StdDev, retried on values scaled by the largest magnitude
// when the squares overflow.
func stdDev(x []float64) (float64, bool) {
	sd := stat.StdDev(x, nil)
	if finite(sd) {
		return sd, true
	}

	scale := math.Max(math.Abs(x[0]), math.Abs(x[len(x)-1]))
	scaled := make([]float64, len(x))
	copy(scaled, x)
	floats.Scale(1/scale, scaled)

	sd = stat.StdDev(scaled, nil) * scale
	return sd, finite(sd)
}
