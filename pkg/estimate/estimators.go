package estimate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Method names an estimator. The names double as keys in a Report.
type Method string

const (
	MethodMean             Method = "mean"
	MethodPossibleMedian   Method = "possible_median"
	MethodClinicalMidpoint Method = "clinical_midpoint"
	MethodSafeTrimmedMean  Method = "safe_trimmed_mean"
	MethodTrimean          Method = "trimean"
	MethodIQM              Method = "iqm"
	MethodWinsorizedMean   Method = "winsorized_mean"
	MethodWeightedMean     Method = "weighted_mean"
)

// Reasons a method can be unavailable in a Report
const (
	ReasonInsufficientSamples = "insufficient_samples"
	ReasonNonFiniteResult     = "non_finite_result"
)

// Result is the output of one estimator. Excluded and ExcludedIndices list
// the readings an estimator left out; AdjustedIndices the readings it
// replaced. Indices refer to acquisition order.
type Result struct {
	Value           float64   `json:"value"`
	Excluded        []float64 `json:"excluded,omitempty"`
	ExcludedIndices []int     `json:"excluded_indices,omitempty"`
	AdjustedIndices []int     `json:"adjusted_indices,omitempty"`
}

// InsufficientSamples means a method's minimum sample size was not met.
// It only ever marks that one method unavailable.
type InsufficientSamples struct {
	Method   Method `json:"method"`
	Reason   string `json:"reason"`
	Required int    `json:"required"`
	Actual   int    `json:"actual"`
}

func (e *InsufficientSamples) Error() string {
	return fmt.Sprintf("%s needs at least %d readings, got %d", e.Method, e.Required, e.Actual)
}

// NonFiniteResult means a method overflowed on extreme but finite readings.
// Like InsufficientSamples it only marks that one method unavailable.
type NonFiniteResult struct {
	Method Method
	Actual int
}

func (e *NonFiniteResult) Error() string {
	return fmt.Sprintf("%s is not finite for these %d readings", e.Method, e.Actual)
}

// Estimator is a registry entry: a pure function of the sorted sample and its
// quartiles, guarded by a minimum sample size.
type Estimator struct {
	Method     Method `json:"name"`
	Title      string `json:"title"`
	Formula    string `json:"formula"`
	MinSamples int    `json:"min_n"`

	compute func(s SortedSample, q QuantileSet) Result
}

// Apply runs the estimator. It returns *InsufficientSamples when the sample
// is too small and *NonFiniteResult when the value cannot be represented. It
// never approximates.
func (e Estimator) Apply(s SortedSample, q QuantileSet) (Result, error) {
	if s.Len() < e.MinSamples {
		return Result{}, &InsufficientSamples{
			Method:   e.Method,
			Reason:   ReasonInsufficientSamples,
			Required: e.MinSamples,
			Actual:   s.Len(),
		}
	}

	res := e.compute(s, q)
	if math.IsNaN(res.Value) || math.IsInf(res.Value, 0) {
		return Result{}, &NonFiniteResult{Method: e.Method, Actual: s.Len()}
	}
	return res, nil
}

var registry = []Estimator{
	{
		Method:     MethodMean,
		Title:      "Mean IOP",
		Formula:    "(1/n) Σ x_i",
		MinSamples: 1,
		compute:    arithmeticMean,
	},
	{
		Method:     MethodPossibleMedian,
		Title:      "Possible IOP (median)",
		Formula:    "quantile(0.5)",
		MinSamples: 1,
		compute:    medianValue,
	},
	{
		Method:     MethodClinicalMidpoint,
		Title:      "Clinical IOP (range midpoint)",
		Formula:    "(min + max) / 2",
		MinSamples: 2,
		compute:    rangeMidpoint,
	},
	{
		Method:     MethodSafeTrimmedMean,
		Title:      "Safe IOP (trimmed mean)",
		Formula:    "(Σ x_i - min - max) / (n - 2)",
		MinSamples: 3,
		compute:    trimmedMean,
	},
	{
		Method:     MethodTrimean,
		Title:      "Trimean IOP",
		Formula:    "(Q1 + 2·median + Q3) / 4",
		MinSamples: 4,
		compute:    trimean,
	},
	{
		Method:     MethodIQM,
		Title:      "Interquartile mean IOP",
		Formula:    "mean of x_(i), floor(n/4) < i <= ceil(3n/4)",
		MinSamples: 4,
		compute:    interquartileMean,
	},
	{
		Method:     MethodWinsorizedMean,
		Title:      "Winsorized mean IOP",
		Formula:    "(1/n)(x_(2) + Σ_{i=2}^{n-1} x_(i) + x_(n-1))",
		MinSamples: 4,
		compute:    winsorizedMean,
	},
	{
		Method:     MethodWeightedMean,
		Title:      "Weighted mean IOP (consistency)",
		Formula:    "Σ w_i x_i / Σ w_i, w_i = 1 / (1 + |x_i - median|)",
		MinSamples: 1,
		compute:    weightedMean,
	},
}

// Estimators returns the registered estimators in report order
func Estimators() []Estimator {
	return append([]Estimator(nil), registry...)
}

// Lookup finds an estimator by method name
func Lookup(m Method) (Estimator, bool) {
	for _, e := range registry {
		if e.Method == m {
			return e, true
		}
	}
	return Estimator{}, false
}

// mean is stat.Mean, falling back to summing pre-scaled terms when the plain
// sum overflows. Each scaled term is bounded by the largest |x|, so the
// fallback stays finite for finite input.
func mean(x, weights []float64) float64 {
	m := stat.Mean(x, weights)
	if !math.IsNaN(m) && !math.IsInf(m, 0) {
		return m
	}

	total := float64(len(x))
	if weights != nil {
		total = floats.Sum(weights)
	}

	var acc float64
	for i, v := range x {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		acc += v * (w / total)
	}
	return acc
}

func arithmeticMean(s SortedSample, _ QuantileSet) Result {
	return Result{Value: mean(s.values, nil)}
}

func medianValue(_ SortedSample, q QuantileSet) Result {
	return Result{Value: q.Median}
}

// rangeMidpoint halves before adding so min+max cannot overflow
func rangeMidpoint(s SortedSample, _ QuantileSet) Result {
	return Result{Value: s.Min()/2 + s.Max()/2}
}

// trimmedMean drops exactly one minimum and one maximum, however many
// readings share those values. The dropped minimum is the earliest acquired
// one and the dropped maximum the latest. Only the interior is summed, so an
// extreme minimum or maximum cannot overflow the result.
func trimmedMean(s SortedSample, _ QuantileSet) Result {
	n := s.Len()
	last := n - 1
	return Result{
		Value:           mean(s.values[1:last], nil),
		Excluded:        []float64{s.Min(), s.Max()},
		ExcludedIndices: []int{s.source[0], s.source[last]},
	}
}

// trimean scales each quartile first; scaling by a power of two is exact, so
// this equals (Q1 + 2·median + Q3)/4 without the intermediate overflow.
func trimean(_ SortedSample, q QuantileSet) Result {
	return Result{Value: q.Q1/4 + q.Median/2 + q.Q3/4}
}

// iqmBounds returns the half-open range of zero-indexed sorted positions
// averaged by the interquartile mean.
func iqmBounds(n int) (lo, hi int) {
	lo = n / 4
	hi = int(math.Ceil(3 * float64(n) / 4))
	return lo, hi
}

func interquartileMean(s SortedSample, _ QuantileSet) Result {
	lo, hi := iqmBounds(s.Len())

	res := Result{Value: mean(s.values[lo:hi], nil)}
	for pos := range s.values {
		if pos < lo || pos >= hi {
			res.Excluded = append(res.Excluded, s.values[pos])
			res.ExcludedIndices = append(res.ExcludedIndices, s.source[pos])
		}
	}
	return res
}

func winsorizedMean(s SortedSample, _ QuantileSet) Result {
	n := s.Len()
	adjusted := s.Values()
	adjusted[0] = s.values[1]
	adjusted[n-1] = s.values[n-2]

	return Result{
		Value:           mean(adjusted, nil),
		AdjustedIndices: []int{s.source[0], s.source[n-1]},
	}
}

// consistencyWeight is at most 1, reached when x equals the median. A
// distance too large to represent gives weight 0.
func consistencyWeight(x, median float64) float64 {
	return 1 / (1 + math.Abs(x-median))
}

func weightedMean(s SortedSample, q QuantileSet) Result {
	weights := make([]float64, s.Len())
	for i, x := range s.values {
		weights[i] = consistencyWeight(x, q.Median)
	}
	return Result{Value: mean(s.values, weights)}
}
