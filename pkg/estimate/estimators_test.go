package estimate

import (
	"errors"
	"math"
	"testing"
)

func apply(t *testing.T, m Method, readings []float64) (Result, error) {
	t.Helper()
	e, ok := Lookup(m)
	if !ok {
		t.Fatalf("method %s not registered", m)
	}
	s := mustSort(t, readings)
	return e.Apply(s, s.Quantiles())
}

func mustApply(t *testing.T, m Method, readings []float64) Result {
	t.Helper()
	res, err := apply(t, m, readings)
	if err != nil {
		t.Fatalf("%s(%v) returned error: %v", m, readings, err)
	}
	return res
}

func TestEstimatorValues(t *testing.T) {
	tests := []struct {
		name     string
		method   Method
		readings []float64
		expected float64
		epsilon  float64
	}{
		{name: "mean", method: MethodMean, readings: []float64{14.2, 15.8, 13.0, 22.5, 16.1}, expected: 16.32, epsilon: 1e-9},
		{name: "mean single", method: MethodMean, readings: []float64{18}, expected: 18, epsilon: 0},
		{name: "median odd", method: MethodPossibleMedian, readings: []float64{1, 2, 3}, expected: 2, epsilon: 0},
		{name: "median even", method: MethodPossibleMedian, readings: []float64{1, 2, 3, 4}, expected: 2.5, epsilon: 0},
		{name: "midpoint", method: MethodClinicalMidpoint, readings: []float64{14.2, 15.8, 13.0, 22.5, 16.1}, expected: 17.75, epsilon: 1e-9},
		{name: "trimmed mean", method: MethodSafeTrimmedMean, readings: []float64{10, 12, 14, 16, 40}, expected: 14, epsilon: 0},
		{name: "trimmed mean with duplicate extremes", method: MethodSafeTrimmedMean, readings: []float64{15, 15, 20, 20}, expected: 17.5, epsilon: 0},
		{name: "trimean", method: MethodTrimean, readings: []float64{40, 10, 30, 20}, expected: 25, epsilon: 1e-9},
		{name: "trimean skewed", method: MethodTrimean, readings: []float64{14.2, 15.8, 13.0, 22.5, 16.1}, expected: 15.475, epsilon: 1e-9},
		{name: "iqm n=4", method: MethodIQM, readings: []float64{10, 20, 30, 40}, expected: 25, epsilon: 1e-9},
		{name: "iqm n=5", method: MethodIQM, readings: []float64{14.2, 15.8, 13.0, 22.5, 16.1}, expected: 46.1 / 3, epsilon: 1e-9},
		{name: "iqm n=8", method: MethodIQM, readings: []float64{8, 7, 6, 5, 4, 3, 2, 1}, expected: 4.5, epsilon: 1e-9},
		{name: "winsorized", method: MethodWinsorizedMean, readings: []float64{10, 12, 14, 16, 40}, expected: 14, epsilon: 1e-9},
		{name: "winsorized n=4", method: MethodWinsorizedMean, readings: []float64{1, 2, 3, 100}, expected: 2.5, epsilon: 1e-9},
		{name: "weighted symmetric", method: MethodWeightedMean, readings: []float64{10, 14, 18}, expected: 14, epsilon: 1e-9},
		{name: "weighted skewed", method: MethodWeightedMean, readings: []float64{10, 12, 14, 16, 40}, expected: 14.085603112840468, epsilon: 1e-9},
		{name: "weighted single", method: MethodWeightedMean, readings: []float64{21}, expected: 21, epsilon: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustApply(t, tt.method, tt.readings)
			if math.Abs(res.Value-tt.expected) > tt.epsilon {
				t.Errorf("%s(%v) = %v, expected %v ± %v", tt.method, tt.readings, res.Value, tt.expected, tt.epsilon)
			}
		})
	}
}

func TestMeanEqualsSumOverN(t *testing.T) {
	samples := [][]float64{
		{12},
		{12.5, 13.25},
		{9, 31.5, 17.25, 17.25, 11},
		{0, 80, 0.1, 79.9, 40, 40, 21.7},
	}

	for _, readings := range samples {
		sum := 0.0
		for _, r := range readings {
			sum += r
		}
		expected := sum / float64(len(readings))

		res := mustApply(t, MethodMean, readings)
		if math.Abs(res.Value-expected) > 1e-9 {
			t.Errorf("mean(%v) = %v, expected %v", readings, res.Value, expected)
		}
	}
}

func TestTrimmedMeanExcludesExtremes(t *testing.T) {
	res := mustApply(t, MethodSafeTrimmedMean, []float64{40, 12, 10, 16, 14})

	if res.Value != 14.0 {
		t.Errorf("value = %v, expected exactly 14.0", res.Value)
	}
	if len(res.Excluded) != 2 || res.Excluded[0] != 10 || res.Excluded[1] != 40 {
		t.Errorf("excluded = %v, expected [10 40]", res.Excluded)
	}
	if len(res.ExcludedIndices) != 2 || res.ExcludedIndices[0] != 2 || res.ExcludedIndices[1] != 0 {
		t.Errorf("excluded indices = %v, expected [2 0]", res.ExcludedIndices)
	}
}

func TestTrimmedMeanTieBreak(t *testing.T) {
	// earliest minimum and latest maximum are the ones dropped
	res := mustApply(t, MethodSafeTrimmedMean, []float64{15, 20, 15, 20, 17})

	expected := []int{0, 3}
	if len(res.ExcludedIndices) != 2 || res.ExcludedIndices[0] != expected[0] || res.ExcludedIndices[1] != expected[1] {
		t.Errorf("excluded indices = %v, expected %v", res.ExcludedIndices, expected)
	}
	if math.Abs(res.Value-(15+20+17)/3.0) > 1e-9 {
		t.Errorf("value = %v, expected %v", res.Value, (15+20+17)/3.0)
	}
}

func TestWinsorizedMeanAdjustedIndices(t *testing.T) {
	res := mustApply(t, MethodWinsorizedMean, []float64{40, 12, 10, 16, 14})

	if len(res.AdjustedIndices) != 2 || res.AdjustedIndices[0] != 2 || res.AdjustedIndices[1] != 0 {
		t.Errorf("adjusted indices = %v, expected [2 0]", res.AdjustedIndices)
	}
	if len(res.Excluded) != 0 {
		t.Errorf("winsorizing must not exclude readings, got %v", res.Excluded)
	}
}

func TestIQMExcludedReadings(t *testing.T) {
	res := mustApply(t, MethodIQM, []float64{30, 10, 40, 20})

	if len(res.Excluded) != 2 || res.Excluded[0] != 10 || res.Excluded[1] != 40 {
		t.Errorf("excluded = %v, expected [10 40]", res.Excluded)
	}
	if len(res.ExcludedIndices) != 2 || res.ExcludedIndices[0] != 1 || res.ExcludedIndices[1] != 2 {
		t.Errorf("excluded indices = %v, expected [1 2]", res.ExcludedIndices)
	}
}

func TestIQMBoundsNonEmpty(t *testing.T) {
	for n := 4; n <= 40; n++ {
		lo, hi := iqmBounds(n)
		if lo < 0 || hi > n || hi <= lo {
			t.Errorf("n=%d: invalid bounds [%d, %d)", n, lo, hi)
		}
	}
}

func TestConsistencyWeight(t *testing.T) {
	if w := consistencyWeight(15.8, 15.8); w != 1 {
		t.Errorf("weight at the median = %v, expected 1", w)
	}
	if w := consistencyWeight(17.8, 15.8); math.Abs(w-1.0/3) > 1e-12 {
		t.Errorf("weight 2 mmHg from the median = %v, expected 1/3", w)
	}
	for _, x := range []float64{0, 10, 15.7, 15.9, 80} {
		if w := consistencyWeight(x, 15.8); w <= 0 || w > 1 {
			t.Errorf("weight for %v outside (0, 1]: %v", x, w)
		}
	}
}

func TestMinimumSamples(t *testing.T) {
	tests := []struct {
		method   Method
		required int
	}{
		{MethodMean, 1},
		{MethodPossibleMedian, 1},
		{MethodClinicalMidpoint, 2},
		{MethodSafeTrimmedMean, 3},
		{MethodTrimean, 4},
		{MethodIQM, 4},
		{MethodWinsorizedMean, 4},
		{MethodWeightedMean, 1},
	}

	readings := []float64{14, 16, 15, 13, 17}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			for n := 1; n <= len(readings); n++ {
				_, err := apply(t, tt.method, readings[:n])
				if n >= tt.required {
					if err != nil {
						t.Errorf("n=%d: unexpected error %v", n, err)
					}
					continue
				}

				var insufficient *InsufficientSamples
				if !errors.As(err, &insufficient) {
					t.Fatalf("n=%d: expected *InsufficientSamples, got %v", n, err)
				}
				if insufficient.Required != tt.required || insufficient.Actual != n {
					t.Errorf("n=%d: got required=%d actual=%d, expected required=%d actual=%d",
						n, insufficient.Required, insufficient.Actual, tt.required, n)
				}
				if insufficient.Reason != ReasonInsufficientSamples {
					t.Errorf("n=%d: reason = %q", n, insufficient.Reason)
				}
			}
		})
	}
}

func TestRegistryOrder(t *testing.T) {
	expected := []Method{
		MethodMean, MethodPossibleMedian, MethodClinicalMidpoint, MethodSafeTrimmedMean,
		MethodTrimean, MethodIQM, MethodWinsorizedMean, MethodWeightedMean,
	}

	got := Estimators()
	if len(got) != len(expected) {
		t.Fatalf("expected %d estimators, got %d", len(expected), len(got))
	}
	for i, e := range got {
		if e.Method != expected[i] {
			t.Errorf("estimator %d = %s, expected %s", i, e.Method, expected[i])
		}
		if e.Title == "" || e.Formula == "" {
			t.Errorf("estimator %s is missing its title or formula", e.Method)
		}
	}

	if _, ok := Lookup("harmonic_mean"); ok {
		t.Error("Lookup found an unregistered method")
	}
}

func TestApplyRejectsNonFiniteValue(t *testing.T) {
	e := Estimator{
		Method:     "nan",
		MinSamples: 1,
		compute: func(SortedSample, QuantileSet) Result {
			return Result{Value: math.NaN()}
		},
	}
	s := mustSort(t, []float64{14, 15})

	_, err := e.Apply(s, s.Quantiles())
	var nonFinite *NonFiniteResult
	if !errors.As(err, &nonFinite) {
		t.Fatalf("expected *NonFiniteResult, got %v", err)
	}
	if nonFinite.Method != "nan" || nonFinite.Actual != 2 {
		t.Errorf("unexpected error details: %+v", nonFinite)
	}
}

func TestMeanFallbackOnOverflow(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		weights  []float64
		expected float64
	}{
		{name: "plain", values: []float64{1, 2, 3}, expected: 2},
		{name: "overflowing sum", values: []float64{1.6e308, 1.6e308, 1.0e308}, expected: 1.4e308},
		{name: "overflowing weighted sum", values: []float64{1.6e308, 1.6e308}, weights: []float64{1, 3}, expected: 1.6e308},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mean(tt.values, tt.weights)
			if math.Abs(got-tt.expected) > 1e-12*tt.expected {
				t.Errorf("mean = %v, expected %v", got, tt.expected)
			}
		})
	}
}
