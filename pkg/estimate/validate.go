// Package estimate turns a handful of session-average tonometer readings into
// robust intraocular pressure estimates.
//
// Readings flow through a fixed pipeline: Validate accepts them into an
// immutable MeasurementSet, Sort derives the SortedSample and its quartiles,
// every registered Estimator runs against that sample, and Build collects the
// outcome into a Report. Nothing is cached between calls, so every function
// here is safe for concurrent use.
package estimate

import (
	"fmt"
	"math"
)

// Soft bounds of the clinically plausible range, in mmHg.
const (
	PlausibleMin = 0.0
	PlausibleMax = 80.0
)

// ReasonOutsidePlausibleRange is the reason attached to a PlausibilityWarning.
const ReasonOutsidePlausibleRange = "outside_plausible_range"

// ValidationKind identifies why a set of readings was rejected
type ValidationKind string

const (
	EmptyInput ValidationKind = "empty_input"
	NonFinite  ValidationKind = "non_finite"
)

// Sentinels for errors.Is checks against a *ValidationError
var (
	ErrEmptyInput = &ValidationError{Kind: EmptyInput}
	ErrNonFinite  = &ValidationError{Kind: NonFinite}
)

// ValidationError aborts an estimation call. Index and Value describe the
// first offending reading for NonFinite and are zero for EmptyInput.
type ValidationError struct {
	Kind  ValidationKind
	Index int
	Value float64
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case EmptyInput:
		return "validation failed: no readings supplied"
	case NonFinite:
		return fmt.Sprintf("validation failed: reading %d is not finite (%v)", e.Index, e.Value)
	default:
		return fmt.Sprintf("validation failed: %s", e.Kind)
	}
}

// Is reports whether target is a *ValidationError of the same kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

// PlausibilityWarning flags a reading outside the plausible range. The reading
// is still used for estimation.
type PlausibilityWarning struct {
	Index  int     `json:"index"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

// MeasurementSet holds accepted readings in acquisition order. It cannot be
// modified after Validate returns it; accessors hand out copies.
type MeasurementSet struct {
	readings []float64
	warnings []PlausibilityWarning
}

// Len returns the number of readings
func (m MeasurementSet) Len() int { return len(m.readings) }

// At returns the i-th reading in acquisition order
func (m MeasurementSet) At(i int) float64 { return m.readings[i] }

// Readings returns a copy of the readings in acquisition order
func (m MeasurementSet) Readings() []float64 {
	return append([]float64(nil), m.readings...)
}

// Warnings returns a copy of the plausibility warnings raised during validation
func (m MeasurementSet) Warnings() []PlausibilityWarning {
	return append([]PlausibilityWarning(nil), m.warnings...)
}

// Validator checks readings against a soft plausible range.
type Validator struct {
	Min float64
	Max float64
}

// DefaultValidator returns a Validator using the [0, 80] mmHg range
func DefaultValidator() Validator {
	return Validator{Min: PlausibleMin, Max: PlausibleMax}
}

// Validate accepts readings into a MeasurementSet. Empty input and NaN or
// infinite values are rejected; values outside the plausible range only raise
// warnings. No value is rounded, removed or reordered.
func (v Validator) Validate(readings []float64) (MeasurementSet, error) {
	if len(readings) == 0 {
		return MeasurementSet{}, &ValidationError{Kind: EmptyInput}
	}

	for i, r := range readings {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return MeasurementSet{}, &ValidationError{Kind: NonFinite, Index: i, Value: r}
		}
	}

	set := MeasurementSet{readings: append([]float64(nil), readings...)}
	for i, r := range set.readings {
		if r < v.Min || r > v.Max {
			set.warnings = append(set.warnings, PlausibilityWarning{
				Index:  i,
				Value:  r,
				Reason: ReasonOutsidePlausibleRange,
			})
		}
	}

	return set, nil
}

// Validate accepts readings using the default plausible range
func Validate(readings []float64) (MeasurementSet, error) {
	return DefaultValidator().Validate(readings)
}
