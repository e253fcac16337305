package estimate

// Report is the complete outcome of one estimation call.
type Report struct {
	N           int                   `json:"n"`
	Warnings    []PlausibilityWarning `json:"warnings,omitempty"`
	Quartiles   QuantileSet           `json:"quartiles"`
	Dispersion  Dispersion            `json:"dispersion"`
	Results     Results               `json:"results"`
	Unavailable []Unavailable         `json:"unavailable"`
}

// Unavailable explains why a method has no value in a Report. Required is
// only set for ReasonInsufficientSamples.
type Unavailable struct {
	Method   Method `json:"method"`
	Reason   string `json:"reason"`
	Required int    `json:"required,omitempty"`
	Actual   int    `json:"actual"`
}

// Available reports whether method m produced a value
func (r *Report) Available(m Method) bool {
	_, ok := r.Results[m]
	return ok
}

// Value returns the estimate for method m, if one was computed
func (r *Report) Value(m Method) (float64, bool) {
	res, ok := r.Results[m]
	return res.Value, ok
}

// Build runs every registered estimator against the sample and assembles the
// Report. A method whose precondition fails, or whose value overflows, is
// listed in Unavailable; the others are unaffected.
func Build(set MeasurementSet, sorted SortedSample, q QuantileSet) *Report {
	r := &Report{
		N:           set.Len(),
		Warnings:    set.Warnings(),
		Quartiles:   q,
		Dispersion:  Describe(sorted),
		Results:     make(Results, len(registry)),
		Unavailable: []Unavailable{},
	}

	for _, e := range registry {
		res, err := e.Apply(sorted, q)
		switch err := err.(type) {
		case nil:
		case *InsufficientSamples:
			r.Unavailable = append(r.Unavailable, Unavailable{
				Method:   err.Method,
				Reason:   err.Reason,
				Required: err.Required,
				Actual:   err.Actual,
			})
			continue
		case *NonFiniteResult:
			r.Unavailable = append(r.Unavailable, Unavailable{
				Method: err.Method,
				Reason: ReasonNonFiniteResult,
				Actual: err.Actual,
			})
			continue
		}
		r.Results[e.Method] = res
	}

	return r
}

// Engine runs the full pipeline with a configurable Validator. The zero value
// is not usable; start from NewEngine.
type Engine struct {
	Validator Validator
}

// NewEngine returns an Engine using the default plausible range
func NewEngine() Engine {
	return Engine{Validator: DefaultValidator()}
}

// Estimate validates readings and builds their Report. Only a
// *ValidationError aborts the call.
func (e Engine) Estimate(readings []float64) (*Report, error) {
	set, err := e.Validator.Validate(readings)
	if err != nil {
		return nil, err
	}
	sorted := Sort(set)
	return Build(set, sorted, sorted.Quantiles()), nil
}

// Estimate runs the pipeline with the default Engine
func Estimate(readings []float64) (*Report, error) {
	return NewEngine().Estimate(readings)
}
