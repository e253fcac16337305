package estimate

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteText renders the report as an aligned plain-text table. Values are
// shown to one decimal place; the Report itself keeps full precision.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Readings:\t%d\n", r.N)
	if v := r.Dispersion.Variability; v != nil {
		fmt.Fprintf(tw, "Range:\t%.1f to %.1f mmHg (variability %.1f, %s)\n",
			r.Dispersion.Min, r.Dispersion.Max, *v, r.Dispersion.Consistency)
	} else {
		fmt.Fprintf(tw, "Range:\t%.1f to %.1f mmHg (%s)\n",
			r.Dispersion.Min, r.Dispersion.Max, r.Dispersion.Consistency)
	}
	if r.Dispersion.StdDev != nil {
		fmt.Fprintf(tw, "Std dev:\t%.2f mmHg\n", *r.Dispersion.StdDev)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "METHOD\tIOP (mmHg)\tNOTES")
	for _, e := range registry {
		res, ok := r.Results[e.Method]
		if !ok {
			continue
		}
		note := ""
		switch {
		case len(res.Excluded) > 0:
			note = fmt.Sprintf("excluded %v", res.Excluded)
		case len(res.AdjustedIndices) > 0:
			note = fmt.Sprintf("adjusted readings %v", res.AdjustedIndices)
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%s\n", e.Title, res.Value, note)
	}

	for _, u := range r.Unavailable {
		e, _ := Lookup(u.Method)
		if u.Reason == ReasonNonFiniteResult {
			fmt.Fprintf(tw, "%s\t-\tnot finite for these readings\n", e.Title)
			continue
		}
		fmt.Fprintf(tw, "%s\t-\tneeds %d readings, have %d\n", e.Title, u.Required, u.Actual)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(tw)
		for _, wn := range r.Warnings {
			fmt.Fprintf(tw, "warning:\treading %d (%.1f mmHg) %s\n", wn.Index, wn.Value, wn.Reason)
		}
	}

	return tw.Flush()
}
