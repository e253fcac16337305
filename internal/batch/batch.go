// Package batch estimates many measurement sessions at once. Sessions are
// read from CSV, one per row: session_id,r1,r2,...
package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/chrissnell/iopestimator/pkg/estimate"
	"golang.org/x/sync/errgroup"
)

// Session is one row of a batch file
type Session struct {
	ID       string
	Line     int
	Readings []float64
	// ParseErr is set when the row could not be read as numbers
	ParseErr error
}

// Outcome is the estimation result for one session. Exactly one of Report and
// Error is set.
type Outcome struct {
	SessionID string           `json:"session_id"`
	Report    *estimate.Report `json:"report,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Result holds the outcomes of a batch in input order
type Result struct {
	Sessions []Outcome `json:"sessions"`
	Failed   int       `json:"failed"`
}

// WriteText renders every session as text, separated by a header line
func (r *Result) WriteText(w io.Writer) error {
	for i, o := range r.Sessions {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "== %s ==\n", o.SessionID); err != nil {
			return err
		}
		if o.Error != "" {
			if _, err := fmt.Fprintf(w, "error: %s\n", o.Error); err != nil {
				return err
			}
			continue
		}
		if err := o.Report.WriteText(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadSessions parses a batch file. Rows may have differing lengths. Blank
// rows and rows whose first field starts with # are skipped. A row with an
// unparsable reading is kept with ParseErr set so it surfaces as a
// per-session failure.
func ReadSessions(r io.Reader) ([]Session, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var sessions []Session
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read batch file: %w", err)
		}

		line, _ := cr.FieldPos(0)
		id := strings.TrimSpace(record[0])
		if id == "" && len(record) == 1 {
			continue
		}
		if id == "" {
			id = fmt.Sprintf("line-%d", line)
		}

		s := Session{ID: id, Line: line}
		for i, field := range record[1:] {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				s.ParseErr = &estimate.ParseError{Token: field, Position: i, Err: err}
				break
			}
			s.Readings = append(s.Readings, v)
		}
		sessions = append(sessions, s)
	}

	if len(sessions) == 0 {
		return nil, errors.New("batch file contains no sessions")
	}
	return sessions, nil
}

// Runner estimates sessions concurrently
type Runner struct {
	Engine estimate.Engine
	// Workers bounds the number of concurrent estimations. Zero means
	// GOMAXPROCS.
	Workers int
}

// NewRunner returns a Runner using engine
func NewRunner(engine estimate.Engine) *Runner {
	return &Runner{Engine: engine}
}

// Run estimates every session. Per-session failures are recorded in the
// matching Outcome; the returned error is only set when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, sessions []Session) (*Result, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]Outcome, len(sessions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range sessions {
		i := i
		s := sessions[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.estimate(s)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch cancelled: %w", err)
	}

	res := &Result{Sessions: outcomes}
	for _, o := range outcomes {
		if o.Error != "" {
			res.Failed++
		}
	}
	return res, nil
}

func (r *Runner) estimate(s Session) Outcome {
	o := Outcome{SessionID: s.ID}
	if s.ParseErr != nil {
		o.Error = s.ParseErr.Error()
		return o
	}

	report, err := r.Engine.Estimate(s.Readings)
	if err != nil {
		o.Error = err.Error()
		return o
	}
	o.Report = report
	return o
}
