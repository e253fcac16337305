package estimate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseError reports a token that is not a number
type ParseError struct {
	Token    string
	Position int // zero-indexed position among the non-empty tokens
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("reading %d (%q) is not a number", e.Position, e.Token)
}

func (e *ParseError) Unwrap() error { return e.Err }

func isSeparator(r rune) bool {
	return r == ',' || r == ';' || unicode.IsSpace(r)
}

// ParseReadings parses readings separated by commas, semicolons or
// whitespace, e.g. "14.2, 15.8, 13.0". Input without any readings fails with
// a *ValidationError of kind EmptyInput. Values are not range-checked here.
func ParseReadings(input string) ([]float64, error) {
	tokens := strings.FieldsFunc(input, isSeparator)
	if len(tokens) == 0 {
		return nil, &ValidationError{Kind: EmptyInput}
	}

	readings := make([]float64, 0, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, &ParseError{Token: tok, Position: i, Err: err}
		}
		readings = append(readings, v)
	}

	return readings, nil
}
