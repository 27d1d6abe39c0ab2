package pcode

import (
	"regexp"
	"strings"

	"github.com/hdx-tools/pcode-detector/internal/table"
)

// DefaultThreshold is the share of values that must be known codes.
const DefaultThreshold = 0.9

// headerPattern recognizes column labels such as "admin1Pcode",
// "ADM2_PCODE" or "#adm1+code".
var headerPattern = regexp.MustCompile(`(?i)^(((adm)?.*p?.?cod.*)|(#\s?adm\s?\d?\+?\s?p?(code)?))`)

// nullMarkers are textual stand-ins for missing values.
var nullMarkers = map[string]bool{
	"NA":   true,
	"NAN":  true,
	"NONE": true,
	"NULL": true,
	"":     true,
}

// ColumnMatch describes how one candidate column scored.
type ColumnMatch struct {
	Column   string
	Values   int
	Matches  int
	Fraction float64
}

// Matcher tests reconstructed tables for p-code columns.
type Matcher struct {
	threshold float64
}

// NewMatcher returns a matcher; a non-positive threshold uses DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the match fraction required.
func (m *Matcher) Threshold() float64 { return m.threshold }

// IsCodeHeader reports whether any fragment of a composite label looks like
// a location code header.
func IsCodeHeader(label string) bool {
	for _, part := range strings.Split(label, table.Separator) {
		if headerPattern.MatchString(part) {
			return true
		}
	}
	return false
}

// Check reports whether t has a code-like column whose values are drawn
// from codes.
func (m *Matcher) Check(t *table.Table, codes CodeSet) bool {
	_, ok := m.Scan(t, codes)
	return ok
}

// Scan returns the first candidate column reaching the threshold. Candidate
// columns with no usable values are skipped.
func (m *Matcher) Scan(t *table.Table, codes CodeSet) (ColumnMatch, bool) {
	return m.scan(t, func(v string) bool { return codes.Has(v) })
}

func (m *Matcher) scan(t *table.Table, known func(string) bool) (ColumnMatch, bool) {
	for i, label := range t.Columns {
		if !IsCodeHeader(label) {
			continue
		}
		values := columnValues(t, i)
		if len(values) == 0 {
			continue
		}
		matches := 0
		for _, v := range values {
			if known(v) {
				matches++
			}
		}
		frac := float64(matches) / float64(len(values))
		if frac >= m.threshold {
			return ColumnMatch{Column: label, Values: len(values), Matches: matches, Fraction: frac}, true
		}
	}
	return ColumnMatch{}, false
}

// columnValues returns the upper-cased non-null values of column i.
func columnValues(t *table.Table, i int) []string {
	var out []string
	for _, row := range t.Rows {
		c := row[i]
		if !c.Valid {
			continue
		}
		v := strings.ToUpper(c.Value)
		if nullMarkers[v] {
			continue
		}
		out = append(out, v)
	}
	return out
}
