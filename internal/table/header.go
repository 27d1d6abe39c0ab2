package table

import (
	"regexp"
	"strings"

	"github.com/hdx-tools/pcode-detector/internal/model"
)

// Separator joins the fragments of a composite header label.
const Separator = "||"

const (
	// hxlScanRows bounds how far down the HXL tag row is searched for.
	hxlScanRows = 10
	// headerZoneRows is the number of rows merged into the header when no
	// tag row is present.
	headerZoneRows = 3
)

var hxlTag = regexp.MustCompile(`^#.*`)

// Reconstruct normalizes a raw table whose real header may be offset by
// blank rows, split over several rows, or followed by an HXL tag row.
// The result has one header row of composite labels joined by Separator.
// ext is the declared file extension; delimited text keeps its first row
// as the header unless a tag row is found. t is not modified.
func Reconstruct(t *Table, ext string) *Table {
	out := dropEmpty(t)

	if len(out.Columns) > 0 && len(out.Rows) > 0 && allPlaceholders(out.Columns) {
		promoteFirstRow(out)
	}

	if !out.AllText() {
		return out
	}
	if len(out.Rows) == 1 {
		return out
	}

	if k, ok := findHXLRow(out); ok {
		mergeHeader(out, k+1)
		return out
	}

	if ext == model.ExtCSV {
		return out
	}

	zone := headerZoneRows
	if len(out.Rows) < zone {
		zone = len(out.Rows)
	}
	mergeHeader(out, zone)
	return out
}

// dropEmpty returns a copy without fully-null rows and columns.
func dropEmpty(t *Table) *Table {
	keepCol := make([]bool, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range row {
			if c.Valid {
				keepCol[i] = true
			}
		}
	}

	out := &Table{}
	for i, label := range t.Columns {
		if !keepCol[i] {
			continue
		}
		out.Columns = append(out.Columns, label)
		if i < len(t.Kinds) {
			out.Kinds = append(out.Kinds, t.Kinds[i])
		} else {
			out.Kinds = append(out.Kinds, KindText)
		}
	}

	for _, row := range t.Rows {
		var kept []Cell
		hasValue := false
		for i, c := range row {
			if !keepCol[i] {
				continue
			}
			kept = append(kept, c)
			if c.Valid {
				hasValue = true
			}
		}
		if hasValue {
			out.Rows = append(out.Rows, kept)
		}
	}
	return out
}

func allPlaceholders(labels []string) bool {
	for _, l := range labels {
		if !IsPlaceholder(l) {
			return false
		}
	}
	return true
}

// promoteFirstRow uses row 0 as the header and drops it.
func promoteFirstRow(t *Table) {
	for i, c := range t.Rows[0] {
		if c.Valid {
			t.Columns[i] = c.Value
		} else {
			t.Columns[i] = Placeholder(i)
		}
	}
	t.Rows = t.Rows[1:]
}

// findHXLRow returns the first of the leading rows in which every cell is
// empty or a #tag.
func findHXLRow(t *Table) (int, bool) {
	for i := 0; i < hxlScanRows && i < len(t.Rows); i++ {
		tagged := true
		for _, c := range t.Rows[i] {
			if c.Empty() {
				continue
			}
			if !hxlTag.MatchString(c.Value) {
				tagged = false
				break
			}
		}
		if tagged {
			return i, true
		}
	}
	return 0, false
}

// mergeHeader folds the first n rows into composite labels and drops them.
func mergeHeader(t *Table, n int) {
	labels := make([]string, len(t.Columns))
	for i, label := range t.Columns {
		var parts []string
		if !IsPlaceholder(label) {
			parts = append(parts, label)
		}
		for _, row := range t.Rows[:n] {
			if !row[i].Empty() {
				parts = append(parts, row[i].Value)
			}
		}
		labels[i] = strings.Join(parts, Separator)
	}
	t.Columns = labels
	t.Rows = t.Rows[n:]
}
