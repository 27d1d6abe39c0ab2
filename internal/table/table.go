// Package table holds the in-memory sample of a sheet, layer, or file and
// normalizes messy multi-row spreadsheet headers into a single header row.
package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell is a string-or-null value.
type Cell struct {
	Value string
	Valid bool
}

// Str returns a non-null cell.
func Str(s string) Cell { return Cell{Value: s, Valid: true} }

// Null is the missing value.
var Null = Cell{}

// Empty reports whether the cell is null or holds the empty string.
func (c Cell) Empty() bool { return !c.Valid || c.Value == "" }

// Kind is the inferred type of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumber
)

// Table is an ordered set of named columns over a bounded number of rows.
type Table struct {
	Columns []string
	Rows    [][]Cell
	Kinds   []Kind
}

// placeholderPrefix marks a column label generated for an empty header cell.
const placeholderPrefix = "Unnamed"

// Placeholder returns the generated label for the column at position i.
func Placeholder(i int) string {
	return fmt.Sprintf("%s: %d", placeholderPrefix, i)
}

// IsPlaceholder reports whether label was generated rather than read.
func IsPlaceholder(label string) bool {
	return strings.HasPrefix(label, placeholderPrefix)
}

// New builds a table from a raw header and raw rows. Empty header cells get
// placeholder labels, empty values become null, short rows are padded and
// long rows truncated to the header width. Column kinds are inferred.
func New(header []string, rows [][]string) *Table {
	t := &Table{Columns: make([]string, len(header))}
	for i, h := range header {
		if h == "" {
			h = Placeholder(i)
		}
		t.Columns[i] = h
	}
	for _, raw := range rows {
		row := make([]Cell, len(header))
		for i := range row {
			if i < len(raw) && raw[i] != "" {
				row[i] = Str(raw[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	t.inferKinds()
	return t
}

// FromRows builds a table from already-typed cells. Rows must match the
// column count.
func FromRows(columns []string, rows [][]Cell) *Table {
	t := &Table{Columns: append([]string(nil), columns...), Rows: rows}
	t.inferKinds()
	return t
}

// FromRecords builds a table from records keyed by column label, in the
// given column order. Missing keys are null.
func FromRecords(columns []string, records []map[string]Cell) *Table {
	rows := make([][]Cell, 0, len(records))
	for _, rec := range records {
		row := make([]Cell, len(columns))
		for i, c := range columns {
			row[i] = rec[c]
		}
		rows = append(rows, row)
	}
	return FromRows(columns, rows)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no rows or no columns.
func (t *Table) Empty() bool { return len(t.Rows) == 0 || len(t.Columns) == 0 }

// Column returns the cells of column i.
func (t *Table) Column(i int) []Cell {
	col := make([]Cell, len(t.Rows))
	for r, row := range t.Rows {
		col[r] = row[i]
	}
	return col
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{
		Columns: append([]string(nil), t.Columns...),
		Kinds:   append([]Kind(nil), t.Kinds...),
		Rows:    make([][]Cell, len(t.Rows)),
	}
	for i, row := range t.Rows {
		c.Rows[i] = append([]Cell(nil), row...)
	}
	return c
}

// AllText reports whether no column was inferred as numeric.
func (t *Table) AllText() bool {
	for _, k := range t.Kinds {
		if k != KindText {
			return false
		}
	}
	return true
}

// inferKinds marks a column numeric when it has values and all of them
// parse as numbers.
func (t *Table) inferKinds() {
	t.Kinds = make([]Kind, len(t.Columns))
	for i := range t.Columns {
		seen := false
		numeric := true
		for _, row := range t.Rows {
			if !row[i].Valid {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(strings.TrimSpace(row[i].Value), 64); err != nil {
				numeric = false
				break
			}
		}
		if seen && numeric {
			t.Kinds[i] = KindNumber
		}
	}
}
