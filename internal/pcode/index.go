// Package pcode detects columns of administrative location codes.
package pcode

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// World is the synthetic location that holds every known code.
const World = "WORLD"

// CodeSet is a set of upper-cased codes.
type CodeSet map[string]struct{}

// Has reports whether code is in the set.
func (s CodeSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Index maps ISO3 location codes to the p-codes known for that location.
// It is read-only once built.
type Index struct {
	codes map[string][]string
}

// IndexColumns names the reference columns holding the code and its country.
type IndexColumns struct {
	PCode string
	Admin string
}

// BuildIndex builds an index from reference rows. The first data row is the
// HXL tag row and is skipped. When locations is non-empty and does not
// contain World, rows for other countries are ignored.
func BuildIndex(header []string, rows [][]string, cols IndexColumns, locations []string) (*Index, error) {
	b, err := newIndexBuilder(header, cols, locations)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		b.add(row)
	}
	return b.idx, nil
}

type indexBuilder struct {
	idx    *Index
	pIdx   int
	aIdx   int
	want   map[string]bool
	filter bool
	seen   int
}

func newIndexBuilder(header []string, cols IndexColumns, locations []string) (*indexBuilder, error) {
	b := &indexBuilder{
		idx:  &Index{codes: map[string][]string{World: {}}},
		pIdx: -1,
		aIdx: -1,
		want: make(map[string]bool, len(locations)),
	}
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case cols.PCode:
			b.pIdx = i
		case cols.Admin:
			b.aIdx = i
		}
	}
	if b.pIdx < 0 || b.aIdx < 0 {
		return nil, eris.Errorf("pcode: reference columns %q/%q not found in %v", cols.PCode, cols.Admin, header)
	}
	for _, l := range locations {
		b.want[strings.ToUpper(l)] = true
	}
	b.filter = len(b.want) > 0 && !b.want[World]
	return b, nil
}

func (b *indexBuilder) add(row []string) {
	b.seen++
	if b.seen == 1 {
		return
	}
	if b.pIdx >= len(row) || b.aIdx >= len(row) {
		return
	}
	code := strings.TrimSpace(row[b.pIdx])
	iso3 := strings.ToUpper(strings.TrimSpace(row[b.aIdx]))
	if b.filter && !b.want[iso3] {
		return
	}
	b.idx.codes[iso3] = append(b.idx.codes[iso3], code)
	b.idx.codes[World] = append(b.idx.codes[World], code)
}

// NewIndex wraps an existing location → codes mapping.
func NewIndex(codes map[string][]string) *Index {
	idx := &Index{codes: make(map[string][]string, len(codes)+1)}
	for k, v := range codes {
		idx.codes[strings.ToUpper(k)] = append([]string(nil), v...)
	}
	if _, ok := idx.codes[World]; !ok {
		var all []string
		for _, v := range codes {
			all = append(all, v...)
		}
		idx.codes[World] = all
	}
	return idx
}

// Len returns the number of locations, World included.
func (x *Index) Len() int { return len(x.codes) }

// Codes returns the codes for one location.
func (x *Index) Codes(iso3 string) []string {
	return x.codes[strings.ToUpper(iso3)]
}

// Locations returns the indexed locations in sorted order.
func (x *Index) Locations() []string {
	out := make([]string, 0, len(x.codes))
	for k := range x.codes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CodesFor returns every code belonging to any of the given locations.
func (x *Index) CodesFor(locations []string) CodeSet {
	set := make(CodeSet)
	for _, l := range locations {
		for _, c := range x.codes[strings.ToUpper(l)] {
			set[strings.ToUpper(c)] = struct{}{}
		}
	}
	return set
}
