package pcode

import (
	"strings"
	"unicode"

	"github.com/hdx-tools/pcode-detector/internal/table"
)

// Canonicalizer folds near-miss codes onto one form: ISO3 country prefixes
// become the ISO2 prefix the reference codes use, and leading zeros of the
// numeric part are dropped.
type Canonicalizer struct {
	iso3to2 map[string]string
}

// Canonicalizer infers each location's two-letter code prefix from its
// known codes.
func (x *Index) Canonicalizer() *Canonicalizer {
	c := &Canonicalizer{iso3to2: make(map[string]string)}
	for iso3, codes := range x.codes {
		if iso3 == World || len(iso3) != 3 {
			continue
		}
		counts := make(map[string]int)
		for _, code := range codes {
			if p := letterPrefix(strings.ToUpper(code)); len(p) == 2 {
				counts[p]++
			}
		}
		best, n := "", 0
		for p, k := range counts {
			if k > n || (k == n && p < best) {
				best, n = p, k
			}
		}
		if best != "" {
			c.iso3to2[iso3] = best
		}
	}
	return c
}

// Canonical returns the folded form of code.
func (c *Canonicalizer) Canonical(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	prefix := letterPrefix(code)
	rest := code[len(prefix):]
	if iso2, ok := c.iso3to2[prefix]; ok {
		prefix = iso2
	}
	trimmed := strings.TrimLeft(rest, "0")
	if trimmed == "" && rest != "" {
		trimmed = "0"
	}
	return prefix + trimmed
}

// Set returns the canonical forms of codes.
func (c *Canonicalizer) Set(codes CodeSet) CodeSet {
	out := make(CodeSet, len(codes))
	for code := range codes {
		out[c.Canonical(code)] = struct{}{}
	}
	return out
}

// CheckMiscoded reports whether t has a code-like column that only reaches
// the threshold once values are canonicalized. canonical must come from
// canon.Set.
func (m *Matcher) CheckMiscoded(t *table.Table, canon *Canonicalizer, canonical CodeSet) bool {
	_, ok := m.scan(t, func(v string) bool { return canonical.Has(canon.Canonical(v)) })
	return ok
}

func letterPrefix(s string) string {
	for i, r := range s {
		if !unicode.IsLetter(r) {
			return s[:i]
		}
	}
	return s
}
