package pcode

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hdx-tools/pcode-detector/internal/table"
)

func knownCodes() CodeSet {
	return NewIndex(map[string][]string{
		"AFG": {"AF01", "AF02", "AF03", "AF04", "AF0101", "AF0102"},
	}).CodesFor([]string{"AFG"})
}

func TestIsCodeHeader(t *testing.T) {
	for _, h := range []string{
		"admin1Pcode", "ADM2_PCODE", "adm1 pcode", "pcode", "P-code", "Code",
		"#adm1+code", "#adm2 +pcode", "Region||#adm1+code", "district_code",
	} {
		assert.True(t, IsCodeHeader(h), h)
	}
	for _, h := range []string{"Name", "population", "#country+name", "location"} {
		assert.False(t, IsCodeHeader(h), h)
	}
}

func TestCheck_RandomSampleFromKnownCodes(t *testing.T) {
	codes := knownCodes()
	pool := make([]string, 0, len(codes))
	for c := range codes {
		pool = append(pool, c)
	}
	r := rand.New(rand.NewPCG(1, 2))
	m := NewMatcher(0.9)

	for size := 1; size <= 50; size += 7 {
		rows := make([][]string, size)
		for i := range rows {
			rows[i] = []string{pool[r.IntN(len(pool))], "x"}
		}
		tbl := table.New([]string{"adm1_pcode", "name"}, rows)
		assert.True(t, m.Check(tbl, codes), "size %d", size)
	}
}

func TestCheck_CaseInsensitiveValues(t *testing.T) {
	tbl := table.New([]string{"Admin1Pcode"}, [][]string{{"af01"}, {"Af02"}})
	assert.True(t, NewMatcher(0.9).Check(tbl, knownCodes()))
}

func TestCheck_NullMarkersExcluded(t *testing.T) {
	m := NewMatcher(0.9)

	onlyNulls := table.New([]string{"pcode"}, [][]string{{"NA"}, {"NaN"}, {"NULL"}, {""}, {"none"}})
	match, ok := m.Scan(onlyNulls, knownCodes())
	assert.False(t, ok)
	assert.Zero(t, match.Values)

	mixed := table.New([]string{"pcode"}, [][]string{{"AF01"}, {"NA"}, {"NULL"}, {"AF02"}})
	match, ok = m.Scan(mixed, knownCodes())
	assert.True(t, ok)
	assert.Equal(t, 2, match.Values)
	assert.InDelta(t, 1.0, match.Fraction, 0.0001)
}

func TestCheck_HeaderMustMatch(t *testing.T) {
	tbl := table.New([]string{"Name", "Other"}, [][]string{{"AF01", "AF02"}})
	assert.False(t, NewMatcher(0.9).Check(tbl, knownCodes()))
}

func TestCheck_BelowThreshold(t *testing.T) {
	rows := [][]string{}
	for i := range 10 {
		if i < 8 {
			rows = append(rows, []string{"AF01"})
		} else {
			rows = append(rows, []string{"ZZ99"})
		}
	}
	tbl := table.New([]string{"pcode"}, rows)

	assert.False(t, NewMatcher(0.9).Check(tbl, knownCodes()))
	assert.True(t, NewMatcher(0.8).Check(tbl, knownCodes()))
}

func TestCheck_SkipsEmptyCandidateAndContinues(t *testing.T) {
	tbl := table.New([]string{"code_a", "adm1_pcode"}, [][]string{
		{"NA", "AF01"},
		{"", "AF02"},
	})

	match, ok := NewMatcher(0.9).Scan(tbl, knownCodes())
	assert.True(t, ok)
	assert.Equal(t, "adm1_pcode", match.Column)
}

func TestCheck_CompositeHeader(t *testing.T) {
	tbl := table.New([]string{"Province||#adm1+code"}, [][]string{{"AF01"}, {"AF03"}})
	assert.True(t, NewMatcher(0.9).Check(tbl, knownCodes()))
}

func TestNewMatcher_DefaultThreshold(t *testing.T) {
	assert.InDelta(t, DefaultThreshold, NewMatcher(0).Threshold(), 0.0001)
}
