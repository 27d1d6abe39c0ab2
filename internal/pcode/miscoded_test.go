package pcode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hdx-tools/pcode-detector/internal/table"
)

func TestCanonical(t *testing.T) {
	idx := NewIndex(map[string][]string{
		"AFG": {"AF01", "AF0101"},
		"SOM": {"SO11"},
	})
	c := idx.Canonicalizer()

	assert.Equal(t, "AF1", c.Canonical("AF01"))
	assert.Equal(t, "AF1", c.Canonical("afg01"))
	assert.Equal(t, "AF101", c.Canonical("AFG0101"))
	assert.Equal(t, "SO11", c.Canonical("SOM11"))
	assert.Equal(t, "AF0", c.Canonical("AF000"))
	assert.Equal(t, "XYZ1", c.Canonical("XYZ001"))
}

func TestCheckMiscoded(t *testing.T) {
	idx := NewIndex(map[string][]string{"AFG": {"AF01", "AF02", "AF0101"}})
	codes := idx.CodesFor([]string{"AFG"})
	canon := idx.Canonicalizer()
	canonical := canon.Set(codes)
	m := NewMatcher(0.9)

	tbl := table.New([]string{"adm1_pcode"}, [][]string{{"AFG01"}, {"AFG2"}, {"AF101"}})

	assert.False(t, m.Check(tbl, codes))
	assert.True(t, m.CheckMiscoded(tbl, canon, canonical))

	other := table.New([]string{"adm1_pcode"}, [][]string{{"SO11"}, {"SO12"}})
	assert.False(t, m.CheckMiscoded(other, canon, canonical))
}
