package pcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refHeader = []string{"Location", "P-Code", "Name"}

var refRows = [][]string{
	{"#country+code", "#adm+code", "#adm+name"},
	{"AFG", "AF01", "Kabul"},
	{"AFG", "AF02", "Herat"},
	{"COL", "CO05", "Antioquia"},
	{"SOM", "SO11", "Awdal"},
}

var refCols = IndexColumns{PCode: "P-Code", Admin: "Location"}

func TestBuildIndex_SkipsTagRow(t *testing.T) {
	idx, err := BuildIndex(refHeader, refRows, refCols, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"AF01", "AF02"}, idx.Codes("AFG"))
	assert.Equal(t, []string{"AF01", "AF02", "CO05", "SO11"}, idx.Codes(World))
	assert.Equal(t, 4, idx.Len())
	assert.Nil(t, idx.Codes("#COUNTRY+CODE"))
}

func TestBuildIndex_LocationFilter(t *testing.T) {
	idx, err := BuildIndex(refHeader, refRows, refCols, []string{"afg", "COL"})
	require.NoError(t, err)

	assert.Equal(t, []string{"AFG", "COL", World}, idx.Locations())
	assert.Equal(t, []string{"AF01", "AF02", "CO05"}, idx.Codes(World))
}

func TestBuildIndex_WorldDisablesFilter(t *testing.T) {
	idx, err := BuildIndex(refHeader, refRows, refCols, []string{"WORLD"})
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
}

func TestBuildIndex_MissingColumn(t *testing.T) {
	_, err := BuildIndex([]string{"a", "b"}, refRows, refCols, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCodesFor(t *testing.T) {
	idx := NewIndex(map[string][]string{
		"AFG": {"AF01", "af02"},
		"COL": {"CO05"},
	})

	set := idx.CodesFor([]string{"AFG"})
	assert.True(t, set.Has("AF01"))
	assert.True(t, set.Has("AF02"))
	assert.False(t, set.Has("CO05"))

	world := idx.CodesFor([]string{"world"})
	assert.Len(t, world, 3)
}
