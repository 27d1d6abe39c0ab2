package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstruct_DropsEmptyRowsAndColumns(t *testing.T) {
	tbl := New([]string{"code", "blank", "name"}, [][]string{
		{"", "", ""},
		{"AF01", "", "Kabul"},
		{"", "", ""},
		{"AF02", "", "Herat"},
	})

	out := Reconstruct(tbl, "csv")

	assert.Equal(t, []string{"code", "name"}, out.Columns)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, []Cell{Str("AF02"), Str("Herat")}, out.Rows[1])
	// input untouched
	assert.Len(t, tbl.Columns, 3)
	assert.Len(t, tbl.Rows, 4)
}

func TestReconstruct_PromotesFirstRowWhenAllPlaceholders(t *testing.T) {
	tbl := New([]string{"", "", ""}, [][]string{
		{"pcode", "name", "pop"},
		{"AF01", "Kabul", "100"},
		{"AF02", "Herat", "200"},
	})

	out := Reconstruct(tbl, "csv")

	assert.Equal(t, []string{"pcode", "name", "pop"}, out.Columns)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "AF01", out.Rows[0][0].Value)
}

func TestReconstruct_PromotionKeepsPlaceholderForNullLabel(t *testing.T) {
	tbl := New([]string{"", ""}, [][]string{
		{"pcode", ""},
		{"AF01", "7"},
		{"AF02", "8"},
	})

	out := Reconstruct(tbl, "csv")

	assert.Equal(t, []string{"pcode", "Unnamed: 1"}, out.Columns)
	assert.Len(t, out.Rows, 2)
}

func TestReconstruct_NumericColumnsReturnAsIs(t *testing.T) {
	tbl := New([]string{"region", "population"}, [][]string{
		{"North", "10"},
		{"South", "20"},
		{"East", "30"},
		{"West", "40"},
	})

	out := Reconstruct(tbl, "xlsx")

	assert.Equal(t, []string{"region", "population"}, out.Columns)
	assert.Len(t, out.Rows, 4)
}

func TestReconstruct_SingleRowReturnsAsIs(t *testing.T) {
	tbl := New([]string{"region", "name"}, [][]string{{"North", "n"}})
	out := Reconstruct(tbl, "xlsx")
	assert.Equal(t, []string{"region", "name"}, out.Columns)
	assert.Len(t, out.Rows, 1)
}

func TestReconstruct_HXLRowAtIndexTwo(t *testing.T) {
	tbl := New([]string{"Admin 1", "", "Population"}, [][]string{
		{"P-code", "Name", "Total"},
		{"", "Province", ""},
		{"#adm1+code", "#adm1+name", ""},
		{"AF01", "Kabul", "100"},
		{"AF02", "Herat", "200"},
	})

	out := Reconstruct(tbl, "xlsx")

	assert.Equal(t, []string{
		"Admin 1||P-code||#adm1+code",
		"Name||Province||#adm1+name",
		"Population||Total",
	}, out.Columns)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "AF01", out.Rows[0][0].Value)
	assert.Equal(t, "Herat", out.Rows[1][1].Value)
}

func TestReconstruct_HXLRowInCSV(t *testing.T) {
	tbl := New([]string{"adm1_pcode", "name"}, [][]string{
		{"#adm1+code", "#adm1+name"},
		{"AF01", "Kabul"},
		{"AF02", "Herat"},
	})

	out := Reconstruct(tbl, "csv")

	assert.Equal(t, []string{"adm1_pcode||#adm1+code", "name||#adm1+name"}, out.Columns)
	assert.Len(t, out.Rows, 2)
}

func TestReconstruct_HXLRowBeyondScanWindowIgnored(t *testing.T) {
	header := []string{"a", "b"}
	var rows [][]string
	for range 10 {
		rows = append(rows, []string{"x", "y"})
	}
	rows = append(rows, []string{"#adm1", "#name"})

	out := Reconstruct(New(header, rows), "csv")

	assert.Equal(t, header, out.Columns)
	assert.Len(t, out.Rows, 11)
}

func TestReconstruct_CSVWithoutTagsKeepsHeader(t *testing.T) {
	tbl := New([]string{"Admin1Pcode", "Name"}, [][]string{
		{"AF01", "Kabul"},
		{"AF02", "Herat"},
		{"AF03", "Balkh"},
	})

	out := Reconstruct(tbl, "csv")

	assert.Equal(t, []string{"Admin1Pcode", "Name"}, out.Columns)
	assert.Len(t, out.Rows, 3)
}

func TestReconstruct_SpreadsheetMergesThreeRowZone(t *testing.T) {
	tbl := New([]string{"Region", "", ""}, [][]string{
		{"Code", "Name", "Pop"},
		{"", "", "Total"},
		{"adm1", "label", "people"},
		{"AF01", "Kabul", "many"},
	})

	out := Reconstruct(tbl, "xlsx")

	assert.Equal(t, []string{"Region||Code||adm1", "Name||label", "Pop||Total||people"}, out.Columns)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, "AF01", out.Rows[0][0].Value)
}

func TestReconstruct_ShortSpreadsheetUsesAllRows(t *testing.T) {
	tbl := New([]string{"Region", "Name"}, [][]string{
		{"adm1 pcode", "adm1 name"},
		{"AF01", "Kabul"},
	})

	out := Reconstruct(tbl, "xlsx")

	assert.Equal(t, []string{"Region||adm1 pcode||AF01", "Name||adm1 name||Kabul"}, out.Columns)
	assert.Empty(t, out.Rows)
}

func TestReconstruct_IdempotentOnCleanTable(t *testing.T) {
	cases := map[string]*Table{
		"csv text": New([]string{"Admin1Pcode", "Name"}, [][]string{
			{"AF01", "Kabul"}, {"AF02", "Herat"},
		}),
		"typed": New([]string{"code", "value"}, [][]string{
			{"AF01", "1"}, {"AF02", "2"}, {"AF03", "3"},
		}),
	}
	for name, tbl := range cases {
		t.Run(name, func(t *testing.T) {
			once := Reconstruct(tbl, "csv")
			twice := Reconstruct(once, "csv")
			assert.Equal(t, once.Columns, twice.Columns)
			assert.Equal(t, once.Rows, twice.Rows)
		})
	}
}
