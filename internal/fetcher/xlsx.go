package fetcher

import (
	"strings"

	"github.com/extrame/xls"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet is the raw cell text of one worksheet.
type Sheet struct {
	Name string
	Rows [][]string
}

// ReadXLSXSheets reads every sheet of an XLSX workbook, keeping at most
// maxRows rows per sheet (0 = all).
func ReadXLSXSheets(path string, maxRows int) ([]Sheet, error) {
	f, err := openWorkbook(path, maxRows)
	if err != nil {
		return nil, err
	}

	sheets := make([]Sheet, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		s := Sheet{Name: sheet.Name}
		for _, row := range sheet.Rows {
			if maxRows > 0 && len(s.Rows) >= maxRows {
				break
			}
			if row == nil {
				s.Rows = append(s.Rows, nil)
				continue
			}
			s.Rows = append(s.Rows, rowToStrings(row))
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

// openWorkbook parses the workbook with the sheet XML truncated to maxRows,
// so oversized sheets are never fully materialized.
func openWorkbook(path string, maxRows int) (*xlsx.File, error) {
	limit := xlsx.NoRowLimit
	if maxRows > 0 {
		limit = maxRows
	}
	f, err := xlsx.OpenFileWithRowLimit(path, limit)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	return f, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}

// ReadXLSSheets reads every sheet of a legacy BIFF workbook, keeping at most
// maxRows rows per sheet (0 = all). The BIFF parser panics on some
// malformed files; those surface as errors.
func ReadXLSSheets(path string, maxRows int) (sheets []Sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			sheets, err = nil, eris.Errorf("xls: corrupt workbook: %v", r)
		}
	}()

	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, eris.Wrap(err, "xls: open file")
	}

	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		s := Sheet{Name: ws.Name}
		for r := 0; r <= int(ws.MaxRow); r++ {
			if maxRows > 0 && len(s.Rows) >= maxRows {
				break
			}
			row := ws.Row(r)
			if row == nil {
				s.Rows = append(s.Rows, nil)
				continue
			}
			var cells []string
			for c := 0; c <= row.LastCol(); c++ {
				cells = append(cells, strings.TrimSpace(row.Col(c)))
			}
			s.Rows = append(s.Rows, trimTrailingEmpty(cells))
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

func trimTrailingEmpty(cells []string) []string {
	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return cells[:n]
}
