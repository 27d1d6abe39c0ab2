package geo

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/hdx-tools/pcode-detector/internal/table"
)

func readShapefile(path string, maxRows int) (*table.Table, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = strings.TrimRight(f.String(), "\x00")
	}

	var rows [][]table.Cell
	for reader.Next() {
		if maxRows > 0 && len(rows) >= maxRows {
			break
		}
		row := make([]table.Cell, len(fields))
		for i := range fields {
			row[i] = textCell(reader.Attribute(i))
		}
		rows = append(rows, row)
	}
	return table.FromRows(columns, rows), nil
}
