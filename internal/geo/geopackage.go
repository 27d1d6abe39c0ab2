package geo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hdx-tools/pcode-detector/internal/table"
)

func openGeoPackage(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrap(err, "geo: open geopackage")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: open geopackage")
	}
	return db, nil
}

func listGeoPackageLayers(ctx context.Context, path string) ([]string, error) {
	db, err := openGeoPackage(path)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM gpkg_contents
		 WHERE data_type IN ('features', 'attributes')
		 ORDER BY table_name`)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: list layers of %s", path)
	}
	defer rows.Close() //nolint:errcheck

	var layers []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "geo: scan layer name")
		}
		layers = append(layers, name)
	}
	return layers, eris.Wrap(rows.Err(), "geo: list layers")
}

// readGeoPackage reads a layer's attribute columns. The geometry column and
// the integer feature id are skipped.
func readGeoPackage(ctx context.Context, path, layer string, maxRows int) (*table.Table, error) {
	db, err := openGeoPackage(path)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	skip := make(map[string]bool)
	var geomCol string
	err = db.QueryRowContext(ctx,
		`SELECT column_name FROM gpkg_geometry_columns WHERE table_name = ?`, layer).Scan(&geomCol)
	switch {
	case err == nil:
		skip[strings.ToLower(geomCol)] = true
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, eris.Wrapf(err, "geo: geometry column of %s", layer)
	}

	pk, err := integerPrimaryKey(ctx, db, layer)
	if err != nil {
		return nil, err
	}
	if pk != "" {
		skip[strings.ToLower(pk)] = true
	}

	query := "SELECT * FROM " + quoteIdent(layer)
	if maxRows > 0 {
		query += fmt.Sprintf(" LIMIT %d", maxRows)
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read layer %s", layer)
	}
	defer rows.Close() //nolint:errcheck

	names, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "geo: layer columns")
	}
	var keep []int
	var columns []string
	for i, n := range names {
		if skip[strings.ToLower(n)] {
			continue
		}
		keep = append(keep, i)
		columns = append(columns, n)
	}

	var out [][]table.Cell
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "geo: scan feature")
		}
		row := make([]table.Cell, len(keep))
		for j, i := range keep {
			row[j] = cellOf(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "geo: read layer %s", layer)
	}
	return table.FromRows(columns, out), nil
}

func integerPrimaryKey(ctx context.Context, db *sql.DB, layer string) (string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(layer)+")")
	if err != nil {
		return "", eris.Wrapf(err, "geo: table info of %s", layer)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return "", eris.Wrap(err, "geo: scan table info")
		}
		if pk == 1 && strings.EqualFold(typ, "INTEGER") {
			return name, nil
		}
	}
	return "", eris.Wrap(rows.Err(), "geo: table info")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
