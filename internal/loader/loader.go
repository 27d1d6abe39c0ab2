// Package loader reads a bounded sample of every sheet, file, or layer of a
// resource into tables ready for p-code matching.
package loader

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/fetcher"
	"github.com/hdx-tools/pcode-detector/internal/geo"
	"github.com/hdx-tools/pcode-detector/internal/model"
	"github.com/hdx-tools/pcode-detector/internal/table"
)

// Unit is one loaded table, keyed by a generated id.
type Unit struct {
	ID    string
	Name  string
	Table *table.Table
}

// GeoReader reads vector sources.
type GeoReader interface {
	Read(ctx context.Context, src geo.Source, ext string, maxRows int) (*table.Table, error)
}

// Loader dispatches sources to the reader for their format.
type Loader struct {
	geo GeoReader
}

// New creates a Loader.
func New(geoReader GeoReader) *Loader {
	return &Loader{geo: geoReader}
}

// Load reads up to maxRows data rows from each source. A source that cannot
// be read is skipped; the last such failure is returned alongside whatever
// units were loaded from the others.
func (l *Loader) Load(ctx context.Context, sources []geo.Source, ext string, maxRows int) ([]Unit, error) {
	log := zap.L().With(zap.String("component", "loader"), zap.String("format", ext))

	var (
		units   []Unit
		lastErr error
	)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return units, eris.Wrap(err, "loader: cancelled")
		}

		loaded, err := l.loadSource(ctx, src, ext, maxRows)
		if err != nil {
			log.Debug("source unreadable", zap.String("source", src.Name()), zap.Error(err))
			lastErr = eris.Wrap(model.ErrReadFailed, err.Error())
			continue
		}
		units = append(units, loaded...)
	}
	return units, lastErr
}

func (l *Loader) loadSource(ctx context.Context, src geo.Source, ext string, maxRows int) ([]Unit, error) {
	switch ext {
	case model.ExtXLSX, model.ExtXLS:
		return loadWorkbook(src.Path, ext, maxRows)
	case model.ExtCSV:
		t, err := loadCSV(src.Path, maxRows)
		if err != nil {
			return nil, err
		}
		return scannable(src.Name(), table.Reconstruct(t, ext)), nil
	}

	if model.IsVector(ext) || model.IsContainer(ext) {
		t, err := l.geo.Read(ctx, src, ext, maxRows)
		if err != nil {
			return nil, err
		}
		return scannable(src.Name(), t), nil
	}
	return nil, eris.Errorf("loader: unsupported format %q", ext)
}

// scannable wraps t in a unit unless it has nothing left to match against.
// Blank cells become nulls, so an all-blank sheet only turns empty once
// reconstruction has dropped its null rows and columns.
func scannable(name string, t *table.Table) []Unit {
	if t == nil || t.Empty() {
		return nil
	}
	return []Unit{newUnit(name, t)}
}

func newUnit(name string, t *table.Table) Unit {
	return Unit{ID: uuid.NewString(), Name: name, Table: t}
}

func loadWorkbook(path, ext string, maxRows int) ([]Unit, error) {
	read := fetcher.ReadXLSXSheets
	if ext == model.ExtXLS {
		read = fetcher.ReadXLSSheets
	}
	// The header row does not count against the sample.
	limit := 0
	if maxRows > 0 {
		limit = maxRows + 1
	}
	sheets, err := read(path, limit)
	if err != nil {
		return nil, err
	}

	var units []Unit
	for _, s := range sheets {
		units = append(units, scannable(s.Name, table.Reconstruct(sheetTable(s.Rows), ext))...)
	}
	return units, nil
}

// sheetTable treats the first row as the header, as spreadsheet readers do.
func sheetTable(rows [][]string) *table.Table {
	if len(rows) == 0 {
		return &table.Table{}
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	header := make([]string, width)
	copy(header, rows[0])
	return table.New(header, rows[1:])
}

// loadCSV reads the sample as UTF-8 and, if the bytes are not valid UTF-8,
// once more as Latin-1.
func loadCSV(path string, maxRows int) (*table.Table, error) {
	records, err := readCSVFile(path, maxRows, false)
	if eris.Is(err, fetcher.ErrInvalidUTF8) {
		records, err = readCSVFile(path, maxRows, true)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &table.Table{}, nil
	}
	return table.New(records[0], records[1:]), nil
}

func readCSVFile(path string, maxRows int, latin1 bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "loader: open csv")
	}
	defer f.Close() //nolint:errcheck

	opts := fetcher.CSVOptions{
		LazyQuotes:    true,
		SkipMalformed: true,
		StrictUTF8:    !latin1,
	}
	if maxRows > 0 {
		opts.MaxRows = maxRows + 1
	}
	if latin1 {
		return fetcher.ReadCSV(fetcher.Latin1(f), opts)
	}
	return fetcher.ReadCSV(f, opts)
}
