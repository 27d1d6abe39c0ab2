package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

// ErrInvalidUTF8 is returned by strict readers on bytes that are not UTF-8.
var ErrInvalidUTF8 = eris.New("csv: invalid utf-8")

// CSVOptions configures the CSV readers.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh   chan<- []string // optional: receives the header row
	Comment    rune            // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
	// MaxRows caps the records returned, header included. 0 = unlimited.
	MaxRows int
	// SkipMalformed drops unparseable records and records wider than the
	// first record instead of failing.
	SkipMalformed bool
	// StrictUTF8 fails with ErrInvalidUTF8 on the first invalid field.
	StrictUTF8 bool
}

const utf8BOM = "\ufeff"

func newCSVReader(r io.Reader, opts CSVOptions) *csv.Reader {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields
	return reader
}

// csvRecords reads records one at a time, applying the option-driven
// cleanup shared by both readers.
type csvRecords struct {
	reader *csv.Reader
	opts   CSVOptions
	first  bool
	width  int
}

func (c *csvRecords) next() ([]string, error) {
	for {
		record, err := c.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			var pe *csv.ParseError
			if c.opts.SkipMalformed && errors.As(err, &pe) {
				continue
			}
			return nil, eris.Wrap(err, "csv: read row")
		}

		if c.first {
			c.first = false
			record[0] = strings.TrimPrefix(record[0], utf8BOM)
			c.width = len(record)
		} else if c.opts.SkipMalformed && len(record) > c.width {
			continue
		}

		for i, field := range record {
			if c.opts.StrictUTF8 && !utf8.ValidString(field) {
				return nil, ErrInvalidUTF8
			}
			if c.opts.TrimSpace {
				record[i] = strings.TrimSpace(field)
			}
		}
		return record, nil
	}
}

// ReadCSV reads up to opts.MaxRows records.
func ReadCSV(r io.Reader, opts CSVOptions) ([][]string, error) {
	recs := &csvRecords{reader: newCSVReader(r, opts), opts: opts, first: true}

	var rows [][]string
	for opts.MaxRows <= 0 || len(rows) < opts.MaxRows {
		record, err := recs.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// Latin1 decodes an ISO-8859-1 stream into UTF-8.
func Latin1(r io.Reader) io.Reader {
	return charmap.ISO8859_1.NewDecoder().Reader(r)
}

// StreamCSV reads a CSV file and sends rows to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		recs := &csvRecords{reader: newCSVReader(r, opts), opts: opts, first: true}
		header := opts.HasHeader
		sent := 0

		for opts.MaxRows <= 0 || sent < opts.MaxRows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := recs.next()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- err
				return
			}

			if header {
				header = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}

			select {
			case rowCh <- record:
				sent++
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
