package pcode

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/fetcher"
	"github.com/hdx-tools/pcode-detector/internal/model"
)

// Reference locates the global code list in the catalog.
type Reference struct {
	Dataset  string
	Resource string
	Columns  IndexColumns
}

// DatasetReader fetches dataset metadata.
type DatasetReader interface {
	ShowDataset(ctx context.Context, id string) (model.Dataset, error)
}

// Opener streams a remote file.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// LoadIndex downloads the reference code list and builds the index, keeping
// only the given locations when any are named.
func LoadIndex(ctx context.Context, catalog DatasetReader, opener Opener, ref Reference, locations []string) (*Index, error) {
	ds, err := catalog.ShowDataset(ctx, ref.Dataset)
	if err != nil {
		return nil, eris.Wrapf(err, "pcode: read reference dataset %s", ref.Dataset)
	}

	var res *model.Resource
	for i := range ds.Resources {
		if ds.Resources[i].Name == ref.Resource {
			res = &ds.Resources[i]
			break
		}
	}
	if res == nil {
		return nil, eris.Errorf("pcode: reference dataset %s has no resource %q", ref.Dataset, ref.Resource)
	}

	body, err := opener.Open(ctx, res.URL)
	if err != nil {
		return nil, eris.Wrap(err, "pcode: download reference codes")
	}
	defer body.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, body, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var b *indexBuilder
	for row := range rowCh {
		if b == nil {
			b, err = newIndexBuilder(<-headerCh, ref.Columns, locations)
			if err != nil {
				drain(rowCh)
				return nil, err
			}
		}
		b.add(row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "pcode: read reference codes")
	}
	if b == nil {
		return nil, eris.New("pcode: reference code list is empty")
	}

	zap.L().Info("loaded global p-codes",
		zap.String("dataset", ref.Dataset),
		zap.Int("locations", b.idx.Len()-1),
		zap.Int("codes", len(b.idx.codes[World])),
	)
	return b.idx, nil
}

func drain(ch <-chan []string) {
	for range ch {
	}
}
