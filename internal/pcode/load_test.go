package pcode

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdx-tools/pcode-detector/internal/model"
)

type fakeCatalog struct {
	ds  model.Dataset
	err error
}

func (f fakeCatalog) ShowDataset(_ context.Context, id string) (model.Dataset, error) {
	if f.err != nil {
		return model.Dataset{}, f.err
	}
	if id != f.ds.Name {
		return model.Dataset{}, errors.New("not found")
	}
	return f.ds, nil
}

type fakeOpener map[string]string

func (f fakeOpener) Open(_ context.Context, url string) (io.ReadCloser, error) {
	body, ok := f[url]
	if !ok {
		return nil, errors.New("404")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

const globalCSV = `Location,Admin Level,P-Code,Name
#country+code,#geo+admin_level,#adm+code,#adm+name
AFG,1,AF01,Kabul
AFG,1,AF02,Kapisa
SOM,1,SO11,Awdal
`

var testRef = Reference{
	Dataset:  "global-pcodes",
	Resource: "global_pcodes.csv",
	Columns:  IndexColumns{PCode: "P-Code", Admin: "Location"},
}

func referenceCatalog() fakeCatalog {
	return fakeCatalog{ds: model.Dataset{
		Name: "global-pcodes",
		Resources: []model.Resource{
			{Name: "global_pcodes_adm_1_2.csv", URL: "https://x/adm12.csv"},
			{Name: "global_pcodes.csv", URL: "https://x/global.csv"},
		},
	}}
}

func TestLoadIndex(t *testing.T) {
	idx, err := LoadIndex(context.Background(), referenceCatalog(),
		fakeOpener{"https://x/global.csv": globalCSV}, testRef, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"AF01", "AF02"}, idx.Codes("AFG"))
	assert.Equal(t, []string{"SO11"}, idx.Codes("SOM"))
	assert.Equal(t, []string{"AF01", "AF02", "SO11"}, idx.Codes(World))
	assert.Equal(t, []string{"AFG", "SOM", World}, idx.Locations())
}

func TestLoadIndex_LocationFilter(t *testing.T) {
	idx, err := LoadIndex(context.Background(), referenceCatalog(),
		fakeOpener{"https://x/global.csv": globalCSV}, testRef, []string{"som"})
	require.NoError(t, err)
	assert.Empty(t, idx.Codes("AFG"))
	assert.Equal(t, []string{"SO11"}, idx.Codes(World))
}

func TestLoadIndex_MissingResource(t *testing.T) {
	ref := testRef
	ref.Resource = "nope.csv"
	_, err := LoadIndex(context.Background(), referenceCatalog(), fakeOpener{}, ref, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no resource")
}

func TestLoadIndex_MissingColumns(t *testing.T) {
	ref := testRef
	ref.Columns = IndexColumns{PCode: "pcode", Admin: "iso3"}
	_, err := LoadIndex(context.Background(), referenceCatalog(),
		fakeOpener{"https://x/global.csv": globalCSV}, ref, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference columns")
}

func TestLoadIndex_CatalogError(t *testing.T) {
	_, err := LoadIndex(context.Background(), fakeCatalog{err: errors.New("boom")}, fakeOpener{}, testRef, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read reference dataset")
}

func TestLoadIndex_DownloadError(t *testing.T) {
	_, err := LoadIndex(context.Background(), referenceCatalog(), fakeOpener{}, testRef, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download reference codes")
}

func TestLoadIndex_HeaderOnly(t *testing.T) {
	_, err := LoadIndex(context.Background(), referenceCatalog(),
		fakeOpener{"https://x/global.csv": "Location,P-Code\n"}, testRef, nil)
	require.Error(t, err)
}
