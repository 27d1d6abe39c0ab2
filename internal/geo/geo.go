// Package geo enumerates the layers of vector containers and reads their
// attribute tables, dropping geometry.
package geo

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/hdx-tools/pcode-detector/internal/model"
	"github.com/hdx-tools/pcode-detector/internal/table"
)

// Source is one readable unit on disk: a file, or a named layer inside a
// multi-layer container.
type Source struct {
	Path  string
	Layer string
}

// Name returns the layer name, or the file name for single-layer sources.
func (s Source) Name() string {
	if s.Layer != "" {
		return s.Layer
	}
	return filepath.Base(s.Path)
}

// Reader lists and reads vector layers.
type Reader struct {
	ogr *OGR
}

// NewReader creates a Reader. FileGDB access goes through ogr; a nil ogr
// uses the GDAL tools found on PATH.
func NewReader(ogr *OGR) *Reader {
	if ogr == nil {
		ogr = NewOGR("", "")
	}
	return &Reader{ogr: ogr}
}

// ListLayers returns the layer names of a gpkg or gdb container.
func (r *Reader) ListLayers(ctx context.Context, path, ext string) ([]string, error) {
	switch ext {
	case model.ExtGPKG:
		return listGeoPackageLayers(ctx, path)
	case model.ExtGDB:
		return r.ogr.Layers(ctx, path)
	}
	return nil, eris.Errorf("geo: %q is not a layered format", ext)
}

// Read returns up to maxRows attribute rows of src.
func (r *Reader) Read(ctx context.Context, src Source, ext string, maxRows int) (*table.Table, error) {
	switch strings.ToLower(ext) {
	case model.ExtSHP:
		return readShapefile(src.Path, maxRows)
	case model.ExtGeoJSON, model.ExtJSON:
		return readGeoJSON(src.Path, maxRows)
	case model.ExtTopoJSON:
		return readTopoJSON(src.Path, maxRows)
	case model.ExtGPKG:
		return readGeoPackage(ctx, src.Path, src.Layer, maxRows)
	case model.ExtGDB:
		return r.ogr.ReadLayer(ctx, src.Path, src.Layer, maxRows)
	}
	return nil, eris.Errorf("geo: unsupported format %q", ext)
}
