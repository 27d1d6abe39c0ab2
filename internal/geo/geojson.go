package geo

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/table"
)

// plainFeature keeps only the properties of a feature.
type plainFeature struct {
	Properties map[string]any `json:"properties"`
}

func readGeoJSON(path string, maxRows int) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: read geojson")
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "geo: decode geojson")
	}
	if head.Type != "FeatureCollection" && head.Type != "Feature" {
		return nil, eris.Errorf("geo: geojson type %q has no attributes", head.Type)
	}

	props, err := decodeFeatures(data, head.Type)
	if err != nil {
		// Attributes are still usable when a geometry is malformed or of a
		// type go-geom does not know.
		zap.L().Debug("geo: geometry rejected, reading properties only", zap.String("path", path), zap.Error(err))
		if props, err = decodePlainFeatures(data, head.Type); err != nil {
			return nil, err
		}
	}

	if maxRows > 0 && len(props) > maxRows {
		props = props[:maxRows]
	}
	return propertiesTable(props), nil
}

// decodeFeatures decodes features and their geometries with go-geom.
func decodeFeatures(data []byte, kind string) ([]map[string]any, error) {
	if kind == "Feature" {
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "geo: decode geojson feature")
		}
		return []map[string]any{f.Properties}, nil
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "geo: decode geojson feature collection")
	}
	props := make([]map[string]any, 0, len(fc.Features))
	for _, f := range fc.Features {
		props = append(props, f.Properties)
	}
	return props, nil
}

// decodePlainFeatures reads properties without looking at geometries.
func decodePlainFeatures(data []byte, kind string) ([]map[string]any, error) {
	if kind == "Feature" {
		var f plainFeature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "geo: decode geojson")
		}
		return []map[string]any{f.Properties}, nil
	}

	var doc struct {
		Features []plainFeature `json:"features"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "geo: decode geojson")
	}
	props := make([]map[string]any, 0, len(doc.Features))
	for _, f := range doc.Features {
		props = append(props, f.Properties)
	}
	return props, nil
}

// propertiesTable turns feature property maps into a table whose columns are
// the sorted union of all keys.
func propertiesTable(props []map[string]any) *table.Table {
	seen := make(map[string]struct{})
	var columns []string
	for _, p := range props {
		for k := range p {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	records := make([]map[string]table.Cell, len(props))
	for i, p := range props {
		rec := make(map[string]table.Cell, len(p))
		for k, v := range p {
			rec[k] = cellOf(v)
		}
		records[i] = rec
	}
	return table.FromRecords(columns, records)
}
