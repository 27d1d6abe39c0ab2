package geo

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/hdx-tools/pcode-detector/internal/fetcher"
	"github.com/hdx-tools/pcode-detector/internal/table"
)

type topology struct {
	Type    string                    `json:"type"`
	Objects map[string]topologyObject `json:"objects"`
}

type topologyObject struct {
	Type       string           `json:"type"`
	Properties map[string]any   `json:"properties"`
	Geometries []topologyObject `json:"geometries"`
}

// readTopoJSON reads the properties of the first object (by name) of a
// topology, the layer GDAL opens by default.
func readTopoJSON(path string, maxRows int) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: open topojson")
	}
	defer f.Close() //nolint:errcheck

	topo, err := fetcher.DecodeJSONObject[topology](f)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode topojson")
	}
	if topo.Type != "Topology" || len(topo.Objects) == 0 {
		return nil, eris.New("geo: topojson has no objects")
	}

	names := make([]string, 0, len(topo.Objects))
	for name := range topo.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	obj := topo.Objects[names[0]]
	geometries := obj.Geometries
	if obj.Type != "GeometryCollection" {
		geometries = []topologyObject{obj}
	}

	var props []map[string]any
	for _, g := range geometries {
		if maxRows > 0 && len(props) >= maxRows {
			break
		}
		props = append(props, g.Properties)
	}
	return propertiesTable(props), nil
}
