package geo

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/hdx-tools/pcode-detector/internal/fetcher"
	"github.com/hdx-tools/pcode-detector/internal/table"
)

// OGR reads FileGDB layers through the GDAL command-line tools.
type OGR struct {
	infoBin    string
	convertBin string
}

// NewOGR creates an OGR wrapper. Empty paths use "ogrinfo" and "ogr2ogr".
func NewOGR(infoBin, convertBin string) *OGR {
	if infoBin == "" {
		infoBin = "ogrinfo"
	}
	if convertBin == "" {
		convertBin = "ogr2ogr"
	}
	return &OGR{infoBin: infoBin, convertBin: convertBin}
}

// Available reports whether both tools can be found.
func (o *OGR) Available() bool {
	for _, bin := range []string{o.infoBin, o.convertBin} {
		if _, err := exec.LookPath(bin); err != nil {
			return false
		}
	}
	return true
}

// layerLine matches ogrinfo summary lines such as "1: admin1 (Multi Polygon)".
var layerLine = regexp.MustCompile(`^\d+:\s+(.+?)(?:\s+\([^()]*\))?\s*$`)

// Layers lists the layer names of a dataset.
func (o *OGR) Layers(ctx context.Context, path string) ([]string, error) {
	out, err := o.run(ctx, o.infoBin, "-ro", "-q", path)
	if err != nil {
		return nil, err
	}
	return parseLayers(out), nil
}

func parseLayers(out []byte) []string {
	var layers []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if m := layerLine.FindStringSubmatch(sc.Text()); m != nil {
			layers = append(layers, m[1])
		}
	}
	return layers
}

// ReadLayer converts up to maxRows features of a layer to CSV on stdout and
// reads the attribute columns.
func (o *OGR) ReadLayer(ctx context.Context, path, layer string, maxRows int) (*table.Table, error) {
	args := []string{"-f", "CSV", "/vsistdout/", path, layer}
	if maxRows > 0 {
		args = append(args, "-limit", strconv.Itoa(maxRows))
	}
	out, err := o.run(ctx, o.convertBin, args...)
	if err != nil {
		return nil, err
	}

	records, err := fetcher.ReadCSV(bytes.NewReader(out), fetcher.CSVOptions{LazyQuotes: true})
	if err != nil {
		return nil, eris.Wrapf(err, "geo: parse layer %s", layer)
	}
	if len(records) == 0 {
		return &table.Table{}, nil
	}

	header := records[0]
	rows := make([][]table.Cell, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]table.Cell, len(header))
		for i := range header {
			if i < len(rec) {
				row[i] = textCell(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return table.FromRows(header, rows), nil
}

func (o *OGR) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "geo: %s failed: %s", bin, stderr.String())
	}
	return stdout.Bytes(), nil
}
