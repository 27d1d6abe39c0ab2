// Package archive turns a downloaded resource into the concrete files and
// layers that should be loaded, unpacking zip and gzip containers into a
// scratch directory.
package archive

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/fetcher"
	"github.com/hdx-tools/pcode-detector/internal/geo"
	"github.com/hdx-tools/pcode-detector/internal/model"
)

// LayerLister enumerates the layers of a multi-layer container.
type LayerLister interface {
	ListLayers(ctx context.Context, path, ext string) ([]string, error)
}

// Result is the outcome of Extract. Artifacts must be passed to Cleanup once
// the sources have been read, whether or not Err is set.
type Result struct {
	Sources   []geo.Source
	Artifacts []string
	Err       error
}

// Extractor unpacks downloaded resources.
type Extractor struct {
	layers LayerLister
}

// New creates an Extractor.
func New(layers LayerLister) *Extractor {
	return &Extractor{layers: layers}
}

// Extract resolves the file at path into loadable sources for ext. Scratch
// directories are created under scratchRoot.
func (e *Extractor) Extract(ctx context.Context, path, ext, scratchRoot string) Result {
	name := strings.ToLower(filepath.Base(path))
	zipMarker := strings.Contains(name, ".zip")
	gzMarker := strings.Contains(name, ".gz")

	if model.IsSpreadsheet(ext) && !zipMarker {
		return Result{Sources: []geo.Source{{Path: path}}}
	}

	if gzMarker || zipMarker || fetcher.IsZIP(path) {
		return e.unpack(ctx, path, ext, scratchRoot, gzMarker)
	}

	if model.IsContainer(ext) {
		sources, err := e.expandLayers(ctx, []string{path}, ext)
		if err != nil {
			return Result{Artifacts: []string{path}, Err: err}
		}
		return Result{Sources: sources, Artifacts: []string{path}}
	}

	return Result{Sources: []geo.Source{{Path: path}}}
}

func (e *Extractor) unpack(ctx context.Context, path, ext, scratchRoot string, gz bool) Result {
	scratch := filepath.Join(scratchRoot, uuid.NewString())
	res := Result{Artifacts: []string{scratch, path}}
	log := zap.L().With(zap.String("component", "archive"), zap.String("file", filepath.Base(path)))

	if err := os.MkdirAll(scratch, 0o755); err != nil {
		res.Err = eris.Wrap(model.ErrExtractionFailed, err.Error())
		return res
	}

	if gz {
		dst := filepath.Join(scratch, strings.Replace(filepath.Base(path), ".gz", ".gpkg", 1))
		if _, err := fetcher.GunzipFile(path, dst); err != nil {
			log.Debug("gunzip failed", zap.Error(err))
			res.Err = eris.Wrap(model.ErrExtractionFailed, err.Error())
			return res
		}
	} else if _, err := fetcher.ExtractZIP(path, scratch); err != nil {
		log.Debug("unzip failed", zap.Error(err))
		res.Err = eris.Wrap(model.ErrExtractionFailed, err.Error())
		return res
	}

	candidates, err := findCandidates(scratch, ext)
	if err != nil {
		res.Err = eris.Wrap(model.ErrExtractionFailed, err.Error())
		return res
	}
	if len(candidates) > 1 {
		candidates = dropContainers(candidates)
	}
	if model.IsSpreadsheet(ext) && len(candidates) == 0 {
		candidates = []string{path}
	}

	if model.IsContainer(ext) {
		sources, err := e.expandLayers(ctx, candidates, ext)
		if err != nil {
			res.Err = err
			return res
		}
		res.Sources = sources
		return res
	}

	for _, c := range candidates {
		res.Sources = append(res.Sources, geo.Source{Path: c})
	}
	log.Debug("extracted archive", zap.Int("candidates", len(candidates)))
	return res
}

func (e *Extractor) expandLayers(ctx context.Context, containers []string, ext string) ([]geo.Source, error) {
	var sources []geo.Source
	for _, c := range containers {
		layers, err := e.layers.ListLayers(ctx, c, ext)
		if err != nil {
			return nil, eris.Wrap(model.ErrExtractionFailed, err.Error())
		}
		for _, l := range layers {
			sources = append(sources, geo.Source{Path: c, Layer: l})
		}
	}
	return sources, nil
}

// findCandidates returns every file or directory below root whose name ends
// with ".<ext>", compared case-insensitively, in lexical order.
func findCandidates(root, ext string) ([]string, error) {
	suffix := "." + strings.ToLower(ext)
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), suffix) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "archive: search extracted files")
	}
	sort.Strings(out)
	return out, nil
}

// dropContainers removes candidates that are a directory prefix of another
// candidate, keeping the innermost matches.
func dropContainers(candidates []string) []string {
	var out []string
	for _, c := range candidates {
		contains := false
		for _, other := range candidates {
			if other != c && strings.HasPrefix(other, c+string(filepath.Separator)) {
				contains = true
				break
			}
		}
		if !contains {
			out = append(out, c)
		}
	}
	return out
}

// Cleanup removes files and directories, ignoring ones already gone.
func Cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.RemoveAll(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("archive: cleanup failed", zap.String("path", p), zap.Error(err))
		}
	}
}
