// Package classifier decides whether a catalog resource carries p-codes.
package classifier

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/archive"
	"github.com/hdx-tools/pcode-detector/internal/geo"
	"github.com/hdx-tools/pcode-detector/internal/loader"
	"github.com/hdx-tools/pcode-detector/internal/model"
	"github.com/hdx-tools/pcode-detector/internal/notify"
	"github.com/hdx-tools/pcode-detector/internal/pcode"
	"github.com/hdx-tools/pcode-detector/internal/store"
)

// Catalog writes verdicts back to the resource metadata.
type Catalog interface {
	SetPCoded(ctx context.Context, resourceID string, pcoded bool) error
}

// Downloader fetches resources and looks up their size.
type Downloader interface {
	Fetch(ctx context.Context, rawURL, dir string) (string, error)
	ContentLength(ctx context.Context, rawURL string) (int64, error)
}

// Extractor turns a download into readable sources.
type Extractor interface {
	Extract(ctx context.Context, path, ext, scratchRoot string) archive.Result
}

// Loader reads sampled tables from sources.
type Loader interface {
	Load(ctx context.Context, sources []geo.Source, ext string, maxRows int) ([]loader.Unit, error)
}

// Settings are the detector thresholds and filters.
type Settings struct {
	OrgExceptions    []string
	AllowedFileTypes []string
	ResourceSize     int64
	NumberOfRows     int
	PercentMatch     float64
	Miscoded         bool
	TempDir          string
}

// Deps are the collaborators a Classifier calls. Sink and Store may be nil.
type Deps struct {
	Catalog    Catalog
	Downloader Downloader
	Extractor  Extractor
	Loader     Loader
	Sink       notify.Sink
	Store      store.Store
}

// Options control the side effects of one classification.
type Options struct {
	// Update writes Coded/NotCoded verdicts to the catalog.
	Update bool
	// Flag sends undetermined failures to the notification sink.
	Flag bool
	// KeepArtifacts leaves the scratch directory on disk.
	KeepArtifacts bool
}

// Result is the outcome of classifying one resource. Err records the
// pipeline failure seen along the way, if any.
type Result struct {
	Verdict  model.Verdict
	Miscoded bool
	Err      error
	// SkipReason names the metadata rule that decided the verdict without
	// reading the resource. Such verdicts are never written to the catalog.
	SkipReason string
}

const (
	skipArchived = "dataset archived"
	skipOrg      = "organization exempt"
	skipFileType = "file type not inspected"
	skipTooLarge = "resource too large"
)

// Classifier runs the download, extract, load and match pipeline.
type Classifier struct {
	settings  Settings
	deps      Deps
	index     *pcode.Index
	matcher   *pcode.Matcher
	canon     *pcode.Canonicalizer
	orgs      map[string]struct{}
	fileTypes map[string]struct{}
}

// New creates a Classifier matching against index.
func New(settings Settings, deps Deps, index *pcode.Index) *Classifier {
	if deps.Sink == nil {
		deps.Sink = notify.LogSink{}
	}
	if deps.Store == nil {
		deps.Store = store.Nop{}
	}
	c := &Classifier{
		settings:  settings,
		deps:      deps,
		index:     index,
		matcher:   pcode.NewMatcher(settings.PercentMatch),
		orgs:      toSet(settings.OrgExceptions),
		fileTypes: toSet(settings.AllowedFileTypes),
	}
	if settings.Miscoded {
		c.canon = index.Canonicalizer()
	}
	return c
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return out
}

// Classify determines the verdict for res. The returned error is non-nil
// only when the verdict could not be written back to the catalog.
func (c *Classifier) Classify(ctx context.Context, ds model.Dataset, res model.Resource, opts Options) (Result, error) {
	log := zap.L().With(
		zap.String("component", "classifier"),
		zap.String("dataset", ds.Name),
		zap.String("resource", res.Name),
		zap.String("resource_id", res.ID),
	)

	result := c.classify(ctx, log, ds, res, opts)
	if result.Err != nil {
		msg := fmt.Sprintf("%s: %s: %s", ds.Name, res.Name, ErrorKind(result.Err))
		log.Error("classifier: "+msg, zap.Error(result.Err))
		if opts.Flag && result.Verdict == model.VerdictUndetermined {
			c.deps.Sink.Notify(ctx, msg)
		}
	}
	if result.Miscoded {
		log.Warn("classifier: resource looks mis-pcoded")
	}

	var updateErr error
	updated := false
	if opts.Update && result.Verdict.Final() && result.SkipReason == "" {
		if err := c.deps.Catalog.SetPCoded(ctx, res.ID, result.Verdict == model.VerdictCoded); err != nil {
			updateErr = eris.Wrap(model.ErrMetadataUpdateFailed, err.Error())
			msg := fmt.Sprintf("%s: %s: %s", ds.Name, res.Name, ErrorKind(updateErr))
			log.Error("classifier: "+msg, zap.Error(err))
			if opts.Flag {
				c.deps.Sink.Notify(ctx, msg)
			}
		} else {
			updated = true
		}
	}

	c.record(ctx, log, ds, res, result, updated)
	log.Info("classifier: verdict",
		zap.String("verdict", string(result.Verdict)),
		zap.String("skipped", result.SkipReason),
		zap.Bool("updated", updated),
	)
	return result, updateErr
}

func (c *Classifier) classify(ctx context.Context, log *zap.Logger, ds model.Dataset, res model.Resource, opts Options) Result {
	if ds.Archived {
		log.Debug("classifier: " + skipArchived)
		return Result{Verdict: model.VerdictUndetermined, SkipReason: skipArchived}
	}
	if _, ok := c.orgs[strings.ToLower(ds.Organization)]; ok {
		log.Debug("classifier: "+skipOrg, zap.String("organization", ds.Organization))
		return Result{Verdict: model.VerdictNotCoded, SkipReason: skipOrg}
	}
	ext := model.FileExt(res.Format)
	if _, ok := c.fileTypes[ext]; !ok {
		log.Debug("classifier: "+skipFileType, zap.String("format", res.Format))
		return Result{Verdict: model.VerdictNotCoded, SkipReason: skipFileType}
	}
	if size := c.resourceSize(ctx, log, res); size >= c.settings.ResourceSize {
		log.Debug("classifier: "+skipTooLarge, zap.Int64("size", size))
		return Result{Verdict: model.VerdictNotCoded, SkipReason: skipTooLarge}
	}

	scratch, err := os.MkdirTemp(c.settings.TempDir, "pcode-")
	if err != nil {
		return Result{Verdict: model.VerdictUndetermined, Err: eris.Wrap(model.ErrDownloadFailed, err.Error())}
	}
	defer func() {
		if opts.KeepArtifacts {
			log.Info("classifier: keeping artifacts", zap.String("dir", scratch))
			return
		}
		archive.Cleanup(scratch)
	}()

	path, err := c.deps.Downloader.Fetch(ctx, res.URL, scratch)
	if err != nil {
		return Result{Verdict: model.VerdictUndetermined, Err: eris.Wrap(model.ErrDownloadFailed, err.Error())}
	}

	extracted := c.deps.Extractor.Extract(ctx, path, ext, scratch)
	if len(extracted.Sources) == 0 {
		return Result{Verdict: model.VerdictUndetermined, Err: extracted.Err}
	}

	units, loadErr := c.deps.Loader.Load(ctx, extracted.Sources, ext, c.settings.NumberOfRows)
	if len(units) == 0 {
		return Result{Verdict: model.VerdictUndetermined, Err: loadErr}
	}

	codes := c.index.CodesFor(ds.Locations)
	result := Result{Verdict: model.VerdictUndetermined, Err: loadErr}
	for _, u := range units {
		if m, ok := c.matcher.Scan(u.Table, codes); ok {
			log.Debug("classifier: coded column",
				zap.String("unit", u.Name),
				zap.String("column", m.Column),
				zap.Float64("fraction", m.Fraction),
			)
			result.Verdict = model.VerdictCoded
			return result
		}
	}
	if loadErr == nil {
		result.Verdict = model.VerdictNotCoded
	}
	result.Miscoded = c.miscoded(units, codes)
	return result
}

// resourceSize returns the declared size, probing API resources that do
// not declare one. An unmeasurable resource counts as too large.
func (c *Classifier) resourceSize(ctx context.Context, log *zap.Logger, res model.Resource) int64 {
	if res.Size > 0 || !res.IsAPI() {
		return res.Size
	}
	n, err := c.deps.Downloader.ContentLength(ctx, res.URL)
	if err != nil {
		log.Debug("classifier: size check failed", zap.Error(err))
		return c.settings.ResourceSize
	}
	return n
}

func (c *Classifier) miscoded(units []loader.Unit, codes pcode.CodeSet) bool {
	if c.canon == nil || len(codes) == 0 {
		return false
	}
	canonical := c.canon.Set(codes)
	for _, u := range units {
		if c.matcher.CheckMiscoded(u.Table, c.canon, canonical) {
			return true
		}
	}
	return false
}

func (c *Classifier) record(ctx context.Context, log *zap.Logger, ds model.Dataset, res model.Resource, result Result, updated bool) {
	rec := &store.Record{
		DatasetID:    ds.ID,
		DatasetName:  ds.Name,
		ResourceID:   res.ID,
		ResourceName: res.Name,
		Verdict:      result.Verdict,
		Miscoded:     result.Miscoded,
		Updated:      updated,
	}
	if result.Err != nil {
		rec.Error = ErrorKind(result.Err)
	}
	if err := c.deps.Store.Record(ctx, rec); err != nil {
		log.Warn("classifier: failed to record verdict", zap.Error(err))
	}
}

var errorKinds = []error{
	model.ErrDownloadFailed,
	model.ErrExtractionFailed,
	model.ErrReadFailed,
	model.ErrMetadataUpdateFailed,
}

// ErrorKind returns the operator-facing message for err.
func ErrorKind(err error) string {
	for _, kind := range errorKinds {
		if eris.Is(err, kind) {
			return kind.Error()
		}
	}
	return err.Error()
}
