package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/archive"
	"github.com/hdx-tools/pcode-detector/internal/catalog"
	"github.com/hdx-tools/pcode-detector/internal/classifier"
	"github.com/hdx-tools/pcode-detector/internal/config"
	"github.com/hdx-tools/pcode-detector/internal/fetcher"
	"github.com/hdx-tools/pcode-detector/internal/geo"
	"github.com/hdx-tools/pcode-detector/internal/loader"
	"github.com/hdx-tools/pcode-detector/internal/notify"
	"github.com/hdx-tools/pcode-detector/internal/pcode"
	"github.com/hdx-tools/pcode-detector/internal/resilience"
	"github.com/hdx-tools/pcode-detector/internal/store"
	"github.com/hdx-tools/pcode-detector/pkg/ckan"
)

// detectorEnv holds the initialized collaborators needed by the classify,
// batch and listen commands.
type detectorEnv struct {
	Store      store.Store
	Catalog    *catalog.Catalog
	Downloader *fetcher.Downloader
	Sink       notify.Sink
	Index      *pcode.Index
	Classifier *classifier.Classifier
}

// Close releases resources held by the environment.
func (e *detectorEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func newCatalog(c *config.Config) *catalog.Catalog {
	client := ckan.NewClient(c.Catalog.BaseURL,
		ckan.WithAPIKey(c.Catalog.APIKey),
		ckan.WithUserAgent(c.Catalog.UserAgent),
		ckan.WithRateLimit(c.Catalog.RatePerSec),
		ckan.WithHTTPClient(newHTTPClient(c.Catalog.TimeoutSecs)),
	)
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:      "catalog-update",
		Threshold: c.Catalog.BreakerThreshold,
		Cooldown:  time.Duration(c.Catalog.BreakerResetSecs) * time.Second,
	})
	return catalog.New(client, catalog.WithUpdateBreaker(breaker))
}

func newHTTPClient(timeoutSecs int) *http.Client {
	if timeoutSecs <= 0 {
		timeoutSecs = 60
	}
	return &http.Client{Timeout: time.Duration(timeoutSecs) * time.Second}
}

func newDownloader(c *config.Config) *fetcher.Downloader {
	timeout := time.Duration(c.Download.TimeoutSecs) * time.Second
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   c.Catalog.UserAgent,
		Timeout:     timeout,
		MaxAttempts: c.Download.MaxRetries,
		RatePerSec:  c.Download.RatePerSec,
	})
	ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout})
	return fetcher.NewDownloader(httpFetcher, ftpFetcher)
}

func reference(c *config.Config) pcode.Reference {
	return pcode.Reference{
		Dataset:  c.GlobalPCodes.Dataset,
		Resource: c.GlobalPCodes.Name,
		Columns:  pcode.IndexColumns{PCode: c.GlobalPCodes.PCode, Admin: c.GlobalPCodes.Admin},
	}
}

func settings(c *config.Config) classifier.Settings {
	return classifier.Settings{
		OrgExceptions:    c.Detector.OrgExceptions,
		AllowedFileTypes: c.Detector.AllowedFileTypes,
		ResourceSize:     c.Detector.ResourceSize,
		NumberOfRows:     c.Detector.NumberOfRows,
		PercentMatch:     c.Detector.PercentMatch,
		Miscoded:         c.Detector.Miscoded,
		TempDir:          c.Detector.TempDir,
	}
}

// initDetector validates the configuration for mode, opens the verdict
// store, loads the reference codes for locations (all when empty) and
// builds the classifier. Callers should defer env.Close().
func initDetector(ctx context.Context, mode string, locations []string) (*detectorEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	env := &detectorEnv{
		Store:      st,
		Catalog:    newCatalog(cfg),
		Downloader: newDownloader(cfg),
		Sink:       notify.New(cfg.Slack.Token, cfg.Slack.Channel, cfg.Slack.BaseURL),
	}

	// Transient network failures while fetching the code list are retried.
	err = resilience.Retry(ctx, resilience.RetryConfig{Name: "load reference codes", Attempts: 3},
		func(ctx context.Context) error {
			var loadErr error
			env.Index, loadErr = pcode.LoadIndex(ctx, env.Catalog, env.Downloader, reference(cfg), locations)
			return loadErr
		})
	if err != nil {
		env.Close()
		return nil, err
	}

	reader := geo.NewReader(geo.NewOGR(cfg.GDAL.OGRInfoPath, cfg.GDAL.OGR2OGRPath))
	env.Classifier = classifier.New(settings(cfg), classifier.Deps{
		Catalog:    env.Catalog,
		Downloader: env.Downloader,
		Extractor:  archive.New(reader),
		Loader:     loader.New(reader),
		Sink:       env.Sink,
		Store:      env.Store,
	}, env.Index)

	zap.L().Info("detector ready",
		zap.String("mode", mode),
		zap.Int("locations", env.Index.Len()),
		zap.String("store", cfg.Store.Driver),
	)
	return env, nil
}
