package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hdx-tools/pcode-detector/internal/classifier"
	"github.com/hdx-tools/pcode-detector/internal/model"
)

var (
	batchLimit  int
	batchQuery  string
	batchReport string
	batchUpdate bool
	batchFlag   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Classify every resource of the datasets matching a catalog search",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initDetector(ctx, "batch", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		query := batchQuery
		if query == "" {
			query = cfg.Catalog.SearchQuery
		}
		datasets, err := env.Catalog.Search(ctx, query)
		if err != nil {
			return eris.Wrap(err, "batch: search catalog")
		}
		if batchLimit > 0 && len(datasets) > batchLimit {
			datasets = datasets[:batchLimit]
		}

		opts := classifier.Options{Update: batchUpdate, Flag: batchFlag}
		rows, err := processBatch(ctx, datasets, cfg.Batch.MaxConcurrent, func(ctx context.Context, ds model.Dataset, res model.Resource) (classifier.Result, error) {
			return env.Classifier.Classify(ctx, ds, res, opts)
		})
		if err != nil {
			return err
		}

		path := batchReport
		if path == "" {
			path = cfg.Batch.ReportPath
		}
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "batch: create report")
		}
		defer f.Close() //nolint:errcheck
		if err := writeReport(f, rows); err != nil {
			return err
		}
		zap.L().Info("batch report written", zap.String("path", path), zap.Int("rows", len(rows)))
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of datasets to process (0 for all)")
	batchCmd.Flags().StringVar(&batchQuery, "query", "", "catalog filter query (default from config)")
	batchCmd.Flags().StringVar(&batchReport, "report", "", "CSV report path (default from config)")
	batchCmd.Flags().BoolVar(&batchUpdate, "update", false, "write verdicts back to the catalog")
	batchCmd.Flags().BoolVar(&batchFlag, "flag", false, "send undetermined failures to the alert channel")
	rootCmd.AddCommand(batchCmd)
}

// classifyFunc is the callback signature for classifying one resource.
type classifyFunc func(ctx context.Context, ds model.Dataset, res model.Resource) (classifier.Result, error)

// reportRow is one line of the batch report.
type reportRow struct {
	DatasetName  string
	DatasetTitle string
	ResourceName string
	Verdict      model.Verdict
	Error        string
}

// processBatch classifies every resource with bounded concurrency. Rows come
// back in dataset then resource order. A failed write-back is reported in
// its row and never stops the batch.
func processBatch(ctx context.Context, datasets []model.Dataset, concurrency int, classify classifyFunc) ([]reportRow, error) {
	type job struct {
		ds  model.Dataset
		res model.Resource
	}
	var jobs []job
	for _, ds := range datasets {
		for _, res := range ds.Resources {
			jobs = append(jobs, job{ds: ds, res: res})
		}
	}
	if len(jobs) == 0 {
		zap.L().Info("no resources to classify")
		return nil, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("datasets", len(datasets)),
		zap.Int("resources", len(jobs)),
		zap.Int("concurrency", concurrency),
	)

	rows := make([]reportRow, len(jobs))
	var mu sync.Mutex
	counts := make(map[model.Verdict]int)
	var updateFailures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, j := range jobs {
		g.Go(func() error {
			result, err := classify(gctx, j.ds, j.res)
			row := reportRow{
				DatasetName:  j.ds.Name,
				DatasetTitle: j.ds.Title,
				ResourceName: j.res.Name,
				Verdict:      result.Verdict,
			}
			switch {
			case err != nil:
				updateFailures.Add(1)
				row.Error = classifier.ErrorKind(err)
			case result.Err != nil:
				row.Error = classifier.ErrorKind(result.Err)
			}
			rows[i] = row

			mu.Lock()
			counts[result.Verdict]++
			mu.Unlock()
			return nil // don't abort batch on individual failure
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int("coded", counts[model.VerdictCoded]),
		zap.Int("not_coded", counts[model.VerdictNotCoded]),
		zap.Int("undetermined", counts[model.VerdictUndetermined]),
		zap.Int64("update_failures", updateFailures.Load()),
	)
	return rows, nil
}

// pcodedCell renders a verdict the way the catalog field reads: true,
// false, or empty when undetermined.
func pcodedCell(v model.Verdict) string {
	switch v {
	case model.VerdictCoded:
		return "true"
	case model.VerdictNotCoded:
		return "false"
	}
	return ""
}

func writeReport(w io.Writer, rows []reportRow) error {
	cw := csv.NewWriter(w)

	header := []string{"dataset name", "dataset title", "resource name", "pcoded", "error"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "batch: write CSV header")
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.DatasetName, r.DatasetTitle, r.ResourceName, pcodedCell(r.Verdict), r.Error}); err != nil {
			return eris.Wrap(err, "batch: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "batch: flush CSV")
}
