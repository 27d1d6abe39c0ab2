package listener

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/classifier"
	"github.com/hdx-tools/pcode-detector/internal/model"
)

// Catalog looks up dataset metadata.
type Catalog interface {
	ShowDataset(ctx context.Context, id string) (model.Dataset, error)
}

// Classifier decides a resource's verdict.
type Classifier interface {
	Classify(ctx context.Context, ds model.Dataset, res model.Resource, opts classifier.Options) (classifier.Result, error)
}

// Worker classifies the resource named by each event, writing the verdict
// back and flagging failures.
type Worker struct {
	catalog    Catalog
	classifier Classifier
	opts       classifier.Options
}

// NewWorker creates a Worker. Events are classified with Update and Flag set.
func NewWorker(catalog Catalog, c Classifier) *Worker {
	return &Worker{
		catalog:    catalog,
		classifier: c,
		opts:       classifier.Options{Update: true, Flag: true},
	}
}

// Handle implements Handler.
func (w *Worker) Handle(ctx context.Context, ev model.Event) error {
	ds, err := w.catalog.ShowDataset(ctx, ev.DatasetID)
	if err != nil {
		return eris.Wrapf(err, "listener: show dataset %s", ev.DatasetID)
	}
	res, ok := ds.Resource(ev.ResourceID)
	if !ok {
		return eris.Errorf("listener: dataset %s has no resource %s", ds.Name, ev.ResourceID)
	}

	result, err := w.classifier.Classify(ctx, ds, res, w.opts)
	if err != nil {
		return err
	}
	zap.L().Info("listener: resource classified",
		zap.String("dataset", ds.Name),
		zap.String("resource", res.Name),
		zap.String("verdict", string(result.Verdict)),
	)
	return nil
}
