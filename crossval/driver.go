package crossval

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tsawler/rnn-gridsearch/grid"
	"github.com/tsawler/rnn-gridsearch/training"
)

// Model is a freshly initialised classifier that can be trained once
type Model interface {
	Fit(train, valid training.Dataset, epochs, batchSize int) (*training.History, error)
}

// Factory builds an untrained model for a grid point. seed drives all of
// the model's randomness.
type Factory func(p grid.Point, seed int64) (Model, error)

// Result describes one completed (fold, grid point) run
type Result struct {
	Fold     int
	Point    grid.Point
	History  *training.History
	Duration time.Duration
}

// Driver trains every grid point on every fold, fold-outer and
// grid-point-inner, recording per-epoch metrics
type Driver struct {
	Splitter StratifiedKFold
	Epochs   int
	Seed     int64 // base seed for model initialisation
	Points   []grid.Point
	Data     training.Dataset
	Labels   []int // class of every sample in Data, used for stratification
	Factory  Factory
	Logger   *zap.Logger
	OnResult func(Result) // optional, called after each run
}

// Run executes the cross-validated grid search. On error or cancellation
// it returns the tensor filled so far together with the error.
func (d *Driver) Run(ctx context.Context) (*Tensor, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Factory == nil {
		return nil, errors.New("driver has no model factory")
	}
	if len(d.Points) == 0 {
		return nil, errors.New("driver has no grid points")
	}
	if d.Data == nil {
		return nil, errors.New("driver has no dataset")
	}
	if d.Data.Len() != len(d.Labels) {
		return nil, errors.Errorf("dataset has %d samples but %d labels", d.Data.Len(), len(d.Labels))
	}

	splitter := d.Splitter
	if splitter.Logger == nil {
		splitter.Logger = logger
	}
	folds, err := splitter.Split(d.Labels)
	if err != nil {
		return nil, errors.Wrap(err, "splitting folds")
	}

	tensor, err := NewTensor(len(d.Points), len(folds), d.Epochs)
	if err != nil {
		return nil, err
	}

	for f, fold := range folds {
		train, err := training.NewSubsetDataset(d.Data, fold.Train)
		if err != nil {
			return tensor, errors.Wrapf(err, "fold %d", f)
		}
		valid, err := training.NewSubsetDataset(d.Data, fold.Test)
		if err != nil {
			return tensor, errors.Wrapf(err, "fold %d", f)
		}
		logger.Info("starting fold",
			zap.Int("fold", f), zap.Int("train", train.Len()), zap.Int("validation", valid.Len()))

		for i, p := range d.Points {
			if err := ctx.Err(); err != nil {
				return tensor, errors.Wrapf(err, "stopped before fold %d grid point %s", f, p)
			}

			start := time.Now()
			model, err := d.Factory(p, d.Seed+int64(f*len(d.Points)+i))
			if err != nil {
				return tensor, errors.Wrapf(err, "building model for fold %d grid point %s", f, p)
			}
			history, err := model.Fit(train, valid, d.Epochs, p.BatchSize)
			if err != nil {
				return tensor, errors.Wrapf(err, "training fold %d grid point %s", f, p)
			}
			if err := tensor.Set(i, f, history); err != nil {
				return tensor, errors.Wrapf(err, "recording fold %d grid point %s", f, p)
			}

			elapsed := time.Since(start)
			logger.Info("run complete",
				zap.Int("fold", f),
				zap.Stringer("point", p),
				zap.Float64s("val_acc", history.ValAccuracy()),
				zap.Float64s("val_macro_f1", history.ValMacroF1()),
				zap.Duration("elapsed", elapsed))

			if d.OnResult != nil {
				d.OnResult(Result{Fold: f, Point: p, History: history, Duration: elapsed})
			}
		}
	}
	return tensor, nil
}
