package crossval

import (
	"github.com/pkg/errors"

	"github.com/tsawler/rnn-gridsearch/training"
)

// EpochMetrics is the record of one epoch of one training run
type EpochMetrics struct {
	Accuracy    float64
	Loss        float64
	ValAccuracy float64
	ValLoss     float64
	ValMacroF1  float64
}

// Tensor holds EpochMetrics for every (grid point, fold, epoch). Each
// (point, fold) row is written once.
type Tensor struct {
	points, folds, epochs int
	cells                 []EpochMetrics
	filled                []bool // per (point, fold)
}

// NewTensor allocates a points × folds × epochs tensor
func NewTensor(points, folds, epochs int) (*Tensor, error) {
	if points < 1 || folds < 1 || epochs < 1 {
		return nil, errors.Errorf("tensor dimensions must be positive, got %d×%d×%d", points, folds, epochs)
	}
	return &Tensor{
		points: points,
		folds:  folds,
		epochs: epochs,
		cells:  make([]EpochMetrics, points*folds*epochs),
		filled: make([]bool, points*folds),
	}, nil
}

func (t *Tensor) Points() int { return t.points }
func (t *Tensor) Folds() int  { return t.folds }
func (t *Tensor) Epochs() int { return t.epochs }

func (t *Tensor) check(p, f int) error {
	if p < 0 || p >= t.points || f < 0 || f >= t.folds {
		return errors.Errorf("cell (%d, %d) outside %d×%d", p, f, t.points, t.folds)
	}
	return nil
}

// Set records the per-epoch history of point p on fold f
func (t *Tensor) Set(p, f int, h *training.History) error {
	if err := t.check(p, f); err != nil {
		return err
	}
	if h == nil || len(h.Epochs) != t.epochs {
		got := 0
		if h != nil {
			got = len(h.Epochs)
		}
		return errors.Errorf("history for point %d fold %d has %d epochs, expected %d", p, f, got, t.epochs)
	}
	if t.filled[p*t.folds+f] {
		return errors.Errorf("point %d fold %d already recorded", p, f)
	}
	base := (p*t.folds + f) * t.epochs
	for e, m := range h.Epochs {
		t.cells[base+e] = EpochMetrics{
			Accuracy:    m.TrainAccuracy,
			Loss:        m.TrainLoss,
			ValAccuracy: m.ValidAccuracy,
			ValLoss:     m.ValidLoss,
			ValMacroF1:  m.ValidMacroF1,
		}
	}
	t.filled[p*t.folds+f] = true
	return nil
}

// At returns the metrics of point p, fold f, epoch e
func (t *Tensor) At(p, f, e int) EpochMetrics {
	return t.cells[(p*t.folds+f)*t.epochs+e]
}

// Filled reports whether point p has been recorded for fold f
func (t *Tensor) Filled(p, f int) bool {
	return t.check(p, f) == nil && t.filled[p*t.folds+f]
}

// FilledFolds returns the folds recorded for point p, in order
func (t *Tensor) FilledFolds(p int) []int {
	var out []int
	for f := 0; f < t.folds; f++ {
		if t.Filled(p, f) {
			out = append(out, f)
		}
	}
	return out
}

// Series returns get(At(p, f, e)) for every recorded fold f of point p
func (t *Tensor) Series(p, e int, get func(EpochMetrics) float64) []float64 {
	folds := t.FilledFolds(p)
	out := make([]float64, len(folds))
	for i, f := range folds {
		out[i] = get(t.At(p, f, e))
	}
	return out
}
