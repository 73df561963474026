package report

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/tsawler/rnn-gridsearch/crossval"
	"github.com/tsawler/rnn-gridsearch/grid"
)

// Summary holds per-epoch fold means and population standard deviations
// for one grid point
type Summary struct {
	Point grid.Point
	Folds int // folds that contributed

	Accuracy       []float64
	AccuracyStd    []float64
	ValAccuracy    []float64
	ValAccuracyStd []float64
	Loss           []float64
	LossStd        []float64
	ValLoss        []float64
	ValLossStd     []float64
	ValMacroF1     []float64
	ValMacroF1Std  []float64
}

// Epochs returns the number of aggregated epochs
func (s Summary) Epochs() int {
	return len(s.ValAccuracy)
}

// FinalValAccuracy returns the mean validation accuracy of the last epoch
func (s Summary) FinalValAccuracy() float64 {
	if len(s.ValAccuracy) == 0 {
		return 0
	}
	return s.ValAccuracy[len(s.ValAccuracy)-1]
}

type series struct {
	mean, std *[]float64
	get       func(crossval.EpochMetrics) float64
}

// Aggregate reduces the fold axis of t. Points that have not been recorded
// on every fold (a run cut short) are left out.
func Aggregate(t *crossval.Tensor, points []grid.Point) ([]Summary, error) {
	if t == nil {
		return nil, errors.New("no metrics to aggregate")
	}
	if len(points) != t.Points() {
		return nil, errors.Errorf("tensor has %d grid points, got %d", t.Points(), len(points))
	}

	var out []Summary
	for p, point := range points {
		folds := t.FilledFolds(p)
		if len(folds) != t.Folds() {
			continue
		}
		s := Summary{Point: point, Folds: len(folds)}
		all := []series{
			{&s.Accuracy, &s.AccuracyStd, func(m crossval.EpochMetrics) float64 { return m.Accuracy }},
			{&s.ValAccuracy, &s.ValAccuracyStd, func(m crossval.EpochMetrics) float64 { return m.ValAccuracy }},
			{&s.Loss, &s.LossStd, func(m crossval.EpochMetrics) float64 { return m.Loss }},
			{&s.ValLoss, &s.ValLossStd, func(m crossval.EpochMetrics) float64 { return m.ValLoss }},
			{&s.ValMacroF1, &s.ValMacroF1Std, func(m crossval.EpochMetrics) float64 { return m.ValMacroF1 }},
		}
		for _, sr := range all {
			*sr.mean = make([]float64, t.Epochs())
			*sr.std = make([]float64, t.Epochs())
			for e := 0; e < t.Epochs(); e++ {
				values := t.Series(p, e, sr.get)
				mean, err := stats.Mean(values)
				if err != nil {
					return nil, errors.Wrapf(err, "mean for %s epoch %d", point, e)
				}
				std, err := stats.StandardDeviationPopulation(values)
				if err != nil {
					return nil, errors.Wrapf(err, "std for %s epoch %d", point, e)
				}
				(*sr.mean)[e] = mean
				(*sr.std)[e] = std
			}
		}
		out = append(out, s)
	}
	return out, nil
}
