package crossval

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/rnn-gridsearch/grid"
	"github.com/tsawler/rnn-gridsearch/training"
)

// fakeModel reports a validation accuracy derived from its seed and the
// size of its held-out set
type fakeModel struct {
	seed  int64
	calls *[]string
	fail  bool
}

func (m *fakeModel) Fit(train, valid training.Dataset, epochs, batchSize int) (*training.History, error) {
	*m.calls = append(*m.calls, fmt.Sprintf("seed=%d train=%d valid=%d batch=%d", m.seed, train.Len(), valid.Len(), batchSize))
	if m.fail {
		return nil, errors.New("diverged")
	}
	acc := make([]float64, epochs)
	for e := range acc {
		acc[e] = float64(m.seed)/100 + float64(e)/1000
	}
	return history(acc...), nil
}

func driverData(t *testing.T) (training.Dataset, []int) {
	labels := []int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1}
	seqs := make([][]int, len(labels))
	for i := range seqs {
		seqs[i] = []int{i, i}
	}
	ds, err := training.NewSimpleDataset(seqs, labels)
	require.NoError(t, err)
	return ds, labels
}

func testPoints() []grid.Point {
	return []grid.Point{
		{Index: 0, LayerType: grid.LSTM, NumLayers: 1, NumUnits: 8, Optimizer: "adam", BatchSize: 4},
		{Index: 1, LayerType: grid.GRU, NumLayers: 1, NumUnits: 8, Optimizer: "sgd", BatchSize: 2},
	}
}

func TestDriverRunOrderAndSeeds(t *testing.T) {
	ds, labels := driverData(t)
	var calls []string
	var results []Result

	d := &Driver{
		Splitter: StratifiedKFold{K: 2, Shuffle: true, Seed: 3},
		Epochs:   3,
		Seed:     10,
		Points:   testPoints(),
		Data:     ds,
		Labels:   labels,
		Factory: func(p grid.Point, seed int64) (Model, error) {
			return &fakeModel{seed: seed, calls: &calls}, nil
		},
		OnResult: func(r Result) { results = append(results, r) },
	}
	tensor, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"seed=10 train=5 valid=5 batch=4",
		"seed=11 train=5 valid=5 batch=2",
		"seed=12 train=5 valid=5 batch=4",
		"seed=13 train=5 valid=5 batch=2",
	}, calls)

	require.Len(t, results, 4)
	assert.Equal(t, 1, results[2].Fold)
	assert.Equal(t, 0, results[2].Point.Index)

	assert.Equal(t, 2, tensor.Points())
	assert.Equal(t, 2, tensor.Folds())
	assert.Equal(t, 3, tensor.Epochs())
	assert.InDelta(t, 0.13+0.002, tensor.At(1, 1, 2).ValAccuracy, 1e-12)
	assert.InDelta(t, 0.11, tensor.At(1, 0, 0).ValAccuracy, 1e-12)
}

func TestDriverWrapsModelErrors(t *testing.T) {
	ds, labels := driverData(t)
	var calls []string
	d := &Driver{
		Splitter: StratifiedKFold{K: 2},
		Epochs:   1,
		Points:   testPoints(),
		Data:     ds,
		Labels:   labels,
		Factory: func(p grid.Point, seed int64) (Model, error) {
			return &fakeModel{seed: seed, calls: &calls, fail: p.Index == 1}, nil
		},
	}
	tensor, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fold 0")
	assert.Contains(t, err.Error(), "diverged")
	require.NotNil(t, tensor)
	assert.True(t, tensor.Filled(0, 0))
	assert.False(t, tensor.Filled(1, 0))

	d.Factory = func(p grid.Point, seed int64) (Model, error) {
		return nil, errors.New("unsupported optimizer")
	}
	_, err = d.Run(context.Background())
	assert.Contains(t, err.Error(), "unsupported optimizer")
}

func TestDriverStopsOnCancel(t *testing.T) {
	ds, labels := driverData(t)
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())

	d := &Driver{
		Splitter: StratifiedKFold{K: 2},
		Epochs:   1,
		Points:   testPoints(),
		Data:     ds,
		Labels:   labels,
		Factory: func(p grid.Point, seed int64) (Model, error) {
			return &fakeModel{seed: seed, calls: &calls}, nil
		},
		OnResult: func(Result) { cancel() },
	}
	tensor, err := d.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.Len(t, calls, 1)
	assert.Equal(t, []int{0}, tensor.FilledFolds(0))
	assert.Empty(t, tensor.FilledFolds(1))
}

func TestDriverValidation(t *testing.T) {
	ds, labels := driverData(t)
	factory := func(p grid.Point, seed int64) (Model, error) { return nil, nil }

	_, err := (&Driver{Splitter: StratifiedKFold{K: 2}, Epochs: 1, Points: testPoints(), Data: ds, Labels: labels}).Run(context.Background())
	assert.Error(t, err, "missing factory")

	_, err = (&Driver{Splitter: StratifiedKFold{K: 2}, Epochs: 1, Data: ds, Labels: labels, Factory: factory}).Run(context.Background())
	assert.Error(t, err, "no points")

	_, err = (&Driver{Splitter: StratifiedKFold{K: 2}, Epochs: 1, Points: testPoints(), Labels: labels, Factory: factory}).Run(context.Background())
	assert.EqualError(t, err, "driver has no dataset")

	_, err = (&Driver{Splitter: StratifiedKFold{K: 2}, Epochs: 1, Points: testPoints(), Data: ds, Labels: labels[:3], Factory: factory}).Run(context.Background())
	assert.Error(t, err, "label count mismatch")

	_, err = (&Driver{Splitter: StratifiedKFold{K: 20}, Epochs: 1, Points: testPoints(), Data: ds, Labels: labels, Factory: factory}).Run(context.Background())
	assert.Error(t, err, "too many folds")
}
