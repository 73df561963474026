package crossval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/rnn-gridsearch/training"
)

func history(valAcc ...float64) *training.History {
	h := &training.History{}
	for e, v := range valAcc {
		h.Epochs = append(h.Epochs, training.TrainingMetrics{
			Epoch:         e,
			TrainAccuracy: v / 2,
			TrainLoss:     1 - v/2,
			ValidAccuracy: v,
			ValidLoss:     1 - v,
			ValidMacroF1:  v * v,
		})
	}
	return h
}

func TestTensorSetAndAt(t *testing.T) {
	tensor, err := NewTensor(2, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, tensor.Points())
	assert.Equal(t, 3, tensor.Folds())
	assert.Equal(t, 2, tensor.Epochs())

	require.NoError(t, tensor.Set(1, 2, history(0.5, 0.8)))
	got := tensor.At(1, 2, 1)
	assert.InDelta(t, 0.4, got.Accuracy, 1e-12)
	assert.InDelta(t, 0.6, got.Loss, 1e-12)
	assert.InDelta(t, 0.8, got.ValAccuracy, 1e-12)
	assert.InDelta(t, 0.2, got.ValLoss, 1e-12)
	assert.InDelta(t, 0.64, got.ValMacroF1, 1e-12)
	assert.Equal(t, EpochMetrics{}, tensor.At(0, 2, 1))
	assert.True(t, tensor.Filled(1, 2))
	assert.False(t, tensor.Filled(1, 1))
	assert.False(t, tensor.Filled(5, 0))
}

func TestTensorSetErrors(t *testing.T) {
	tensor, err := NewTensor(1, 2, 2)
	require.NoError(t, err)

	assert.Error(t, tensor.Set(0, 0, history(0.5)))
	assert.Error(t, tensor.Set(0, 0, nil))
	assert.Error(t, tensor.Set(1, 0, history(0.5, 0.6)))
	assert.Error(t, tensor.Set(0, -1, history(0.5, 0.6)))

	require.NoError(t, tensor.Set(0, 0, history(0.5, 0.6)))
	assert.Error(t, tensor.Set(0, 0, history(0.5, 0.6)), "rows are written once")

	_, err = NewTensor(0, 1, 1)
	assert.Error(t, err)
}

func TestTensorSeriesUsesRecordedFolds(t *testing.T) {
	tensor, err := NewTensor(1, 3, 1)
	require.NoError(t, err)
	require.NoError(t, tensor.Set(0, 0, history(0.2)))
	require.NoError(t, tensor.Set(0, 2, history(0.6)))

	assert.Equal(t, []int{0, 2}, tensor.FilledFolds(0))
	valAcc := tensor.Series(0, 0, func(m EpochMetrics) float64 { return m.ValAccuracy })
	assert.Equal(t, []float64{0.2, 0.6}, valAcc)
}
