package training

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel predicts sequence[0] % classes and reports fixed losses
type scriptedModel struct {
	classes    int
	trainLoss  float64
	evalLoss   float64
	trainCalls int
	evalCalls  int
	batchSizes []int
	failAt     int
}

func (m *scriptedModel) predict(seqs [][]int) []int {
	out := make([]int, len(seqs))
	for i, s := range seqs {
		out[i] = s[0] % m.classes
	}
	return out
}

func (m *scriptedModel) TrainBatch(seqs [][]int, labels []int) (BatchResult, error) {
	m.trainCalls++
	if m.failAt > 0 && m.trainCalls == m.failAt {
		return BatchResult{}, errors.New("boom")
	}
	m.batchSizes = append(m.batchSizes, len(seqs))
	correct := 0
	for i, p := range m.predict(seqs) {
		if p == labels[i] {
			correct++
		}
	}
	return BatchResult{Loss: m.trainLoss, Correct: correct, Samples: len(seqs)}, nil
}

func (m *scriptedModel) EvaluateBatch(seqs [][]int, labels []int) (BatchResult, []int, error) {
	m.evalCalls++
	preds := m.predict(seqs)
	correct := 0
	for i, p := range preds {
		if p == labels[i] {
			correct++
		}
	}
	return BatchResult{Loss: m.evalLoss, Correct: correct, Samples: len(seqs)}, preds, nil
}

func labelledDataset(t *testing.T, seqs [][]int, labels []int) *SimpleDataset {
	t.Helper()
	ds, err := NewSimpleDataset(seqs, labels)
	require.NoError(t, err)
	return ds
}

func TestTrainerFitRecordsHistory(t *testing.T) {
	// model predicts seq[0]; 3 of 5 train samples and 1 of 2 validation samples match
	train := labelledDataset(t,
		[][]int{{0}, {1}, {2}, {3}, {4}},
		[]int{0, 1, 2, 0, 0})
	valid := labelledDataset(t, [][]int{{1}, {2}}, []int{1, 0})

	model := &scriptedModel{classes: 5, trainLoss: 1.5, evalLoss: 0.5}
	trainer := NewTrainer(model, TrainingConfig{Epochs: 3, BatchSize: 2, Shuffle: true, Seed: 1, NumClasses: 5})

	history, err := trainer.Fit(train, valid)
	require.NoError(t, err)
	require.Len(t, history.Epochs, 3)

	assert.Equal(t, 9, model.trainCalls, "3 batches per epoch")
	assert.Equal(t, 3, model.evalCalls, "1 validation batch per epoch")
	assert.Equal(t, []float64{0.6, 0.6, 0.6}, history.Accuracy())
	assert.Equal(t, []float64{1.5, 1.5, 1.5}, history.Loss())
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, history.ValAccuracy())
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, history.ValLoss())
	assert.Equal(t, 3, history.Epochs[0].BatchCount)
}

func TestTrainerWeightsLossBySamples(t *testing.T) {
	train := labelledDataset(t, [][]int{{0}, {0}, {0}}, []int{0, 0, 0})
	model := &weightedLossModel{}
	trainer := NewTrainer(model, TrainingConfig{Epochs: 1, BatchSize: 2, NumClasses: 2})

	history, err := trainer.Fit(train, nil)
	require.NoError(t, err)
	// batch losses 1 (2 samples) and 4 (1 sample)
	assert.InDelta(t, 2.0, history.Epochs[0].TrainLoss, 1e-12)
	assert.Equal(t, 0.0, history.Epochs[0].ValidLoss)
}

type weightedLossModel struct{ calls int }

func (m *weightedLossModel) TrainBatch(seqs [][]int, _ []int) (BatchResult, error) {
	m.calls++
	loss := 1.0
	if m.calls == 2 {
		loss = 4.0
	}
	return BatchResult{Loss: loss, Correct: len(seqs), Samples: len(seqs)}, nil
}

func (m *weightedLossModel) EvaluateBatch(seqs [][]int, labels []int) (BatchResult, []int, error) {
	return BatchResult{Samples: len(seqs)}, labels, nil
}

func TestTrainerFitErrors(t *testing.T) {
	train := labelledDataset(t, [][]int{{0}, {1}}, []int{0, 1})

	_, err := NewTrainer(&scriptedModel{classes: 2}, TrainingConfig{Epochs: 0, BatchSize: 1, NumClasses: 2}).Fit(train, nil)
	assert.Error(t, err)

	empty := labelledDataset(t, nil, nil)
	_, err = NewTrainer(&scriptedModel{classes: 2}, TrainingConfig{Epochs: 1, BatchSize: 1, NumClasses: 2}).Fit(empty, nil)
	assert.Error(t, err)

	model := &scriptedModel{classes: 2, failAt: 2}
	_, err = NewTrainer(model, TrainingConfig{Epochs: 1, BatchSize: 1, NumClasses: 2}).Fit(train, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestTrainerEvaluate(t *testing.T) {
	ds := labelledDataset(t, [][]int{{0}, {1}, {1}, {0}}, []int{0, 1, 0, 0})
	trainer := NewTrainer(&scriptedModel{classes: 2, evalLoss: 0.25}, TrainingConfig{Epochs: 1, BatchSize: 3, NumClasses: 2})

	loss, acc, cm, err := trainer.Evaluate(ds)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, loss, 1e-12)
	assert.InDelta(t, 0.75, acc, 1e-12)
	assert.Equal(t, 4, cm.TotalSamples)
	assert.Equal(t, 1, cm.Matrix[0][1])
}

func TestTrainerVerboseOutput(t *testing.T) {
	var buf bytes.Buffer
	train := labelledDataset(t, [][]int{{0}, {1}}, []int{0, 1})
	valid := labelledDataset(t, [][]int{{0}}, []int{0})
	trainer := NewTrainer(&scriptedModel{classes: 2, trainLoss: 0.3, evalLoss: 0.2},
		TrainingConfig{Epochs: 2, BatchSize: 1, NumClasses: 2, Verbose: true, Output: &buf})

	_, err := trainer.Fit(train, valid)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Epoch 1/2")
	assert.Contains(t, out, "Epoch 2/2")
	assert.Contains(t, out, "val_acc: 1.0000")
	assert.Equal(t, 2, strings.Count(out, "- loss: 0.3000 - acc: 1.0000 - val_loss: 0.2000"))
}
