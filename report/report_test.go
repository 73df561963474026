package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/rnn-gridsearch/crossval"
	"github.com/tsawler/rnn-gridsearch/grid"
	"github.com/tsawler/rnn-gridsearch/training"
)

func point(i int, kind grid.RecurrentKind) grid.Point {
	return grid.Point{
		Index: i, LayerType: kind, NumLayers: 1, NumUnits: 128,
		Dropout: 0.1, RecurrentDropout: 0.1, SpatialDropout: 0.1,
		Optimizer: "adam", BatchSize: 32,
	}
}

func historyOf(valAcc ...float64) *training.History {
	h := &training.History{}
	for _, v := range valAcc {
		h.Epochs = append(h.Epochs, training.TrainingMetrics{
			TrainAccuracy: v, TrainLoss: 1, ValidAccuracy: v, ValidLoss: 2, ValidMacroF1: v / 2,
		})
	}
	return h
}

func TestAggregateMeanAndPopulationStd(t *testing.T) {
	tensor, err := crossval.NewTensor(2, 2, 2)
	require.NoError(t, err)
	require.NoError(t, tensor.Set(0, 0, historyOf(2, 0.5)))
	require.NoError(t, tensor.Set(0, 1, historyOf(4, 0.5)))
	require.NoError(t, tensor.Set(1, 0, historyOf(0.3, 0.3)))
	require.NoError(t, tensor.Set(1, 1, historyOf(0.3, 0.3)))

	points := []grid.Point{point(0, grid.LSTM), point(1, grid.GRU)}
	summaries, err := Aggregate(tensor, points)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	s := summaries[0]
	assert.Equal(t, 2, s.Folds)
	assert.InDelta(t, 3, s.ValAccuracy[0], 1e-12)
	assert.InDelta(t, 1, s.ValAccuracyStd[0], 1e-12)
	assert.InDelta(t, 0.5, s.ValAccuracy[1], 1e-12)
	assert.InDelta(t, 0, s.ValAccuracyStd[1], 1e-12)
	assert.InDelta(t, 2, s.ValLoss[1], 1e-12)
	assert.InDelta(t, 0, s.LossStd[0], 1e-12)
	assert.InDelta(t, 1.5, s.ValMacroF1[0], 1e-12)
	assert.InDelta(t, 0.5, s.ValMacroF1Std[0], 1e-12)

	constant := summaries[1]
	assert.InDeltaSlice(t, []float64{0.3, 0.3}, constant.Accuracy, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0}, constant.AccuracyStd, 1e-12)
}

func TestAggregateSkipsIncompletePoints(t *testing.T) {
	tensor, err := crossval.NewTensor(3, 2, 1)
	require.NoError(t, err)
	require.NoError(t, tensor.Set(0, 0, historyOf(0.2)))
	require.NoError(t, tensor.Set(1, 0, historyOf(0.5)))
	require.NoError(t, tensor.Set(0, 1, historyOf(0.4)))

	points := []grid.Point{point(0, grid.LSTM), point(1, grid.GRU), point(2, grid.BiLSTM)}
	summaries, err := Aggregate(tensor, points)
	require.NoError(t, err)
	require.Len(t, summaries, 1, "only points trained on every fold are reported")
	assert.Equal(t, 0, summaries[0].Point.Index)
	assert.Equal(t, 2, summaries[0].Folds)
	assert.InDelta(t, 0.3, summaries[0].ValAccuracy[0], 1e-12)
	assert.InDelta(t, 0.1, summaries[0].ValAccuracyStd[0], 1e-12)

	_, err = Aggregate(tensor, []grid.Point{point(0, grid.LSTM)})
	assert.Error(t, err)
	_, err = Aggregate(nil, nil)
	assert.Error(t, err)
}

func TestWriteMetricsBlock(t *testing.T) {
	s := Summary{
		Point:          point(0, grid.LSTM),
		Accuracy:       []float64{0.5, 0.61234},
		AccuracyStd:    []float64{0.01, 0.02},
		ValAccuracy:    []float64{0.4, 0.45},
		ValAccuracyStd: []float64{0, 0.1},
		Loss:           []float64{1.2, 1},
		LossStd:        []float64{0.3, 0.2},
		ValLoss:        []float64{1.3, 1.1},
		ValLossStd:     []float64{0.05, 0.04},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, []Summary{s}))

	expected := strings.Join([]string{
		"-------------------------",
		"('lstm', 1, 128, 0.1, 0.1, 0.1, 'adam', 32)",
		"-------------------------",
		"accuracy", "0.5000", "0.6123",
		"std", "0.0100", "0.0200",
		"validation accuracy", "0.4000", "0.4500",
		"std", "0.0000", "0.1000",
		"loss", "1.2000", "1.0000",
		"std", "0.3000", "0.2000",
		"validation loss", "1.3000", "1.1000",
		"std", "0.0500", "0.0400",
	}, "\n") + "\n"
	assert.Equal(t, expected, buf.String())
}

func TestAppendMetricsFileAppends(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "Metrics.txt")
	s := Summary{Point: point(0, grid.GRU), Accuracy: []float64{1}}
	require.NoError(t, AppendMetricsFile(path, []Summary{s}))
	require.NoError(t, AppendMetricsFile(path, []Summary{s}))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(buf), "('gru', 1, 128"))
	assert.Equal(t, 4, strings.Count(string(buf), "-------------------------\n"))
}

func TestBestFirstWinsOnTies(t *testing.T) {
	summaries := []Summary{
		{Point: point(0, grid.LSTM), ValAccuracy: []float64{0.9, 0.5}},
		{Point: point(1, grid.GRU), ValAccuracy: []float64{0.1, 0.7}},
		{Point: point(2, grid.BiLSTM), ValAccuracy: []float64{0.2, 0.7}},
	}
	idx, value, err := Best(summaries)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 0.7, value)

	_, _, err = Best(nil)
	assert.Error(t, err)
}

func TestPrintRanking(t *testing.T) {
	lstm := point(0, grid.LSTM)
	gru := point(1, grid.GRU)
	gru.LayerName = "gru"
	summaries := []Summary{
		{Point: lstm, Folds: 5, ValAccuracy: []float64{0.25}, ValAccuracyStd: []float64{0.01}, ValLoss: []float64{1.5}},
		{Point: gru, Folds: 5, ValAccuracy: []float64{0.5}, ValAccuracyStd: []float64{0.02}, ValLoss: []float64{1.2}},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintRanking(&buf, summaries))
	assert.Equal(t, strings.Join([]string{
		"Model with hightest mean validation accuracy:",
		"('gru', 1, 128, 0.1, 0.1, 0.1, 'adam', 32)",
		"0.5",
		"------------------------------",
		"('lstm', 1, 128, 0.1, 0.1, 0.1, 'adam', 32)",
		"0.25",
		"('gru', 1, 128, 0.1, 0.1, 0.1, 'adam', 32)",
		"0.5",
	}, "\n")+"\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintTable(&buf, summaries))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "1 "))
	assert.Contains(t, lines[1], "'gru'")
	assert.Contains(t, lines[2], "0.2500")
}

func TestRenderPlotWritesPNG(t *testing.T) {
	dir := t.TempDir()

	s := Summary{
		Point:          point(0, grid.BiGRU),
		Accuracy:       []float64{0.3, 0.5, 0.6},
		AccuracyStd:    []float64{0.01, 0.02, 0.01},
		ValAccuracy:    []float64{0.28, 0.4, 0.45},
		ValAccuracyStd: []float64{0.03, 0.02, 0.02},
		Loss:           []float64{1.5, 1.2, 1.0},
		LossStd:        []float64{0.1, 0.1, 0.1},
		ValLoss:        []float64{1.6, 1.4, 1.3},
		ValLossStd:     []float64{0.1, 0.2, 0.1},
	}
	path, err := RenderPlot(dir, s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "_bigru_1_128_0.1_0.1_0.1_adam_32__accuracyandloss.png"), path)

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf, []byte("\x89PNG")))

	_, err = RenderPlot(dir, Summary{Point: s.Point})
	assert.Error(t, err)
}

func TestCurvesUseZeroBasedEpochs(t *testing.T) {
	s := Summary{
		Point:          point(0, grid.LSTM),
		Accuracy:       []float64{0.3, 0.5},
		AccuracyStd:    []float64{0.01, 0.02},
		ValAccuracy:    []float64{0.2, 0.4},
		ValAccuracyStd: []float64{0.03, 0.04},
		Loss:           []float64{1, 0.8},
		LossStd:        []float64{0, 0},
		ValLoss:        []float64{1.1, 0.9},
		ValLossStd:     []float64{0, 0},
	}
	acc, loss := Curves(s)
	assert.Equal(t, training.DataPoint{X: 1, Y: 0.4, YErr: 0.04}, acc.Series[1].Data[1])
	assert.Equal(t, training.DataPoint{X: 0, Y: 1}, loss.Series[0].Data[0])
	assert.Equal(t, s.Point.String(), acc.ModelName)
}

func TestWriteSummaryJSON(t *testing.T) {
	dir := t.TempDir()

	summaries := []Summary{
		{Point: point(0, grid.LSTM), Folds: 3, ValAccuracy: []float64{0.2, 0.4}, ValMacroF1: []float64{0.1, 0.3}},
		{Point: point(1, grid.GRU), Folds: 3, ValAccuracy: []float64{0.3, 0.6}},
	}
	path := filepath.Join(dir, "summary.json")
	require.NoError(t, WriteSummaryJSON(path, summaries))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded struct {
		BestPoint       string  `json:"best_point"`
		BestValAccuracy float64 `json:"best_val_accuracy"`
		Points          []struct {
			LayerType   string    `json:"layer_type"`
			Folds       float64   `json:"folds"`
			ValAccuracy []float64 `json:"val_accuracy"`
			ValMacroF1  []float64 `json:"val_macro_f1"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(buf, &decoded))
	assert.Equal(t, "('gru', 1, 128, 0.1, 0.1, 0.1, 'adam', 32)", decoded.BestPoint)
	assert.Equal(t, 0.6, decoded.BestValAccuracy)
	require.Len(t, decoded.Points, 2)
	assert.Equal(t, "lstm", decoded.Points[0].LayerType)
	assert.Equal(t, []float64{0.2, 0.4}, decoded.Points[0].ValAccuracy)
	assert.Equal(t, []float64{0.1, 0.3}, decoded.Points[0].ValMacroF1)
}
