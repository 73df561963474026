package engine

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/tsawler/rnn-gridsearch/grid"
	"github.com/tsawler/rnn-gridsearch/layers"
	"github.com/tsawler/rnn-gridsearch/optimizer"
)

// ModelOptions are the architecture settings that do not vary across the grid
type ModelOptions struct {
	VocabSize           int
	EmbeddingDim        int
	MaxLen              int
	NumClasses          int
	TrainableEmbeddings bool
}

// ModelFromPoint builds the classifier for one grid point: embedding,
// spatial dropout, NumLayers recurrent layers of NumUnits/2^i units where
// all but the last return sequences, then dense + softmax.
func ModelFromPoint(p grid.Point, opts ModelOptions) (*layers.ModelSpec, error) {
	if p.NumLayers < 1 {
		return nil, fmt.Errorf("grid point %s: need at least one recurrent layer", p)
	}
	cell := layers.LSTM
	if p.LayerType.IsGRU() {
		cell = layers.GRU
	}

	mb := layers.NewModelBuilder([]int{p.BatchSize, opts.MaxLen}).
		AddEmbedding(opts.VocabSize, opts.EmbeddingDim, opts.TrainableEmbeddings, "embedding").
		AddSpatialDropout1D(p.SpatialDropout, "spatial_dropout1d")

	prefix := "lstm"
	if cell == layers.GRU {
		prefix = "gru"
	}
	if p.LayerType.Bidirectional() {
		prefix = "bidirectional"
	}
	for i := 0; i < p.NumLayers; i++ {
		units := p.UnitsAt(i)
		if units < 1 {
			return nil, fmt.Errorf("grid point %s: layer %d has no units after halving %d", p, i+1, p.NumUnits)
		}
		mb.AddRecurrent(cell, layers.RecurrentOptions{
			Units:            units,
			Dropout:          p.Dropout,
			RecurrentDropout: p.RecurrentDropout,
			ReturnSequences:  i < p.NumLayers-1,
			Bidirectional:    p.LayerType.Bidirectional(),
		}, fmt.Sprintf("%s_%d", prefix, i+1))
	}

	spec, err := mb.AddDense(opts.NumClasses, true, "dense").
		AddSoftmax(-1, "softmax").
		Compile()
	if err != nil {
		return nil, fmt.Errorf("grid point %s: %v", p, err)
	}
	return spec, nil
}

// Factory creates a fresh engine per (grid point, fold) run
type Factory struct {
	Weights             *mat.Dense // pretrained embedding table, V×D
	MaxLen              int
	NumClasses          int
	TrainableEmbeddings bool
	LearningRates       map[string]float64 // per-optimizer overrides
	Summary             io.Writer          // model summaries, skipped when nil
	Progress            io.Writer          // per-epoch progress, skipped when nil
}

// Build compiles the model for p and returns an untrained engine whose
// randomness is driven by seed
func (f *Factory) Build(p grid.Point, seed int64) (*ModelTrainingEngine, error) {
	if f.Weights == nil {
		return nil, fmt.Errorf("factory has no embedding weights")
	}
	vocab, dim := f.Weights.Dims()
	spec, err := ModelFromPoint(p, ModelOptions{
		VocabSize:           vocab,
		EmbeddingDim:        dim,
		MaxLen:              f.MaxLen,
		NumClasses:          f.NumClasses,
		TrainableEmbeddings: f.TrainableEmbeddings,
	})
	if err != nil {
		return nil, err
	}

	opt, err := optimizer.New(p.Optimizer, f.LearningRates[optimizer.Canonical(p.Optimizer)])
	if err != nil {
		return nil, fmt.Errorf("grid point %s: %v", p, err)
	}

	mte, err := NewModelTrainingEngine(spec, f.Weights, opt, seed)
	if err != nil {
		return nil, fmt.Errorf("grid point %s: %v", p, err)
	}
	mte.SetProgressOutput(f.Progress)

	if f.Summary != nil {
		fmt.Fprint(f.Summary, mte.GetModelSummary())
	}
	return mte, nil
}
