package engine

import (
	"fmt"
	"io"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/tsawler/rnn-gridsearch/layers"
	"github.com/tsawler/rnn-gridsearch/optimizer"
)

// ModelTrainingEngine is a runnable network built from a compiled
// ModelSpec: embedding lookup, optional spatial dropout, stacked
// (bidirectional) LSTM/GRU layers and a dense softmax head, trained with
// backpropagation through time.
type ModelTrainingEngine struct {
	modelSpec  *layers.ModelSpec
	embedding  *embeddingLayer
	stack      []layer
	numClasses int
	steps      int

	parameters []*param
	trainable  []*optimizer.Param // views over trainable parameter storage
	optimizer  optimizer.Optimizer

	rng      *rand.Rand
	seed     int64
	progress io.Writer
}

// NewModelTrainingEngine builds a network for modelSpec. weights seeds the
// embedding table and may be nil for a random uniform initialisation.
// seed drives weight initialisation, dropout masks and batch shuffling.
func NewModelTrainingEngine(
	modelSpec *layers.ModelSpec,
	weights mat.Matrix,
	opt optimizer.Optimizer,
	seed int64,
) (*ModelTrainingEngine, error) {
	if err := modelSpec.ValidateModelForEngine(); err != nil {
		return nil, fmt.Errorf("model validation failed: %v", err)
	}
	if opt == nil {
		return nil, fmt.Errorf("optimizer is required")
	}

	mte := &ModelTrainingEngine{
		modelSpec:  modelSpec,
		numClasses: modelSpec.OutputShape[len(modelSpec.OutputShape)-1],
		steps:      modelSpec.InputShape[1],
		optimizer:  opt,
		rng:        rand.New(rand.NewSource(seed)),
		seed:       seed,
	}

	if err := mte.initializeModelParameters(weights); err != nil {
		return nil, err
	}

	for _, p := range mte.parameters {
		if !p.trainable {
			continue
		}
		mte.trainable = append(mte.trainable, &optimizer.Param{
			Name:  p.name,
			Value: p.value.RawMatrix().Data,
			Grad:  p.grad.RawMatrix().Data,
		})
	}
	return mte, nil
}

// initializeModelParameters creates every layer with Keras default
// initialisers: glorot_uniform kernels, orthogonal recurrent kernels, zero
// biases with unit forget bias for LSTMs.
func (mte *ModelTrainingEngine) initializeModelParameters(weights mat.Matrix) error {
	for layerIndex := range mte.modelSpec.Layers {
		layerSpec := &mte.modelSpec.Layers[layerIndex]
		var err error
		switch layerSpec.Type {
		case layers.Embedding:
			err = mte.initializeEmbedding(layerSpec, weights)
		case layers.SpatialDropout1D:
			mte.stack = append(mte.stack, &spatialDropoutLayer{
				name: layerSpec.Name,
				rate: layerSpec.FloatParam("rate", 0),
				rng:  mte.rng,
			})
		case layers.LSTM, layers.GRU, layers.Bidirectional:
			err = mte.initializeRecurrent(layerSpec)
		case layers.Dense:
			err = mte.initializeDense(layerSpec)
		case layers.Softmax:
			// applied together with the loss
			continue
		default:
			err = fmt.Errorf("unsupported layer type: %s", layerSpec.Type.String())
		}
		if err != nil {
			return fmt.Errorf("failed to initialize layer %d (%s): %v", layerIndex, layerSpec.Name, err)
		}
	}
	return nil
}

func (mte *ModelTrainingEngine) addParam(name string, rows, cols int, trainable bool) *param {
	p := newParam(name, rows, cols, trainable)
	mte.parameters = append(mte.parameters, p)
	return p
}

func (mte *ModelTrainingEngine) initializeEmbedding(layerSpec *layers.LayerSpec, weights mat.Matrix) error {
	vocab := layerSpec.IntParam("vocab_size", 0)
	dim := layerSpec.IntParam("output_dim", 0)
	table := mte.addParam(layerSpec.Name+"/embeddings", vocab, dim, layerSpec.Trainable)

	if weights == nil {
		mte.initializeUniform(table.value, -0.05, 0.05)
	} else {
		r, c := weights.Dims()
		if r != vocab || c != dim {
			return fmt.Errorf("embedding weights are %dx%d, layer expects %dx%d", r, c, vocab, dim)
		}
		table.value.Copy(weights)
	}
	mte.embedding = &embeddingLayer{name: layerSpec.Name, table: table}
	return nil
}

func (mte *ModelTrainingEngine) initializeRecurrent(layerSpec *layers.LayerSpec) error {
	cellType := layerSpec.Cell()
	gates, err := layers.GateCount(cellType)
	if err != nil {
		return err
	}
	cfg := cellConfig{
		inputSize:        layerSpec.IntParam("input_size", 0),
		units:            layerSpec.IntParam("units", 0),
		dropout:          layerSpec.FloatParam("dropout", 0),
		recurrentDropout: layerSpec.FloatParam("recurrent_dropout", 0),
		rng:              mte.rng,
	}

	newCell := func(direction string) cell {
		prefix := layerSpec.Name + "/" + direction
		kernel := mte.addParam(prefix+"/kernel", cfg.inputSize, gates*cfg.units, true)
		recurrentKernel := mte.addParam(prefix+"/recurrent_kernel", cfg.units, gates*cfg.units, true)
		bias := mte.addParam(prefix+"/bias", 1, gates*cfg.units, true)

		mte.initializeXavier(kernel.value, cfg.inputSize, gates*cfg.units)
		mte.initializeOrthogonal(recurrentKernel.value)
		if cellType == layers.LSTM {
			// unit_forget_bias
			forget := bias.value.RawRowView(0)[cfg.units : 2*cfg.units]
			for i := range forget {
				forget[i] = 1
			}
			return newLSTMCell(cfg, kernel, recurrentKernel, bias)
		}
		return newGRUCell(cfg, kernel, recurrentKernel, bias)
	}

	l := &recurrentLayer{
		name:            layerSpec.Name,
		units:           cfg.units,
		returnSequences: layerSpec.BoolParam("return_sequences", false),
		forwardCell:     newCell("forward"),
	}
	if layerSpec.Type == layers.Bidirectional {
		l.backwardCell = newCell("backward")
	}
	mte.stack = append(mte.stack, l)
	return nil
}

func (mte *ModelTrainingEngine) initializeDense(layerSpec *layers.LayerSpec) error {
	in := layerSpec.IntParam("input_size", 0)
	out := layerSpec.IntParam("output_size", 0)
	if in <= 0 || out <= 0 {
		return fmt.Errorf("dense layer needs positive sizes, got %d -> %d", in, out)
	}
	l := &denseLayer{
		name:   layerSpec.Name,
		weight: mte.addParam(layerSpec.Name+"/kernel", in, out, true),
	}
	mte.initializeXavier(l.weight.value, in, out)
	if layerSpec.BoolParam("use_bias", true) {
		l.bias = mte.addParam(layerSpec.Name+"/bias", 1, out, true)
	}
	mte.stack = append(mte.stack, l)
	return nil
}

// initializeXavier fills m with Glorot uniform values in
// [-sqrt(6/(fanIn+fanOut)), sqrt(6/(fanIn+fanOut))]
func (mte *ModelTrainingEngine) initializeXavier(m *mat.Dense, fanIn, fanOut int) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	mte.initializeUniform(m, -limit, limit)
}

// initializeUniform fills m with values drawn uniformly from [min, max)
func (mte *ModelTrainingEngine) initializeUniform(m *mat.Dense, min, max float64) {
	data := m.RawMatrix().Data
	for i := range data {
		data[i] = min + (max-min)*mte.rng.Float64()
	}
}

// initializeOrthogonal fills the rows×cols matrix m so that its rows (or
// columns, whichever is fewer) are orthonormal, by QR-factorising a
// standard normal matrix.
func (mte *ModelTrainingEngine) initializeOrthogonal(m *mat.Dense) {
	rows, cols := m.Dims()
	tall := rows >= cols
	r, c := rows, cols
	if !tall {
		r, c = cols, rows
	}

	a := mat.NewDense(r, c, nil)
	data := a.RawMatrix().Data
	for i := range data {
		data[i] = mte.rng.NormFloat64()
	}

	var qr mat.QR
	qr.Factorize(a)
	var q, rr mat.Dense
	qr.QTo(&q)
	qr.RTo(&rr)

	// first c columns of Q, sign-corrected by diag(R) for a uniform draw
	basis := mat.DenseCopyOf(q.Slice(0, r, 0, c))
	for j := 0; j < c; j++ {
		if rr.At(j, j) < 0 {
			for i := 0; i < r; i++ {
				basis.Set(i, j, -basis.At(i, j))
			}
		}
	}

	if tall {
		m.Copy(basis)
	} else {
		m.Copy(basis.T())
	}
}

// SetProgressOutput enables Keras-style per-epoch progress output on w.
// A nil writer disables it.
func (mte *ModelTrainingEngine) SetProgressOutput(w io.Writer) {
	mte.progress = w
}

// GetModelSummary returns the Keras-style layer table
func (mte *ModelTrainingEngine) GetModelSummary() string {
	return mte.modelSpec.Summary()
}

// ParameterCount returns the number of scalar weights held by the engine
func (mte *ModelTrainingEngine) ParameterCount() int {
	n := 0
	for _, p := range mte.parameters {
		r, c := p.value.Dims()
		n += r * c
	}
	return n
}
