package layers

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// LayerType represents the type of neural network layer
type LayerType int

const (
	Embedding LayerType = iota
	SpatialDropout1D
	LSTM
	GRU
	Bidirectional
	Dense
	Softmax
)

func (lt LayerType) String() string {
	switch lt {
	case Embedding:
		return "Embedding"
	case SpatialDropout1D:
		return "SpatialDropout1D"
	case LSTM:
		return "LSTM"
	case GRU:
		return "GRU"
	case Bidirectional:
		return "Bidirectional"
	case Dense:
		return "Dense"
	case Softmax:
		return "Softmax"
	default:
		return "Unknown"
	}
}

// IsRecurrent reports whether the layer type runs over the time axis
func (lt LayerType) IsRecurrent() bool {
	return lt == LSTM || lt == GRU || lt == Bidirectional
}

// GateCount is the number of stacked gate blocks in a recurrent cell kernel
func GateCount(cell LayerType) (int, error) {
	switch cell {
	case LSTM:
		return 4, nil // input, forget, cell, output
	case GRU:
		return 3, nil // update, reset, candidate
	default:
		return 0, fmt.Errorf("%s is not a recurrent cell", cell)
	}
}

// LayerSpec defines layer configuration for the engine.
// This is pure configuration - no execution logic
type LayerSpec struct {
	Type       LayerType              `json:"type"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`

	// Shape information (computed during model compilation)
	InputShape  []int `json:"input_shape,omitempty"`
	OutputShape []int `json:"output_shape,omitempty"`

	// Parameter metadata (computed during model compilation)
	ParameterShapes [][]int `json:"parameter_shapes,omitempty"`
	ParameterCount  int64   `json:"parameter_count,omitempty"`
	Trainable       bool    `json:"trainable"`
}

// IntParam returns an integer layer parameter or def when absent
func (ls LayerSpec) IntParam(key string, def int) int {
	return getIntParam(ls.Parameters, key, def)
}

// FloatParam returns a float layer parameter or def when absent
func (ls LayerSpec) FloatParam(key string, def float64) float64 {
	return getFloatParam(ls.Parameters, key, def)
}

// BoolParam returns a boolean layer parameter or def when absent
func (ls LayerSpec) BoolParam(key string, def bool) bool {
	return getBoolParam(ls.Parameters, key, def)
}

// Cell returns the wrapped cell type of a Bidirectional layer, or the layer
// type itself for plain recurrent layers.
func (ls LayerSpec) Cell() LayerType {
	if ls.Type != Bidirectional {
		return ls.Type
	}
	if cell, ok := ls.Parameters["cell"].(LayerType); ok {
		return cell
	}
	return LSTM
}

// ModelSpec defines a complete neural network model as layer configuration
type ModelSpec struct {
	Layers []LayerSpec `json:"layers"`

	// Compiled model information
	TotalParameters     int64   `json:"total_parameters"`
	TrainableParameters int64   `json:"trainable_parameters"`
	ParameterShapes     [][]int `json:"parameter_shapes"`
	InputShape          []int   `json:"input_shape"`
	OutputShape         []int   `json:"output_shape"`
	Compiled            bool    `json:"compiled"`
}

// ModelBuilder helps construct neural network models
type ModelBuilder struct {
	layers     []LayerSpec
	inputShape []int
	compiled   bool
}

// NewModelBuilder creates a new model builder. inputShape is
// [batch, steps] of token indices.
func NewModelBuilder(inputShape []int) *ModelBuilder {
	return &ModelBuilder{
		layers:     make([]LayerSpec, 0),
		inputShape: inputShape,
		compiled:   false,
	}
}

// AddLayer adds a layer to the model
func (mb *ModelBuilder) AddLayer(layer LayerSpec) *ModelBuilder {
	mb.layers = append(mb.layers, layer)
	mb.compiled = false // Invalidate compilation
	return mb
}

// AddEmbedding adds a lookup table of vocabSize vectors of size dim
func (mb *ModelBuilder) AddEmbedding(vocabSize, dim int, trainable bool, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Embedding,
		Name: name,
		Parameters: map[string]interface{}{
			"vocab_size": vocabSize,
			"output_dim": dim,
			"trainable":  trainable,
		},
	})
}

// AddSpatialDropout1D adds dropout that zeroes whole feature channels of a sequence
func (mb *ModelBuilder) AddSpatialDropout1D(rate float64, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: SpatialDropout1D,
		Name: name,
		Parameters: map[string]interface{}{
			"rate": rate,
		},
	})
}

// RecurrentOptions configures a recurrent layer
type RecurrentOptions struct {
	Units            int
	Dropout          float64
	RecurrentDropout float64
	ReturnSequences  bool
	Bidirectional    bool
}

// AddRecurrent adds an LSTM or GRU layer, optionally wrapped bidirectionally
func (mb *ModelBuilder) AddRecurrent(cell LayerType, opts RecurrentOptions, name string) *ModelBuilder {
	params := map[string]interface{}{
		"units":             opts.Units,
		"dropout":           opts.Dropout,
		"recurrent_dropout": opts.RecurrentDropout,
		"return_sequences":  opts.ReturnSequences,
	}
	layerType := cell
	if opts.Bidirectional {
		layerType = Bidirectional
		params["cell"] = cell
	}
	return mb.AddLayer(LayerSpec{Type: layerType, Name: name, Parameters: params})
}

// AddDense adds a dense layer to the model
func (mb *ModelBuilder) AddDense(outputSize int, useBias bool, name string) *ModelBuilder {
	// Input size will be computed during compilation
	return mb.AddLayer(LayerSpec{
		Type: Dense,
		Name: name,
		Parameters: map[string]interface{}{
			"output_size": outputSize,
			"use_bias":    useBias,
		},
	})
}

// AddSoftmax adds a softmax activation layer
func (mb *ModelBuilder) AddSoftmax(axis int, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{
		Type: Softmax,
		Name: name,
		Parameters: map[string]interface{}{
			"axis": axis,
		},
	})
}

// Compile computes shapes and parameter counts for every layer
func (mb *ModelBuilder) Compile() (*ModelSpec, error) {
	if len(mb.layers) == 0 {
		return nil, fmt.Errorf("cannot compile empty model")
	}
	if len(mb.inputShape) != 2 {
		return nil, fmt.Errorf("input shape must be [batch, steps], got %v", mb.inputShape)
	}

	model := &ModelSpec{
		Layers:     make([]LayerSpec, len(mb.layers)),
		InputShape: mb.inputShape,
		Compiled:   false,
	}

	for i, layer := range mb.layers {
		// Copy the parameter map so compilation never mutates builder state
		params := make(map[string]interface{}, len(layer.Parameters))
		for k, v := range layer.Parameters {
			params[k] = v
		}
		layer.Parameters = params
		model.Layers[i] = layer
	}

	// Compute shapes and parameter information
	currentShape := mb.inputShape
	var allParameterShapes [][]int
	totalParams := int64(0)
	trainableParams := int64(0)

	for i := range model.Layers {
		layer := &model.Layers[i]

		layer.InputShape = make([]int, len(currentShape))
		copy(layer.InputShape, currentShape)

		outputShape, paramShapes, paramCount, err := mb.computeLayerInfo(layer, currentShape)
		if err != nil {
			return nil, fmt.Errorf("failed to compute layer %d (%s) info: %v", i, layer.Name, err)
		}

		layer.OutputShape = outputShape
		layer.ParameterShapes = paramShapes
		layer.ParameterCount = paramCount
		layer.Trainable = layer.BoolParam("trainable", true)

		allParameterShapes = append(allParameterShapes, paramShapes...)
		totalParams += paramCount
		if layer.Trainable {
			trainableParams += paramCount
		}

		currentShape = outputShape
	}

	model.OutputShape = currentShape
	model.ParameterShapes = allParameterShapes
	model.TotalParameters = totalParams
	model.TrainableParameters = trainableParams
	model.Compiled = true
	mb.compiled = true

	return model, nil
}

// computeLayerInfo computes output shape and parameter information for a layer
func (mb *ModelBuilder) computeLayerInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	switch layer.Type {
	case Embedding:
		return mb.computeEmbeddingInfo(layer, inputShape)
	case LSTM, GRU, Bidirectional:
		return mb.computeRecurrentInfo(layer, inputShape)
	case Dense:
		return mb.computeDenseInfo(layer, inputShape)
	case SpatialDropout1D:
		rate := layer.FloatParam("rate", 0)
		if rate < 0 || rate >= 1 {
			return nil, nil, 0, fmt.Errorf("dropout rate %v outside [0, 1)", rate)
		}
		if len(inputShape) != 3 {
			return nil, nil, 0, fmt.Errorf("spatial dropout requires [batch, steps, features] input, got %v", inputShape)
		}
		return mb.computeActivationInfo(layer, inputShape)
	case Softmax:
		return mb.computeActivationInfo(layer, inputShape)
	default:
		return nil, nil, 0, fmt.Errorf("unsupported layer type: %s", layer.Type.String())
	}
}

func (mb *ModelBuilder) computeEmbeddingInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	if len(inputShape) != 2 {
		return nil, nil, 0, fmt.Errorf("embedding layer requires [batch, steps] input, got %v", inputShape)
	}
	vocabSize := layer.IntParam("vocab_size", 0)
	dim := layer.IntParam("output_dim", 0)
	if vocabSize <= 0 || dim <= 0 {
		return nil, nil, 0, fmt.Errorf("embedding requires positive vocab_size and output_dim, got %d and %d", vocabSize, dim)
	}
	outputShape := []int{inputShape[0], inputShape[1], dim}
	return outputShape, [][]int{{vocabSize, dim}}, int64(vocabSize * dim), nil
}

// computeRecurrentInfo computes shapes for LSTM, GRU and Bidirectional
// layers. Each direction owns a kernel [in, g*u], a recurrent kernel
// [u, g*u] and a bias [g*u] where g is the cell's gate count.
func (mb *ModelBuilder) computeRecurrentInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	if len(inputShape) != 3 {
		return nil, nil, 0, fmt.Errorf("recurrent layer requires [batch, steps, features] input, got %v", inputShape)
	}
	units := layer.IntParam("units", 0)
	if units <= 0 {
		return nil, nil, 0, fmt.Errorf("recurrent layer requires positive units, got %d", units)
	}
	for _, key := range []string{"dropout", "recurrent_dropout"} {
		if rate := layer.FloatParam(key, 0); rate < 0 || rate >= 1 {
			return nil, nil, 0, fmt.Errorf("%s %v outside [0, 1)", key, rate)
		}
	}

	gates, err := GateCount(layer.Cell())
	if err != nil {
		return nil, nil, 0, err
	}

	inputSize := inputShape[2]
	layer.Parameters["input_size"] = inputSize

	directions := 1
	if layer.Type == Bidirectional {
		directions = 2
	}

	var paramShapes [][]int
	paramCount := int64(0)
	for d := 0; d < directions; d++ {
		paramShapes = append(paramShapes,
			[]int{inputSize, gates * units},
			[]int{units, gates * units},
			[]int{gates * units},
		)
		paramCount += int64(gates * (units*(inputSize+units) + units))
	}

	features := units * directions
	if layer.BoolParam("return_sequences", false) {
		return []int{inputShape[0], inputShape[1], features}, paramShapes, paramCount, nil
	}
	return []int{inputShape[0], features}, paramShapes, paramCount, nil
}

// computeDenseInfo computes dense layer information
func (mb *ModelBuilder) computeDenseInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	if len(inputShape) != 2 {
		return nil, nil, 0, fmt.Errorf("dense layer requires [batch, features] input, got %v", inputShape)
	}

	outputSize, ok := layer.Parameters["output_size"].(int)
	if !ok || outputSize <= 0 {
		return nil, nil, 0, fmt.Errorf("missing output_size parameter")
	}
	useBias := layer.BoolParam("use_bias", true)

	inputSize := inputShape[1]
	layer.Parameters["input_size"] = inputSize

	// Weight matrix: [inputSize, outputSize]
	paramShapes := [][]int{{inputSize, outputSize}}
	paramCount := int64(inputSize * outputSize)

	if useBias {
		paramShapes = append(paramShapes, []int{outputSize})
		paramCount += int64(outputSize)
	}

	return []int{inputShape[0], outputSize}, paramShapes, paramCount, nil
}

// computeActivationInfo handles shape-preserving layers without parameters
func (mb *ModelBuilder) computeActivationInfo(layer *LayerSpec, inputShape []int) ([]int, [][]int, int64, error) {
	outputShape := make([]int, len(inputShape))
	copy(outputShape, inputShape)
	return outputShape, nil, 0, nil
}

// Summary returns a human-readable model summary
func (ms *ModelSpec) Summary() string {
	if !ms.Compiled {
		return "Model not compiled"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-28s %-22s %12s\n", "Layer (type)", "Output Shape", "Param #")
	b.WriteString(strings.Repeat("=", 64) + "\n")
	for _, layer := range ms.Layers {
		name := fmt.Sprintf("%s (%s)", layer.Name, layerLabel(layer))
		fmt.Fprintf(&b, "%-28s %-22s %12s\n", name, shapeString(layer.OutputShape), humanize.Comma(layer.ParameterCount))
	}
	b.WriteString(strings.Repeat("=", 64) + "\n")
	fmt.Fprintf(&b, "Total params: %s\n", humanize.Comma(ms.TotalParameters))
	fmt.Fprintf(&b, "Trainable params: %s\n", humanize.Comma(ms.TrainableParameters))
	fmt.Fprintf(&b, "Non-trainable params: %s\n", humanize.Comma(ms.TotalParameters-ms.TrainableParameters))
	return b.String()
}

func layerLabel(layer LayerSpec) string {
	if layer.Type == Bidirectional {
		return fmt.Sprintf("Bidirectional(%s)", layer.Cell())
	}
	return layer.Type.String()
}

// shapeString renders a shape with the batch dimension as None
func shapeString(shape []int) string {
	parts := []string{"None"}
	for _, d := range shape[1:] {
		parts = append(parts, fmt.Sprint(d))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ValidateModelForEngine checks that a compiled model has the layout the
// engine can run: an embedding input, recurrent layers whose
// return_sequences flags chain correctly, and a dense + softmax head.
func (ms *ModelSpec) ValidateModelForEngine() error {
	if !ms.Compiled {
		return fmt.Errorf("model not compiled")
	}
	if len(ms.Layers) < 3 {
		return fmt.Errorf("model needs at least embedding, dense and softmax layers, has %d", len(ms.Layers))
	}
	if ms.Layers[0].Type != Embedding {
		return fmt.Errorf("first layer must be Embedding, got %s", ms.Layers[0].Type)
	}
	last := len(ms.Layers) - 1
	if ms.Layers[last].Type != Softmax || ms.Layers[last-1].Type != Dense {
		return fmt.Errorf("model must end with Dense followed by Softmax")
	}

	recurrent := 0
	for i, layer := range ms.Layers[1:last] {
		switch {
		case layer.Type == SpatialDropout1D:
		case layer.Type.IsRecurrent():
			recurrent++
		case layer.Type == Dense && i+1 == last-1:
		default:
			return fmt.Errorf("layer %d (%s): %s not supported at this position", i+1, layer.Name, layer.Type)
		}
	}
	if recurrent == 0 {
		return fmt.Errorf("model has no recurrent layer")
	}
	return nil
}

// Helper functions for parameter extraction
func getIntParam(params map[string]interface{}, key string, defaultValue int) int {
	if val, exists := params[key]; exists {
		if intVal, ok := val.(int); ok {
			return intVal
		}
	}
	return defaultValue
}

func getBoolParam(params map[string]interface{}, key string, defaultValue bool) bool {
	if val, exists := params[key]; exists {
		if boolVal, ok := val.(bool); ok {
			return boolVal
		}
	}
	return defaultValue
}

func getFloatParam(params map[string]interface{}, key string, defaultValue float64) float64 {
	if val, exists := params[key]; exists {
		if floatVal, ok := val.(float64); ok {
			return floatVal
		}
		// Handle float32 conversion
		if floatVal, ok := val.(float32); ok {
			return float64(floatVal)
		}
	}
	return defaultValue
}
