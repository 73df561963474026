package engine

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// param is a weight matrix with its gradient buffer. Biases are 1×n.
type param struct {
	name      string
	value     *mat.Dense
	grad      *mat.Dense
	trainable bool
}

func newParam(name string, rows, cols int, trainable bool) *param {
	return &param{
		name:      name,
		value:     mat.NewDense(rows, cols, nil),
		grad:      mat.NewDense(rows, cols, nil),
		trainable: trainable,
	}
}

// layer is one differentiable stage after the embedding lookup
type layer interface {
	forward(in sequence, training bool) sequence
	backward(dOut sequence) sequence
	parameters() []*param
}

// embeddingLayer maps token indices to rows of its table
type embeddingLayer struct {
	name  string
	table *param
	ids   [][]int
}

func (l *embeddingLayer) parameters() []*param {
	return []*param{l.table}
}

func (l *embeddingLayer) lookup(ids [][]int) (sequence, error) {
	if len(ids) == 0 || len(ids[0]) == 0 {
		return nil, fmt.Errorf("empty input batch")
	}
	vocab, dim := l.table.value.Dims()
	steps := len(ids[0])
	out := make(sequence, steps)
	for t := range out {
		out[t] = mat.NewDense(len(ids), dim, nil)
	}
	for b, seq := range ids {
		if len(seq) != steps {
			return nil, fmt.Errorf("sequence %d has length %d, expected %d", b, len(seq), steps)
		}
		for t, idx := range seq {
			if idx < 0 || idx >= vocab {
				return nil, fmt.Errorf("token index %d outside vocabulary of %d", idx, vocab)
			}
			copy(out[t].RawRowView(b), l.table.value.RawRowView(idx))
		}
	}
	l.ids = ids
	return out, nil
}

// backward scatters the per-step gradients into the rows that were looked up
func (l *embeddingLayer) backward(dOut sequence) {
	if !l.table.trainable {
		return
	}
	for b, seq := range l.ids {
		for t, idx := range seq {
			floats.Add(l.table.grad.RawRowView(idx), dOut[t].RawRowView(b))
		}
	}
}

// spatialDropoutLayer zeroes whole feature channels of a sequence, with one
// mask per (sample, channel) shared across time steps
type spatialDropoutLayer struct {
	name string
	rate float64
	rng  *rand.Rand
	mask *mat.Dense
}

func (l *spatialDropoutLayer) parameters() []*param { return nil }

func (l *spatialDropoutLayer) forward(in sequence, training bool) sequence {
	l.mask = nil
	if !training || l.rate == 0 {
		return in
	}
	batch, features := in[0].Dims()
	l.mask = dropoutMask(l.rng, batch, features, l.rate)
	out := make(sequence, len(in))
	for t, x := range in {
		out[t] = applyMask(x, l.mask)
	}
	return out
}

func (l *spatialDropoutLayer) backward(dOut sequence) sequence {
	if l.mask == nil {
		return dOut
	}
	out := make(sequence, len(dOut))
	for t, d := range dOut {
		out[t] = applyMask(d, l.mask)
	}
	return out
}

// denseLayer is a fully connected layer over the last recurrent state
type denseLayer struct {
	name   string
	weight *param
	bias   *param // nil without bias
	input  *mat.Dense
}

func (l *denseLayer) parameters() []*param {
	if l.bias == nil {
		return []*param{l.weight}
	}
	return []*param{l.weight, l.bias}
}

func (l *denseLayer) forward(in sequence, _ bool) sequence {
	x := in[len(in)-1]
	batch, _ := x.Dims()
	_, out := l.weight.value.Dims()
	y := mat.NewDense(batch, out, nil)
	y.Mul(x, l.weight.value)
	if l.bias != nil {
		addRowVector(y, l.bias.value)
	}
	l.input = x
	return sequence{y}
}

func (l *denseLayer) backward(dOut sequence) sequence {
	d := dOut[0]
	accumulateTransposeProduct(l.weight.grad, l.input, d)
	if l.bias != nil {
		accumulateColumnSums(l.bias.grad, d)
	}
	batch, _ := d.Dims()
	in, _ := l.weight.value.Dims()
	dx := mat.NewDense(batch, in, nil)
	dx.Mul(d, l.weight.value.T())
	return sequence{dx}
}
